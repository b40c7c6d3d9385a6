package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "no input",
			err:         ErrNoInput,
			wantCode:    "IMP001",
			wantMessage: "Nothing was pasted",
		},
		{
			name:        "no valid rows through import error",
			err:         &ImportError{Errors: []ParseError{{LineNumber: 1, Reason: ReasonWrongColumnCount}}},
			wantCode:    "IMP002",
			wantMessage: "None of the lines had both an order id and a phone number",
		},
		{
			name:        "render pending",
			err:         ErrRenderPending,
			wantCode:    "EXP001",
			wantMessage: "The code is still being generated",
		},
		{
			name:        "export blocked wins over wrapped render failure",
			err:         fmt.Errorf("%w: %w", ErrExportBlocked, &RenderError{Err: errors.New("data too long")}),
			wantCode:    "EXP002",
			wantMessage: "The last code could not be generated",
		},
		{
			name:        "render failure",
			err:         &RenderError{Err: errors.New("content too long to encode")},
			wantCode:    "RND001",
			wantMessage: "The code could not be generated",
		},
		{
			name:        "store write wins over connection detail",
			err:         fmt.Errorf("store write failed: %w", errors.New("dial tcp: connection refused")),
			wantCode:    "STO003",
			wantMessage: "Records could not be saved",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "STO004",
			wantMessage: "Unable to reach the store",
		},
		{
			name:        "review not found",
			err:         fmt.Errorf("%w: abc", ErrReviewNotFound),
			wantCode:    "REV001",
			wantMessage: "The review session no longer exists",
		},
		{
			name:        "rate limit",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "deadline",
			err:         context.DeadlineExceeded,
			wantCode:    "REQ002",
			wantMessage: "Request timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("REVIEW NOT FOUND"),
			wantCode:    "REV001",
			wantMessage: "The review session no longer exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNoInput)

	expected := "Nothing was pasted (Code: IMP001). Paste rows copied from a spreadsheet"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrRecordNotFound, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("%w: 42", ErrRecordNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "The record does not exist" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrRecordNotFound) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
