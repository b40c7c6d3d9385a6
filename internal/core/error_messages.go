package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// # Error Codes Reference
//
// Each message carries a code the operator can quote when reporting a problem.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - No input: Nothing was pasted
//	         Action: Paste rows copied from a spreadsheet
//	         Patterns: "no input"
//
//	IMP002 - No valid rows: None of the pasted lines had an order id and phone
//	         Action: Use two columns separated by a tab or two spaces
//	         Patterns: "no valid rows"
//
//	IMP003 - File too large: The uploaded file exceeds the size limit
//	         Action: Split the file and import it in parts
//	         Patterns: "import file too large"
//
//	IMP004 - No file: No file was selected
//	         Action: Choose a .txt or .tsv file to import
//	         Patterns: "no file provided"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Render pending: The code is still being generated
//	         Action: Wait a moment and download again
//	         Patterns: "render pending"
//
//	EXP002 - Export blocked: The last code could not be generated
//	         Action: Switch mode or record and try again
//	         Patterns: "export blocked", "no image to export"
//
//	EXP003 - Export failed: The image could not be written
//	         Action: Check free disk space and permissions
//	         Patterns: "export failed"
//
// # Review Errors (REV001-REV099)
//
//	REV001 - Review expired: The review session no longer exists
//	         Action: Start a new review from the record list
//	         Patterns: "review not found"
//
//	REV002 - Nothing to review: There are no records
//	         Action: Import records first
//	         Patterns: "review has no records"
//
// # Store Errors (STO001-STO099)
//
//	STO001 - Record not found: The record does not exist
//	         Action: Refresh the record list
//	         Patterns: "record not found"
//
//	STO002 - Load failed: Saved records could not be read
//	         Action: Check the store settings and restart
//	         Patterns: "store load failed"
//
//	STO003 - Save failed: Records could not be saved
//	         Action: Nothing was changed. Please try again
//	         Patterns: "store write failed"
//
//	STO004 - Store unavailable: Unable to reach the store
//	         Action: Please try again in a few moments
//	         Patterns: "connection refused", "database is locked"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Render Errors (RND001-RND099)
//
//	RND001 - Render failed: The code could not be generated
//	         Action: The value may be too long to encode. Check the record
//	         Patterns: "render failed"
//
//	RND002 - Unknown mode: The code mode is not recognized
//	         Action: Choose direct dial or confirmation link
//	         Patterns: "unknown payload mode"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	REQ002 - Request timeout: Request timed out
//	         Action: Please try again
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or check the server logs
//
// Patterns are matched case-insensitively and the first match wins, so
// wrapped errors resolve to the outermost category listed first above.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: specific before general.
var errorPatterns = []errorPattern{
	// Import
	{
		pattern: "no input",
		msg: UserMessage{
			Message: "Nothing was pasted",
			Action:  "Paste rows copied from a spreadsheet",
			Code:    "IMP001",
		},
	},
	{
		pattern: "no valid rows",
		msg: UserMessage{
			Message: "None of the lines had both an order id and a phone number",
			Action:  "Use two columns separated by a tab or two spaces",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import file too large",
		msg: UserMessage{
			Message: "The file exceeds the import size limit",
			Action:  "Split the file and import it in parts",
			Code:    "IMP003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a .txt or .tsv file to import",
			Code:    "IMP004",
		},
	},

	// Export
	{
		pattern: "render pending",
		msg: UserMessage{
			Message: "The code is still being generated",
			Action:  "Wait a moment and download again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "export blocked",
		msg: UserMessage{
			Message: "The last code could not be generated",
			Action:  "Switch mode or record and try again",
			Code:    "EXP002",
		},
	},
	{
		pattern: "no image to export",
		msg: UserMessage{
			Message: "The last code could not be generated",
			Action:  "Switch mode or record and try again",
			Code:    "EXP002",
		},
	},
	{
		pattern: "export failed",
		msg: UserMessage{
			Message: "The image could not be written",
			Action:  "Check free disk space and permissions",
			Code:    "EXP003",
		},
	},

	// Review
	{
		pattern: "review not found",
		msg: UserMessage{
			Message: "The review session no longer exists",
			Action:  "Start a new review from the record list",
			Code:    "REV001",
		},
	},
	{
		pattern: "review has no records",
		msg: UserMessage{
			Message: "There are no records to review",
			Action:  "Import records first",
			Code:    "REV002",
		},
	},

	// Store
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "The record does not exist",
			Action:  "Refresh the record list",
			Code:    "STO001",
		},
	},
	{
		pattern: "store load failed",
		msg: UserMessage{
			Message: "Saved records could not be read",
			Action:  "Check the store settings and restart",
			Code:    "STO002",
		},
	},
	{
		pattern: "store write failed",
		msg: UserMessage{
			Message: "Records could not be saved",
			Action:  "Nothing was changed. Please try again",
			Code:    "STO003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the store",
			Action:  "Please try again in a few moments",
			Code:    "STO004",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Unable to reach the store",
			Action:  "Please try again in a few moments",
			Code:    "STO004",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},

	// Render
	{
		pattern: "render failed",
		msg: UserMessage{
			Message: "The code could not be generated",
			Action:  "The value may be too long to encode. Check the record",
			Code:    "RND001",
		},
	},
	{
		pattern: "unknown payload mode",
		msg: UserMessage{
			Message: "The code mode is not recognized",
			Action:  "Choose direct dial or confirmation link",
			Code:    "RND002",
		},
	},

	// Request
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},
}

// defaultMessage is returned when no pattern matches. Operators reporting
// ERR000 should be asked for the server log around the time of the failure.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error and ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
