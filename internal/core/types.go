package core

import (
	"context"
	"fmt"
)

// Record is one imported (order id, phone) pair.
// Records are immutable once created; the ID is assigned at import time.
type Record struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"`
	Phone   string `json:"phone"`
}

// Entry is a parsed line before it is given an identity by the store.
type Entry struct {
	OrderID string `json:"orderId"`
	Phone   string `json:"phone"`
}

// ParseErrorReason classifies a malformed input line.
type ParseErrorReason string

const (
	// ReasonWrongColumnCount means the line split into fewer than two columns.
	ReasonWrongColumnCount ParseErrorReason = "wrong-column-count"
	// ReasonIncompleteFields means one of the first two columns is empty.
	ReasonIncompleteFields ParseErrorReason = "incomplete-fields"
)

// ParseError reports a single malformed line. Line numbers are 1-based
// positions in the raw input, blank lines included.
type ParseError struct {
	LineNumber int              `json:"lineNumber"`
	Reason     ParseErrorReason `json:"reason"`
}

func (e ParseError) Error() string {
	switch e.Reason {
	case ReasonIncompleteFields:
		return fmt.Sprintf("line %d: incomplete fields", e.LineNumber)
	case ReasonWrongColumnCount:
		return fmt.Sprintf("line %d: wrong column count, need order id and phone", e.LineNumber)
	default:
		return fmt.Sprintf("line %d: %s", e.LineNumber, e.Reason)
	}
}

// ParseResult is the outcome of parsing pasted text.
type ParseResult struct {
	Entries []Entry      `json:"entries"`
	Errors  []ParseError `json:"errors"`
}

// ImportResult describes a committed import.
type ImportResult struct {
	Added   []Record     `json:"added"`
	Skipped []ParseError `json:"skipped,omitempty"`
	Total   int          `json:"total"` // size of the record set after the import
}

// Page is one page of the record set. Page numbers are 1-based.
type Page struct {
	Records    []Record `json:"records"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
	Total      int      `json:"total"`
	Offset     int      `json:"offset"` // index of Records[0] within the set
}

// ChangeKind identifies a record set mutation.
type ChangeKind string

const (
	ChangeAppend ChangeKind = "append"
	ChangeClear  ChangeKind = "clear"
)

// Change is published to subscribers after every committed mutation.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Added int        `json:"added"`
	Total int        `json:"total"`
}

// KV is the persistence capability the record store needs.
// Satisfied by every backend in internal/kv.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Clipboard writes text to a system clipboard.
type Clipboard interface {
	WriteText(text string) error
}
