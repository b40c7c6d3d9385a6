package core

// parser.go turns text pasted from a spreadsheet into entries.
//
// Spreadsheet copies are tab separated, but hand-typed or re-pasted text often
// aligns columns with spaces instead. A run of tabs or a run of two or more
// spaces is therefore treated as a delimiter, while a single space stays part
// of the field ("ORD 001" is one order id).

import (
	"regexp"
	"strings"
)

var columnDelimiter = regexp.MustCompile(`\t+| {2,}`)

// Parse splits raw text into entries and per-line errors.
// Blank lines are skipped silently but still count toward line numbers,
// leading ones included, so a reported line matches the line the user sees
// in the pasted text. Only the first two columns of a line are used; extra
// columns are ignored. Parse is pure: the same input always produces the
// same result.
func Parse(raw string) ParseResult {
	var result ParseResult

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		entry, reason, ok := parseLine(line)
		if !ok {
			result.Errors = append(result.Errors, ParseError{LineNumber: i + 1, Reason: reason})
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	return result
}

// parseLine splits one trimmed, non-empty line.
func parseLine(line string) (Entry, ParseErrorReason, bool) {
	cols := columnDelimiter.Split(line, 3)
	if len(cols) < 2 {
		return Entry{}, ReasonWrongColumnCount, false
	}

	orderID := strings.TrimSpace(cols[0])
	phone := strings.TrimSpace(cols[1])
	if orderID == "" || phone == "" {
		return Entry{}, ReasonIncompleteFields, false
	}

	return Entry{OrderID: orderID, Phone: phone}, "", true
}

// SummarizeParseErrors renders up to limit errors for display, joined with
// "; " and followed by "..." when more were omitted.
func SummarizeParseErrors(errs []ParseError, limit int) string {
	if len(errs) == 0 {
		return ""
	}
	if limit <= 0 || limit > len(errs) {
		limit = len(errs)
	}

	parts := make([]string, limit)
	for i := range limit {
		parts[i] = errs[i].Error()
	}

	summary := strings.Join(parts, "; ")
	if len(errs) > limit {
		summary += "..."
	}
	return summary
}
