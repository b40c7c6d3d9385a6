package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknownMode is returned for a payload mode outside the enumeration.
var ErrUnknownMode = errors.New("unknown payload mode")

// PayloadMode selects what a scanned code does.
type PayloadMode string

const (
	// ModeDirectDial encodes a tel: URI so scanning dials immediately.
	ModeDirectDial PayloadMode = "direct-dial"
	// ModeLinkRedirect encodes a link to the confirmation page.
	ModeLinkRedirect PayloadMode = "link-redirect"
)

// Modes lists every payload mode in display order.
var Modes = []PayloadMode{ModeDirectDial, ModeLinkRedirect}

// ParsePayloadMode converts user input into a PayloadMode.
func ParsePayloadMode(s string) (PayloadMode, error) {
	m := PayloadMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the known modes.
func (m PayloadMode) Valid() bool {
	return m == ModeDirectDial || m == ModeLinkRedirect
}

// Toggle returns the other mode.
func (m PayloadMode) Toggle() PayloadMode {
	if m == ModeLinkRedirect {
		return ModeDirectDial
	}
	return ModeLinkRedirect
}

// Label is the human-readable name shown in the UIs.
func (m PayloadMode) Label() string {
	switch m {
	case ModeDirectDial:
		return "Direct dial"
	case ModeLinkRedirect:
		return "Confirmation link"
	default:
		return string(m)
	}
}

// ExtensionMarker separates a main number from its extension in domestic
// notation ("转" reads "transfer to").
const ExtensionMarker = "转"

// dialPause is the dialer's pause-then-continue separator.
const dialPause = ","

// NormalizePhone replaces every extension marker with a dialer pause.
func NormalizePhone(phone string) string {
	return strings.ReplaceAll(phone, ExtensionMarker, dialPause)
}

// CallPath is the route served by the confirmation page.
const CallPath = "/call"

// BuildPayload returns the exact string to encode for rec in the given mode.
// baseURL is only used by ModeLinkRedirect and is taken verbatim.
func BuildPayload(rec Record, mode PayloadMode, baseURL string) (string, error) {
	phone := NormalizePhone(rec.Phone)

	switch mode {
	case ModeDirectDial:
		return "tel:" + phone, nil
	case ModeLinkRedirect:
		return baseURL + CallPath + "?phone=" + encodeComponent(phone) +
			"&orderId=" + encodeComponent(rec.OrderID), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

// encodeComponent escapes s for use as a query value. Spaces become %20
// rather than '+', matching what browsers' encodeURIComponent produces, so
// links decode identically everywhere. QueryEscape already turns a literal
// '+' into %2B, which keeps the replacement unambiguous.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
