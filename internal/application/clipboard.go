package application

import (
	"errors"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnsupported is returned when no clipboard utility is available,
// e.g. on a headless Linux box without xclip, xsel or wl-clipboard.
var ErrClipboardUnsupported = errors.New("clipboard unsupported on this system")

// SystemClipboard is the operating system clipboard.
type SystemClipboard struct{}

// WriteText implements core.Clipboard.
func (SystemClipboard) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// ReadText returns the clipboard contents.
func (SystemClipboard) ReadText() (string, error) {
	if clipboard.Unsupported {
		return "", ErrClipboardUnsupported
	}
	return clipboard.ReadAll()
}
