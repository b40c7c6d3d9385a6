package core

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"strings"
)

// ErrNoImage is returned when encoding a raster that was never rendered.
var ErrNoImage = errors.New("no image to export")

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_")

// ExportFileName returns the download name for rec's code:
// qrcode-<orderId>-<phone>.png. Path separators are replaced so the name
// never escapes the download directory.
func ExportFileName(rec Record) string {
	return fileNameReplacer.Replace("qrcode-" + rec.OrderID + "-" + rec.Phone + ".png")
}

// EncodePNG writes r as a PNG image.
func EncodePNG(w io.Writer, r Raster) error {
	if r.Image == nil {
		return ErrNoImage
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, r.Image); err != nil {
		return fmt.Errorf("export failed: encode png: %w", err)
	}
	return nil
}
