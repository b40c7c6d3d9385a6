package core

// render.go wraps the QR encoder behind the Renderer capability.
//
// The encoder only produces the module matrix; rasterizing is done here so the
// quiet zone and the exact pixel size are under our control. Pixels are mapped
// back to modules proportionally, so a 200px image of a 29-module code has
// modules of 6 or 7 pixels rather than a scaled-down 196px image.

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Default visual parameters for exported codes.
const (
	DefaultCodeSize   = 200
	DefaultCodeMargin = 2
)

// ErrEmptyPayload is returned when asked to render nothing.
var ErrEmptyPayload = errors.New("empty payload")

// RenderOptions controls how a payload is drawn.
type RenderOptions struct {
	Size   int // edge length in pixels
	Margin int // quiet zone in modules
	Dark   color.Color
	Light  color.Color
}

// DefaultRenderOptions returns a 200px black-on-white code with a 2 module margin.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Size:   DefaultCodeSize,
		Margin: DefaultCodeMargin,
		Dark:   color.Black,
		Light:  color.White,
	}
}

// Raster is a rendered code: the image plus the module matrix it was drawn
// from (quiet zone included), which text frontends draw directly.
type Raster struct {
	Image   *image.Paletted
	Modules [][]bool
}

// Blocks draws the module matrix with half-block characters, two module rows
// per text line. With inverse set, dark modules are left blank, which is what
// scans on a dark terminal background.
func (r Raster) Blocks(inverse bool) string {
	n := len(r.Modules)
	dark := func(y, x int) bool {
		if y >= n {
			return inverse
		}
		return r.Modules[y][x] != inverse
	}

	var b strings.Builder
	for y := 0; y < n; y += 2 {
		for x := 0; x < n; x++ {
			top, bottom := dark(y, x), dark(y+1, x)
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderError wraps a failure of the underlying renderer.
type RenderError struct {
	Payload string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer draws a payload into a raster.
type Renderer interface {
	Render(ctx context.Context, payload string, opts RenderOptions) (Raster, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, payload string, opts RenderOptions) (Raster, error)

func (f RendererFunc) Render(ctx context.Context, payload string, opts RenderOptions) (Raster, error) {
	return f(ctx, payload, opts)
}

// QRRenderer renders payloads as QR codes.
type QRRenderer struct {
	Level qrcode.RecoveryLevel
}

// NewQRRenderer returns a renderer using medium (15%) error correction.
func NewQRRenderer() *QRRenderer {
	return &QRRenderer{Level: qrcode.Medium}
}

// Render encodes payload and rasterizes it according to opts.
func (r *QRRenderer) Render(ctx context.Context, payload string, opts RenderOptions) (Raster, error) {
	if err := ctx.Err(); err != nil {
		return Raster{}, err
	}
	if payload == "" {
		return Raster{}, &RenderError{Err: ErrEmptyPayload}
	}

	q, err := qrcode.New(payload, r.Level)
	if err != nil {
		return Raster{}, &RenderError{Payload: payload, Err: err}
	}
	q.DisableBorder = true

	modules := withQuietZone(q.Bitmap(), max(opts.Margin, 0))
	if opts.Size < len(modules) {
		return Raster{}, &RenderError{
			Payload: payload,
			Err:     fmt.Errorf("size %dpx is smaller than %d modules", opts.Size, len(modules)),
		}
	}

	return Raster{Image: rasterize(modules, opts), Modules: modules}, nil
}

// withQuietZone surrounds bits with margin light modules on every side.
func withQuietZone(bits [][]bool, margin int) [][]bool {
	n := len(bits) + 2*margin
	out := make([][]bool, n)
	for y := range out {
		out[y] = make([]bool, n)
	}
	for y, row := range bits {
		copy(out[y+margin][margin:], row)
	}
	return out
}

// rasterize draws modules into a two-colour paletted image of opts.Size pixels.
func rasterize(modules [][]bool, opts RenderOptions) *image.Paletted {
	light, dark := opts.Light, opts.Dark
	if light == nil {
		light = color.White
	}
	if dark == nil {
		dark = color.Black
	}

	size, n := opts.Size, len(modules)
	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{light, dark})
	for y := 0; y < size; y++ {
		row := modules[y*n/size]
		for x := 0; x < size; x++ {
			if row[x*n/size] {
				img.SetColorIndex(x, y, 1)
			}
		}
	}
	return img
}
