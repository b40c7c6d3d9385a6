package core

// render_slot.go implements the single-slot asynchronous render.
//
// A frontend shows one code at a time, but the record or mode behind it can
// change again before the previous render finishes. Every Request bumps a
// generation counter and clears the visible surface; a completion is applied
// only if its generation is still the latest. Stale completions are dropped,
// so the surface always reflects the most recent request and never shows an
// image for a payload that is no longer active.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrRenderPending is returned when exporting before the latest render finished.
	ErrRenderPending = errors.New("render pending")

	// ErrExportBlocked is returned when the latest render failed or nothing was rendered.
	ErrExportBlocked = errors.New("export blocked until a successful render")
)

// Surface is a snapshot of what the slot currently shows.
type Surface struct {
	Generation uint64
	Payload    string
	Raster     Raster
	Err        error
	Pending    bool
}

// Ready reports whether the surface holds a successfully rendered image.
func (s Surface) Ready() bool {
	return !s.Pending && s.Err == nil && s.Raster.Image != nil
}

// RenderSlot runs renders for a single consumer surface.
type RenderSlot struct {
	renderer Renderer
	opts     RenderOptions
	onUpdate func(Surface)

	mu      sync.Mutex
	surface Surface
	done    chan struct{} // closed when surface stops being pending
}

// NewRenderSlot creates an idle slot. onUpdate, if non-nil, is called with
// the new surface after every applied completion.
func NewRenderSlot(renderer Renderer, opts RenderOptions, onUpdate func(Surface)) *RenderSlot {
	done := make(chan struct{})
	close(done)
	return &RenderSlot{
		renderer: renderer,
		opts:     opts,
		onUpdate: onUpdate,
		done:     done,
	}
}

// Request starts rendering payload, superseding any render in flight, and
// returns the generation assigned to it.
func (s *RenderSlot) Request(ctx context.Context, payload string) uint64 {
	s.mu.Lock()
	gen := s.surface.Generation + 1
	s.surface = Surface{Generation: gen, Payload: payload, Pending: true}
	prev := s.done
	s.done = make(chan struct{})
	s.mu.Unlock()

	// Wake anyone waiting on the superseded request so they re-check.
	closeOnce(prev)

	go func() {
		raster, err := s.renderer.Render(ctx, payload, s.opts)
		s.complete(gen, raster, err)
	}()

	return gen
}

// complete applies a finished render if it is still the latest request.
func (s *RenderSlot) complete(gen uint64, raster Raster, err error) {
	s.mu.Lock()
	if gen != s.surface.Generation {
		s.mu.Unlock()
		slog.Debug("render superseded", "generation", gen)
		return
	}

	if err != nil {
		var re *RenderError
		if !errors.As(err, &re) {
			err = &RenderError{Payload: s.surface.Payload, Err: err}
		}
		s.surface.Err = err
		slog.Warn("render failed", "generation", gen, "error", err)
	} else {
		s.surface.Raster = raster
	}
	s.surface.Pending = false
	surface := s.surface
	done := s.done
	s.mu.Unlock()

	closeOnce(done)

	if s.onUpdate != nil {
		s.onUpdate(surface)
	}
}

// Surface returns the current surface without blocking.
func (s *RenderSlot) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Generation returns the generation of the latest request.
func (s *RenderSlot) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.Generation
}

// Wait blocks until the latest request completes, following any requests
// issued while waiting, and returns the resulting surface.
func (s *RenderSlot) Wait(ctx context.Context) (Surface, error) {
	for {
		s.mu.Lock()
		surface, done := s.surface, s.done
		s.mu.Unlock()

		if !surface.Pending {
			return surface, nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return surface, ctx.Err()
		}
	}
}

// Export writes the current image as PNG. It fails while a render is pending
// and after a failed render, so a stale or missing image is never exported.
func (s *RenderSlot) Export(w io.Writer) error {
	return s.Surface().export(w)
}

func (s Surface) export(w io.Writer) error {
	switch {
	case s.Pending:
		return ErrRenderPending
	case s.Err != nil:
		return fmt.Errorf("%w: %w", ErrExportBlocked, s.Err)
	case s.Raster.Image == nil:
		return ErrExportBlocked
	}
	return EncodePNG(w, s.Raster)
}

// closeOnce closes ch unless it is already closed. Callers only ever close
// channels they took out of the slot under the lock, and each channel is
// closed either by supersession or completion, never both, but the check
// keeps a double close from panicking.
func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
