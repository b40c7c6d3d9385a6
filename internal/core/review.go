package core

// review.go drives sequential review of an ordered working set.
//
// A Review owns a cursor over a snapshot of records, the active payload mode
// and a RenderSlot. Every change of position or mode requests a new render;
// the slot guarantees the surface only ever shows the latest one.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrReviewNotFound is returned for an unknown or expired review id.
	ErrReviewNotFound = errors.New("review not found")

	// ErrEmptyReview is returned when starting a review over no records.
	ErrEmptyReview = errors.New("review has no records")
)

// ReviewOptions configures a new Review.
type ReviewOptions struct {
	ID        string
	Records   []Record
	Start     int
	Mode      PayloadMode
	BaseURL   string
	Renderer  Renderer
	Render    RenderOptions
	Clipboard Clipboard

	// OnRender is called after every applied render completion.
	OnRender func(Surface)
}

// Review is a cursor over records with an attached render slot.
type Review struct {
	id        string
	records   []Record
	baseURL   string
	clipboard Clipboard
	slot      *RenderSlot

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cursor   *Cursor
	mode     PayloadMode
	lastUsed time.Time
}

// NewReview creates a review positioned at opts.Start and requests the first
// render. Close releases it.
func NewReview(opts ReviewOptions) (*Review, error) {
	if len(opts.Records) == 0 {
		return nil, ErrEmptyReview
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeDirectDial
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewQRRenderer()
	}
	ropts := opts.Render
	if ropts.Size == 0 {
		ropts = DefaultRenderOptions()
	}

	records := make([]Record, len(opts.Records))
	copy(records, opts.Records)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Review{
		id:        opts.ID,
		records:   records,
		baseURL:   opts.BaseURL,
		clipboard: opts.Clipboard,
		slot:      NewRenderSlot(renderer, ropts, opts.OnRender),
		ctx:       ctx,
		cancel:    cancel,
		cursor:    NewCursor(len(records), opts.Start),
		mode:      mode,
		lastUsed:  time.Now(),
	}

	r.mu.Lock()
	r.rerender()
	r.mu.Unlock()
	return r, nil
}

// ID returns the review id assigned by the service, if any.
func (r *Review) ID() string { return r.id }

// Len returns the size of the working set.
func (r *Review) Len() int { return len(r.records) }

// Index returns the cursor position.
func (r *Review) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor.Index()
}

// Mode returns the active payload mode.
func (r *Review) Mode() PayloadMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Current returns the record under the cursor.
func (r *Review) Current() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[r.cursor.Index()]
}

// AtStart reports whether Retreat would do nothing.
func (r *Review) AtStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor.AtStart()
}

// AtEnd reports whether Advance would do nothing.
func (r *Review) AtEnd() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor.AtEnd()
}

// Advance moves to the next record. It is a no-op on the last one.
func (r *Review) Advance() bool {
	return r.move(r.cursor.Advance)
}

// Retreat moves to the previous record. It is a no-op on the first one.
func (r *Review) Retreat() bool {
	return r.move(r.cursor.Retreat)
}

// Seek moves to index i, clamped into range.
func (r *Review) Seek(i int) bool {
	return r.move(func() bool { return r.cursor.Seek(i) })
}

func (r *Review) move(step func() bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUsed = time.Now()
	if !step() {
		return false
	}
	r.rerender()
	return true
}

// SetMode switches the payload mode and re-renders if it changed.
func (r *Review) SetMode(m PayloadMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(m))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUsed = time.Now()
	if m == r.mode {
		return nil
	}
	r.mode = m
	r.rerender()
	return nil
}

// ToggleMode switches to the other payload mode.
func (r *Review) ToggleMode() PayloadMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUsed = time.Now()
	r.mode = r.mode.Toggle()
	r.rerender()
	return r.mode
}

// rerender requests a render for the current record and mode. Called with mu held.
func (r *Review) rerender() {
	rec := r.records[r.cursor.Index()]
	payload, err := BuildPayload(rec, r.mode, r.baseURL)
	if err != nil {
		// Unreachable with a validated mode; render an empty payload so the
		// surface carries an error instead of a stale image.
		slog.Error("build payload failed", "review", r.id, "error", err)
		payload = ""
	}
	r.slot.Request(r.ctx, payload)
}

// Payload returns the payload for the current record and mode.
func (r *Review) Payload() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return BuildPayload(r.records[r.cursor.Index()], r.mode, r.baseURL)
}

// Surface returns what the render slot currently shows.
func (r *Review) Surface() Surface { return r.slot.Surface() }

// Wait blocks until the latest render completes.
func (r *Review) Wait(ctx context.Context) (Surface, error) { return r.slot.Wait(ctx) }

// FileName returns the export name for the current record.
func (r *Review) FileName() string { return ExportFileName(r.Current()) }

// Export writes the current code as PNG and returns the export name of the
// record it shows. It fails while a render is pending or after a failed render.
// Record and surface are read under one lock: every move requests its render
// while holding mu, so the pair always belongs together.
func (r *Review) Export(w io.Writer) (string, error) {
	r.mu.Lock()
	r.lastUsed = time.Now()
	rec := r.records[r.cursor.Index()]
	surface := r.slot.Surface()
	r.mu.Unlock()

	if err := surface.export(w); err != nil {
		return "", err
	}
	return ExportFileName(rec), nil
}

// CopyOrderID copies the current order id to the clipboard without blocking.
// Failures are logged and never surfaced.
func (r *Review) CopyOrderID() {
	r.touch()
	if r.clipboard == nil {
		slog.Warn("clipboard unavailable", "review", r.id)
		return
	}
	orderID := r.Current().OrderID
	go func() {
		if err := r.clipboard.WriteText(orderID); err != nil {
			slog.Warn("clipboard write failed", "review", r.id, "error", err)
			return
		}
		slog.Debug("order id copied", "review", r.id, "order_id", orderID)
	}()
}

func (r *Review) touch() {
	r.mu.Lock()
	r.lastUsed = time.Now()
	r.mu.Unlock()
}

// LastUsed returns when the review was last interacted with.
func (r *Review) LastUsed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUsed
}

// Close cancels any render in flight.
func (r *Review) Close() {
	r.cancel()
}
