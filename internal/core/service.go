package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoInput is returned when the pasted text is empty or whitespace.
	ErrNoInput = errors.New("no input provided")

	// ErrNoValidRows is wrapped by ImportError when no line could be parsed.
	ErrNoValidRows = errors.New("no valid rows")
)

// ImportError reports an import where every non-blank line was malformed.
// Nothing is committed.
type ImportError struct {
	Errors []ParseError
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNoValidRows, SummarizeParseErrors(e.Errors, 3))
}

func (e *ImportError) Unwrap() error { return ErrNoValidRows }

// ServiceConfig holds the knobs the frontends share.
type ServiceConfig struct {
	// BaseURL prefixes link-redirect payloads. When empty, the origin passed
	// by the caller is used.
	BaseURL     string
	DefaultMode PayloadMode
	Render      RenderOptions
	PageSize    int
}

// Service is the entry point for every frontend: import, browse, render,
// and review.
type Service struct {
	store     *RecordStore
	renderer  Renderer
	clipboard Clipboard
	cfg       ServiceConfig

	mu      sync.RWMutex
	reviews map[string]*Review
}

// NewService wires a loaded record store to a renderer.
func NewService(store *RecordStore, renderer Renderer, cfg ServiceConfig) *Service {
	if renderer == nil {
		renderer = NewQRRenderer()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = ModeDirectDial
	}
	if cfg.Render.Size == 0 {
		cfg.Render = DefaultRenderOptions()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &Service{
		store:    store,
		renderer: renderer,
		cfg:      cfg,
		reviews:  make(map[string]*Review),
	}
}

// SetClipboard sets the clipboard used by reviews started afterwards.
func (s *Service) SetClipboard(c Clipboard) {
	s.mu.Lock()
	s.clipboard = c
	s.mu.Unlock()
}

// Store exposes the underlying record store.
func (s *Service) Store() *RecordStore { return s.store }

// DefaultMode returns the configured payload mode.
func (s *Service) DefaultMode() PayloadMode { return s.cfg.DefaultMode }

// PageSize returns the configured page size.
func (s *Service) PageSize() int { return s.cfg.PageSize }

// BaseURL returns the configured base URL, or origin if none is configured.
func (s *Service) BaseURL(origin string) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	return strings.TrimRight(origin, "/")
}

// Import parses raw text and appends every valid line in one commit.
// Blank input returns ErrNoInput; input without any valid line returns an
// *ImportError and changes nothing. Malformed lines alongside valid ones are
// reported in ImportResult.Skipped.
func (s *Service) Import(ctx context.Context, raw string) (ImportResult, error) {
	if strings.TrimSpace(raw) == "" {
		return ImportResult{}, ErrNoInput
	}

	parsed := Parse(raw)
	if len(parsed.Entries) == 0 {
		return ImportResult{}, &ImportError{Errors: parsed.Errors}
	}

	start := time.Now()
	added, err := s.store.Append(ctx, parsed.Entries)
	if err != nil {
		return ImportResult{}, err
	}

	slog.Info("records imported",
		"added", len(added),
		"skipped", len(parsed.Errors),
		"client_ip", ClientIPFromContext(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return ImportResult{
		Added:   added,
		Skipped: parsed.Errors,
		Total:   s.store.Len(),
	}, nil
}

// ImportReader imports text read from r, stripping a BOM and replacing
// invalid UTF-8. limit bounds the raw size in bytes.
func (s *Service) ImportReader(ctx context.Context, r io.Reader, limit int64) (ImportResult, error) {
	text, err := ReadImportText(r, limit)
	if err != nil {
		return ImportResult{}, err
	}
	return s.Import(ctx, text)
}

// Clear removes every record and closes all reviews over them.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.closeAllReviews()
	slog.Info("records cleared", "client_ip", ClientIPFromContext(ctx))
	return nil
}

// Page returns the 1-based page of records at the configured page size.
func (s *Service) Page(page int) Page {
	return s.store.Page(page, s.cfg.PageSize)
}

// Records returns every record in insertion order.
func (s *Service) Records() []Record {
	return s.store.Snapshot()
}

// Record looks up a record by id.
func (s *Service) Record(id string) (Record, error) {
	rec, _, err := s.store.Get(id)
	return rec, err
}

// Payload builds the payload for record id.
func (s *Service) Payload(id string, mode PayloadMode, origin string) (Record, string, error) {
	rec, err := s.Record(id)
	if err != nil {
		return Record{}, "", err
	}
	payload, err := BuildPayload(rec, mode, s.BaseURL(origin))
	if err != nil {
		return Record{}, "", err
	}
	return rec, payload, nil
}

// RenderCode renders the code for record id synchronously.
func (s *Service) RenderCode(ctx context.Context, id string, mode PayloadMode, origin string) (Record, Raster, error) {
	rec, payload, err := s.Payload(id, mode, origin)
	if err != nil {
		return Record{}, Raster{}, err
	}
	raster, err := s.renderer.Render(ctx, payload, s.cfg.Render)
	if err != nil {
		return rec, Raster{}, err
	}
	return rec, raster, nil
}

// WriteCodePNG renders record id and writes it to w as PNG.
func (s *Service) WriteCodePNG(ctx context.Context, w io.Writer, id string, mode PayloadMode, origin string) (Record, error) {
	rec, raster, err := s.RenderCode(ctx, id, mode, origin)
	if err != nil {
		return rec, err
	}
	return rec, EncodePNG(w, raster)
}

// StartReview opens a review over the whole record set positioned at the
// record with startID, or at the first record when startID is empty.
func (s *Service) StartReview(startID string, mode PayloadMode, origin string, onRender func(Surface)) (*Review, error) {
	records := s.store.Snapshot()
	if len(records) == 0 {
		return nil, ErrEmptyReview
	}

	start := 0
	if startID != "" {
		_, i, err := s.store.Get(startID)
		if err != nil {
			return nil, err
		}
		start = i
	}
	if mode == "" {
		mode = s.cfg.DefaultMode
	}

	s.mu.RLock()
	clip := s.clipboard
	s.mu.RUnlock()

	rv, err := NewReview(ReviewOptions{
		ID:        uuid.NewString(),
		Records:   records,
		Start:     start,
		Mode:      mode,
		BaseURL:   s.BaseURL(origin),
		Renderer:  s.renderer,
		Render:    s.cfg.Render,
		Clipboard: clip,
		OnRender:  onRender,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.reviews[rv.ID()] = rv
	s.mu.Unlock()

	slog.Debug("review started", "review", rv.ID(), "records", rv.Len(), "start", start)
	return rv, nil
}

// Review returns an open review.
func (s *Service) Review(id string) (*Review, error) {
	s.mu.RLock()
	rv, ok := s.reviews[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, id)
	}
	return rv, nil
}

// CloseReview closes and forgets a review. Unknown ids are ignored.
func (s *Service) CloseReview(id string) {
	s.mu.Lock()
	rv, ok := s.reviews[id]
	delete(s.reviews, id)
	s.mu.Unlock()
	if ok {
		rv.Close()
	}
}

// ReviewCount returns the number of open reviews.
func (s *Service) ReviewCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

// ExpireReviews closes reviews idle since before cutoff and returns how many
// were closed.
func (s *Service) ExpireReviews(cutoff time.Time) int {
	var expired []*Review

	s.mu.Lock()
	for id, rv := range s.reviews {
		if rv.LastUsed().Before(cutoff) {
			expired = append(expired, rv)
			delete(s.reviews, id)
		}
	}
	s.mu.Unlock()

	for _, rv := range expired {
		rv.Close()
	}
	return len(expired)
}

func (s *Service) closeAllReviews() {
	s.mu.Lock()
	reviews := s.reviews
	s.reviews = make(map[string]*Review)
	s.mu.Unlock()

	for _, rv := range reviews {
		rv.Close()
	}
}

// Close releases every open review.
func (s *Service) Close() {
	s.closeAllReviews()
}
