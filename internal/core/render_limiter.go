package core

// render_limiter.go bounds how many codes are rasterized at once.
//
// Rendering is CPU bound and every HTTP request for a code image triggers one,
// so the limiter keeps a burst of page loads from starving the server. When
// all slots are busy, callers wait up to maxWait before failing with
// ErrTooManyRenders.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRenders is returned when no render slot frees up within the wait
// timeout. Clients should retry after a short delay.
var ErrTooManyRenders = errors.New("too many renders in progress, rate limit reached")

// DefaultMaxConcurrentRenders is the default limit for parallel renders.
const DefaultMaxConcurrentRenders = 4

// DefaultMaxRenderWait is how long to wait for a slot before rejecting.
const DefaultMaxRenderWait = 5 * time.Second

// RenderLimiter controls concurrent renders using a semaphore.
type RenderLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewRenderLimiter creates a limiter allowing at most maxConcurrent renders.
func NewRenderLimiter(maxConcurrent int, maxWait time.Duration) *RenderLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRenders
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxRenderWait
	}

	return &RenderLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a render slot. The caller must call Release when done.
func (l *RenderLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRenders
	}
}

// Release frees a slot taken by Acquire.
func (l *RenderLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of renders in progress.
func (l *RenderLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *RenderLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no render is in progress or ctx is done.
// Used during shutdown.
func (l *RenderLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wrap returns a Renderer that holds a slot for the duration of each render.
func (l *RenderLimiter) Wrap(r Renderer) Renderer {
	return RendererFunc(func(ctx context.Context, payload string, opts RenderOptions) (Raster, error) {
		if err := l.Acquire(ctx); err != nil {
			return Raster{}, err
		}
		defer l.Release()
		return r.Render(ctx, payload, opts)
	})
}
