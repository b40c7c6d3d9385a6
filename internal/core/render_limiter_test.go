package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRenderLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRenderLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Available(); got != 2 {
		t.Errorf("initial Available = %d, want 2", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := limiter.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after Release, ActiveCount = %d, want 0", got)
	}
}

func TestRenderLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewRenderLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyRenders) {
		t.Errorf("expected ErrTooManyRenders, got %v", err)
	}
	if got := MapError(err).Code; got != "RATE001" {
		t.Errorf("MapError code = %q, want RATE001", got)
	}
}

func TestRenderLimiter_ContextCancelled(t *testing.T) {
	limiter := NewRenderLimiter(1, time.Second)

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRenderLimiter_Wrap(t *testing.T) {
	const maxConcurrent = 2
	limiter := NewRenderLimiter(maxConcurrent, time.Second)

	var mu sync.Mutex
	running, maxObserved := 0, 0
	inner := RendererFunc(func(ctx context.Context, payload string, opts RenderOptions) (Raster, error) {
		mu.Lock()
		running++
		maxObserved = max(maxObserved, running)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return Raster{}, nil
	})

	r := limiter.Wrap(inner)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Render(context.Background(), "tel:1", DefaultRenderOptions()); err != nil {
				t.Errorf("Render failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("exceeded max concurrent: observed %d, max %d", maxObserved, maxConcurrent)
	}
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("final ActiveCount = %d, want 0", got)
	}
}

func TestRenderLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRenderLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v, want nil", err)
	}
}
