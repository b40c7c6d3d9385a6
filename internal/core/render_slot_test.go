package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// gatedRenderer blocks each render until its payload is released.
type gatedRenderer struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedRenderer() *gatedRenderer {
	return &gatedRenderer{gates: map[string]chan struct{}{}}
}

func (g *gatedRenderer) gate(payload string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[payload]
	if !ok {
		ch = make(chan struct{})
		g.gates[payload] = ch
	}
	return ch
}

func (g *gatedRenderer) release(payload string) { close(g.gate(payload)) }

func (g *gatedRenderer) Render(ctx context.Context, payload string, _ RenderOptions) (Raster, error) {
	select {
	case <-g.gate(payload):
	case <-ctx.Done():
		return Raster{}, ctx.Err()
	}
	if payload == "fail" {
		return Raster{}, errors.New("data too long")
	}
	img := image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.White, color.Black})
	return Raster{Image: img, Modules: [][]bool{{true}}}, nil
}

func waitSurface(t *testing.T, s *RenderSlot) Surface {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	surface, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return surface
}

func TestRenderSlot_LatestRequestWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	slot := NewRenderSlot(r, DefaultRenderOptions(), nil)
	ctx := context.Background()

	slot.Request(ctx, "a")
	gen := slot.Request(ctx, "b")

	r.release("b")
	surface := waitSurface(t, slot)
	if surface.Payload != "b" || !surface.Ready() {
		t.Fatalf("surface = %+v, want ready render of b", surface)
	}

	// The superseded render finishing late must not replace b.
	r.release("a")
	goleak.VerifyNone(t)

	got := slot.Surface()
	if got.Payload != "b" || got.Generation != gen {
		t.Errorf("stale completion applied: payload %q generation %d", got.Payload, got.Generation)
	}
}

func TestRenderSlot_RequestClearsSurface(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	slot := NewRenderSlot(r, DefaultRenderOptions(), nil)
	ctx := context.Background()

	slot.Request(ctx, "a")
	r.release("a")
	if !waitSurface(t, slot).Ready() {
		t.Fatal("first render should be ready")
	}

	slot.Request(ctx, "b")
	surface := slot.Surface()
	if !surface.Pending || surface.Raster.Image != nil {
		t.Errorf("surface after Request = %+v, want pending with no image", surface)
	}
	if err := slot.Export(&bytes.Buffer{}); !errors.Is(err, ErrRenderPending) {
		t.Errorf("Export() while pending = %v, want ErrRenderPending", err)
	}

	r.release("b")
	waitSurface(t, slot)
}

func TestRenderSlot_FailureBlocksExportUntilNextSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	slot := NewRenderSlot(r, DefaultRenderOptions(), nil)
	ctx := context.Background()

	slot.Request(ctx, "fail")
	r.release("fail")
	surface := waitSurface(t, slot)

	var re *RenderError
	if !errors.As(surface.Err, &re) {
		t.Fatalf("surface.Err = %v, want *RenderError", surface.Err)
	}
	if err := slot.Export(&bytes.Buffer{}); !errors.Is(err, ErrExportBlocked) {
		t.Errorf("Export() after failure = %v, want ErrExportBlocked", err)
	}

	slot.Request(ctx, "ok")
	r.release("ok")
	waitSurface(t, slot)

	var buf bytes.Buffer
	if err := slot.Export(&buf); err != nil {
		t.Fatalf("Export() after success = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Export() wrote nothing")
	}
}

func TestRenderSlot_ExportBeforeAnyRender(t *testing.T) {
	slot := NewRenderSlot(newGatedRenderer(), DefaultRenderOptions(), nil)
	if err := slot.Export(&bytes.Buffer{}); !errors.Is(err, ErrExportBlocked) {
		t.Errorf("Export() = %v, want ErrExportBlocked", err)
	}
}

func TestRenderSlot_WaitFollowsNewerRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	slot := NewRenderSlot(r, DefaultRenderOptions(), nil)
	ctx := context.Background()

	slot.Request(ctx, "a")

	result := make(chan Surface, 1)
	go func() {
		s, _ := slot.Wait(ctx)
		result <- s
	}()

	slot.Request(ctx, "b")
	r.release("a")
	r.release("b")

	select {
	case s := <-result:
		if s.Payload != "b" {
			t.Errorf("Wait() returned payload %q, want b", s.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return")
	}
}

func TestRenderSlot_WaitContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	slot := NewRenderSlot(r, DefaultRenderOptions(), nil)

	renderCtx, stop := context.WithCancel(context.Background())
	slot.Request(renderCtx, "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := slot.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}

	stop()
	waitSurface(t, slot)
}

func TestRenderSlot_OnUpdate(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newGatedRenderer()
	updates := make(chan Surface, 4)
	slot := NewRenderSlot(r, DefaultRenderOptions(), func(s Surface) { updates <- s })

	slot.Request(context.Background(), "a")
	r.release("a")

	select {
	case s := <-updates:
		if s.Payload != "a" || !s.Ready() {
			t.Errorf("update = %+v, want ready render of a", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onUpdate was not called")
	}
}
