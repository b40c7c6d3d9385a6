package core

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestService(t *testing.T) (*Service, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	svc := NewService(newLoadedStore(t, kv), NewQRRenderer(), ServiceConfig{BaseURL: "https://x.test"})
	t.Cleanup(svc.Close)
	return svc, kv
}

func TestService_Import(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Import(context.Background(), "A1\t138\nbad line\nA2  139\n")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	want := ImportResult{
		Added:   []Record{{OrderID: "A1", Phone: "138"}, {OrderID: "A2", Phone: "139"}},
		Skipped: []ParseError{{LineNumber: 2, Reason: ReasonWrongColumnCount}},
		Total:   2,
	}
	if diff := cmp.Diff(want, res, cmpopts.IgnoreFields(Record{}, "ID")); diff != "" {
		t.Errorf("Import() mismatch (-want +got):\n%s", diff)
	}
}

func TestService_ImportNoInput(t *testing.T) {
	svc, kv := newTestService(t)

	for _, raw := range []string{"", "  \n\t\n"} {
		if _, err := svc.Import(context.Background(), raw); !errors.Is(err, ErrNoInput) {
			t.Errorf("Import(%q) = %v, want ErrNoInput", raw, err)
		}
	}
	if kv.sets != 0 {
		t.Errorf("store written %d times, want 0", kv.sets)
	}
}

func TestService_ImportNoValidRows(t *testing.T) {
	svc, kv := newTestService(t)

	_, err := svc.Import(context.Background(), "only\nA1\t \tx")
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("Import() = %v, want ErrNoValidRows", err)
	}

	var ie *ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("Import() error type = %T, want *ImportError", err)
	}
	want := []ParseError{
		{LineNumber: 1, Reason: ReasonWrongColumnCount},
		{LineNumber: 2, Reason: ReasonIncompleteFields},
	}
	if diff := cmp.Diff(want, ie.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
	if svc.Store().Len() != 0 || kv.sets != 0 {
		t.Error("nothing should be committed")
	}
}

func TestService_ImportStoreFailure(t *testing.T) {
	svc, kv := newTestService(t)
	kv.failSet = errors.New("disk full")

	_, err := svc.Import(context.Background(), "A1\t138")
	if err == nil {
		t.Fatal("Import() should fail when the store write fails")
	}
	if got := MapError(err).Code; got != "STO003" {
		t.Errorf("MapError code = %q, want STO003", got)
	}
	if svc.Store().Len() != 0 {
		t.Error("failed import must not change the set")
	}
}

func TestService_ImportReader(t *testing.T) {
	svc, _ := newTestService(t)

	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte("A1\t138\n")...)
	res, err := svc.ImportReader(context.Background(), bytes.NewReader(body), 1024)
	if err != nil {
		t.Fatalf("ImportReader() error = %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].OrderID != "A1" {
		t.Errorf("Added = %+v, want A1 without BOM", res.Added)
	}
}

func TestService_Clear(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "A1\t138"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.StartReview("", ModeDirectDial, "", nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if svc.Store().Len() != 0 {
		t.Error("records remain after Clear")
	}
	if svc.ReviewCount() != 0 {
		t.Error("reviews remain after Clear")
	}
}

func TestService_Payload(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newLoadedStore(t, newFakeKV()), nil, ServiceConfig{})

	res, err := svc.Import(ctx, "A&B\t138")
	if err != nil {
		t.Fatal(err)
	}
	id := res.Added[0].ID

	_, payload, err := svc.Payload(id, ModeLinkRedirect, "http://host:8080/")
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if want := "http://host:8080/call?phone=138&orderId=A%26B"; payload != want {
		t.Errorf("Payload() = %q, want %q", payload, want)
	}

	if _, _, err := svc.Payload("missing", ModeDirectDial, ""); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Payload(missing) = %v, want ErrRecordNotFound", err)
	}
}

func TestService_WriteCodePNG(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Import(ctx, "A1\t138转5")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	rec, err := svc.WriteCodePNG(ctx, &buf, res.Added[0].ID, ModeDirectDial, "")
	if err != nil {
		t.Fatalf("WriteCodePNG() error = %v", err)
	}
	if ExportFileName(rec) != "qrcode-A1-138转5.png" {
		t.Errorf("file name = %q", ExportFileName(rec))
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != DefaultCodeSize || img.Bounds().Dy() != DefaultCodeSize {
		t.Errorf("image bounds = %v, want %dx%d", img.Bounds(), DefaultCodeSize, DefaultCodeSize)
	}
}

func TestService_Reviews(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.StartReview("", "", "", nil); !errors.Is(err, ErrEmptyReview) {
		t.Errorf("StartReview() on empty set = %v, want ErrEmptyReview", err)
	}

	res, err := svc.Import(ctx, "A1\t1\nA2\t2\nA3\t3")
	if err != nil {
		t.Fatal(err)
	}

	rv, err := svc.StartReview(res.Added[1].ID, "", "", nil)
	if err != nil {
		t.Fatalf("StartReview() error = %v", err)
	}
	if rv.Index() != 1 || rv.Mode() != ModeDirectDial {
		t.Errorf("review at %d mode %q, want 1 and direct-dial", rv.Index(), rv.Mode())
	}

	got, err := svc.Review(rv.ID())
	if err != nil || got != rv {
		t.Fatalf("Review() = %v, %v", got, err)
	}

	svc.CloseReview(rv.ID())
	if _, err := svc.Review(rv.ID()); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("Review() after close = %v, want ErrReviewNotFound", err)
	}
}

func TestService_ExpireReviews(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Import(context.Background(), "A1\t1"); err != nil {
		t.Fatal(err)
	}

	old, err := svc.StartReview("", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	fresh, err := svc.StartReview("", "", "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if n := svc.ExpireReviews(cutoff); n != 1 {
		t.Errorf("ExpireReviews() = %d, want 1", n)
	}
	if _, err := svc.Review(old.ID()); err == nil {
		t.Error("old review should be expired")
	}
	if _, err := svc.Review(fresh.ID()); err != nil {
		t.Errorf("fresh review expired: %v", err)
	}
}

func TestService_ReviewJanitorStops(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartReviewJanitor(ctx, JanitorConfig{TTL: time.Minute, SweepInterval: 5 * time.Millisecond})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
