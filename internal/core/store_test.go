package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeKV is an in-memory KV whose writes can be made to fail.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
	sets    int
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	f.sets++
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func newLoadedStore(t *testing.T, kv KV) *RecordStore {
	t.Helper()
	s := NewRecordStore(kv, "")
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func TestRecordStore_AppendThenReload(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	s := newLoadedStore(t, kv)
	added, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "138"}, {OrderID: "A2", Phone: "139"}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if added[0].ID == "" || added[0].ID == added[1].ID {
		t.Fatalf("ids not unique: %q %q", added[0].ID, added[1].ID)
	}

	reloaded := newLoadedStore(t, kv)
	if diff := cmp.Diff(s.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Errorf("reloaded set mismatch (-before +after):\n%s", diff)
	}
}

func TestRecordStore_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, newFakeKV())

	if _, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "1"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, []Entry{{OrderID: "A2", Phone: "2"}, {OrderID: "A3", Phone: "3"}}); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, r := range s.Snapshot() {
		got = append(got, r.OrderID)
	}
	if diff := cmp.Diff([]string{"A1", "A2", "A3"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordStore_ClearThenReload(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()

	s := newLoadedStore(t, kv)
	if _, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "138"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if string(kv.data[DefaultStoreKey]) != "[]" {
		t.Errorf("stored value = %q, want []", kv.data[DefaultStoreKey])
	}

	if n := newLoadedStore(t, kv).Len(); n != 0 {
		t.Errorf("Len() after reload = %d, want 0", n)
	}
}

func TestRecordStore_FailedWriteChangesNothing(t *testing.T) {
	kv := newFakeKV()
	ctx := context.Background()
	s := newLoadedStore(t, kv)

	if _, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "138"}}); err != nil {
		t.Fatal(err)
	}
	before := s.Snapshot()

	kv.failSet = errors.New("disk full")
	if _, err := s.Append(ctx, []Entry{{OrderID: "A2", Phone: "139"}}); err == nil {
		t.Fatal("Append() should fail when the write fails")
	}
	if err := s.Clear(ctx); err == nil {
		t.Fatal("Clear() should fail when the write fails")
	}

	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("set changed after failed writes (-before +after):\n%s", diff)
	}
}

func TestRecordStore_LoadMalformed(t *testing.T) {
	kv := newFakeKV()
	kv.data[DefaultStoreKey] = []byte("{not json")

	if n := newLoadedStore(t, kv).Len(); n != 0 {
		t.Errorf("Len() = %d, want 0 for malformed data", n)
	}
}

func TestRecordStore_LoadRepairsIDs(t *testing.T) {
	kv := newFakeKV()
	kv.data[DefaultStoreKey] = []byte(`[
		{"id":"x","orderId":"A1","phone":"1"},
		{"id":"x","orderId":"A2","phone":"2"},
		{"orderId":"A3","phone":"3"},
		{"id":"y","orderId":"","phone":"4"}
	]`)

	recs := newLoadedStore(t, kv).Snapshot()
	if len(recs) != 3 {
		t.Fatalf("len = %d, want 3", len(recs))
	}
	seen := map[string]bool{}
	for _, r := range recs {
		if r.ID == "" || seen[r.ID] {
			t.Errorf("duplicate or empty id %q", r.ID)
		}
		seen[r.ID] = true
	}
	if recs[0].ID != "x" {
		t.Errorf("first id = %q, want x kept", recs[0].ID)
	}
}

func TestRecordStore_Get(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, newFakeKV())
	added, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "1"}, {OrderID: "A2", Phone: "2"}})
	if err != nil {
		t.Fatal(err)
	}

	rec, i, err := s.Get(added[1].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.OrderID != "A2" || i != 1 {
		t.Errorf("Get() = %+v at %d, want A2 at 1", rec, i)
	}

	if _, _, err := s.Get("missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get(missing) = %v, want ErrRecordNotFound", err)
	}
}

func TestRecordStore_Page(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, newFakeKV())

	entries := make([]Entry, 23)
	for i := range entries {
		entries[i] = Entry{OrderID: string(rune('A' + i)), Phone: "1"}
	}
	if _, err := s.Append(ctx, entries); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		page       int
		wantPage   int
		wantLen    int
		wantOffset int
	}{
		{"first", 1, 1, 10, 0},
		{"last partial", 3, 3, 3, 20},
		{"zero clamps to first", 0, 1, 10, 0},
		{"past end clamps to last", 99, 3, 3, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.Page(tt.page, 10)
			if p.Page != tt.wantPage || len(p.Records) != tt.wantLen || p.Offset != tt.wantOffset {
				t.Errorf("Page(%d) = page %d len %d offset %d, want %d %d %d",
					tt.page, p.Page, len(p.Records), p.Offset, tt.wantPage, tt.wantLen, tt.wantOffset)
			}
			if p.TotalPages != 3 || p.Total != 23 {
				t.Errorf("TotalPages = %d Total = %d, want 3 and 23", p.TotalPages, p.Total)
			}
		})
	}
}

func TestRecordStore_PageEmpty(t *testing.T) {
	p := newLoadedStore(t, newFakeKV()).Page(1, 10)
	if p.Page != 1 || p.TotalPages != 1 || len(p.Records) != 0 {
		t.Errorf("empty Page = %+v, want page 1 of 1 with no records", p)
	}
}

func TestRecordStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newLoadedStore(t, newFakeKV())

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if _, err := s.Append(ctx, []Entry{{OrderID: "A1", Phone: "1"}, {OrderID: "A2", Phone: "2"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	want := []Change{
		{Kind: ChangeAppend, Added: 2, Total: 2},
		{Kind: ChangeClear},
	}
	for _, w := range want {
		if got := <-ch; got != w {
			t.Errorf("change = %+v, want %+v", got, w)
		}
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}
