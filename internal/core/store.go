package core

// store.go holds the record set and keeps it in sync with the KV backend.
//
// The whole set is serialized as one JSON array under a single key. Mutations
// are serialized by mu: each one builds a fresh slice, persists it, and only
// then swaps it in, so a failed write leaves memory and storage unchanged and
// readers never observe a partially applied batch.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned when a record id is not in the set.
var ErrRecordNotFound = errors.New("record not found")

// DefaultStoreKey is the key the record set is saved under.
const DefaultStoreKey = "qr-code-orders"

// RecordStore is the in-memory record set backed by a KV store.
type RecordStore struct {
	kv  KV
	key string

	mu      sync.RWMutex
	records []Record
	index   map[string]int

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// NewRecordStore creates an empty store. Call Load to read persisted records.
func NewRecordStore(kv KV, key string) *RecordStore {
	if key == "" {
		key = DefaultStoreKey
	}
	return &RecordStore{
		kv:    kv,
		key:   key,
		index: map[string]int{},
		subs:  map[int]chan Change{},
	}
}

// Load reads the persisted record set once. A missing key yields an empty
// set. Malformed data is logged and treated as empty; only backend failures
// are returned.
func (s *RecordStore) Load(ctx context.Context) error {
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("store load failed: %w", err)
	}

	var records []Record
	if found && len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			slog.Warn("discarding malformed record set", "key", s.key, "error", err)
			records = nil
		}
	}
	records = sanitizeLoaded(records)

	s.mu.Lock()
	s.records = records
	s.index = buildIndex(records)
	s.mu.Unlock()

	slog.Info("record set loaded", "key", s.key, "records", len(records))
	return nil
}

// sanitizeLoaded drops records that could not have been imported and gives
// fresh ids to entries whose id is missing or duplicated.
func sanitizeLoaded(in []Record) []Record {
	out := make([]Record, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, r := range in {
		if r.OrderID == "" || r.Phone == "" {
			slog.Warn("dropping incomplete stored record", "id", r.ID)
			continue
		}
		if r.ID == "" || seen[r.ID] {
			r.ID = uuid.NewString()
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func buildIndex(records []Record) map[string]int {
	idx := make(map[string]int, len(records))
	for i, r := range records {
		idx[r.ID] = i
	}
	return idx
}

// Append gives each entry a new id and appends the batch to the end of the
// set in one persisted write. Either every entry is stored or none is.
func (s *RecordStore) Append(ctx context.Context, entries []Entry) ([]Record, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	added := make([]Record, len(entries))
	for i, e := range entries {
		added[i] = Record{ID: uuid.NewString(), OrderID: e.OrderID, Phone: e.Phone}
	}

	next := make([]Record, 0, len(s.records)+len(added))
	next = append(next, s.records...)
	next = append(next, added...)

	if err := s.persist(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.records = next
	s.index = buildIndex(next)
	s.publish(Change{Kind: ChangeAppend, Added: len(added), Total: len(next)})
	s.mu.Unlock()

	return added, nil
}

// Clear removes every record.
func (s *RecordStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.persist(ctx, []Record{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.records = nil
	s.index = map[string]int{}
	s.publish(Change{Kind: ChangeClear})
	s.mu.Unlock()

	return nil
}

func (s *RecordStore) persist(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("store write failed: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("store write failed: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the record set in insertion order.
func (s *RecordStore) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns the record with the given id and its position in the set.
func (s *RecordStore) Get(id string) (Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Record{}, 0, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return s.records[i], i, nil
}

// Page returns the 1-based page of size records. Out of range page numbers
// are clamped, so page 0 and page 999 both return a valid page.
func (s *RecordStore) Page(page, size int) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.records, page, size)
}

func paginate(records []Record, page, size int) Page {
	if size <= 0 {
		size = 10
	}
	total := len(records)
	totalPages := max((total+size-1)/size, 1)
	page = min(max(page, 1), totalPages)

	start := (page - 1) * size
	end := min(start+size, total)

	out := make([]Record, end-start)
	copy(out, records[start:end])

	return Page{
		Records:    out,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Total:      total,
		Offset:     start,
	}
}

// Subscribe returns a channel receiving every committed change and a
// function that unsubscribes and closes it. Slow subscribers miss changes
// rather than block writers.
func (s *RecordStore) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// publish is called with mu held so subscribers see changes in commit order.
func (s *RecordStore) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- c:
		default:
			slog.Debug("dropping change for slow subscriber", "subscriber", id, "kind", c.Kind)
		}
	}
}
