package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Storage with the same observable semantics as
// PostgresStore. It backs unit tests and local runs without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[int64]Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1, docs: make(map[int64]Record)}
}

// normalize round-trips a document through JSON so stored values match what a
// JSONB column would hand back (numbers as float64, nested maps/slices).
func normalize(doc Record) (Record, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out Record
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = Record{}
	}
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, doc Record) (Record, error) {
	stored, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.docs[id] = stored
	s.mu.Unlock()
	return withID(stored, id), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Record, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, patch Record) (Record, error) {
	merged, err := normalize(patch)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range merged {
		doc[k] = v
	}
	s.docs[id] = doc
	return withID(doc, id), nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

type memGroup struct {
	key   string
	group Group
	maxTS float64
	hasTS bool
}

func (s *MemoryStore) grouped() []memGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byKey := make(map[string]*memGroup)
	order := make([]string, 0)
	for _, id := range ids {
		doc := s.docs[id]
		keyBytes, _ := json.Marshal(doc["time_sensor"]) // absent and null both land in the null group
		key := string(keyBytes)
		g, ok := byKey[key]
		if !ok {
			g = &memGroup{key: key, group: Group{TimeSensor: doc["time_sensor"], Data: []Record{}}}
			byKey[key] = g
			order = append(order, key)
		}
		g.group.Data = append(g.group.Data, withID(doc, id))
		if ts, ok := doc["timestamp"].(float64); ok {
			if !g.hasTS || ts > g.maxTS {
				g.maxTS = ts
				g.hasTS = true
			}
		}
	}

	groups := make([]memGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	// Newest group first; groups without a numeric timestamp sort last.
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].hasTS != groups[j].hasTS {
			return groups[i].hasTS
		}
		return groups[i].maxTS > groups[j].maxTS
	})
	return groups
}

func (s *MemoryStore) ListGrouped(_ context.Context, page, limit int) ([]Group, error) {
	groups := s.grouped()
	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	if offset >= len(groups) {
		return []Group{}, nil
	}
	end := offset + limit
	if end > len(groups) {
		end = len(groups)
	}
	out := make([]Group, 0, end-offset)
	for _, g := range groups[offset:end] {
		out = append(out, g.group)
	}
	return out, nil
}

func (s *MemoryStore) CountGroups(_ context.Context) (int64, error) {
	return int64(len(s.grouped())), nil
}
