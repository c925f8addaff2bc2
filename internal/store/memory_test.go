package store

import (
	"context"
	"testing"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	created, err := s.Insert(ctx, Record{"topic": "t1", "message": `{"a":1}`, "timestamp": 100})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, ok := created["id"].(int64)
	if !ok {
		t.Fatalf("expected int64 id, got %T", created["id"])
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got["topic"] != "t1" || got["message"] != `{"a":1}` {
			t.Fatalf("unexpected record: %#v", got)
		}
		if got["id"] != id {
			t.Fatalf("expected id %d, got %v", id, got["id"])
		}
	})

	t.Run("update merges only the patched field", func(t *testing.T) {
		updated, err := s.Update(ctx, id, Record{"message": "patched"})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated["message"] != "patched" {
			t.Fatalf("expected patched message, got %v", updated["message"])
		}
		if updated["topic"] != "t1" {
			t.Fatalf("update clobbered untouched field: %#v", updated)
		}
	})

	t.Run("delete then get is not found", func(t *testing.T) {
		if err := s.Delete(ctx, id); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, id); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.Delete(ctx, id); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound on double delete, got %v", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		if _, err := s.Get(ctx, 9999); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Update(ctx, 9999, Record{"x": 1}); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryStoreGrouping(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// 5 distinct time_sensor groups, two members each, newest group last.
	for g := 0; g < 5; g++ {
		key := []string{"08:00", "08:05", "08:10", "08:15", "08:20"}[g]
		for m := 0; m < 2; m++ {
			_, err := s.Insert(ctx, Record{
				"time_sensor": key,
				"data_sensor": map[string]any{"n": m},
				"timestamp":   1000*g + m,
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
		}
	}

	count, err := s.CountGroups(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 groups, got %d", count)
	}

	t.Run("pages of two groups", func(t *testing.T) {
		page1, err := s.ListGrouped(ctx, 1, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page1) != 2 {
			t.Fatalf("expected 2 groups on page 1, got %d", len(page1))
		}
		// Recency order: newest max member timestamp first.
		if page1[0].TimeSensor != "08:20" || page1[1].TimeSensor != "08:15" {
			t.Fatalf("unexpected order: %v, %v", page1[0].TimeSensor, page1[1].TimeSensor)
		}
		if len(page1[0].Data) != 2 {
			t.Fatalf("expected 2 members, got %d", len(page1[0].Data))
		}

		page3, err := s.ListGrouped(ctx, 3, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page3) != 1 {
			t.Fatalf("expected 1 group on last page, got %d", len(page3))
		}

		page4, err := s.ListGrouped(ctx, 4, 2)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(page4) != 0 {
			t.Fatalf("expected empty page past the end, got %d groups", len(page4))
		}
	})

	t.Run("members carry their id", func(t *testing.T) {
		page, err := s.ListGrouped(ctx, 1, 1)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, m := range page[0].Data {
			if _, ok := m["id"]; !ok {
				t.Fatalf("member without id: %#v", m)
			}
		}
	})
}

func TestMemoryStoreGroupingNullKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// One doc with explicit null, one without the field at all: same group.
	if _, err := s.Insert(ctx, Record{"time_sensor": nil, "timestamp": 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, Record{"message": "no time field"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err := s.CountGroups(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected null group to be shared, got %d groups", count)
	}

	groups, err := s.ListGrouped(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if groups[0].TimeSensor != nil {
		t.Fatalf("expected nil group key, got %v", groups[0].TimeSensor)
	}
	if len(groups[0].Data) != 2 {
		t.Fatalf("expected 2 members in null group, got %d", len(groups[0].Data))
	}
}

func TestMemoryStoreListGroupedPageBelowOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if _, err := s.Insert(ctx, Record{"time_sensor": "08:00", "timestamp": 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Pages below 1 behave like page 1 instead of slicing at a negative offset.
	for _, page := range []int{0, -3} {
		groups, err := s.ListGrouped(ctx, page, 10)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if len(groups) != 1 {
			t.Fatalf("page %d: expected 1 group, got %d", page, len(groups))
		}
	}
}

func TestMemoryStoreNilDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	created, err := s.Insert(ctx, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.Get(ctx, created["id"].(int64))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["id"] != created["id"] {
		t.Fatalf("expected id-only record, got %#v", got)
	}
}

func TestMemoryStoreEmptyList(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	count, err := s.CountGroups(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 groups, got %d", count)
	}
	groups, err := s.ListGrouped(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
}
