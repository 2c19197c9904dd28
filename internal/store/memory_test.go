package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_SeedAndReadAll(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Seed(map[string]Value{"a": 1.0, "b": "hot"})

	values, err := s.ReadAll(ctx, nil)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if values["a"] != 1.0 {
		t.Errorf("expected a=1.0, got %v", values["a"])
	}
	if values["b"] != "hot" {
		t.Errorf("expected b=hot, got %v", values["b"])
	}
}

func TestMemoryStore_ReadAllWithSelectiveKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Seed(map[string]Value{"a": 1.0, "b": 2.0, "c": 3.0})

	values, err := s.ReadAll(ctx, []string{"a", "c", "missing"})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(values), values)
	}
	if values["a"] != 1.0 || values["c"] != 3.0 {
		t.Errorf("unexpected values: %v", values)
	}
}

func TestMemoryStore_WriteBatchIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	batch := map[string]Value{"x": 5.0}

	if err := s.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	values, _ := s.ReadAll(ctx, nil)
	if values["x"] != 5.0 {
		t.Errorf("expected x=5.0 after repeated writes, got %v", values["x"])
	}
}

func TestMemoryStore_SetHealthyFailsReadsAndWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Seed(map[string]Value{"a": 1.0})

	if !s.Health(ctx) {
		t.Fatal("expected healthy store by default")
	}

	s.SetHealthy(false)
	if s.Health(ctx) {
		t.Fatal("expected unhealthy after SetHealthy(false)")
	}

	if _, err := s.ReadAll(ctx, nil); !errors.Is(err, ErrStoreDown) {
		t.Fatalf("expected ErrStoreDown, got %v", err)
	}
	if err := s.WriteBatch(ctx, map[string]Value{"b": 2.0}); !errors.Is(err, ErrStoreDown) {
		t.Fatalf("expected ErrStoreDown, got %v", err)
	}

	s.SetHealthy(true)
	if _, err := s.ReadAll(ctx, nil); err != nil {
		t.Fatalf("expected reads to recover after SetHealthy(true): %v", err)
	}
}
