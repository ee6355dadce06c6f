package matchhistory

import (
	"context"
	"fmt"
	"testing"
)

type mapStore struct {
	data  map[string]string
	saves int
	fail  bool
}

func (s *mapStore) Load(ctx context.Context) (map[string]string, error) {
	if s.fail {
		return nil, fmt.Errorf("store offline")
	}
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *mapStore) Save(ctx context.Context, entries map[string]string) error {
	if s.fail {
		return fmt.Errorf("store offline")
	}
	s.data = entries
	s.saves++
	return nil
}

func TestCacheLookupNormalizesDescription(t *testing.T) {
	store := &mapStore{data: map[string]string{"xyz123 ayse kaya": "ath-1"}}
	cache := New(store)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, description := range []string{"XYZ123 AYŞE KAYA", "xyz123  ayse-kaya", "Xyz123 Ayse Kaya."} {
		id, ok := cache.Lookup(description)
		if !ok || id != "ath-1" {
			t.Errorf("Expected ath-1 for %q, got %q (found=%v)", description, id, ok)
		}
	}

	if _, ok := cache.Lookup("   "); ok {
		t.Error("Expected blank description to miss")
	}
}

func TestCacheRememberAndSave(t *testing.T) {
	store := &mapStore{data: map[string]string{}}
	cache := New(store)
	ctx := context.Background()
	if err := cache.Load(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := cache.Save(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if store.saves != 0 {
		t.Errorf("Expected unchanged cache not to be saved, got %d saves", store.saves)
	}

	if !cache.Remember("XYZ123", "ath-9") {
		t.Error("Expected a new entry to change the cache")
	}
	if cache.Remember("XYZ123", "ath-9") {
		t.Error("Expected a repeated entry to leave the cache unchanged")
	}
	if cache.Remember("", "ath-9") {
		t.Error("Expected an empty description to be ignored")
	}
	if err := cache.Save(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("Expected 1 save, got %d", store.saves)
	}
	if store.data["xyz123"] != "ath-9" {
		t.Errorf("Expected persisted entry, got %v", store.data)
	}

	if !cache.Remember("xyz123", "ath-10") {
		t.Error("Expected a different athlete to change the cache")
	}
	if id, _ := cache.Lookup("XYZ123"); id != "ath-10" {
		t.Errorf("Expected later athlete to win, got %s", id)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}
}

func TestCacheStoreFailure(t *testing.T) {
	cache := New(&mapStore{fail: true})
	if err := cache.Load(context.Background()); err == nil {
		t.Error("Expected load error")
	}
}

func TestCacheEntriesSorted(t *testing.T) {
	cache := New(&mapStore{data: map[string]string{"b": "2", "a": "1"}})
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	entries := cache.Entries()
	if len(entries) != 2 || entries[0].Key != "a" || entries[1].Key != "b" {
		t.Errorf("Expected sorted entries, got %v", entries)
	}
}
