package cache

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	hash := HashSource(`دع س = 1;`)

	if _, _, ok, err := s.Get(hash); err != nil || ok {
		t.Fatalf("want a clean miss, got ok=%v err=%v", ok, err)
	}

	payload := []byte("SKPB\x01\x00\x00payload")
	if err := s.Put(hash, "build-1", payload); err != nil {
		t.Fatalf("put: %s", err)
	}

	data, buildID, ok, err := s.Get(hash)
	if err != nil || !ok {
		t.Fatalf("want a hit, got ok=%v err=%v", ok, err)
	}
	if buildID != "build-1" || string(data) != string(payload) {
		t.Fatalf("unexpected entry: id=%q data=%q", buildID, data)
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	s := openTestStore(t)
	hash := HashSource("src")
	if err := s.Put(hash, "old", []byte("old")); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := s.Put(hash, "new", []byte("new")); err != nil {
		t.Fatalf("replace: %s", err)
	}
	data, buildID, ok, err := s.Get(hash)
	if err != nil || !ok || buildID != "new" || string(data) != "new" {
		t.Fatalf("replacement not visible: ok=%v id=%q data=%q err=%v", ok, buildID, data, err)
	}
}

func TestDistinctSourcesGetDistinctKeys(t *testing.T) {
	a := HashSource(`دع س = 1;`)
	b := HashSource(`دع س = 2;`)
	if a == b {
		t.Fatalf("different sources hashed identically")
	}
	if a != HashSource(`دع س = 1;`) {
		t.Fatalf("hashing is not deterministic")
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	entries, size, err := s.Stats()
	if err != nil || entries != 0 || size != 0 {
		t.Fatalf("empty store stats: entries=%d size=%d err=%v", entries, size, err)
	}
	if err := s.Put(HashSource("a"), "id-a", make([]byte, 10)); err != nil {
		t.Fatalf("put: %s", err)
	}
	if err := s.Put(HashSource("b"), "id-b", make([]byte, 30)); err != nil {
		t.Fatalf("put: %s", err)
	}
	entries, size, err = s.Stats()
	if err != nil || entries != 2 || size != 40 {
		t.Fatalf("stats after puts: entries=%d size=%d err=%v", entries, size, err)
	}
}
