package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskforge-test.db")
	store, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetAndGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	type record struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
		N    int      `json:"n"`
	}
	in := record{Name: "fix login", Tags: []string{"auth", "bug"}, N: 3}
	store.Set("tasks", in)

	var out record
	if !store.Get("tasks", &out) {
		t.Fatal("expected value under key 'tasks'")
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round-trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestGet_Absent(t *testing.T) {
	store := newTestStore(t)

	var out string
	if store.Get("missing", &out) {
		t.Error("expected false for absent key")
	}
}

func TestSet_Overwrite(t *testing.T) {
	store := newTestStore(t)

	store.Set("k", "first")
	store.Set("k", "second")

	var out string
	if !store.Get("k", &out) {
		t.Fatal("expected value under key 'k'")
	}
	if out != "second" {
		t.Errorf("expected overwrite, got %q", out)
	}
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)

	store.Set("k", 42)
	store.Remove("k")

	var out int
	if store.Get("k", &out) {
		t.Error("expected key to be gone after Remove")
	}

	// Removing a missing key is a no-op.
	store.Remove("never-set")
}

func TestGetFresh_Expiry(t *testing.T) {
	store := newTestStore(t)

	store.Set("session", "token-value")

	var out string
	if !store.GetFresh("session", time.Hour, &out) {
		t.Fatal("expected fresh value to be returned")
	}

	// Backdate the entry past the max age.
	if _, err := store.db.Exec(`UPDATE kv SET updated_at = ? WHERE key = 'session'`,
		time.Now().UTC().Add(-25*time.Hour)); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if store.GetFresh("session", 24*time.Hour, &out) {
		t.Error("expected stale entry to be treated as absent")
	}
	// And to have been discarded entirely.
	if store.Get("session", &out) {
		t.Error("expected stale entry to be deleted on read")
	}
}

func TestOpen_BadPath(t *testing.T) {
	dir := t.TempDir()
	// A directory is not a valid database file.
	if err := os.Mkdir(filepath.Join(dir, "db"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(dir, "db"), nil); err == nil {
		t.Fatal("expected error opening a directory as a database")
	}
}
