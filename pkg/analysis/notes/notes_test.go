package notes

import (
	"errors"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestPutGet(t *testing.T) {
	ix := openTestIndex(t)

	want := Record{MTime: 1723456789, Note: "A4", Cents: -3.5, Algo: "yin"}
	if err := ix.Put("/takes/a.wav", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ix.Get("/takes/a.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGetMissing(t *testing.T) {
	ix := openTestIndex(t)
	if _, err := ix.Get("/takes/nope.wav"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	ix := openTestIndex(t)
	if err := ix.Put("/takes/a.wav", Record{Note: "A4"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ix.Put("/takes/a.wav", Record{Note: "B4"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ix.Get("/takes/a.wav")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Note != "B4" {
		t.Fatalf("note = %q, want B4", got.Note)
	}
}

func TestDelete(t *testing.T) {
	ix := openTestIndex(t)
	if err := ix.Put("/takes/a.wav", Record{Note: "A4"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ix.Delete("/takes/a.wav"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ix.Get("/takes/a.wav"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := ix.Delete("/takes/a.wav"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
}

func TestAll(t *testing.T) {
	ix := openTestIndex(t)
	clips := map[string]Record{
		"/takes/a.wav": {Note: "A4"},
		"/takes/b.wav": {Note: "C3"},
		"/takes/c.wav": {Note: "G5"},
	}
	for path, rec := range clips {
		if err := ix.Put(path, rec); err != nil {
			t.Fatalf("Put %s: %v", path, err)
		}
	}

	seen := map[string]Record{}
	var lastPath string
	for path, rec := range ix.All() {
		if path < lastPath {
			t.Fatalf("iteration out of order: %q after %q", path, lastPath)
		}
		lastPath = path
		seen[path] = rec
	}
	if len(seen) != len(clips) {
		t.Fatalf("saw %d records, want %d", len(seen), len(clips))
	}
	for path, want := range clips {
		if seen[path].Note != want.Note {
			t.Fatalf("%s note = %q, want %q", path, seen[path].Note, want.Note)
		}
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("Open accepted empty dir")
	}
}
