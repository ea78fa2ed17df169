// Package notes keeps the per-clip note index: for every analyzed
// recording, the dominant note detected and the clip state it was detected
// against. The index is a small BadgerDB keyed by clip path, so note labels
// survive restarts without re-running pitch analysis.
package notes

import (
	"errors"
	"iter"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a clip has no indexed note.
var ErrNotFound = errors.New("notes: not found")

// Record is one clip's indexed note.
type Record struct {
	// MTime is the clip file's modification time (unix seconds) at
	// analysis time. A differing mtime means the record is stale.
	MTime float64 `msgpack:"mtime"`
	// Note is the dominant note label, e.g. "A4".
	Note string `msgpack:"note"`
	// Cents is the deviation from the note's center pitch.
	Cents float64 `msgpack:"cents"`
	// Algo names the pitch algorithm that produced the note.
	Algo string `msgpack:"algo"`
}

// Options configures an Index.
type Options struct {
	// Dir is the database directory. Required unless InMemory.
	Dir string
	// InMemory runs badger without disk persistence, for tests.
	InMemory bool
	// Logger overrides the default quiet badger logger.
	Logger badger.Logger
}

// Index is the badger-backed note store.
type Index struct {
	db *badger.DB
}

// Open opens (and creates) the index.
func Open(opts Options) (*Index, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("notes: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(quietLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Index{db: db}, nil
}

// Get returns the record for a clip path.
func (ix *Index) Get(path string) (Record, error) {
	var rec Record
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Put stores the record for a clip path, replacing any previous one.
func (ix *Index) Put(path string, rec Record) error {
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), val)
	})
}

// Delete removes a clip's record. Missing records are fine.
func (ix *Index) Delete(path string) error {
	err := ix.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// All iterates over every indexed clip in key order.
func (ix *Index) All() iter.Seq2[string, Record] {
	return func(yield func(string, Record) bool) {
		ix.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				path := string(item.KeyCopy(nil))
				var rec Record
				err := item.Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &rec)
				})
				if err != nil {
					continue
				}
				if !yield(path, rec) {
					return nil
				}
			}
			return nil
		})
	}
}

// Close flushes and closes the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// quietLogger keeps badger's error output and drops the rest.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[notes] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[notes] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
