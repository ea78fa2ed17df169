// Package cache persists per-clip analysis results (pitch contour, mel
// spectrogram, power curve) keyed by the clip's path and identity. Entries
// live as a JSON metadata file plus an NPZ payload on disk, mirrored by a
// bounded in-memory LRU.
//
// Partial results merge forward: a pitch-only entry later joined by a
// mel+power entry for the same clip identity becomes one complete entry.
// Any identity change (file mtime, algorithm, rate, reference bits)
// invalidates the cached entry wholesale.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Key derives the cache file stem for a clip path.
func Key(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Identity pins an entry to one clip state and analysis configuration.
// Any mismatch is a cache miss.
type Identity struct {
	Path       string  `json:"path"`
	MTime      float64 `json:"mtime"`
	Algo       string  `json:"algo"`
	SampleRate int     `json:"sr"`
	RefBits    int     `json:"ref_bits"`
}

// Meta is the JSON sidecar describing which curves the payload holds.
type Meta struct {
	Identity
	HasPitch bool   `json:"has_pitch"`
	HasMel   bool   `json:"has_mel"`
	HasPower bool   `json:"has_power"`
	Note     string `json:"note,omitempty"`
}

// Entry is one clip's cached analysis. Slices are nil when the matching
// Has flag is false. MelDB is row-major, MelRows by len(MelTimes).
type Entry struct {
	Meta Meta

	Times []float32
	F0s   []float32

	MelTimes []float32
	MelRows  int
	MelDB    []float32

	PowerTimes []float32
	PowerDB    []float32
}

// consistent reports whether the flags agree with the arrays present.
func (e *Entry) consistent() bool {
	if e.Meta.HasPitch {
		if len(e.Times) != len(e.F0s) {
			return false
		}
	} else if len(e.Times) > 0 || len(e.F0s) > 0 {
		return false
	}
	if e.Meta.HasMel {
		if e.MelRows <= 0 || len(e.MelDB) != e.MelRows*len(e.MelTimes) {
			return false
		}
	} else if len(e.MelDB) > 0 || len(e.MelTimes) > 0 {
		return false
	}
	if e.Meta.HasPower {
		if len(e.PowerTimes) != len(e.PowerDB) {
			return false
		}
	} else if len(e.PowerTimes) > 0 || len(e.PowerDB) > 0 {
		return false
	}
	return true
}

// merge folds prev's curves into e where e lacks them. Identities must
// already match.
func (e *Entry) merge(prev *Entry) {
	if !e.Meta.HasPitch && prev.Meta.HasPitch {
		e.Meta.HasPitch = true
		e.Times, e.F0s = prev.Times, prev.F0s
	}
	if !e.Meta.HasMel && prev.Meta.HasMel {
		e.Meta.HasMel = true
		e.MelTimes, e.MelRows, e.MelDB = prev.MelTimes, prev.MelRows, prev.MelDB
	}
	if !e.Meta.HasPower && prev.Meta.HasPower {
		e.Meta.HasPower = true
		e.PowerTimes, e.PowerDB = prev.PowerTimes, prev.PowerDB
	}
	if e.Meta.Note == "" {
		e.Meta.Note = prev.Meta.Note
	}
}

// Store is the on-disk half of the cache: <key>.json + <key>.npz per clip.
type Store struct {
	dir string
}

// NewStore opens (and creates) the cache directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) metaPath(key string) string { return filepath.Join(s.dir, key+".json") }
func (s *Store) dataPath(key string) string { return filepath.Join(s.dir, key+".npz") }

// Get loads the entry for id. A missing, stale or corrupt entry is a miss,
// never an error; errors are reserved for unreadable directories.
func (s *Store) Get(id Identity) (*Entry, bool) {
	key := Key(id.Path)

	raw, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return nil, false
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false
	}
	if meta.Identity != id {
		return nil, false
	}

	f, err := os.Open(s.dataPath(key))
	if err != nil {
		return nil, false
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, false
	}
	arrays, err := readNPZ(f, st.Size())
	if err != nil {
		return nil, false
	}

	e := &Entry{Meta: meta}
	if a, ok := arrays["times"]; ok {
		e.Times = a.Data
	}
	if a, ok := arrays["f0s"]; ok {
		e.F0s = a.Data
	}
	if a, ok := arrays["mel_times"]; ok {
		e.MelTimes = a.Data
	}
	if a, ok := arrays["mel_db"]; ok {
		e.MelRows, e.MelDB = a.Rows, a.Data
	}
	if a, ok := arrays["power_times"]; ok {
		e.PowerTimes = a.Data
	}
	if a, ok := arrays["power_db"]; ok {
		e.PowerDB = a.Data
	}

	// Metadata promising curves the payload lacks means a torn write.
	if !e.consistent() {
		return nil, false
	}
	return e, true
}

// Put persists the entry, merging forward any valid existing entry with
// the same identity. The payload lands before the metadata and both go
// through temp-file renames, so a crash leaves either the old entry or
// the new one, never a torn mix.
func (s *Store) Put(e *Entry) error {
	if !e.consistent() {
		return fmt.Errorf("cache: inconsistent entry for %s", e.Meta.Path)
	}
	if prev, ok := s.Get(e.Meta.Identity); ok {
		e.merge(prev)
	}

	key := Key(e.Meta.Path)

	// The payload always carries all six arrays, empty for absent curves,
	// matching the numpy archive layout.
	arrays := map[string]array{
		"times":       {Data: e.Times},
		"f0s":         {Data: e.F0s},
		"mel_times":   {Data: e.MelTimes},
		"mel_db":      {Rows: e.MelRows, Data: e.MelDB},
		"power_times": {Data: e.PowerTimes},
		"power_db":    {Data: e.PowerDB},
	}

	if err := s.writeAtomic(s.dataPath(key), func(f *os.File) error {
		return writeNPZ(f, arrays)
	}); err != nil {
		return err
	}

	raw, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("cache: encode meta: %w", err)
	}
	return s.writeAtomic(s.metaPath(key), func(f *os.File) error {
		_, werr := f.Write(raw)
		return werr
	})
}

func (s *Store) writeAtomic(path string, write func(*os.File) error) error {
	tmp := filepath.Join(s.dir, ".tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cache: write %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Delete removes the entry for a clip path. Missing files are fine.
func (s *Store) Delete(path string) error {
	key := Key(path)
	merr := os.Remove(s.metaPath(key))
	derr := os.Remove(s.dataPath(key))
	if merr != nil && !os.IsNotExist(merr) {
		return fmt.Errorf("cache: delete: %w", merr)
	}
	if derr != nil && !os.IsNotExist(derr) {
		return fmt.Errorf("cache: delete: %w", derr)
	}
	return nil
}
