package store

import (
	"sort"
	"sync"
)

// memTables is an immutable table snapshot: Merge always produces a new
// one rather than mutating tables a live Snapshot/Fork might be reading.
type memTables map[string]map[string][]byte

func (t memTables) get(table string, key []byte) ([]byte, bool, error) {
	tbl, ok := t[table]
	if !ok {
		return nil, false, nil
	}
	v, ok := tbl[string(key)]
	return v, ok, nil
}

func (t memTables) iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	tbl, ok := t[table]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		cont, err := fn([]byte(k), tbl[k])
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (t memTables) clone() memTables {
	dup := make(memTables, len(t))
	for table, tbl := range t {
		inner := make(map[string][]byte, len(tbl))
		for k, v := range tbl {
			inner[k] = v
		}
		dup[table] = inner
	}
	return dup
}

// MemStore is an in-memory Store implementation used by tests; it gives
// the same fork/patch/merge contract as the Badger-backed Store without
// requiring a database file, mirroring the teacher's t.TempDir()-scoped
// disposable ledger in core/ledger_test.go.
type MemStore struct {
	mu     sync.Mutex
	tables memTables
}

// NewMemStore creates an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{tables: make(memTables)}
}

func (s *MemStore) current() memTables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables
}

type memSnapshot struct {
	tables memTables
}

func (s *memSnapshot) Get(table string, key []byte) ([]byte, bool, error) {
	return s.tables.get(table, key)
}

func (s *memSnapshot) Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return s.tables.iterate(table, prefix, fn)
}

// Snapshot returns an immutable view of the currently committed tables.
func (s *MemStore) Snapshot() Snapshot {
	return &memSnapshot{tables: s.current()}
}

type memFork struct {
	base    memTables
	overlay *writeOverlay
}

func (f *memFork) Get(table string, key []byte) ([]byte, bool, error) {
	return f.overlay.get(table, key)
}

func (f *memFork) Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return f.overlay.iterate(table, prefix, fn)
}

func (f *memFork) Put(table string, key, value []byte) error {
	f.overlay.put(table, key, value)
	return nil
}

func (f *memFork) Delete(table string, key []byte) error {
	f.overlay.delete(table, key)
	return nil
}

func (f *memFork) Flush()    { f.overlay.flush() }
func (f *memFork) Rollback() { f.overlay.rollback() }

func (f *memFork) IntoPatch() Patch {
	return &simplePatch{entries: f.overlay.patchEntries()}
}

// Fork returns a writable overlay atop the currently committed tables.
func (s *MemStore) Fork() Fork {
	base := s.current()
	return &memFork{base: base, overlay: newWriteOverlay(baseAdapter{base})}
}

type baseAdapter struct{ t memTables }

func (b baseAdapter) get(table string, key []byte) ([]byte, bool, error) {
	return b.t.get(table, key)
}

func (b baseAdapter) iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return b.t.iterate(table, prefix, fn)
}

// Merge atomically applies patch to the committed tables.
func (s *MemStore) Merge(patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.tables.clone()
	for _, e := range patch.Entries() {
		tbl, ok := next[e.Table]
		if !ok {
			tbl = make(map[string][]byte)
			next[e.Table] = tbl
		}
		if e.Deleted {
			delete(tbl, string(e.Key))
			continue
		}
		tbl[string(e.Key)] = e.Value
	}
	s.tables = next
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
