package store

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is the production Store implementation. A Badger read-only
// transaction supplies snapshot isolation for both Snapshot and the
// committed-state base of a Fork; Fork writes are staged in an in-memory
// overlay (writeOverlay) and only reach Badger when Merge commits the
// sealed Patch via a single WriteBatch, serialized by mergeMu per the
// single-writer contract of spec §5.
type BadgerStore struct {
	db      *badger.DB
	mergeMu sync.Mutex
}

// OpenBadgerStore opens (creating if absent) a Badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger store: %w", err)
	}
	return nil
}

func compositeKey(table string, key []byte) []byte {
	buf := make([]byte, 0, len(table)+1+len(key))
	buf = append(buf, []byte(table)...)
	buf = append(buf, 0)
	buf = append(buf, key...)
	return buf
}

type badgerReader struct {
	txn *badger.Txn
}

func (r badgerReader) get(table string, key []byte) ([]byte, bool, error) {
	item, err := r.txn.Get(compositeKey(table, key))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("badger value: %w", err)
	}
	return val, true, nil
}

func (r badgerReader) iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	p := compositeKey(table, prefix)
	it := r.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		k := item.KeyCopy(nil)
		rawKey := k[len(table)+1:]
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger iterate value: %w", err)
		}
		cont, err := fn(rawKey, val)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// badgerView wraps a read-only transaction for the lifetime of a Snapshot
// or a Fork's committed-state base. A finalizer discards the transaction
// if the caller forgets to; this is a backstop, not the primary release
// path, since Snapshot/Fork have no explicit Close in the Store contract.
type badgerView struct {
	reader badgerReader
}

func newBadgerView(db *badger.DB) *badgerView {
	txn := db.NewTransaction(false)
	v := &badgerView{reader: badgerReader{txn: txn}}
	runtime.SetFinalizer(v, func(v *badgerView) { v.reader.txn.Discard() })
	return v
}

func (v *badgerView) Get(table string, key []byte) ([]byte, bool, error) {
	return v.reader.get(table, key)
}

func (v *badgerView) Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return v.reader.iterate(table, prefix, fn)
}

// Snapshot returns an immutable, point-in-time view of committed state.
func (s *BadgerStore) Snapshot() Snapshot {
	return newBadgerView(s.db)
}

type badgerFork struct {
	view    *badgerView
	overlay *writeOverlay
}

func (f *badgerFork) Get(table string, key []byte) ([]byte, bool, error) {
	return f.overlay.get(table, key)
}

func (f *badgerFork) Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return f.overlay.iterate(table, prefix, fn)
}

func (f *badgerFork) Put(table string, key, value []byte) error {
	f.overlay.put(table, key, value)
	return nil
}

func (f *badgerFork) Delete(table string, key []byte) error {
	f.overlay.delete(table, key)
	return nil
}

func (f *badgerFork) Flush()    { f.overlay.flush() }
func (f *badgerFork) Rollback() { f.overlay.rollback() }

func (f *badgerFork) IntoPatch() Patch {
	return &simplePatch{entries: f.overlay.patchEntries()}
}

// Fork yields an isolated, writable overlay atop the currently committed
// state.
func (s *BadgerStore) Fork() Fork {
	view := newBadgerView(s.db)
	return &badgerFork{view: view, overlay: newWriteOverlay(view.reader)}
}

// Merge atomically and durably applies patch. Serialized against other
// merges: only one block build/commit may be in flight at a time (spec
// §5), so this lock simply makes that contract explicit at the storage
// boundary rather than trusting every caller to honor it.
func (s *BadgerStore) Merge(patch Patch) error {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range patch.Entries() {
		ck := compositeKey(e.Table, e.Key)
		if e.Deleted {
			if err := wb.Delete(ck); err != nil {
				return fmt.Errorf("badger merge delete: %w", err)
			}
			continue
		}
		if err := wb.Set(ck, e.Value); err != nil {
			return fmt.Errorf("badger merge set: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger merge flush: %w", err)
	}
	return nil
}
