// Package store defines the transactional key-value contract the ledger
// core consumes from the storage layer (spec §5, §6): a Store produces
// read-only Snapshots and writable Forks; a Fork seals into an atomically
// mergeable Patch.
//
// Two implementations are provided: a Badger-backed Store for production
// use (internal/store/badger.go) and an in-memory Store for tests
// (internal/store/memstore.go). Both share the fork/overlay bookkeeping in
// overlay.go so their savepoint semantics stay identical.
package store

// View is the read-only surface shared by Snapshot and Fork.
type View interface {
	// Get looks up key in the named table. ok is false on miss.
	Get(table string, key []byte) (value []byte, ok bool, err error)
	// Iterate walks all keys in table with the given prefix in ascending
	// key order, calling fn for each. fn returns false to stop early.
	Iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error
}

// Snapshot is an immutable, point-in-time view of committed state.
type Snapshot interface {
	View
}

// Fork is a writable overlay atop a committed snapshot. Writes are visible
// only within the fork until sealed into a Patch and merged.
type Fork interface {
	View
	// Put stages a write. Visible to subsequent Get/Iterate calls on this
	// Fork immediately.
	Put(table string, key, value []byte) error
	// Delete stages a tombstone.
	Delete(table string, key []byte) error
	// Flush finalizes a savepoint: a subsequent Rollback undoes only writes
	// staged since this call (or since fork creation, if never called).
	Flush()
	// Rollback reverts all writes staged since the last Flush.
	Rollback()
	// IntoPatch seals the fork (flushing any unflushed writes first) into
	// an opaque, atomically mergeable Patch.
	IntoPatch() Patch
}

// PatchEntry is one staged write or tombstone.
type PatchEntry struct {
	Table   string
	Key     []byte
	Value   []byte
	Deleted bool // true marks a tombstone; Value is then ignored
}

// Patch is a sealed, mergeable delta produced from a Fork.
type Patch interface {
	Entries() []PatchEntry
}

// Store is the database handle the Ledger facade owns.
type Store interface {
	Snapshot() Snapshot
	Fork() Fork
	// Merge atomically and durably applies patch. Failure leaves committed
	// state untouched; callers must treat it as fatal (spec §7).
	Merge(patch Patch) error
	Close() error
}

type simplePatch struct {
	entries []PatchEntry
}

func (p *simplePatch) Entries() []PatchEntry { return p.entries }

// ForkFromPatch converts a sealed Patch back into a writable Fork atop
// s's current committed state, by restaging every entry. This mirrors
// the commit engine's first step (spec §4.5): "convert patch back into a
// fork" so further writes (precommits, cache clears, counters) layer on
// top of the same changeset before a single final Merge.
func ForkFromPatch(s Store, patch Patch) Fork {
	fork := s.Fork()
	for _, e := range patch.Entries() {
		if e.Deleted {
			fork.Delete(e.Table, e.Key)
			continue
		}
		fork.Put(e.Table, e.Key, e.Value)
	}
	return fork
}
