package store

import "sort"

// baseReader is the read-only committed-state lookup a Fork overlays.
type baseReader interface {
	get(table string, key []byte) ([]byte, bool, error)
	iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error
}

// overlayCell is a staged table write: nil value with deleted=true is a
// tombstone.
type overlayCell struct {
	value   []byte
	deleted bool
}

// writeOverlay implements the two-level (flushed/pending) write-set that
// gives Fork its flush/rollback savepoint semantics, independent of which
// Store backend supplies the committed base.
type writeOverlay struct {
	base    baseReader
	flushed map[string]map[string]overlayCell
	pending map[string]map[string]overlayCell
}

func newWriteOverlay(base baseReader) *writeOverlay {
	return &writeOverlay{
		base:    base,
		flushed: make(map[string]map[string]overlayCell),
		pending: make(map[string]map[string]overlayCell),
	}
}

func (w *writeOverlay) put(table string, key, value []byte) {
	tbl, ok := w.pending[table]
	if !ok {
		tbl = make(map[string]overlayCell)
		w.pending[table] = tbl
	}
	v := append([]byte(nil), value...)
	tbl[string(key)] = overlayCell{value: v}
}

func (w *writeOverlay) delete(table string, key []byte) {
	tbl, ok := w.pending[table]
	if !ok {
		tbl = make(map[string]overlayCell)
		w.pending[table] = tbl
	}
	tbl[string(key)] = overlayCell{deleted: true}
}

func (w *writeOverlay) get(table string, key []byte) ([]byte, bool, error) {
	if tbl, ok := w.pending[table]; ok {
		if cell, ok := tbl[string(key)]; ok {
			if cell.deleted {
				return nil, false, nil
			}
			return cell.value, true, nil
		}
	}
	if tbl, ok := w.flushed[table]; ok {
		if cell, ok := tbl[string(key)]; ok {
			if cell.deleted {
				return nil, false, nil
			}
			return cell.value, true, nil
		}
	}
	return w.base.get(table, key)
}

// iterate merges overlay state with the base in ascending key order.
func (w *writeOverlay) iterate(table string, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	merged := make(map[string]overlayCell)
	if tbl, ok := w.flushed[table]; ok {
		for k, v := range tbl {
			if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
				merged[k] = v
			}
		}
	}
	if tbl, ok := w.pending[table]; ok {
		for k, v := range tbl {
			if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
				merged[k] = v
			}
		}
	}
	keys := make([]string, 0, len(merged))
	err := w.base.iterate(table, prefix, func(key, value []byte) (bool, error) {
		k := string(key)
		if _, overridden := merged[k]; !overridden {
			merged[k] = overlayCell{value: value}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cell := merged[k]
		if cell.deleted {
			continue
		}
		if cont, err := fn([]byte(k), cell.value); err != nil {
			return err
		} else if !cont {
			return nil
		}
	}
	return nil
}

func (w *writeOverlay) flush() {
	for table, tbl := range w.pending {
		dst, ok := w.flushed[table]
		if !ok {
			dst = make(map[string]overlayCell)
			w.flushed[table] = dst
		}
		for k, v := range tbl {
			dst[k] = v
		}
	}
	w.pending = make(map[string]map[string]overlayCell)
}

func (w *writeOverlay) rollback() {
	w.pending = make(map[string]map[string]overlayCell)
}

func (w *writeOverlay) patchEntries() []PatchEntry {
	w.flush()
	entries := make([]PatchEntry, 0)
	for table, tbl := range w.flushed {
		for k, cell := range tbl {
			entries = append(entries, PatchEntry{
				Table:   table,
				Key:     []byte(k),
				Value:   cell.value,
				Deleted: cell.deleted,
			})
		}
	}
	return entries
}
