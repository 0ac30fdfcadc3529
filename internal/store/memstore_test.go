package store

import "testing"

func TestMemStoreForkIsolatedUntilMerge(t *testing.T) {
	s := NewMemStore()
	fork := s.Fork()
	if err := fork.Put("t", []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, ok, _ := s.Snapshot().Get("t", []byte("k")); ok {
		t.Fatalf("committed snapshot should not see unmerged fork writes")
	}
	if v, ok, _ := fork.Get("t", []byte("k")); !ok || string(v) != "v" {
		t.Fatalf("fork should see its own staged write")
	}

	if err := s.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if v, ok, _ := s.Snapshot().Get("t", []byte("k")); !ok || string(v) != "v" {
		t.Fatalf("committed snapshot should see merged write")
	}
}

func TestMemStoreRollbackScopesToLastFlush(t *testing.T) {
	s := NewMemStore()
	fork := s.Fork()

	_ = fork.Put("t", []byte("a"), []byte("1"))
	fork.Flush()
	_ = fork.Put("t", []byte("b"), []byte("2"))

	fork.Rollback()

	if _, ok, _ := fork.Get("t", []byte("a")); !ok {
		t.Fatalf("rollback should not undo writes before the last flush")
	}
	if _, ok, _ := fork.Get("t", []byte("b")); ok {
		t.Fatalf("rollback should undo writes staged since the last flush")
	}
}

func TestMemStoreDeleteTombstone(t *testing.T) {
	s := NewMemStore()
	fork := s.Fork()
	_ = fork.Put("t", []byte("k"), []byte("v"))
	if err := s.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	fork2 := s.Fork()
	_ = fork2.Delete("t", []byte("k"))
	if _, ok, _ := fork2.Get("t", []byte("k")); ok {
		t.Fatalf("fork should not see a tombstoned key")
	}
	if err := s.Merge(fork2.IntoPatch()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok, _ := s.Snapshot().Get("t", []byte("k")); ok {
		t.Fatalf("committed state should not see a deleted key after merge")
	}
}

func TestMemStoreIterateOrdered(t *testing.T) {
	s := NewMemStore()
	fork := s.Fork()
	for _, k := range []string{"c", "a", "b"} {
		_ = fork.Put("t", []byte(k), []byte(k))
	}
	var seen []string
	err := fork.Iterate("t", nil, func(key, _ []byte) (bool, error) {
		seen = append(seen, string(key))
		return true, nil
	})
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("got %v, want %v", seen, want)
		}
	}
}

func TestForkFromPatchRestagesEntries(t *testing.T) {
	s := NewMemStore()
	fork := s.Fork()
	_ = fork.Put("t", []byte("k"), []byte("v1"))
	patch := fork.IntoPatch()

	restaged := ForkFromPatch(s, patch)
	if v, ok, _ := restaged.Get("t", []byte("k")); !ok || string(v) != "v1" {
		t.Fatalf("ForkFromPatch did not restage the patch's write")
	}
	_ = restaged.Put("t", []byte("k2"), []byte("v2"))
	if err := s.Merge(restaged.IntoPatch()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if v, ok, _ := s.Snapshot().Get("t", []byte("k")); !ok || string(v) != "v1" {
		t.Fatalf("expected original entry committed")
	}
	if v, ok, _ := s.Snapshot().Get("t", []byte("k2")); !ok || string(v) != "v2" {
		t.Fatalf("expected additional write layered atop the restaged patch")
	}
}
