package schema

import (
	"testing"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/store"
)

func TestPushHeightAndLastHash(t *testing.T) {
	s := store.NewMemStore()
	fork := s.Fork()
	sch := NewWriteSchema(fork)

	if h, err := sch.LastHash(); err != nil || !h.IsZero() {
		t.Fatalf("LastHash on empty chain = %x, err=%v, want zero", h, err)
	}

	h1 := crypto.SumHash([]byte("block1"))
	if err := sch.PushHeight(h1); err != nil {
		t.Fatalf("PushHeight: %v", err)
	}
	got, err := sch.LastHash()
	if err != nil {
		t.Fatalf("LastHash: %v", err)
	}
	if got != h1 {
		t.Fatalf("LastHash = %x, want %x", got, h1)
	}

	n, err := sch.HeightLen()
	if err != nil || n != 1 {
		t.Fatalf("HeightLen = %d, err=%v, want 1", n, err)
	}
}

func TestPoolAddRemoveExclusivity(t *testing.T) {
	s := store.NewMemStore()
	fork := s.Fork()
	sch := NewWriteSchema(fork)

	tx := chain.RawTransaction{ServiceID: 1, Payload: []byte("payload")}
	hash, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if err := sch.AddToPool(hash, tx); err != nil {
		t.Fatalf("AddToPool: %v", err)
	}
	if n, _ := sch.PoolLen(); n != 1 {
		t.Fatalf("PoolLen after add = %d, want 1", n)
	}
	// Write-once: a second add is a no-op.
	if err := sch.AddToPool(hash, tx); err != nil {
		t.Fatalf("AddToPool (dup): %v", err)
	}
	if n, _ := sch.PoolLen(); n != 1 {
		t.Fatalf("PoolLen after dup add = %d, want 1", n)
	}

	if err := sch.CommitTransaction(hash, tx); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if err := sch.RemoveFromPool(hash); err != nil {
		t.Fatalf("RemoveFromPool: %v", err)
	}
	if n, _ := sch.PoolLen(); n != 0 {
		t.Fatalf("PoolLen after remove = %d, want 0", n)
	}

	inPool, err := sch.HasPoolTx(hash)
	if err != nil {
		t.Fatalf("HasPoolTx: %v", err)
	}
	inConfirmed, err := sch.HasTransaction(hash)
	if err != nil {
		t.Fatalf("HasTransaction: %v", err)
	}
	if inPool && inConfirmed {
		t.Fatalf("pool exclusivity violated: tx is in both pool and transactions")
	}
	if !inConfirmed {
		t.Fatalf("expected tx to be confirmed")
	}
}

func TestServiceTableUniqueKeyIsStable(t *testing.T) {
	a := ServiceTableUniqueKey(7, 2)
	b := ServiceTableUniqueKey(7, 2)
	if a != b {
		t.Fatalf("ServiceTableUniqueKey not stable across calls")
	}
	if a == ServiceTableUniqueKey(7, 3) {
		t.Fatalf("different table_idx must produce different keys")
	}
	if a == ServiceTableUniqueKey(8, 2) {
		t.Fatalf("different service_id must produce different keys")
	}
}

func TestAggregatorObjectHashOrderIndependent(t *testing.T) {
	s := store.NewMemStore()
	fork := s.Fork()
	sch := NewWriteSchema(fork)

	k1 := ServiceTableUniqueKey(1, 0)
	k2 := ServiceTableUniqueKey(2, 0)
	r1 := crypto.SumHash([]byte("root1"))
	r2 := crypto.SumHash([]byte("root2"))

	if err := sch.PutAggregatorEntry(k1, r1); err != nil {
		t.Fatalf("PutAggregatorEntry: %v", err)
	}
	if err := sch.PutAggregatorEntry(k2, r2); err != nil {
		t.Fatalf("PutAggregatorEntry: %v", err)
	}
	got1, err := sch.AggregatorObjectHash()
	if err != nil {
		t.Fatalf("AggregatorObjectHash: %v", err)
	}

	s2 := store.NewMemStore()
	fork2 := s2.Fork()
	sch2 := NewWriteSchema(fork2)
	if err := sch2.PutAggregatorEntry(k2, r2); err != nil {
		t.Fatalf("PutAggregatorEntry: %v", err)
	}
	if err := sch2.PutAggregatorEntry(k1, r1); err != nil {
		t.Fatalf("PutAggregatorEntry: %v", err)
	}
	got2, err := sch2.AggregatorObjectHash()
	if err != nil {
		t.Fatalf("AggregatorObjectHash: %v", err)
	}

	if got1 != got2 {
		t.Fatalf("aggregator object_hash depends on insertion order: %x != %x", got1, got2)
	}
}

func TestWriteMethodsPanicOnReadOnlySchema(t *testing.T) {
	s := store.NewMemStore()
	sch := NewSchema(s.Snapshot())

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic mutating a read-only schema")
		}
	}()
	_ = sch.PushHeight(crypto.Zero)
}

func TestHeaderHashCodecRoundTrip(t *testing.T) {
	s := store.NewMemStore()
	fork := s.Fork()
	sch := NewWriteSchema(fork)

	h := chain.Header{
		Proposer:  1,
		Height:    5,
		TxCount:   2,
		PrevHash:  crypto.SumHash([]byte("prev")),
		TxHash:    crypto.SumHash([]byte("txs")),
		StateHash: crypto.SumHash([]byte("state")),
	}
	hash, err := h.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := sch.PutBlock(hash, h); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	got, ok, err := sch.Block(hash)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if !ok {
		t.Fatalf("expected block to be found")
	}
	if *got != h {
		t.Fatalf("decoded header %+v != original %+v", *got, h)
	}
}
