package blockchain_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgercore/internal/blockchain"
	"ledgercore/internal/broadcast"
	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

const counterTable = "counter_state"

// counterService is a minimal test Service: every transaction
// increments a single persisted counter by one. It exists only to
// exercise the Ledger facade end to end, the way a teacher-style test
// fixture stands in for a real domain service.
type counterService struct{ beforeCommits int }

func (c *counterService) ID() uint16   { return 1 }
func (c *counterService) Name() string { return "counter" }

func (c *counterService) Initialize(fork store.Fork) ([]byte, error) {
	if err := fork.Put(counterTable, []byte("value"), encodeUint64(0)); err != nil {
		return nil, err
	}
	return []byte("counter-genesis"), nil
}

type counterHandler struct{}

func (counterHandler) Execute(ctx *service.TxContext) error {
	cur, ok, err := ctx.Fork.Get(counterTable, []byte("value"))
	if err != nil {
		return err
	}
	var n uint64
	if ok {
		n = binary.BigEndian.Uint64(cur)
	}
	return ctx.Fork.Put(counterTable, []byte("value"), encodeUint64(n+1))
}

func (c *counterService) TxFromRaw(raw chain.RawTransaction) (service.Handler, error) {
	return counterHandler{}, nil
}

func (c *counterService) BeforeCommit(ctx *service.Context) error {
	c.beforeCommits++
	return nil
}

func (c *counterService) AfterCommit(ctx *service.AfterCommitContext) {}

func (c *counterService) StateHash(snapshot store.Snapshot) []crypto.Hash {
	v, ok, err := snapshot.Get(counterTable, []byte("value"))
	if err != nil || !ok {
		return []crypto.Hash{crypto.Zero}
	}
	return []crypto.Hash{crypto.SumHash(v)}
}

func encodeUint64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// namedService is a bare-bones Service test double with a configurable
// ID/Name, used to exercise genesis's own name-uniqueness check (distinct
// from Registry's service_id check).
type namedService struct {
	id   uint16
	name string
}

func (s *namedService) ID() uint16   { return s.id }
func (s *namedService) Name() string { return s.name }
func (s *namedService) Initialize(fork store.Fork) ([]byte, error) {
	return []byte(s.name), nil
}
func (s *namedService) TxFromRaw(raw chain.RawTransaction) (service.Handler, error) {
	return nil, nil
}
func (s *namedService) BeforeCommit(ctx *service.Context) error     { return nil }
func (s *namedService) AfterCommit(ctx *service.AfterCommitContext) {}
func (s *namedService) StateHash(snapshot store.Snapshot) []crypto.Hash {
	return nil
}

func newTestLedger(t *testing.T, services []service.Service) *blockchain.Ledger {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sink := broadcast.NewChannelSink(8)
	l, err := blockchain.New(store.NewMemStore(), services, kp, sink)
	require.NoError(t, err)
	return l
}

func TestGenesisIsIdempotent(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})

	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))
	first, err := l.LastHash()
	require.NoError(t, err)
	require.False(t, first.IsZero())

	// A second Initialize call against the same store must be a no-op.
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))
	second, err := l.LastHash()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenesisSkipsBeforeCommit(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))
	require.Equal(t, 0, svc.beforeCommits, "before_commit must be skipped at height 0")
}

func TestCreatePatchAndCommitAdvancesHeight(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))

	tx := chain.RawTransaction{ServiceID: 1, Payload: []byte("increment")}
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(kp.Public, kp.Private))
	txHash, err := tx.Hash()
	require.NoError(t, err)

	txCache := map[crypto.Hash]chain.RawTransaction{txHash: tx}
	blockHash, patch, err := l.CreatePatch(1, 1, []crypto.Hash{txHash}, txCache)
	require.NoError(t, err)
	require.False(t, blockHash.IsZero())

	require.NoError(t, l.Commit(patch, blockHash, nil, txCache))
	require.Equal(t, 1, svc.beforeCommits, "before_commit must run once at height > 0")

	last, err := l.LastBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(1), last.Height)
	require.Equal(t, uint32(1), last.TxCount)

	// Pool exclusivity: the included tx must not still be sitting in the
	// mempool, and the tx-cache must have been drained.
	poolSize, err := l.PoolSize()
	require.NoError(t, err)
	require.Equal(t, uint64(0), poolSize)
	require.Empty(t, txCache)
}

func TestStateHashChangesWithServiceState(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))

	genesisHeader, err := l.LastBlock()
	require.NoError(t, err)

	tx := chain.RawTransaction{ServiceID: 1, Payload: []byte("increment")}
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(kp.Public, kp.Private))
	txHash, err := tx.Hash()
	require.NoError(t, err)
	txCache := map[crypto.Hash]chain.RawTransaction{txHash: tx}

	blockHash, patch, err := l.CreatePatch(1, 1, []crypto.Hash{txHash}, txCache)
	require.NoError(t, err)
	require.NoError(t, l.Commit(patch, blockHash, nil, txCache))

	header, err := l.LastBlock()
	require.NoError(t, err)
	require.NotEqual(t, genesisHeader.StateHash, header.StateHash,
		"committing a transaction that mutates service state must change the block's state_hash")
	require.Equal(t, genesisHeader.Height+1, header.Height)
}

// TestGenesisRejectsDuplicateServiceName confirms the name-uniqueness
// check genesis performs (spec §3's auxiliary invariant, separate from
// Registry's service_id check) actually fires: two services with
// distinct IDs but the same name must be registrable, but Initialize
// must refuse to bootstrap genesis with them both.
func TestGenesisRejectsDuplicateServiceName(t *testing.T) {
	a := &namedService{id: 1, name: "dup"}
	b := &namedService{id: 2, name: "dup"}
	l := newTestLedger(t, []service.Service{a, b})

	err := l.Initialize(blockchain.GenesisConfig{})
	require.Error(t, err)
	_, ok := err.(*errs.DuplicateServiceNameError)
	require.True(t, ok, "expected *errs.DuplicateServiceNameError, got %T: %v", err, err)
}

func TestCreatePatchPanicsOnUnresolvableTxHash(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))

	missing := crypto.SumHash([]byte("not-anywhere"))
	require.Panics(t, func() {
		_, _, _ = l.CreatePatch(1, 1, []crypto.Hash{missing}, map[crypto.Hash]chain.RawTransaction{})
	})
}

func TestBroadcastRawTransactionUnknownService(t *testing.T) {
	l := newTestLedger(t, nil)
	err := l.BroadcastRawTransaction(99, []byte("payload"))
	require.Error(t, err)
}

// TestCommittedTransactionLeavesPersistentPool exercises pool exclusivity
// (spec §3 invariant 3, §8 property 4) through the real persistent pool
// rather than only through txCache: a tx first lands in the mempool via
// commit's drain step (one empty block), then gets included in a later
// block, and must be gone from the pool afterward.
func TestCommittedTransactionLeavesPersistentPool(t *testing.T) {
	svc := &counterService{}
	l := newTestLedger(t, []service.Service{svc})
	require.NoError(t, l.Initialize(blockchain.GenesisConfig{}))

	tx := chain.RawTransaction{ServiceID: 1, Payload: []byte("increment")}
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(kp.Public, kp.Private))
	txHash, err := tx.Hash()
	require.NoError(t, err)

	// Height 1: an empty block whose txCache still holds tx. Commit's
	// drain step must add it to the persistent mempool.
	pendingCache := map[crypto.Hash]chain.RawTransaction{txHash: tx}
	blockHash, patch, err := l.CreatePatch(1, 1, nil, pendingCache)
	require.NoError(t, err)
	require.NoError(t, l.Commit(patch, blockHash, nil, pendingCache))

	poolSize, err := l.PoolSize()
	require.NoError(t, err)
	require.Equal(t, uint64(1), poolSize, "tx must be sitting in the persistent mempool after the drain step")

	// Height 2: the same tx is now included in a block.
	includeCache := map[crypto.Hash]chain.RawTransaction{txHash: tx}
	blockHash2, patch2, err := l.CreatePatch(1, 2, []crypto.Hash{txHash}, includeCache)
	require.NoError(t, err)
	require.NoError(t, l.Commit(patch2, blockHash2, nil, includeCache))

	poolSize, err = l.PoolSize()
	require.NoError(t, err)
	require.Equal(t, uint64(0), poolSize, "confirming a tx must remove it from the persistent mempool")
}
