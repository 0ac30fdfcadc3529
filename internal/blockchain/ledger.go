// Package blockchain implements the block-production and commit core:
// the Ledger facade (spec §4.1), genesis (§4.2), the block builder
// (§4.3), the transaction executor (§4.4), and the commit engine (§4.5).
package blockchain

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"ledgercore/internal/broadcast"
	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/schema"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

// headerCacheSize bounds the in-memory header cache below. Headers are
// tiny and read far more often than written, the same recent-headers
// cache shape go-ethereum's core/blockchain.go keeps for the hot path.
const headerCacheSize = 1024

// Ledger is the entry point for every operation the consensus and API
// layers perform against the chain state (spec §4.1).
type Ledger struct {
	// writeMu serializes genesis bootstrap: Initialize holds it for the
	// whole check-initialize-commit sequence. CreatePatch, Commit and the
	// cache writers do not take it; for them the single-writer invariant
	// is a contract on the caller (spec §5), not something the core
	// enforces.
	writeMu sync.Mutex

	store       store.Store
	registry    *service.Registry
	keyPair     crypto.KeyPair
	sink        broadcast.Sink
	log         *logrus.Logger
	headerCache *lru.Cache[crypto.Hash, chain.Header]
}

// New builds a Ledger for the given storage, service set, service
// keypair, and broadcast sink. Fails if two services share a
// service_id (spec §4.1, §7 DuplicateServiceId).
func New(st store.Store, services []service.Service, keyPair crypto.KeyPair, sink broadcast.Sink) (*Ledger, error) {
	reg, err := service.NewRegistry(services)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[crypto.Hash, chain.Header](headerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		store:       st,
		registry:    reg,
		keyPair:     keyPair,
		sink:        sink,
		log:         logrus.StandardLogger(),
		headerCache: cache,
	}, nil
}

// Clone returns a cheap copy sharing the store handle, service registry,
// and broadcast sink; the keypair is duplicated (spec §4.1 Cloneability).
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		store:       l.store,
		registry:    l.registry,
		keyPair:     l.keyPair.Clone(),
		sink:        l.sink,
		log:         l.log,
		headerCache: l.headerCache,
	}
}

// Snapshot returns a read-only, point-in-time view of committed state.
func (l *Ledger) Snapshot() store.Snapshot { return l.store.Snapshot() }

// Fork returns a writable, isolated overlay atop committed state.
func (l *Ledger) Fork() store.Fork { return l.store.Fork() }

// Merge atomically applies patch to committed state.
func (l *Ledger) Merge(patch store.Patch) error {
	if err := l.store.Merge(patch); err != nil {
		return errs.NewStorageError("merge", err)
	}
	return nil
}

// TxFromRaw resolves raw's service and parses its payload, returning
// *errs.UnknownServiceError or a wrapped parse error when it cannot
// (spec §4.1).
func (l *Ledger) TxFromRaw(raw chain.RawTransaction) (service.Handler, error) {
	svc, ok := l.registry.Lookup(raw.ServiceID)
	if !ok {
		return nil, &errs.UnknownServiceError{ServiceID: raw.ServiceID}
	}
	handler, err := svc.TxFromRaw(raw)
	if err != nil {
		return nil, &errs.UnparseableTransactionError{ServiceID: raw.ServiceID, Err: err}
	}
	return handler, nil
}

// LastHash returns the most recently committed block's hash.
func (l *Ledger) LastHash() (crypto.Hash, error) {
	sch := schema.NewSchema(l.store.Snapshot())
	h, err := sch.LastHash()
	if err != nil {
		return crypto.Hash{}, errs.NewStorageError("last hash", err)
	}
	return h, nil
}

// LastBlock returns the most recently committed block header.
func (l *Ledger) LastBlock() (*chain.Header, error) {
	sch := schema.NewSchema(l.store.Snapshot())
	lastHash, err := sch.LastHash()
	if err != nil {
		return nil, errs.NewStorageError("last hash", err)
	}
	return l.Block(lastHash)
}

// Block returns the header committed under hash, consulting the
// in-memory header cache before falling back to storage.
func (l *Ledger) Block(hash crypto.Hash) (*chain.Header, error) {
	if h, ok := l.headerCache.Get(hash); ok {
		return &h, nil
	}
	sch := schema.NewSchema(l.store.Snapshot())
	header, ok, err := sch.Block(hash)
	if err != nil {
		return nil, errs.NewStorageError("block", err)
	}
	if !ok {
		return nil, nil
	}
	l.headerCache.Add(hash, *header)
	return header, nil
}

// PoolSize returns the current mempool length.
func (l *Ledger) PoolSize() (uint64, error) {
	sch := schema.NewSchema(l.store.Snapshot())
	n, err := sch.PoolLen()
	if err != nil {
		return 0, errs.NewStorageError("pool size", err)
	}
	return n, nil
}

// BroadcastRawTransaction signs a payload for serviceID with the node's
// own service keypair and hands it to the broadcast sink. Fails with
// *errs.UnknownServiceError if serviceID is not registered.
func (l *Ledger) BroadcastRawTransaction(serviceID uint16, payload []byte) error {
	if _, ok := l.registry.Lookup(serviceID); !ok {
		return &errs.UnknownServiceError{ServiceID: serviceID}
	}
	tx := chain.RawTransaction{ServiceID: serviceID, Payload: payload}
	if err := tx.Sign(l.keyPair.Public, l.keyPair.Private); err != nil {
		return err
	}
	return l.sink.Broadcast(tx)
}

// SavePeer persists the signed Connect message from a peer. Storage
// errors here are fatal: there is no recovery path (spec §4.1).
func (l *Ledger) SavePeer(pubkey crypto.PublicKey, conn chain.Connect) error {
	fork := l.store.Fork()
	if err := schema.NewWriteSchema(fork).SavePeer(pubkey, conn); err != nil {
		return errs.NewStorageError("save peer", err)
	}
	if err := l.store.Merge(fork.IntoPatch()); err != nil {
		return errs.NewStorageError("save peer merge", err)
	}
	return nil
}

// RemovePeerWithPubkey removes the cached Connect message for pubkey.
func (l *Ledger) RemovePeerWithPubkey(pubkey crypto.PublicKey) error {
	fork := l.store.Fork()
	if err := schema.NewWriteSchema(fork).RemovePeer(pubkey); err != nil {
		return errs.NewStorageError("remove peer", err)
	}
	if err := l.store.Merge(fork.IntoPatch()); err != nil {
		return errs.NewStorageError("remove peer merge", err)
	}
	return nil
}

// GetSavedPeers returns every cached peer Connect message.
func (l *Ledger) GetSavedPeers() (map[crypto.PublicKey]chain.Connect, error) {
	sch := schema.NewSchema(l.store.Snapshot())
	peers, err := sch.SavedPeers()
	if err != nil {
		return nil, errs.NewStorageError("get saved peers", err)
	}
	return peers, nil
}

// SaveMessages persists consensus messages to the round-scoped cache.
func (l *Ledger) SaveMessages(round uint32, msgs []chain.ConsensusMessage) error {
	fork := l.store.Fork()
	sch := schema.NewWriteSchema(fork)
	if err := sch.ExtendConsensusMessages(msgs); err != nil {
		return errs.NewStorageError("save messages", err)
	}
	if err := sch.SetConsensusRound(round); err != nil {
		return errs.NewStorageError("save messages round", err)
	}
	if err := l.store.Merge(fork.IntoPatch()); err != nil {
		return errs.NewStorageError("save messages merge", err)
	}
	return nil
}
