package blockchain

import (
	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/metrics"
	"ledgercore/internal/schema"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

// Commit runs the Commit Engine (spec §4.5) over a patch produced by
// CreatePatch, sealing the block into committed state.
func (l *Ledger) Commit(patch store.Patch, blockHash crypto.Hash, precommits []chain.Precommit, txCache map[crypto.Hash]chain.RawTransaction) error {
	return l.commit(patch, blockHash, precommits, txCache)
}

func (l *Ledger) commit(patch store.Patch, blockHash crypto.Hash, precommits []chain.Precommit, txCache map[crypto.Hash]chain.RawTransaction) error {
	// 1. Convert patch back into a fork.
	fork := store.ForkFromPatch(l.store, patch)
	sch := schema.NewWriteSchema(fork)

	// 2. Append precommits.
	if len(precommits) > 0 {
		if err := sch.ExtendPrecommits(blockHash, precommits); err != nil {
			return errs.NewStorageError("commit: extend precommits", err)
		}
	}

	// 3. Clear the height-scoped consensus message cache.
	if err := sch.ClearConsensusMessages(); err != nil {
		return errs.NewStorageError("commit: clear consensus messages", err)
	}

	// 4. Add the new block's tx_count to the running counter.
	header, ok, err := sch.Block(blockHash)
	if err != nil {
		return errs.NewStorageError("commit: read committed block", err)
	}
	if ok {
		if err := sch.AddTransactionCount(uint64(header.TxCount)); err != nil {
			return errs.NewStorageError("commit: add transaction count", err)
		}
	}

	// 5. Drain tx-cache into the mempool.
	for hash, envelope := range txCache {
		delete(txCache, hash)
		has, err := sch.HasTransaction(hash)
		if err != nil {
			return errs.NewStorageError("commit: check persisted transaction", err)
		}
		if has {
			continue
		}
		if err := sch.AddToPool(hash, envelope); err != nil {
			return errs.NewStorageError("commit: add to pool", err)
		}
	}

	// 6. Merge. Failure here is unrecoverable: the node must not resume
	// normal operation.
	if err := l.store.Merge(fork.IntoPatch()); err != nil {
		metrics.StorageFaults.Inc()
		return errs.NewStorageError("commit: merge", err)
	}
	metrics.BlocksCommitted.Inc()
	if n, err := sch.PoolLen(); err == nil {
		metrics.PoolSize.Set(float64(n))
	}
	if ok {
		l.headerCache.Add(blockHash, *header)
	}

	// 7. after_commit, in ascending service_id order, each against its
	// own fresh fork. Mirrors the original: the fork only exists to
	// populate the service context (e.g. for an after_commit hook to
	// inspect freshly-committed state or stage messages to broadcast),
	// and is never merged back — any fork writes are discarded. Not
	// fault-isolated by this layer (spec §4.5 step 7): a panicking
	// service propagates past Commit unguarded.
	for _, svc := range l.registry.Ordered() {
		svc.AfterCommit(&service.AfterCommitContext{
			Fork:      l.store.Fork(),
			ServiceID: svc.ID(),
			KeyPair:   l.keyPair,
			Sink:      l.sink,
		})
	}

	return nil
}
