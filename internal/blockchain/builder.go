package blockchain

import (
	"fmt"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/schema"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

// CreatePatch builds, but does not merge, a candidate block at height
// from the given ordered tx_hashes, resolving envelopes against
// persistent storage and falling back to txCache for anything not yet
// persisted (spec §4.3). Returns the block hash and the sealed patch;
// merging it is the Commit Engine's job.
func (l *Ledger) CreatePatch(proposer uint32, height uint64, txHashes []crypto.Hash, txCache map[crypto.Hash]chain.RawTransaction) (crypto.Hash, store.Patch, error) {
	return l.createPatch(proposer, height, txHashes, txCache)
}

func (l *Ledger) createPatch(proposer uint32, height uint64, txHashes []crypto.Hash, txCache map[crypto.Hash]chain.RawTransaction) (crypto.Hash, store.Patch, error) {
	fork := l.store.Fork()
	sch := schema.NewWriteSchema(fork)

	prevHash, err := sch.LastHash()
	if err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: last hash", err)
	}

	for index, txHash := range txHashes {
		result, err := l.executeOne(fork, height, uint32(index), txHash, txCache)
		if err != nil {
			// A StorageError here is the executor's own fatal rethrow;
			// propagate it unchanged.
			return crypto.Hash{}, nil, err
		}
		_ = result
	}

	if height > 0 {
		for _, svc := range l.registry.Ordered() {
			l.runBeforeCommit(fork, svc)
		}
	}

	// State-hash aggregation (spec §4.3 step 5).
	snap := fork // Fork satisfies store.Snapshot structurally (both expose View).
	coreRoots, err := sch.CoreStateHash()
	if err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: core state hash", err)
	}
	for tableIdx, root := range coreRoots {
		key := schema.ServiceTableUniqueKey(service.CoreServiceID, tableIdx)
		if err := sch.PutAggregatorEntry(key, root); err != nil {
			return crypto.Hash{}, nil, errs.NewStorageError("create_patch: put core aggregator entry", err)
		}
	}
	for _, svc := range l.registry.Ordered() {
		roots := svc.StateHash(snap)
		for tableIdx, root := range roots {
			key := schema.ServiceTableUniqueKey(svc.ID(), tableIdx)
			if err := sch.PutAggregatorEntry(key, root); err != nil {
				return crypto.Hash{}, nil, errs.NewStorageError("create_patch: put service aggregator entry", err)
			}
		}
	}
	stateHash, err := sch.AggregatorObjectHash()
	if err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: aggregator object hash", err)
	}

	txHashList, err := sch.BlockTxHashes(height)
	if err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: block tx hashes", err)
	}
	blockTxHash := crypto.HashList(txHashList)

	header := chain.Header{
		Proposer:  proposer,
		Height:    height,
		TxCount:   uint32(len(txHashList)),
		PrevHash:  prevHash,
		TxHash:    blockTxHash,
		StateHash: stateHash,
	}
	blockHash, err := header.Hash()
	if err != nil {
		return crypto.Hash{}, nil, fmt.Errorf("create_patch: hash header: %w", err)
	}

	if err := sch.PushHeight(blockHash); err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: push height", err)
	}
	if err := sch.PutBlock(blockHash, header); err != nil {
		return crypto.Hash{}, nil, errs.NewStorageError("create_patch: put block", err)
	}

	return blockHash, fork.IntoPatch(), nil
}

// runBeforeCommit invokes a service's before_commit hook under the same
// fault-barrier discipline as transaction execution (spec §4.3 step 4,
// §4.4): a StorageError cause is fatal and re-panics past this
// function; any other fault rolls the fork back and is logged, without
// failing the block.
func (l *Ledger) runBeforeCommit(fork store.Fork, svc service.Service) {
	fork.Flush()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if se, ok := r.(*errs.StorageError); ok {
					panic(se)
				}
				err = &errs.ServiceHookFailure{ServiceID: svc.ID(), Err: fmt.Errorf("%v", r)}
			}
		}()
		return svc.BeforeCommit(&service.Context{Fork: fork, ServiceID: svc.ID()})
	}()
	if err != nil {
		if se, ok := err.(*errs.StorageError); ok {
			panic(se)
		}
		fork.Rollback()
		l.log.WithError(err).WithField("service_id", svc.ID()).Error("before_commit failed")
		return
	}
	fork.Flush()
}
