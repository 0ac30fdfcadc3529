package blockchain

import (
	"fmt"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/metrics"
	"ledgercore/internal/schema"
	"ledgercore/internal/service"
	"ledgercore/internal/store"
)

// executeOne runs the Transaction Executor's five steps (spec §4.4)
// against fork for a single (tx_hash, height, index). It panics the
// caller (the block builder) on a BUG condition — a resolve or parse
// failure that propose-time validation should have excluded — since
// those are supposed to be unreachable once a block has been proposed.
func (l *Ledger) executeOne(fork store.Fork, height uint64, index uint32, txHash crypto.Hash, txCache map[crypto.Hash]chain.RawTransaction) (chain.TxResult, error) {
	sch := schema.NewWriteSchema(fork)

	// 1. Resolve envelope: persistent table, falling back to tx-cache.
	tx, ok, err := sch.Transaction(txHash)
	if err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: resolve transaction", err)
	}
	if !ok {
		if cached, cok := txCache[txHash]; cok {
			tx = &cached
		} else {
			panic(&errs.MissingTransactionError{TxHash: txHash})
		}
	}

	// 2. Resolve service & parse.
	handler, err := l.TxFromRaw(*tx)
	if err != nil {
		panic(err)
	}

	// 3. Execute under isolation.
	fork.Flush()
	result, err := l.runWithFaultBarrier(fork, handler, tx)
	if err != nil {
		return chain.TxResult{}, err
	}

	// 5. Record: persist the result, move the envelope from pool to
	// transactions (pool exclusivity — spec §3 invariant 3), and index it.
	metrics.TransactionsExecuted.WithLabelValues(txResultKindLabel(result.Kind)).Inc()
	if err := sch.PutTxResult(txHash, result); err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: put tx result", err)
	}
	if err := sch.CommitTransaction(txHash, *tx); err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: commit transaction", err)
	}
	if err := sch.RemoveFromPool(txHash); err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: remove from pool", err)
	}
	delete(txCache, txHash)
	if err := sch.PushBlockTx(height, index, txHash); err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: push block tx", err)
	}
	if err := sch.PutTxLocation(txHash, chain.TxLocation{Height: height, Index: index}); err != nil {
		return chain.TxResult{}, errs.NewStorageError("executor: put tx location", err)
	}
	fork.Flush()

	return result, nil
}

// runWithFaultBarrier runs handler.Execute under a recover-based fault
// barrier standing in for the original's panic::catch_unwind (spec
// §4.4 step 3-4). A *errs.StorageError cause is rethrown unchanged: the
// backing store is unusable and the node must halt. A structured
// *errs.TransactionFailure rolls the fork back and is classified
// TxResultErr. Any other fault rolls back and is classified
// TxResultPanic.
func (l *Ledger) runWithFaultBarrier(fork store.Fork, handler service.Handler, tx *chain.RawTransaction) (result chain.TxResult, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*errs.StorageError); ok {
				metrics.StorageFaults.Inc()
				panic(se)
			}
			fork.Rollback()
			desc := fmt.Sprintf("%v", r)
			l.log.WithField("service_id", tx.ServiceID).Error("transaction panicked: " + desc)
			result = chain.TxResult{Kind: chain.TxResultPanic, Description: desc}
		}
	}()

	ctx := &service.TxContext{Fork: fork, Raw: *tx}
	if svc, ok := l.registry.Lookup(tx.ServiceID); ok {
		ctx.ServiceName = svc.Name()
	}

	err := handler.Execute(ctx)
	if err == nil {
		return chain.TxResult{Kind: chain.TxResultOK}, nil
	}

	if se, ok := err.(*errs.StorageError); ok {
		// The deferred barrier above counts it and re-panics.
		panic(se)
	}

	if tf, ok := err.(*errs.TransactionFailure); ok {
		fork.Rollback()
		l.log.WithField("service_id", tx.ServiceID).WithField("code", tf.Code).Info("transaction failed: " + tf.Description)
		return chain.TxResult{Kind: chain.TxResultErr, Code: tf.Code, Description: tf.Description}, nil
	}

	fork.Rollback()
	l.log.WithField("service_id", tx.ServiceID).Error("transaction failed: " + err.Error())
	return chain.TxResult{Kind: chain.TxResultErr, Description: err.Error()}, nil
}

func txResultKindLabel(k chain.TxResultKind) string {
	switch k {
	case chain.TxResultOK:
		return "ok"
	case chain.TxResultErr:
		return "err"
	case chain.TxResultPanic:
		return "panic"
	default:
		return "unknown"
	}
}
