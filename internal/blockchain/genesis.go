package blockchain

import (
	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/schema"
)

// GenesisConfig carries the inputs the caller supplies to bootstrap a
// fresh chain (spec §4.2): the validator set and consensus parameters.
type GenesisConfig struct {
	ValidatorKeys []chain.ValidatorKeys
	Consensus     chain.ConsensusParams
}

// Initialize produces block 0 deterministically, or does nothing if the
// chain has already been bootstrapped (spec §4.2). Idempotent: a second
// call against an already-initialized store returns nil without
// touching state again.
func (l *Ledger) Initialize(cfg GenesisConfig) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	height, err := schema.NewSchema(l.store.Snapshot()).HeightLen()
	if err != nil {
		return errs.NewStorageError("genesis height check", err)
	}
	if height > 0 {
		return nil
	}

	fork := l.store.Fork()
	sch := schema.NewWriteSchema(fork)

	// Block 0 may already be staged by a concurrent bootstrapper that
	// raced us to the fork; re-check on the fork itself before doing
	// any work (spec §4.2 step 3).
	if n, err := sch.HeightLen(); err != nil {
		return errs.NewStorageError("genesis recheck", err)
	} else if n > 0 {
		return nil
	}

	services := map[string][]byte{}
	for _, svc := range l.registry.Ordered() {
		blob, err := svc.Initialize(fork)
		if err != nil {
			return errs.Wrap(err, "service initialize")
		}
		if _, exists := services[svc.Name()]; exists {
			return &errs.DuplicateServiceNameError{Name: svc.Name()}
		}
		services[svc.Name()] = blob
	}

	storedCfg := chain.StoredConfiguration{
		PreviousCfgHash: crypto.Zero,
		ActualFrom:      0,
		ValidatorKeys:   cfg.ValidatorKeys,
		Consensus:       cfg.Consensus,
		Services:        services,
	}
	if err := sch.CommitConfiguration(storedCfg); err != nil {
		return errs.NewStorageError("commit genesis configuration", err)
	}
	if err := l.store.Merge(fork.IntoPatch()); err != nil {
		return errs.NewStorageError("merge genesis configuration", err)
	}

	blockHash, patch, err := l.createPatch(0 /* proposer */, 0 /* height */, nil, map[crypto.Hash]chain.RawTransaction{})
	if err != nil {
		return errs.Wrap(err, "build genesis block")
	}
	if err := l.commit(patch, blockHash, nil, map[crypto.Hash]chain.RawTransaction{}); err != nil {
		return errs.Wrap(err, "commit genesis block")
	}
	return nil
}
