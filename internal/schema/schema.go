// Package schema provides typed views over the store's named tables,
// implementing the persistent schema of spec §3: blocks, the tx pool,
// results, locations, precommits, the state-hash aggregator, and the
// peer/consensus-message caches.
package schema

import (
	"encoding/binary"
	"fmt"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/store"
)

// Table names, kept as stable strings per spec §6 ("tables are keyed by
// stable string names").
const (
	TableBlocks              = "blocks"
	TableHeights             = "block_hashes_by_height"
	TableBlockTxs            = "block_transactions"
	TableTransactions        = "transactions"
	TableTxPool              = "transactions_pool"
	TableTxResults           = "transaction_results"
	TableTxLocations         = "transactions_locations"
	TablePrecommits          = "precommits"
	TableStateHashAgg        = "state_hash_aggregator"
	TablePeersCache          = "peers_cache"
	TableConsensusMsgCache   = "consensus_messages_cache"
	TableConsensusRound      = "consensus_round"
	TableConfigs             = "configs"
	TableCounters            = "counters"
)

const (
	counterPoolLen     = "pool_len"
	counterTxCount     = "tx_count"
	counterConsensusN  = "consensus_msg_next"
	singleRoundKey     = "round"
	singleLatestCfgKey = "latest"
)

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// Schema wraps a store.View (read-only) or store.Fork (read-write) and
// exposes the typed table accessors. Methods that mutate state panic if
// constructed over a read-only View; callers needing writes must use
// NewWriteSchema.
type Schema struct {
	view store.View
	fork store.Fork
}

// NewSchema builds a read-only Schema over any View (a Snapshot or a
// Fork).
func NewSchema(v store.View) *Schema {
	return &Schema{view: v}
}

// NewWriteSchema builds a writable Schema over a Fork.
func NewWriteSchema(f store.Fork) *Schema {
	return &Schema{view: f, fork: f}
}

func (s *Schema) mustFork(op string) store.Fork {
	if s.fork == nil {
		panic(fmt.Sprintf("schema: %s requires a writable Fork", op))
	}
	return s.fork
}

// ---- blocks -----------------------------------------------------------

// Block looks up a committed header by hash.
func (s *Schema) Block(hash crypto.Hash) (*chain.Header, bool, error) {
	raw, ok, err := s.view.Get(TableBlocks, hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	var h chain.Header
	if err := decodeHeader(raw, &h); err != nil {
		return nil, false, err
	}
	return &h, true, nil
}

// PutBlock stores header under hash.
func (s *Schema) PutBlock(hash crypto.Hash, h chain.Header) error {
	enc, err := encodeHeader(h)
	if err != nil {
		return err
	}
	return s.mustFork("PutBlock").Put(TableBlocks, hash.Bytes(), enc)
}

// ---- block_hashes_by_height -------------------------------------------

// HeightLen returns the number of committed blocks (the next height to
// be assigned).
func (s *Schema) HeightLen() (uint64, error) {
	var n uint64
	err := s.view.Iterate(TableHeights, nil, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// HashAtHeight returns the block hash committed at height.
func (s *Schema) HashAtHeight(height uint64) (crypto.Hash, bool, error) {
	raw, ok, err := s.view.Get(TableHeights, be64(height))
	if err != nil || !ok {
		return crypto.Hash{}, ok, err
	}
	return crypto.HashFromBytes(raw), true, nil
}

// LastHash returns the most recently committed block hash, or the zero
// hash if no block has been committed yet.
func (s *Schema) LastHash() (crypto.Hash, error) {
	n, err := s.HeightLen()
	if err != nil || n == 0 {
		return crypto.Hash{}, err
	}
	h, _, err := s.HashAtHeight(n - 1)
	return h, err
}

// PushHeight appends hash as the next committed height.
func (s *Schema) PushHeight(hash crypto.Hash) error {
	n, err := s.HeightLen()
	if err != nil {
		return err
	}
	return s.mustFork("PushHeight").Put(TableHeights, be64(n), hash.Bytes())
}

// ---- block_transactions[height] ---------------------------------------

// BlockTxHashes returns the ordered tx hashes applied at height.
func (s *Schema) BlockTxHashes(height uint64) ([]crypto.Hash, error) {
	var out []crypto.Hash
	err := s.view.Iterate(TableBlockTxs, be64(height), func(_, value []byte) (bool, error) {
		out = append(out, crypto.HashFromBytes(value))
		return true, nil
	})
	return out, err
}

// PushBlockTx appends txHash to block_transactions[height] at the given
// index (the executor calls this once per transaction, in input order).
func (s *Schema) PushBlockTx(height uint64, index uint32, txHash crypto.Hash) error {
	key := append(be64(height), be32(index)...)
	return s.mustFork("PushBlockTx").Put(TableBlockTxs, key, txHash.Bytes())
}

// ---- transactions (confirmed) ------------------------------------------

// Transaction looks up a confirmed transaction envelope by hash.
func (s *Schema) Transaction(hash crypto.Hash) (*chain.RawTransaction, bool, error) {
	raw, ok, err := s.view.Get(TableTransactions, hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	var tx chain.RawTransaction
	if err := decodeRawTx(raw, &tx); err != nil {
		return nil, false, err
	}
	return &tx, true, nil
}

// HasTransaction reports whether hash is present in the confirmed table.
func (s *Schema) HasTransaction(hash crypto.Hash) (bool, error) {
	_, ok, err := s.view.Get(TableTransactions, hash.Bytes())
	return ok, err
}

// CommitTransaction moves tx into the confirmed transactions table.
func (s *Schema) CommitTransaction(hash crypto.Hash, tx chain.RawTransaction) error {
	enc, err := encodeRawTx(tx)
	if err != nil {
		return err
	}
	return s.mustFork("CommitTransaction").Put(TableTransactions, hash.Bytes(), enc)
}

// ---- transactions_pool (mempool) ---------------------------------------

// PoolLen returns the persisted mempool length counter.
func (s *Schema) PoolLen() (uint64, error) {
	raw, ok, err := s.view.Get(TableCounters, []byte(counterPoolLen))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Schema) setPoolLen(n uint64) error {
	return s.mustFork("setPoolLen").Put(TableCounters, []byte(counterPoolLen), be64(n))
}

// HasPoolTx reports whether hash is in the mempool.
func (s *Schema) HasPoolTx(hash crypto.Hash) (bool, error) {
	_, ok, err := s.view.Get(TableTxPool, hash.Bytes())
	return ok, err
}

// AddToPool inserts tx into the mempool, write-once (dedup by hash), and
// increments the pool-length counter.
func (s *Schema) AddToPool(hash crypto.Hash, tx chain.RawTransaction) error {
	if ok, err := s.HasPoolTx(hash); err != nil {
		return err
	} else if ok {
		return nil
	}
	enc, err := encodeRawTx(tx)
	if err != nil {
		return err
	}
	if err := s.mustFork("AddToPool").Put(TableTxPool, hash.Bytes(), enc); err != nil {
		return err
	}
	n, err := s.PoolLen()
	if err != nil {
		return err
	}
	return s.setPoolLen(n + 1)
}

// RemoveFromPool removes hash from the mempool (e.g. once included in a
// block) and decrements the counter.
func (s *Schema) RemoveFromPool(hash crypto.Hash) error {
	if ok, err := s.HasPoolTx(hash); err != nil || !ok {
		return err
	}
	if err := s.mustFork("RemoveFromPool").Delete(TableTxPool, hash.Bytes()); err != nil {
		return err
	}
	n, err := s.PoolLen()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.setPoolLen(n - 1)
}

// PoolTxHashes returns every tx hash currently in the mempool.
func (s *Schema) PoolTxHashes() ([]crypto.Hash, error) {
	var out []crypto.Hash
	err := s.view.Iterate(TableTxPool, nil, func(key, _ []byte) (bool, error) {
		out = append(out, crypto.HashFromBytes(key))
		return true, nil
	})
	return out, err
}

// ---- transaction_results -----------------------------------------------

// TxResult returns the recorded classification for a confirmed
// transaction.
func (s *Schema) TxResult(hash crypto.Hash) (*chain.TxResult, bool, error) {
	raw, ok, err := s.view.Get(TableTxResults, hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	var r chain.TxResult
	if err := decodeTxResult(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

// PutTxResult records the classified result of executing hash.
func (s *Schema) PutTxResult(hash crypto.Hash, r chain.TxResult) error {
	enc, err := encodeTxResult(r)
	if err != nil {
		return err
	}
	return s.mustFork("PutTxResult").Put(TableTxResults, hash.Bytes(), enc)
}

// ---- transactions_locations ---------------------------------------------

// TxLocation returns where a confirmed transaction was included.
func (s *Schema) TxLocation(hash crypto.Hash) (*chain.TxLocation, bool, error) {
	raw, ok, err := s.view.Get(TableTxLocations, hash.Bytes())
	if err != nil || !ok {
		return nil, ok, err
	}
	loc := chain.TxLocation{
		Height: binary.BigEndian.Uint64(raw[:8]),
		Index:  binary.BigEndian.Uint32(raw[8:12]),
	}
	return &loc, true, nil
}

// PutTxLocation records where a confirmed transaction was included.
func (s *Schema) PutTxLocation(hash crypto.Hash, loc chain.TxLocation) error {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], loc.Height)
	binary.BigEndian.PutUint32(buf[8:12], loc.Index)
	return s.mustFork("PutTxLocation").Put(TableTxLocations, hash.Bytes(), buf)
}

// ---- precommits[block_hash] ---------------------------------------------

// Precommits returns the signed precommits recorded for blockHash.
func (s *Schema) Precommits(blockHash crypto.Hash) ([]chain.Precommit, error) {
	var out []chain.Precommit
	err := s.view.Iterate(TablePrecommits, blockHash.Bytes(), func(_, value []byte) (bool, error) {
		var p chain.Precommit
		if err := decodePrecommit(value, &p); err != nil {
			return false, err
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

// ExtendPrecommits appends precommits to blockHash's list.
func (s *Schema) ExtendPrecommits(blockHash crypto.Hash, precommits []chain.Precommit) error {
	existing, err := s.Precommits(blockHash)
	if err != nil {
		return err
	}
	f := s.mustFork("ExtendPrecommits")
	for i, p := range precommits {
		enc, err := encodePrecommit(p)
		if err != nil {
			return err
		}
		key := append(blockHash.Bytes(), be32(uint32(len(existing)+i))...)
		if err := f.Put(TablePrecommits, key, enc); err != nil {
			return err
		}
	}
	return nil
}

// ---- state_hash_aggregator -----------------------------------------------

// ServiceTableUniqueKey maps (service_id, table_idx) to the 32-byte key
// used by the state-hash aggregator, following the Rust original's
// Blockchain::service_table_unique_key exactly: LE16(service_id) ‖
// LE16(table_idx), digested.
func ServiceTableUniqueKey(serviceID uint16, tableIdx int) crypto.Hash {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], serviceID)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(tableIdx))
	return crypto.SumHash(buf)
}

// PutAggregatorEntry inserts a (unique_key, root_hash) pair.
func (s *Schema) PutAggregatorEntry(key, root crypto.Hash) error {
	return s.mustFork("PutAggregatorEntry").Put(TableStateHashAgg, key.Bytes(), root.Bytes())
}

// AggregatorObjectHash computes the current aggregator's own root, the
// value that becomes a block's state_hash. Entries are folded in sorted
// key order so the result never depends on table iteration order (spec
// §4.3 determinism rationale).
func (s *Schema) AggregatorObjectHash() (crypto.Hash, error) {
	var leaves [][]byte
	err := s.view.Iterate(TableStateHashAgg, nil, func(key, value []byte) (bool, error) {
		leaf := make([]byte, 0, len(key)+len(value))
		leaf = append(leaf, key...)
		leaf = append(leaf, value...)
		leaves = append(leaves, leaf)
		return true, nil
	})
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.ObjectHash(leaves), nil
}

// ---- peers_cache ----------------------------------------------------------

// SavePeer persists the signed Connect message for pubkey.
func (s *Schema) SavePeer(pubkey crypto.PublicKey, conn chain.Connect) error {
	enc, err := encodeConnect(conn)
	if err != nil {
		return err
	}
	return s.mustFork("SavePeer").Put(TablePeersCache, pubkey[:], enc)
}

// RemovePeer removes the cached Connect message for pubkey.
func (s *Schema) RemovePeer(pubkey crypto.PublicKey) error {
	return s.mustFork("RemovePeer").Delete(TablePeersCache, pubkey[:])
}

// SavedPeers returns every cached peer Connect message.
func (s *Schema) SavedPeers() (map[crypto.PublicKey]chain.Connect, error) {
	out := make(map[crypto.PublicKey]chain.Connect)
	err := s.view.Iterate(TablePeersCache, nil, func(key, value []byte) (bool, error) {
		var pub crypto.PublicKey
		copy(pub[:], key)
		var conn chain.Connect
		if err := decodeConnect(value, &conn); err != nil {
			return false, err
		}
		out[pub] = conn
		return true, nil
	})
	return out, err
}

// ---- consensus_messages_cache ---------------------------------------------

// ExtendConsensusMessages appends msgs to the current height's cache.
func (s *Schema) ExtendConsensusMessages(msgs []chain.ConsensusMessage) error {
	raw, ok, err := s.view.Get(TableCounters, []byte(counterConsensusN))
	if err != nil {
		return err
	}
	var next uint64
	if ok {
		next = binary.BigEndian.Uint64(raw)
	}
	f := s.mustFork("ExtendConsensusMessages")
	for i, m := range msgs {
		enc, err := encodeConsensusMessage(m)
		if err != nil {
			return err
		}
		if err := f.Put(TableConsensusMsgCache, be64(next+uint64(i)), enc); err != nil {
			return err
		}
	}
	return f.Put(TableCounters, []byte(counterConsensusN), be64(next+uint64(len(msgs))))
}

// ConsensusMessages returns every cached message for the current height.
func (s *Schema) ConsensusMessages() ([]chain.ConsensusMessage, error) {
	var out []chain.ConsensusMessage
	err := s.view.Iterate(TableConsensusMsgCache, nil, func(_, value []byte) (bool, error) {
		var m chain.ConsensusMessage
		if err := decodeConsensusMessage(value, &m); err != nil {
			return false, err
		}
		out = append(out, m)
		return true, nil
	})
	return out, err
}

// ClearConsensusMessages empties the cache; called on every height
// transition (spec §3 lifecycle).
func (s *Schema) ClearConsensusMessages() error {
	var keys [][]byte
	if err := s.view.Iterate(TableConsensusMsgCache, nil, func(key, _ []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), key...))
		return true, nil
	}); err != nil {
		return err
	}
	f := s.mustFork("ClearConsensusMessages")
	for _, k := range keys {
		if err := f.Delete(TableConsensusMsgCache, k); err != nil {
			return err
		}
	}
	return f.Put(TableCounters, []byte(counterConsensusN), be64(0))
}

// ---- consensus_round --------------------------------------------------------

// ConsensusRound returns the current round number.
func (s *Schema) ConsensusRound() (uint32, error) {
	raw, ok, err := s.view.Get(TableConsensusRound, []byte(singleRoundKey))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw), nil
}

// SetConsensusRound updates the current round number.
func (s *Schema) SetConsensusRound(round uint32) error {
	return s.mustFork("SetConsensusRound").Put(TableConsensusRound, []byte(singleRoundKey), be32(round))
}

// ---- configs (configuration history) ---------------------------------------

// CommitConfiguration records cfg as the active configuration.
func (s *Schema) CommitConfiguration(cfg chain.StoredConfiguration) error {
	enc, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	f := s.mustFork("CommitConfiguration")
	if err := f.Put(TableConfigs, be64(cfg.ActualFrom), enc); err != nil {
		return err
	}
	return f.Put(TableConfigs, []byte(singleLatestCfgKey), enc)
}

// LatestConfiguration returns the most recently committed configuration.
func (s *Schema) LatestConfiguration() (*chain.StoredConfiguration, bool, error) {
	raw, ok, err := s.view.Get(TableConfigs, []byte(singleLatestCfgKey))
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg chain.StoredConfiguration
	if err := decodeConfig(raw, &cfg); err != nil {
		return nil, false, err
	}
	return &cfg, true, nil
}

// ---- transaction_count counter ---------------------------------------------

// TransactionCount returns the running total of transactions ever
// included in a committed block.
func (s *Schema) TransactionCount() (uint64, error) {
	raw, ok, err := s.view.Get(TableCounters, []byte(counterTxCount))
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

// AddTransactionCount adds delta to the running transaction-count
// counter.
func (s *Schema) AddTransactionCount(delta uint64) error {
	n, err := s.TransactionCount()
	if err != nil {
		return err
	}
	return s.mustFork("AddTransactionCount").Put(TableCounters, []byte(counterTxCount), be64(n+delta))
}

// ---- core-schema state hash (service_id = 0) --------------------------------

// CoreStateHash returns the root hashes of the core schema's own tables,
// in a fixed order, for aggregation under the reserved CoreServiceID
// (spec §4.3 step 5a).
func (s *Schema) CoreStateHash() ([]crypto.Hash, error) {
	var heights [][]byte
	if err := s.view.Iterate(TableHeights, nil, func(_, value []byte) (bool, error) {
		heights = append(heights, append([]byte(nil), value...))
		return true, nil
	}); err != nil {
		return nil, err
	}
	var poolKeys [][]byte
	if err := s.view.Iterate(TableTxPool, nil, func(key, _ []byte) (bool, error) {
		poolKeys = append(poolKeys, append([]byte(nil), key...))
		return true, nil
	}); err != nil {
		return nil, err
	}
	return []crypto.Hash{
		crypto.ObjectHash(heights),
		crypto.ObjectHash(poolKeys),
	}, nil
}
