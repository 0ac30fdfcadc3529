package crypto

// ObjectHash computes a deterministic Merkle root over an ordered list of
// leaves, hashing each leaf and then folding pairs upward (duplicating a
// lone trailing node at each level). This is the same level-by-level
// construction the pack uses for tree roots; it backs both the
// block-transactions tx_hash (an ordered list of tx hashes) and the
// state-hash aggregator's root (a sorted list of key‖value leaves).
func ObjectHash(leaves [][]byte) Hash {
	if len(leaves) == 0 {
		return Zero
	}
	level := make([]Hash, len(leaves))
	for i, l := range leaves {
		level[i] = SumHash(l)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			buf := make([]byte, 0, 64)
			buf = append(buf, level[i][:]...)
			buf = append(buf, level[i+1][:]...)
			next[i/2] = SumHash(buf)
		}
		level = next
	}
	return level[0]
}

// HashList is a convenience wrapper around ObjectHash for callers holding
// Hash values rather than raw leaf bytes (e.g. an ordered list of tx hashes).
func HashList(hashes []Hash) Hash {
	leaves := make([][]byte, len(hashes))
	for i, h := range hashes {
		leaves[i] = h.Bytes()
	}
	return ObjectHash(leaves)
}
