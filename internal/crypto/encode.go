package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeRLP canonically serializes v, matching the teacher's use of
// go-ethereum's rlp package to encode/decode chain objects before hashing
// or persisting them.
func EncodeRLP(v interface{}) ([]byte, error) {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("rlp encode: %w", err)
	}
	return b, nil
}

// DecodeRLP deserializes data produced by EncodeRLP into v.
func DecodeRLP(data []byte, v interface{}) error {
	if err := rlp.DecodeBytes(data, v); err != nil {
		return fmt.Errorf("rlp decode: %w", err)
	}
	return nil
}
