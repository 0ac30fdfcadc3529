// Package chain holds the wire/data types of the ledger core's data model
// (spec §3): block headers, transaction envelopes, results, and the
// ancillary records (precommits, peer connects, consensus messages,
// stored configuration) the schema layer persists.
package chain

import (
	"ledgercore/internal/crypto"
)

// Header is the fixed-field block header of spec §3. Its hash is a pure
// function of these fields.
type Header struct {
	Proposer     uint32
	Height       uint64
	TxCount      uint32
	PrevHash     crypto.Hash
	TxHash       crypto.Hash
	StateHash    crypto.Hash
}

// Hash computes the block header's hash, the pure function spec §3
// requires: a canonical RLP encoding of the fixed fields, digested.
func (h Header) Hash() (crypto.Hash, error) {
	enc, err := crypto.EncodeRLP(&rlpHeader{
		Proposer:  h.Proposer,
		Height:    h.Height,
		TxCount:   h.TxCount,
		PrevHash:  h.PrevHash.Bytes(),
		TxHash:    h.TxHash.Bytes(),
		StateHash: h.StateHash.Bytes(),
	})
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.SumHash(enc), nil
}

// rlpHeader is the byte-slice-field mirror of Header used purely for
// canonical RLP encoding ([N]byte arrays don't round-trip through RLP as
// cleanly as slices do).
type rlpHeader struct {
	Proposer  uint32
	Height    uint64
	TxCount   uint32
	PrevHash  []byte
	TxHash    []byte
	StateHash []byte
}

// Block pairs a header with the ordered transaction hashes applied at
// that height.
type Block struct {
	Header Header
	TxHashes []crypto.Hash
}

// RawTransaction is a signed message carrying (service_id, payload) plus
// the signer's public key (spec §3). Its identity is the hash of the full
// signed envelope.
type RawTransaction struct {
	ServiceID uint16
	Payload   []byte
	PublicKey crypto.PublicKey
	Signature []byte
}

type rlpRawTransaction struct {
	ServiceID uint16
	Payload   []byte
	PublicKey []byte
	Signature []byte
}

// SignedBytes returns the canonical encoding of the full signed envelope
// (signature included), which is hashed to produce the transaction's
// identity hash. The bytes actually signed are those of messageBytes.
func (t RawTransaction) SignedBytes() ([]byte, error) {
	return crypto.EncodeRLP(&rlpRawTransaction{
		ServiceID: t.ServiceID,
		Payload:   t.Payload,
		PublicKey: t.PublicKey[:],
		Signature: t.Signature,
	})
}

// Hash is the transaction's identity: the hash of its full signed
// envelope.
func (t RawTransaction) Hash() (crypto.Hash, error) {
	enc, err := t.SignedBytes()
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.SumHash(enc), nil
}

// messageBytes returns the portion of the envelope that is actually
// signed (everything but the signature itself).
func (t RawTransaction) messageBytes() ([]byte, error) {
	return crypto.EncodeRLP(&rlpRawTransaction{
		ServiceID: t.ServiceID,
		Payload:   t.Payload,
		PublicKey: t.PublicKey[:],
	})
}

// Sign signs the envelope with priv and sets PublicKey/Signature.
func (t *RawTransaction) Sign(pub crypto.PublicKey, priv crypto.PrivateKey) error {
	t.PublicKey = pub
	msg, err := t.messageBytes()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(priv, msg)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// VerifySignature checks the envelope's signature against its own
// embedded public key.
func (t RawTransaction) VerifySignature() bool {
	msg, err := t.messageBytes()
	if err != nil {
		return false
	}
	return crypto.Verify(t.PublicKey, msg, t.Signature)
}

// TxLocation records where a confirmed transaction was included.
type TxLocation struct {
	Height uint64
	Index  uint32
}

// TxResultKind classifies a transaction execution outcome (spec §7).
type TxResultKind uint8

const (
	TxResultOK TxResultKind = iota
	TxResultErr
	TxResultPanic
)

// TxResult is the deterministic classification of a single transaction's
// execution, stored per tx hash.
type TxResult struct {
	Kind        TxResultKind
	Code        uint16
	Description string
}

// Precommit is a validator's signed attestation that a specific block
// hash has been accepted in a round.
type Precommit struct {
	Validator uint32
	BlockHash crypto.Hash
	Round     uint32
	PublicKey crypto.PublicKey
	Signature []byte
}

// Connect is the signed peer-connectivity announcement cached by
// SavePeer/GetSavedPeers.
type Connect struct {
	PublicKey crypto.PublicKey
	Address   string
	Timestamp int64
	Signature []byte
}

// ConsensusMessage is an opaque, signed consensus-protocol message cached
// for the current height; the core persists these without interpreting
// them.
type ConsensusMessage struct {
	PublicKey crypto.PublicKey
	Kind      string
	Payload   []byte
	Signature []byte
}

// ValidatorKeys pairs a validator's consensus and service public keys.
type ValidatorKeys struct {
	ConsensusKey crypto.PublicKey
	ServiceKey   crypto.PublicKey
}

// ConsensusParams holds protocol-level timing/size parameters opaque to
// the core itself.
type ConsensusParams struct {
	RoundTimeoutMS  uint32
	MaxTxsPerBlock  uint32
	StatusTimeoutMS uint32
}

// StoredConfiguration is the config record of spec §3: validator set,
// consensus parameters, and each service's genesis-derived config blob.
type StoredConfiguration struct {
	PreviousCfgHash crypto.Hash
	ActualFrom      uint64
	ValidatorKeys   []ValidatorKeys
	Consensus       ConsensusParams
	Services        map[string][]byte
}
