package schema

import (
	"sort"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
)

// The mirror structs below exist because RLP encodes unsigned integers,
// byte slices, and strings cleanly but the chain package's domain types
// use fixed-size arrays (crypto.Hash, crypto.PublicKey) and an int64
// timestamp; converting at the codec boundary keeps internal/chain's
// types ergonomic while keeping persistence encoding unambiguous.

type rlpBlockHeader struct {
	Proposer  uint32
	Height    uint64
	TxCount   uint32
	PrevHash  []byte
	TxHash    []byte
	StateHash []byte
}

func encodeHeader(h chain.Header) ([]byte, error) {
	return crypto.EncodeRLP(&rlpBlockHeader{
		Proposer:  h.Proposer,
		Height:    h.Height,
		TxCount:   h.TxCount,
		PrevHash:  h.PrevHash.Bytes(),
		TxHash:    h.TxHash.Bytes(),
		StateHash: h.StateHash.Bytes(),
	})
}

func decodeHeader(raw []byte, out *chain.Header) error {
	var r rlpBlockHeader
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	out.Proposer = r.Proposer
	out.Height = r.Height
	out.TxCount = r.TxCount
	out.PrevHash = crypto.HashFromBytes(r.PrevHash)
	out.TxHash = crypto.HashFromBytes(r.TxHash)
	out.StateHash = crypto.HashFromBytes(r.StateHash)
	return nil
}

type rlpRawTx struct {
	ServiceID uint16
	Payload   []byte
	PublicKey []byte
	Signature []byte
}

func encodeRawTx(tx chain.RawTransaction) ([]byte, error) {
	return crypto.EncodeRLP(&rlpRawTx{
		ServiceID: tx.ServiceID,
		Payload:   tx.Payload,
		PublicKey: tx.PublicKey[:],
		Signature: tx.Signature,
	})
}

func decodeRawTx(raw []byte, out *chain.RawTransaction) error {
	var r rlpRawTx
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	out.ServiceID = r.ServiceID
	out.Payload = r.Payload
	copy(out.PublicKey[:], r.PublicKey)
	out.Signature = r.Signature
	return nil
}

type rlpTxResult struct {
	Kind        uint8
	Code        uint16
	Description string
}

func encodeTxResult(r chain.TxResult) ([]byte, error) {
	return crypto.EncodeRLP(&rlpTxResult{
		Kind:        uint8(r.Kind),
		Code:        r.Code,
		Description: r.Description,
	})
}

func decodeTxResult(raw []byte, out *chain.TxResult) error {
	var r rlpTxResult
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	out.Kind = chain.TxResultKind(r.Kind)
	out.Code = r.Code
	out.Description = r.Description
	return nil
}

type rlpPrecommit struct {
	Validator uint32
	BlockHash []byte
	Round     uint32
	PublicKey []byte
	Signature []byte
}

func encodePrecommit(p chain.Precommit) ([]byte, error) {
	return crypto.EncodeRLP(&rlpPrecommit{
		Validator: p.Validator,
		BlockHash: p.BlockHash.Bytes(),
		Round:     p.Round,
		PublicKey: p.PublicKey[:],
		Signature: p.Signature,
	})
}

func decodePrecommit(raw []byte, out *chain.Precommit) error {
	var r rlpPrecommit
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	out.Validator = r.Validator
	out.BlockHash = crypto.HashFromBytes(r.BlockHash)
	out.Round = r.Round
	copy(out.PublicKey[:], r.PublicKey)
	out.Signature = r.Signature
	return nil
}

type rlpConnect struct {
	PublicKey []byte
	Address   string
	Timestamp uint64
	Signature []byte
}

func encodeConnect(c chain.Connect) ([]byte, error) {
	return crypto.EncodeRLP(&rlpConnect{
		PublicKey: c.PublicKey[:],
		Address:   c.Address,
		Timestamp: uint64(c.Timestamp),
		Signature: c.Signature,
	})
}

func decodeConnect(raw []byte, out *chain.Connect) error {
	var r rlpConnect
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	copy(out.PublicKey[:], r.PublicKey)
	out.Address = r.Address
	out.Timestamp = int64(r.Timestamp)
	out.Signature = r.Signature
	return nil
}

type rlpConsensusMessage struct {
	PublicKey []byte
	Kind      string
	Payload   []byte
	Signature []byte
}

func encodeConsensusMessage(m chain.ConsensusMessage) ([]byte, error) {
	return crypto.EncodeRLP(&rlpConsensusMessage{
		PublicKey: m.PublicKey[:],
		Kind:      m.Kind,
		Payload:   m.Payload,
		Signature: m.Signature,
	})
}

func decodeConsensusMessage(raw []byte, out *chain.ConsensusMessage) error {
	var r rlpConsensusMessage
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	copy(out.PublicKey[:], r.PublicKey)
	out.Kind = r.Kind
	out.Payload = r.Payload
	out.Signature = r.Signature
	return nil
}

type rlpValidatorKeys struct {
	ConsensusKey []byte
	ServiceKey   []byte
}

type rlpConsensusParams struct {
	RoundTimeoutMS  uint32
	MaxTxsPerBlock  uint32
	StatusTimeoutMS uint32
}

type rlpServiceConfig struct {
	Name   string
	Config []byte
}

type rlpStoredConfiguration struct {
	PreviousCfgHash []byte
	ActualFrom      uint64
	ValidatorKeys   []rlpValidatorKeys
	Consensus       rlpConsensusParams
	Services        []rlpServiceConfig
}

func encodeConfig(cfg chain.StoredConfiguration) ([]byte, error) {
	r := rlpStoredConfiguration{
		PreviousCfgHash: cfg.PreviousCfgHash.Bytes(),
		ActualFrom:      cfg.ActualFrom,
		Consensus: rlpConsensusParams{
			RoundTimeoutMS:  cfg.Consensus.RoundTimeoutMS,
			MaxTxsPerBlock:  cfg.Consensus.MaxTxsPerBlock,
			StatusTimeoutMS: cfg.Consensus.StatusTimeoutMS,
		},
	}
	for _, vk := range cfg.ValidatorKeys {
		r.ValidatorKeys = append(r.ValidatorKeys, rlpValidatorKeys{
			ConsensusKey: vk.ConsensusKey[:],
			ServiceKey:   vk.ServiceKey[:],
		})
	}
	names := make([]string, 0, len(cfg.Services))
	for name := range cfg.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.Services = append(r.Services, rlpServiceConfig{Name: name, Config: cfg.Services[name]})
	}
	return crypto.EncodeRLP(&r)
}

func decodeConfig(raw []byte, out *chain.StoredConfiguration) error {
	var r rlpStoredConfiguration
	if err := crypto.DecodeRLP(raw, &r); err != nil {
		return err
	}
	out.PreviousCfgHash = crypto.HashFromBytes(r.PreviousCfgHash)
	out.ActualFrom = r.ActualFrom
	out.Consensus = chain.ConsensusParams{
		RoundTimeoutMS:  r.Consensus.RoundTimeoutMS,
		MaxTxsPerBlock:  r.Consensus.MaxTxsPerBlock,
		StatusTimeoutMS: r.Consensus.StatusTimeoutMS,
	}
	out.ValidatorKeys = make([]chain.ValidatorKeys, len(r.ValidatorKeys))
	for i, vk := range r.ValidatorKeys {
		var ck, sk crypto.PublicKey
		copy(ck[:], vk.ConsensusKey)
		copy(sk[:], vk.ServiceKey)
		out.ValidatorKeys[i] = chain.ValidatorKeys{ConsensusKey: ck, ServiceKey: sk}
	}
	out.Services = make(map[string][]byte, len(r.Services))
	for _, sc := range r.Services {
		out.Services[sc.Name] = sc.Config
	}
	return nil
}
