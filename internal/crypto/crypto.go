// Package crypto provides the hashing, keypair, and signing primitives the
// ledger core treats as an external collaborator (spec §6 "Crypto").
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Hash is a 32-byte cryptographic digest.
type Hash [32]byte

// Zero is the hash of an absent predecessor, used as the previous-block hash
// of the genesis block.
var Zero Hash

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, 32)
	copy(b, h[:])
	return b
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// HashFromBytes builds a Hash from a 32-byte slice, zero-padding or
// truncating as needed so callers reading persisted keys never panic.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// SumHash computes the deterministic 32-byte digest of data. SHA-256 is
// used directly from the standard library: none of the retrieved example
// repositories reach for a third-party SHA-256 implementation (the pack's
// merkle/hash helpers all call crypto/sha256 directly), so there is no
// ecosystem library to prefer over the stdlib here.
func SumHash(data []byte) Hash {
	return sha256.Sum256(data)
}

// PublicKey is a compressed secp256k1 public key.
type PublicKey [33]byte

func (p PublicKey) String() string { return fmt.Sprintf("%x", p[:]) }

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// KeyPair bundles a public/private key, mirroring the (PublicKey, SecretKey)
// pair the ledger facade is constructed with.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair creates a new random secp256k1 keypair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return keyPairFromPrivate(priv), nil
}

// KeyPairFromSeed derives a deterministic keypair from a 32-byte seed. Used
// by genesis/test fixtures that need reproducible validator keys.
func KeyPairFromSeed(seed [32]byte) KeyPair {
	priv := secp256k1.PrivKeyFromBytes(seed[:])
	return keyPairFromPrivate(priv)
}

func keyPairFromPrivate(priv *secp256k1.PrivateKey) KeyPair {
	var pub PublicKey
	copy(pub[:], priv.PubKey().SerializeCompressed())
	return KeyPair{Public: pub, Private: PrivateKey{key: priv}}
}

// Clone returns a value copy of the keypair. The copy shares the
// underlying private key rather than duplicating its material; the
// keypair is logically immutable (spec §5), so sharing it is safe.
func (k KeyPair) Clone() KeyPair { return k }

// Sign produces a deterministic signature over the digest of msg.
func Sign(priv PrivateKey, msg []byte) ([]byte, error) {
	if priv.key == nil {
		return nil, fmt.Errorf("sign: nil private key")
	}
	digest := SumHash(msg)
	sig := ecdsa.Sign(priv.key, digest[:])
	return sig.Serialize(), nil
}

// Verify checks a signature produced by Sign against the given public key.
func Verify(pub PublicKey, msg, sig []byte) bool {
	parsedPub, err := secp256k1.ParsePubKey(pub[:])
	if err != nil {
		return false
	}
	parsedSig, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := SumHash(msg)
	return parsedSig.Verify(digest[:], parsedPub)
}

// RandomBytes fills and returns an n-byte slice using a CSPRNG. Used for
// nonces and test fixture identifiers, not for key material.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}
