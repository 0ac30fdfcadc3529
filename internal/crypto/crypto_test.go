package crypto

import "testing"

func TestSumHashDeterministic(t *testing.T) {
	a := SumHash([]byte("hello"))
	b := SumHash([]byte("hello"))
	if a != b {
		t.Fatalf("SumHash not deterministic: %x != %x", a, b)
	}
	if a == SumHash([]byte("world")) {
		t.Fatalf("different inputs produced the same hash")
	}
}

func TestHashFromBytesRoundTrip(t *testing.T) {
	h := SumHash([]byte("round trip"))
	got := HashFromBytes(h.Bytes())
	if got != h {
		t.Fatalf("round trip mismatch: got %x want %x", got, h)
	}
}

func TestZeroHash(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatalf("Zero.IsZero() should be true")
	}
	h := SumHash([]byte("nonzero"))
	if h.IsZero() {
		t.Fatalf("non-zero hash reported as zero")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte("a signed message")
	sig, err := Sign(kp.Private, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(kp.Public, msg, sig) {
		t.Fatalf("Verify failed on a valid signature")
	}
	if Verify(kp.Public, []byte("tampered"), sig) {
		t.Fatalf("Verify succeeded on tampered message")
	}
}

func TestKeyPairFromSeedDeterministic(t *testing.T) {
	var seed [32]byte
	copy(seed[:], []byte("deterministic-seed-bytes-000000"))
	a := KeyPairFromSeed(seed)
	b := KeyPairFromSeed(seed)
	if a.Public != b.Public {
		t.Fatalf("KeyPairFromSeed not deterministic")
	}
}
