package service

import (
	"testing"

	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/store"
)

type stubService struct {
	id   uint16
	name string
}

func (s *stubService) ID() uint16   { return s.id }
func (s *stubService) Name() string { return s.name }
func (s *stubService) Initialize(fork store.Fork) ([]byte, error) {
	return []byte("cfg-" + s.name), nil
}
func (s *stubService) TxFromRaw(raw chain.RawTransaction) (Handler, error) { return nil, nil }
func (s *stubService) BeforeCommit(ctx *Context) error                     { return nil }
func (s *stubService) AfterCommit(ctx *AfterCommitContext)                 {}
func (s *stubService) StateHash(snapshot store.Snapshot) []crypto.Hash     { return nil }

func TestNewRegistryOrdersByServiceID(t *testing.T) {
	reg, err := NewRegistry([]Service{
		&stubService{id: 3, name: "c"},
		&stubService{id: 1, name: "a"},
		&stubService{id: 2, name: "b"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ordered := reg.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("got %d services, want 3", len(ordered))
	}
	for i, want := range []uint16{1, 2, 3} {
		if ordered[i].ID() != want {
			t.Fatalf("Ordered()[%d].ID() = %d, want %d", i, ordered[i].ID(), want)
		}
	}
}

func TestNewRegistryRejectsDuplicateServiceID(t *testing.T) {
	_, err := NewRegistry([]Service{
		&stubService{id: 1, name: "a"},
		&stubService{id: 1, name: "b"},
	})
	if err == nil {
		t.Fatalf("expected an error for duplicate service_id")
	}
	if _, ok := err.(*errs.DuplicateServiceIDError); !ok {
		t.Fatalf("expected *errs.DuplicateServiceIDError, got %T: %v", err, err)
	}
}

// Duplicate service names are an auxiliary invariant enforced at genesis
// (spec §3), not by NewRegistry — two same-named services with distinct
// IDs must register cleanly here; see
// internal/blockchain.TestGenesisRejectsDuplicateServiceName.
func TestNewRegistryAllowsDuplicateServiceName(t *testing.T) {
	reg, err := NewRegistry([]Service{
		&stubService{id: 1, name: "same"},
		&stubService{id: 2, name: "same"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
}

func TestNewRegistryRejectsCoreServiceID(t *testing.T) {
	_, err := NewRegistry([]Service{&stubService{id: CoreServiceID, name: "bad"}})
	if err == nil {
		t.Fatalf("expected an error registering service_id 0")
	}
}

func TestLookupMissingService(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := reg.Lookup(42); ok {
		t.Fatalf("Lookup should report false for an unregistered service_id")
	}
	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", reg.Len())
	}
}
