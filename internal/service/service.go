// Package service defines the pluggable service capability set (spec §3,
// §4.1) and the immutable registry the Ledger facade builds at
// construction time.
package service

import (
	"fmt"
	"sort"

	"ledgercore/internal/broadcast"
	"ledgercore/internal/chain"
	"ledgercore/internal/crypto"
	"ledgercore/internal/errs"
	"ledgercore/internal/store"
)

// Handler is a parsed, executable transaction produced by a Service's
// TxFromRaw.
type Handler interface {
	// Execute runs the transaction's business logic against ctx. A
	// structured failure is returned as *errs.TransactionFailure; any
	// other panic is caught by the executor's fault barrier.
	Execute(ctx *TxContext) error
}

// TxContext is what a transaction handler's Execute sees: the fork it may
// mutate, the owning service's name, and the raw envelope it was parsed
// from.
type TxContext struct {
	Fork        store.Fork
	ServiceName string
	Raw         chain.RawTransaction
}

// Context is what BeforeCommit sees.
type Context struct {
	Fork      store.Fork
	ServiceID uint16
}

// AfterCommitContext is what AfterCommit sees: the service keypair and
// broadcast sink so a service may schedule follow-up transactions.
type AfterCommitContext struct {
	Fork      store.Fork
	ServiceID uint16
	KeyPair   crypto.KeyPair
	Sink      broadcast.Sink
}

// Service is the polymorphic handler capability set of spec §3.
type Service interface {
	// ID is the service's unique numeric identifier. 0 is reserved for
	// the core schema (spec §6).
	ID() uint16
	// Name is the service's unique stable name.
	Name() string
	// Initialize runs once at genesis and returns an opaque config blob
	// recorded under this service's name in StoredConfiguration.Services.
	Initialize(fork store.Fork) ([]byte, error)
	// TxFromRaw parses a raw payload into an executable Handler.
	TxFromRaw(raw chain.RawTransaction) (Handler, error)
	// BeforeCommit runs once per block, after all transactions, in
	// ascending service_id order (skipped at height 0).
	BeforeCommit(ctx *Context) error
	// AfterCommit runs once per block after the patch has been merged.
	AfterCommit(ctx *AfterCommitContext)
	// StateHash returns, in a stable per-service order, the root hash of
	// each of this service's state tables.
	StateHash(snapshot store.Snapshot) []crypto.Hash
}

// Registry is the immutable service_id -> Service mapping built at node
// start (spec §4.1).
type Registry struct {
	byID      map[uint16]Service
	orderedID []uint16
}

// CoreServiceID is the reserved service_id for the core schema itself
// (spec §6).
const CoreServiceID uint16 = 0

// NewRegistry constructs a Registry from services, failing fatally (an
// error, not a panic, in this Go port — see DESIGN.md Open Questions) on
// a duplicate service_id. Name uniqueness is a separate, auxiliary
// invariant the spec enforces at genesis, not here (spec §3) — see
// Initialize in internal/blockchain/genesis.go.
func NewRegistry(services []Service) (*Registry, error) {
	byID := make(map[uint16]Service, len(services))
	ids := make([]uint16, 0, len(services))
	for _, svc := range services {
		id := svc.ID()
		if id == CoreServiceID {
			return nil, fmt.Errorf("service %q: service_id 0 is reserved for the core schema", svc.Name())
		}
		if _, exists := byID[id]; exists {
			return nil, &errs.DuplicateServiceIDError{ServiceID: id}
		}
		byID[id] = svc
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &Registry{byID: byID, orderedID: ids}, nil
}

// Lookup returns the service registered under id, if any.
func (r *Registry) Lookup(id uint16) (Service, bool) {
	svc, ok := r.byID[id]
	return svc, ok
}

// Ordered returns all services in ascending service_id order, the
// iteration order spec §4.3/§4.5 requires for determinism across
// replicas.
func (r *Registry) Ordered() []Service {
	out := make([]Service, len(r.orderedID))
	for i, id := range r.orderedID {
		out[i] = r.byID[id]
	}
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int { return len(r.orderedID) }
