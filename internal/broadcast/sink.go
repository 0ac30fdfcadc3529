// Package broadcast defines the out-of-scope network broadcaster as an
// external collaborator (spec §6 "Broadcast sink") plus an in-process
// stand-in implementation suitable for tests and single-node operation.
package broadcast

import (
	"sync"

	"ledgercore/internal/chain"
)

// Sink accepts a signed, service-authored transaction and delivers it
// asynchronously to the network. The ledger core only produces and hands
// off envelopes here; delivery, gossip, and retry policy are out of
// scope (spec §1).
type Sink interface {
	Broadcast(tx chain.RawTransaction) error
}

// ChannelSink is a minimal in-process Sink that queues broadcast
// transactions on a buffered channel, standing in for the network layer
// the core treats as an external collaborator.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan chain.RawTransaction
	closed bool
}

// NewChannelSink creates a ChannelSink with the given outbound buffer
// size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan chain.RawTransaction, buffer)}
}

// Broadcast enqueues tx for delivery. Returns an error if the sink has
// been closed or the buffer is full.
func (s *ChannelSink) Broadcast(tx chain.RawTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosedSink
	}
	select {
	case s.ch <- tx:
		return nil
	default:
		return errSinkFull
	}
}

// Outbound exposes the queued transactions for a consumer (e.g. the
// consensus/network layer) to drain.
func (s *ChannelSink) Outbound() <-chan chain.RawTransaction {
	return s.ch
}

// Close stops accepting further broadcasts and closes the outbound
// channel.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
