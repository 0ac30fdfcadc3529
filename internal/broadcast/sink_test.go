package broadcast

import (
	"testing"

	"ledgercore/internal/chain"
)

func TestChannelSinkBroadcastAndDrain(t *testing.T) {
	sink := NewChannelSink(2)
	tx := chain.RawTransaction{ServiceID: 1, Payload: []byte("a")}
	if err := sink.Broadcast(tx); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	select {
	case got := <-sink.Outbound():
		if got.ServiceID != tx.ServiceID {
			t.Fatalf("got ServiceID %d, want %d", got.ServiceID, tx.ServiceID)
		}
	default:
		t.Fatalf("expected a queued transaction")
	}
}

func TestChannelSinkFullBufferErrors(t *testing.T) {
	sink := NewChannelSink(1)
	if err := sink.Broadcast(chain.RawTransaction{ServiceID: 1}); err != nil {
		t.Fatalf("first Broadcast: %v", err)
	}
	if err := sink.Broadcast(chain.RawTransaction{ServiceID: 2}); err == nil {
		t.Fatalf("expected an error when the outbound buffer is full")
	}
}

func TestChannelSinkClosedRejects(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Close()
	if err := sink.Broadcast(chain.RawTransaction{ServiceID: 1}); err == nil {
		t.Fatalf("expected an error broadcasting on a closed sink")
	}
}
