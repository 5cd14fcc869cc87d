package tweak

import (
	"testing"
	"time"

	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/rpc"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// newTestClientContext wires a ClientContext to a fakeTransport exactly the
// way NewClientContext wires a real one, bypassing backend dispatch. The
// worker goroutine is deliberately not started: tests drive draining
// directly for determinism.
func newTestClientContext(callbacks Callbacks) (*ClientContext, *fakeTransport) {
	ft := &fakeTransport{}
	cc := &ClientContext{Context: newBase(callbacks, 10, obs.Nop())}
	cc.impl = cc
	cc.sk = rpc.NewWithTransport(ft, rpc.Listeners{
		OnAddItem:          cc.onAddItem,
		OnChangeItem:       cc.onChangeItem,
		OnRemoveItem:       cc.onRemoveItem,
		OnAnnounceFeatures: cc.onAnnounceFeatures,
		OnConnectionState:  cc.onConnectionState,
	})
	cc.transmitTimeout = cc.sk.TransmitTimeout()
	return cc, ft
}

// TestClientScalarRoundTrip covers the scalar round-trip from the client
// side: the server's AddItem/ChangeItem traffic is reflected into the
// client's own model and surfaced through callbacks.
func TestClientScalarRoundTrip(t *testing.T) {
	var newItems []uint64
	var changed []variant.Value
	cc, _ := newTestClientContext(Callbacks{
		OnNewItem:             func(id uint64) { newItems = append(newItems, id) },
		OnCurrentValueChanged: func(id uint64, v variant.Value) { changed = append(changed, v) },
	})

	cc.onAddItem(wire.AddItem{ID: 7, URI: "/demo/gain", Default: variant.Float32(1.0), Current: variant.Float32(1.0)})
	if len(newItems) != 1 || newItems[0] != 7 {
		t.Fatalf("expected OnNewItem(7), got %+v", newItems)
	}

	cc.onChangeItem(7, variant.Float32(2.5))
	if len(changed) != 1 || changed[0].Float() != 2.5 {
		t.Fatalf("expected OnCurrentValueChanged with 2.5, got %+v", changed)
	}

	v, status := cc.CloneCurrentValue(7)
	if status != SuccessLastKnownValue {
		t.Fatalf("expected SuccessLastKnownValue while disconnected, got %v", status)
	}
	if v.Float() != 2.5 {
		t.Fatalf("expected cloned value 2.5, got %v", v.Float())
	}
}

// TestClientReplaceCurrentValueTypeMismatch covers the type-mismatch
// rejection from the client side.
func TestClientReplaceCurrentValueTypeMismatch(t *testing.T) {
	cc, _ := newTestClientContext(Callbacks{})
	cc.onAddItem(wire.AddItem{ID: 1, URI: "/demo/threshold", Default: variant.Sint32(50), Current: variant.Sint32(50)})

	if status := cc.ReplaceCurrentValue(1, variant.Float32(1.5)); status != TypeMismatch {
		t.Fatalf("expected TypeMismatch, got %v", status)
	}
	v, _ := cc.CloneCurrentValue(1)
	if v.Int() != 50 {
		t.Fatalf("expected the original value 50 to survive the rejected replace, got %v", v.Int())
	}
}

// TestClientReplaceCurrentValueWhileDisconnected covers the
// PeerDisconnected edge case: a client mutation is rejected outright while
// disconnected, rather than silently queued.
func TestClientReplaceCurrentValueWhileDisconnected(t *testing.T) {
	cc, ft := newTestClientContext(Callbacks{})
	cc.onAddItem(wire.AddItem{ID: 1, URI: "/demo/gain", Default: variant.Float32(1.0), Current: variant.Float32(1.0)})

	if status := cc.ReplaceCurrentValue(1, variant.Float32(2.0)); status != PeerDisconnected {
		t.Fatalf("expected PeerDisconnected, got %v", status)
	}
	if len(ft.sent) != 0 {
		t.Fatalf("expected no transmission while disconnected, got %d frames", len(ft.sent))
	}
}

// TestClientOnAddItemAcceptsVectorWithoutReGating is the client-side half of
// feature negotiation: the client still applies whatever AddItem traffic it
// actually receives, and the gating responsibility lives entirely on the
// sender (the server never emits the vector item in the first place). This
// checks the client accepts a vector AddItem once it does arrive,
// confirming the client doesn't itself re-gate on its own announced
// features.
func TestClientOnAddItemAcceptsVectorWithoutReGating(t *testing.T) {
	var newItems []uint64
	cc, _ := newTestClientContext(Callbacks{
		OnNewItem: func(id uint64) { newItems = append(newItems, id) },
	})

	cc.onAddItem(wire.AddItem{
		ID:      9,
		URI:     "/demo/curve",
		Default: variant.VectorFloat32([]float32{1, 2, 3}),
		Current: variant.VectorFloat32([]float32{1, 2, 3}),
	})
	if len(newItems) != 1 || newItems[0] != 9 {
		t.Fatalf("expected OnNewItem(9) for the vector item, got %+v", newItems)
	}
}

// TestClientReconnectRemovesBeforeAddingNewItems covers the reconnect
// ordering guarantee: on reconnect the client first
// synthesizes an on_item_removed for every item it held from the previous
// connection, and only after that does any new on_new_item fire for items
// the server repopulates.
func TestClientReconnectRemovesBeforeAddingNewItems(t *testing.T) {
	var order []string
	cc, _ := newTestClientContext(Callbacks{
		OnItemRemoved: func(id uint64) { order = append(order, "removed") },
		OnNewItem:     func(id uint64) { order = append(order, "new") },
	})

	// First connection: two items arrive.
	cc.onAddItem(wire.AddItem{ID: 1, URI: "/demo/gain", Default: variant.Float32(1), Current: variant.Float32(1)})
	cc.onAddItem(wire.AddItem{ID: 2, URI: "/demo/threshold", Default: variant.Sint32(1), Current: variant.Sint32(1)})
	order = nil

	// Reconnect: the old model is torn down (synthesized removes) before
	// the client resubscribes and the server starts repopulating.
	cc.onConnectionState(true)
	if len(order) != 2 || order[0] != "removed" || order[1] != "removed" {
		t.Fatalf("expected two synthesized removes on reconnect before anything else, got %+v", order)
	}
	if cc.FindID("/demo/gain") != 0 {
		t.Fatalf("expected the old model cleared on reconnect")
	}

	// The server then repopulates via its own subscribe walk; on the wire
	// this arrives as fresh AddItem traffic.
	cc.onAddItem(wire.AddItem{ID: 3, URI: "/demo/gain", Default: variant.Float32(1), Current: variant.Float32(1)})
	if len(order) != 3 || order[2] != "new" {
		t.Fatalf("expected the new item's callback to fire strictly after the removals, got %+v", order)
	}
}

// TestClientWaitURIsTimeoutAndEmptyList covers WaitURIs's boundary
// behaviors: an empty uri list resolves immediately once connected, and a
// bounded wait against an unresolvable uri times out rather than blocking
// forever.
func TestClientWaitURIsTimeoutAndEmptyList(t *testing.T) {
	cc, _ := newTestClientContext(Callbacks{})
	cc.setConnected(true)

	ids, status := cc.WaitURIs(nil, WaitForever)
	if status != Success || len(ids) != 0 {
		t.Fatalf("expected immediate Success with an empty id slice, got %v %v", ids, status)
	}

	_, status = cc.WaitURIs([]string{"/never/resolves"}, 10*time.Millisecond)
	if status != Timeout {
		t.Fatalf("expected Timeout, got %v", status)
	}
}
