package rpc

import (
	"context"
	"testing"

	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// fakeTransport is a minimal transport.Transport double recording
// transmitted frames, letting tests drive Skeleton's callbacks directly.
type fakeTransport struct {
	sent   [][]byte
	closed bool
}

func (f *fakeTransport) Transmit(ctx context.Context, frame []byte) error {
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestTransmitHelpersEncodeExpectedMessages(t *testing.T) {
	ft := &fakeTransport{}
	sk := NewWithTransport(ft, Listeners{})

	if err := sk.TransmitSubscribe(context.Background(), "*"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sk.TransmitChangeItem(context.Background(), 5, variant.Sint32(9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.sent) != 2 {
		t.Fatalf("expected 2 frames sent, got %d", len(ft.sent))
	}

	msg, err := wire.DecodeFrame(ft.sent[1])
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	ci, ok := msg.(wire.ChangeItem)
	if !ok || ci.ID != 5 || ci.Value.Int() != 9 {
		t.Fatalf("unexpected decoded message: %+v", msg)
	}
}

func TestOnRecvDispatchesToListeners(t *testing.T) {
	var gotAdd wire.AddItem
	var gotRemove uint64
	sk := NewWithTransport(&fakeTransport{}, Listeners{
		OnAddItem:    func(m wire.AddItem) { gotAdd = m },
		OnRemoveItem: func(id uint64) { gotRemove = id },
	})

	addFrame, _ := wire.EncodeFrame(wire.AddItem{ID: 3, URI: "/x", Default: variant.Bool(false), Current: variant.Bool(true)})
	sk.onRecv(addFrame)
	if gotAdd.ID != 3 || gotAdd.URI != "/x" {
		t.Fatalf("expected OnAddItem to be invoked with decoded message, got %+v", gotAdd)
	}

	removeFrame, _ := wire.EncodeFrame(wire.RemoveItem{ID: 3})
	sk.onRecv(removeFrame)
	if gotRemove != 3 {
		t.Fatalf("expected OnRemoveItem(3), got %d", gotRemove)
	}
}

func TestDestroySynthesizesFinalDisconnectWhenNeverConnected(t *testing.T) {
	var states []bool
	sk := NewWithTransport(&fakeTransport{}, Listeners{
		OnConnectionState: func(c bool) { states = append(states, c) },
	})

	if err := sk.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 || states[0] != false {
		t.Fatalf("expected exactly one synthesized false, got %+v", states)
	}
}

func TestDestroyDoesNotDoubleDeliverWhenAlreadyConnected(t *testing.T) {
	var states []bool
	sk := NewWithTransport(&fakeTransport{}, Listeners{
		OnConnectionState: func(c bool) { states = append(states, c) },
	})

	sk.onConnState(transport.Connected)
	if err := sk.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// real transport.Close would have delivered the Disconnected transition
	// itself; the skeleton must not add a second synthesized one on top.
	if len(states) != 1 || states[0] != true {
		t.Fatalf("expected only the Connected transition to have been forwarded, got %+v", states)
	}
}
