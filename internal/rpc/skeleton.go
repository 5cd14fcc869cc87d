// Package rpc implements the pair of client/server skeleton objects that
// bridge a transport.Transport and an application context: each
// exposes typed transmit_X calls and invokes typed listener callbacks for
// inbound messages. Client and server skeletons share one implementation
// here; they differ only in which Listeners fields the owning context
// populates, not in how frames are routed.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// Listeners is the set of typed callbacks a context registers. A server
// context only ever supplies OnSubscribe/OnChangeItem/OnAnnounceFeatures/
// OnConnectionState; a client context supplies the rest.
type Listeners struct {
	OnSubscribe        func(uriPatterns string)
	OnChangeItem       func(id uint64, v variant.Value)
	OnAnnounceFeatures func(featuresJSON string)
	OnAddItem          func(msg wire.AddItem)
	OnRemoveItem       func(id uint64)
	OnConnectionState  func(connected bool)
}

// Skeleton owns one transport handle and dispatches between it and a
// context's Listeners.
type Skeleton struct {
	tr              transport.Transport
	ob              obs.Observability
	transmitTimeout time.Duration

	mu        sync.Mutex
	listeners Listeners
	connected bool
	destroyed bool
}

// New creates a transport for (backendName, params, uri) and wires it to
// listeners. ob is threaded down into the transport so both backends can
// report dropped frames and errors through the same logger/metrics as the
// owning context. opts carries the chunk-size/transmit-timeout knobs the
// caller read from configuration; zero fields fall back to
// the transport package defaults.
func New(backendName, params, uri string, opts transport.Options, listeners Listeners, ob obs.Observability) (*Skeleton, error) {
	opts = opts.WithDefaults()
	sk := &Skeleton{listeners: listeners, ob: ob, transmitTimeout: opts.TransmitTimeout}
	tr, err := transport.Create(backendName, params, uri, opts, sk.onConnState, sk.onRecv, ob)
	if err != nil {
		return nil, err
	}
	sk.tr = tr
	return sk, nil
}

// TransmitTimeout is the bound the owning context should use when deriving
// a context.Context for a TransmitX call.
func (sk *Skeleton) TransmitTimeout() time.Duration {
	return sk.transmitTimeout
}

// NewWithTransport wires an already-constructed transport to listeners,
// bypassing backend dispatch. Exported so tests in this package and in
// package tweak can exercise routing against a fake transport.Transport
// without a real backend.
func NewWithTransport(tr transport.Transport, listeners Listeners) *Skeleton {
	return &Skeleton{tr: tr, listeners: listeners, transmitTimeout: transport.DefaultTransmitTimeout}
}

func (sk *Skeleton) onConnState(s transport.ConnState) {
	connected := s == transport.Connected
	sk.mu.Lock()
	sk.connected = connected
	sk.mu.Unlock()
	if sk.listeners.OnConnectionState != nil {
		sk.listeners.OnConnectionState(connected)
	}
}

func (sk *Skeleton) onRecv(frame []byte) {
	msg, err := wire.DecodeFrame(frame)
	if err != nil {
		sk.ob.Logger.Warn().Err(err).Msg("rpc: dropped frame that failed to decode")
		return
	}
	switch m := msg.(type) {
	case wire.Subscribe:
		sk.ob.Metrics.IncRPCMessage("subscribe")
		if sk.listeners.OnSubscribe != nil {
			sk.listeners.OnSubscribe(m.URIPatterns)
		}
	case wire.ChangeItem:
		sk.ob.Metrics.IncRPCMessage("change_item")
		if sk.listeners.OnChangeItem != nil {
			sk.listeners.OnChangeItem(m.ID, m.Value)
		}
	case wire.AnnounceFeatures:
		sk.ob.Metrics.IncRPCMessage("announce_features")
		if sk.listeners.OnAnnounceFeatures != nil {
			sk.listeners.OnAnnounceFeatures(m.FeaturesJSON)
		}
	case wire.AddItem:
		sk.ob.Metrics.IncRPCMessage("add_item")
		if sk.listeners.OnAddItem != nil {
			sk.listeners.OnAddItem(m)
		}
	case wire.RemoveItem:
		sk.ob.Metrics.IncRPCMessage("remove_item")
		if sk.listeners.OnRemoveItem != nil {
			sk.listeners.OnRemoveItem(m.ID)
		}
	}
}

func (sk *Skeleton) transmit(ctx context.Context, msg any) error {
	frame, err := wire.EncodeFrame(msg)
	if err != nil {
		return err
	}
	return sk.tr.Transmit(ctx, frame)
}

func (sk *Skeleton) TransmitSubscribe(ctx context.Context, uriPatterns string) error {
	return sk.transmit(ctx, wire.Subscribe{URIPatterns: uriPatterns})
}

func (sk *Skeleton) TransmitChangeItem(ctx context.Context, id uint64, v variant.Value) error {
	return sk.transmit(ctx, wire.ChangeItem{ID: id, Value: v})
}

func (sk *Skeleton) TransmitAnnounceFeatures(ctx context.Context, featuresJSON string) error {
	return sk.transmit(ctx, wire.AnnounceFeatures{FeaturesJSON: featuresJSON})
}

func (sk *Skeleton) TransmitAddItem(ctx context.Context, msg wire.AddItem) error {
	return sk.transmit(ctx, msg)
}

func (sk *Skeleton) TransmitRemoveItem(ctx context.Context, id uint64) error {
	return sk.transmit(ctx, wire.RemoveItem{ID: id})
}

// Destroy tears down the transport. It guarantees the owning context
// observes one final connection_state(false): when the transport is
// Connected at this point its Close delivers the Disconnected transition;
// otherwise the skeleton synthesizes the false directly.
func (sk *Skeleton) Destroy() error {
	sk.mu.Lock()
	if sk.destroyed {
		sk.mu.Unlock()
		return nil
	}
	sk.destroyed = true
	wasConnected := sk.connected
	sk.connected = false
	sk.mu.Unlock()

	err := sk.tr.Close()
	if !wasConnected && sk.listeners.OnConnectionState != nil {
		sk.listeners.OnConnectionState(false)
	}
	return err
}
