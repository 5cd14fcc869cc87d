// Package transport implements a reliable-framing, connection-oriented,
// bidirectional byte-frame channel, with two
// interchangeable backends: pair-socket (internal/transport/pairsocket.go,
// over gobwas/ws) and chunked-datagram (internal/transport/chunked.go, over
// nats.go).
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cogentembedded/tweak-go/internal/obs"
)

// ConnState is the level-triggered connection state delivered to a
// ConnStateFunc: invoked on every transition, never twice in the same
// state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connected
)

func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Role selects passive listener vs. active connector.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Backend names recognised in params.
const (
	BackendPairSocket = "nng"
	BackendChunked    = "rpmsg"
)

// ErrTransmitTimeout is returned by Transmit when the bounded send timeout
// elapses without the backend accepting the frame.
var ErrTransmitTimeout = errors.New("transport: transmit timeout")

// ErrClosed is returned by Transmit once Close has been requested,
// distinguishing cooperative shutdown from a genuine transport failure.
// The pair-socket backend also returns it while no peer connection is
// attached.
var ErrClosed = errors.New("transport: closed")

// ConnStateFunc is invoked on every connection state transition.
type ConnStateFunc func(ConnState)

// RecvFunc is invoked once per inbound application frame, on a
// transport-internal goroutine.
type RecvFunc func(frame []byte)

// Transport is the interface both backends satisfy.
type Transport interface {
	// Transmit sends one application frame, blocking up to a
	// backend-specific timeout.
	Transmit(ctx context.Context, frame []byte) error
	// Close aborts in-flight I/O and invokes the ConnStateFunc with
	// Disconnected exactly once if the connection had ever reached
	// Connected. It does not wait for the backend's goroutines to exit.
	Close() error
}

// Params is the parsed form of the flat "role=server"/"role=client" params
// string.
type Params struct {
	Role Role
}

// ParseParams decodes the params string. Unrecognised content defaults to
// RoleClient; role=server is the only other recognised value.
func ParseParams(raw string) Params {
	if raw == "role=server" {
		return Params{Role: RoleServer}
	}
	return Params{Role: RoleClient}
}

// DefaultTransmitTimeout bounds a Transmit call whenever
// Options.TransmitTimeout is unset.
const DefaultTransmitTimeout = 500 * time.Millisecond

// DefaultMaxChunkPayload is the chunked backend's per-chunk payload size
// (excluding the 12-byte header) when Options.MaxChunkPayload is unset,
// sized for a small-MDU rpmsg channel.
const DefaultMaxChunkPayload = defaultMaxChunkSize

// Options carries the two operator-tunable knobs the demo binaries expose
// as configuration: how big a chunked-backend wire chunk may
// be, and how long a Transmit call may block before giving up. Either field
// left at its zero value falls back to the package default.
type Options struct {
	MaxChunkPayload int
	TransmitTimeout time.Duration
}

// WithDefaults returns o with zero fields replaced by the package
// defaults. Both Create and rpc.New call this, so a caller that skips it
// (e.g. a test constructing Options{} directly) still gets sane behavior.
func (o Options) WithDefaults() Options {
	if o.MaxChunkPayload <= 0 {
		o.MaxChunkPayload = DefaultMaxChunkPayload
	}
	if o.TransmitTimeout <= 0 {
		o.TransmitTimeout = DefaultTransmitTimeout
	}
	return o
}

// Create dispatches to the named backend. uri is backend-specific: a
// TCP "host:port" endpoint for the pair-socket backend, or
// "rpmsg://<endpoint-name>/<endpoint-number>" for the chunked backend.
// ob carries the logging/metrics seams both backends use to
// report dropped frames and reassembly violations.
func Create(backendName, params, uri string, opts Options, connState ConnStateFunc, recv RecvFunc, ob obs.Observability) (Transport, error) {
	opts = opts.WithDefaults()
	p := ParseParams(params)
	switch backendName {
	case BackendPairSocket:
		return newPairSocket(p, uri, opts, connState, recv, ob)
	case BackendChunked:
		return newChunked(p, uri, opts, connState, recv, ob)
	default:
		return nil, errors.New("transport: unknown backend " + backendName)
	}
}
