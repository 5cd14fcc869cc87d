package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cogentembedded/tweak-go/internal/obs"
)

const (
	defaultRpmsgEndpointName = "tweak"
	chunkedSubjectPrefix     = "tweak.rpmsg"
)

// chunkedTransport is the chunked-datagram backend. NATS subjects stand in
// for a small-MDU rpmsg character-device channel; each chunk is published
// as one NATS message.
type chunkedTransport struct {
	conn *nats.Conn
	sub  *nats.Subscription
	ob   obs.Observability

	pubSubject string
	subSubject string

	maxChunkPayload int
	transmitTimeout time.Duration

	mu          sync.Mutex
	sendID      uint32
	reasm       *chunkReassembler
	state       ConnState
	everUp      bool
	closed      bool
	connStateCb ConnStateFunc
	recvCb      RecvFunc
}

// parseRpmsgURI splits "rpmsg://<endpoint-name>/<endpoint-number>" (name
// optional) into its parts, defaulting the name when omitted.
func parseRpmsgURI(uri string) (name string, endpoint int, err error) {
	trimmed := strings.TrimPrefix(uri, "rpmsg://")
	parts := strings.Split(trimmed, "/")
	switch len(parts) {
	case 1:
		name = defaultRpmsgEndpointName
		endpoint, err = strconv.Atoi(parts[0])
	case 2:
		name = parts[0]
		if name == "" {
			name = defaultRpmsgEndpointName
		}
		endpoint, err = strconv.Atoi(parts[1])
	default:
		return "", 0, fmt.Errorf("transport: malformed rpmsg uri %q", uri)
	}
	if err != nil {
		return "", 0, fmt.Errorf("transport: malformed rpmsg endpoint number in %q: %w", uri, err)
	}
	return name, endpoint, nil
}

func newChunked(p Params, uri string, opts Options, connState ConnStateFunc, recv RecvFunc, ob obs.Observability) (Transport, error) {
	name, endpoint, err := parseRpmsgURI(uri)
	if err != nil {
		return nil, err
	}

	base := fmt.Sprintf("%s.%s.%d", chunkedSubjectPrefix, name, endpoint)
	c2s, s2c := base+".c2s", base+".s2c"
	pub, sub := c2s, s2c
	if p.Role == RoleServer {
		pub, sub = s2c, c2s
	}

	nc, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		return nil, fmt.Errorf("transport: connect nats: %w", err)
	}

	t := &chunkedTransport{
		conn:            nc,
		ob:              ob,
		pubSubject:      pub,
		subSubject:      sub,
		maxChunkPayload: opts.MaxChunkPayload,
		transmitTimeout: opts.TransmitTimeout,
		reasm:           newChunkReassembler(),
		connStateCb:     connState,
		recvCb:          recv,
	}

	t.sub, err = nc.Subscribe(sub, t.onMessage)
	if err != nil {
		nc.Close()
		t.ob.Metrics.IncTransportError(BackendChunked)
		return nil, fmt.Errorf("transport: subscribe %s: %w", sub, err)
	}
	if p.Role == RoleClient {
		// Endpoint discovery happens at init; from the client's side the
		// channel is usable as soon as the subscription is up, and the
		// subscribe handshake has to start from this side. The server
		// synthesizes its Connected transition from the first well-formed
		// inbound frame instead.
		go t.setState(Connected)
	}
	return t, nil
}

func (t *chunkedTransport) onMessage(msg *nats.Msg) {
	frame, complete, err := func() ([]byte, bool, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed {
			return nil, false, nil
		}
		return t.reasm.feed(msg.Data)
	}()
	if err != nil {
		t.ob.Logger.Warn().Err(err).Msg("chunked: reassembly error")
		t.ob.Metrics.IncReassemblyError()
		return
	}
	if !complete {
		return
	}

	if isDisconnectService(frame) {
		t.setState(Disconnected)
		return
	}
	t.setState(Connected)
	t.ob.Metrics.IncFramesReceived()
	t.recvCb(frame)
}

func (t *chunkedTransport) setState(s ConnState) {
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	if s == Connected {
		t.everUp = true
	}
	t.mu.Unlock()
	if changed {
		t.connStateCb(s)
	}
}

func (t *chunkedTransport) Transmit(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	chunks, err := splitChunks(frame, t.maxChunkPayload, &t.sendID)
	conn := t.conn
	subject := t.pubSubject
	timeout := t.transmitTimeout
	t.mu.Unlock()
	if err != nil {
		return err
	}

	for _, c := range chunks {
		if err := conn.Publish(subject, c); err != nil {
			t.ob.Metrics.IncTransportError(BackendChunked)
			return err
		}
	}
	select {
	case <-ctx.Done():
		return ErrTransmitTimeout
	default:
	}
	if err := conn.FlushTimeout(timeout); err != nil {
		t.ob.Metrics.IncTransportError(BackendChunked)
		return ErrTransmitTimeout
	}
	t.ob.Metrics.IncFramesTransmitted()
	return nil
}

func (t *chunkedTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	wasUp := t.everUp
	// The disconnect service frame rides the same chunk framing as any
	// application frame, except it is never shielded: the single leading
	// escape byte is what marks it as a service frame at the remote.
	t.sendID = nextMessageID(t.sendID)
	h := chunkHeader{index: 1, count: 1, messageID: t.sendID}
	svc := append(h.encode(), disconnectService...)
	t.mu.Unlock()

	_ = t.conn.Publish(t.pubSubject, svc)
	_ = t.conn.Flush()
	if t.sub != nil {
		_ = t.sub.Unsubscribe()
	}
	t.conn.Close()

	if wasUp {
		// setState no-ops if a remote disconnect service frame already
		// drove this to Disconnected, preserving "never twice in the same
		// state" while still guaranteeing the transition fires once if the
		// connection had ever come up.
		t.setState(Disconnected)
	}
	return nil
}
