package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/cogentembedded/tweak-go/internal/obs"
)

// framePrefix is the two-byte literal every outbound application frame
// carries on the pair-socket backend.
var framePrefix = [2]byte{'T', 'W'}

// redialDelay paces the client's reconnection attempts while the peer is
// down.
const redialDelay = 250 * time.Millisecond

// pairSocket is the point-to-point stream backend, a WebSocket connection
// carrying binary frames: upgrade or dial, then wsutil.Read/WriteXMessage
// in a loop. One peer at a time:
// the server's accept loop admits the next connection only after the
// current one drops, and the client redials until the peer comes back or
// the transport is closed.
type pairSocket struct {
	role     Role
	listener net.Listener // server role only
	ob       obs.Observability

	mu          sync.Mutex
	conn        net.Conn
	state       ConnState
	everUp      bool
	closed      bool
	connStateCb ConnStateFunc
	recvCb      RecvFunc

	stopCh chan struct{}
}

// newPairSocket ignores opts: the pair-socket backend sends whole frames
// over one WebSocket connection, so it has no chunk size to configure, and
// Transmit's bound comes from the caller's ctx (built from
// Options.TransmitTimeout by the owning rpc.Skeleton) rather than a value
// the backend holds itself.
func newPairSocket(p Params, uri string, opts Options, connState ConnStateFunc, recv RecvFunc, ob obs.Observability) (Transport, error) {
	t := &pairSocket{
		role:        p.Role,
		ob:          ob,
		connStateCb: connState,
		recvCb:      recv,
		stopCh:      make(chan struct{}),
	}

	switch p.Role {
	case RoleServer:
		ln, err := net.Listen("tcp", uri)
		if err != nil {
			t.ob.Metrics.IncTransportError(BackendPairSocket)
			return nil, fmt.Errorf("transport: listen %s: %w", uri, err)
		}
		t.listener = ln
		go t.acceptLoop()
	case RoleClient:
		go t.dialLoop(uri)
	}
	return t, nil
}

func (t *pairSocket) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// acceptLoop admits one peer at a time: each accepted connection is served
// to completion before the next Accept, so a reconnecting client replaces
// its dropped predecessor rather than racing it.
func (t *pairSocket) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		if _, err := ws.Upgrade(conn); err != nil {
			t.ob.Logger.Warn().Err(err).Msg("pairsocket: rejected connection that failed ws upgrade")
			conn.Close()
			continue
		}
		t.attach(conn)
		if t.isClosed() {
			return
		}
	}
}

// dialLoop connects to the server, redialing until the transport closes; a
// lost connection re-enters the dial loop so reconnection works without
// the caller recreating the context.
func (t *pairSocket) dialLoop(uri string) {
	target := uri
	if !strings.Contains(target, "://") {
		target = "ws://" + target
	}
	for !t.isClosed() {
		conn, _, _, err := ws.Dial(context.Background(), target)
		if err != nil {
			select {
			case <-t.stopCh:
				return
			case <-time.After(redialDelay):
			}
			continue
		}
		t.attach(conn)
	}
}

// attach installs conn as the live connection, raises Connected, pumps
// inbound frames until the connection drops, then raises Disconnected.
func (t *pairSocket) attach(conn net.Conn) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.setState(Connected)
	t.receiveLoop(conn)

	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	t.setState(Disconnected)
}

// receiveLoop reads inbound frames until the connection closes or the
// transport is torn down. Entries without the "TW" prefix are silently
// dropped.
func (t *pairSocket) receiveLoop(conn net.Conn) {
	opReader := wsutil.ReadClientData
	if t.role == RoleClient {
		opReader = wsutil.ReadServerData
	}
	for {
		data, op, err := opReader(conn)
		if err != nil {
			return
		}
		if op != ws.OpBinary {
			continue
		}
		if len(data) < 2 || data[0] != framePrefix[0] || data[1] != framePrefix[1] {
			t.ob.Logger.Warn().Int("len", len(data)).Msg("pairsocket: dropped frame with missing/wrong prefix")
			continue
		}
		t.ob.Metrics.IncFramesReceived()
		t.recvCb(data[2:])
	}
}

func (t *pairSocket) setState(s ConnState) {
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

func (t *pairSocket) Transmit(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrClosed
	}

	buf := make([]byte, 0, len(frame)+2)
	buf = append(buf, framePrefix[0], framePrefix[1])
	buf = append(buf, frame...)

	// A write deadline bounds a stuck peer's write buffer; the deadline is
	// cleared again afterward so it never bleeds into a later call.
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTransmitTimeout)
	}
	_ = conn.SetWriteDeadline(deadline)
	var err error
	if t.role == RoleClient {
		err = wsutil.WriteClientMessage(conn, ws.OpBinary, buf)
	} else {
		err = wsutil.WriteServerMessage(conn, ws.OpBinary, buf)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	if err != nil {
		t.ob.Metrics.IncTransportError(BackendPairSocket)
		if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
			return ErrTransmitTimeout
		}
		return fmt.Errorf("transport: transmit: %w", err)
	}
	t.ob.Metrics.IncFramesTransmitted()
	return nil
}

func (t *pairSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	wasUp := t.everUp
	t.mu.Unlock()

	close(t.stopCh)
	if t.listener != nil {
		t.listener.Close()
	}
	if conn != nil {
		conn.Close()
	}

	if wasUp {
		t.setState(Disconnected)
	}
	return nil
}
