package tweak

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/cogentembedded/tweak-go/internal/index"
	"github.com/cogentembedded/tweak-go/internal/model"
	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/queue"
	"github.com/cogentembedded/tweak-go/internal/rpc"
	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// ServerContext is the server-side specialization of Context: items are
// created and removed through its own user API, and propagated to the single connected client.
type ServerContext struct {
	*Context

	nextID uint64

	// populationLimiter throttles AddItem emission during the initial
	// subscribe walk so a large model doesn't saturate the transport on
	// first connect.
	populationLimiter *rate.Limiter
}

// NewServerContext creates a server context listening on uri with backend
// backendName. transportOpts carries the chunk-size/transmit-
// timeout knobs the caller read from configuration; its zero value takes
// the transport package defaults. ob is the logging/metrics bundle the
// context, its RPC skeleton, and its transport all report through; pass
// obs.Nop() for a context with no observability attached.
func NewServerContext(backendName, params, uri string, callbacks Callbacks, queueMaxBatch int, transportOpts transport.Options, ob obs.Observability) (*ServerContext, error) {
	sc := &ServerContext{
		Context:           newBase(callbacks, queueMaxBatch, ob),
		populationLimiter: rate.NewLimiter(rate.Limit(200), 50),
	}
	sc.impl = sc

	sk, err := rpc.New(backendName, params, uri, transportOpts, rpc.Listeners{
		OnSubscribe:        sc.onSubscribe,
		OnChangeItem:       sc.onInboundChangeItem,
		OnAnnounceFeatures: sc.onAnnounceFeatures,
		OnConnectionState:  sc.onConnectionState,
	}, ob)
	if err != nil {
		return nil, err
	}
	sc.sk = sk
	sc.transmitTimeout = sk.TransmitTimeout()
	sc.startWorker()
	return sc, nil
}

func (sc *ServerContext) allocID() uint64 {
	return atomic.AddUint64(&sc.nextID, 1)
}

// AddItem registers a new item and, if a client is subscribed and supports
// the item's type, enqueues its propagation. It returns 0 if
// uri is already taken.
func (sc *ServerContext) AddItem(uri, description, meta string, initialValue variant.Value, cookie any) uint64 {
	if uri == "" {
		return 0
	}
	sc.modelMu.Lock()
	if sc.model.LookupURI(uri) != index.Invalid {
		sc.modelMu.Unlock()
		return 0
	}
	id := sc.allocID()
	if err := sc.model.CreateItem(id, uri, description, meta, initialValue, initialValue, cookie); err != nil {
		sc.modelMu.Unlock()
		return 0
	}
	sc.modelMu.Unlock()
	sc.ob.Metrics.IncItemsCreated()
	sc.broadcastWaiters()

	if sc.isConnected() && sc.currentPeerFeatures().Supports(initialValue.Kind().IsVector()) {
		sc.q.Push(queue.Job{Proc: queue.ProcAddItem, TweakID: id})
	}
	return id
}

// RemoveItem deletes item id and, if a client is subscribed and supported
// its type, enqueues a RemoveItem propagation.
func (sc *ServerContext) RemoveItem(id uint64) bool {
	sc.modelMu.Lock()
	it, ok := sc.model.FindByID(id)
	var wasVector bool
	if ok {
		wasVector = it.Default.Kind().IsVector()
	}
	err := sc.model.RemoveItem(id)
	sc.modelMu.Unlock()
	if err != nil {
		return false
	}
	sc.ob.Metrics.IncItemsRemoved()
	sc.broadcastWaiters()

	if sc.isConnected() && sc.currentPeerFeatures().Supports(wasVector) {
		sc.q.Push(queue.Job{Proc: queue.ProcRemoveItem, TweakID: id})
	}
	return true
}

// GetCookie returns the user cookie item id was created with.
// The second return is false if the item doesn't exist.
func (sc *ServerContext) GetCookie(id uint64) (any, bool) {
	sc.modelMu.RLock()
	defer sc.modelMu.RUnlock()
	it, ok := sc.model.FindByID(id)
	if !ok {
		return nil, false
	}
	return it.Cookie, true
}

func (sc *ServerContext) onSubscribe(uriPatterns string) {
	sc.q.Push(queue.Job{Proc: queue.ProcSubscribe})
}

func (sc *ServerContext) onAnnounceFeatures(featuresJSON string) {
	sc.setPeerFeatures(wire.ParseFeatures(featuresJSON))
}

func (sc *ServerContext) onConnectionState(connected bool) {
	if connected {
		sc.resetPeerFeaturesToMinimal()
	}
	// connected=true is only set once the subscribe walk finishes (below);
	// any transition resets it until then.
	sc.setConnected(false)
	if sc.callbacks.OnConnectionStatusChanged != nil {
		sc.callbacks.OnConnectionStatusChanged(connected)
	}
}

func (sc *ServerContext) onInboundChangeItem(id uint64, v variant.Value) {
	sc.modelMu.Lock()
	it, ok := sc.model.FindByID(id)
	if !ok {
		sc.modelMu.Unlock()
		return
	}
	if !variant.CheckCompatibility(it.Current, v) {
		sc.modelMu.Unlock()
		return
	}
	old := it.Current
	it.Current = v
	sc.modelMu.Unlock()

	if !old.Equal(v) && sc.callbacks.OnCurrentValueChanged != nil {
		sc.callbacks.OnCurrentValueChanged(id, v.Clone())
	}
	// Always echo the change back, keeping both sides consistent.
	ctx, cancel := sc.transmitContext()
	defer cancel()
	_ = sc.sk.TransmitChangeItem(ctx, id, v)
}

func (sc *ServerContext) cloneCurrentValue(id uint64) (variant.Value, Status) {
	sc.modelMu.RLock()
	defer sc.modelMu.RUnlock()
	it, ok := sc.model.FindByID(id)
	if !ok {
		return variant.Value{}, ItemNotFound
	}
	return it.Current.Clone(), Success
}

func (sc *ServerContext) replaceCurrentValue(id uint64, v variant.Value) Status {
	sc.modelMu.Lock()
	it, ok := sc.model.FindByID(id)
	if !ok {
		sc.modelMu.Unlock()
		return ItemNotFound
	}
	if !variant.CheckCompatibility(it.Current, v) {
		sc.modelMu.Unlock()
		return TypeMismatch
	}
	it.Current = v
	sc.modelMu.Unlock()

	if sc.isConnected() && sc.currentPeerFeatures().Supports(v.Kind().IsVector()) {
		sc.q.Push(queue.Job{Proc: queue.ProcPushCurrentValue, TweakID: id})
	}
	return Success
}

func (sc *ServerContext) handleJob(job queue.Job) {
	switch job.Proc {
	case queue.ProcSubscribe:
		sc.drainSubscribe()
	case queue.ProcAddItem:
		sc.drainAddItem(job.TweakID)
	case queue.ProcRemoveItem:
		sc.drainRemoveItem(job.TweakID)
	case queue.ProcPushCurrentValue:
		sc.drainPushCurrentValue(job.TweakID)
	}
}

// drainSubscribe handles an inbound subscribe: announce this
// side's features if not already done this connection, walk the model
// emitting AddItem for every type the peer supports, then mark the context
// connected so subsequent replace_current_value calls push eagerly.
func (sc *ServerContext) drainSubscribe() {
	if sc.takeFeaturesAnnouncePending() {
		ctx, cancel := sc.transmitContext()
		_ = sc.sk.TransmitAnnounceFeatures(ctx, wire.DefaultFeatures().Encode())
		cancel()
	}

	peer := sc.currentPeerFeatures()
	var toSend []wire.AddItem
	sc.modelMu.RLock()
	sc.model.Walk(func(it *model.Item) bool {
		if it.Default.Kind().IsVector() && !peer.Supports(true) {
			return true
		}
		toSend = append(toSend, wire.AddItem{
			ID:          it.ID,
			URI:         it.URI,
			Description: it.Description,
			Meta:        it.MetaSource,
			Default:     it.Default.Clone(),
			Current:     it.Current.Clone(),
		})
		return true
	})
	sc.modelMu.RUnlock()

	for _, msg := range toSend {
		_ = sc.populationLimiter.Wait(context.Background())
		ctx, cancel := sc.transmitContext()
		_ = sc.sk.TransmitAddItem(ctx, msg)
		cancel()
	}

	sc.setConnected(true)
}

func (sc *ServerContext) drainAddItem(id uint64) {
	sc.modelMu.Lock()
	it, ok := sc.model.FindByID(id)
	var msg wire.AddItem
	if ok {
		msg = wire.AddItem{
			ID:          it.ID,
			URI:         it.URI,
			Description: it.Description,
			Meta:        it.MetaSource,
			Default:     it.Default.Clone(),
			Current:     it.Current.Clone(),
		}
	}
	sc.modelMu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := sc.transmitContext()
	defer cancel()
	_ = sc.sk.TransmitAddItem(ctx, msg)
}

func (sc *ServerContext) drainRemoveItem(id uint64) {
	ctx, cancel := sc.transmitContext()
	defer cancel()
	_ = sc.sk.TransmitRemoveItem(ctx, id)
}

func (sc *ServerContext) drainPushCurrentValue(id uint64) {
	sc.modelMu.RLock()
	it, ok := sc.model.FindByID(id)
	var v variant.Value
	if ok {
		v = it.Current.Clone()
	}
	sc.modelMu.RUnlock()
	if !ok {
		return
	}
	ctx, cancel := sc.transmitContext()
	defer cancel()
	_ = sc.sk.TransmitChangeItem(ctx, id, v)
}

func (sc *ServerContext) destroy() {}
