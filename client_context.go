package tweak

import (
	"time"

	"github.com/cogentembedded/tweak-go/internal/index"
	"github.com/cogentembedded/tweak-go/internal/model"
	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/queue"
	"github.com/cogentembedded/tweak-go/internal/rpc"
	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// WaitForever is the sentinel accepted by ClientContext.WaitURIs for an
// unbounded wait.
const WaitForever time.Duration = -1

// ClientContext is the client-side specialization of Context: it never
// creates items through the user API, only reactively in
// response to the server's AddItem/ChangeItem/RemoveItem traffic.
type ClientContext struct {
	*Context
}

// NewClientContext connects to uri with backend backendName.
// transportOpts carries the chunk-size/transmit-timeout knobs the caller
// read from configuration; its zero value takes the transport package
// defaults. ob is the logging/metrics bundle the context, its RPC
// skeleton, and its transport all report through; pass obs.Nop() for a
// context with no observability attached.
func NewClientContext(backendName, params, uri string, callbacks Callbacks, queueMaxBatch int, transportOpts transport.Options, ob obs.Observability) (*ClientContext, error) {
	cc := &ClientContext{Context: newBase(callbacks, queueMaxBatch, ob)}
	cc.impl = cc

	sk, err := rpc.New(backendName, params, uri, transportOpts, rpc.Listeners{
		OnAddItem:          cc.onAddItem,
		OnChangeItem:       cc.onChangeItem,
		OnRemoveItem:       cc.onRemoveItem,
		OnAnnounceFeatures: cc.onAnnounceFeatures,
		OnConnectionState:  cc.onConnectionState,
	}, ob)
	if err != nil {
		return nil, err
	}
	cc.sk = sk
	cc.transmitTimeout = sk.TransmitTimeout()
	cc.startWorker()
	return cc, nil
}

func (cc *ClientContext) onConnectionState(connected bool) {
	if !connected {
		cc.setConnected(false)
		if cc.callbacks.OnConnectionStatusChanged != nil {
			cc.callbacks.OnConnectionStatusChanged(false)
		}
		return
	}

	cc.resetPeerFeaturesToMinimal()

	var survivors []uint64
	cc.modelMu.Lock()
	cc.model.Walk(func(it *model.Item) bool {
		survivors = append(survivors, it.ID)
		return true
	})
	cc.model.Destroy()
	cc.modelMu.Unlock()
	cc.broadcastWaiters()

	if cc.callbacks.OnItemRemoved != nil {
		for _, id := range survivors {
			cc.callbacks.OnItemRemoved(id)
		}
	}

	cc.setConnected(true)
	if cc.callbacks.OnConnectionStatusChanged != nil {
		cc.callbacks.OnConnectionStatusChanged(true)
	}
	cc.q.Push(queue.Job{Proc: queue.ProcSubscribe})
}

func (cc *ClientContext) onAnnounceFeatures(featuresJSON string) {
	cc.setPeerFeatures(wire.ParseFeatures(featuresJSON))
}

// onAddItem implements the three-way refresh/new/inconsistent
// dispatch. A refresh or new item never invokes a callback while modelMu is
// held; a fatal inconsistency is logged and the process exits (the client
// trusts the server's model as authoritative and has no way to repair a
// contradiction locally).
func (cc *ClientContext) onAddItem(msg wire.AddItem) {
	cc.modelMu.Lock()
	existing, exists := cc.model.FindByURI(msg.URI)

	switch {
	case exists && existing.ID == msg.ID && existing.Description == msg.Description &&
		existing.MetaSource == msg.Meta && existing.Default.Equal(msg.Default):
		changed := !existing.Current.Equal(msg.Current)
		if changed {
			existing.Current = msg.Current
		}
		cc.modelMu.Unlock()
		if changed && cc.callbacks.OnCurrentValueChanged != nil {
			cc.callbacks.OnCurrentValueChanged(msg.ID, msg.Current.Clone())
		}

	case exists:
		cc.modelMu.Unlock()
		cc.log.Fatal().
			Uint64("id", msg.ID).
			Str("uri", msg.URI).
			Msg("add_item refresh inconsistent with existing item")

	default:
		err := cc.model.CreateItem(msg.ID, msg.URI, msg.Description, msg.Meta, msg.Default, msg.Current, nil)
		cc.modelMu.Unlock()
		if err != nil {
			cc.log.Fatal().
				Err(err).
				Uint64("id", msg.ID).
				Str("uri", msg.URI).
				Msg("add_item rejected by client model")
			return
		}
		cc.broadcastWaiters()
		if cc.callbacks.OnNewItem != nil {
			cc.callbacks.OnNewItem(msg.ID)
		}
	}
}

func (cc *ClientContext) onChangeItem(id uint64, v variant.Value) {
	cc.modelMu.Lock()
	it, ok := cc.model.FindByID(id)
	if !ok {
		cc.modelMu.Unlock()
		cc.log.Info().Uint64("id", id).Msg("change_item for unknown id, dropped")
		return
	}
	changed := !it.Current.Equal(v)
	if changed {
		it.Current = v
	}
	cc.modelMu.Unlock()

	if changed && cc.callbacks.OnCurrentValueChanged != nil {
		cc.callbacks.OnCurrentValueChanged(id, v.Clone())
	}
}

func (cc *ClientContext) onRemoveItem(id uint64) {
	cc.modelMu.Lock()
	err := cc.model.RemoveItem(id)
	cc.modelMu.Unlock()
	if err != nil {
		return
	}
	cc.broadcastWaiters()
	if cc.callbacks.OnItemRemoved != nil {
		cc.callbacks.OnItemRemoved(id)
	}
}

func (cc *ClientContext) cloneCurrentValue(id uint64) (variant.Value, Status) {
	cc.modelMu.RLock()
	it, ok := cc.model.FindByID(id)
	if !ok {
		cc.modelMu.RUnlock()
		return variant.Value{}, ItemNotFound
	}
	v := it.Current.Clone()
	cc.modelMu.RUnlock()

	if cc.isConnected() {
		return v, Success
	}
	return v, SuccessLastKnownValue
}

func (cc *ClientContext) replaceCurrentValue(id uint64, v variant.Value) Status {
	cc.modelMu.Lock()
	it, ok := cc.model.FindByID(id)
	if !ok {
		cc.modelMu.Unlock()
		return ItemNotFound
	}
	if !variant.CheckCompatibility(it.Current, v) {
		cc.modelMu.Unlock()
		return TypeMismatch
	}
	if !cc.isConnected() {
		cc.modelMu.Unlock()
		return PeerDisconnected
	}
	it.Current = v
	cc.modelMu.Unlock()

	cc.q.Push(queue.Job{Proc: queue.ProcPushCurrentValue, TweakID: id})
	return Success
}

func (cc *ClientContext) handleJob(job queue.Job) {
	switch job.Proc {
	case queue.ProcSubscribe:
		cc.drainSubscribe()
	case queue.ProcPushCurrentValue:
		cc.drainPushCurrentValue(job.TweakID)
	}
}

// drainSubscribe sends Subscribe followed by this side's AnnounceFeatures.
func (cc *ClientContext) drainSubscribe() {
	ctx, cancel := cc.transmitContext()
	_ = cc.sk.TransmitSubscribe(ctx, "*")
	cancel()

	ctx, cancel = cc.transmitContext()
	_ = cc.sk.TransmitAnnounceFeatures(ctx, wire.DefaultFeatures().Encode())
	cancel()
}

func (cc *ClientContext) drainPushCurrentValue(id uint64) {
	cc.modelMu.RLock()
	it, ok := cc.model.FindByID(id)
	var v variant.Value
	if ok {
		v = it.Current.Clone()
	}
	cc.modelMu.RUnlock()
	if !ok {
		return
	}
	ctx, cancel := cc.transmitContext()
	defer cancel()
	_ = cc.sk.TransmitChangeItem(ctx, id, v)
}

func (cc *ClientContext) destroy() {}

// WaitURIs blocks until every uri in uris resolves to an id while the
// context is connected, or timeout elapses (WaitForever for no bound),
// returning the resolved ids in the same order.
func (cc *ClientContext) WaitURIs(uris []string, timeout time.Duration) ([]uint64, Status) {
	var deadline time.Time
	infinite := timeout < 0
	if !infinite {
		deadline = time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, cc.broadcastWaiters)
		defer timer.Stop()
	}

	cc.waitMu.Lock()
	defer cc.waitMu.Unlock()
	for {
		if ids, ok := cc.tryResolveURIs(uris); ok {
			return ids, Success
		}
		if !infinite && !time.Now().Before(deadline) {
			return nil, Timeout
		}
		cc.waitCond.Wait()
	}
}

func (cc *ClientContext) tryResolveURIs(uris []string) ([]uint64, bool) {
	if !cc.isConnected() {
		return nil, false
	}
	cc.modelMu.RLock()
	defer cc.modelMu.RUnlock()
	ids := make([]uint64, len(uris))
	for i, u := range uris {
		id := cc.model.LookupURI(u)
		if id == index.Invalid {
			return nil, false
		}
		ids[i] = id
	}
	return ids, true
}
