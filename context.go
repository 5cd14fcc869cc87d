// Package tweak is the public API of a bidirectional, remote parameter
// tuning runtime: a model of named typed values kept in sync between a
// server process and one connected client over a pluggable transport
// (internal/transport), a framed wire codec (internal/wire), a bounded
// coalescing job queue decoupling API callers from the protocol worker
// (internal/queue), and the item store itself (internal/model).
package tweak

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cogentembedded/tweak-go/internal/model"
	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/queue"
	"github.com/cogentembedded/tweak-go/internal/rpc"
	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/internal/wire"
	"github.com/cogentembedded/tweak-go/variant"
)

// Callbacks is the listener set a caller supplies at context creation.
type Callbacks struct {
	OnConnectionStatusChanged func(connected bool)
	OnNewItem                 func(id uint64)
	OnItemRemoved             func(id uint64)
	OnCurrentValueChanged     func(id uint64, v variant.Value)
}

// specialization supplies the hooks that differ between a server and a
// client context.
type specialization interface {
	cloneCurrentValue(id uint64) (variant.Value, Status)
	replaceCurrentValue(id uint64, v variant.Value) Status
	handleJob(job queue.Job)
	destroy()
}

// Context is the common base shared by server and client contexts. Every
// exported method here is available on both specializations.
type Context struct {
	modelMu sync.RWMutex
	model   *model.Model

	connMu            sync.Mutex
	connected         bool
	peerFeatures      wire.Features
	featuresAnnounced bool

	// waitMu/waitCond back wait_uris: broadcast whenever
	// connected or the model changes, so a waiter re-checks its predicate.
	waitMu   sync.Mutex
	waitCond *sync.Cond

	q  *queue.Queue
	sk *rpc.Skeleton

	callbacks       Callbacks
	impl            specialization
	log             zerolog.Logger
	ob              obs.Observability
	transmitTimeout time.Duration

	workerWG      sync.WaitGroup
	destroyOnce   sync.Once
	destroyResult error
}

// SetLogger attaches l for the fatal/informational logging points
// (e.g. an inconsistent add_item refresh on the client). Contexts
// are usable without ever calling this; the zero value discards everything.
// It also updates the logger in the context's own copy of its
// Observability bundle. The RPC skeleton and transport received their own
// copies at construction time and keep the logger they were given then.
func (c *Context) SetLogger(l zerolog.Logger) {
	c.log = l
	c.ob.Logger = l
}

func newBase(callbacks Callbacks, queueMaxBatch int, ob obs.Observability) *Context {
	c := &Context{
		model:           model.New(),
		q:               queue.New(queueMaxBatch),
		callbacks:       callbacks,
		log:             ob.Logger,
		ob:              ob,
		transmitTimeout: transport.DefaultTransmitTimeout,
	}
	c.waitCond = sync.NewCond(&c.waitMu)
	return c
}

// broadcastWaiters wakes every wait_uris caller so it can re-check its
// predicate against the latest connected/model state.
func (c *Context) broadcastWaiters() {
	c.waitMu.Lock()
	c.waitCond.Broadcast()
	c.waitMu.Unlock()
}

func (c *Context) startWorker() {
	c.workerWG.Add(1)
	go func() {
		defer c.workerWG.Done()
		for {
			jobs, stopped := c.q.Pull()
			if stopped {
				return
			}
			c.ob.Metrics.ObserveQueueBatch(len(jobs))
			for _, j := range jobs {
				c.impl.handleJob(j)
			}
		}
	}()
}

func (c *Context) isConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

func (c *Context) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
	c.broadcastWaiters()
}

// resetPeerFeaturesToMinimal clears the remote's advertised feature set and
// the "features announced" latch, done on every fresh connection by both
// specializations.
func (c *Context) resetPeerFeaturesToMinimal() {
	c.connMu.Lock()
	c.peerFeatures = wire.Features{}
	c.featuresAnnounced = false
	c.connMu.Unlock()
}

func (c *Context) currentPeerFeatures() wire.Features {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.peerFeatures
}

// takeFeaturesAnnouncePending reports whether this side still owes the peer
// an AnnounceFeatures frame, and atomically clears the flag if so. Used by
// the server's subscribe-draining worker.
func (c *Context) takeFeaturesAnnouncePending() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.featuresAnnounced {
		return false
	}
	c.featuresAnnounced = true
	return true
}

func (c *Context) setPeerFeatures(f wire.Features) {
	c.connMu.Lock()
	c.peerFeatures = f
	c.connMu.Unlock()
}

// FindID resolves uri to its id, or Invalid (0) if unknown.
func (c *Context) FindID(uri string) uint64 {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	return c.model.LookupURI(uri)
}

// GetSnapshot returns a deep copy of item id, or false if it doesn't exist.
func (c *Context) GetSnapshot(id uint64) (Snapshot, bool) {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	it, ok := c.model.FindByID(id)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		ID:          it.ID,
		URI:         it.URI,
		Description: it.Description,
		Default:     it.Default.Clone(),
		Current:     it.Current.Clone(),
	}, true
}

// TraverseItems walks the model under a read lock, handing the visitor a
// borrowed Snapshot per item (do not retain a Snapshot's slices beyond the
// call: they alias the live item's buffers). Returning false stops the
// walk early.
func (c *Context) TraverseItems(visitor func(Snapshot) bool) {
	c.modelMu.RLock()
	defer c.modelMu.RUnlock()
	c.model.Walk(func(it *model.Item) bool {
		return visitor(Snapshot{
			ID:          it.ID,
			URI:         it.URI,
			Description: it.Description,
			Default:     it.Default,
			Current:     it.Current,
		})
	})
}

// CloneCurrentValue deep-copies item id's current value. Behavior differs
// by specialization: the server always succeeds if the item
// exists; the client additionally distinguishes a stale read while
// disconnected (SuccessLastKnownValue).
func (c *Context) CloneCurrentValue(id uint64) (variant.Value, Status) {
	return c.impl.cloneCurrentValue(id)
}

// ReplaceCurrentValue moves value into item id's current value and enqueues
// the specialization's push/change job.
func (c *Context) ReplaceCurrentValue(id uint64, value variant.Value) Status {
	return c.impl.replaceCurrentValue(id, value)
}

// GetMetadata lazily parses item id's metadata JSON. The fast path takes
// only a read lock; if parsing is still needed, the read lock is dropped
// and a write lock acquired, then the item is re-checked before parsing
// (lock promotion is disallowed).
func (c *Context) GetMetadata(id uint64) (variant.Metadata, Status) {
	c.modelMu.RLock()
	it, ok := c.model.FindByID(id)
	if !ok {
		c.modelMu.RUnlock()
		return variant.Metadata{}, ItemNotFound
	}
	if meta, parsed := it.MetadataIfParsed(); parsed {
		c.modelMu.RUnlock()
		return meta, Success
	}
	c.modelMu.RUnlock()

	c.modelMu.Lock()
	defer c.modelMu.Unlock()
	it, ok = c.model.FindByID(id)
	if !ok {
		return variant.Metadata{}, ItemNotFound
	}
	meta, err := it.EnsureMetadataParsed()
	if err != nil {
		return variant.Metadata{}, InvalidArgument
	}
	return meta, Success
}

// FlushQueue blocks until the worker's current batch is empty.
func (c *Context) FlushQueue() {
	c.q.WaitEmpty()
}

// Destroy stops the queue, joins the worker, synthesises a final
// on_item_removed for each surviving item, and tears down the transport.
// Safe to call more than once; only the first call does work.
func (c *Context) Destroy() error {
	c.destroyOnce.Do(func() {
		c.q.Stop()
		c.workerWG.Wait()

		var survivors []uint64
		c.modelMu.Lock()
		c.model.Walk(func(it *model.Item) bool {
			survivors = append(survivors, it.ID)
			return true
		})
		c.model.Destroy()
		c.modelMu.Unlock()

		if c.callbacks.OnItemRemoved != nil {
			for _, id := range survivors {
				c.callbacks.OnItemRemoved(id)
			}
		}

		c.impl.destroy()
		if c.sk != nil {
			c.destroyResult = c.sk.Destroy()
		}
	})
	return c.destroyResult
}

// transmitContext is the bounded context every RPC transmit call uses,
// derived from the skeleton's configured timeout.
func (c *Context) transmitContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.transmitTimeout)
}
