package tweak

import (
	"testing"

	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/queue"
	"github.com/cogentembedded/tweak-go/variant"
)

// stubSpecialization is a minimal specialization used to exercise Context's
// base API without standing up a real transport.
type stubSpecialization struct {
	jobs []queue.Job
}

func (s *stubSpecialization) cloneCurrentValue(id uint64) (variant.Value, Status) { return variant.Value{}, Success }
func (s *stubSpecialization) replaceCurrentValue(id uint64, v variant.Value) Status {
	return Success
}
func (s *stubSpecialization) handleJob(job queue.Job) { s.jobs = append(s.jobs, job) }
func (s *stubSpecialization) destroy()                {}

func newTestContext() (*Context, *stubSpecialization) {
	c := newBase(Callbacks{}, 10, obs.Nop())
	stub := &stubSpecialization{}
	c.impl = stub
	return c, stub
}

func TestFindIDAndGetSnapshot(t *testing.T) {
	c, _ := newTestContext()
	if err := c.model.CreateItem(1, "/a", "desc", "", variant.Sint32(1), variant.Sint32(2), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id := c.FindID("/a"); id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	if id := c.FindID("/missing"); id != 0 {
		t.Fatalf("expected 0 for unknown uri, got %d", id)
	}

	snap, ok := c.GetSnapshot(1)
	if !ok || snap.URI != "/a" || snap.Current.Int() != 2 {
		t.Fatalf("unexpected snapshot: %+v ok=%v", snap, ok)
	}
	if _, ok := c.GetSnapshot(999); ok {
		t.Fatalf("expected false for unknown id")
	}
}

func TestTraverseItemsVisitsAllAndStopsEarly(t *testing.T) {
	c, _ := newTestContext()
	_ = c.model.CreateItem(1, "/a", "", "", variant.Bool(true), variant.Bool(true), nil)
	_ = c.model.CreateItem(2, "/b", "", "", variant.Bool(true), variant.Bool(true), nil)
	_ = c.model.CreateItem(3, "/c", "", "", variant.Bool(true), variant.Bool(true), nil)

	seen := 0
	c.TraverseItems(func(s Snapshot) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Fatalf("expected walk to stop after first item, saw %d", seen)
	}

	seen = 0
	c.TraverseItems(func(s Snapshot) bool {
		seen++
		return true
	})
	if seen != 3 {
		t.Fatalf("expected to see all 3 items, saw %d", seen)
	}
}

func TestGetMetadataLazyParseThroughContext(t *testing.T) {
	c, _ := newTestContext()
	_ = c.model.CreateItem(1, "/a", "", `{"layout":{"order":"row-major","dimensions":[2,2]}}`, variant.VectorFloat32([]float32{1, 2, 3, 4}), variant.VectorFloat32([]float32{1, 2, 3, 4}), nil)

	meta, status := c.GetMetadata(1)
	if status != Success {
		t.Fatalf("expected Success, got %v", status)
	}
	if len(meta.Layout.Dimensions) != 2 {
		t.Fatalf("unexpected parsed dimensions: %+v", meta.Layout.Dimensions)
	}

	if _, status := c.GetMetadata(404); status != ItemNotFound {
		t.Fatalf("expected ItemNotFound, got %v", status)
	}
}

func TestFlushQueueReturnsOnEmptyBatch(t *testing.T) {
	c, _ := newTestContext()
	done := make(chan struct{})
	go func() {
		c.FlushQueue()
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}

func TestDestroySynthesizesRemoveForSurvivorsAndIsIdempotent(t *testing.T) {
	c, stub := newTestContext()
	_ = c.model.CreateItem(1, "/a", "", "", variant.Bool(true), variant.Bool(true), nil)
	_ = c.model.CreateItem(2, "/b", "", "", variant.Bool(true), variant.Bool(true), nil)

	c.startWorker()

	var removed []uint64
	c.callbacks.OnItemRemoved = func(id uint64) { removed = append(removed, id) }

	if err := c.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 synthesized removals, got %d", len(removed))
	}
	if c.model.Len() != 0 {
		t.Fatalf("expected model to be destroyed")
	}

	// second call must be a no-op, not a second round of removals.
	if err := c.Destroy(); err != nil {
		t.Fatalf("unexpected error on second destroy: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("destroy must not fire callbacks twice, got %d", len(removed))
	}
	_ = stub
}
