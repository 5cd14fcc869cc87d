package queue

import (
	"testing"
	"time"
)

func TestPushPullBasic(t *testing.T) {
	q := New(10)
	q.Push(Job{Proc: ProcPushCurrentValue, TweakID: 1})
	q.Push(Job{Proc: ProcPushCurrentValue, TweakID: 2})

	jobs, stopped := q.Pull()
	if stopped {
		t.Fatal("did not expect stopped")
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestPushCoalescesIdenticalTriples(t *testing.T) {
	q := New(10)
	q.Push(Job{Proc: ProcPushCurrentValue, TweakID: 1, Cookie: "a"})
	q.Push(Job{Proc: ProcPushCurrentValue, TweakID: 1, Cookie: "a"})
	q.Push(Job{Proc: ProcPushCurrentValue, TweakID: 1, Cookie: "b"})

	jobs, _ := q.Pull()
	if len(jobs) != 2 {
		t.Fatalf("expected coalescing to leave 2 distinct jobs, got %d", len(jobs))
	}
}

func TestPullBlocksUntilPush(t *testing.T) {
	q := New(10)
	done := make(chan []Job, 1)
	go func() {
		jobs, _ := q.Pull()
		done <- jobs
	}()

	select {
	case <-done:
		t.Fatal("expected Pull to block with no jobs pending")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(Job{Proc: ProcAddItem, TweakID: 7})
	select {
	case jobs := <-done:
		if len(jobs) != 1 {
			t.Fatalf("expected 1 job, got %d", len(jobs))
		}
	case <-time.After(time.Second):
		t.Fatal("expected Pull to return after Push")
	}
}

func TestPullAfterStopWithNoWorkReturnsStopped(t *testing.T) {
	q := New(10)
	q.Stop()
	jobs, stopped := q.Pull()
	if !stopped || jobs != nil {
		t.Fatalf("expected stopped result with no jobs, got jobs=%v stopped=%v", jobs, stopped)
	}
}

func TestStopUnblocksWaitingPush(t *testing.T) {
	// maxSize 1: the second push must block for batch space, since nothing
	// pulls it out. Stop must wake it anyway.
	q := New(1)
	q.Push(Job{Proc: ProcAddItem, TweakID: 1})

	done := make(chan struct{})
	go func() {
		q.Push(Job{Proc: ProcAddItem, TweakID: 2})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected second push to block on a full batch")
	case <-time.After(50 * time.Millisecond):
	}

	q.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Stop to unblock the waiting Push")
	}
}

func TestWaitEmptyReturnsWhenBatchDrained(t *testing.T) {
	q := New(10)
	q.Push(Job{Proc: ProcRemoveItem, TweakID: 3})

	waitDone := make(chan struct{})
	go func() {
		q.WaitEmpty()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		t.Fatal("expected WaitEmpty to block while batch is non-empty")
	case <-time.After(50 * time.Millisecond):
	}

	q.Pull()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("expected WaitEmpty to return after Pull drains the batch")
	}
}

func TestIsStopped(t *testing.T) {
	q := New(10)
	if q.IsStopped() {
		t.Fatal("expected fresh queue to not be stopped")
	}
	q.Stop()
	if !q.IsStopped() {
		t.Fatal("expected IsStopped to report true after Stop")
	}
}
