package store

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetPending(t *testing.T) {
	tr := NewTracker()

	tr.SetPending(true, "m1")
	pending, id := tr.Pending()
	assert.True(t, pending)
	assert.Equal(t, "m1", id)

	tr.SetPending(false, "m1")
	pending, id = tr.Pending()
	assert.False(t, pending)
	assert.Empty(t, id, "message id must be dropped when not pending")
}

func TestTryBegin(t *testing.T) {
	tr := NewTracker()

	assert.True(t, tr.TryBegin(""))
	assert.False(t, tr.TryBegin("other"))
	assert.True(t, tr.IsPending())

	tr.SetPending(false, "")
	assert.True(t, tr.TryBegin("m2"))
	_, id := tr.Pending()
	assert.Equal(t, "m2", id)
}

func TestTryBeginAdmitsOneConcurrentCaller(t *testing.T) {
	tr := NewTracker()
	var admitted atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryBegin("") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestTrackerSubscribe(t *testing.T) {
	tr := NewTracker()
	var calls int
	tr.Subscribe(func() { calls++ })

	tr.SetPending(true, "")
	tr.TryBegin("") // rejected, no notification
	tr.SetPending(false, "")

	assert.Equal(t, 2, calls)
}
