package reactive

import (
	"sync"
	"testing"
)

// testListener is a simple Listener implementation for testing.
type testListener struct {
	id         uint64
	dirtyCount int
	mu         sync.Mutex
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirtyCount++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirtyCount
}

func TestTrackingContextPerGoroutine(t *testing.T) {
	ctx1 := getTrackingContext()
	ctx2 := getTrackingContext()

	if ctx1 != ctx2 {
		t.Error("same goroutine should get the same tracking context")
	}

	var wg sync.WaitGroup
	contexts := make(chan *trackingContext, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		contexts <- getTrackingContext()
	}()
	go func() {
		defer wg.Done()
		contexts <- getTrackingContext()
	}()
	wg.Wait()
	close(contexts)

	var list []*trackingContext
	for ctx := range contexts {
		list = append(list, ctx)
	}
	if len(list) == 2 && list[0] == list[1] {
		t.Error("different goroutines should have different contexts")
	}
}

func TestWithListenerRestores(t *testing.T) {
	listener1 := newTestListener()
	listener2 := newTestListener()

	var inner, outerAfterInner Listener

	WithListener(listener1, func() {
		WithListener(listener2, func() {
			inner = getCurrentListener()
		})
		outerAfterInner = getCurrentListener()
	})

	if inner != listener2 {
		t.Error("inner listener should be listener2")
	}
	if outerAfterInner != listener1 {
		t.Error("outer listener should be restored to listener1")
	}
	if getCurrentListener() != nil {
		t.Error("listener should be nil after WithListener returns")
	}
}

func TestBatchDepthCounting(t *testing.T) {
	if getBatchDepth() != 0 {
		t.Error("batch depth should start at 0")
	}

	incrementBatchDepth()
	incrementBatchDepth()
	if getBatchDepth() != 2 {
		t.Errorf("expected depth 2, got %d", getBatchDepth())
	}

	if decrementBatchDepth() {
		t.Error("decrement should return false while still nested")
	}
	if !decrementBatchDepth() {
		t.Error("decrement should return true when reaching 0")
	}
}

func TestConcurrentContextAccess(t *testing.T) {
	var wg sync.WaitGroup
	const numGoroutines = 100
	const numIterations = 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numIterations; j++ {
				incrementBatchDepth()
				decrementBatchDepth()

				listener := newTestListener()
				setCurrentListener(listener)
				_ = getCurrentListener()
				setCurrentListener(nil)

				queuePendingUpdate(listener)
				drainPendingUpdates()
			}
		}()
	}

	wg.Wait()
}
