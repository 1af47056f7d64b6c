package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sift-dev/sift/pkg/reactive"
)

func TestPushUndoRedo(t *testing.T) {
	tr := NewTracker("a", nil)
	tr.Push("b")
	tr.Push("c")

	if got := tr.Present(); got != "c" {
		t.Fatalf("Present = %q, want c", got)
	}

	v, ok := tr.Undo()
	if !ok || v != "b" {
		t.Fatalf("Undo = %q, %v; want b, true", v, ok)
	}
	v, ok = tr.Undo()
	if !ok || v != "a" {
		t.Fatalf("Undo = %q, %v; want a, true", v, ok)
	}

	v, ok = tr.Redo()
	if !ok || v != "b" {
		t.Fatalf("Redo = %q, %v; want b, true", v, ok)
	}
	if got := tr.Present(); got != "b" {
		t.Errorf("Present after redo = %q, want b", got)
	}
}

func TestUndoOnEmptyPast(t *testing.T) {
	tr := NewTracker(1, nil)
	if v, ok := tr.Undo(); ok || v != 0 {
		t.Errorf("Undo on fresh tracker = %d, %v; want 0, false", v, ok)
	}
	if tr.CanUndo() {
		t.Error("CanUndo on fresh tracker = true")
	}
}

func TestRedoOnEmptyFuture(t *testing.T) {
	tr := NewTracker(1, nil)
	tr.Push(2)
	if v, ok := tr.Redo(); ok || v != 0 {
		t.Errorf("Redo with no undone state = %d, %v; want 0, false", v, ok)
	}
}

func TestPushClearsFuture(t *testing.T) {
	tr := NewTracker("a", nil)
	tr.Push("b")
	tr.Undo()
	if !tr.CanRedo() {
		t.Fatal("CanRedo after undo = false")
	}

	tr.Push("c")
	if tr.CanRedo() {
		t.Error("CanRedo after new push = true, want branch discarded")
	}
	if got := len(tr.State().Future); got != 0 {
		t.Errorf("len(Future) = %d, want 0", got)
	}
}

func TestNPushesNUndos(t *testing.T) {
	const n = 5
	tr := NewTracker("initial", nil)
	for i := 0; i < n; i++ {
		tr.Push(fmt.Sprintf("v%d", i))
	}

	for i := 0; i < n; i++ {
		if _, ok := tr.Undo(); !ok {
			t.Fatalf("Undo #%d failed", i+1)
		}
	}

	if got := tr.Present(); got != "initial" {
		t.Errorf("Present = %q, want initial", got)
	}
	if tr.CanUndo() {
		t.Error("CanUndo = true after undoing everything")
	}
	if !tr.CanRedo() {
		t.Error("CanRedo = false, want true")
	}
	if got := len(tr.State().Future); got != n {
		t.Errorf("len(Future) = %d, want %d", got, n)
	}
}

func TestPushDedupesEqualPresent(t *testing.T) {
	tr := NewTracker("a", func(a, b string) bool { return a == b })
	tr.Push("a")
	tr.Push("a")
	if tr.CanUndo() {
		t.Error("equal pushes were recorded")
	}

	tr.Push("b")
	if got := len(tr.State().Past); got != 1 {
		t.Errorf("len(Past) = %d, want 1", got)
	}
}

func TestSnapshotTimePreservedAcrossUndoRedo(t *testing.T) {
	tr := NewTracker("a", nil)
	tr.Push("b")
	pushedAt := tr.State().Present.At

	tr.Undo()
	tr.Redo()

	if got := tr.State().Present.At; !got.Equal(pushedAt) {
		t.Errorf("Present.At = %v, want %v", got, pushedAt)
	}
}

func TestCanUndoIsReactive(t *testing.T) {
	tr := NewTracker("a", nil)

	var (
		mu   sync.Mutex
		seen []bool
	)
	effect := reactive.NewEffect(func() reactive.Cleanup {
		v := tr.CanUndo()
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
		return nil
	})
	defer effect.Dispose()

	tr.Push("b")

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Fatalf("effect ran %d times, want at least 2", len(seen))
	}
	if seen[0] != false || seen[len(seen)-1] != true {
		t.Errorf("seen = %v, want first false then true", seen)
	}
}

func TestConcurrentPushes(t *testing.T) {
	tr := NewTracker(0, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			tr.Push(v)
		}(i)
	}
	wg.Wait()

	if got := len(tr.State().Past); got != 100 {
		t.Errorf("len(Past) = %d, want 100", got)
	}
}
