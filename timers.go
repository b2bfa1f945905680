/*
@Description: Heap-scheduled timer service backing per-session receive timeouts
*/

package sonicwave

import (
	"container/heap"
	"runtime"
	"sync"
	"time"
)

// SystemTimer is a shared timer instance sized to the number of CPU cores.
// Engine uses it to schedule every receive-session timeout instead of one
// time.AfterFunc per session, bounding goroutine count under load.
var SystemTimer *Timer = NewTimer(runtime.NumCPU())

// timedFunc represents a function that should be executed at a specific time.
// Cancellation is handled by the closure Put wraps f in, not by this struct.
type timedFunc struct {
	execute func()
	ts      time.Time
}

// TimerHandle lets a caller cancel a scheduled timedFunc before it fires.
// Cancellation is idempotent: calling Cancel twice, or after the function
// has already run, is a no-op (invariant I5 relies on this).
type TimerHandle struct {
	cancelled *bool
	mu        *sync.Mutex
}

// Cancel prevents the associated function from running, if it hasn't
// already. Safe to call multiple times and from multiple goroutines.
func (h TimerHandle) Cancel() {
	h.mu.Lock()
	*h.cancelled = true
	h.mu.Unlock()
}

// Timer manages scheduled function execution with multiple worker goroutines.
// It uses a heap-based priority queue to efficiently handle timed tasks.
type Timer struct {
	prependTasks    []timedFunc
	prependLock     sync.Mutex
	chPrependNotify chan any

	chTask chan timedFunc

	closeOnce sync.Once
	close     chan any
}

// NewTimer creates a new Timer with the specified number of parallel worker goroutines.
func NewTimer(parallel int) *Timer {
	t := new(Timer)
	t.chTask = make(chan timedFunc)
	t.close = make(chan any)
	t.chPrependNotify = make(chan any, 1)

	for i := 0; i < parallel; i++ {
		go t.seched()
	}
	go t.prepend()
	return t
}

// timeFuncHeap implements heap.Interface for timedFunc elements, ordered
// earliest-deadline-first.
type timeFuncHeap []timedFunc

func (h timeFuncHeap) Len() int            { return len(h) }
func (h timeFuncHeap) Less(i, j int) bool  { return h[i].ts.Before(h[j].ts) }
func (h timeFuncHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timeFuncHeap) Push(x any)         { *h = append(*h, x.(timedFunc)) }
func (h *timeFuncHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// seched is the main scheduling loop for one worker goroutine: it manages a
// heap of pending tasks and executes them at the right time.
func (t *Timer) seched() {
	timer := time.NewTimer(0)
	defer timer.Stop()

	var tasks timeFuncHeap
	drained := false

	for {
		select {
		case task := <-t.chTask:
			now := time.Now()
			if now.After(task.ts) {
				go task.execute()
			} else {
				heap.Push(&tasks, task)
				stopped := timer.Stop()
				if !stopped && !drained {
					<-timer.C
				}
				if tasks.Len() > 0 {
					timer.Reset(tasks[0].ts.Sub(now))
				}
			}
		case now := <-timer.C:
			drained = true
			for tasks.Len() > 0 {
				if now.After(tasks[0].ts) {
					task := heap.Pop(&tasks).(timedFunc)
					go task.execute()
				} else {
					timer.Reset(tasks[0].ts.Sub(now))
					drained = false
					break
				}
			}
		case <-t.close:
			return
		}
	}
}

// prepend batches newly-Put tasks off the caller's goroutine before handing
// them to the scheduling workers, so Put never blocks on scheduler state.
func (t *Timer) prepend() {
	var tasks []timedFunc
	for {
		select {
		case <-t.chPrependNotify:
			t.prependLock.Lock()
			if cap(tasks) < cap(t.prependTasks) {
				tasks = make([]timedFunc, 0, cap(t.prependTasks))
			}
			tasks = tasks[:len(t.prependTasks)]
			copy(tasks, t.prependTasks)
			for k := range t.prependTasks {
				t.prependTasks[k].execute = nil
			}
			t.prependTasks = t.prependTasks[:0]
			t.prependLock.Unlock()

			for k := range tasks {
				select {
				case t.chTask <- tasks[k]:
					tasks[k].execute = nil
				case <-t.close:
					return
				}
			}
			tasks = tasks[:0]
		case <-t.close:
			return
		}
	}
}

// Put schedules f to run at deadline and returns a handle that can cancel
// it beforehand.
func (t *Timer) Put(f func(), deadline time.Time) TimerHandle {
	cancelled := new(bool)
	var mu sync.Mutex
	wrapped := func() {
		mu.Lock()
		c := *cancelled
		mu.Unlock()
		if !c {
			f()
		}
	}

	t.prependLock.Lock()
	t.prependTasks = append(t.prependTasks, timedFunc{execute: wrapped, ts: deadline})
	t.prependLock.Unlock()

	select {
	case t.chPrependNotify <- struct{}{}:
	default:
	}

	return TimerHandle{cancelled: cancelled, mu: &mu}
}

// Close shuts down the timer and all its worker goroutines. Safe to call
// more than once.
func (t *Timer) Close() {
	t.closeOnce.Do(func() {
		close(t.close)
	})
}
