package queue

import (
	"sync"
	"testing"

	"github.com/me/schedpol/pkg/model"
)

func TestPushPopOrder(t *testing.T) {
	q := New()
	for i := 1; i <= 5; i++ {
		q.Push(Entry{Task: model.TaskID(i), SliceNS: uint64(i * 100)})
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}
	for i := 1; i <= 5; i++ {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		if e.Task != model.TaskID(i) {
			t.Errorf("Pop %d: got task %d", i, e.Task)
		}
		if e.SliceNS != uint64(i*100) {
			t.Errorf("Pop %d: slice = %d, want %d", i, e.SliceNS, i*100)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue returned ok")
	}
	if got := q.Len(); got != 0 {
		t.Fatalf("Len after drain = %d, want 0", got)
	}
}

func TestSliceTravelsWithEntry(t *testing.T) {
	q := New()
	q.Push(Entry{Task: 7, SliceNS: 50_000_000})
	q.Push(Entry{Task: 8, SliceNS: 200_000_000})

	e, _ := q.Pop()
	if e.SliceNS != 50_000_000 {
		t.Errorf("first entry slice = %d, want 50ms", e.SliceNS)
	}
	e, _ = q.Pop()
	if e.SliceNS != 200_000_000 {
		t.Errorf("second entry slice = %d, want 200ms", e.SliceNS)
	}
}

// With concurrent producers and a single consumer, each producer's entries
// must come out in the order that producer pushed them.
func TestPerProducerOrder(t *testing.T) {
	const (
		producers = 8
		perProd   = 500
	)
	q := New()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				// Encode producer and sequence in the task id.
				q.Push(Entry{Task: model.TaskID(p*perProd + i)})
			}
		}(p)
	}
	wg.Wait()

	lastSeq := make([]int, producers)
	for i := range lastSeq {
		lastSeq[i] = -1
	}
	popped := 0
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		popped++
		p := int(e.Task) / perProd
		seq := int(e.Task) % perProd
		if seq <= lastSeq[p] {
			t.Fatalf("producer %d: seq %d popped after %d", p, seq, lastSeq[p])
		}
		lastSeq[p] = seq
	}
	if popped != producers*perProd {
		t.Fatalf("popped %d entries, want %d", popped, producers*perProd)
	}
}

// Concurrent producers and consumers must neither lose nor duplicate entries.
func TestConcurrentPushPop(t *testing.T) {
	const (
		producers = 8
		consumers = 4
		perProd   = 1000
	)
	q := New()

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(p int) {
			defer pwg.Done()
			for i := 0; i < perProd; i++ {
				q.Push(Entry{Task: model.TaskID(p*perProd + i)})
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make(map[model.TaskID]bool, producers*perProd)
	done := make(chan struct{})

	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				e, ok := q.Pop()
				if !ok {
					select {
					case <-done:
						// Producers finished; one more look before exit.
						if e, ok := q.Pop(); ok {
							record(t, &mu, seen, e.Task)
							continue
						}
						return
					default:
						continue
					}
				}
				record(t, &mu, seen, e.Task)
			}
		}()
	}

	pwg.Wait()
	close(done)
	cwg.Wait()

	if len(seen) != producers*perProd {
		t.Fatalf("popped %d entries, want %d", len(seen), producers*perProd)
	}
}

func record(t *testing.T, mu *sync.Mutex, seen map[model.TaskID]bool, id model.TaskID) {
	t.Helper()
	mu.Lock()
	defer mu.Unlock()
	if seen[id] {
		t.Errorf("task %d popped twice", id)
	}
	seen[id] = true
}
