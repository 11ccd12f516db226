package refresh

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRefresherRunsJobs(t *testing.T) {
	var mu sync.Mutex
	done := make(map[string]int)
	var wg sync.WaitGroup
	wg.Add(2)

	r := New(8, 2, func(ctx context.Context, j Job) {
		mu.Lock()
		done[j.PropertyID]++
		mu.Unlock()
		wg.Done()
	})
	r.Enqueue(Job{PropertyID: "1025"})
	r.Enqueue(Job{PropertyID: "2050"})

	waitDone(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	if done["1025"] != 1 || done["2050"] != 1 {
		t.Errorf("jobs ran %v, want each once", done)
	}
}

func TestRefresherDedupesInFlight(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	runs := 0

	r := New(8, 1, func(ctx context.Context, j Job) {
		mu.Lock()
		runs++
		mu.Unlock()
		<-release
	})
	r.Enqueue(Job{PropertyID: "1025"})
	// wait for the worker to pick it up, then enqueue duplicates
	time.Sleep(50 * time.Millisecond)
	r.Enqueue(Job{PropertyID: "1025"})
	r.Enqueue(Job{PropertyID: "1025"})
	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("job ran %d times, want 1 (duplicates dropped while in flight)", runs)
	}
}

func waitDone(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not finish in time")
	}
}
