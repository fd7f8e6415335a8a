package jobs_test

import (
	"fmt"
	"sync"
	"testing"

	"snag/internal/jobs"
)

type fakeHandle struct{ pid int }

func (f fakeHandle) Pid() int { return f.pid }

func TestRegistryLifecycle(t *testing.T) {
	reg := jobs.NewRegistry()
	reg.Register("a", fakeHandle{pid: 100})

	h, ok := reg.Get("a")
	if !ok || h.Pid() != 100 {
		t.Fatalf("Get = %v, %v", h, ok)
	}
	if !reg.Unregister("a") {
		t.Fatal("expected Unregister to find the job")
	}
	if reg.Unregister("a") {
		t.Fatal("second Unregister must report absence")
	}
	if _, ok := reg.Get("a"); ok {
		t.Fatal("job should be gone after Unregister")
	}
}

func TestConsumeCanceledClearsMark(t *testing.T) {
	reg := jobs.NewRegistry()
	reg.MarkCanceled("a")

	if !reg.ConsumeCanceled("a") {
		t.Fatal("expected cancel mark")
	}
	if reg.ConsumeCanceled("a") {
		t.Fatal("cancel mark must be consumed exactly once")
	}
	if reg.ConsumeCanceled("never-marked") {
		t.Fatal("unknown id must not appear canceled")
	}
}

func TestRegistryConcurrentDistinctIDs(t *testing.T) {
	reg := jobs.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", n)
			reg.Register(id, fakeHandle{pid: n})
			if _, ok := reg.Get(id); !ok {
				t.Errorf("job %s missing after Register", id)
			}
			reg.Unregister(id)
		}(i)
	}
	wg.Wait()
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d live jobs", reg.Len())
	}
}
