package sched_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cwsl/sdranalyzer/internal/sched"
)

func TestBarrierReleasesAllParticipantsTogether(t *testing.T) {
	const n = 4
	b := sched.NewBarrier(n)

	var wg sync.WaitGroup
	released := make(chan int, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			b.Wait()
			released <- id
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("barrier did not release all participants")
	}
	assert.Len(t, released, n)
}

func TestBarrierIsReusableAcrossCycles(t *testing.T) {
	const n = 3
	b := sched.NewBarrier(n)

	for cycle := 0; cycle < 3; cycle++ {
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				b.Wait()
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d: barrier did not release", cycle)
		}
	}
}
