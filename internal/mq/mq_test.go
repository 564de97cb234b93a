package mq_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/mq"
)

const (
	kindData mq.Kind = iota
	kindHalt
)

func TestFIFOOrdering(t *testing.T) {
	q := mq.New()
	q.Write(kindData, 1)
	q.Write(kindData, 2)
	q.Write(kindData, 3)

	for _, want := range []int{1, 2, 3} {
		msg, ok := q.Poll()
		require.True(t, ok)
		assert.Equal(t, want, msg.Payload)
	}
}

// TestUrgentJumpsQueue exercises the spec's testable property: an urgent
// HALT followed by any number of non-urgent writes must be the first
// message a reader observes.
func TestUrgentJumpsQueue(t *testing.T) {
	q := mq.New()
	q.Write(kindData, "first")
	q.Write(kindData, "second")
	q.WriteUrgent(kindHalt, nil)
	q.Write(kindData, "third")

	msg, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, kindHalt, msg.Kind)
}

func TestReadBlocksUntilWrite(t *testing.T) {
	q := mq.New()

	var wg sync.WaitGroup
	wg.Add(1)

	var got mq.Message
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = q.Read()
	}()

	time.Sleep(20 * time.Millisecond)
	q.Write(kindData, "payload")
	wg.Wait()

	require.True(t, ok)
	assert.Equal(t, "payload", got.Payload)
}

func TestCloseWakesBlockedReaders(t *testing.T) {
	q := mq.New()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Read()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Read did not wake up after Close")
	}
}

func TestFinalizeDisposesPending(t *testing.T) {
	q := mq.New()
	q.Write(kindData, "a")
	q.Write(kindData, "b")

	var disposed []any
	q.Finalize(func(kind mq.Kind, payload any) {
		disposed = append(disposed, payload)
	})

	assert.Equal(t, []any{"a", "b"}, disposed)
	assert.Equal(t, 0, q.Len())
}
