package sched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/mq"
	"github.com/cwsl/sdranalyzer/internal/sched"
	"github.com/cwsl/sdranalyzer/internal/source"
)

// countingInspector records every bulk it is fed.
type countingInspector struct {
	feeds int
}

func (c *countingInspector) Feed(data []source.Sample) (any, error) {
	c.feeds++
	return c.feeds, nil
}
func (c *countingInspector) SetConfig(cfg inspector.Config) error { return nil }
func (c *countingInspector) Close() error                         { return nil }

func waitForResult(t *testing.T, out *mq.Queue) mq.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := out.Poll(); ok {
			return msg
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for a message on the output queue")
	return mq.Message{}
}

func TestBarrierWidthEqualsWorkersPlusOne(t *testing.T) {
	out := mq.New()
	s := sched.New(3, out)
	assert.Equal(t, 3, s.NumWorkers())
	assert.Equal(t, 4, s.BarrierWidth())
}

func TestBindTransitionsInspectorToRunning(t *testing.T) {
	out := mq.New()
	s := sched.New(1, out)
	impl := &countingInspector{}
	inst := inspector.NewInstance(1, impl)

	require.NoError(t, s.Bind(1, inst))
	assert.Equal(t, inspector.StateRunning, inst.State())
	assert.Equal(t, 1, s.NumTasks())
}

func TestFeedRunsBoundInspectorAndPostsResult(t *testing.T) {
	out := mq.New()
	s := sched.New(1, out)
	impl := &countingInspector{}
	inst := inspector.NewInstance(7, impl)
	require.NoError(t, s.Bind(7, inst))

	require.NoError(t, s.Feed(7, []source.Sample{1, 2, 3}))

	msg := waitForResult(t, out)
	assert.Equal(t, sched.KindResult, msg.Kind)
	res := msg.Payload.(sched.Result)
	assert.Equal(t, 7, res.Handle)
	assert.Equal(t, 1, res.Payload)
}

func TestFeedUnbindsWhenInspectorNotRunning(t *testing.T) {
	out := mq.New()
	s := sched.New(1, out)
	impl := &countingInspector{}
	inst := inspector.NewInstance(2, impl)
	require.NoError(t, s.Bind(2, inst))
	inst.Halt()

	require.NoError(t, s.Feed(2, []source.Sample{1}))

	deadline := time.Now().Add(2 * time.Second)
	for s.NumTasks() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, s.NumTasks())
	assert.Equal(t, 0, impl.feeds)
}

func TestFeedUnknownHandleReturnsError(t *testing.T) {
	out := mq.New()
	s := sched.New(1, out)
	assert.ErrorIs(t, s.Feed(99, nil), sched.ErrNotBound)
}
