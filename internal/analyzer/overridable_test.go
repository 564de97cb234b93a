package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/inspector"
	"github.com/cwsl/sdranalyzer/internal/source"
)

type noopInspector struct{}

func (noopInspector) Feed(data []source.Sample) (any, error) { return nil, nil }
func (noopInspector) SetConfig(cfg inspector.Config) error    { return nil }
func (noopInspector) Close() error                            { return nil }

// TestOverridableRequestsCoalesce exercises the coalesced-overridable
// scenario directly against the inspector-list/overridable machinery,
// bypassing the synchronous public wrappers (each of which blocks for a
// reply and so cannot race two requests against each other on purpose):
// three back-to-back frequency/bandwidth changes on the same handle,
// with no drain in between, must collapse into a single pending
// request carrying the most recent value of each field.
func TestOverridableRequestsCoalesce(t *testing.T) {
	a := &Analyzer{}
	inst := inspector.NewInstance(0, noopInspector{})
	require.NoError(t, inst.Bind())
	a.inspectors = []*inspector.Instance{inst}

	require.NoError(t, a.setInspectorOverridable(0, true, 1000, false, 0))
	require.NoError(t, a.setInspectorOverridable(0, false, 0, true, 4000))
	require.NoError(t, a.setInspectorOverridable(0, true, 2000, false, 0))

	assert.Len(t, a.overridables, 1)

	req := a.drainOverridable(0)
	require.NotNil(t, req)
	assert.True(t, req.HasFreq)
	assert.Equal(t, 2000.0, req.Freq)
	assert.True(t, req.HasBW)
	assert.Equal(t, 4000.0, req.BW)

	assert.Len(t, a.overridables, 0)
}

// TestAcquireOverridableRejectsBadHandle covers the protocol-violation
// path: a handle that was never opened must not allocate a pending
// request.
func TestAcquireOverridableRejectsBadHandle(t *testing.T) {
	a := &Analyzer{}
	_, err := a.acquireOverridable(3)
	assert.ErrorIs(t, err, ErrBadHandle)
}

// TestAcquireOverridableRejectsNotRunning covers an inspector that
// exists but has already transitioned out of RUNNING (e.g. closed
// concurrently).
func TestAcquireOverridableRejectsNotRunning(t *testing.T) {
	a := &Analyzer{}
	inst := inspector.NewInstance(0, noopInspector{})
	inst.Halt()
	a.inspectors = []*inspector.Instance{inst}

	_, err := a.acquireOverridable(0)
	assert.ErrorIs(t, err, ErrNotRunning)
}

// TestFreeOverridablesClearsList mirrors teardown step 6.
func TestFreeOverridablesClearsList(t *testing.T) {
	a := &Analyzer{}
	inst := inspector.NewInstance(0, noopInspector{})
	require.NoError(t, inst.Bind())
	a.inspectors = []*inspector.Instance{inst}

	require.NoError(t, a.setInspectorOverridable(0, true, 1000, false, 0))
	assert.Len(t, a.overridables, 1)

	a.freeOverridables()
	assert.Len(t, a.overridables, 0)
}
