package inspector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/sdranalyzer/internal/inspector"
)

func TestBindTransitionsInitToRunning(t *testing.T) {
	inst := inspector.NewInstance(0, inspector.NewAudioInspector(inspector.DemodAM, 8000, 1))
	assert.Equal(t, inspector.StateInit, inst.State())

	require.NoError(t, inst.Bind())
	assert.Equal(t, inspector.StateRunning, inst.State())
}

func TestBindTwiceFails(t *testing.T) {
	inst := inspector.NewInstance(0, inspector.NewAudioInspector(inspector.DemodAM, 8000, 1))
	require.NoError(t, inst.Bind())
	assert.ErrorIs(t, inst.Bind(), inspector.ErrAlreadyBound)
}

func TestHaltFromAnyState(t *testing.T) {
	inst := inspector.NewInstance(0, inspector.NewAudioInspector(inspector.DemodAM, 8000, 1))
	inst.Halt()
	assert.Equal(t, inspector.StateHalted, inst.State())
}

func TestUserDataSlotHoldsAtMostOneRequest(t *testing.T) {
	inst := inspector.NewInstance(0, inspector.NewAudioInspector(inspector.DemodAM, 8000, 1))
	assert.Nil(t, inst.UserData())

	inst.SetUserData("first")
	assert.Equal(t, "first", inst.UserData())

	inst.SetUserData("second")
	assert.Equal(t, "second", inst.UserData())

	inst.ClearUserData()
	assert.Nil(t, inst.UserData())
}
