package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSMHappyPathLifecycle(t *testing.T) {
	f := newFSM()
	require.Equal(t, StateIdle, f.state)
	require.NoError(t, f.transition(StateRunning))
	require.NoError(t, f.transition(StatePaused))
	require.NoError(t, f.transition(StateRunning))
	require.NoError(t, f.transition(StateFinalizing))
	require.NoError(t, f.transition(StateClosed))
}

func TestFSMRejectsIllegalTransition(t *testing.T) {
	f := newFSM()
	err := f.transition(StateFinalizing)
	require.Error(t, err)
	require.Equal(t, StateIdle, f.state)
}

func TestFSMTerminalStatesRejectEverything(t *testing.T) {
	f := newFSM()
	require.NoError(t, f.transition(StateRunning))
	require.NoError(t, f.transition(StateFinalizing))
	require.NoError(t, f.transition(StateClosed))
	require.Error(t, f.transition(StateRunning))
}

func TestFSMFatalErrorFromRunningOrPaused(t *testing.T) {
	f := newFSM()
	require.NoError(t, f.transition(StateRunning))
	require.NoError(t, f.transition(StateFailed))

	g := newFSM()
	require.NoError(t, g.transition(StateRunning))
	require.NoError(t, g.transition(StatePaused))
	require.NoError(t, g.transition(StateFailed))
}
