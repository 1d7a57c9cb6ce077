package interp

import (
	"bytes"
	"testing"
	"time"

	"github.com/prefix-dev/shell/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// stubCancelable records the last signal RequestCancel forwarded to it,
// standing in for a procPipeline so the Env-level bookkeeping can be tested
// without spawning a real process.
type stubCancelable struct {
	got unix.Signal
}

func (s *stubCancelable) signal(sig unix.Signal) error {
	s.got = sig
	return nil
}

func TestRequestCancelForwardsSignalToRunning(t *testing.T) {
	env := newTestEnv()
	stub := &stubCancelable{}
	env.setRunning(stub)

	env.RequestCancel(unix.SIGINT)

	assert.Equal(t, unix.SIGINT, stub.got)
	assert.True(t, env.Canceled())
	assert.Equal(t, 130, env.ExitStatus())
}

func TestRequestCancelWithNothingRunningStillMarksCanceled(t *testing.T) {
	env := newTestEnv()
	env.RequestCancel(unix.SIGINT)
	assert.True(t, env.Canceled())
	assert.Equal(t, 130, env.ExitStatus())
}

func TestClearRunningOnlyClearsCurrentOccupant(t *testing.T) {
	env := newTestEnv()
	first := &stubCancelable{}
	second := &stubCancelable{}
	env.setRunning(first)
	env.setRunning(second)
	env.clearRunning(first) // stale: second has already taken over

	env.RequestCancel(unix.SIGINT)
	assert.Equal(t, unix.SIGINT, second.got)
}

func TestResetCancelClearsStickyFlag(t *testing.T) {
	env := newTestEnv()
	env.RequestCancel(unix.SIGINT)
	require.True(t, env.Canceled())

	env.ResetCancel()
	assert.False(t, env.Canceled())
}

// TestExecListAbandonsRemainingCommandsOnCancel covers spec.md §5's
// "abandon the rest of the current CompleteCommand": once canceled, a
// sequence of `;`-separated commands stops running further ones instead of
// continuing past the interrupted one.
func TestExecListAbandonsRemainingCommandsOnCancel(t *testing.T) {
	env := newTestEnv()
	InstallExecutor(env)
	out := &bytes.Buffer{}
	env.SetStdout(out)

	cc, err := parser.Parse("echo one; echo two; echo three")
	require.NoError(t, err)

	env.RequestCancel(unix.SIGINT)
	status, sig := execList(env, cc)
	require.Nil(t, sig)

	assert.Equal(t, 130, status)
	assert.Equal(t, "", out.String())
}

// TestExecForAbandonsRemainingIterationsOnCancel covers the same
// abandonment for a `for` loop: once canceled, the loop runs no further
// iterations rather than running out the remaining words.
func TestExecForAbandonsRemainingIterationsOnCancel(t *testing.T) {
	env := newTestEnv()
	InstallExecutor(env)
	out := &bytes.Buffer{}
	env.SetStdout(out)

	cc, err := parser.Parse("for x in a b c; do echo $x; if [ $x = a ]; then :; fi; done")
	require.NoError(t, err)
	fc := cc.Items[0].AndOr.Pipelines[0].Commands[0].(*parser.CompoundCommand).Body.(parser.ForClause)

	env.RequestCancel(unix.SIGINT)
	status, sig := execFor(env, fc)
	require.Nil(t, sig)

	assert.Equal(t, 130, status)
	assert.Equal(t, "", out.String())
}

// TestExecutionCancelEndToEnd drives Execute with a real external pipeline
// (spec.md §5 "Cancellation" in full): a blocked `sleep` gets SIGINT
// forwarded by RequestCancel, the child dies, and $? ends up 130 — the
// same path cmd/shell's Run wires through its sigChan.
func TestExecutionCancelEndToEnd(t *testing.T) {
	env := newRealFsEnv()
	env.SetStdout(&bytes.Buffer{})
	env.SetStderr(&bytes.Buffer{})
	InstallExecutor(env)

	cc, err := parser.Parse("sleep 5; echo should-not-run")
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		status, execErr := Execute(env, cc)
		require.NoError(t, execErr)
		done <- status
	}()

	time.Sleep(150 * time.Millisecond)
	env.RequestCancel(unix.SIGINT)

	select {
	case status := <-done:
		assert.Equal(t, 130, status)
	case <-time.After(3 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}
