package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell() (*Shell, *bytes.Buffer, *bytes.Buffer) {
	s := NewShell()
	var out, errOut bytes.Buffer
	s.Env.SetStdout(&out)
	s.Env.SetStderr(&errOut)
	s.Stdout = &out
	s.Stderr = &errOut
	return s, &out, &errOut
}

func TestExecuteStringEchoesOutput(t *testing.T) {
	s, out, _ := newTestShell()
	status, err := s.ExecuteString("echo hello world")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello world\n", out.String())
}

func TestExecuteStringExitStatusPropagates(t *testing.T) {
	s, _, _ := newTestShell()
	status, err := s.ExecuteString("false")
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestExecuteStringAndOr(t *testing.T) {
	s, out, _ := newTestShell()
	status, err := s.ExecuteString("true && echo ok || echo bad")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "ok\n", out.String())
}

func TestExecuteStringSurfacesParseError(t *testing.T) {
	s, _, _ := newTestShell()
	_, err := s.ExecuteString("if true; then")
	assert.Error(t, err)
}

func TestRunNonInteractiveDrainsStdin(t *testing.T) {
	s, out, _ := newTestShell()
	s.Stdin = bytes.NewBufferString("echo one\necho two\n")
	s.Env.SetStdin(bytes.NewBufferString(""))
	s.Interactive = false
	err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out.String())
}

// TestExecuteInterruptibleAbortsOnSigint drives the same sigChan-select
// loop Run uses: a SIGINT arriving while a command is blocked must stop it
// and leave $? at 130, without waiting for the command to finish on its
// own (spec.md §5 "Cancellation").
func TestExecuteInterruptibleAbortsOnSigint(t *testing.T) {
	s, _, _ := newTestShell()
	s.Env.SetStdin(bytes.NewBufferString(""))

	sigChan := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.executeInterruptible("sleep 5; echo should-not-run", sigChan)
	}()

	time.Sleep(150 * time.Millisecond)
	sigChan <- os.Interrupt

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, 130, s.Env.ExitStatus())
	case <-time.After(3 * time.Second):
		t.Fatal("executeInterruptible did not return after SIGINT")
	}
}
