package interp

import (
	"bytes"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newRealFsEnv builds an Env backed by the real OS filesystem, since
// external-command dispatch (runExternal/buildPipeline) resolves $PATH
// entries against env.Fs and then actually execs them — a MemMapFs entry
// has nothing for os/exec to run.
func newRealFsEnv() *Env {
	env := NewEnv()
	env.Fs = afero.NewOsFs()
	env.Setenv("PATH", "/bin:/usr/bin")
	return env
}

func TestRunExternalCapturesExitStatus(t *testing.T) {
	env := newRealFsEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	env.SetStderr(&bytes.Buffer{})
	env.SetStdin(bytes.NewReader(nil))

	status := runExternal(env, []string{"echo", "hi"}, nil)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hi\n", out.String())
}

func TestRunExternalNonzeroStatus(t *testing.T) {
	env := newRealFsEnv()
	env.SetStdout(&bytes.Buffer{})
	env.SetStderr(&bytes.Buffer{})
	env.SetStdin(bytes.NewReader(nil))

	status := runExternal(env, []string{"false"}, nil)
	assert.Equal(t, 1, status)
}

func TestRunExternalCommandNotFound(t *testing.T) {
	env := newRealFsEnv()
	env.SetStdout(&bytes.Buffer{})
	env.SetStderr(&bytes.Buffer{})
	env.SetStdin(bytes.NewReader(nil))

	status := runExternal(env, []string{"this-command-does-not-exist"}, nil)
	assert.Equal(t, 127, status)
}

func TestBuildPipelineWiresStdoutToNextStdin(t *testing.T) {
	env := newRealFsEnv()
	env.SetStdin(bytes.NewReader(nil))
	out := &bytes.Buffer{}
	env.SetStdout(out)
	env.SetStderr(&bytes.Buffer{})

	pp, err := buildPipeline([][]string{{"echo", "hello"}, {"cat"}}, []bool{false}, env)
	require.NoError(t, err)
	status, err := pp.run()
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello\n", out.String())
}

func TestExitStatusOfNilIsZero(t *testing.T) {
	assert.Equal(t, 0, exitStatusOf(nil))
}

func TestExitStatusOfExitError(t *testing.T) {
	cmd := exec.Command("/bin/false")
	err := cmd.Run()
	assert.Equal(t, 1, exitStatusOf(err))
}

// TestExitStatusOfSignaledChild covers spec.md §3/§6's `128+signum`
// convention: a child killed by a signal reports 128+signal, not the -1
// ExitCode() alone would give.
func TestExitStatusOfSignaledChild(t *testing.T) {
	cases := []struct {
		name string
		sig  syscall.Signal
		want int
	}{
		{"SIGTERM", syscall.SIGTERM, 128 + 15},
		{"SIGINT", syscall.SIGINT, 128 + 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := exec.Command("sleep", "5")
			require.NoError(t, cmd.Start())
			require.NoError(t, cmd.Process.Signal(tc.sig))
			err := cmd.Wait()
			assert.Equal(t, tc.want, exitStatusOf(err))
		})
	}
}

// TestRunExternalReflectsCancelStatus covers the runExternal half of
// spec.md §5's cancellation: a SIGINT delivered via Env.RequestCancel while
// a child is blocked in Wait kills the child and the $? RequestCancel set
// (130) wins over whatever exitStatusOf would have computed on its own.
func TestRunExternalReflectsCancelStatus(t *testing.T) {
	env := newRealFsEnv()
	env.SetStdout(&bytes.Buffer{})
	env.SetStderr(&bytes.Buffer{})
	env.SetStdin(bytes.NewReader(nil))

	done := make(chan int, 1)
	go func() {
		done <- runExternal(env, []string{"sleep", "5"}, nil)
	}()

	time.Sleep(100 * time.Millisecond)
	env.RequestCancel(unix.SIGINT)

	select {
	case status := <-done:
		assert.Equal(t, 130, status)
	case <-time.After(3 * time.Second):
		t.Fatal("runExternal did not return after cancellation")
	}
}
