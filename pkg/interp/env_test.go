package interp

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv() *Env {
	env := NewEnv()
	env.Fs = afero.NewMemMapFs()
	env.SetStdout(&bytes.Buffer{})
	env.SetStderr(&bytes.Buffer{})
	return env
}

func TestSetenvGetenv(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "bar")
	v, ok := env.Getenv("FOO")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestSetenvMutatesEnclosingFrame(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "global")
	env.PushFuncFrame("f", nil)
	env.Setenv("FOO", "local")
	v, _ := env.Getenv("FOO")
	assert.Equal(t, "local", v)
	env.PopFrame()
	v, _ = env.Getenv("FOO")
	assert.Equal(t, "local", v, "Setenv mutates the nearest frame already defining the name")
}

func TestSetLocalToFrameDoesNotLeakToParent(t *testing.T) {
	env := newTestEnv()
	env.PushFuncFrame("f", nil)
	env.SetLocalToFrame("ONLY_LOCAL", "x")
	_, ok := env.Getenv("ONLY_LOCAL")
	assert.True(t, ok)
	env.PopFrame()
	_, ok = env.Getenv("ONLY_LOCAL")
	assert.False(t, ok)
}

func TestExportAndExportedEnviron(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "bar")
	env.Export("FOO")
	environ := env.ExportedEnviron()
	assert.Contains(t, environ, "FOO=bar")
}

func TestUnsetRemovesFromAllFrames(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "bar")
	env.Unset("FOO")
	_, ok := env.Getenv("FOO")
	assert.False(t, ok)
}

func TestPositionalAndShift(t *testing.T) {
	env := newTestEnv()
	env.SetPositional("script", []string{"a", "b", "c"})
	arg0, args := env.Positional()
	assert.Equal(t, "script", arg0)
	assert.Equal(t, []string{"a", "b", "c"}, args)

	require.NoError(t, env.Shift(2))
	_, args = env.Positional()
	assert.Equal(t, []string{"c"}, args)
}

func TestShiftPastEndClearsPositionals(t *testing.T) {
	env := newTestEnv()
	env.SetPositional("script", []string{"a"})
	require.NoError(t, env.Shift(5))
	_, args := env.Positional()
	assert.Empty(t, args)
}

func TestCloneForSubshellIsolatesVariables(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "parent")
	clone := env.CloneForSubshell()
	clone.Setenv("FOO", "child")

	v, _ := env.Getenv("FOO")
	assert.Equal(t, "parent", v, "parent env must not see subshell mutations")

	v, _ = clone.Getenv("FOO")
	assert.Equal(t, "child", v)
}

func TestDefineFuncAndLookupFunc(t *testing.T) {
	env := newTestEnv()
	env.DefineFunc("greet", &CompoundFunc{Run: func(e *Env, args []string) (int, error) {
		return 0, nil
	}})
	fn, ok := env.LookupFunc("greet")
	require.True(t, ok)
	status, err := fn.Run(env, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExitStatusMasksToByte(t *testing.T) {
	env := newTestEnv()
	env.SetExitStatus(300)
	assert.Equal(t, 300&0xff, env.ExitStatus())
}

func TestIFSDefaultsAndReadsVariable(t *testing.T) {
	env := newTestEnv()
	assert.Equal(t, " \t\n", env.IFS())
	env.Setenv("IFS", ":")
	assert.Equal(t, ":", env.IFS())
}
