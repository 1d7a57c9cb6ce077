package interp

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiEchoJoinsArgsWithNewline(t *testing.T) {
	env := newTestEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	status := biEcho(env, []string{"echo", "a", "b"})
	assert.Equal(t, 0, status)
	assert.Equal(t, "a b\n", out.String())
}

func TestBiEchoDashN(t *testing.T) {
	env := newTestEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	biEcho(env, []string{"echo", "-n", "a"})
	assert.Equal(t, "a", out.String())
}

func TestBiExportMarksExported(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "bar")
	status := biExport(env, []string{"export", "FOO"})
	assert.Equal(t, 0, status)
	assert.Contains(t, env.ExportedEnviron(), "FOO=bar")
}

func TestBiExportWithAssignment(t *testing.T) {
	env := newTestEnv()
	biExport(env, []string{"export", "FOO=baz"})
	v, ok := env.Getenv("FOO")
	require.True(t, ok)
	assert.Equal(t, "baz", v)
	assert.Contains(t, env.ExportedEnviron(), "FOO=baz")
}

func TestBiUnsetVariable(t *testing.T) {
	env := newTestEnv()
	env.Setenv("FOO", "bar")
	biUnset(env, []string{"unset", "FOO"})
	_, ok := env.Getenv("FOO")
	assert.False(t, ok)
}

func TestBiUnsetFunction(t *testing.T) {
	env := newTestEnv()
	env.DefineFunc("f", &CompoundFunc{Run: func(*Env, []string) (int, error) { return 0, nil }})
	biUnset(env, []string{"unset", "-f", "f"})
	_, ok := env.LookupFunc("f")
	assert.False(t, ok)
}

func TestBiCdChangesPWD(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.Fs.MkdirAll("/home/me/sub", 0755))
	env.Setenv("PWD", "/home/me")
	env.Setenv("HOME", "/home/me")

	status := biCd(env, []string{"cd", "sub"})
	assert.Equal(t, 0, status)
	pwd, _ := env.Getenv("PWD")
	assert.Equal(t, "/home/me/sub", pwd)
}

func TestBiCdNoSuchDirectory(t *testing.T) {
	env := newTestEnv()
	env.Setenv("PWD", "/")
	status := biCd(env, []string{"cd", "/nope"})
	assert.Equal(t, 1, status)
}

func TestBiCdDashGoesToOldpwd(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.Fs.MkdirAll("/a", 0755))
	require.NoError(t, env.Fs.MkdirAll("/b", 0755))
	env.Setenv("PWD", "/a")
	env.Setenv("OLDPWD", "/b")
	status := biCd(env, []string{"cd", "-"})
	assert.Equal(t, 0, status)
	pwd, _ := env.Getenv("PWD")
	assert.Equal(t, "/b", pwd)
}

func TestBiBreakSetsPending(t *testing.T) {
	env := newTestEnv()
	biBreak(env, []string{"break", "2"})
	sig, ok := env.pending.(*builtinSignal)
	require.True(t, ok)
	assert.Equal(t, cfBreak, sig.cf.kind)
	assert.Equal(t, 2, sig.cf.n)
}

func TestBiReturnSetsPendingAndStatus(t *testing.T) {
	env := newTestEnv()
	status := biReturn(env, []string{"return", "7"})
	assert.Equal(t, 7, status)
	sig, ok := env.pending.(*builtinSignal)
	require.True(t, ok)
	assert.Equal(t, cfReturn, sig.cf.kind)
	assert.Equal(t, 7, sig.cf.code)
}

func TestBiTrueFalse(t *testing.T) {
	env := newTestEnv()
	assert.Equal(t, 0, biTrue(env, nil))
	assert.Equal(t, 1, biFalse(env, nil))
}

func TestBiTestBracketRequiresClosingBracket(t *testing.T) {
	env := newTestEnv()
	status := biTestBracket(env, []string{"[", "-n", "x"})
	assert.Equal(t, 2, status)
}

func TestBiTestBracketEvaluates(t *testing.T) {
	env := newTestEnv()
	status := biTestBracket(env, []string{"[", "-n", "x", "]"})
	assert.Equal(t, 0, status)
}

func TestBiWhichReportsBuiltinAndFunctionAndPath(t *testing.T) {
	env := newTestEnv()
	env.Fs = afero.NewMemMapFs()
	require.NoError(t, env.Fs.MkdirAll("/bin", 0755))
	require.NoError(t, afero.WriteFile(env.Fs, "/bin/ls", []byte(""), 0755))
	env.Setenv("PATH", "/bin")
	env.DefineFunc("myfunc", &CompoundFunc{Run: func(*Env, []string) (int, error) { return 0, nil }})

	out := &bytes.Buffer{}
	env.SetStdout(out)
	status := biWhich(env, []string{"which", "echo", "myfunc", "ls"})
	assert.Equal(t, 0, status)
	assert.Contains(t, out.String(), "shell built-in command")
	assert.Contains(t, out.String(), "shell function")
	assert.Contains(t, out.String(), "/bin/ls")
}

func TestBiShiftDropsPositionals(t *testing.T) {
	env := newTestEnv()
	env.SetPositional("script", []string{"a", "b", "c"})
	status := biShift(env, []string{"shift"})
	assert.Equal(t, 0, status)
	_, args := env.Positional()
	assert.Equal(t, []string{"b", "c"}, args)
}

func TestBiPrintfBasicDirectives(t *testing.T) {
	env := newTestEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	status := biPrintf(env, []string{"printf", "%s=%d\\n", "x", "5"})
	assert.Equal(t, 0, status)
	assert.Equal(t, "x=5\n", out.String())
}

func TestBiPrintfCyclesFormatOverExtraArgs(t *testing.T) {
	env := newTestEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	biPrintf(env, []string{"printf", "%s\\n", "a", "b", "c"})
	assert.Equal(t, "a\nb\nc\n", out.String())
}

func TestBiWaitBlocksUntilAllTrackedDone(t *testing.T) {
	env := newTestEnv()
	done := make(chan int, 1)
	done <- 5
	env.bg.trackFunc(func() int { return <-done })
	status := biWait(env, []string{"wait"})
	assert.Equal(t, 5, status)
}

func TestLookupPathResolvesAgainstPATH(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.Fs.MkdirAll("/usr/bin", 0755))
	require.NoError(t, afero.WriteFile(env.Fs, "/usr/bin/grep", []byte(""), 0755))
	env.Setenv("PATH", "/nope:/usr/bin")

	path, ok := lookupPath(env, "grep")
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/grep", path)

	_, ok = lookupPath(env, "missing")
	assert.False(t, ok)
}
