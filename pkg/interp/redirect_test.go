package interp

import (
	"bytes"
	"testing"

	"github.com/prefix-dev/shell/pkg/parser"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawWord(s string) *parser.Word { return &parser.Word{Raw: s} }

func TestApplyRedirectsRedirOutWritesToFile(t *testing.T) {
	env := newTestEnv()
	redirs := []*parser.Redirect{{Op: parser.RedirOut, Target: rawWord("/out.txt")}}

	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	env.Stdout().Write([]byte("hello"))
	restore()

	data, err := afero.ReadFile(env.Fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestApplyRedirectsRestoresPreviousStdout(t *testing.T) {
	env := newTestEnv()
	original := &bytes.Buffer{}
	env.SetStdout(original)

	redirs := []*parser.Redirect{{Op: parser.RedirOut, Target: rawWord("/out.txt")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	assert.NotEqual(t, original, env.Stdout())
	restore()
	assert.Equal(t, original, env.Stdout())
}

func TestApplyRedirectsAppendAddsToExistingFile(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, afero.WriteFile(env.Fs, "/out.txt", []byte("first\n"), 0644))

	redirs := []*parser.Redirect{{Op: parser.RedirAppend, Target: rawWord("/out.txt")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	env.Stdout().Write([]byte("second\n"))
	restore()

	data, err := afero.ReadFile(env.Fs, "/out.txt")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestApplyRedirectsRedirInReadsFromFile(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, afero.WriteFile(env.Fs, "/in.txt", []byte("content"), 0644))

	redirs := []*parser.Redirect{{Op: parser.RedirIn, Target: rawWord("/in.txt")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	defer restore()

	buf := make([]byte, 7)
	n, err := env.Stdin().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf[:n]))
}

func TestApplyRedirectsBothOutJoinsStdoutAndStderr(t *testing.T) {
	env := newTestEnv()
	redirs := []*parser.Redirect{{Op: parser.RedirBothOut, Target: rawWord("/both.txt")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	env.Stdout().Write([]byte("out"))
	env.Stderr().Write([]byte("err"))
	restore()

	data, err := afero.ReadFile(env.Fs, "/both.txt")
	require.NoError(t, err)
	assert.Equal(t, "outerr", string(data))
}

func TestApplyDupStdoutToStderr(t *testing.T) {
	env := newTestEnv()
	errBuf := &bytes.Buffer{}
	env.SetStderr(errBuf)

	redirs := []*parser.Redirect{{Op: parser.RedirDupOut, Fd: 1, HasFd: true, Target: rawWord("2")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	env.Stdout().Write([]byte("dup'd"))
	restore()

	assert.Equal(t, "dup'd", errBuf.String())
}

func TestApplyDupCloseForm(t *testing.T) {
	env := newTestEnv()
	redirs := []*parser.Redirect{{Op: parser.RedirDupOut, Fd: 1, HasFd: true, Target: rawWord("-")}}
	restore, err := applyRedirects(env, redirs)
	require.NoError(t, err)
	defer restore()

	n, err := env.Stdout().Write([]byte("discarded"))
	require.NoError(t, err)
	assert.Equal(t, len("discarded"), n)
}

func TestExpandHeredocBodyExpandsVariables(t *testing.T) {
	env := newTestEnv()
	env.Setenv("NAME", "world")
	out, err := expandHeredocBody(env, "hello $NAME\n")
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
}
