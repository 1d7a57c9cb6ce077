package interp

import (
	"bytes"
	"testing"

	"github.com/prefix-dev/shell/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runScript parses and executes src against a fresh in-memory-fs Env,
// returning its exit status and everything written to stdout.
func runScript(t *testing.T, src string) (int, string) {
	t.Helper()
	env := newTestEnv()
	out := &bytes.Buffer{}
	env.SetStdout(out)
	InstallExecutor(env)

	cc, err := parser.Parse(src)
	require.NoError(t, err)
	status, err := Execute(env, cc)
	require.NoError(t, err)
	return status, out.String()
}

func TestExecuteSimpleCommand(t *testing.T) {
	status, out := runScript(t, "echo hi")
	assert.Equal(t, 0, status)
	assert.Equal(t, "hi\n", out)
}

func TestExecuteAndOrShortCircuits(t *testing.T) {
	status, out := runScript(t, "false && echo never || echo fallback")
	assert.Equal(t, 0, status)
	assert.Equal(t, "fallback\n", out)
}

func TestExecuteIfElse(t *testing.T) {
	status, out := runScript(t, "if false; then echo a; else echo b; fi")
	assert.Equal(t, 0, status)
	assert.Equal(t, "b\n", out)
}

func TestExecuteForLoop(t *testing.T) {
	_, out := runScript(t, "for x in a b c; do echo $x; done")
	assert.Equal(t, "a\nb\nc\n", out)
}

func TestExecuteForLoopBreak(t *testing.T) {
	_, out := runScript(t, "for x in a b c; do if [ $x = b ]; then break; fi; echo $x; done")
	assert.Equal(t, "a\n", out)
}

func TestExecuteForLoopContinue(t *testing.T) {
	_, out := runScript(t, "for x in a b c; do if [ $x = b ]; then continue; fi; echo $x; done")
	assert.Equal(t, "a\nc\n", out)
}

func TestExecuteWhileLoop(t *testing.T) {
	_, out := runScript(t, `
i=0
while [ $i -lt 3 ]; do
  echo $i
  i=$((i + 1))
done`)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestExecuteUntilLoop(t *testing.T) {
	_, out := runScript(t, `
i=0
until [ $i -ge 2 ]; do
  echo $i
  i=$((i + 1))
done`)
	assert.Equal(t, "0\n1\n", out)
}

func TestExecuteCaseMatchesPattern(t *testing.T) {
	_, out := runScript(t, `
case hello in
  h*) echo matched;;
  *) echo nope;;
esac`)
	assert.Equal(t, "matched\n", out)
}

func TestExecuteFunctionDefinitionAndCallWithReturn(t *testing.T) {
	status, out := runScript(t, `
greet() {
  echo "hi $1"
  return 3
}
greet world
echo "status=$?"`)
	assert.Equal(t, 0, status)
	assert.Equal(t, "hi world\nstatus=3\n", out)
}

func TestExecuteFunctionBreakDoesNotEscapeFunction(t *testing.T) {
	_, out := runScript(t, `
f() {
  for x in a b; do
    break
  done
  echo after
}
f`)
	assert.Equal(t, "after\n", out)
}

func TestExecutePipeline(t *testing.T) {
	_, out := runScript(t, "echo hello | cat")
	assert.Equal(t, "hello\n", out)
}

func TestExecuteBraceGroup(t *testing.T) {
	_, out := runScript(t, "{ echo a; echo b; }")
	assert.Equal(t, "a\nb\n", out)
}

func TestExecuteSubshellDoesNotLeakVariables(t *testing.T) {
	_, out := runScript(t, `
x=outer
(x=inner; echo $x)
echo $x`)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestExecuteArithCommand(t *testing.T) {
	status, _ := runScript(t, "((1 + 1))")
	assert.Equal(t, 0, status)
	status, _ = runScript(t, "((0))")
	assert.Equal(t, 1, status)
}

func TestExecuteDoubleBracketTest(t *testing.T) {
	status, _ := runScript(t, "[[ -n hello ]]")
	assert.Equal(t, 0, status)
}

func TestExecuteNegatedPipeline(t *testing.T) {
	status, _ := runScript(t, "! false")
	assert.Equal(t, 0, status)
}

func TestExecuteCommandSubstitution(t *testing.T) {
	_, out := runScript(t, `echo $(echo nested)`)
	assert.Equal(t, "nested\n", out)
}

func TestHandleLoopSignalBreakStopsWithoutPropagation(t *testing.T) {
	stop, propagate := handleLoopSignal(&builtinSignal{cf: controlFlow{kind: cfBreak, n: 1}})
	assert.True(t, stop)
	assert.Nil(t, propagate)
}

func TestHandleLoopSignalMultiLevelBreakPropagatesDecremented(t *testing.T) {
	stop, propagate := handleLoopSignal(&builtinSignal{cf: controlFlow{kind: cfBreak, n: 2}})
	assert.True(t, stop)
	require.NotNil(t, propagate)
	assert.Equal(t, 1, propagate.cf.n)
}

func TestHandleLoopSignalContinueDoesNotStop(t *testing.T) {
	stop, propagate := handleLoopSignal(&builtinSignal{cf: controlFlow{kind: cfContinue, n: 1}})
	assert.False(t, stop)
	assert.Nil(t, propagate)
}

func TestHandleLoopSignalReturnPropagates(t *testing.T) {
	sig := &builtinSignal{cf: controlFlow{kind: cfReturn, code: 5}}
	stop, propagate := handleLoopSignal(sig)
	assert.True(t, stop)
	assert.Same(t, sig, propagate)
}
