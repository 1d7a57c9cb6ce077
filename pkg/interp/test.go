package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prefix-dev/shell/pkg/expand"
	"github.com/prefix-dev/shell/pkg/parser"
	"github.com/spf13/afero"
)

// EvalTest evaluates a `[[ ... ]]` conditional expression tree (spec.md
// §4.3), returning true/false. Grounded on `pkg/parser/testexpr.go`'s
// TestNode shape; file predicates query env.Fs rather than the OS
// directly, so both `[[ ]]` and the runtime `test`/`[` builtin (below)
// share one filesystem-predicate implementation that tests can run against
// an in-memory afero.Fs.
func EvalTest(env *Env, n parser.TestNode) (bool, error) {
	switch v := n.(type) {
	case parser.TestUnary:
		return evalTestUnary(env, v)
	case parser.TestBinary:
		return evalTestBinary(env, v)
	case parser.TestNot:
		r, err := EvalTest(env, v.X)
		return !r, err
	case parser.TestAnd:
		l, err := EvalTest(env, v.L)
		if err != nil || !l {
			return false, err
		}
		return EvalTest(env, v.R)
	case parser.TestOr:
		l, err := EvalTest(env, v.L)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return EvalTest(env, v.R)
	case parser.TestGroup:
		return EvalTest(env, v.X)
	}
	return false, fmt.Errorf("test: unsupported expression")
}

func evalTestUnary(env *Env, u parser.TestUnary) (bool, error) {
	if u.Op == "-v" {
		name, err := expand.String(env, u.Arg, expand.ModeWord)
		if err != nil {
			return false, err
		}
		_, ok := env.Getenv(name)
		return ok, nil
	}
	if u.Op == "-R" {
		return false, nil // namerefs are out of scope
	}

	s, err := expand.String(env, u.Arg, expand.ModeWord)
	if err != nil {
		return false, err
	}
	return fileOrStringUnary(env.Fs, u.Op, s)
}

// fileOrStringUnary implements every unary test operator that doesn't need
// Env beyond the filesystem, so the runtime `test`/`[` builtin (builtin.go)
// can call it directly without going through a TestNode.
func fileOrStringUnary(fs afero.Fs, op, s string) (bool, error) {
	switch op {
	case "-n":
		return s != "", nil
	case "-z":
		return s == "", nil
	}

	info, statErr := fs.Stat(s)
	switch op {
	case "-e", "-a":
		return statErr == nil, nil
	case "-f":
		return statErr == nil && info.Mode().IsRegular(), nil
	case "-d":
		return statErr == nil && info.IsDir(), nil
	case "-s":
		return statErr == nil && info.Size() > 0, nil
	case "-r", "-w", "-x":
		return statErr == nil, nil // permission bits aren't modeled on afero.Fs
	case "-b", "-c", "-p", "-S", "-u", "-g", "-k":
		return false, nil // device/special-file bits have no afero.Fs equivalent
	case "-h", "-L":
		return false, nil // symlinks aren't modeled by every afero.Fs backend
	case "-G", "-O":
		return statErr == nil, nil // ownership isn't modeled; treat "exists" as owned
	case "-N":
		return false, nil
	}
	return false, fmt.Errorf("test: unknown unary operator %q", op)
}

func evalTestBinary(env *Env, b parser.TestBinary) (bool, error) {
	l, err := expand.String(env, b.L, expand.ModeWord)
	if err != nil {
		return false, err
	}
	mode := expand.ModeWord
	if b.PatternRHS {
		mode = expand.ModePattern
	}
	r, err := expand.String(env, b.R, mode)
	if err != nil {
		return false, err
	}
	return stringOrNumericBinary(b.Op, l, r, b.PatternRHS)
}

// stringOrNumericBinary implements every binary test operator, shared with
// the `test`/`[` builtin's runtime argv grammar.
func stringOrNumericBinary(op, l, r string, patternRHS bool) (bool, error) {
	switch op {
	case "=", "==":
		if patternRHS {
			return expand.MatchGlob(r, l), nil
		}
		return l == r, nil
	case "!=":
		if patternRHS {
			return !expand.MatchGlob(r, l), nil
		}
		return l != r, nil
	case "<":
		return l < r, nil
	case ">":
		return l > r, nil
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return numericCompare(op, l, r)
	}
	return false, fmt.Errorf("test: unknown binary operator %q", op)
}

// evalTestArgv implements the runtime argument grammar of the `test`/`[`
// built-in (spec.md §4.3's "test"/"[" operator table), which — unlike
// `[[ ]]` — is an ordinary command whose argv the built-in itself parses at
// dispatch time rather than something C1 produces a TestNode for
// (DESIGN.md's testexpr.go note). Supports the POSIX unary/binary forms plus
// bash's `!`/`-a`/`-o`/`(`/`)` combinators over them.
func evalTestArgv(env *Env, args []string) (bool, error) {
	p := &testArgvParser{env: env, args: args}
	if len(args) == 0 {
		return false, nil
	}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.args) {
		return false, fmt.Errorf("unexpected argument %q", p.args[p.pos])
	}
	return result, nil
}

type testArgvParser struct {
	env  *Env
	args []string
	pos  int
}

func (p *testArgvParser) peek() (string, bool) {
	if p.pos < len(p.args) {
		return p.args[p.pos], true
	}
	return "", false
}

func (p *testArgvParser) take() string {
	v := p.args[p.pos]
	p.pos++
	return v
}

func (p *testArgvParser) parseOr() (bool, error) {
	l, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok != "-o" {
			return l, nil
		}
		p.take()
		r, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		l = l || r
	}
}

func (p *testArgvParser) parseAnd() (bool, error) {
	l, err := p.parseNot()
	if err != nil {
		return false, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok != "-a" {
			return l, nil
		}
		p.take()
		r, err := p.parseNot()
		if err != nil {
			return false, err
		}
		l = l && r
	}
}

func (p *testArgvParser) parseNot() (bool, error) {
	if tok, ok := p.peek(); ok && tok == "!" {
		p.take()
		r, err := p.parseNot()
		return !r, err
	}
	return p.parsePrimary()
}

func (p *testArgvParser) parsePrimary() (bool, error) {
	tok, ok := p.peek()
	if !ok {
		return false, fmt.Errorf("argument expected")
	}

	if tok == "(" {
		p.take()
		r, err := p.parseOr()
		if err != nil {
			return false, err
		}
		end, ok := p.peek()
		if !ok || end != ")" {
			return false, fmt.Errorf("expected )")
		}
		p.take()
		return r, nil
	}

	if isTestUnaryOp(tok) {
		p.take()
		arg, ok := p.peek()
		if !ok {
			return false, fmt.Errorf("%s: argument expected", tok)
		}
		p.take()
		return fileOrStringUnary(p.env.Fs, tok, arg)
	}

	// ARG, or ARG OP ARG.
	left := p.take()
	op, ok := p.peek()
	if !ok || !isTestBinaryOp(op) {
		return left != "", nil
	}
	p.take()
	right, ok := p.peek()
	if !ok {
		return false, fmt.Errorf("%s: argument expected", op)
	}
	p.take()
	return stringOrNumericBinary(op, left, right, false)
}

func isTestUnaryOp(tok string) bool {
	switch tok {
	case "-n", "-z", "-v", "-e", "-a", "-f", "-d", "-s", "-r", "-w", "-x",
		"-b", "-c", "-p", "-S", "-u", "-g", "-k", "-h", "-L", "-G", "-O", "-N":
		return true
	}
	return false
}

func isTestBinaryOp(tok string) bool {
	switch tok {
	case "=", "==", "!=", "<", ">", "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		return true
	}
	return false
}

func numericCompare(op, l, r string) (bool, error) {
	li, err := strconv.ParseInt(strings.TrimSpace(l), 0, 64)
	if err != nil {
		return false, fmt.Errorf("test: %s: not a number", l)
	}
	ri, err := strconv.ParseInt(strings.TrimSpace(r), 0, 64)
	if err != nil {
		return false, fmt.Errorf("test: %s: not a number", r)
	}
	switch op {
	case "-eq":
		return li == ri, nil
	case "-ne":
		return li != ri, nil
	case "-lt":
		return li < ri, nil
	case "-le":
		return li <= ri, nil
	case "-gt":
		return li > ri, nil
	case "-ge":
		return li >= ri, nil
	}
	return false, fmt.Errorf("test: unknown numeric operator %q", op)
}
