package interp

import (
	"fmt"
	"strconv"

	"github.com/prefix-dev/shell/pkg/parser"
)

// EvalArithString parses and evaluates an arithmetic expression against
// env, per spec.md §4.3: integer-only, two's-complement, platform-width
// (Go's int64 here satisfies "≥64-bit"). Grounded on the same
// precedence-climbing AST `pkg/parser/arith.go` defines; this file is the
// evaluator half, walking that AST rather than reparsing it.
func EvalArithString(env *Env, src string) (int64, error) {
	n, err := parser.ParseArith(src)
	if err != nil {
		return 0, err
	}
	return evalArith(env, n)
}

func evalArith(env *Env, n parser.ArithNode) (int64, error) {
	switch v := n.(type) {
	case *parser.ArithNum:
		return v.Value, nil
	case *parser.ArithVar:
		return readArithVar(env, v.Name)
	case *parser.ArithUnary:
		return evalArithUnary(env, *v)
	case *parser.ArithBinary:
		return evalArithBinary(env, *v)
	case *parser.ArithTernary:
		cond, err := evalArith(env, v.Cond)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return evalArith(env, v.Then)
		}
		return evalArith(env, v.Else)
	case *parser.ArithAssign:
		return evalArithAssign(env, *v)
	}
	return 0, fmt.Errorf("arithmetic: unsupported node %T", n)
}

func readArithVar(env *Env, name string) (int64, error) {
	s, ok := env.Getenv(name)
	if !ok || s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("arithmetic: %s: not a number", name)
	}
	return n, nil
}

func writeArithVar(env *Env, name string, v int64) {
	env.Setenv(name, strconv.FormatInt(v, 10))
}

func evalArithUnary(env *Env, u parser.ArithUnary) (int64, error) {
	if v, ok := u.X.(*parser.ArithVar); ok {
		switch u.Op {
		case parser.ArithPreInc, parser.ArithPreDec:
			cur, err := readArithVar(env, v.Name)
			if err != nil {
				return 0, err
			}
			if u.Op == parser.ArithPreInc {
				cur++
			} else {
				cur--
			}
			writeArithVar(env, v.Name, cur)
			return cur, nil
		case parser.ArithPostInc, parser.ArithPostDec:
			cur, err := readArithVar(env, v.Name)
			if err != nil {
				return 0, err
			}
			next := cur
			if u.Op == parser.ArithPostInc {
				next++
			} else {
				next--
			}
			writeArithVar(env, v.Name, next)
			return cur, nil
		}
	}
	x, err := evalArith(env, u.X)
	if err != nil {
		return 0, err
	}
	switch u.Op {
	case parser.ArithPos:
		return x, nil
	case parser.ArithNeg:
		return -x, nil
	case parser.ArithNot:
		return boolToInt64(x == 0), nil
	case parser.ArithBitNot:
		return ^x, nil
	}
	return x, nil
}

func evalArithBinary(env *Env, b parser.ArithBinary) (int64, error) {
	// Short-circuit && / || before evaluating the right side.
	if b.Op == parser.ArithAnd {
		l, err := evalArith(env, b.L)
		if err != nil {
			return 0, err
		}
		if l == 0 {
			return 0, nil
		}
		r, err := evalArith(env, b.R)
		if err != nil {
			return 0, err
		}
		return boolToInt64(r != 0), nil
	}
	if b.Op == parser.ArithOr {
		l, err := evalArith(env, b.L)
		if err != nil {
			return 0, err
		}
		if l != 0 {
			return 1, nil
		}
		r, err := evalArith(env, b.R)
		if err != nil {
			return 0, err
		}
		return boolToInt64(r != 0), nil
	}

	l, err := evalArith(env, b.L)
	if err != nil {
		return 0, err
	}
	r, err := evalArith(env, b.R)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case parser.ArithBitOr:
		return l | r, nil
	case parser.ArithBitXor:
		return l ^ r, nil
	case parser.ArithBitAnd:
		return l & r, nil
	case parser.ArithEq:
		return boolToInt64(l == r), nil
	case parser.ArithNe:
		return boolToInt64(l != r), nil
	case parser.ArithLt:
		return boolToInt64(l < r), nil
	case parser.ArithLe:
		return boolToInt64(l <= r), nil
	case parser.ArithGt:
		return boolToInt64(l > r), nil
	case parser.ArithGe:
		return boolToInt64(l >= r), nil
	case parser.ArithShl:
		if r < 0 {
			return 0, fmt.Errorf("arithmetic: negative shift amount")
		}
		return l << uint(r), nil
	case parser.ArithShr:
		if r < 0 {
			return 0, fmt.Errorf("arithmetic: negative shift amount")
		}
		return l >> uint(r), nil
	case parser.ArithAdd:
		return l + r, nil
	case parser.ArithSub:
		return l - r, nil
	case parser.ArithMul:
		return l * r, nil
	case parser.ArithDiv:
		if r == 0 {
			return 0, fmt.Errorf("arithmetic: division by zero")
		}
		return l / r, nil
	case parser.ArithMod:
		if r == 0 {
			return 0, fmt.Errorf("arithmetic: division by zero")
		}
		return l % r, nil
	case parser.ArithPow:
		return intPow(l, r), nil
	}
	return 0, fmt.Errorf("arithmetic: unsupported operator")
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func evalArithAssign(env *Env, a parser.ArithAssign) (int64, error) {
	rhs, err := evalArith(env, a.Rhs)
	if err != nil {
		return 0, err
	}
	if a.Op == parser.AAssign {
		writeArithVar(env, a.Name, rhs)
		return rhs, nil
	}
	cur, err := readArithVar(env, a.Name)
	if err != nil {
		return 0, err
	}
	var result int64
	switch a.Op {
	case parser.AAddAssign:
		result = cur + rhs
	case parser.AAddSub:
		result = cur - rhs
	case parser.AAddMul:
		result = cur * rhs
	case parser.AAddDiv:
		if rhs == 0 {
			return 0, fmt.Errorf("arithmetic: division by zero")
		}
		result = cur / rhs
	case parser.AAddMod:
		if rhs == 0 {
			return 0, fmt.Errorf("arithmetic: division by zero")
		}
		result = cur % rhs
	case parser.AShlAssign:
		if rhs < 0 {
			return 0, fmt.Errorf("arithmetic: negative shift amount")
		}
		result = cur << uint(rhs)
	case parser.AShrAssign:
		if rhs < 0 {
			return 0, fmt.Errorf("arithmetic: negative shift amount")
		}
		result = cur >> uint(rhs)
	case parser.AAndAssign:
		result = cur & rhs
	case parser.AXorAssign:
		result = cur ^ rhs
	case parser.AOrAssign:
		result = cur | rhs
	default:
		return 0, fmt.Errorf("arithmetic: unsupported assignment operator")
	}
	writeArithVar(env, a.Name, result)
	return result, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
