package expand

import "strings"

// paramExpr is a parsed `${...}` body: a variable name plus an optional
// modifier. Bare `$NAME` forms are represented with Op == paramOpNone.
type paramExpr struct {
	name   string
	length bool // `${#name}`
	op     paramOp
	arg    string // raw (unexpanded) word text for the modifier's operand
}

type paramOp int

const (
	paramOpNone paramOp = iota
	paramOpDefaultUnset    // ${v:-w}
	paramOpDefaultUnsetBare // ${v-w}
	paramOpAssignUnset      // ${v:=w}
	paramOpAssignUnsetBare  // ${v=w}
	paramOpAltSet           // ${v:+w}
	paramOpAltSetBare       // ${v+w}
	paramOpErrorUnset       // ${v:?w}
	paramOpErrorUnsetBare   // ${v?w}
	paramOpSubstring        // ${v:off} or ${v:off:len}
	paramOpRemoveSuffixShort // ${v%w}
	paramOpRemoveSuffixLong  // ${v%%w}
	paramOpRemovePrefixShort // ${v#w}
	paramOpRemovePrefixLong  // ${v##w}
)

// parseParamExpr parses the body of a `${...}` expansion (the text between
// the braces, per spec.md §4.2's modifier table). Substring offset/length
// and the operand word of `:-`/`-`/`:=`/etc. are kept as raw text, to be
// expanded by the caller through the normal word pipeline (they may
// themselves contain `$...`).
func parseParamExpr(body string) paramExpr {
	// A one-character body is a bare name (`?`, `#`, `-`, `@`, a digit...),
	// never a modifier operator.
	if len(body) == 1 {
		return paramExpr{name: body}
	}
	if strings.HasPrefix(body, "#") && len(body) > 1 && isSimpleName(body[1:]) {
		return paramExpr{name: body[1:], length: true}
	}

	ops := []struct {
		tok string
		op  paramOp
	}{
		{":-", paramOpDefaultUnset},
		{":=", paramOpAssignUnset},
		{":+", paramOpAltSet},
		{":?", paramOpErrorUnset},
		{"##", paramOpRemovePrefixLong},
		{"#", paramOpRemovePrefixShort},
		{"%%", paramOpRemoveSuffixLong},
		{"%", paramOpRemoveSuffixShort},
		{"-", paramOpDefaultUnsetBare},
		{"=", paramOpAssignUnsetBare},
		{"+", paramOpAltSetBare},
		{"?", paramOpErrorUnsetBare},
	}
	for _, o := range ops {
		if idx := findTopLevel(body, o.tok); idx >= 0 {
			return paramExpr{name: body[:idx], op: o.op, arg: body[idx+len(o.tok):]}
		}
	}

	if idx := findTopLevel(body, ":"); idx >= 0 {
		return paramExpr{name: body[:idx], op: paramOpSubstring, arg: body[idx+1:]}
	}

	return paramExpr{name: body}
}

func isSimpleName(s string) bool {
	if s == "" {
		return false
	}
	if !isNameStart(s[0]) && !(s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}

// findTopLevel finds the first occurrence of tok not inside nested
// ${...}/$(...)  braces/parens within body.
func findTopLevel(body, tok string) int {
	depth := 0
	for i := 0; i+len(tok) <= len(body); i++ {
		switch body[i] {
		case '{', '(':
			depth++
		case '}', ')':
			depth--
		}
		if depth == 0 && body[i:i+len(tok)] == tok {
			return i
		}
	}
	return -1
}

// splitSubstringArg splits a substring modifier's raw arg on the first
// top-level `:` into offset and (optional) length expressions.
func splitSubstringArg(arg string) (offset, length string, hasLength bool) {
	idx := findTopLevel(arg, ":")
	if idx < 0 {
		return arg, "", false
	}
	return arg[:idx], arg[idx+1:], true
}
