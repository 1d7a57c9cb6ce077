package expand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prefix-dev/shell/pkg/parser"
)

// Mode selects which phases of the pipeline apply to a given word, since
// not every word position runs the full eight-phase pipeline (spec.md
// §4.2): assignment values and `[[ ]]`/`case` patterns skip field
// splitting, for instance.
type Mode int

const (
	// ModeWord is a normal command-line word: the full pipeline, ending in
	// field splitting.
	ModeWord Mode = iota
	// ModeAssignment is the value half of `name=value`: tilde expansion
	// additionally triggers after each unquoted top-level `:`, and the
	// result is never field-split.
	ModeAssignment
	// ModePattern is a `case`/`[[ == ]]` pattern operand: no field
	// splitting; the expanded, quote-removed text is matched as a single
	// glob pattern (spec.md's Non-goal defers glob semantics to the
	// pattern matcher, so quoted-vs-unquoted glob metacharacters inside the
	// pattern are not separately tracked here).
	ModePattern
)

// Word expands a single parser.Word through the full pipeline and returns
// the resulting argv fields (zero or more, depending on splitting and
// whether any unquoted expansion produced an empty/absent result).
func Word(ctx Context, w *parser.Word, mode Mode) ([]string, error) {
	if w == nil {
		return nil, nil
	}
	var fields []string
	for _, alt := range expandBraces(w.Raw) {
		fs, err := expandOne(ctx, alt, mode)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fs...)
	}
	return fields, nil
}

// Fields expands a slice of words in argv position, concatenating each
// word's resulting fields in order.
func Fields(ctx Context, words []*parser.Word, mode Mode) ([]string, error) {
	var out []string
	for _, w := range words {
		fs, err := Word(ctx, w, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

// String expands a word to exactly one string, joining any would-be split
// fields back with a space. Used for contexts that take a single scalar
// (e.g. a heredoc delimiter comparison, a `case` subject).
func String(ctx Context, w *parser.Word, mode Mode) (string, error) {
	fs, err := Word(ctx, w, mode)
	if err != nil {
		return "", err
	}
	return strings.Join(fs, " "), nil
}

func expandOne(ctx Context, raw string, mode Mode) ([]string, error) {
	tilded := expandTilde(raw, mode == ModeAssignment, ctx)
	pieces := compileWord(tilded)

	var chunks []fieldChunk
	for _, p := range pieces {
		switch p.kind {
		case pieceLiteral:
			chunks = append(chunks, fieldChunk{text: p.text, quoted: p.quoted})
		case pieceCmdSub:
			out, err := ctx.RunCommandSubst(p.text)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, fieldChunk{text: out, quoted: p.quoted})
		case pieceArith:
			v, err := ctx.EvalArith(p.text)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, fieldChunk{text: strconv.FormatInt(v, 10), quoted: true})
		case pieceParam:
			text, isSet, err := expandParam(ctx, p.text)
			if err != nil {
				return nil, err
			}
			if p.text == "@" {
				// $@ (quoted or not): each positional parameter is always
				// its own field, never re-joined or further re-split —
				// quoting only controls whether that field's own content
				// additionally resists splitting, which it does either way
				// since each parameter is already a single field boundary.
				_, args := ctx.Positional()
				for i, a := range args {
					chunks = append(chunks, fieldChunk{text: a, quoted: true})
					if i < len(args)-1 {
						chunks = append(chunks, fieldChunk{text: " ", quoted: false})
					}
				}
				continue
			}
			_ = isSet
			chunks = append(chunks, fieldChunk{text: text, quoted: p.quoted})
		}
	}

	if mode != ModeWord {
		var b strings.Builder
		for _, c := range chunks {
			b.WriteString(c.text)
		}
		if b.Len() == 0 && len(chunks) == 0 {
			return nil, nil
		}
		return []string{b.String()}, nil
	}

	return splitFields(chunks, ctx.IFS()), nil
}

// expandParam evaluates a compiled parameter piece's body (either a bare
// name from `$NAME` or a full `${...}` body) against ctx, applying any
// modifier. Sub-expansions inside a modifier's operand (`${v:-$other}`)
// are themselves run through the full Word pipeline.
func expandParam(ctx Context, body string) (value string, set bool, err error) {
	pe := parseParamExpr(body)

	raw, isSet := lookupParam(ctx, pe.name)

	if pe.length {
		return strconv.Itoa(len(raw)), true, nil
	}

	switch pe.op {
	case paramOpNone:
		return raw, isSet, nil

	case paramOpDefaultUnset, paramOpDefaultUnsetBare:
		useDefault := !isSet
		if pe.op == paramOpDefaultUnset {
			useDefault = !isSet || raw == ""
		}
		if useDefault {
			return expandModifierArg(ctx, pe.arg)
		}
		return raw, isSet, nil

	case paramOpAssignUnset, paramOpAssignUnsetBare:
		useDefault := !isSet
		if pe.op == paramOpAssignUnset {
			useDefault = !isSet || raw == ""
		}
		if useDefault {
			v, _, err := expandModifierArg(ctx, pe.arg)
			if err != nil {
				return "", false, err
			}
			ctx.Setenv(pe.name, v)
			return v, true, nil
		}
		return raw, isSet, nil

	case paramOpAltSet, paramOpAltSetBare:
		haveAlt := isSet
		if pe.op == paramOpAltSet {
			haveAlt = isSet && raw != ""
		}
		if haveAlt {
			return expandModifierArg(ctx, pe.arg)
		}
		return "", true, nil

	case paramOpErrorUnset, paramOpErrorUnsetBare:
		isError := !isSet
		if pe.op == paramOpErrorUnset {
			isError = !isSet || raw == ""
		}
		if isError {
			msg, _, err := expandModifierArg(ctx, pe.arg)
			if err != nil {
				return "", false, err
			}
			if msg == "" {
				msg = "parameter null or not set"
			}
			return "", false, fmt.Errorf("%s: %s", pe.name, msg)
		}
		return raw, isSet, nil

	case paramOpSubstring:
		return expandSubstring(ctx, raw, pe.arg)

	case paramOpRemovePrefixShort, paramOpRemovePrefixLong,
		paramOpRemoveSuffixShort, paramOpRemoveSuffixLong:
		pat, _, err := expandModifierArg(ctx, pe.arg)
		if err != nil {
			return "", false, err
		}
		return trimPattern(raw, pat, pe.op), isSet, nil
	}

	return raw, isSet, nil
}

func expandModifierArg(ctx Context, raw string) (string, bool, error) {
	if raw == "" {
		return "", true, nil
	}
	fs, err := expandOne(ctx, raw, ModeAssignment)
	if err != nil {
		return "", false, err
	}
	return strings.Join(fs, " "), true, nil
}

func expandSubstring(ctx Context, raw, arg string) (string, bool, error) {
	offsetExpr, lengthExpr, hasLength := splitSubstringArg(arg)
	offVal, _, err := expandModifierArg(ctx, offsetExpr)
	if err != nil {
		return "", false, err
	}
	off, err := ctx.EvalArith(offVal)
	if err != nil {
		off, err = ctx.EvalArith(offsetExpr)
		if err != nil {
			return "", false, err
		}
	}

	r := []rune(raw)
	start := int(off)
	if start < 0 {
		start += len(r)
	}
	if start < 0 {
		start = 0
	}
	if start > len(r) {
		start = len(r)
	}

	if !hasLength {
		return string(r[start:]), true, nil
	}

	lenVal, _, err := expandModifierArg(ctx, lengthExpr)
	if err != nil {
		return "", false, err
	}
	length, err := ctx.EvalArith(lenVal)
	if err != nil {
		length, err = ctx.EvalArith(lengthExpr)
		if err != nil {
			return "", false, err
		}
	}
	end := start + int(length)
	if length < 0 {
		end = len(r) + int(length)
	}
	if end < start {
		end = start
	}
	if end > len(r) {
		end = len(r)
	}
	return string(r[start:end]), true, nil
}

// trimPattern implements `${v#pat}`/`${v##pat}`/`${v%pat}`/`${v%%pat}`.
// Per the same whole-string glob simplification used for `case`/`[[ ]]`
// (DESIGN.md), the pattern is matched via the shared glob matcher rather
// than a hand-rolled anchored-pattern engine.
func trimPattern(value, pat string, op paramOp) string {
	if pat == "" {
		return value
	}
	switch op {
	case paramOpRemovePrefixShort:
		return trimPrefixShortest(value, pat)
	case paramOpRemovePrefixLong:
		return trimPrefixLongest(value, pat)
	case paramOpRemoveSuffixShort:
		return trimSuffixShortest(value, pat)
	case paramOpRemoveSuffixLong:
		return trimSuffixLongest(value, pat)
	}
	return value
}

func trimPrefixShortest(value, pat string) string {
	for i := 0; i <= len(value); i++ {
		if MatchGlob(pat, value[:i]) {
			return value[i:]
		}
	}
	return value
}

func trimPrefixLongest(value, pat string) string {
	for i := len(value); i >= 0; i-- {
		if MatchGlob(pat, value[:i]) {
			return value[i:]
		}
	}
	return value
}

func trimSuffixShortest(value, pat string) string {
	for i := len(value); i >= 0; i-- {
		if MatchGlob(pat, value[i:]) {
			return value[:i]
		}
	}
	return value
}

func trimSuffixLongest(value, pat string) string {
	for i := 0; i <= len(value); i++ {
		if MatchGlob(pat, value[i:]) {
			return value[:i]
		}
	}
	return value
}

// lookupParam resolves a parameter name (possibly a special parameter) to
// its current value and set/unset status.
func lookupParam(ctx Context, name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(ctx.ExitStatus()), true
	case "$":
		return strconv.Itoa(processID()), true
	case "#":
		_, args := ctx.Positional()
		return strconv.Itoa(len(args)), true
	case "@", "*":
		_, args := ctx.Positional()
		return strings.Join(args, " "), true
	case "0":
		arg0, _ := ctx.Positional()
		return arg0, true
	case "-", "!":
		return "", false
	}
	if n, err := strconv.Atoi(name); err == nil {
		_, args := ctx.Positional()
		if n >= 1 && n <= len(args) {
			return args[n-1], true
		}
		return "", false
	}
	return ctx.Getenv(name)
}
