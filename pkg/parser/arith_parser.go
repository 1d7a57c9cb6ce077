package parser

import "fmt"

// ArithParser is a small precedence-climbing recursive-descent parser for
// the arithmetic sublanguage of spec.md §4.3, grounded on the
// parseExpression/parseTerm/parseFactor shape of
// other_examples/funnywwh-gobash__executor.go, extended with the full
// operator and precedence table spec.md §4.3 specifies (bitwise ops,
// shifts, ternary, the full assignment-operator family, ** and pre/post
// increment/decrement).
type ArithParser struct {
	src string
	pos int
}

func NewArithParser(src string) *ArithParser { return &ArithParser{src: src} }

// ParseArith parses a complete arithmetic expression string.
func ParseArith(src string) (ArithNode, error) {
	p := NewArithParser(src)
	n, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("arithmetic: unexpected input at %q", p.src[p.pos:])
	}
	return n, nil
}

func (p *ArithParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *ArithParser) peekIs(s string) bool {
	p.skipSpace()
	return p.pos+len(s) <= len(p.src) && p.src[p.pos:p.pos+len(s)] == s
}

func (p *ArithParser) consume(s string) bool {
	if p.peekIs(s) {
		p.pos += len(s)
		return true
	}
	return false
}

func isArithIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (p *ArithParser) parseAssign() (ArithNode, error) {
	start := p.pos
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '$' {
		p.pos++
	}
	if p.pos < len(p.src) && isArithIdentStart(p.src[p.pos]) {
		nameStart := p.pos
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
		name := p.src[nameStart:p.pos]
		ops := []struct {
			tok string
			op  ArithAssignOp
		}{
			{"<<=", AShlAssign}, {">>=", AShrAssign},
			{"+=", AAddAssign}, {"-=", AAddSub}, {"*=", AAddMul},
			{"/=", AAddDiv}, {"%=", AAddMod}, {"&=", AAndAssign},
			{"^=", AXorAssign}, {"|=", AOrAssign},
		}
		for _, o := range ops {
			if p.consume(o.tok) {
				rhs, err := p.parseAssign()
				if err != nil {
					return nil, err
				}
				return &ArithAssign{Op: o.op, Name: name, Rhs: rhs}, nil
			}
		}
		if p.peekIs("=") && !p.peekIs("==") {
			p.consume("=")
			rhs, err := p.parseAssign()
			if err != nil {
				return nil, err
			}
			return &ArithAssign{Op: AAssign, Name: name, Rhs: rhs}, nil
		}
		p.pos = start
	}
	return p.parseTernary()
}

func (p *ArithParser) parseTernary() (ArithNode, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.consume("?") {
		then, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		if !p.consume(":") {
			return nil, fmt.Errorf("arithmetic: expected ':' in ternary")
		}
		els, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ArithTernary{Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *ArithParser) binLevel(next func() (ArithNode, error), ops ...struct {
	tok string
	op  ArithBinOp
}) (ArithNode, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, o := range ops {
			if p.peekIs(o.tok) {
				// Don't let `<` match the `<<`/`<=` spelling, etc.
				if (o.tok == "<" && (p.peekIs("<<") || p.peekIs("<="))) ||
					(o.tok == ">" && (p.peekIs(">>") || p.peekIs(">="))) ||
					(o.tok == "&" && p.peekIs("&&")) ||
					(o.tok == "|" && p.peekIs("||")) {
					continue
				}
				p.consume(o.tok)
				right, err := next()
				if err != nil {
					return nil, err
				}
				left = &ArithBinary{Op: o.op, L: left, R: right}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *ArithParser) parseLogicalOr() (ArithNode, error) {
	return p.binLevel(p.parseLogicalAnd, struct {
		tok string
		op  ArithBinOp
	}{"||", ArithOr})
}

func (p *ArithParser) parseLogicalAnd() (ArithNode, error) {
	return p.binLevel(p.parseBitOr, struct {
		tok string
		op  ArithBinOp
	}{"&&", ArithAnd})
}

func (p *ArithParser) parseBitOr() (ArithNode, error) {
	return p.binLevel(p.parseBitXor, struct {
		tok string
		op  ArithBinOp
	}{"|", ArithBitOr})
}

func (p *ArithParser) parseBitXor() (ArithNode, error) {
	return p.binLevel(p.parseBitAnd, struct {
		tok string
		op  ArithBinOp
	}{"^", ArithBitXor})
}

func (p *ArithParser) parseBitAnd() (ArithNode, error) {
	return p.binLevel(p.parseEquality, struct {
		tok string
		op  ArithBinOp
	}{"&", ArithBitAnd})
}

func (p *ArithParser) parseEquality() (ArithNode, error) {
	return p.binLevel(p.parseRelational,
		struct {
			tok string
			op  ArithBinOp
		}{"==", ArithEq},
		struct {
			tok string
			op  ArithBinOp
		}{"!=", ArithNe})
}

func (p *ArithParser) parseRelational() (ArithNode, error) {
	return p.binLevel(p.parseShift,
		struct {
			tok string
			op  ArithBinOp
		}{"<=", ArithLe},
		struct {
			tok string
			op  ArithBinOp
		}{">=", ArithGe},
		struct {
			tok string
			op  ArithBinOp
		}{"<", ArithLt},
		struct {
			tok string
			op  ArithBinOp
		}{">", ArithGt})
}

func (p *ArithParser) parseShift() (ArithNode, error) {
	return p.binLevel(p.parseAdd,
		struct {
			tok string
			op  ArithBinOp
		}{"<<", ArithShl},
		struct {
			tok string
			op  ArithBinOp
		}{">>", ArithShr})
}

func (p *ArithParser) parseAdd() (ArithNode, error) {
	return p.binLevel(p.parseMul,
		struct {
			tok string
			op  ArithBinOp
		}{"+", ArithAdd},
		struct {
			tok string
			op  ArithBinOp
		}{"-", ArithSub})
}

func (p *ArithParser) parseMul() (ArithNode, error) {
	return p.binLevel(p.parsePow,
		struct {
			tok string
			op  ArithBinOp
		}{"*", ArithMul},
		struct {
			tok string
			op  ArithBinOp
		}{"/", ArithDiv},
		struct {
			tok string
			op  ArithBinOp
		}{"%", ArithMod})
}

func (p *ArithParser) parsePow() (ArithNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.consume("**") {
		right, err := p.parsePow() // right-associative
		if err != nil {
			return nil, err
		}
		return &ArithBinary{Op: ArithPow, L: left, R: right}, nil
	}
	return left, nil
}

func (p *ArithParser) parseUnary() (ArithNode, error) {
	switch {
	case p.consume("++"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		v, ok := x.(*ArithVar)
		if !ok {
			return nil, fmt.Errorf("arithmetic: ++ requires a variable")
		}
		return &ArithUnary{Op: ArithPreInc, X: v}, nil
	case p.consume("--"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		v, ok := x.(*ArithVar)
		if !ok {
			return nil, fmt.Errorf("arithmetic: -- requires a variable")
		}
		return &ArithUnary{Op: ArithPreDec, X: v}, nil
	case p.consume("+"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ArithUnary{Op: ArithPos, X: x}, nil
	case p.consume("-"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ArithUnary{Op: ArithNeg, X: x}, nil
	case p.consume("!"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ArithUnary{Op: ArithNot, X: x}, nil
	case p.consume("~"):
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ArithUnary{Op: ArithBitNot, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *ArithParser) parsePostfix() (ArithNode, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if v, ok := x.(*ArithVar); ok {
		if p.consume("++") {
			return &ArithUnary{Op: ArithPostInc, X: v}, nil
		}
		if p.consume("--") {
			return &ArithUnary{Op: ArithPostDec, X: v}, nil
		}
	}
	return x, nil
}

func (p *ArithParser) parsePrimary() (ArithNode, error) {
	p.skipSpace()
	if p.consume("(") {
		x, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, fmt.Errorf("arithmetic: expected ')'")
		}
		return x, nil
	}
	if p.pos < len(p.src) && p.src[p.pos] == '$' {
		p.pos++
	}
	if p.pos < len(p.src) && isArithIdentStart(p.src[p.pos]) {
		start := p.pos
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
		return &ArithVar{Name: p.src[start:p.pos]}, nil
	}
	if p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9') {
		start := p.pos
		base := 10
		if p.src[p.pos] == '0' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == 'x' || p.src[p.pos+1] == 'X') {
			p.pos += 2
			base = 16
			for p.pos < len(p.src) && isHexDigit(p.src[p.pos]) {
				p.pos++
			}
		} else {
			for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
				p.pos++
			}
		}
		text := p.src[start:p.pos]
		n, err := parseIntBase(text, base)
		if err != nil {
			return nil, err
		}
		return &ArithNum{Value: n}, nil
	}
	return nil, fmt.Errorf("arithmetic: unexpected character %q", string(p.src[minInt(p.pos, len(p.src)-1)]))
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func parseIntBase(text string, base int) (int64, error) {
	if base == 16 {
		text = text[2:]
		var n int64
		for _, c := range text {
			var d int64
			switch {
			case c >= '0' && c <= '9':
				d = int64(c - '0')
			case c >= 'a' && c <= 'f':
				d = int64(c-'a') + 10
			case c >= 'A' && c <= 'F':
				d = int64(c-'A') + 10
			}
			n = n*16 + d
		}
		return n, nil
	}
	var n int64
	for _, c := range text {
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
