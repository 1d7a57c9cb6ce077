// Package parser implements the grammar and parser component (C1) of
// the shell's execution pipeline: lexing and recursive-descent parsing of
// shell source text into the AST defined in ast.go/arith.go/testexpr.go.
//
// Grounded on the teacher's pkg/parser/parser.go (one-token-lookahead,
// parseList/parsePipeline/parseCommand shape), generalized to the full
// POSIX+bash grammar: compound commands, functions, here-documents,
// `[[ ]]` tests and `(( ))` arithmetic commands.
package parser

import "fmt"

// ParseError carries the byte offset of a failed parse alongside a message,
// mirroring the teacher's plain-error parser but giving callers (cmd/shell)
// enough to point at a location in the source.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// Parser is a one-token-lookahead recursive-descent parser over a Lexer.
type Parser struct {
	lexer           *Lexer
	tok             Token
	pendingHeredocs []*Heredoc
}

// NewParser creates a Parser over the given shell source.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	p.tok = p.lexer.NextToken()
	return p
}

// Parse parses a complete program: a list of and/or chains separated by
// `;`, `&`, or newlines, through EOF.
func Parse(input string) (*CompleteCommand, error) {
	p := NewParser(input)
	cc, err := p.parseList(func() bool { return false })
	if err != nil {
		return nil, err
	}
	if p.tok.Type != EOF {
		return nil, p.errorf("unexpected token %s", p.tok)
	}
	return cc, nil
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Pos: p.tok.Pos, Message: fmt.Sprintf(format, args...)}
}

// next advances to the next token. If the token being left behind is a
// NEWLINE and here-documents are pending, their bodies are read from the
// raw source first — this is the exact point in the grammar where bash
// itself starts reading a heredoc body, before any further tokenization of
// the following line.
func (p *Parser) next() {
	if p.tok.Type == NEWLINE && len(p.pendingHeredocs) > 0 {
		p.resolveHeredocs()
	}
	p.tok = p.lexer.NextToken()
}

func (p *Parser) resolveHeredocs() {
	pending := p.pendingHeredocs
	p.pendingHeredocs = nil
	for _, h := range pending {
		var body []byte
		for {
			line, ok := p.lexer.ReadLineRaw()
			if !ok {
				break // unterminated heredoc; accept what we have
			}
			cmp := line
			if h.Op == RedirHeredocNoTab {
				cmp = trimLeadingTabs(line)
			}
			if cmp == h.Delim {
				break
			}
			if h.Op == RedirHeredocNoTab {
				line = trimLeadingTabs(line)
			}
			body = append(body, line...)
			body = append(body, '\n')
		}
		h.Body = string(body)
	}
}

func trimLeadingTabs(s string) string {
	i := 0
	for i < len(s) && s[i] == '\t' {
		i++
	}
	return s[i:]
}

func (p *Parser) wordIs(s string) bool { return p.tok.Type == WORD && p.tok.Text == s }

func (p *Parser) wordIsAny(ss ...string) bool {
	for _, s := range ss {
		if p.wordIs(s) {
			return true
		}
	}
	return false
}

func (p *Parser) skipNewlines() {
	for p.tok.Type == NEWLINE {
		p.next()
	}
}

// parseList parses a sequence of and/or chains until stop() reports true or
// EOF is reached.
func (p *Parser) parseList(stop func() bool) (*CompleteCommand, error) {
	cc := &CompleteCommand{}
	for {
		p.skipNewlines()
		if stop() || p.tok.Type == EOF {
			break
		}
		andor, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		sep := SepNone
		switch p.tok.Type {
		case SEMI:
			sep = SepSemi
			p.next()
		case AMP:
			sep = SepAmp
			p.next()
		case NEWLINE:
			sep = SepNewline
			p.next()
		}
		cc.Items = append(cc.Items, AndOrItem{AndOr: andor, Sep: sep})
		if sep == SepNone {
			break
		}
	}
	return cc, nil
}

func (p *Parser) parseAndOr() (*AndOr, error) {
	first, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	andor := &AndOr{Pipelines: []*Pipeline{first}}
	for {
		var op AndOrOp
		switch p.tok.Type {
		case AND_IF:
			op = OpAnd
		case OR_IF:
			op = OpOr
		default:
			return andor, nil
		}
		p.next()
		p.skipNewlines()
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		andor.Pipelines = append(andor.Pipelines, next)
		andor.Ops = append(andor.Ops, op)
	}
}

func (p *Parser) parsePipeline() (*Pipeline, error) {
	negate := false
	for p.tok.Type == BANG {
		negate = !negate
		p.next()
	}
	first, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	pipe := &Pipeline{Negate: negate, Commands: []Command{first}}
	for {
		var op PipeKind
		switch p.tok.Type {
		case PIPE:
			op = PipeNormal
		case PIPE_AND:
			op = PipeStderrToo
		default:
			return pipe, nil
		}
		p.next()
		p.skipNewlines()
		next, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pipe.Commands = append(pipe.Commands, next)
		pipe.PipeOps = append(pipe.PipeOps, op)
	}
}

func (p *Parser) parseCommand() (Command, error) {
	switch {
	case p.tok.Type == LPAREN:
		return p.parseSubshell()
	case p.tok.Type == LBRACE:
		return p.parseBraceGroup()
	case p.tok.Type == DLPAREN:
		return p.parseArithCommand()
	case p.tok.Type == DLBRACKET:
		return p.parseTestCommand()
	case p.wordIs("if"):
		return p.parseIf()
	case p.wordIs("while"):
		return p.parseWhileUntil(false)
	case p.wordIs("until"):
		return p.parseWhileUntil(true)
	case p.wordIs("for"):
		return p.parseFor()
	case p.wordIs("case"):
		return p.parseCase()
	case p.wordIs("function"):
		return p.parseFunctionDef()
	default:
		return p.parseSimpleCommandOrFuncDef()
	}
}

// parseTrailingRedirs consumes redirections attached directly after a
// compound command's closing keyword/token (e.g. `done < input`).
func (p *Parser) parseTrailingRedirs() ([]*Redirect, error) {
	var redirs []*Redirect
	for p.isRedirectStart() {
		r, err := p.parseRedirect()
		if err != nil {
			return nil, err
		}
		redirs = append(redirs, r)
	}
	return redirs, nil
}

func (p *Parser) isRedirectStart() bool {
	switch p.tok.Type {
	case LESS, GREAT, DLESS, DLESSDASH, DGREAT, LESSAND, GREATAND, LESSGREAT,
		CLOBBER, AND_GREAT, AND_DGREAT, IONUMBER:
		return true
	}
	return false
}

func (p *Parser) parseSubshell() (Command, error) {
	p.next() // (
	body, err := p.parseList(func() bool { return p.tok.Type == RPAREN })
	if err != nil {
		return nil, err
	}
	if p.tok.Type != RPAREN {
		return nil, p.errorf("expected ')', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: Subshell{List: body}, Redirs: redirs}, nil
}

func (p *Parser) parseBraceGroup() (Command, error) {
	p.next() // {
	body, err := p.parseList(func() bool { return p.tok.Type == RBRACE })
	if err != nil {
		return nil, err
	}
	if p.tok.Type != RBRACE {
		return nil, p.errorf("expected '}', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: BraceGroup{List: body}, Redirs: redirs}, nil
}

func (p *Parser) parseArithCommand() (Command, error) {
	// p.tok is DLPAREN; the lexer already advanced past "((" when it
	// produced that token, so the body can be scanned directly from the
	// lexer's current position without going through p.next() (which would
	// try, and fail, to tokenize arithmetic text as shell syntax).
	src := p.lexer.ScanArithBody()
	expr, err := ParseArith(src)
	if err != nil {
		return nil, err
	}
	p.tok = p.lexer.NextToken()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: ArithCommand{Expr: expr}, Redirs: redirs}, nil
}

func (p *Parser) parseIf() (Command, error) {
	p.next() // if
	ifc := &IfClause{}
	for {
		cond, err := p.parseList(func() bool { return p.wordIs("then") })
		if err != nil {
			return nil, err
		}
		if !p.wordIs("then") {
			return nil, p.errorf("expected 'then', got %s", p.tok)
		}
		p.next()
		then, err := p.parseList(func() bool { return p.wordIsAny("elif", "else", "fi") })
		if err != nil {
			return nil, err
		}
		ifc.Conds = append(ifc.Conds, cond)
		ifc.Thens = append(ifc.Thens, then)
		if p.wordIs("elif") {
			p.next()
			continue
		}
		break
	}
	if p.wordIs("else") {
		p.next()
		elseBody, err := p.parseList(func() bool { return p.wordIs("fi") })
		if err != nil {
			return nil, err
		}
		ifc.Else = elseBody
	}
	if !p.wordIs("fi") {
		return nil, p.errorf("expected 'fi', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: *ifc, Redirs: redirs}, nil
}

func (p *Parser) parseWhileUntil(until bool) (Command, error) {
	p.next() // while/until
	cond, err := p.parseList(func() bool { return p.wordIs("do") })
	if err != nil {
		return nil, err
	}
	if !p.wordIs("do") {
		return nil, p.errorf("expected 'do', got %s", p.tok)
	}
	p.next()
	body, err := p.parseList(func() bool { return p.wordIs("done") })
	if err != nil {
		return nil, err
	}
	if !p.wordIs("done") {
		return nil, p.errorf("expected 'done', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	var cb CompoundBody
	if until {
		cb = UntilClause{Cond: cond, Body: body}
	} else {
		cb = WhileClause{Cond: cond, Body: body}
	}
	return &CompoundCommand{Body: cb, Redirs: redirs}, nil
}

func (p *Parser) parseFor() (Command, error) {
	p.next() // for
	if p.tok.Type != WORD {
		return nil, p.errorf("expected name after 'for', got %s", p.tok)
	}
	varName := p.tok.Text
	p.next()
	p.skipNewlines()
	var words []*Word
	hasIn := false
	if p.wordIs("in") {
		hasIn = true
		p.next()
		for p.tok.Type == WORD {
			words = append(words, &Word{Raw: p.tok.Text})
			p.next()
		}
		if p.tok.Type == SEMI || p.tok.Type == NEWLINE {
			p.next()
		}
	} else if p.tok.Type == SEMI {
		p.next()
	}
	p.skipNewlines()
	if !p.wordIs("do") {
		return nil, p.errorf("expected 'do', got %s", p.tok)
	}
	p.next()
	body, err := p.parseList(func() bool { return p.wordIs("done") })
	if err != nil {
		return nil, err
	}
	if !p.wordIs("done") {
		return nil, p.errorf("expected 'done', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{
		Body:   ForClause{Var: varName, Words: words, HasIn: hasIn, Body: body},
		Redirs: redirs,
	}, nil
}

func (p *Parser) parseCase() (Command, error) {
	p.next() // case
	if p.tok.Type != WORD {
		return nil, p.errorf("expected word after 'case', got %s", p.tok)
	}
	subject := &Word{Raw: p.tok.Text}
	p.next()
	p.skipNewlines()
	if !p.wordIs("in") {
		return nil, p.errorf("expected 'in', got %s", p.tok)
	}
	p.next()
	p.skipNewlines()
	cc := &CaseClause{Subject: subject}
	for !p.wordIs("esac") {
		if p.tok.Type == LPAREN {
			p.next()
		}
		if p.tok.Type != WORD {
			return nil, p.errorf("expected pattern, got %s", p.tok)
		}
		patterns := []*Word{{Raw: p.tok.Text}}
		p.next()
		for p.tok.Type == PIPE {
			p.next()
			if p.tok.Type != WORD {
				return nil, p.errorf("expected pattern, got %s", p.tok)
			}
			patterns = append(patterns, &Word{Raw: p.tok.Text})
			p.next()
		}
		if p.tok.Type != RPAREN {
			return nil, p.errorf("expected ')', got %s", p.tok)
		}
		p.next()
		p.skipNewlines()
		body, err := p.parseList(func() bool { return p.tok.Type == DSEMI || p.wordIs("esac") })
		if err != nil {
			return nil, err
		}
		cc.Items = append(cc.Items, &CaseItem{Patterns: patterns, Body: body})
		if p.tok.Type == DSEMI {
			p.next()
		}
		p.skipNewlines()
	}
	p.next() // esac
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: *cc, Redirs: redirs}, nil
}

func (p *Parser) parseFunctionDef() (Command, error) {
	p.next() // function
	if p.tok.Type != WORD {
		return nil, p.errorf("expected function name, got %s", p.tok)
	}
	name := p.tok.Text
	p.next()
	if p.tok.Type == LPAREN {
		p.next()
		if p.tok.Type != RPAREN {
			return nil, p.errorf("expected ')', got %s", p.tok)
		}
		p.next()
	}
	p.skipNewlines()
	return p.finishFunctionDef(name)
}

func (p *Parser) finishFunctionDef(name string) (Command, error) {
	bodyCmd, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	compound, ok := bodyCmd.(*CompoundCommand)
	if !ok {
		return nil, p.errorf("function body must be a compound command")
	}
	return &FunctionDef{Name: name, Body: compound}, nil
}

// parseSimpleCommandOrFuncDef parses a simple command, detecting the
// `name() compound-command` function-definition shorthand along the way:
// whenever a bare word is immediately followed by `()`, it is a function
// definition rather than a command with arguments.
func (p *Parser) parseSimpleCommandOrFuncDef() (Command, error) {
	sc := &SimpleCommand{}
	for {
		switch {
		case p.isRedirectStart():
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			sc.Redirs = append(sc.Redirs, r)
		case p.tok.Type == WORD:
			text := p.tok.Text
			if sc.Name == nil && len(sc.Args) == 0 {
				if name, value, ok := isAssignmentWord(text); ok {
					p.next()
					sc.Assigns = append(sc.Assigns, Assignment{Name: name, Value: &Word{Raw: value}})
					continue
				}
			}
			if sc.Name == nil {
				p.next()
				if p.tok.Type == LPAREN {
					p.next()
					if p.tok.Type == RPAREN {
						p.next()
						p.skipNewlines()
						return p.finishFunctionDef(text)
					}
					return nil, p.errorf("expected ')' in function definition, got %s", p.tok)
				}
				sc.Name = &Word{Raw: text}
				continue
			}
			sc.Args = append(sc.Args, &Word{Raw: text})
			p.next()
		default:
			if sc.Name == nil && len(sc.Assigns) == 0 && len(sc.Redirs) == 0 {
				return nil, p.errorf("unexpected token %s", p.tok)
			}
			return sc, nil
		}
	}
}

// isAssignmentWord reports whether text has the form NAME=value, where NAME
// is a valid shell identifier.
func isAssignmentWord(text string) (name, value string, ok bool) {
	idx := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '=' {
			idx = i
			break
		}
		if !isIdentByte(text[i]) || (i == 0 && text[i] >= '0' && text[i] <= '9') {
			return "", "", false
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	return text[:idx], text[idx+1:], true
}

func (p *Parser) parseRedirect() (*Redirect, error) {
	r := &Redirect{}
	if p.tok.Type == IONUMBER {
		fd := 0
		for _, c := range p.tok.Text {
			fd = fd*10 + int(c-'0')
		}
		r.Fd = fd
		r.HasFd = true
		p.next()
	}
	opTok := p.tok.Type
	switch opTok {
	case LESS:
		r.Op = RedirIn
	case GREAT:
		r.Op = RedirOut
	case DGREAT:
		r.Op = RedirAppend
	case CLOBBER:
		r.Op = RedirClobber
	case LESSGREAT:
		r.Op = RedirReadWrite
	case LESSAND:
		r.Op = RedirDupIn
	case GREATAND:
		r.Op = RedirDupOut
	case AND_GREAT:
		r.Op = RedirBothOut
	case AND_DGREAT:
		r.Op = RedirBothApp
	case DLESS:
		r.Op = RedirHeredoc
	case DLESSDASH:
		r.Op = RedirHeredocNoTab
	default:
		return nil, p.errorf("expected redirection operator, got %s", p.tok)
	}
	p.next()
	if !r.HasFd {
		r.Fd = r.DefaultFd()
	}
	if r.Op == RedirHeredoc || r.Op == RedirHeredocNoTab {
		if p.tok.Type != WORD {
			return nil, p.errorf("expected here-document delimiter, got %s", p.tok)
		}
		delim, literal := unquoteDelim(p.tok.Text)
		h := &Heredoc{Delim: delim, Literal: literal, Op: r.Op}
		r.Heredoc = h
		p.pendingHeredocs = append(p.pendingHeredocs, h)
		p.next()
		return r, nil
	}
	if p.tok.Type != WORD {
		return nil, p.errorf("expected redirection target, got %s", p.tok)
	}
	r.Target = &Word{Raw: p.tok.Text}
	p.next()
	return r, nil
}

// unquoteDelim strips quotes/backslash-escapes from a here-document
// delimiter word, reporting whether any were present (which makes the body
// literal: no parameter/command/arithmetic expansion, per spec).
func unquoteDelim(raw string) (delim string, literal bool) {
	var b []byte
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\'', '"':
			literal = true
		case '\\':
			literal = true
			if i+1 < len(raw) {
				i++
				b = append(b, raw[i])
				continue
			}
		default:
			b = append(b, raw[i])
		}
	}
	return string(b), literal
}

// --- [[ ... ]] conditional expressions ---

var testUnaryOps = map[string]bool{
	"-a": true, "-b": true, "-c": true, "-d": true, "-e": true, "-f": true,
	"-g": true, "-h": true, "-k": true, "-p": true, "-r": true, "-s": true,
	"-t": true, "-u": true, "-w": true, "-x": true, "-G": true, "-L": true,
	"-N": true, "-O": true, "-S": true, "-z": true, "-n": true, "-v": true,
	"-R": true, "-o": true,
}

var testBinaryOps = map[string]bool{
	"==": true, "=": true, "!=": true, "-eq": true, "-ne": true,
	"-lt": true, "-le": true, "-gt": true, "-ge": true, "-nt": true,
	"-ot": true, "-ef": true,
}

func (p *Parser) parseTestCommand() (Command, error) {
	p.next() // [[
	expr, err := p.parseTestOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != DRBRACKET {
		return nil, p.errorf("expected ']]', got %s", p.tok)
	}
	p.next()
	redirs, err := p.parseTrailingRedirs()
	if err != nil {
		return nil, err
	}
	return &CompoundCommand{Body: TestCommand{Expr: expr}, Redirs: redirs}, nil
}

func (p *Parser) parseTestOr() (TestNode, error) {
	left, err := p.parseTestAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == OR_IF {
		p.next()
		right, err := p.parseTestAnd()
		if err != nil {
			return nil, err
		}
		left = TestOr{L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseTestAnd() (TestNode, error) {
	left, err := p.parseTestNot()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == AND_IF {
		p.next()
		right, err := p.parseTestNot()
		if err != nil {
			return nil, err
		}
		left = TestAnd{L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseTestNot() (TestNode, error) {
	if p.tok.Type == BANG {
		p.next()
		x, err := p.parseTestNot()
		if err != nil {
			return nil, err
		}
		return TestNot{X: x}, nil
	}
	return p.parseTestPrimary()
}

func (p *Parser) parseTestPrimary() (TestNode, error) {
	if p.tok.Type == LPAREN {
		p.next()
		x, err := p.parseTestOr()
		if err != nil {
			return nil, err
		}
		if p.tok.Type != RPAREN {
			return nil, p.errorf("expected ')', got %s", p.tok)
		}
		p.next()
		return TestGroup{X: x}, nil
	}
	if p.tok.Type == WORD && testUnaryOps[p.tok.Text] {
		op := p.tok.Text
		p.next()
		arg, err := p.parseTestWord()
		if err != nil {
			return nil, err
		}
		return TestUnary{Op: op, Arg: arg}, nil
	}
	left, err := p.parseTestWord()
	if err != nil {
		return nil, err
	}
	if op, ok := p.testBinaryOpText(); ok {
		p.next()
		rhsText := p.tok.Text
		right, err := p.parseTestWord()
		if err != nil {
			return nil, err
		}
		patternRHS := (op == "==" || op == "=" || op == "!=") && !looksQuoted(rhsText)
		return TestBinary{Op: op, L: left, R: right, PatternRHS: patternRHS}, nil
	}
	return TestUnary{Op: "-n", Arg: left}, nil
}

// testBinaryOpText recognizes a binary test operator at the current token,
// including `<`/`>` which the shell-level lexer tokenizes as redirection
// operators but which mean string comparison inside `[[ ]]`.
func (p *Parser) testBinaryOpText() (string, bool) {
	switch p.tok.Type {
	case LESS:
		return "<", true
	case GREAT:
		return ">", true
	case WORD:
		if testBinaryOps[p.tok.Text] {
			return p.tok.Text, true
		}
	}
	return "", false
}

func (p *Parser) parseTestWord() (*Word, error) {
	if p.tok.Type != WORD {
		return nil, p.errorf("expected word, got %s", p.tok)
	}
	w := &Word{Raw: p.tok.Text}
	p.next()
	return w, nil
}

func looksQuoted(raw string) bool {
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\'', '"', '\\':
			return true
		}
	}
	return false
}
