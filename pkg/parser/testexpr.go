package parser

// TestNode is the `[[ ... ]]` conditional-expression AST (spec.md §4.3),
// extended per SPEC_FULL.md §4 with boolean combinators/grouping the way
// bash's own `[[ ]]` supports them.
type TestNode interface{ testNode() }

// TestUnary is a unary operator applied to one word, e.g. `-f file`,
// `-z "$s"`, `-v NAME`.
type TestUnary struct {
	Op  string
	Arg *Word
}

// TestBinary is a binary operator between two words. PatternRHS is true
// when R should be matched as a glob pattern rather than compared
// literally — true for `==`/`=`/`!=` inside `[[ ]]` when R was not quoted
// in the source (spec.md §4.3, §9 "Pattern vs string").
type TestBinary struct {
	Op         string
	L, R       *Word
	PatternRHS bool
}

type TestNot struct{ X TestNode }
type TestAnd struct{ L, R TestNode }
type TestOr struct{ L, R TestNode }
type TestGroup struct{ X TestNode }

func (TestUnary) testNode()  {}
func (TestBinary) testNode() {}
func (TestNot) testNode()    {}
func (TestAnd) testNode()    {}
func (TestOr) testNode()     {}
func (TestGroup) testNode()  {}
