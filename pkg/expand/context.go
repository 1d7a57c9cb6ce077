// Package expand implements the word expander component (C2): the ordered
// tilde/parameter/command-substitution/arithmetic/brace/split/quote-removal
// pipeline that turns an unexpanded parser.Word into final argument
// strings.
//
// Grounded on the teacher's cmd/wsh/evaluator.go, which performs a much
// simpler single-pass `$NAME` substitution; generalized here to the full
// phase pipeline the spec requires, with the teacher's straightforward
// "walk the string, recognize $" style kept as the shape of the segment
// compiler in word.go.
package expand

// Context is the slice of the executor (C3) and environment (C4) that word
// expansion needs. pkg/interp implements this so pkg/expand never imports
// pkg/interp, avoiding a cycle between the two halves of the pipeline that
// spec.md describes as "C2 itself recurses into C1+C3 for command
// substitutions and arithmetic subexpressions".
type Context interface {
	// Getenv returns a shell variable's value and whether it is set at all
	// — unset vs. set-but-empty changes the behavior of several parameter
	// modifiers.
	Getenv(name string) (value string, set bool)
	Setenv(name, value string)

	// ExitStatus returns the most recently completed command's exit
	// status, for `$?`.
	ExitStatus() int

	// Positional returns $0 and the current frame's $1... positional
	// parameters, backing $@/$*/$#/$N.
	Positional() (arg0 string, args []string)

	// IFS returns the current field-separator string (default " \t\n").
	IFS() string

	// RunCommandSubst executes src as a complete command list and returns
	// its captured stdout with trailing newlines stripped.
	RunCommandSubst(src string) (string, error)

	// EvalArith evaluates an arithmetic expression string, reading and
	// writing shell variables as side effects may require (`$((x=1))`).
	EvalArith(src string) (int64, error)
}
