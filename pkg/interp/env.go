// Package interp implements the executor and environment/built-ins
// registry components (C3 + C4) of spec.md: walking the pkg/parser AST,
// managing variable scopes, dispatching to functions/built-ins/external
// commands, and wiring pipelines, redirections, and exit status.
//
// Grounded on the teacher's cmd/wsh (evaluator.go for AST walking,
// builtin.go for the built-in registry, pipeline.go/job.go for process
// orchestration), generalized from wsh's flat single-scope model to
// spec.md §3's scope stack and function table.
package interp

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// binding is one variable's value plus whether it is marked for export to
// spawned-process environments (spec.md §4.4 "export(name) marks the
// binding for inclusion in spawned-process envs").
type binding struct {
	value    string
	exported bool
}

// frame is one level of the scope stack (spec.md §3 "Scope — ordered stack
// of frames"). Function calls push a frame carrying new positional
// parameters; the bottom frame is the global scope.
type frame struct {
	vars   map[string]*binding
	arg0   string
	args   []string
	isFunc bool
}

func newFrame() *frame {
	return &frame{vars: map[string]*binding{}}
}

// Env is the C4 environment: the scope stack, function table, and exit
// status the executor threads through every AST walk. It implements
// pkg/expand.Context, so the word expander can recurse back into the
// executor for command and arithmetic substitution without pkg/expand
// ever importing pkg/interp.
type Env struct {
	frames   []*frame
	funcs    map[string]*CompoundFunc
	status   int
	ifs      string
	stdout   io.Writer
	stderr   io.Writer
	stdin    io.Reader
	Fs       afero.Fs // filesystem -e/-f/-d/... predicates and redirections resolve through
	execFunc func(*Env, string) (output string, status int, err error) // RunCommandSubst hook, set by the executor

	// pending carries a break/continue/return/exit signal a built-in just
	// raised back up through exec.go's AST walk (spec.md §9's decided
	// Open Question: an explicit internal signal, not a host-language panic).
	pending error

	// bg tracks PIDs started with `&` for the no-argument `wait` built-in
	// (job.go). Deliberately not a full job table — see job.go.
	bg *bgTracker

	// runMu guards running/canceled, the SIGINT-cancellation bookkeeping
	// (spec.md §5 "Cancellation"): running is whatever process group or
	// pipeline is currently occupying the foreground, canceled is sticky
	// for the duration of one CompleteCommand so the AST walk can notice it
	// between statements even when nothing is blocked in a syscall.
	runMu    sync.Mutex
	running  cancelable
	canceled bool
}

// cancelable is anything RequestCancel can forward a signal to; procPipeline
// (pipeline.go) implements it via its existing signal method.
type cancelable interface {
	signal(sig unix.Signal) error
}

// setRunning registers the process group/pipeline currently occupying the
// foreground so a SIGINT arriving at the driver loop has something to
// deliver to.
func (e *Env) setRunning(c cancelable) {
	e.runMu.Lock()
	e.running = c
	e.runMu.Unlock()
}

// clearRunning unregisters c, but only if it is still the current occupant
// (a later command may already have replaced it).
func (e *Env) clearRunning(c cancelable) {
	e.runMu.Lock()
	if e.running == c {
		e.running = nil
	}
	e.runMu.Unlock()
}

// ResetCancel clears the sticky cancellation flag before starting a new
// top-level CompleteCommand (spec.md §5: cancellation scope is "the
// currently running command/pipeline", not the whole shell session).
func (e *Env) ResetCancel() {
	e.runMu.Lock()
	e.canceled = false
	e.runMu.Unlock()
}

// Canceled reports whether RequestCancel fired since the last ResetCancel;
// the AST walk (execList, loop bodies) polls this between statements to
// abandon the rest of the current CompleteCommand when nothing is blocked
// in a syscall a signal could interrupt directly.
func (e *Env) Canceled() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.canceled
}

// RequestCancel implements spec.md §5's cancellation: it marks the current
// CompleteCommand canceled, forwards sig to whatever process group is
// currently in the foreground (killing a blocked external pipeline), and
// sets $? to the POSIX 128+signum convention (spec.md §3/§6) so the value is
// already correct even for a canceled command that never reaches
// exitStatusOf.
func (e *Env) RequestCancel(sig unix.Signal) {
	e.runMu.Lock()
	e.canceled = true
	running := e.running
	e.runMu.Unlock()
	if running != nil {
		_ = running.signal(sig)
	}
	e.SetExitStatus(128 + int(sig))
}

// CompoundFunc is a registered shell function body (spec.md §3 "Function
// Table — global map Name→(parameter-less) compound body"). Defined here
// rather than imported from pkg/parser's CompoundCommand type directly so
// this file has no import-time dependency cycle concerns; exec.go sets
// the concrete type.
type CompoundFunc struct {
	Run func(env *Env, args []string) (int, error)
}

// NewEnv builds the initial global frame, seeded from the process
// environment the way a freshly started shell inherits its parent's
// exported variables.
func NewEnv() *Env {
	e := &Env{
		frames: []*frame{newFrame()},
		funcs:  map[string]*CompoundFunc{},
		ifs:    " \t\n",
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
		Fs:     afero.NewOsFs(),
		bg:     newBgTracker(),
	}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			e.frames[0].vars[kv[:i]] = &binding{value: kv[i+1:], exported: true}
		}
	}
	if _, ok := e.frames[0].vars["PWD"]; !ok {
		if wd, err := os.Getwd(); err == nil {
			e.frames[0].vars["PWD"] = &binding{value: wd, exported: true}
		}
	}
	return e
}

func (e *Env) top() *frame { return e.frames[len(e.frames)-1] }

// PushFuncFrame pushes a new scope for a function call, carrying its own
// positional parameters (spec.md §3, §4.3 "push scope with positional
// parameters").
func (e *Env) PushFuncFrame(arg0 string, args []string) {
	f := newFrame()
	f.arg0 = arg0
	f.args = args
	f.isFunc = true
	e.frames = append(e.frames, f)
}

// PopFrame pops the most recently pushed scope (spec.md §3 "Scopes are
// pushed on function/subshell entry and popped on exit on all paths").
func (e *Env) PopFrame() {
	if len(e.frames) > 1 {
		e.frames = e.frames[:len(e.frames)-1]
	}
}

// CloneForSubshell returns a deep-enough copy of Env for `( ... )`
// execution: mutations the subshell makes to variables or cwd must never
// be visible to the parent once it returns (spec.md §4.3 "Subshell").
func (e *Env) CloneForSubshell() *Env {
	clone := &Env{
		funcs:    e.funcs,
		status:   e.status,
		ifs:      e.ifs,
		stdout:   e.stdout,
		stderr:   e.stderr,
		stdin:    e.stdin,
		Fs:       e.Fs,
		execFunc: e.execFunc,
		bg:       e.bg,
	}
	for _, f := range e.frames {
		nf := newFrame()
		for k, v := range f.vars {
			nf.vars[k] = &binding{value: v.value, exported: v.exported}
		}
		nf.arg0, nf.args, nf.isFunc = f.arg0, f.args, f.isFunc
		clone.frames = append(clone.frames, nf)
	}
	return clone
}

// Getenv implements expand.Context: searches from the innermost frame
// outward (spec.md §4.4 "get(name) -> searches current frame then
// parents").
func (e *Env) Getenv(name string) (string, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if b, ok := e.frames[i].vars[name]; ok {
			return b.value, true
		}
	}
	return "", false
}

// Setenv implements expand.Context and spec.md §4.4's set(): it mutates
// the nearest enclosing frame that already defines name, else the global
// frame — this is precisely what keeps `set_local(){ FOO=local; }`
// (spec.md §8 scenario 8, §9's decided Open Question) hitting the global
// frame rather than some implicit per-function scope.
func (e *Env) Setenv(name, value string) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if b, ok := e.frames[i].vars[name]; ok {
			b.value = value
			return
		}
	}
	e.frames[0].vars[name] = &binding{value: value}
}

// SetLocalToFrame assigns into the current (innermost) frame regardless of
// whether an outer frame already binds name — used for the prefix
// assignments of a function or builtin call (`FOO=x cmd`) and by
// `export NAME=value`. The binding stays in that frame after the command
// returns; an external command's prefix assignments go only into the
// child's environment and do not pass through here.
func (e *Env) SetLocalToFrame(name, value string) {
	e.top().vars[name] = &binding{value: value}
}

// Export marks name for inclusion in spawned-process environments
// (spec.md §4.4 "export(name)"). If name isn't bound anywhere yet, it is
// created (empty) in the global frame, matching bash's `export UNSET_VAR`.
func (e *Env) Export(name string) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if b, ok := e.frames[i].vars[name]; ok {
			b.exported = true
			return
		}
	}
	e.frames[0].vars[name] = &binding{exported: true}
}

// Unset removes name from every visible frame (spec.md §4.4 "unset(name)
// removes from all visible frames").
func (e *Env) Unset(name string) {
	for _, f := range e.frames {
		delete(f.vars, name)
	}
}

// ExportedEnviron returns the "NAME=value" pairs visible to a spawned
// child process: every exported binding, innermost frame wins ties.
func (e *Env) ExportedEnviron() []string {
	seen := map[string]string{}
	for _, f := range e.frames {
		for name, b := range f.vars {
			if b.exported {
				seen[name] = b.value
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k, v := range seen {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *Env) ExitStatus() int       { return e.status }
func (e *Env) SetExitStatus(n int)   { e.status = n & 0xff }
func (e *Env) IFS() string {
	if v, ok := e.Getenv("IFS"); ok {
		return v
	}
	return e.ifs
}

// Positional implements expand.Context: $0 is the innermost frame's arg0
// if this is a function frame, else the script-level arg0 carried on the
// global frame; $1... are the innermost function frame's positional
// parameters, or the script's own if no function is active.
func (e *Env) Positional() (string, []string) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].isFunc {
			return e.frames[i].arg0, e.frames[i].args
		}
	}
	return e.frames[0].arg0, e.frames[0].args
}

// SetPositional sets $0/$1... on the innermost function frame, or on the
// global frame when no function is active.
func (e *Env) SetPositional(arg0 string, args []string) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].isFunc {
			e.frames[i].arg0 = arg0
			e.frames[i].args = args
			return
		}
	}
	e.frames[0].arg0 = arg0
	e.frames[0].args = args
}

func (e *Env) Shift(n int) error {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].isFunc {
			return shiftArgs(&e.frames[i].args, n)
		}
	}
	return shiftArgs(&e.frames[0].args, n)
}

func shiftArgs(args *[]string, n int) error {
	if n < 0 {
		return fmt.Errorf("shift: %d: shift count out of range", n)
	}
	if n > len(*args) {
		*args = nil
		return nil
	}
	*args = (*args)[n:]
	return nil
}

// DefineFunc registers a shell function (spec.md §4.4 "define(name, body)").
func (e *Env) DefineFunc(name string, fn *CompoundFunc) {
	e.funcs[name] = fn
}

// LookupFunc implements spec.md §4.4 "lookup(name)".
func (e *Env) LookupFunc(name string) (*CompoundFunc, bool) {
	fn, ok := e.funcs[name]
	return fn, ok
}

// RunCommandSubst implements expand.Context by delegating to the hook the
// executor installs at construction (exec.go), which actually parses and
// runs src as a complete command list against this Env.
func (e *Env) RunCommandSubst(src string) (string, error) {
	if e.execFunc == nil {
		return "", fmt.Errorf("command substitution unavailable")
	}
	out, status, err := e.execFunc(e, src)
	e.status = status
	return out, err
}

// EvalArith implements expand.Context via the shared arithmetic evaluator
// in arith.go, which also needs Env for variable reads/writes.
func (e *Env) EvalArith(src string) (int64, error) {
	return EvalArithString(e, src)
}

// Stdout, Stderr and Stdin return the streams built-ins and redirections
// (redirect.go) read and write. Redirection swaps these for the duration of
// one command's dispatch and restores them afterward (spec.md §4.3 step 5).
// They are the interface types rather than *os.File so a redirection target
// opened through Fs (an afero.Fs, possibly an in-memory one in tests) can be
// installed here just as a real OS file descriptor can.
func (e *Env) Stdout() io.Writer { return e.stdout }
func (e *Env) Stderr() io.Writer { return e.stderr }
func (e *Env) Stdin() io.Reader  { return e.stdin }

func (e *Env) SetStdout(w io.Writer) { e.stdout = w }
func (e *Env) SetStderr(w io.Writer) { e.stderr = w }
func (e *Env) SetStdin(r io.Reader)  { e.stdin = r }

// SetExecFunc installs the command-substitution/subshell-running hook
// (exec.go), bridging back from pkg/expand.Context without an import cycle.
func (e *Env) SetExecFunc(fn func(*Env, string) (string, int, error)) {
	e.execFunc = fn
}
