package interp

import (
	"strings"

	"github.com/prefix-dev/shell/pkg/expand"
	"github.com/prefix-dev/shell/pkg/parser"
)

// Execute runs a fully parsed complete command list against env
// (spec.md §4.3's top-level dispatch), and is also what Env's
// command-substitution hook (SetExecFunc) and `cmd/shell`'s driver both
// call into. Grounded on the teacher's cmd/wsh/evaluator.go Eval/evalList
// shape, generalized from its flat &&/|| walk to the full compound-command
// grammar and the break/continue/return/exit signal spec.md §9 calls for.
func Execute(env *Env, cc *parser.CompleteCommand) (int, error) {
	env.ResetCancel()
	status, sig := execList(env, cc)
	if sig != nil {
		if sig.cf.kind == cfExit {
			return sig.cf.code & 0xff, nil
		}
		// A break/continue/return that reaches the top of a complete
		// command with no enclosing loop/function to catch it is simply
		// dropped, matching bash's top-level behavior.
		return status, nil
	}
	return status, nil
}

// asSubshellExec wires Env.RunCommandSubst and `$(...)` command
// substitution back to this package without pkg/expand importing it: it
// parses src, runs it against a cloned Env with stdout captured, and
// returns the captured text with trailing newlines stripped
// (spec.md §4.2 phase 3).
func asSubshellExec(env *Env, src string) (string, int, error) {
	cc, err := parser.Parse(src)
	if err != nil {
		return "", 1, err
	}
	sub := env.CloneForSubshell()
	var buf strings.Builder
	sub.SetStdout(&buf)

	status, _ := execList(sub, cc)
	out := strings.TrimRight(buf.String(), "\n")
	return out, status, nil
}

// InstallExecutor wires env's command-substitution hook to this package's
// executor; called once by the driver (cmd/shell) right after NewEnv.
func InstallExecutor(env *Env) {
	env.SetExecFunc(asSubshellExec)
}

func execList(env *Env, cc *parser.CompleteCommand) (int, *builtinSignal) {
	status := env.ExitStatus()
	for _, item := range cc.Items {
		// A SIGINT delivered to the driver loop (spec.md §5 "Cancellation")
		// marks env canceled and forwards the signal to whatever process
		// group is in the foreground; a construct with nothing blocked in a
		// syscall (a builtin loop, a function call) only notices here,
		// between statements, and abandons the rest of this CompleteCommand.
		if env.Canceled() {
			return env.ExitStatus(), nil
		}
		if item.Sep == parser.SepAmp {
			runBackground(env, item.AndOr)
			status = 0
			env.SetExitStatus(status)
			continue
		}
		s, sig := execAndOr(env, item.AndOr)
		status = s
		env.SetExitStatus(status)
		if sig != nil {
			return status, sig
		}
	}
	return status, nil
}

// runBackground launches andOr without waiting for it, registering it with
// env.bg so the no-argument `wait` built-in can later block on it
// (spec.md §4.3 "Backgrounding").
func runBackground(env *Env, ao *parser.AndOr) {
	sub := env.CloneForSubshell()
	done := make(chan int, 1)
	go func() {
		status, _ := execAndOr(sub, ao)
		done <- status
	}()
	env.bg.trackFunc(func() int { return <-done })
}

func execAndOr(env *Env, ao *parser.AndOr) (int, *builtinSignal) {
	status, sig := execPipeline(env, ao.Pipelines[0])
	if sig != nil {
		return status, sig
	}
	for i, op := range ao.Ops {
		if op == parser.OpAnd && status != 0 {
			continue
		}
		if op == parser.OpOr && status == 0 {
			continue
		}
		status, sig = execPipeline(env, ao.Pipelines[i+1])
		if sig != nil {
			return status, sig
		}
	}
	return status, nil
}

func execPipeline(env *Env, pl *parser.Pipeline) (int, *builtinSignal) {
	var status int
	var sig *builtinSignal

	if len(pl.Commands) == 1 {
		status, sig = execCommand(env, pl.Commands[0])
	} else {
		status, sig = execMultiCommandPipeline(env, pl)
	}

	if pl.Negate {
		if status == 0 {
			status = 1
		} else {
			status = 0
		}
	}
	return status, sig
}

// execMultiCommandPipeline runs an n>1 pipeline. Only plain external
// SimpleCommands participate in the real os/exec pipe wiring (pipeline.go);
// when any stage is a builtin, function, or compound command, the whole
// pipeline runs in-process (execMixedPipeline): the stages run one after
// another, each stage's output is buffered in full and handed to the next
// stage as its stdin, which covers the common `while read; do ...; done < f | ...` shapes
// without needing a full fork/exec model for in-process constructs.
func execMultiCommandPipeline(env *Env, pl *parser.Pipeline) (int, *builtinSignal) {
	// Fast-path: every stage is a pure external simple command, so the
	// whole pipeline can be handed to pipeline.go's real process pipe.
	argvs := make([][]string, len(pl.Commands))
	allExternal := true
	for i, c := range pl.Commands {
		sc, ok := c.(*parser.SimpleCommand)
		if !ok || sc.Name == nil || len(sc.Assigns) > 0 {
			allExternal = false
			break
		}
		name, err := expand.String(env, sc.Name, expand.ModeWord)
		if err != nil {
			return 1, nil
		}
		if IsBuiltin(name) {
			allExternal = false
			break
		}
		if _, ok := env.LookupFunc(name); ok {
			allExternal = false
			break
		}
		args, err := expand.Fields(env, sc.Args, expand.ModeWord)
		if err != nil {
			return 1, nil
		}
		argvs[i] = append([]string{name}, args...)
	}

	if allExternal {
		stderrToo := make([]bool, len(pl.PipeOps))
		for i, op := range pl.PipeOps {
			stderrToo[i] = op == parser.PipeStderrToo
		}
		pp, err := buildPipeline(argvs, stderrToo, env)
		if err != nil {
			return 1, nil
		}
		env.setRunning(pp)
		status, _ := pp.run()
		env.clearRunning(pp)
		if env.Canceled() {
			return env.ExitStatus(), nil
		}
		return status, nil
	}

	// Mixed pipeline: run the stages in-process one after another, each
	// stage's buffered output becoming the next stage's stdin.
	return execMixedPipeline(env, pl)
}

func execMixedPipeline(env *Env, pl *parser.Pipeline) (int, *builtinSignal) {
	n := len(pl.Commands)
	var lastStatus int
	var lastSig *builtinSignal

	stageIn := env.Stdin()
	for i, c := range pl.Commands {
		stage := env.CloneForSubshell()
		stage.SetStdin(stageIn)

		var out *strings.Builder
		if i < n-1 {
			out = &strings.Builder{}
			stage.SetStdout(out)
		} else {
			stage.SetStdout(env.Stdout())
		}

		status, sig := execCommand(stage, c)
		lastStatus, lastSig = status, sig
		if sig != nil {
			return lastStatus, lastSig
		}
		if out != nil {
			stageIn = strings.NewReader(out.String())
		}
	}
	return lastStatus, lastSig
}

func execCommand(env *Env, cmd parser.Command) (int, *builtinSignal) {
	switch c := cmd.(type) {
	case *parser.SimpleCommand:
		return execSimpleCommand(env, c)
	case *parser.CompoundCommand:
		return execCompoundWithRedirs(env, c)
	case *parser.FunctionDef:
		env.DefineFunc(c.Name, &CompoundFunc{
			Run: func(callEnv *Env, args []string) (int, error) {
				status, sig := execCompoundWithRedirs(callEnv, c.Body)
				if sig != nil && sig.cf.kind == cfReturn {
					return sig.cf.code, nil
				}
				if sig != nil && sig.cf.kind == cfExit {
					return sig.cf.code, sig
				}
				return status, nil
			},
		})
		return 0, nil
	}
	return 0, nil
}

func execSimpleCommand(env *Env, sc *parser.SimpleCommand) (int, *builtinSignal) {
	restore, err := applyRedirects(env, sc.Redirs)
	if err != nil {
		writeErr(env, err)
		return 1, nil
	}
	defer restore()

	if sc.Name == nil {
		for _, a := range sc.Assigns {
			v, err := expand.String(env, a.Value, expand.ModeAssignment)
			if err != nil {
				writeErr(env, err)
				return 1, nil
			}
			env.Setenv(a.Name, v)
		}
		return 0, nil
	}

	name, err := expand.String(env, sc.Name, expand.ModeWord)
	if err != nil {
		writeErr(env, err)
		return 1, nil
	}
	if name == "" {
		return 0, nil
	}
	args, err := expand.Fields(env, sc.Args, expand.ModeWord)
	if err != nil {
		writeErr(env, err)
		return 1, nil
	}
	argv := append([]string{name}, args...)

	if fn, ok := env.LookupFunc(name); ok {
		for _, a := range sc.Assigns {
			v, _ := expand.String(env, a.Value, expand.ModeAssignment)
			env.SetLocalToFrame(a.Name, v)
		}
		env.PushFuncFrame(name, args)
		status, err := fn.Run(env, argv)
		env.PopFrame()
		if sig, ok := asSignal(err); ok {
			if sig.cf.kind == cfExit {
				return status, sig
			}
			return status, nil
		}
		return status, nil
	}

	if b, ok := LookupBuiltin(name); ok {
		for _, a := range sc.Assigns {
			v, _ := expand.String(env, a.Value, expand.ModeAssignment)
			env.SetLocalToFrame(a.Name, v)
		}
		status := b(env, argv)
		if env.pending != nil {
			sig := env.pending.(*builtinSignal)
			env.pending = nil
			return status, sig
		}
		return status, nil
	}

	extra := make([]string, 0, len(sc.Assigns))
	for _, a := range sc.Assigns {
		v, _ := expand.String(env, a.Value, expand.ModeAssignment)
		extra = append(extra, a.Name+"="+v)
	}
	status := runExternal(env, argv, extra)
	return status, nil
}

func asSignal(err error) (*builtinSignal, bool) {
	sig, ok := err.(*builtinSignal)
	return sig, ok
}

func writeErr(env *Env, err error) {
	if w := env.Stderr(); w != nil {
		w.Write([]byte(err.Error() + "\n"))
	}
}

func execCompoundWithRedirs(env *Env, cc *parser.CompoundCommand) (int, *builtinSignal) {
	restore, err := applyRedirects(env, cc.Redirs)
	if err != nil {
		writeErr(env, err)
		return 1, nil
	}
	defer restore()
	return execCompoundBody(env, cc.Body)
}

func execCompoundBody(env *Env, body parser.CompoundBody) (int, *builtinSignal) {
	switch b := body.(type) {
	case parser.BraceGroup:
		return execList(env, b.List)
	case parser.Subshell:
		sub := env.CloneForSubshell()
		status, sig := execList(sub, b.List)
		if sig != nil && sig.cf.kind == cfExit {
			return status, sig
		}
		return status, nil
	case parser.IfClause:
		return execIf(env, b)
	case parser.ForClause:
		return execFor(env, b)
	case parser.WhileClause:
		return execLoop(env, b.Cond, b.Body, false)
	case parser.UntilClause:
		return execLoop(env, b.Cond, b.Body, true)
	case parser.CaseClause:
		return execCase(env, b)
	case parser.ArithCommand:
		v, err := evalArith(env, b.Expr)
		if err != nil {
			writeErr(env, err)
			return 1, nil
		}
		if v != 0 {
			return 0, nil
		}
		return 1, nil
	case parser.TestCommand:
		ok, err := EvalTest(env, b.Expr)
		if err != nil {
			writeErr(env, err)
			return 2, nil
		}
		if ok {
			return 0, nil
		}
		return 1, nil
	}
	return 0, nil
}

func execIf(env *Env, b parser.IfClause) (int, *builtinSignal) {
	for i, cond := range b.Conds {
		status, sig := execList(env, cond)
		if sig != nil {
			return status, sig
		}
		if status == 0 {
			return execList(env, b.Thens[i])
		}
	}
	if b.Else != nil {
		return execList(env, b.Else)
	}
	return 0, nil
}

func execFor(env *Env, b parser.ForClause) (int, *builtinSignal) {
	var items []string
	if b.HasIn {
		fs, err := expand.Fields(env, b.Words, expand.ModeWord)
		if err != nil {
			writeErr(env, err)
			return 1, nil
		}
		items = fs
	} else {
		_, items = env.Positional()
	}

	status := 0
	for _, v := range items {
		if env.Canceled() {
			return env.ExitStatus(), nil
		}
		env.Setenv(b.Var, v)
		s, sig := execList(env, b.Body)
		status = s
		if sig != nil {
			stop, propagate := handleLoopSignal(sig)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

func execLoop(env *Env, cond, body *parser.CompleteCommand, until bool) (int, *builtinSignal) {
	status := 0
	for {
		if env.Canceled() {
			return env.ExitStatus(), nil
		}
		cstatus, sig := execList(env, cond)
		if sig != nil {
			return cstatus, sig
		}
		proceed := cstatus == 0
		if until {
			proceed = cstatus != 0
		}
		if !proceed {
			break
		}
		s, sig := execList(env, body)
		status = s
		if sig != nil {
			stop, propagate := handleLoopSignal(sig)
			if propagate != nil {
				return status, propagate
			}
			if stop {
				break
			}
		}
	}
	return status, nil
}

// handleLoopSignal applies one loop level's worth of a break/continue/
// return/exit signal: it decrements multi-level break/continue counts,
// reports whether the enclosing loop should stop iterating entirely, and
// passes return/exit straight through to the caller unchanged. The loop's
// own status (the last command run before the signal) is left in the
// caller's `status` variable rather than overridden here.
func handleLoopSignal(sig *builtinSignal) (stop bool, propagate *builtinSignal) {
	switch sig.cf.kind {
	case cfReturn, cfExit:
		return true, sig
	case cfBreak:
		if sig.cf.n > 1 {
			return true, &builtinSignal{cf: controlFlow{kind: cfBreak, n: sig.cf.n - 1}}
		}
		return true, nil
	case cfContinue:
		if sig.cf.n > 1 {
			return true, &builtinSignal{cf: controlFlow{kind: cfContinue, n: sig.cf.n - 1}}
		}
		return false, nil
	}
	return false, nil
}

func execCase(env *Env, b parser.CaseClause) (int, *builtinSignal) {
	subject, err := expand.String(env, b.Subject, expand.ModeWord)
	if err != nil {
		writeErr(env, err)
		return 1, nil
	}
	for _, item := range b.Items {
		for _, pat := range item.Patterns {
			p, err := expand.String(env, pat, expand.ModePattern)
			if err != nil {
				writeErr(env, err)
				return 1, nil
			}
			if expand.MatchGlob(p, subject) {
				if item.Body == nil {
					return 0, nil
				}
				return execList(env, item.Body)
			}
		}
	}
	return 0, nil
}
