package interp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pborman/getopt/v2"
)

// Builtin is a registered built-in command: argv[0] is its own name.
// Grounded on the teacher's cmd/wsh/builtin.go BuiltinFunc/BuiltinCommand
// shape, generalized to take *Env (for the scope stack, exit status and
// redirected streams) instead of reading/writing process globals directly,
// and trimmed to exactly spec.md §4.4's minimum set plus SPEC_FULL.md §4's
// `shift`/`wait` supplements. `jobs`/`fg`/`bg`/`alias`/`history`/`set` from
// the teacher's registry are deliberately not carried forward — job control
// and aliasing are out of scope (SPEC_FULL.md §5).
type Builtin func(env *Env, args []string) int

var builtins map[string]Builtin

func init() {
	builtins = map[string]Builtin{
		"echo":     biEcho,
		"export":   biExport,
		"unset":    biUnset,
		"cd":       biCd,
		"exit":     biExit,
		"return":   biReturn,
		"break":    biBreak,
		"continue": biContinue,
		":":        biTrue,
		"true":     biTrue,
		"false":    biFalse,
		"test":     biTest,
		"[":        biTestBracket,
		"which":    biWhich,
		"printf":   biPrintf,
		"shift":    biShift,
		"wait":     biWait,
	}
}

// LookupBuiltin implements spec.md §4.4's builtin-registry half of command
// resolution.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtins[name]
	return b, ok
}

// IsBuiltin reports whether name resolves to a built-in, for the executor's
// function > builtin > external resolution order (spec.md §4.3 step 3).
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func biEcho(env *Env, args []string) int {
	opts := getopt.New()
	noNewline := opts.Bool('n', "do not output the trailing newline")
	if err := opts.Getopt(args, nil); err != nil {
		// bash's echo ignores unknown flags and prints them as words;
		// mirror that rather than failing, since echo has no real usage error.
		fmt.Fprint(env.Stdout(), strings.Join(args[1:], " "))
		fmt.Fprintln(env.Stdout())
		return 0
	}
	rest := opts.Args()
	fmt.Fprint(env.Stdout(), strings.Join(rest, " "))
	if !*noNewline {
		fmt.Fprintln(env.Stdout())
	}
	return 0
}

func biExport(env *Env, args []string) int {
	opts := getopt.New()
	printMode := opts.Bool('p', "print all exported names")
	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(env.Stderr(), "export: %s\n", err)
		return 2
	}
	rest := opts.Args()

	if *printMode || len(rest) == 0 {
		names := env.ExportedEnviron()
		sort.Strings(names)
		for _, kv := range names {
			fmt.Fprintf(env.Stdout(), "export %s\n", kv)
		}
		return 0
	}

	for _, a := range rest {
		if i := strings.IndexByte(a, '='); i >= 0 {
			env.SetLocalToFrame(a[:i], a[i+1:])
			env.Export(a[:i])
		} else {
			env.Export(a)
		}
	}
	return 0
}

func biUnset(env *Env, args []string) int {
	opts := getopt.New()
	opts.Bool('f', "treat NAME as a function")
	opts.Bool('v', "treat NAME as a variable")
	unsetFunc := false
	for _, a := range args[1:] {
		if a == "-f" {
			unsetFunc = true
		}
	}
	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintf(env.Stderr(), "unset: %s\n", err)
		return 2
	}
	for _, name := range opts.Args() {
		if unsetFunc {
			delete(env.funcs, name)
		} else {
			env.Unset(name)
		}
	}
	return 0
}

func biCd(env *Env, args []string) int {
	dir, _ := env.Getenv("HOME")
	switch len(args) {
	case 1:
		// cd with no argument goes to $HOME.
	case 2:
		if args[1] == "-" {
			prev, ok := env.Getenv("OLDPWD")
			if !ok {
				fmt.Fprintln(env.Stderr(), "cd: OLDPWD not set")
				return 1
			}
			dir = prev
		} else {
			dir = args[1]
		}
	default:
		fmt.Fprintln(env.Stderr(), "cd: too many arguments")
		return 1
	}

	old, _ := env.Getenv("PWD")
	resolved := dir
	if !strings.HasPrefix(dir, "/") && old != "" {
		resolved = old + "/" + dir
	}
	info, err := env.Fs.Stat(resolved)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(env.Stderr(), "cd: %s: No such file or directory\n", dir)
		return 1
	}
	env.Setenv("OLDPWD", old)
	env.Setenv("PWD", resolved)
	return 0
}

// controlFlow carries break/continue/return across the AST walk without
// host-language panics (spec.md §9's decided Open Question: an explicit
// internal signal value, not exceptions).
type controlFlow struct {
	kind  cfKind
	n     int
	code  int
}

type cfKind int

const (
	cfNone cfKind = iota
	cfBreak
	cfContinue
	cfReturn
	cfExit
)

// builtinSignal lets break/continue/return/exit communicate their effect
// back up through exec.go's AST walk. A builtin (which returns only an int
// status) leaves it in env.pending for exec.go to pick up after the call; a
// function body's signal comes back as the error of CompoundFunc.Run, which
// exec.go recovers with a type assertion (asSignal).
type builtinSignal struct{ cf controlFlow }

func (s *builtinSignal) Error() string { return "shell control flow signal" }

func biBreak(env *Env, args []string) int {
	n := 1
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
			n = v
		}
	}
	env.pending = &builtinSignal{cf: controlFlow{kind: cfBreak, n: n}}
	return 0
}

func biContinue(env *Env, args []string) int {
	n := 1
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
			n = v
		}
	}
	env.pending = &builtinSignal{cf: controlFlow{kind: cfContinue, n: n}}
	return 0
}

func biReturn(env *Env, args []string) int {
	code := env.ExitStatus()
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			code = v
		}
	}
	env.pending = &builtinSignal{cf: controlFlow{kind: cfReturn, code: code}}
	return code & 0xff
}

func biExit(env *Env, args []string) int {
	code := env.ExitStatus()
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			code = v
		}
	}
	env.pending = &builtinSignal{cf: controlFlow{kind: cfExit, code: code}}
	return code & 0xff
}

func biTrue(env *Env, args []string) int  { return 0 }
func biFalse(env *Env, args []string) int { return 1 }

func biTest(env *Env, args []string) int {
	ok, err := evalTestArgv(env, args[1:])
	if err != nil {
		fmt.Fprintf(env.Stderr(), "test: %s\n", err)
		return 2
	}
	if ok {
		return 0
	}
	return 1
}

func biTestBracket(env *Env, args []string) int {
	a := args[1:]
	if len(a) == 0 || a[len(a)-1] != "]" {
		fmt.Fprintln(env.Stderr(), "[: missing closing ]")
		return 2
	}
	return biTest(env, append([]string{"test"}, a[:len(a)-1]...))
}

func biWhich(env *Env, args []string) int {
	status := 0
	for _, name := range args[1:] {
		if IsBuiltin(name) {
			fmt.Fprintf(env.Stdout(), "%s: shell built-in command\n", name)
			continue
		}
		if _, ok := env.LookupFunc(name); ok {
			fmt.Fprintf(env.Stdout(), "%s: shell function\n", name)
			continue
		}
		path, ok := lookupPath(env, name)
		if !ok {
			fmt.Fprintf(env.Stderr(), "%s not found\n", name)
			status = 1
			continue
		}
		fmt.Fprintln(env.Stdout(), path)
	}
	return status
}

func biShift(env *Env, args []string) int {
	n := 1
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(env.Stderr(), "shift: %s: numeric argument required\n", args[1])
			return 1
		}
		n = v
	}
	if err := env.Shift(n); err != nil {
		fmt.Fprintf(env.Stderr(), "shift: %s\n", err)
		return 1
	}
	return 0
}

// biWait implements the no-argument form only (SPEC_FULL.md §4's
// confirmed supplement): block until every tracked background PID (job.go)
// has exited, returning the status of the last one to finish. Waiting on a
// specific PID/job is out of scope, since there is no job table to name one
// against (SPEC_FULL.md §5's job-control Non-goal).
func biWait(env *Env, args []string) int {
	if len(args) > 1 {
		fmt.Fprintln(env.Stderr(), "wait: waiting on a specific job is not supported")
		return 2
	}
	return env.bg.waitAll()
}

func biPrintf(env *Env, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(env.Stderr(), "printf: usage: printf format [arguments]")
		return 2
	}
	format := args[1]
	vals := args[2:]
	out, err := runPrintf(env.Stdout(), format, vals)
	if err != nil {
		fmt.Fprintf(env.Stderr(), "printf: %s\n", err)
		return 1
	}
	_ = out
	return 0
}

// runPrintf interprets bash printf's %-directive subset (%s %d %i %x %o %c
// %% plus width/precision) with C-style backslash escapes in the format
// string, cycling the argument list over the format if there are more
// arguments than conversions (POSIX printf behavior).
func runPrintf(w io.Writer, format string, vals []string) (string, error) {
	var out strings.Builder
	idx := 0
	next := func() string {
		if idx < len(vals) {
			v := vals[idx]
			idx++
			return v
		}
		return ""
	}

	apply := func(f string) error {
		i := 0
		for i < len(f) {
			ch := f[i]
			if ch == '\\' && i+1 < len(f) {
				switch f[i+1] {
				case 'n':
					out.WriteByte('\n')
				case 't':
					out.WriteByte('\t')
				case '\\':
					out.WriteByte('\\')
				default:
					out.WriteByte(f[i+1])
				}
				i += 2
				continue
			}
			if ch == '%' && i+1 < len(f) {
				j := i + 1
				for j < len(f) && strings.ContainsRune("-+0123456789.", rune(f[j])) {
					j++
				}
				if j >= len(f) {
					out.WriteByte(ch)
					i++
					continue
				}
				spec := f[i : j+1]
				verb := f[j]
				switch verb {
				case '%':
					out.WriteByte('%')
				case 's':
					fmt.Fprintf(&out, strings.Replace(spec, "%", "%", 1), next())
				case 'd', 'i':
					n, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
					fmt.Fprintf(&out, strings.Replace(spec, string(verb), "d", 1), n)
				case 'x', 'o':
					n, _ := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
					fmt.Fprintf(&out, spec, n)
				case 'c':
					s := next()
					if len(s) > 0 {
						out.WriteByte(s[0])
					}
				default:
					out.WriteString(spec)
				}
				i = j + 1
				continue
			}
			out.WriteByte(ch)
			i++
		}
		return nil
	}

	if len(vals) == 0 {
		if err := apply(format); err != nil {
			return "", err
		}
	} else {
		for idx < len(vals) {
			before := idx
			if err := apply(format); err != nil {
				return "", err
			}
			if idx == before {
				break // format has no conversions; one pass is all that's needed
			}
		}
	}

	s := out.String()
	fmt.Fprint(w, s)
	return s, nil
}

// lookupPath resolves name against $PATH the way the executor does for
// external-command dispatch (spec.md §4.3 step 3), shared here so `which`
// reports exactly what a simple command would actually run.
func lookupPath(env *Env, name string) (string, bool) {
	if strings.ContainsRune(name, '/') {
		if info, err := env.Fs.Stat(name); err == nil && !info.IsDir() {
			return name, true
		}
		return "", false
	}
	pathVar, _ := env.Getenv("PATH")
	for _, dir := range strings.Split(pathVar, string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if info, err := env.Fs.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
