package interp

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// procPipeline is a launched (but not yet waited-on) pipeline: n commands
// joined by n-1 pipes, all started concurrently and placed in one process
// group so a single SIGINT can be delivered to the whole pipeline at once
// (spec.md §5 "concurrency & resource model"). Grounded on the teacher's
// cmd/wsh/pipeline.go Pipeline type, generalized from raw os.Pipe wiring
// to process-group signaling: syscall.SysProcAttr's Setpgid puts each child
// in the group as it starts, and golang.org/x/sys/unix's Kill signals the
// group (the domain dep rcarmo-go-busybox's taskset applet wires x/sys for
// affinity; here it's used for process-group signaling instead), and
// extended to support `|&` (stderr joins the pipe alongside stdout).
type procPipeline struct {
	cmds []*exec.Cmd
	pgid int
}

// buildPipeline constructs the exec.Cmd chain for a parser.Pipeline's
// commands, wiring os.Pipe() between each adjacent pair. argvs[i] is the
// already-expanded argv for commands[i]; stderrToo[i] is true when the
// separator after command i was `|&`.
func buildPipeline(argvs [][]string, stderrToo []bool, env *Env) (*procPipeline, error) {
	cmds := make([]*exec.Cmd, len(argvs))
	for i, argv := range argvs {
		path, ok := lookupPath(env, argv[0])
		if !ok {
			path = argv[0] // let exec.Command fail with the real lookup error
		}
		cmd := exec.Command(path, argv[1:]...)
		cmd.Env = env.ExportedEnviron()
		if pwd, ok := env.Getenv("PWD"); ok {
			cmd.Dir = pwd
		}
		cmd.Stdin = env.Stdin()
		cmd.Stdout = env.Stdout()
		cmd.Stderr = env.Stderr()
		cmds[i] = cmd
	}

	for i := 0; i < len(cmds)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("pipe: %w", err)
		}
		cmds[i].Stdout = w
		if i < len(stderrToo) && stderrToo[i] {
			cmds[i].Stderr = w
		}
		cmds[i+1].Stdin = r
	}

	return &procPipeline{cmds: cmds}, nil
}

// run starts every command in one process group (SysProcAttr.Setpgid,
// set before each Start), closes the pipe ends each process no longer needs, and
// waits for all of them. The returned status is the last command's exit
// status (spec.md §4.3 "Pipeline ... exit status is that of the last
// command"); callers applying `!` negate it themselves.
func (p *procPipeline) run() (int, error) {
	for i, cmd := range p.cmds {
		// First process becomes the group leader; every later command is
		// started directly into that group (spec.md §5's "a pipeline
		// occupies one process group").
		if i == 0 {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		} else {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: p.pgid}
		}
		if err := cmd.Start(); err != nil {
			if i == 0 {
				return 127, nil
			}
			return 126, nil
		}
		if i == 0 {
			p.pgid = cmd.Process.Pid
		}
	}

	for i := 0; i < len(p.cmds)-1; i++ {
		if f, ok := p.cmds[i].Stdout.(*os.File); ok {
			f.Close()
		}
		if f, ok := p.cmds[i+1].Stdin.(*os.File); ok {
			f.Close()
		}
	}

	status := 0
	for _, cmd := range p.cmds {
		status = exitStatusOf(cmd.Wait())
	}
	return status, nil
}

// signal delivers sig to the whole process group, used to forward SIGINT
// from the controlling terminal to a running foreground pipeline
// (spec.md §5's cancellation model).
func (p *procPipeline) signal(sig unix.Signal) error {
	if p.pgid == 0 {
		return nil
	}
	return unix.Kill(-p.pgid, sig)
}

// runExternal runs a single external command (no pipe neighbors), the
// common case of spec.md §4.3 step 3's "resolve name as ... external
// command". extraEnv holds prefix assignments (`FOO=x cmd`), which apply
// only to this child's environment, never to env itself.
func runExternal(env *Env, argv []string, extraEnv []string) int {
	path, ok := lookupPath(env, argv[0])
	if !ok {
		path = argv[0]
	}
	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = append(env.ExportedEnviron(), extraEnv...)
	if pwd, ok := env.Getenv("PWD"); ok {
		cmd.Dir = pwd
	}
	cmd.Stdin = env.Stdin()
	cmd.Stdout = env.Stdout()
	cmd.Stderr = env.Stderr()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 127
	}

	pp := &procPipeline{cmds: []*exec.Cmd{cmd}, pgid: cmd.Process.Pid}
	env.setRunning(pp)
	defer env.clearRunning(pp)

	status := exitStatusOf(cmd.Wait())
	if env.Canceled() {
		return env.ExitStatus()
	}
	return status
}

// exitStatusOf reports a finished child's exit status, including spec.md
// §3/§6's `128+signum` convention for a signal-killed child (a plain
// ExitCode() returns -1 for those, not the signal number).
func exitStatusOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	if _, ok := err.(*os.PathError); ok {
		return 127
	}
	return 126
}
