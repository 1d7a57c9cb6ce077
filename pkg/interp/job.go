package interp

import (
	"os"
	"sync"
)

// bgTracker records processes started with a trailing `&` so the no-argument
// `wait` built-in can block until they all exit (SPEC_FULL.md §4's
// confirmed supplement). This is deliberately NOT the teacher's
// cmd/wsh/job.go: that file carries a full Job/JobTable with job IDs,
// %-syntax lookup, fg/bg, SIGCONT/SIGTERM/SIGKILL signaling and a
// JobRunning/JobStopped/JobDone/JobTerminated state machine — all of it in
// service of `jobs`/`fg`/`bg`, which SPEC_FULL.md §5 excludes outright (no
// job-control table of any kind). What survives here is only the piece
// those builtins don't own: knowing which background PIDs exist and
// collecting their exit status, grounded on the *shape* of
// JobTable.AddJob/Job.Wait but with everything job-ID- and
// foreground/background-switching related cut.
type bgTracker struct {
	mu   sync.Mutex
	cmds []bgProc
}

type bgProc struct {
	pid int
	// wait blocks until the process exits and returns its exit status,
	// mirroring os.Process.Wait without pulling in the full teacher-style
	// Process/Job wrapper this spec no longer needs.
	wait func() int
}

func newBgTracker() *bgTracker {
	return &bgTracker{}
}

// track registers a background process, recording just enough to wait on it
// later (pid for reporting, wait for blocking).
func (t *bgTracker) track(proc *os.Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmds = append(t.cmds, bgProc{
		pid: proc.Pid,
		wait: func() int {
			state, err := proc.Wait()
			if err != nil {
				return 127
			}
			return state.ExitCode()
		},
	})
}

// trackFunc registers a backgrounded shell construct that has no OS PID of
// its own (a builtin, a function call, a compound command run with `&`):
// wait just blocks on the goroutine exec.go spawned for it.
func (t *bgTracker) trackFunc(wait func() int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmds = append(t.cmds, bgProc{pid: -1, wait: wait})
}

// waitAll blocks until every tracked process has exited, returning the exit
// status of the last one (spec.md's exit-code table has no special entry
// for `wait`; bash itself returns the last-waited status here).
func (t *bgTracker) waitAll() int {
	t.mu.Lock()
	pending := t.cmds
	t.cmds = nil
	t.mu.Unlock()

	status := 0
	for _, p := range pending {
		status = p.wait()
	}
	return status
}
