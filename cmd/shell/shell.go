// Package main implements the shell's driver: stdin pump, prompt, and
// SIGINT forwarding. Per spec.md §1's Non-goals the interactive line editor
// and CLI flag parsing are external collaborators, so this stays the same
// shape as the teacher's cmd/wsh/shell.go loop, generalized from its
// single-line evalList call to pkg/parser.Parse + pkg/interp.Execute.
// Non-interactive input is read whole and parsed as one unit, so
// here-documents and `if`/`for`/... bodies may span several lines there;
// in interactive mode each line read is parsed and run on its own, so a
// construct spanning several lines does not parse at the prompt.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"

	"github.com/prefix-dev/shell/pkg/interp"
	"github.com/prefix-dev/shell/pkg/parser"
)

var errColor = color.New(color.FgRed, color.Bold)

// Shell is the interactive/non-interactive driver wrapping one interp.Env.
// Grounded on the teacher's Shell struct (Prompt/Stdin/Stdout/Stderr/
// Interactive), trimmed of History/Alias/JobTable (alias and job control are
// Non-goals; SPEC_FULL.md §5).
type Shell struct {
	Config      *interp.Config
	Env         *interp.Env
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Interactive bool
}

// NewShell builds a Shell with a fresh interp.Env wired to the real OS
// filesystem and streams, exactly as a freshly started bash process would be.
func NewShell() *Shell {
	cfg := interp.DefaultConfig()
	env := interp.NewEnv()
	cfg.Apply(env)
	interp.InstallExecutor(env)

	return &Shell{
		Config:      cfg,
		Env:         env,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: isInteractive(),
	}
}

func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Run starts the shell's main loop: interactive mode prompts and forwards
// SIGINT to the currently running foreground command, aborting whatever is
// left of the current CompleteCommand and setting $? to 130 (spec.md §5
// "Cancellation"); non-interactive mode just drains stdin the same way.
func (s *Shell) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	defer signal.Stop(sigChan)

	if !s.Interactive {
		return s.runNonInteractive(sigChan)
	}

	scanner := bufio.NewScanner(s.Stdin)
	for {
		fmt.Fprint(s.Stdout, s.Config.PS1)

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(s.Stdout)
			break
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := s.executeInterruptible(line, sigChan); err != nil {
			errColor.Fprintf(s.Stderr, "shell: %s\n", err)
		}
	}
	return nil
}

func (s *Shell) runNonInteractive(sigChan <-chan os.Signal) error {
	data, err := io.ReadAll(s.Stdin)
	if err != nil {
		return err
	}
	return s.executeInterruptible(string(data), sigChan)
}

// execute parses src as a complete command list and runs it against s.Env,
// updating $? the way interp.Execute's caller is expected to.
func (s *Shell) execute(src string) error {
	cc, err := parser.Parse(src)
	if err != nil {
		return err
	}
	status, err := interp.Execute(s.Env, cc)
	if err != nil {
		return err
	}
	s.Env.SetExitStatus(status)
	return nil
}

// executeInterruptible runs execute on a separate goroutine so Run's loop
// can select between it finishing normally and a SIGINT arriving on
// sigChan. A SIGINT calls Env.RequestCancel, which forwards the signal to
// whatever foreground pipeline is running, sets $? to 130, and makes the
// rest of src's CompleteCommand abandon itself the next time the AST walk
// checks Env.Canceled.
func (s *Shell) executeInterruptible(src string, sigChan <-chan os.Signal) error {
	done := make(chan error, 1)
	go func() {
		done <- s.execute(src)
	}()

	for {
		select {
		case err := <-done:
			return err
		case <-sigChan:
			s.Env.RequestCancel(unix.SIGINT)
			fmt.Fprintln(s.Stdout)
		}
	}
}

// ExecuteString runs a single `-c` command string and returns its exit
// status, used by main.go's `-c` flag.
func (s *Shell) ExecuteString(src string) (int, error) {
	if err := s.execute(src); err != nil {
		return 1, err
	}
	return s.Env.ExitStatus(), nil
}
