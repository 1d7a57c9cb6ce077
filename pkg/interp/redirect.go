package interp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/prefix-dev/shell/pkg/expand"
	"github.com/prefix-dev/shell/pkg/parser"
)

// savedStream is one entry of the "scratch table of (target_fd,
// replacement_fd)" spec.md §5 describes: what a redirection changed, and
// what to put back once the command it decorates has finished.
type savedStream struct {
	fd  int
	old interface{} // the previous io.Writer/io.Reader on that fd, or nil if unset
}

// applyRedirects opens every redirection target against env.Fs, installs it
// on env's stdin/stdout/stderr according to Fd, and returns a restore
// function undoing all of it — spec.md §4.3 step 5's "apply redirections
// around dispatch, restoring fds after". Only fd 0/1/2 are modeled, since
// that covers every construct spec.md names; arbitrary fd duplication
// beyond 0-2 is accepted syntactically (parser.Redirect.Fd is an int) but
// not wired to a real file-descriptor table here.
func applyRedirects(env *Env, redirs []*parser.Redirect) (restore func(), err error) {
	var saved []savedStream
	restore = func() {
		for i := len(saved) - 1; i >= 0; i-- {
			s := saved[i]
			switch s.fd {
			case 0:
				if r, ok := s.old.(io.Reader); ok {
					env.SetStdin(r)
				}
			case 1:
				if w, ok := s.old.(io.Writer); ok {
					env.SetStdout(w)
				}
			case 2:
				if w, ok := s.old.(io.Writer); ok {
					env.SetStderr(w)
				}
			}
		}
	}

	for _, r := range redirs {
		fd := r.Fd
		if !r.HasFd {
			fd = r.DefaultFd()
		}

		if err := applyOne(env, r, fd, &saved); err != nil {
			restore()
			return nil, err
		}
	}
	return restore, nil
}

func applyOne(env *Env, r *parser.Redirect, fd int, saved *[]savedStream) error {
	switch r.Op {
	case parser.RedirHeredoc, parser.RedirHeredocNoTab:
		body := r.Heredoc.Body
		if !r.Heredoc.Literal {
			expanded, err := expandHeredocBody(env, body)
			if err != nil {
				return err
			}
			body = expanded
		}
		saveFd(env, 0, saved)
		env.SetStdin(strings.NewReader(body))
		return nil

	case parser.RedirDupIn, parser.RedirDupOut:
		target, err := expand.String(env, r.Target, expand.ModeWord)
		if err != nil {
			return err
		}
		return applyDup(env, fd, target, saved)
	}

	target, err := expand.String(env, r.Target, expand.ModeWord)
	if err != nil {
		return err
	}

	switch r.Op {
	case parser.RedirIn:
		f, err := env.Fs.Open(target)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		saveFd(env, fd, saved)
		env.SetStdin(f)

	case parser.RedirOut, parser.RedirClobber:
		f, err := env.Fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		installOut(env, fd, f, saved)

	case parser.RedirAppend:
		f, err := env.Fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		installOut(env, fd, f, saved)

	case parser.RedirReadWrite:
		f, err := env.Fs.OpenFile(target, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		if fd == 1 || fd == 2 {
			installOut(env, fd, f, saved)
		} else {
			saveFd(env, fd, saved)
			env.SetStdin(f)
		}

	case parser.RedirBothOut:
		f, err := env.Fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		installOut(env, 1, f, saved)
		installOut(env, 2, f, saved)

	case parser.RedirBothApp:
		f, err := env.Fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		installOut(env, 1, f, saved)
		installOut(env, 2, f, saved)

	default:
		return fmt.Errorf("redirect: unsupported operator")
	}
	return nil
}

func installOut(env *Env, fd int, w io.Writer, saved *[]savedStream) {
	saveFd(env, fd, saved)
	switch fd {
	case 1:
		env.SetStdout(w)
	case 2:
		env.SetStderr(w)
	}
}

func saveFd(env *Env, fd int, saved *[]savedStream) {
	switch fd {
	case 0:
		*saved = append(*saved, savedStream{fd: 0, old: env.Stdin()})
	case 1:
		*saved = append(*saved, savedStream{fd: 1, old: env.Stdout()})
	case 2:
		*saved = append(*saved, savedStream{fd: 2, old: env.Stderr()})
	}
}

// applyDup implements `[n]<&m` / `[n]>&m`, including the `m == "-"` close
// form.
func applyDup(env *Env, fd int, target string, saved *[]savedStream) error {
	if target == "-" {
		saveFd(env, fd, saved)
		switch fd {
		case 0:
			env.SetStdin(strings.NewReader(""))
		case 1, 2:
			if fd == 1 {
				env.SetStdout(io.Discard)
			} else {
				env.SetStderr(io.Discard)
			}
		}
		return nil
	}

	srcFd, err := strconv.Atoi(target)
	if err != nil {
		return fmt.Errorf("%s: ambiguous redirect target", target)
	}

	saveFd(env, fd, saved)
	switch {
	case fd == 1 && srcFd == 2:
		env.SetStdout(env.Stderr())
	case fd == 2 && srcFd == 1:
		env.SetStderr(env.Stdout())
	// Every other (fd, srcFd) pair names a descriptor this model doesn't
	// track (anything outside 0/1/2) or a direction POSIX itself rejects
	// (`>&0`, `<&1`); leave the destination fd exactly as saveFd captured it.
	default:
	}
	return nil
}

// expandHeredocBody runs the word-expansion pipeline over an unquoted
// heredoc's body (spec.md §4.1: the body undergoes the same expansions as a
// double-quoted word, minus word splitting).
func expandHeredocBody(env *Env, body string) (string, error) {
	w := &parser.Word{Raw: body}
	return expand.String(env, w, expand.ModeAssignment)
}
