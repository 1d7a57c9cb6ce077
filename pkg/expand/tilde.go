package expand

import (
	"os/user"
	"strings"
)

// expandTilde performs tilde expansion on already-brace-expanded,
// not-yet-quote-processed literal text. It only looks at unquoted leading
// `~` runs: at the start of the word, and (in assignment-value context)
// right after each unquoted top-level `:`, matching bash's PATH-like
// assignment behavior (`FOO=~/a:~bar/b`).
func expandTilde(raw string, assignmentValue bool, ctx Context) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		atStart := i == 0 || (assignmentValue && i > 0 && raw[i-1] == ':')
		if atStart && i < len(raw) && raw[i] == '~' && !precededByQuote(raw, i) {
			name, _ := scanTildePrefix(raw[i+1:])
			if home, ok := resolveHome(name, ctx); ok {
				b.WriteString(home)
				i += 1 + len(name)
				continue
			}
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String()
}

// precededByQuote reports whether the raw text up to pos has opened (and
// not yet closed) a quote, which expandTilde's caller is responsible for
// never doing in practice (it only runs on the pre-quote-removal text of
// unquoted positions) — kept defensive since brace expansion can shuffle
// text around.
func precededByQuote(raw string, pos int) bool {
	inSingle, inDouble := false, false
	for i := 0; i < pos; i++ {
		switch raw[i] {
		case '\\':
			i++
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		}
	}
	return inSingle || inDouble
}

// scanTildePrefix reads the login-name portion of a tilde prefix: every
// character up to the next `/`, `:`, or end of string.
func scanTildePrefix(s string) (name, rest string) {
	j := 0
	for j < len(s) && s[j] != '/' && s[j] != ':' {
		j++
	}
	return s[:j], s[j:]
}

func resolveHome(name string, ctx Context) (string, bool) {
	if name == "" {
		if home, set := ctx.Getenv("HOME"); set {
			return home, true
		}
		if u, err := user.Current(); err == nil {
			return u.HomeDir, true
		}
		return "", false
	}
	if name == "+" {
		if pwd, set := ctx.Getenv("PWD"); set {
			return pwd, true
		}
		return "", false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", false
	}
	return u.HomeDir, true
}
