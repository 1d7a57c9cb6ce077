package expand

import "os"

// processID backs `$$`. A tiny wrapper so expand.go's lookupParam doesn't
// import os directly alongside the rest of its string-handling imports.
func processID() int {
	return os.Getpid()
}

// MatchGlob reports whether name matches a shell glob pattern supporting
// `*`, `?`, and `[...]`/`[!...]` character classes. It is the single glob
// engine shared by `case`, `[[ == ]]`/`[[ != ]]`, and the `#`/`##`/`%`/`%%`
// parameter modifiers — spec.md treats glob semantics as an external
// collaborator's concern (its Non-goals exclude a pathname-expansion
// engine), so this is a minimal matcher rather than a full libc fnmatch
// port: no brace interaction (braces are already expanded by this point)
// and no POSIX bracket-expression classes like [:alpha:].
func MatchGlob(pattern, name string) bool {
	return matchGlob([]rune(pattern), []rune(name))
}

func matchGlob(pat, name []rune) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case '*':
			// Collapse consecutive stars and try every split point.
			for len(pat) > 0 && pat[0] == '*' {
				pat = pat[1:]
			}
			if len(pat) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchGlob(pat, name[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(name) == 0 {
				return false
			}
			pat = pat[1:]
			name = name[1:]
		case '[':
			end := findClassEnd(pat)
			if end < 0 {
				if len(name) == 0 || name[0] != '[' {
					return false
				}
				pat = pat[1:]
				name = name[1:]
				continue
			}
			if len(name) == 0 || !matchClass(pat[1:end], name[0]) {
				return false
			}
			pat = pat[end+1:]
			name = name[1:]
		case '\\':
			if len(pat) > 1 {
				if len(name) == 0 || name[0] != pat[1] {
					return false
				}
				pat = pat[2:]
				name = name[1:]
				continue
			}
			if len(name) == 0 || name[0] != '\\' {
				return false
			}
			pat = pat[1:]
			name = name[1:]
		default:
			if len(name) == 0 || name[0] != pat[0] {
				return false
			}
			pat = pat[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}

func findClassEnd(pat []rune) int {
	i := 1
	if i < len(pat) && (pat[i] == '!' || pat[i] == '^') {
		i++
	}
	for i < len(pat) {
		if pat[i] == ']' {
			return i
		}
		i++
	}
	return -1
}

func matchClass(class []rune, c rune) bool {
	negate := false
	if len(class) > 0 && (class[0] == '!' || class[0] == '^') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= c && c <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == c {
			matched = true
		}
	}
	return matched != negate
}
