package expand

import (
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// fieldChunk is one piece of an expanded word immediately before field
// splitting: quoted chunks are never split and always contribute at least
// an empty field (spec.md §4.2/§8 — `"$empty"` is one empty field, not
// zero fields), unquoted chunks are split on runs of IFS characters.
type fieldChunk struct {
	text   string
	quoted bool
}

// splitFields turns a sequence of expanded chunks into final argv fields,
// implementing spec.md §4.2's word-splitting phase. Default IFS (" \t\n")
// is delegated to anmitsu/go-shlex's whitespace-aware splitter, grounded on
// honeyssh's `core/shell.go:174` usage (`shlex.Split(line, true)`); custom
// IFS values use a hand-written scanner since go-shlex has no notion of a
// caller-supplied separator set.
func splitFields(chunks []fieldChunk, ifs string) []string {
	if len(chunks) == 0 {
		return nil
	}
	if isDefaultIFS(ifs) {
		return splitFieldsDefaultIFS(chunks)
	}
	if ifs == "" {
		// No splitting at all: every chunk stays attached to one field.
		var b strings.Builder
		for _, c := range chunks {
			b.WriteString(c.text)
		}
		return []string{b.String()}
	}
	return splitFieldsCustomIFS(chunks, ifs)
}

func isDefaultIFS(ifs string) bool {
	return ifs == " \t\n"
}

// splitFieldsDefaultIFS joins unquoted chunk runs and splits them through
// go-shlex, re-stitching quoted chunks onto the field they fall inside so
// that e.g. foo"bar baz" stays one field while unquoted spaces still split.
func splitFieldsDefaultIFS(chunks []fieldChunk) []string {
	var fields []string
	var cur strings.Builder
	haveCur := false

	flush := func() {
		if haveCur {
			fields = append(fields, cur.String())
			cur.Reset()
			haveCur = false
		}
	}

	for _, c := range chunks {
		if c.quoted {
			cur.WriteString(c.text)
			haveCur = true
			continue
		}
		parts, err := shlex.Split(c.text, true)
		if err != nil || len(parts) == 0 {
			if strings.TrimFunc(c.text, isDefaultIFSByte) == "" {
				// whitespace-only (or empty) unquoted chunk: boundary only
				if strings.TrimSpace(c.text) == "" && c.text != "" {
					flush()
				}
				continue
			}
			cur.WriteString(c.text)
			haveCur = true
			continue
		}
		leadingSpace := len(c.text) > 0 && isDefaultIFSByte(rune(c.text[0]))
		if leadingSpace {
			flush()
		}
		for i, p := range parts {
			if i > 0 {
				flush()
			}
			cur.WriteString(p)
			haveCur = true
		}
		trailingSpace := len(c.text) > 0 && isDefaultIFSByte(rune(c.text[len(c.text)-1]))
		if trailingSpace {
			flush()
		}
	}
	flush()
	return fields
}

func isDefaultIFSByte(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

// splitFieldsCustomIFS implements splitting against an arbitrary IFS: any
// run of IFS whitespace characters (space/tab/newline if present in ifs)
// collapses like default IFS, but any other IFS character is itself a
// single-character field delimiter (bash's "IFS non-whitespace" rule).
func splitFieldsCustomIFS(chunks []fieldChunk, ifs string) []string {
	isIFS := func(r byte) bool { return strings.IndexByte(ifs, r) >= 0 }
	isIFSSpace := func(r byte) bool {
		return isIFS(r) && (r == ' ' || r == '\t' || r == '\n')
	}

	var fields []string
	var cur strings.Builder
	haveCur := false
	pendingDelim := false

	flush := func() {
		fields = append(fields, cur.String())
		cur.Reset()
		haveCur = false
	}

	for _, c := range chunks {
		if c.quoted {
			cur.WriteString(c.text)
			haveCur = true
			pendingDelim = false
			continue
		}
		i := 0
		for i < len(c.text) {
			ch := c.text[i]
			switch {
			case isIFSSpace(ch):
				if haveCur || pendingDelim {
					flush()
				}
				for i < len(c.text) && isIFSSpace(c.text[i]) {
					i++
				}
				pendingDelim = false
				continue
			case isIFS(ch):
				flush()
				i++
				pendingDelim = true
				continue
			default:
				cur.WriteByte(ch)
				haveCur = true
				pendingDelim = false
				i++
			}
		}
	}
	if haveCur || pendingDelim {
		flush()
	}
	return fields
}
