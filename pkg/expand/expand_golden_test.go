package expand

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/prefix-dev/shell/pkg/parser"
	"github.com/sebdah/goldie/v2"
)

// Golden-file coverage for the quote round-trip / brace-expansion fixtures
// SPEC_FULL.md §3 item 7 calls for, grounded on
// josephlewis42-honeyssh/commands/base_test.go's goldie.New options
// (WithFixtureDir/WithDiffEngine/WithTestNameForDir).
func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(
		t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithDiffEngine(goldie.ColoredDiff),
		goldie.WithTestNameForDir(true),
	)
}

func TestBraceExpansionGolden(t *testing.T) {
	g := newGoldie(t)
	ctx := newMockContext()

	fields, err := Word(ctx, &parser.Word{Raw: "item{1..3}.txt"}, ModeWord)
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "fields", []byte(strings.Join(fields, "\n")))
}

func TestQuoteRemovalGolden(t *testing.T) {
	g := newGoldie(t)
	ctx := newMockContext()
	ctx.vars["NAME"] = "world"

	result, err := String(ctx, &parser.Word{Raw: `"hello $NAME"'literal'`}, ModeWord)
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "result", []byte(result))
}
