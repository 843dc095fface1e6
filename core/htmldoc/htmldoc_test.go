package htmldoc

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
	"github.com/quillmark/driftanchor/core/resolve"
)

// keeperPage exercises skipped subtrees and nested inline markup. Its
// rendered leaves, in order: the title, the first paragraph, and the
// three text nodes of the second paragraph.
const keeperPage = `<!DOCTYPE html><html><head><title>Field Notes</title><style>p{margin:0}</style></head><body><article><p>The lighthouse keeper logged every storm.</p><p>Gulls <em>wheeled</em> over the breakwater at dawn.</p><script>var hidden = 1;</script></article></body></html>`

// twinPage carries the same phrase in two paragraphs.
const twinPage = `<html><body><p id="a">shared phrase here</p><p id="b">shared phrase there</p></body></html>`

// journalPage has enough text around the anchored phrase to keep the
// stored context windows intact across a front insertion.
const journalPage = `<html><head><title>Harbor Journal</title></head><body><article><p>Morning fog rolled in across the harbor and wrapped the moored boats in grey silence.</p><p>The lighthouse keeper logged every storm that reached the breakwater before nightfall.</p></article></body></html>`

func mustParse(t *testing.T, page string) *Document {
	t.Helper()
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func testEngine() *resolve.Engine {
	return resolve.NewEngine(resolve.EngineConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// TestParseFingerprint verifies that the fingerprint follows the source
// bytes, not the parse.
func TestParseFingerprint(t *testing.T) {
	a := mustParse(t, keeperPage)
	b := mustParse(t, keeperPage)
	c := mustParse(t, twinPage)

	if a.Fingerprint() == "" {
		t.Fatal("Fingerprint() is empty")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("same bytes produced different fingerprints: %q vs %q", a.Fingerprint(), b.Fingerprint())
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different bytes produced the same fingerprint")
	}
}

// TestLeavesSkipNonRendered verifies leaf enumeration order and the
// exclusion of script and style subtrees.
func TestLeavesSkipNonRendered(t *testing.T) {
	doc := mustParse(t, keeperPage)

	want := []string{
		"Field Notes",
		"The lighthouse keeper logged every storm.",
		"Gulls ",
		"wheeled",
		" over the breakwater at dawn.",
	}
	leaves := doc.Leaves()
	if len(leaves) != len(want) {
		t.Fatalf("Leaves() returned %d leaves, want %d", len(leaves), len(want))
	}
	for i, w := range want {
		if got := leaves[i].Text(); got != w {
			t.Errorf("leaf %d = %q, want %q", i, got, w)
		}
	}
}

// TestPathRoundTrip verifies PathTo and ResolvePath are inverses and
// that paths take the expected string form.
func TestPathRoundTrip(t *testing.T) {
	doc := mustParse(t, keeperPage)
	leaves := doc.Leaves()

	wantPaths := []string{
		"html[1]/head[1]/title[1]/#text[1]",
		"html[1]/body[1]/article[1]/p[1]/#text[1]",
		"html[1]/body[1]/article[1]/p[2]/#text[1]",
		"html[1]/body[1]/article[1]/p[2]/em[1]/#text[1]",
		"html[1]/body[1]/article[1]/p[2]/#text[2]",
	}
	for i, leaf := range leaves {
		path, err := doc.PathTo(leaf)
		if err != nil {
			t.Fatalf("PathTo(leaf %d) error = %v", i, err)
		}
		if got := path.String(); got != wantPaths[i] {
			t.Errorf("PathTo(leaf %d) = %q, want %q", i, got, wantPaths[i])
		}
		back, err := doc.ResolvePath(path)
		if err != nil {
			t.Fatalf("ResolvePath(%q) error = %v", path, err)
		}
		if back != leaf {
			t.Errorf("ResolvePath(%q) returned a different leaf", path)
		}
	}
}

// TestResolvePathErrors verifies path walking failures, including paths
// into non-rendered subtrees.
func TestResolvePathErrors(t *testing.T) {
	doc := mustParse(t, keeperPage)

	tests := []struct {
		name string
		path string
	}{
		{"missing element", "html[1]/body[1]/nav[1]/#text[1]"},
		{"element not leaf", "html[1]/body[1]/article[1]/p[1]"},
		{"wrong root", "div[1]/#text[1]"},
		{"sibling index past end", "html[1]/body[1]/article[1]/p[3]/#text[1]"},
		{"script subtree", "html[1]/body[1]/article[1]/script[1]/#text[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := anchor.ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.path, err)
			}
			if _, err := doc.ResolvePath(path); !errors.Is(err, errors.ErrNodeNotFound) {
				t.Errorf("ResolvePath(%q) error = %v, want ErrNodeNotFound", tt.path, err)
			}
		})
	}
}

// TestPathToRejectsForeignLeaf verifies that leaves of one parse cannot
// be addressed through another.
func TestPathToRejectsForeignLeaf(t *testing.T) {
	a := mustParse(t, keeperPage)
	b := mustParse(t, keeperPage)

	if _, err := a.PathTo(b.Leaves()[0]); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("PathTo(foreign leaf) error = %v, want ErrInvalidInput", err)
	}
	if _, err := a.PathTo(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("PathTo(nil) error = %v, want ErrInvalidInput", err)
	}
}

// TestSpanOf verifies CSS-scoped span targeting, including occurrences
// crossing leaf boundaries.
func TestSpanOf(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		selector  string
		text      string
		startLeaf int
		startOff  int
		endLeaf   int
		endOff    int
	}{
		{"within one leaf", keeperPage, "article > p", "lighthouse keeper", 1, 4, 1, 21},
		{"across leaves", keeperPage, "p", "wheeled over", 3, 0, 4, 5},
		{"first occurrence wins", twinPage, "p", "shared phrase", 0, 0, 0, 13},
		{"selector narrows occurrence", twinPage, "#b", "shared phrase", 1, 0, 1, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.page)
			leaves := doc.Leaves()

			span, err := doc.SpanOf(tt.selector, tt.text)
			if err != nil {
				t.Fatalf("SpanOf(%q, %q) error = %v", tt.selector, tt.text, err)
			}
			wantStart := document.Position{Leaf: leaves[tt.startLeaf], Offset: tt.startOff}
			if span.Start != wantStart {
				t.Errorf("SpanOf() start = %+v, want %+v", span.Start, wantStart)
			}
			wantEnd := document.Position{Leaf: leaves[tt.endLeaf], Offset: tt.endOff}
			if span.End != wantEnd {
				t.Errorf("SpanOf() end = %+v, want %+v", span.End, wantEnd)
			}
		})
	}
}

// TestSpanOfErrors verifies targeting failures.
func TestSpanOfErrors(t *testing.T) {
	doc := mustParse(t, twinPage)

	tests := []struct {
		name     string
		selector string
		text     string
		want     error
	}{
		{"no matching element", "nav", "shared", errors.ErrNodeNotFound},
		{"text absent", "p", "unshared phrase", errors.ErrNoMatch},
		{"invalid selector", "p[", "shared", errors.ErrInvalidInput},
		{"empty text", "p", "", errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := doc.SpanOf(tt.selector, tt.text); !errors.Is(err, tt.want) {
				t.Errorf("SpanOf(%q, %q) error = %v, want %v", tt.selector, tt.text, err, tt.want)
			}
		})
	}
}

// TestAnchorSurvivesReparse verifies that a selector built on one parse
// resolves structurally against a fresh parse of the same bytes.
func TestAnchorSurvivesReparse(t *testing.T) {
	doc := mustParse(t, journalPage)
	span, err := doc.SpanOf("article p", "lighthouse keeper")
	if err != nil {
		t.Fatalf("SpanOf() error = %v", err)
	}
	sel, err := resolve.NewDefaultBuilder(doc).Build(span)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	redoc := mustParse(t, journalPage)
	if doc.Fingerprint() != redoc.Fingerprint() {
		t.Fatal("reparse changed the fingerprint")
	}

	outcome := testEngine().Resolve(redoc, sel)
	if outcome.Tier != anchor.TierStructural {
		t.Fatalf("Resolve() tier = %v, want %v", outcome.Tier, anchor.TierStructural)
	}
	if outcome.Span.ContextWarning {
		t.Error("Resolve() flagged context drift on identical bytes")
	}
	leaves := redoc.Leaves()
	if got, want := outcome.Span.Start, (document.Position{Leaf: leaves[2], Offset: 4}); got != want {
		t.Errorf("Resolve() start = %+v, want %+v", got, want)
	}
	if got, want := outcome.Span.End, (document.Position{Leaf: leaves[2], Offset: 21}); got != want {
		t.Errorf("Resolve() end = %+v, want %+v", got, want)
	}
}

// TestAnchorSurvivesInsertedParagraph verifies fallback to the fuzzy
// tier when an inserted paragraph breaks both the structural path and
// the absolute offsets.
func TestAnchorSurvivesInsertedParagraph(t *testing.T) {
	doc := mustParse(t, journalPage)
	span, err := doc.SpanOf("article p", "lighthouse keeper")
	if err != nil {
		t.Fatalf("SpanOf() error = %v", err)
	}
	sel, err := resolve.NewDefaultBuilder(doc).Build(span)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	edited := strings.Replace(journalPage, "<article>", "<article><p>Entry for Tuesday.</p>", 1)
	redoc := mustParse(t, edited)

	outcome := testEngine().Resolve(redoc, sel)
	if outcome.Tier != anchor.TierFuzzy {
		t.Fatalf("Resolve() tier = %v, want %v", outcome.Tier, anchor.TierFuzzy)
	}
	leaves := redoc.Leaves()
	if got, want := outcome.Span.Start, (document.Position{Leaf: leaves[3], Offset: 4}); got != want {
		t.Errorf("Resolve() start = %+v, want %+v", got, want)
	}
	if got, want := outcome.Span.End, (document.Position{Leaf: leaves[3], Offset: 21}); got != want {
		t.Errorf("Resolve() end = %+v, want %+v", got, want)
	}
}
