package resolve

import (
	"testing"
	"time"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// catDoc builds the standard two-paragraph fixture:
//
//	body > p > "Intro paragraph. "              (17 runes, flattened [0,17))
//	body > p > "The cat sat on the mat. ..."    (47 runes, flattened [17,64))
//
// and returns the tree plus the two text leaves.
func catDoc() (*document.Tree, *document.TreeNode, *document.TreeNode) {
	intro := document.NewText("Intro paragraph. ")
	cats := document.NewText("The cat sat on the mat. The cat sat on the rug.")
	root := document.NewElement("body",
		document.NewElement("p", intro),
		document.NewElement("p", cats),
	)
	return document.NewTree(root), intro, cats
}

// catSpan is the span "cat sat on the mat" in the second paragraph,
// leaf-local offsets [4,22), absolute offsets [21,39).
func catSpan(cats *document.TreeNode) document.Span {
	return document.Span{
		Start: document.Position{Leaf: cats, Offset: 4},
		End:   document.Position{Leaf: cats, Offset: 22},
	}
}

func TestBuildCapturesAllTiers(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewDefaultBuilder(tree)

	sel, err := builder.Build(catSpan(cats))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if sel.ID == "" {
		t.Error("Build() left ID empty")
	}
	if sel.CreatedAt.IsZero() || time.Since(sel.CreatedAt) > time.Minute {
		t.Errorf("Build() CreatedAt = %v, want recent", sel.CreatedAt)
	}
	if sel.ContentHash != anchor.ContentHash("cat sat on the mat") {
		t.Errorf("Build() ContentHash = %d, want hash of span text", sel.ContentHash)
	}
	if errs := anchor.Validate(sel); len(errs) != 0 {
		t.Errorf("Build() produced invalid selector: %v", errs)
	}

	st := sel.Structural
	if st == nil {
		t.Fatal("Build() Structural = nil, want selector for leaf-local span")
	}
	if got := st.Path.String(); got != "body[1]/p[2]/#text[1]" {
		t.Errorf("Structural.Path = %q, want %q", got, "body[1]/p[2]/#text[1]")
	}
	if st.StartOffset != 4 || st.EndOffset != 22 {
		t.Errorf("Structural offsets = [%d,%d), want [4,22)", st.StartOffset, st.EndOffset)
	}
	if st.Text != "cat sat on the mat" {
		t.Errorf("Structural.Text = %q, want %q", st.Text, "cat sat on the mat")
	}
	if st.TextBefore != "The " {
		t.Errorf("Structural.TextBefore = %q, want %q", st.TextBefore, "The ")
	}
	if st.TextAfter != ". The cat sat on the rug." {
		t.Errorf("Structural.TextAfter = %q, want %q", st.TextAfter, ". The cat sat on the rug.")
	}

	pos := sel.Position
	if pos == nil {
		t.Fatal("Build() Position = nil")
	}
	if pos.StartOffset != 21 || pos.EndOffset != 39 {
		t.Errorf("Position offsets = [%d,%d), want [21,39)", pos.StartOffset, pos.EndOffset)
	}
	if pos.Text != "cat sat on the mat" {
		t.Errorf("Position.Text = %q, want %q", pos.Text, "cat sat on the mat")
	}
	// The position window is flattened-text context, so unlike the
	// structural window it reaches into the preceding paragraph.
	if pos.TextBefore != "Intro paragraph. The " {
		t.Errorf("Position.TextBefore = %q, want %q", pos.TextBefore, "Intro paragraph. The ")
	}
	if pos.TextAfter != ". The cat sat on the rug." {
		t.Errorf("Position.TextAfter = %q, want %q", pos.TextAfter, ". The cat sat on the rug.")
	}

	fz := sel.Fuzzy
	if fz == nil {
		t.Fatal("Build() Fuzzy = nil")
	}
	if fz.Text != "cat sat on the mat" {
		t.Errorf("Fuzzy.Text = %q, want %q", fz.Text, "cat sat on the mat")
	}
	if fz.TextBefore != "Intro paragraph. The " {
		t.Errorf("Fuzzy.TextBefore = %q, want %q", fz.TextBefore, "Intro paragraph. The ")
	}
	if fz.Threshold != anchor.DefaultThreshold {
		t.Errorf("Fuzzy.Threshold = %v, want %v", fz.Threshold, anchor.DefaultThreshold)
	}
}

func TestBuildCrossLeafSpanOmitsStructural(t *testing.T) {
	tree, intro, cats := catDoc()
	builder := NewDefaultBuilder(tree)

	// "paragraph. The cat": starts mid first leaf, ends mid second.
	sel, err := builder.Build(document.Span{
		Start: document.Position{Leaf: intro, Offset: 6},
		End:   document.Position{Leaf: cats, Offset: 7},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if sel.Structural != nil {
		t.Error("Build() Structural != nil for a cross-leaf span")
	}
	if sel.Position.StartOffset != 6 || sel.Position.EndOffset != 24 {
		t.Errorf("Position offsets = [%d,%d), want [6,24)", sel.Position.StartOffset, sel.Position.EndOffset)
	}
	if sel.Position.Text != "paragraph. The cat" {
		t.Errorf("Position.Text = %q, want %q", sel.Position.Text, "paragraph. The cat")
	}
	if errs := anchor.Validate(sel); len(errs) != 0 {
		t.Errorf("Build() produced invalid selector: %v", errs)
	}
}

func TestBuildAtMatchesBuild(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewDefaultBuilder(tree)

	fromSpan, err := builder.Build(catSpan(cats))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	fromOffsets, err := builder.BuildAt(21, 39)
	if err != nil {
		t.Fatalf("BuildAt() error = %v", err)
	}

	if fromOffsets.Position.Text != fromSpan.Position.Text {
		t.Errorf("BuildAt text = %q, want %q", fromOffsets.Position.Text, fromSpan.Position.Text)
	}
	if *fromOffsets.Position != *fromSpan.Position {
		t.Errorf("BuildAt Position = %+v, want %+v", fromOffsets.Position, fromSpan.Position)
	}
	if (fromOffsets.Structural == nil) != (fromSpan.Structural == nil) {
		t.Fatal("BuildAt and Build disagree on structural selector presence")
	}
	if fromOffsets.Structural.Path.String() != fromSpan.Structural.Path.String() {
		t.Errorf("BuildAt path = %q, want %q", fromOffsets.Structural.Path.String(), fromSpan.Structural.Path.String())
	}
}

func TestBuildSpanAtLeafEnd(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewDefaultBuilder(tree)

	// Span runs to the very end of the document.
	sel, err := builder.Build(document.Span{
		Start: document.Position{Leaf: cats, Offset: 43},
		End:   document.Position{Leaf: cats, Offset: 47},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if sel.Position.Text != "rug." {
		t.Errorf("Position.Text = %q, want %q", sel.Position.Text, "rug.")
	}
	if sel.Position.TextAfter != "" {
		t.Errorf("Position.TextAfter = %q, want empty at document end", sel.Position.TextAfter)
	}
	if sel.Structural.TextAfter != "" {
		t.Errorf("Structural.TextAfter = %q, want empty at leaf end", sel.Structural.TextAfter)
	}
}

func TestBuildRejectsBadSpans(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewDefaultBuilder(tree)
	foreign := document.NewText("not in this document")

	tests := []struct {
		name string
		span document.Span
	}{
		{
			name: "empty span",
			span: document.Span{
				Start: document.Position{Leaf: cats, Offset: 4},
				End:   document.Position{Leaf: cats, Offset: 4},
			},
		},
		{
			name: "inverted span",
			span: document.Span{
				Start: document.Position{Leaf: cats, Offset: 22},
				End:   document.Position{Leaf: cats, Offset: 4},
			},
		},
		{
			name: "foreign start leaf",
			span: document.Span{
				Start: document.Position{Leaf: foreign, Offset: 0},
				End:   document.Position{Leaf: cats, Offset: 4},
			},
		},
		{
			name: "foreign end leaf",
			span: document.Span{
				Start: document.Position{Leaf: cats, Offset: 0},
				End:   document.Position{Leaf: foreign, Offset: 4},
			},
		},
		{
			name: "offset past leaf end",
			span: document.Span{
				Start: document.Position{Leaf: cats, Offset: 4},
				End:   document.Position{Leaf: cats, Offset: 99},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := builder.Build(tt.span)
			if err == nil {
				t.Fatal("Build() error = nil, want InvalidSpan")
			}
			if !errors.Is(err, errors.ErrInvalidSpan) {
				t.Errorf("Build() error = %v, want ErrInvalidSpan", err)
			}
		})
	}
}

func TestBuildAtRejectsBadOffsets(t *testing.T) {
	tree, _, _ := catDoc()
	builder := NewDefaultBuilder(tree)

	tests := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 5},
		{"end past document", 0, 65},
		{"empty", 10, 10},
		{"inverted", 12, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := builder.BuildAt(tt.start, tt.end)
			if err == nil {
				t.Fatal("BuildAt() error = nil, want InvalidSpan")
			}
			if !errors.Is(err, errors.ErrInvalidSpan) {
				t.Errorf("BuildAt() error = %v, want ErrInvalidSpan", err)
			}
		})
	}
}

func TestBuilderConfigOverrides(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewBuilder(tree, BuilderConfig{
		ContextWindow: 4,
		FuzzyWindow:   8,
		Threshold:     0.9,
	})

	sel, err := builder.Build(catSpan(cats))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if sel.Position.TextBefore != "The " {
		t.Errorf("Position.TextBefore = %q, want %q", sel.Position.TextBefore, "The ")
	}
	if sel.Fuzzy.TextBefore != "ph. The " {
		t.Errorf("Fuzzy.TextBefore = %q, want %q", sel.Fuzzy.TextBefore, "ph. The ")
	}
	if sel.Fuzzy.TextAfter != ". The ca" {
		t.Errorf("Fuzzy.TextAfter = %q, want %q", sel.Fuzzy.TextAfter, ". The ca")
	}
	if sel.Fuzzy.Threshold != 0.9 {
		t.Errorf("Fuzzy.Threshold = %v, want 0.9", sel.Fuzzy.Threshold)
	}
}

func TestBuilderConfigZeroValuesUseDefaults(t *testing.T) {
	tree, _, cats := catDoc()
	builder := NewBuilder(tree, BuilderConfig{})

	sel, err := builder.Build(catSpan(cats))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if sel.Fuzzy.Threshold != anchor.DefaultThreshold {
		t.Errorf("Fuzzy.Threshold = %v, want default %v", sel.Fuzzy.Threshold, anchor.DefaultThreshold)
	}
	if sel.Position.TextBefore != "Intro paragraph. The " {
		t.Errorf("Position.TextBefore = %q, want default-width window", sel.Position.TextBefore)
	}
}

func TestBuilderFlattenedReuse(t *testing.T) {
	tree, _, _ := catDoc()
	builder := NewDefaultBuilder(tree)

	flat := builder.Flattened()
	if flat == nil {
		t.Fatal("Flattened() = nil")
	}
	if flat.Len() != 64 {
		t.Errorf("Flattened().Len() = %d, want 64", flat.Len())
	}
	if builder.Flattened() != flat {
		t.Error("Flattened() should return the same snapshot index each call")
	}
}
