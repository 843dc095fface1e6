// Package xmldoc adapts parsed XML documents to the engine's document
// model. Documents are parsed once and never mutated; text and CDATA
// nodes are the anchorable leaves, and XPath expressions scope span
// targeting. The source bytes are fingerprinted so flattening caches
// apply across resolution passes.
package xmldoc

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// Document is a parsed XML document exposed as a document model.
// Structural paths are rooted at the document element.
type Document struct {
	doc         *xmlquery.Node
	root        *xmlquery.Node
	fingerprint string
}

// Parse parses an XML document.
func Parse(data []byte) (*Document, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("XML", "", err.Error())
	}

	var root *xmlquery.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			root = c
			break
		}
	}
	if root == nil {
		return nil, errors.NewParse("XML", "", "document has no root element")
	}

	return &Document{
		doc:         doc,
		root:        root,
		fingerprint: document.FingerprintBytes(data),
	}, nil
}

// Fingerprint identifies the parsed source bytes.
func (d *Document) Fingerprint() string {
	return d.fingerprint
}

// Leaves returns the text and CDATA nodes in document order.
func (d *Document) Leaves() []document.Leaf {
	nodes := appendLeaves(d.root, nil)
	out := make([]document.Leaf, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

// PathTo returns the structural path from the document element to the
// given leaf.
func (d *Document) PathTo(leaf document.Leaf) (anchor.Path, error) {
	w, ok := leaf.(node)
	if !ok || !isTextual(w.n) {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	top := w.n
	for top.Parent != nil && top.Parent.Type == xmlquery.ElementNode {
		top = top.Parent
	}
	if top != d.root {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	return document.PathToNode(w)
}

// ResolvePath walks a structural path from the document element to a
// leaf.
func (d *Document) ResolvePath(path anchor.Path) (document.Leaf, error) {
	n, err := document.WalkPath(node{d.root}, path)
	if err != nil {
		return nil, err
	}
	w := n.(node)
	if !isTextual(w.n) {
		return nil, errors.NewNodeNotFound(path.String(), "path does not address a text leaf")
	}
	return w, nil
}

// SpanOf locates the first occurrence of text under the nodes matched by
// the XPath expression and returns it as a leaf-local span for the
// anchor builder. The expression may select elements or text nodes; the
// occurrence may cross leaf boundaries within one matched subtree.
func (d *Document) SpanOf(expr, text string) (document.Span, error) {
	if text == "" {
		return document.Span{}, errors.NewValidation("text", "is empty")
	}
	if _, err := xpath.Compile(expr); err != nil {
		return document.Span{}, errors.NewValidation("xpath", err.Error())
	}
	matched, err := xmlquery.QueryAll(d.doc, expr)
	if err != nil {
		return document.Span{}, errors.NewValidation("xpath", err.Error())
	}
	if len(matched) == 0 {
		return document.Span{}, errors.NewNodeNotFound(expr, "no node matches expression")
	}

	for _, m := range matched {
		if span, ok := subtreeSpan(m, text); ok {
			return span, nil
		}
	}
	return document.Span{}, errors.NewNoMatch(text)
}

// subtreeSpan searches the concatenated leaf text under n for the first
// occurrence of text and maps it back to leaf-local positions.
func subtreeSpan(n *xmlquery.Node, text string) (document.Span, bool) {
	leaves := appendLeaves(n, nil)
	if len(leaves) == 0 {
		return document.Span{}, false
	}

	starts := make([]int, len(leaves))
	var sb strings.Builder
	total := 0
	for i, leaf := range leaves {
		starts[i] = total
		t := leaf.Text()
		total += utf8.RuneCountInString(t)
		sb.WriteString(t)
	}

	concat := sb.String()
	byteIdx := strings.Index(concat, text)
	if byteIdx < 0 {
		return document.Span{}, false
	}
	runeStart := utf8.RuneCountInString(concat[:byteIdx])
	runeEnd := runeStart + utf8.RuneCountInString(text)

	si := leafIndexFor(starts, runeStart)
	ei := leafIndexFor(starts, runeEnd-1)
	return document.Span{
		Start: document.Position{Leaf: leaves[si], Offset: runeStart - starts[si]},
		End:   document.Position{Leaf: leaves[ei], Offset: runeEnd - starts[ei]},
	}, true
}

// leafIndexFor returns the index of the leaf whose text contains the
// given rune offset. Empty leaves share their start with the following
// leaf and lose the tie.
func leafIndexFor(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
}

// appendLeaves collects the text and CDATA nodes under n in document
// order. Comments, declarations and attributes are not part of the
// model.
func appendLeaves(n *xmlquery.Node, out []node) []node {
	if isTextual(n) {
		return append(out, node{n})
	}
	if n.Type != xmlquery.ElementNode && n.Type != xmlquery.DocumentNode {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = appendLeaves(c, out)
	}
	return out
}

// isTextual reports whether the node carries anchorable text.
func isTextual(n *xmlquery.Node) bool {
	return n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode
}

// node adapts one *xmlquery.Node to the document model. Wrappers are
// created on the fly; equality follows the wrapped pointer, satisfying
// the Leaf contract.
type node struct {
	n *xmlquery.Node
}

// Kind returns the element name, or the text leaf kind for text and
// CDATA nodes.
func (w node) Kind() string {
	if isTextual(w.n) {
		return anchor.TextKind
	}
	return w.n.Data
}

// Parent returns the parent element, or nil at the document element.
func (w node) Parent() document.Node {
	p := w.n.Parent
	if p == nil || p.Type != xmlquery.ElementNode {
		return nil
	}
	return node{p}
}

// ChildNodes returns the node's element, text and CDATA children.
func (w node) ChildNodes() []document.Node {
	var out []document.Node
	for c := w.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode || isTextual(c) {
			out = append(out, node{c})
		}
	}
	return out
}

// Text returns the text of a text or CDATA node, or "" for elements.
func (w node) Text() string {
	if !isTextual(w.n) {
		return ""
	}
	return w.n.Data
}
