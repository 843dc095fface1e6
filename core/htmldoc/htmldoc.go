// Package htmldoc adapts parsed HTML pages to the engine's document
// model. A page is parsed once and never mutated; anchors address the
// text nodes of the rendered tree, with script, style, noscript and
// template subtrees excluded. The source bytes are fingerprinted so
// flattening caches apply across resolution passes.
package htmldoc

import (
	"bytes"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/document"
	"github.com/quillmark/driftanchor/core/errors"
)

// skippedElements are subtrees that never contribute rendered text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// Document is a parsed HTML page exposed as a document model. Structural
// paths are rooted at the html element.
type Document struct {
	doc         *goquery.Document
	root        *html.Node
	fingerprint string
}

// Parse parses an HTML page. The parser is error-correcting, so
// malformed markup yields a best-effort tree rather than a failure.
func Parse(data []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParse("HTML", "", err.Error())
	}

	var root *html.Node
	for c := doc.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root = c
			break
		}
	}
	if root == nil {
		return nil, errors.NewParse("HTML", "", "document has no root element")
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

// Leaves returns the rendered text nodes in document order.
func (d *Document) Leaves() []document.Leaf {
	nodes := appendLeaves(d.root, nil)
	out := make([]document.Leaf, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

// PathTo returns the structural path from the html element to the given
// text node.
func (d *Document) PathTo(leaf document.Leaf) (anchor.Path, error) {
	w, ok := leaf.(node)
	if !ok || w.n.Type != html.TextNode {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	top := w.n
	for top.Parent != nil && top.Parent.Type == html.ElementNode {
		if skippedElements[top.Parent.Data] {
			return nil, errors.NewValidation("leaf", "inside a non-rendered subtree")
		}
		top = top.Parent
	}
	if top != d.root {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	return document.PathToNode(w)
}

// ResolvePath walks a structural path from the html element to a text
// node.
func (d *Document) ResolvePath(path anchor.Path) (document.Leaf, error) {
	n, err := document.WalkPath(node{d.root}, path)
	if err != nil {
		return nil, err
	}
	w := n.(node)
	if w.n.Type != html.TextNode {
		return nil, errors.NewNodeNotFound(path.String(), "path does not address a text leaf")
	}
	return w, nil
}

// SpanOf locates the first occurrence of text under the elements matched
// by the CSS selector and returns it as a leaf-local span for the anchor
// builder. The occurrence may cross leaf boundaries; text must appear
// exactly as it does in the page's text nodes, including any source
// whitespace.
func (d *Document) SpanOf(selector, text string) (document.Span, error) {
	if text == "" {
		return document.Span{}, errors.NewValidation("text", "is empty")
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return document.Span{}, errors.NewValidation("selector", err.Error())
	}
	matched := d.doc.FindMatcher(matcher)
	if matched.Length() == 0 {
		return document.Span{}, errors.NewNodeNotFound(selector, "no element matches selector")
	}

	var span document.Span
	found := false
	matched.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if sp, ok := subtreeSpan(s.Get(0), text); ok {
			span, found = sp, true
			return false
		}
		return true
	})
	if !found {
		return document.Span{}, errors.NewNoMatch(text)
	}
	return span, nil
}

// subtreeSpan searches the concatenated leaf text under el for the first
// occurrence of text and maps it back to leaf-local positions.
func subtreeSpan(el *html.Node, text string) (document.Span, bool) {
	leaves := appendLeaves(el, nil)
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

// appendLeaves collects the rendered text nodes under n in document
// order. Non-rendered subtrees are skipped whole, as are comments and
// doctypes.
func appendLeaves(n *html.Node, out []node) []node {
	switch n.Type {
	case html.TextNode:
		return append(out, node{n})
	case html.ElementNode:
		if skippedElements[n.Data] {
			return out
		}
	default:
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = appendLeaves(c, out)
	}
	return out
}

// node adapts one *html.Node to the document model. Wrappers are created
// on the fly; equality follows the wrapped pointer, satisfying the Leaf
// contract.
type node struct {
	n *html.Node
}

// Kind returns the element tag, or the text leaf kind.
func (w node) Kind() string {
	if w.n.Type == html.TextNode {
		return anchor.TextKind
	}
	return w.n.Data
}

// Parent returns the parent element, or nil at the html element.
func (w node) Parent() document.Node {
	p := w.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return node{p}
}

// ChildNodes returns the node's rendered element and text children.
func (w node) ChildNodes() []document.Node {
	var out []document.Node
	for c := w.n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			out = append(out, node{c})
		case html.ElementNode:
			if !skippedElements[c.Data] {
				out = append(out, node{c})
			}
		}
	}
	return out
}

// Text returns the text of a text node, or "" for elements.
func (w node) Text() string {
	if w.n.Type != html.TextNode {
		return ""
	}
	return w.n.Data
}
