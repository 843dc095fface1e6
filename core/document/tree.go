package document

import (
	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/errors"
)

// TreeNode is a node of the in-memory document model: an element with
// children, or a text leaf. Mutation methods exist so tests and tools
// can simulate document edits between anchoring and resolution.
type TreeNode struct {
	kind     string
	text     string
	parent   *TreeNode
	children []*TreeNode
}

// NewElement creates an element node with the given children.
func NewElement(kind string, children ...*TreeNode) *TreeNode {
	n := &TreeNode{kind: kind, children: children}
	for _, c := range children {
		c.parent = n
	}
	return n
}

// NewText creates a text leaf.
func NewText(text string) *TreeNode {
	return &TreeNode{kind: anchor.TextKind, text: text}
}

// Kind returns the element tag, or anchor.TextKind for text leaves.
func (n *TreeNode) Kind() string {
	return n.kind
}

// Parent returns the parent node, or nil at the root.
func (n *TreeNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// ChildNodes returns the node's children in document order.
func (n *TreeNode) ChildNodes() []Node {
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Text returns the text of a leaf, or "" for elements.
func (n *TreeNode) Text() string {
	return n.text
}

// IsText reports whether the node is a text leaf.
func (n *TreeNode) IsText() bool {
	return n.kind == anchor.TextKind
}

// SetText replaces a text leaf's content.
func (n *TreeNode) SetText(text string) {
	n.text = text
}

// AppendChild adds c as the last child of n.
func (n *TreeNode) AppendChild(c *TreeNode) {
	c.parent = n
	n.children = append(n.children, c)
}

// InsertChild inserts c at position i among n's children. Out-of-range
// positions clamp to the ends.
func (n *TreeNode) InsertChild(i int, c *TreeNode) {
	if i < 0 {
		i = 0
	}
	if i > len(n.children) {
		i = len(n.children)
	}
	c.parent = n
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
}

// RemoveChild removes c from n's children. Returns false when c is not
// a child of n.
func (n *TreeNode) RemoveChild(c *TreeNode) bool {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Tree is the in-memory document model. It implements Model over a
// TreeNode tree. Trees are mutable, so Tree does not implement
// Fingerprinter; a stale cached flattening would hand out leaves of a
// tree that has since changed.
type Tree struct {
	root *TreeNode
}

// NewTree creates a document model rooted at root.
func NewTree(root *TreeNode) *Tree {
	return &Tree{root: root}
}

// Root returns the root node.
func (t *Tree) Root() *TreeNode {
	return t.root
}

// Leaves returns all text leaves in document order.
func (t *Tree) Leaves() []Leaf {
	var out []Leaf
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n.IsText() {
			out = append(out, n)
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	if t.root != nil {
		walk(t.root)
	}
	return out
}

// PathTo returns the structural path from the root to the given leaf.
func (t *Tree) PathTo(leaf Leaf) (anchor.Path, error) {
	n, ok := leaf.(*TreeNode)
	if !ok {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	top := n
	for top.parent != nil {
		top = top.parent
	}
	if top != t.root {
		return nil, errors.NewValidation("leaf", "not part of this document")
	}
	return PathToNode(n)
}

// ResolvePath walks a structural path from the root to a text leaf.
func (t *Tree) ResolvePath(path anchor.Path) (Leaf, error) {
	if t.root == nil {
		return nil, errors.NewNodeNotFound(path.String(), "document has no root")
	}
	node, err := WalkPath(t.root, path)
	if err != nil {
		return nil, err
	}
	n := node.(*TreeNode)
	if !n.IsText() {
		return nil, errors.NewNodeNotFound(path.String(), "path does not address a text leaf")
	}
	return n, nil
}
