package document

import (
	"fmt"

	"github.com/quillmark/driftanchor/core/anchor"
	"github.com/quillmark/driftanchor/core/errors"
)

// Node is a tree node addressed by structural paths: an element or a text
// leaf. Implementations must be comparable, with equality meaning "same
// node of the same snapshot", and Parent must return an untyped nil at
// the root.
type Node interface {
	// Kind returns the node kind: an element tag, or anchor.TextKind for
	// text leaves.
	Kind() string

	// Parent returns the parent node, or nil at the root.
	Parent() Node

	// ChildNodes returns element and text children in document order.
	ChildNodes() []Node
}

// PathToNode builds the structural path from the root down to n. Each
// step records the node's kind and its 1-based position among same-kind
// siblings, so the path survives insertions after the node at every
// level.
func PathToNode(n Node) (anchor.Path, error) {
	if n == nil {
		return nil, errors.NewValidation("node", "is nil")
	}

	var reversed anchor.Path
	for cur := n; cur != nil; {
		parent := cur.Parent()
		index := 1
		if parent != nil {
			index = 0
			found := false
			for _, sib := range parent.ChildNodes() {
				if sib.Kind() == cur.Kind() {
					index++
				}
				if sib == cur {
					found = true
					break
				}
			}
			if !found {
				return nil, errors.NewValidation("node", "not among its parent's children")
			}
		}
		reversed = append(reversed, anchor.Step{Kind: cur.Kind(), Index: index})
		cur = parent
	}

	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed, nil
}

// WalkPath descends from root along path, at each level selecting the
// nth same-kind child. The inverse of PathToNode. Returns a
// NodeNotFoundError naming the failing step when the document no longer
// has the addressed shape.
func WalkPath(root Node, path anchor.Path) (Node, error) {
	if root == nil {
		return nil, errors.NewNodeNotFound(path.String(), "document has no root")
	}
	if len(path) == 0 {
		return nil, errors.NewNodeNotFound("", "empty path")
	}
	if root.Kind() != path[0].Kind || path[0].Index != 1 {
		return nil, errors.NewNodeNotFound(path.String(),
			fmt.Sprintf("root is %s, not %s[%d]", root.Kind(), path[0].Kind, path[0].Index))
	}

	cur := root
	for _, step := range path[1:] {
		var next Node
		count := 0
		for _, child := range cur.ChildNodes() {
			if child.Kind() == step.Kind {
				count++
				if count == step.Index {
					next = child
					break
				}
			}
		}
		if next == nil {
			return nil, errors.NewNodeNotFound(path.String(),
				fmt.Sprintf("wanted %s[%d], found %d under %s", step.Kind, step.Index, count, cur.Kind()))
		}
		cur = next
	}
	return cur, nil
}
