package anchor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// TextKind is the node kind used for text leaves in structural paths.
const TextKind = "#text"

// Step is one level of a structural path: a node kind and the 1-based
// position of the node among its same-kind siblings. Element nodes are
// indexed among same-tag siblings; text leaves are indexed among sibling
// text leaves.
type Step struct {
	// Kind is the node kind (element tag, or "#text" for text leaves).
	Kind string `json:"kind"`

	// Index is the 1-based position among same-kind siblings.
	Index int `json:"index"`
}

// Path is an ordered list of steps from the document root down to a node.
type Path []Step

// pathGrammar is the participle grammar for path expressions.
// Examples: "p[1]", "html[1]/body[1]/p[2]/#text[1]"
type pathGrammar struct {
	Segments []*pathSegment `parser:"@@ ( \"/\" @@ )*"`
}

type pathSegment struct {
	Kind  string `parser:"@Name"`
	Index int    `parser:"\"[\" @Int \"]\""`
}

// pathLexer defines the lexer for path expressions.
// Name covers element tags (including namespaced and hyphenated ones) and
// the "#text" leaf kind.
var pathLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Name", Pattern: `#?[A-Za-z][A-Za-z0-9_:.-]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Punct", Pattern: `[/\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// pathParser is the participle parser for path expressions.
var pathParser = participle.MustBuild[pathGrammar](
	participle.Lexer(pathLexer),
	participle.Elide("Whitespace"),
)

// ParsePath parses the compact string form of a structural path.
// Each segment is kind[index] with a 1-based index; segments are separated
// by "/". The inverse of Path.String.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty path expression")
	}

	parsed, err := pathParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid path expression: %q: %w", s, err)
	}

	path := make(Path, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		if seg.Index < 1 {
			return nil, fmt.Errorf("invalid path expression: %q: index must be 1-based, got %d", s, seg.Index)
		}
		path = append(path, Step{Kind: seg.Kind, Index: seg.Index})
	}
	return path, nil
}

// String returns the compact string form of the path.
func (p Path) String() string {
	var sb strings.Builder
	for i, step := range p {
		if i > 0 {
			sb.WriteString("/")
		}
		sb.WriteString(step.Kind)
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(step.Index))
		sb.WriteString("]")
	}
	return sb.String()
}

// Equal reports whether two paths address the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the path that shares no storage with the
// original.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}
