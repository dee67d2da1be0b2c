package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies the role a node plays in the taxonomy.
type Kind uint8

const (
	KindRoot Kind = iota
	KindOrganism
	KindSpecies
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "ROOT"
	case KindOrganism:
		return "ORGANISM"
	case KindSpecies:
		return "SPECIES"
	case KindOther:
		return "OTHER"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind converts a kind name (any case) back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROOT":
		return KindRoot, nil
	case "ORGANISM":
		return KindOrganism, nil
	case "SPECIES":
		return KindSpecies, nil
	case "OTHER":
		return KindOther, nil
	}
	return 0, fmt.Errorf("unknown node kind: %q", s)
}

// Dialect selects between the two outline grammars.
type Dialect uint8

const (
	DialectKEGG Dialect = iota
	DialectNCBI
)

func (d Dialect) String() string {
	if d == DialectNCBI {
		return "ncbi"
	}
	return "kegg"
}

// ParseDialect accepts "kegg" or "ncbi" (any case).
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kegg":
		return DialectKEGG, nil
	case "ncbi":
		return DialectNCBI, nil
	}
	return 0, fmt.Errorf("unknown taxonomy dialect: %q", s)
}

// NodeID indexes a node inside its Tree.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// RootName is the name given to the synthetic root node.
const RootName = "root"

// Node is one entry of the taxonomy. Nodes are owned by their Tree and must
// not be modified by callers.
type Node struct {
	ID       NodeID
	Name     string
	Kind     Kind
	Code     string // organism code, e.g. "eco"; empty for other kinds
	TaxID    string // digits of the [TAX:n] suffix on species lines
	Parent   NodeID
	Children []NodeID
	Depth    int // 0 for root; below a dropped line it is less than the level letter
	Line     int // 1-based source line; 0 for root
}

// Tree is a parsed taxonomy plus its organism code index. It is immutable once
// Parse returns and may be shared between goroutines.
type Tree struct {
	nodes   []Node
	codes   map[string]NodeID
	dialect Dialect
}

func newTree(d Dialect) *Tree {
	t := &Tree{
		codes:   make(map[string]NodeID),
		dialect: d,
	}
	t.nodes = append(t.nodes, Node{ID: 0, Name: RootName, Kind: KindRoot, Parent: NoNode})
	return t
}

func (t *Tree) add(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.ID = id
	n.Parent = parent
	n.Depth = t.nodes[parent].Depth + 1
	t.nodes = append(t.nodes, n)
	t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	return id
}

// Root returns the synthetic root node.
func (t *Tree) Root() *Node { return &t.nodes[0] }

// Node returns the node with the given id, or nil when out of range.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Parent returns n's parent, or nil for the root.
func (t *Tree) Parent(n *Node) *Node {
	if n == nil {
		return nil
	}
	return t.Node(n.Parent)
}

// Len is the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Dialect() Dialect { return t.dialect }

// Codes returns every indexed organism code in sorted order.
func (t *Tree) Codes() []string {
	out := make([]string, 0, len(t.codes))
	for c := range t.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Ancestors lists n's ancestors, nearest first, ending at the root.
func (t *Tree) Ancestors(n *Node) []*Node {
	var out []*Node
	for p := t.Parent(n); p != nil; p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Descendants lists every node below n in pre-order. n itself is excluded.
func (t *Tree) Descendants(n *Node) []*Node {
	var out []*Node
	var walk func(id NodeID)
	walk = func(id NodeID) {
		for _, c := range t.nodes[id].Children {
			out = append(out, &t.nodes[c])
			walk(c)
		}
	}
	walk(n.ID)
	return out
}

// Walk visits every node in document (pre-)order. Returning false stops the walk.
func (t *Tree) Walk(fn func(n *Node) bool) {
	// Nodes are appended in document order, so the arena already is pre-order.
	for i := range t.nodes {
		if !fn(&t.nodes[i]) {
			return
		}
	}
}

// IsDescendant reports whether n lies strictly below ancestor.
func (t *Tree) IsDescendant(n, ancestor *Node) bool {
	if n == nil || ancestor == nil {
		return false
	}
	for p := t.Parent(n); p != nil; p = t.Parent(p) {
		if p.ID == ancestor.ID {
			return true
		}
	}
	return false
}

// PathString renders the chain from the root down to n as "/root/a/b/n".
func (t *Tree) PathString(n *Node) string {
	if n == nil {
		return ""
	}
	names := []string{n.Name}
	for p := t.Parent(n); p != nil; p = t.Parent(p) {
		names = append(names, p.Name)
	}
	var sb strings.Builder
	for i := len(names) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(names[i])
	}
	return sb.String()
}
