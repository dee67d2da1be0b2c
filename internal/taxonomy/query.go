package taxonomy

import (
	"strings"
)

// PathQuery narrows a FindByPath search.
type PathQuery struct {
	// Kinds keeps only descendants of the matched nodes with one of these
	// kinds; the matched nodes themselves are then left out. Empty keeps
	// everything.
	Kinds []Kind

	// Except drops every result whose rendered path contains one of these
	// substrings. Empty entries are ignored.
	Except []string
}

// FindByCode looks up an organism by its code.
func (t *Tree) FindByCode(code string) (*Node, bool) {
	id, ok := t.codes[code]
	if !ok {
		return nil, false
	}
	return &t.nodes[id], true
}

// FindByName returns every node whose name contains substr (case-sensitive),
// optionally restricted to the given kinds. ok is false when nothing matched.
func (t *Tree) FindByName(substr string, kinds ...Kind) ([]*Node, bool) {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if strings.Contains(n.Name, substr) && kindMatches(n.Kind, kinds) {
			out = append(out, n)
		}
		return true
	})
	return out, len(out) > 0
}

// FindByPath resolves a "/"-separated chain of exact names. Every node named
// like the last segment whose direct ancestors carry the preceding names is an
// anchor; the result is the anchors and their descendants. A leading "/" pins
// the chain to the root.
func (t *Tree) FindByPath(path string, q PathQuery) ([]*Node, bool) {
	segments, anchored := splitPath(path)
	if len(segments) == 0 {
		return nil, false
	}

	var anchors []*Node
	last := segments[len(segments)-1]
	t.Walk(func(n *Node) bool {
		if n.Name == last && t.chainMatches(n, segments, anchored) {
			anchors = append(anchors, n)
		}
		return true
	})

	seen := make(map[NodeID]bool)
	var out []*Node
	keep := func(n *Node) {
		if seen[n.ID] || excluded(t.PathString(n), q.Except) {
			return
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	for _, a := range anchors {
		if len(q.Kinds) == 0 {
			keep(a)
		}
		for _, d := range t.Descendants(a) {
			if kindMatches(d.Kind, q.Kinds) {
				keep(d)
			}
		}
	}
	return out, len(out) > 0
}

// CodesByPath is FindByPath reduced to organism codes.
func (t *Tree) CodesByPath(path string, q PathQuery) ([]string, bool) {
	nodes, _ := t.FindByPath(path, q)
	return organismCodes(nodes)
}

// CodesByName is FindByName reduced to organism codes.
func (t *Tree) CodesByName(substr string, kinds ...Kind) ([]string, bool) {
	nodes, _ := t.FindByName(substr, kinds...)
	return organismCodes(nodes)
}

func (t *Tree) chainMatches(n *Node, segments []string, anchored bool) bool {
	cur := n
	for i := len(segments) - 2; i >= 0; i-- {
		cur = t.Parent(cur)
		if cur == nil || cur.Name != segments[i] {
			return false
		}
	}
	if anchored {
		return cur.Kind == KindRoot
	}
	return true
}

// splitPath breaks a query path into segments. Absolute paths get the root's
// name as their first segment so that PathString output can be fed back in.
// A path with an empty segment is invalid and yields none.
func splitPath(path string) ([]string, bool) {
	anchored := strings.HasPrefix(path, "/")
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
	}
	if anchored && segments[0] != RootName {
		segments = append([]string{RootName}, segments...)
	}
	return segments, anchored
}

func kindMatches(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func excluded(path string, except []string) bool {
	for _, e := range except {
		if e != "" && strings.Contains(path, e) {
			return true
		}
	}
	return false
}

func organismCodes(nodes []*Node) ([]string, bool) {
	var codes []string
	seen := make(map[string]bool)
	for _, n := range nodes {
		if n.Kind != KindOrganism || seen[n.Code] {
			continue
		}
		seen[n.Code] = true
		codes = append(codes, n.Code)
	}
	return codes, len(codes) > 0
}
