package taxonomy

import (
	"fmt"
)

// Unclassified is the path fragment excluded by clade lookups.
const Unclassified = "unclassified"

// Clade collects the organism codes below each of the given paths. Every path
// must select at least one organism.
func (t *Tree) Clade(paths []string, excludeUnclassified bool) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no clade paths given: %w", ErrUnknownClade)
	}
	q := cladeQuery(excludeUnclassified)

	var codes []string
	seen := make(map[string]bool)
	for _, p := range paths {
		found, ok := t.CodesByPath(p, q)
		if !ok {
			return nil, &UnknownCladeError{Path: p}
		}
		for _, c := range found {
			if !seen[c] {
				seen[c] = true
				codes = append(codes, c)
			}
		}
	}
	return codes, nil
}

// Nested checks that the clade at childPath lies inside the clade at
// parentPath. The first node childPath resolves to must have an ancestor
// whose full path equals that of the first node parentPath resolves to, so
// repeated sibling clades with the same name count as one.
func (t *Tree) Nested(parentPath, childPath string, excludeUnclassified bool) error {
	q := cladeQuery(excludeUnclassified)

	parents, ok := t.FindByPath(parentPath, q)
	if !ok {
		return &UnknownCladeError{Path: parentPath}
	}
	children, ok := t.FindByPath(childPath, q)
	if !ok {
		return &UnknownCladeError{Path: childPath}
	}
	want := t.PathString(parents[0])
	for _, a := range t.Ancestors(children[0]) {
		if t.PathString(a) == want {
			return nil
		}
	}
	return fmt.Errorf("%s in %s: %w", childPath, parentPath, ErrNotNested)
}

func cladeQuery(excludeUnclassified bool) PathQuery {
	if excludeUnclassified {
		return PathQuery{Except: []string{Unclassified}}
	}
	return PathQuery{}
}
