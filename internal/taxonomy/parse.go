package taxonomy

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Options controls how an outline is turned into a Tree.
type Options struct {
	Dialect Dialect

	// LastCodeWins re-points the code index at the newest organism when a code
	// repeats instead of failing. The earlier node stays in the tree.
	LastCodeWins bool
}

var (
	speciesPattern  = regexp.MustCompile(`^(.*) \[TAX:(\d+)\]$`)
	organismPattern = regexp.MustCompile(`^([a-z]{3,4})\s{2,}(\S.*)$`)
)

// ParseReader reads an outline line by line and parses it.
func ParseReader(r io.Reader, opts Options) (*Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return Parse(lines, opts)
}

// Parse builds a Tree from level-coded lines. Each meaningful line starts with
// a letter A..Z giving its depth (A=1); anything else is a comment.
//
// Lines that produce no node (an NCBI taxon line without an organism code, or
// a bare level letter) still occupy their level: lines nested below them
// attach to the dropped line's parent.
func Parse(lines []string, opts Options) (*Tree, error) {
	t := newTree(opts.Dialect)
	ncbi := opts.Dialect == DialectNCBI

	// levels[l] is the node that a line at level l+1 attaches to.
	levels := []NodeID{0}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		c := line[0]
		if c < 'A' || c > 'Z' {
			continue
		}
		level := int(c-'A') + 1
		if level > len(levels) {
			return nil, &MalformedLevelError{Line: lineNo, Level: level, Previous: len(levels) - 1, Reason: "skips intermediate levels"}
		}
		parent := levels[level-1]
		levels = levels[:level]

		entry := cleanEntry(line[1:])
		if entry == "" {
			levels = append(levels, parent)
			continue
		}
		parentKind := t.nodes[parent].Kind

		node := Node{Name: entry, Kind: KindOther, Line: lineNo}
		classified := false

		if parentKind == KindOther {
			if m := speciesPattern.FindStringSubmatch(entry); m != nil {
				node.Name = strings.TrimSpace(m[1])
				node.Kind = KindSpecies
				node.TaxID = m[2]
				classified = true
			}
		}
		if !classified && (!ncbi || parentKind == KindSpecies) {
			if m := organismPattern.FindStringSubmatch(entry); m != nil {
				node.Code = m[1]
				node.Name = strings.TrimSpace(m[2])
				node.Kind = KindOrganism
			} else if ncbi {
				// Taxon-only line below a species: no organism code.
				levels = append(levels, parent)
				continue
			}
		}

		if node.Kind == KindOrganism {
			if first, dup := t.codes[node.Code]; dup && !opts.LastCodeWins {
				return nil, &DuplicateCodeError{Code: node.Code, Line: lineNo, FirstLine: t.nodes[first].Line}
			}
		}

		id := t.add(parent, node)
		if node.Kind == KindOrganism {
			t.codes[node.Code] = id
		}
		levels = append(levels, id)
	}
	return t, nil
}

// cleanEntry trims an entry and reduces inline markup (KEGG wraps top-level
// names in <b>..</b>) to plain text.
func cleanEntry(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
