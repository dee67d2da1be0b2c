package taxonomy

import (
	"testing"
)

// keggLines is a trimmed-down br08601 style outline.
var keggLines = []string{
	"+C\tOrganisms",
	"#<h2>KEGG Organisms</h2>",
	"!",
	"A<b>Prokaryotes</b>",
	"B  Bacteria",
	"C    Gammaproteobacteria - Enterobacteria",
	"D      eco  Escherichia coli K-12 MG1655",
	"D      ecj  Escherichia coli K-12 W3110",
	"C    Gammaproteobacteria - Others",
	"D      pae  Pseudomonas aeruginosa PAO1",
	"B  Archaea",
	"C    Euryarchaeota",
	"D      mja  Methanocaldococcus jannaschii",
	"",
	"!",
}

// ncbiLines follows the NCBI dialect: organisms hang below species lines.
var ncbiLines = []string{
	"A  Bacteria",
	"B    Proteobacteria",
	"C      Gammaproteobacteria",
	"D        Escherichia coli [TAX:562]",
	"E          eco  Escherichia coli K-12 MG1655",
	"E          Escherichia coli str. DH10B",
	"E          ecd  Escherichia coli DH1",
	"D        Salmonella enterica [TAX:28901]",
	"E          sty  Salmonella enterica Typhi CT18",
	"A  unclassified Bacteria",
	"B    Bacteria",
	"C      Proteobacteria",
	"D        Candidatus Foo [TAX:999]",
	"E          cfo  Candidatus Foo bar",
}

func mustParse(t *testing.T, lines []string, d Dialect) *Tree {
	t.Helper()
	tree, err := Parse(lines, Options{Dialect: d})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return tree
}

func nodeIDs(nodes []*Node) []NodeID {
	ids := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
