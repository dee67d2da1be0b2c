package source

import (
	"fmt"
	"strings"
	"testing"
)

func TestTextExtractor_KeepsLinesVerbatim(t *testing.T) {
	input := "+C\tOrganisms\nA<b>Prokaryotes</b>\nB  Bacteria\n\nC    eco  Escherichia coli\n"
	e := &TextExtractor{}
	lines, err := e.Lines(strings.NewReader(input), "br08601.keg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"+C\tOrganisms",
		"A<b>Prokaryotes</b>",
		"B  Bacteria",
		"",
		"C    eco  Escherichia coli",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line[%d]: expected %q, got %q", i, w, lines[i])
		}
	}
}

func TestTextExtractor_CRLF(t *testing.T) {
	e := &TextExtractor{}
	lines, err := e.Lines(strings.NewReader("A  One\r\nB  Two\r\n"), "crlf.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[1] != "B  Two" {
		t.Errorf("expected carriage returns stripped, got %q", lines)
	}
}

func TestTextExtractor_EmptyInput(t *testing.T) {
	e := &TextExtractor{}
	lines, err := e.Lines(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected 0 lines for empty input, got %d", len(lines))
	}
}

func TestForFile_Dispatch(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"br08601.keg", "*source.TextExtractor"},
		{"taxonomy", "*source.TextExtractor"},
		{"NCBI.TXT", "*source.TextExtractor"},
		{"notes.md", "*source.MarkdownExtractor"},
		{"page.htm", "*source.HTMLExtractor"},
		{"print.pdf", "*source.PDFExtractor"},
		{"outline.docx", "*source.DOCXExtractor"},
	}
	for _, tt := range tests {
		ex, err := ForFile(tt.filename, Options{})
		if err != nil {
			t.Fatalf("ForFile(%q): %v", tt.filename, err)
		}
		if got := typeName(ex); got != tt.want {
			t.Errorf("ForFile(%q): expected %s, got %s", tt.filename, tt.want, got)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("IsSupportedExtension(%q) = false", tt.filename)
		}
	}

	if _, err := ForFile("data.csv", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("data.csv") {
		t.Error("expected .csv to be unsupported")
	}
}

func TestExtract_UsesDocumentName(t *testing.T) {
	doc := Document{Name: "outline.md", Data: []byte("```\nA  Bacteria\n```\n")}
	lines, err := Extract(doc, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "A  Bacteria" {
		t.Errorf("expected code block line, got %q", lines)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
