package source

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Extractor pulls the raw outline lines out of a stored document.
type Extractor interface {
	Lines(r io.Reader, filename string) ([]string, error)
}

// SupportedExtensions lists file extensions this service can read outlines from.
var SupportedExtensions = map[string]bool{
	"":          true,
	".txt":      true,
	".keg":      true,
	".htext":    true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string, opts Options) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "", ".txt", ".keg", ".htext":
		return &TextExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".pdf":
		return &PDFExtractor{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// Options tunes extractor behaviour.
type Options struct {
	PDFFallbackPdftotext bool
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// splitLines breaks extracted text into lines, dropping carriage returns.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// Extract picks an extractor by the document's name and returns its lines.
func Extract(doc Document, opts Options) ([]string, error) {
	ex, err := ForFile(doc.Name, opts)
	if err != nil {
		return nil, err
	}
	return ex.Lines(bytes.NewReader(doc.Data), doc.Name)
}
