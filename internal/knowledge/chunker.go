// Package knowledge implements the in-process knowledge retriever: a
// chunked document corpus scored by lexical overlap, filtered to the
// knowledge sources a configuration enables.
package knowledge

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// #endregion

// #region document

// Document is one knowledge source file. Category matches the corpus
// subdirectory it came from (guidelines, drug_labels, ...).
type Document struct {
	SourceID string
	Category string
	Text     string
}

// Chunk is one retrievable slice of a document.
type Chunk struct {
	SourceID string
	Category string
	Index    int
	Text     string
}

// #endregion document

// #region chunking

// ChunkDocument splits text into size-char chunks with the given
// overlap, breaking on whitespace where possible so terms stay intact.
func ChunkDocument(doc Document, size, overlap int) []Chunk {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	step := size - overlap
	for start, idx := 0, 0; start < len(text); start, idx = start+step, idx+1 {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		piece := text[start:end]
		// Back off to the last space so a term is not cut mid-word,
		// unless the chunk has no spaces at all.
		if end < len(text) {
			if cut := strings.LastIndexByte(piece, ' '); cut > size/2 {
				piece = piece[:cut]
			}
		}
		chunks = append(chunks, Chunk{
			SourceID: doc.SourceID,
			Category: doc.Category,
			Index:    idx,
			Text:     strings.TrimSpace(piece),
		})
		if end == len(text) {
			break
		}
	}
	return chunks
}

// #endregion chunking

// #region corpus-loading

// LoadDir reads a knowledge corpus laid out as <dir>/<category>/<file>.
// Only .txt and .md files are read; the category is the subdirectory
// name.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// A missing corpus is an empty corpus: control runs and
		// baseline-only modes need no knowledge directory.
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var docs []Document
	for _, cat := range entries {
		if !cat.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, cat.Name()))
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", cat.Name(), err)
		}
		for _, f := range files {
			ext := filepath.Ext(f.Name())
			if f.IsDir() || (ext != ".txt" && ext != ".md") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, cat.Name(), f.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name(), err)
			}
			docs = append(docs, Document{
				SourceID: strings.TrimSuffix(f.Name(), ext),
				Category: cat.Name(),
				Text:     string(data),
			})
		}
	}
	return docs, nil
}

// #endregion corpus-loading
