// Package corpus loads the portfolio case studies and answers similarity queries over them.
package corpus

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is the extracted text of one source file.
type Document struct {
	Source string
	Text   string
}

type extractor func(path string) (string, error)

var extractors = map[string]extractor{
	".pdf":  extractPDF,
	".html": extractHTML,
	".htm":  extractHTML,
	".txt":  readText,
	".md":   readText,
}

// LoadDir walks dir and extracts text from every supported file, in path order.
// A missing directory yields no documents; unreadable files are logged and skipped.
func LoadDir(dir string) ([]Document, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			log.Printf("⚠️ Corpus directory %s not found, answering without context", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("stat corpus dir: %w", err)
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extractors[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir: %w", err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		text, err := extractors[strings.ToLower(filepath.Ext(p))](p)
		if err != nil {
			log.Printf("⚠️ Skipping %s: %v", p, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, Document{Source: p, Text: text})
	}
	log.Printf("📚 Loaded %d corpus documents from %s", len(docs), dir)
	return docs, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
