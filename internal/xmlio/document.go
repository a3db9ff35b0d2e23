// Package xmlio provides XML document loading and atomic file I/O.
package xmlio

import (
	"fmt"
	"os"

	"github.com/beevik/etree"
)

// Load parses the XML file at path into an element tree.
func Load(path string) (*etree.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(content)
}

// Parse parses raw XML bytes into an element tree.
func Parse(content []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse xml: document has no root element")
	}
	return doc, nil
}

// Serialize renders the document back to its textual form.
func Serialize(doc *etree.Document) ([]byte, error) {
	content, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize xml: %w", err)
	}
	return content, nil
}
