// Package xmlutil provides the XML plumbing shared by the catalog client and
// the transform engine: parsing, canonical serialization and small document
// edits.
package xmlutil

import (
	"fmt"

	"github.com/beevik/etree"
)

// Parse reads an XML document from its textual form.
func Parse(content string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	return doc, nil
}

// Canonicalize re-serializes an XML document with normalized indentation so
// two documents that differ only in incidental formatting compare equal.
// Transform diffing relies on this on both sides of the comparison.
func Canonicalize(content string) (string, error) {
	doc, err := Parse(content)
	if err != nil {
		return "", err
	}

	return CanonicalizeDocument(doc)
}

// CanonicalizeDocument serializes an already-parsed document in canonical form.
func CanonicalizeDocument(doc *etree.Document) (string, error) {
	doc.Indent(2)

	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize XML: %w", err)
	}

	return out, nil
}
