package models

import (
	"encoding/json"
	"fmt"
	"io"
)

// DocumentAccountsKey is the top-level key holding the account objects.
const DocumentAccountsKey = "accounts"

// Document is one parsed archive member: a JSON object whose values are kept
// raw so the transformer can report precisely which field is malformed.
type Document map[string]json.RawMessage

// DecodeDocument reads a single JSON object from r.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode document: top-level value is null")
	}
	return doc, nil
}
