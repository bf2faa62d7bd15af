package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DecodeLearnedJSON reads a learned list stored as a JSON array of terms.
// Terms are trimmed; blanks and repeats are dropped, first occurrence wins.
func DecodeLearnedJSON(r io.Reader) ([]string, error) {
	var raw []string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode learned list: %w", err)
	}
	seen := make(map[string]struct{}, len(raw))
	terms := make([]string, 0, len(raw))
	for _, term := range raw {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms, nil
}

// EncodeLearnedJSON writes terms as an indented JSON array.
func EncodeLearnedJSON(w io.Writer, terms []string) error {
	if terms == nil {
		terms = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(terms); err != nil {
		return fmt.Errorf("failed to encode learned list: %w", err)
	}
	return nil
}
