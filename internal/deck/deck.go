// Package deck loads and parses tab-separated vocabulary files.
//
// One record per line: term<TAB>meaning[<TAB>example]. Blank lines and lines
// starting with '#' are skipped.
package deck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/verte-zerg/tuivoc/internal/model"
)

// ErrUndecodable is wrapped by ParseError when the content is not text.
var ErrUndecodable = errors.New("content is not valid UTF-8 or UTF-16 text")

// ParseError reports a deck whose bytes cannot be decoded as text.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse deck: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse deck %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Load reads the deck at path and parses it.
func Load(path string) ([]model.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := Parse(raw)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return records, nil
}

// Parse turns raw deck content into records in file order. Malformed lines
// degrade to empty fields; only undecodable content is an error.
func Parse(raw []byte) ([]model.Record, error) {
	text, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	var records []model.Record
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Decode converts raw bytes to text, honouring UTF-8 and UTF-16 byte order marks.
func Decode(raw []byte) (string, error) {
	var dec *encoding.Decoder
	switch {
	case bytes.HasPrefix(raw, bomUTF16BE):
		if !validUTF16(raw[len(bomUTF16BE):], binary.BigEndian) {
			return "", &ParseError{Err: ErrUndecodable}
		}
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case bytes.HasPrefix(raw, bomUTF16LE):
		if !validUTF16(raw[len(bomUTF16LE):], binary.LittleEndian) {
			return "", &ParseError{Err: ErrUndecodable}
		}
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	default:
		raw = bytes.TrimPrefix(raw, bomUTF8)
		if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
			return "", &ParseError{Err: ErrUndecodable}
		}
		return string(raw), nil
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", &ParseError{Err: fmt.Errorf("%w: %v", ErrUndecodable, err)}
	}
	return string(out), nil
}

// validUTF16 reports whether units has an even length and every surrogate is
// part of a high/low pair.
func validUTF16(units []byte, order binary.ByteOrder) bool {
	if len(units)%2 != 0 {
		return false
	}
	for i := 0; i < len(units); i += 2 {
		u := order.Uint16(units[i:])
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+4 > len(units) {
				return false
			}
			next := order.Uint16(units[i+2:])
			if next < 0xDC00 || next >= 0xE000 {
				return false
			}
			i += 2
		case u >= 0xDC00 && u < 0xE000:
			return false
		}
	}
	return true
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func parseLine(line string) (model.Record, bool) {
	parts := strings.Split(line, "\t")
	field := func(i int) string {
		if i < len(parts) {
			return strings.TrimSpace(parts[i])
		}
		return ""
	}
	rec := model.Record{
		Term:    field(0),
		Meaning: field(1),
		Example: field(2),
	}
	if rec.Term == "" {
		return model.Record{}, false
	}
	return rec, true
}
