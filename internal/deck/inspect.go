package deck

import (
	"sort"
	"strings"

	"github.com/verte-zerg/tuivoc/internal/model"
)

// Summary describes the shape of a deck file.
type Summary struct {
	Lines       int
	Blank       int
	Comments    int
	Skipped     int
	Records     []model.Record
	WithExample int
	Duplicates  []string
}

// Inspect parses raw content and reports line-level counts alongside the records.
func Inspect(raw []byte) (Summary, error) {
	text, err := Decode(raw)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	seen := map[string]int{}
	lines := splitLines(text)
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	sum.Lines = len(lines)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			sum.Blank++
			continue
		case strings.HasPrefix(line, "#"):
			sum.Comments++
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			sum.Skipped++
			continue
		}
		sum.Records = append(sum.Records, rec)
		if rec.HasExample() {
			sum.WithExample++
		}
		seen[rec.Term]++
	}
	for term, n := range seen {
		if n > 1 {
			sum.Duplicates = append(sum.Duplicates, term)
		}
	}
	sort.Strings(sum.Duplicates)
	return sum, nil
}
