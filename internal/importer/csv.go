// Package importer reads the tabular question feed used to seed a hunt.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cryptic-hunt/internal/domain"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var required = []string{"round", "question", "answer"}

// Feed is a parsed question feed. Rejected counts rows dropped because their
// round is not an integer; other row problems are left to validation on import.
type Feed struct {
	Questions []domain.Question
	Rejected  int
}

// ReadCSV parses rows with columns Round, Question, Answer, Hint1..Hint3 and an
// optional Image column. Header names are matched case-insensitively; hint
// columns may be absent. Only header and CSV syntax errors fail the whole feed.
func ReadCSV(r io.Reader) (Feed, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Feed{Questions: []domain.Question{}}, nil
	}
	if err != nil {
		return Feed{}, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return Feed{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	feed := Feed{Questions: []domain.Question{}}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Feed{}, fmt.Errorf("line %d: %w", line, err)
		}
		raw := strings.TrimSpace(field(rec, "round"))
		if raw == "" {
			continue
		}
		level, err := parseRound(raw)
		if err != nil {
			feed.Rejected++
			continue
		}
		q := domain.Question{
			Level:    level,
			Text:     field(rec, "question"),
			Answer:   field(rec, "answer"),
			ImageURL: firstNonEmpty(field(rec, "image"), field(rec, "image_url"), field(rec, "imageurl")),
		}
		for i := 1; i <= domain.MaxHints; i++ {
			q.Hints = append(q.Hints, field(rec, "hint"+strconv.Itoa(i)))
		}
		q.Hints = domain.NormalizeHints(q.Hints)
		feed.Questions = append(feed.Questions, q)
	}
	return feed, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Feed{}, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// parseRound accepts "3" and spreadsheet exports like "3.0".
func parseRound(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, errors.New("not an integer")
	}
	return int(f), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
