package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row is one CSV record keyed by normalized (lowercase, trimmed) header name.
type Row map[string]string

// ReadStats counts what ReadCSV kept and what it discarded.
type ReadStats struct {
	Rows    int `json:"rows"`
	Dropped int `json:"dropped"`
}

const utf8BOM = "\ufeff"

// ReadCSV reads a header row followed by data rows. Rows whose field count
// differs from the header are dropped and counted; an empty input yields no
// rows and no error.
func ReadCSV(r io.Reader) ([]Row, ReadStats, error) {
	var stats ReadStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("feed: read header: %w", err)
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Dropped++
				continue
			}
			return rows, stats, fmt.Errorf("feed: read row: %w", err)
		}
		if len(rec) != len(header) {
			stats.Dropped++
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
	stats.Rows = len(rows)
	return rows, stats, nil
}

// ReadFile is ReadCSV over the file at path.
func ReadFile(path string) ([]Row, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("feed: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
