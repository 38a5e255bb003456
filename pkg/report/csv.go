// Package report writes the monitor report as CSV and reads it back.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/umputun/newswatch/pkg/domain"
)

// Header is the fixed report header, one row per matched keyword follows
var Header = []string{"source", "title", "url", "matched_keyword"}

// Row is a single report line
type Row struct {
	Source         string
	Title          string
	URL            string
	MatchedKeyword string
}

// Write serializes matches to w, header first. Standard CSV quoting applies.
func Write(w io.Writer, matches []domain.Match) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, m := range matches {
		record := []string{m.Item.SourceName, m.Item.Title, m.Item.URL, m.Keyword}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row for %s: %w", m.Item.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path, the file is closed on all paths
func WriteFile(path string, matches []domain.Match) error {
	fh, err := os.Create(path) //nolint:gosec // output path comes from config
	if err != nil {
		return fmt.Errorf("create report file %s: %w", path, err)
	}

	if err := Write(fh, matches); err != nil {
		_ = fh.Close()
		return err
	}

	if err := fh.Close(); err != nil {
		return fmt.Errorf("close report file %s: %w", path, err)
	}
	return nil
}

// Read parses a report produced by Write
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(Header) {
		return nil, fmt.Errorf("unexpected header with %d columns", len(header))
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, Row{
			Source:         record[0],
			Title:          record[1],
			URL:            record[2],
			MatchedKeyword: record[3],
		})
	}
	return rows, nil
}

// ReadFileText returns the raw CSV text of a report, used to feed the
// summarizer the same bytes that were written
func ReadFileText(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // report path comes from config
	if err != nil {
		return "", fmt.Errorf("read report file %s: %w", path, err)
	}
	return string(data), nil
}
