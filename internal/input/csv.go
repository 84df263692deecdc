package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/superskip/dispatch/internal/models"
)

// ErrMissingHeader is returned when the input file has no header row.
var ErrMissingHeader = errors.New("input file has no header row")

// ReadRecords loads address rows from a CSV file with Address, City, State and Zip
// columns. Header matching is case-insensitive; absent columns degrade to empty
// fields and rows shorter than the header are tolerated. Only an unreadable file or
// a missing header is an error.
func ReadRecords(path string) ([]models.AddressRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	records, err := parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return records, nil
}

func parse(r io.Reader) ([]models.AddressRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are fine, missing cells become empty

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []models.AddressRecord
	for {
		row, errRead := reader.Read()
		if errors.Is(errRead, io.EOF) {
			break
		}
		if errRead != nil {
			return nil, fmt.Errorf("failed to read row: %w", errRead)
		}

		records = append(records, models.AddressRecord{
			Address: cell(row, "address"),
			City:    cell(row, "city"),
			State:   cell(row, "state"),
			Zip:     cell(row, "zip"),
		})
	}

	return records, nil
}
