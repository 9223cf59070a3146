package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/teranos/traitmint/errors"
)

// Ratio table columns. The aliases accept tables written by older tooling
// (folder,prop,value,ratio).
var ratioColumns = map[string][]string{
	"group":      {"group", "folder"},
	"property":   {"property", "prop"},
	"value":      {"value"},
	"raw_weight": {"raw_weight", "ratio", "weight"},
}

// RatioHeader is the header written by WriteRatioTable.
var RatioHeader = []string{"group", "property", "value", "raw_weight"}

// ReadRatioTable reads catalog rows from a CSV file.
// raw_weight defaults to 1 when the column is absent or the cell is empty.
func ReadRatioTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ratio table %s", path)
	}
	defer f.Close()

	rows, err := ParseRatioTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "ratio table %s", path)
	}
	return rows, nil
}

// ParseRatioTable parses ratio table CSV content.
func ParseRatioTable(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewConfigurationError("missing header: %v", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for canonical, aliases := range ratioColumns {
			for _, alias := range aliases {
				if h == alias {
					cols[canonical] = i
				}
			}
		}
	}
	for _, required := range []string{"group", "property", "value"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.NewConfigurationError("missing %q column", required)
		}
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewConfigurationError("line %d: %v", line, err)
		}

		row := Row{
			Group:     record[cols["group"]],
			Property:  record[cols["property"]],
			Value:     record[cols["value"]],
			RawWeight: 1,
		}
		if row.Group == "" || row.Property == "" || row.Value == "" {
			return nil, errors.NewConfigurationError("line %d: group, property and value are required", line)
		}
		if i, ok := cols["raw_weight"]; ok && strings.TrimSpace(record[i]) != "" {
			w, err := strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
			if err != nil {
				return nil, errors.NewConfigurationError("line %d: raw_weight %q is not a number", line, record[i])
			}
			if w < 0 {
				return nil, errors.NewConfigurationError("line %d: raw_weight must be >= 0, got %v", line, w)
			}
			row.RawWeight = w
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRatioTable writes rows as CSV with RatioHeader.
func WriteRatioTable(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create ratio table %s", path)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(RatioHeader); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, r := range rows {
		record := []string{r.Group, r.Property, r.Value, strconv.FormatFloat(r.RawWeight, 'f', -1, 64)}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "failed to write row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush ratio table")
}
