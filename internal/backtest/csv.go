package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadBarsCSV reads a "datetime,open,high,low,close,volume" CSV file (with
// or without a header row), in the order rows appear, and returns parsed
// Bars; see ParseBars for the ordering it requires. This is a local
// test/demo loading path; fetching bars from a live market-data provider
// is out of scope here.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 6

	var rows []BarRow
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(record[1], 64); err != nil {
				continue // header row
			}
		}

		open, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid open %q: %w", record[1], err)
		}
		high, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid high %q: %w", record[2], err)
		}
		low, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid low %q: %w", record[3], err)
		}
		closeVal, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid close %q: %w", record[4], err)
		}
		volume, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid volume %q: %w", record[5], err)
		}

		rows = append(rows, BarRow{
			Datetime: record[0],
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closeVal,
			Volume:   volume,
		})
	}

	return ParseBars(rows)
}
