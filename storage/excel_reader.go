package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	costNameColumn = "property_name"
	costRoomColumn = "cp/room"
	// headerScanRows bounds how far down the sheet the header row may sit.
	headerScanRows = 5
)

// ReadCostSheet reads the per-room cost price of every property from the
// named sheet of an Excel workbook. The header row must contain a
// "property_name" column and a "CP/ Room" column (matched ignoring case and
// spaces). Keys are property names with whitespace collapsed. Rows with a
// blank name or a blank or unparsable cost are skipped.
func ReadCostSheet(path, sheet string) (map[string]float64, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("excel: open %q: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("excel: read sheet %q (have %v): %w", sheet, f.GetSheetList(), err)
	}

	headerRow, nameCol, costCol := -1, -1, -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		nameCol, costCol = -1, -1
		for j, cell := range rows[i] {
			switch headerKey(cell) {
			case costNameColumn:
				nameCol = j
			case costRoomColumn:
				costCol = j
			}
		}
		if nameCol >= 0 && costCol >= 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("excel: sheet %q: no header with %q and \"CP/ Room\" columns", sheet, costNameColumn)
	}

	costs := make(map[string]float64)
	for _, row := range rows[headerRow+1:] {
		if nameCol >= len(row) || costCol >= len(row) {
			continue
		}
		name := strings.Join(strings.Fields(row[nameCol]), " ")
		if name == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[costCol]), ",", ""), 64)
		if err != nil {
			continue
		}
		costs[name] = v
	}
	return costs, nil
}

func headerKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
