package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), sheet)
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "costs.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadCostSheet(t *testing.T) {
	path := writeWorkbook(t, "Cost Price", [][]interface{}{
		{"Cost sheet FY26"},
		{"city", "property_name", "CP/ Room"},
		{"bangalore", "Maple  Residency", 12000},
		{"bangalore", "Oak House", "9,500"},
		{"pune", "", 8000},
		{"pune", "Pine Court", "tbd"},
	})

	costs, err := ReadCostSheet(path, "Cost Price")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"Maple Residency": 12000,
		"Oak House":       9500,
	}, costs)
}

func TestReadCostSheetErrors(t *testing.T) {
	path := writeWorkbook(t, "Cost Price", [][]interface{}{
		{"property_name", "rent"},
		{"Maple Residency", 20000},
	})

	_, err := ReadCostSheet(path, "Cost Price")
	assert.ErrorContains(t, err, "no header")

	_, err = ReadCostSheet(path, "Missing")
	assert.ErrorContains(t, err, "read sheet")

	_, err = ReadCostSheet(filepath.Join(t.TempDir(), "nope.xlsx"), "Cost Price")
	assert.ErrorContains(t, err, "excel: open")
}
