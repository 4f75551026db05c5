// Package report renders the guild dashboard as a spreadsheet and a
// plain-text run summary.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/groster/groster/internal/model"
)

// DashboardSheet is the sheet name of the exported dashboard.
const DashboardSheet = "Dashboard"

// DashboardHeader lists the dashboard columns in export order.
var DashboardHeader = []string{
	"Name", "Realm", "Level", "Class", "Race", "Rank", "AQ", "AP", "Alt?",
	"Main", "iLvl", "Last Login", "Raider.io", "Armory", "Logs",
}

// WriteDashboardXLSX writes the dashboard rows to an xlsx file at path.
func WriteDashboardXLSX(path string, rows []model.DashboardRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(DashboardSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range DashboardHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Realm)
		row.AddCell().SetInt(r.Level)
		row.AddCell().SetString(r.Class)
		row.AddCell().SetString(r.Race)
		row.AddCell().SetString(r.Rank)
		row.AddCell().SetInt(r.AQ)
		row.AddCell().SetInt(r.AP)
		row.AddCell().SetString(strconv.FormatBool(r.Alt))
		row.AddCell().SetString(r.Main)
		row.AddCell().SetInt(r.ItemLevel)
		row.AddCell().SetString(r.LastLogin)
		row.AddCell().SetString(r.RaiderIO)
		row.AddCell().SetString(r.Armory)
		row.AddCell().SetString(r.Logs)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// ReadXLSX reads a sheet of an xlsx file and returns all rows as strings.
// An empty sheet name reads the first sheet.
func ReadXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
