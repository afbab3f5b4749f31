package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bakame-ai/interaction-logs/internal/interaction"
)

const (
	logsSheet    = "logs"
	summarySheet = "summary"
)

// XLSXFileName returns the workbook file name for the given ISO date.
func XLSXFileName(date string) string {
	return FileNamePrefix + date + ".xlsx"
}

// WriteXLSX writes a workbook with a "logs" sheet holding the same cells as the CSV export
// and a "summary" sheet with the aggregate counters.
func WriteXLSX(w io.Writer, rows []interaction.Row, loc *time.Location) error {
	if len(rows) == 0 {
		return ErrEmptyExport
	}
	f := NewFormatter(loc)

	logs := make([][]string, 0, len(rows)+1)
	logs = append(logs, Header)
	for _, r := range rows {
		logs = append(logs, f.Record(r))
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()

	add := func(name string, cells [][]string) error {
		idx, err := x.NewSheet(name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		for r, row := range cells {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := x.SetCellStr(name, cell, v); err != nil {
					return fmt.Errorf("set %s!%s: %w", name, cell, err)
				}
			}
		}
		if name == logsSheet {
			x.SetActiveSheet(idx)
		}
		return nil
	}

	if err := add(logsSheet, logs); err != nil {
		return err
	}
	if err := add(summarySheet, summaryCells(interaction.Summarize(rows), f)); err != nil {
		return err
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if _, err := x.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func summaryCells(s interaction.Summary, f *Formatter) [][]string {
	cells := [][]string{
		{"Metric", "Value"},
		{"Total Rows", f.Count(int64(s.TotalRows))},
		{"Call Events", f.Count(int64(s.RowsBySource[interaction.SourceCall]))},
		{"OpenAI Usage", f.Count(int64(s.RowsBySource[interaction.SourceOpenAI]))},
		{"Telephony Records", f.Count(int64(s.RowsBySource[interaction.SourceTwilio]))},
		{"Unique Calls", f.Count(int64(s.UniqueCalls))},
		{"Tokens Used", f.Count(s.TotalTokens)},
		{"Cost (USD)", Cost(s.TotalCostUSD)},
		{"Partial Rows", f.Count(int64(s.PartialRows))},
		{"Unmatched Rows", f.Count(int64(s.UnmatchedRows))},
	}
	if len(s.ModelCounts) == 0 {
		return cells
	}
	cells = append(cells, []string{}, []string{"OpenAI Model", "Rows", "Tokens"})
	for _, mc := range s.ModelCounts {
		cells = append(cells, []string{mc.Model, strconv.Itoa(mc.Rows), f.Count(mc.Tokens)})
	}
	return cells
}
