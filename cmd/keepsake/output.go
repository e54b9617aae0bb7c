package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// renderTable draws rows under headers in the rounded style. Columns whose
// zero-based index is listed in numeric are right-aligned; short rows are
// padded with blanks.
func renderTable(headers []string, rows [][]string, numeric ...int) string {
	width := len(headers)
	if width == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(padRow(headers, width))
	for _, row := range rows {
		tw.AppendRow(padRow(row, width))
	}

	configs := make([]table.ColumnConfig, 0, len(numeric))
	for _, col := range numeric {
		if col < 0 || col >= width {
			continue
		}
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// printFailures renders per-record failures as a table. Nothing is printed
// when rows is empty.
func printFailures(out io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(out, renderTable(headers, rows))
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
