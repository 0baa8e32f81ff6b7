package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers. A non-nil footer is appended as a
// totals row.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer []string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}
	if footer != nil {
		tw.AppendFooter(toRow(footer, columns))
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      align,
			WidthMax:         60,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func toRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

// countRows turns a status histogram into sorted rows plus a total footer.
func countRows[K ~string](counts map[K]int, blank string) ([][]string, []string) {
	keys := slices.Sorted(maps.Keys(counts))
	rows := make([][]string, 0, len(keys))
	total := 0
	for _, key := range keys {
		label := strings.TrimSpace(string(key))
		if label == "" {
			label = blank
		}
		rows = append(rows, []string{label, fmt.Sprintf("%d", counts[key])})
		total += counts[key]
	}
	return rows, []string{"Total", fmt.Sprintf("%d", total)}
}
