package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/podushkina/schedmon/internal/task"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

var titleCaser = cases.Title(language.Und)

func statusLabel(s task.Status) string {
	if s == "" {
		return "Unknown"
	}
	return titleCaser.String(string(s))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func taskRows(records []task.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID,
			statusLabel(r.Status),
			truncate(r.Prompt, 48),
			task.FormatTime(r.CreatedAt),
			r.Duration(),
			strconv.Itoa(r.Result.MediaCount()),
		})
	}
	return rows
}

func renderTasks(records []task.Record) string {
	return renderTable(
		[]string{"ID", "Status", "Prompt", "Created", "Duration", "Media"},
		taskRows(records),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func renderTaskDetail(r task.Record) string {
	rows := [][]string{
		{"ID", r.ID},
		{"Status", statusLabel(r.Status)},
		{"Prompt", r.Prompt},
		{"Worker", dash(r.WorkerID)},
		{"Created", task.FormatTime(r.CreatedAt)},
		{"Started", task.FormatTime(r.StartedAt)},
		{"Completed", task.FormatTime(r.CompletedAt)},
		{"Duration", r.Duration()},
	}
	if r.Error != "" {
		rows = append(rows, []string{"Error", r.Error})
	}
	if r.Result != nil {
		for _, u := range r.Result.Images {
			rows = append(rows, []string{"Image", u})
		}
		for _, u := range r.Result.Videos {
			rows = append(rows, []string{"Video", u})
		}
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func renderSystemInfo(url string, connected bool, info task.SystemInfo) string {
	state := "Disconnected"
	if connected {
		state = "Connected"
	}
	return renderTable([]string{"Scheduler", "State", "Workers", "Queue", "Total Tasks"},
		[][]string{{url, state, info.WorkerCount, info.QueueLength, info.TotalTasks}},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
