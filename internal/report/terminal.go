package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// topN bounds the terminal ranking tables; the full ordering lives in the
// JSON and markdown artifacts.
const topN = 5

// RenderSummary prints the ranking and category tables to w.
func RenderSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "\nAudio quality ranking (composite score):\n")
	rows := make([][]string, 0, topN)
	for i, item := range r.Rankings.ByAudioQuality {
		if i >= topN {
			break
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Rank), item.Microphone, item.Category,
			fmt.Sprintf("%.1f", item.Score),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Rank", "Microphone", "Category", "Score"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))

	for _, svc := range sortedServices(r.Rankings.ByWER) {
		fmt.Fprintf(w, "\nAccuracy ranking, %s (by WER):\n", titleCaseService(svc))
		rows = rows[:0]
		for i, item := range r.Rankings.ByWER[svc] {
			if i >= topN {
				break
			}
			rows = append(rows, []string{
				strconv.Itoa(item.Rank), item.Microphone,
				fmt.Sprintf("%.2f%%", item.WERPercent),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Rank", "Microphone", "WER"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight}))
	}

	fmt.Fprintf(w, "\nCategory analysis:\n")
	rows = rows[:0]
	for _, cat := range sortedCategories(r.CategoryAnalysis) {
		stats := r.CategoryAnalysis[cat]
		rows = append(rows, []string{
			cat, strconv.Itoa(len(stats.Samples)),
			fmt.Sprintf("%.1f", stats.AvgQuality),
			formatAvgWER(stats.AvgWER),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Category", "Samples", "Avg Quality", "Avg WER"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
}

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
