package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Download names for the exported series.
const (
	ProgressFilename = "progress_data.csv"
	ActivityFilename = "activity_data.csv"
)

// WriteProgressCSV writes the progress series as Month,Points rows keyed by
// the stored YYYY-MM month.
func WriteProgressCSV(w io.Writer, points []ProgressPoint) error {
	rows := make([][]string, 0, len(points)+1)
	rows = append(rows, []string{"Month", "Points"})
	for _, p := range points {
		rows = append(rows, []string{p.Month, strconv.Itoa(p.Points)})
	}
	return writeAll(w, rows)
}

// WriteActivityCSV writes the activity series as Category,Problems Solved rows.
func WriteActivityCSV(w io.Writer, points []ActivityPoint) error {
	rows := make([][]string, 0, len(points)+1)
	rows = append(rows, []string{"Category", "Problems Solved"})
	for _, p := range points {
		rows = append(rows, []string{p.Category, strconv.Itoa(p.Solved)})
	}
	return writeAll(w, rows)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
