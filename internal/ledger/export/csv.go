package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/guildledger/ledgerboard/internal/ledger"
	"github.com/guildledger/ledgerboard/internal/ledger/ui"
)

// WriteGridCSV emits the visible grid rows as displayed, without the action column.
func WriteGridCSV(w io.Writer, grid *ui.Grid) error {
	if grid == nil {
		return fmt.Errorf("export: grid not rendered")
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()
	for _, record := range grid.Export(ui.ColumnActions) {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRecordsCSV emits unformatted amounts for the given column set.
func WriteRecordsCSV(w io.Writer, cols ui.ColumnSet, records []ledger.Record) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"ID"}
	for _, col := range cols.Columns {
		if col.Kind == ui.KindAction {
			continue
		}
		header = append(header, col.Title)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{strconv.FormatInt(rec.MainID, 10)}
		for _, col := range cols.Columns {
			switch col.Kind {
			case ui.KindAction:
				continue
			case ui.KindName:
				row = append(row, rec.MainName)
			default:
				row = append(row, formatFloat(float64(rec.Value(col.Field))))
			}
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
