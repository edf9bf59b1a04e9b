package source

import (
	"bytes"
	"encoding/csv"

	"duesync/internal/fsutil"
	"duesync/internal/model"
)

var csvHeader = []string{"Title", "Author", "Checkout Date", "Due Date"}

// SaveCSV writes a flat export of every record, including those without a
// due date.
func SaveCSV(path string, records []model.DueDateRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Title,
			orUnknown(rec.Author),
			orUnknown(rec.CheckoutDate),
			orUnknown(rec.SourceDateString),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes())
}

func orUnknown(s string) string {
	if s == "" {
		return model.AuthorUnknown
	}
	return s
}
