package source

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duesync/internal/model"
	"duesync/internal/reconcile"
)

const sampleFile = `{
  "events": [
    {
      "summary": "Library Book Due: Dune",
      "description": "Book: Dune\nAuthor: Frank Herbert\nChecked out on: 27/08/2025\nDue date: 10/09/2025",
      "start": {"dateTime": "2025-09-10T23:59:00", "timeZone": "Asia/Kolkata"},
      "end": {"dateTime": "2025-09-11T00:59:00", "timeZone": "Asia/Kolkata"}
    },
    {
      "summary": "Library Book Due: Solaris",
      "description": "Book: Solaris\nAuthor: N/A\nDue date: N/A",
      "start": {"dateTime": ""}
    }
  ],
  "metadata": {"total_events": 2, "extracted_at": "2025-09-01T10:00:00.123456", "source": "Library Checkouts"}
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "due.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o600))
	return path
}

func TestFileRecords(t *testing.T) {
	loc := kolkata(t)
	f := NewFile(writeSample(t), "Library Checkouts", loc)

	records, err := f.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	dune := records[0]
	assert.Equal(t, "Dune", dune.Title)
	assert.Equal(t, "Frank Herbert", dune.Author)
	assert.Equal(t, "27/08/2025", dune.CheckoutDate)
	assert.Equal(t, "10/09/2025", dune.SourceDateString)
	assert.True(t, dune.DueDate.Equal(time.Date(2025, 9, 10, 23, 59, 0, 0, loc)))

	assert.Equal(t, "Solaris", records[1].Title)
	assert.False(t, records[1].HasDueDate())
}

func TestFileExtractedAtWithoutZone(t *testing.T) {
	loc := kolkata(t)
	f := NewFile(writeSample(t), "", loc)

	at, err := f.ExtractedAt()
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2025, 9, 1, 10, 0, 0, 123456000, loc)))
}

func TestFileMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nope.json"), "", time.UTC)

	assert.False(t, f.Exists())
	_, err := f.Records(context.Background())
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path, "", time.UTC).Records(context.Background())
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
}

func TestFileSaveRoundTrip(t *testing.T) {
	loc := kolkata(t)
	f := NewFile(filepath.Join(t.TempDir(), "out", "due.json"), "Library Checkouts", loc)
	extracted := time.Date(2025, 9, 1, 8, 0, 0, 0, loc)

	in := []model.DueDateRecord{
		reconcile.NewRecord("Dune", "Frank Herbert", "27/08/2025", "10/09/2025", loc),
		reconcile.NewRecord("Solaris", "", "", "", loc),
		reconcile.NewRecord("Neuromancer", "William Gibson", "", "2025-09-20 18:00", loc),
	}
	require.NoError(t, f.Save(in, extracted))

	at, err := f.ExtractedAt()
	require.NoError(t, err)
	assert.True(t, at.Equal(extracted))

	out, err := f.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2, "records without a due date are not written")

	formatter := reconcile.NewFormatter(loc)
	for i, want := range []model.DueDateRecord{in[0], in[2]} {
		got := out[i]
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Author, got.Author)
		assert.Equal(t, want.CheckoutDate, got.CheckoutDate)
		assert.True(t, want.DueDate.Equal(got.DueDate))
		assert.Equal(t, formatter.Format(want), formatter.Format(got))
	}
}

func TestSaveCSV(t *testing.T) {
	loc := kolkata(t)
	path := filepath.Join(t.TempDir(), "books.csv")

	require.NoError(t, SaveCSV(path, []model.DueDateRecord{
		reconcile.NewRecord("Dune, Messiah", "Frank Herbert", "27/08/2025", "10/09/2025", loc),
		reconcile.NewRecord("Solaris", "", "", "", loc),
	}))

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Title", "Author", "Checkout Date", "Due Date"},
		{"Dune, Messiah", "Frank Herbert", "27/08/2025", "10/09/2025"},
		{"Solaris", "N/A", "N/A", "N/A"},
	}, rows)
}
