// Package export renders score snapshots for administrators.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"quiz-poll-bot/internal/domain"
)

// Header is the column order of every score export.
var Header = []string{"user_id", "name", "subject", "attempted", "correct", "wrong"}

// WriteCSV writes one row per score record.
func WriteCSV(w io.Writer, records []domain.ScoreRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ParticipantID, 10),
			rec.DisplayName,
			rec.Subject,
			strconv.Itoa(rec.Attempted),
			strconv.Itoa(rec.Correct),
			strconv.Itoa(rec.Wrong),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVBytes is WriteCSV into memory.
func CSVBytes(records []domain.ScoreRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
