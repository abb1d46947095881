package export

import (
	"strings"
	"testing"
	"time"

	"quiz-poll-bot/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	records := []domain.ScoreRecord{
		{ParticipantID: 1, DisplayName: "Alice", Subject: "math", Attempted: 3, Correct: 2, Wrong: 1},
		{ParticipantID: 2, DisplayName: "Bob, Jr.", Subject: "FullExam", Attempted: 1, Correct: 0, Wrong: 1},
	}
	out, err := CSVBytes(records)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), out)
	}
	if lines[0] != "user_id,name,subject,attempted,correct,wrong" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "1,Alice,math,3,2,1" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if lines[2] != `2,"Bob, Jr.",FullExam,1,0,1` {
		t.Fatalf("expected quoted name, got %q", lines[2])
	}
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got := ObjectKey("exports", at); got != "exports/scores-20240309-140507.csv" {
		t.Fatalf("unexpected key %q", got)
	}
}
