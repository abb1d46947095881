package telegram

import (
	"strings"
	"testing"
	"time"

	"quiz-poll-bot/internal/domain"
)

func TestRenderSubjectSummary(t *testing.T) {
	rows := []domain.SummaryRow{
		{ParticipantID: 1, Name: "Ann <admin>", Attempted: 4, Correct: 3, Wrong: 1, Score: 2.75,
			LastSeen: time.Date(2024, 5, 1, 9, 30, 15, 0, time.Local)},
		{ParticipantID: 2, Name: "Bob", Attempted: 1, Correct: 0, Wrong: 1, Score: -0.25},
	}
	text := RenderSubjectSummary("math", rows)

	for _, want := range []string{"math", "Ann &lt;admin&gt;", "2.75", "09:30:15", "-0.25", noLastSeen} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in\n%s", want, text)
		}
	}
	if strings.Index(text, "Ann") > strings.Index(text, "Bob") {
		t.Fatalf("expected row order preserved:\n%s", text)
	}
}

func TestRenderEmptyViews(t *testing.T) {
	if text := RenderSubjectSummary("physics", nil); !strings.Contains(text, "Nobody has answered yet") {
		t.Fatalf("unexpected empty summary %q", text)
	}
	if text := RenderLeaderboard(domain.Leaderboard{}); !strings.Contains(text, "No scores yet") {
		t.Fatalf("unexpected empty leaderboard %q", text)
	}
}

func TestRenderLeaderboardRanks(t *testing.T) {
	lb := domain.Leaderboard{Entries: []domain.LeaderboardEntry{
		{ParticipantID: 1, DisplayName: "Ann", Score: 9, Correct: 9, Attempted: 9},
		{ParticipantID: 2, DisplayName: "Bob", Score: 6.5, Correct: 7, Wrong: 2, Attempted: 9},
	}}
	text := RenderLeaderboard(lb)
	if !strings.Contains(text, "1. <b>Ann</b> 9.00") || !strings.Contains(text, "2. <b>Bob</b> 6.50") {
		t.Fatalf("unexpected leaderboard:\n%s", text)
	}
}

func TestRenderSettings(t *testing.T) {
	text := RenderSettings(domain.ChatSettings{NegativeMarking: false, SummaryDelay: 12 * time.Second})
	if !strings.Contains(text, "OFF") || !strings.Contains(text, "12s") {
		t.Fatalf("unexpected settings text %q", text)
	}
}
