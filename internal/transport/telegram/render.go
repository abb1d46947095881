package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"quiz-poll-bot/internal/domain"
)

const noLastSeen = "--:--:--"

const helpText = `<b>Quiz bot</b>

/start opens the main menu.
/leaderboard shows the chat leaderboard.
/export_scores sends every score as CSV (admins).
/reset_scores clears all scores (admins).

Answer the quiz polls in the chat; every first answer to a poll is scored.`

func lastSeen(t time.Time) string {
	if t.IsZero() {
		return noLastSeen
	}
	return t.Format("15:04:05")
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// RenderSubjectSummary renders per-participant results for one subject.
func RenderSubjectSummary(subject string, rows []domain.SummaryRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Results: %s</b>\n", html.EscapeString(subject))
	if len(rows) == 0 {
		b.WriteString("\nNobody has answered yet.")
		return b.String()
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "\n👤 <b>%s</b>\n✔️ %d | ❌ %d | 📌 %d | 🏆 %.2f | 🕒 %s\n",
			html.EscapeString(r.Name), r.Correct, r.Wrong, r.Attempted, r.Score, lastSeen(r.LastSeen))
	}
	return b.String()
}

// RenderLeaderboard renders the ranked entries of a leaderboard.
func RenderLeaderboard(lb domain.Leaderboard) string {
	var b strings.Builder
	b.WriteString("🏆 <b>Leaderboard</b>\n")
	if len(lb.Entries) == 0 {
		b.WriteString("\nNo scores yet.")
		return b.String()
	}
	for i, e := range lb.Entries {
		fmt.Fprintf(&b, "\n%d. <b>%s</b> %.2f (✔️ %d ❌ %d of %d)",
			i+1, html.EscapeString(e.DisplayName), e.Score, e.Correct, e.Wrong, e.Attempted)
	}
	return b.String()
}

// RenderSettings renders the chat settings screen text.
func RenderSettings(s domain.ChatSettings) string {
	return fmt.Sprintf("⚙️ <b>Settings</b>\n\nNegative marking (-%.2f per wrong answer): %s\nSummary delay: %s",
		domain.NegativePenalty, onOff(s.NegativeMarking), s.SummaryDelay)
}

func sessionStartedText(r domain.SessionReport) string {
	switch r.Kind {
	case domain.SessionRandom:
		return fmt.Sprintf("🎲 Random quiz: %d questions from all subjects.", r.Planned)
	case domain.SessionFullExam:
		return fmt.Sprintf("📝 Full exam: %d questions.", r.Planned)
	default:
		return fmt.Sprintf("📚 Quiz <b>%s</b>: %d questions.", html.EscapeString(r.Label), r.Planned)
	}
}

func sessionFinishedText(r domain.SessionReport) string {
	text := fmt.Sprintf("✅ Quiz finished: %d of %d questions sent.", r.Dispatched, r.Planned)
	if r.Failed > 0 {
		text += fmt.Sprintf(" %d could not be delivered.", r.Failed)
	}
	return text
}
