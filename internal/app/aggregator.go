package app

import (
	"sort"

	"quiz-poll-bot/internal/domain"
)

// Score applies the chat's marking rule. It is the only scoring formula.
func (e *Engine) Score(correct, wrong int, chatID int64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scoreLocked(correct, wrong, chatID)
}

func (e *Engine) scoreLocked(correct, wrong int, chatID int64) float64 {
	return computeScore(correct, wrong, e.settingsLocked(chatID).NegativeMarking)
}

func computeScore(correct, wrong int, negativeMarking bool) float64 {
	score := float64(correct)
	if negativeMarking {
		score -= float64(wrong) * domain.NegativePenalty
	}
	return score
}

// SubjectSummary ranks everyone who answered in subject, best score first.
// An empty slice means nobody took part.
func (e *Engine) SubjectSummary(subject string, chatID int64) []domain.SummaryRow {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([]domain.SummaryRow, 0)
	for key, rec := range e.scores {
		if key.subject != subject {
			continue
		}
		rows = append(rows, domain.SummaryRow{
			ParticipantID: rec.ParticipantID,
			Name:          rec.DisplayName,
			Attempted:     rec.Attempted,
			Correct:       rec.Correct,
			Wrong:         rec.Wrong,
			Score:         e.scoreLocked(rec.Correct, rec.Wrong, chatID),
			LastSeen:      rec.LastSeen,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return ranksBefore(
			rank{rows[i].Score, rows[i].Correct, rows[i].Name, rows[i].ParticipantID},
			rank{rows[j].Score, rows[j].Correct, rows[j].Name, rows[j].ParticipantID},
		)
	})
	return rows
}

// Leaderboard sums every participant's tallies across all subjects and
// returns the topN by score. topN <= 0 returns everyone.
func (e *Engine) Leaderboard(chatID int64, topN int) domain.Leaderboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderboardLocked(chatID, topN)
}

func (e *Engine) leaderboardLocked(chatID int64, topN int) domain.Leaderboard {
	totals := make(map[int64]*domain.LeaderboardEntry)
	for _, rec := range e.scores {
		entry, ok := totals[rec.ParticipantID]
		if !ok {
			entry = &domain.LeaderboardEntry{ParticipantID: rec.ParticipantID}
			totals[rec.ParticipantID] = entry
		}
		entry.Attempted += rec.Attempted
		entry.Correct += rec.Correct
		entry.Wrong += rec.Wrong
	}

	entries := make([]domain.LeaderboardEntry, 0, len(totals))
	for id, entry := range totals {
		entry.DisplayName = e.names[id]
		entry.Score = e.scoreLocked(entry.Correct, entry.Wrong, chatID)
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return ranksBefore(
			rank{entries[i].Score, entries[i].Correct, entries[i].DisplayName, entries[i].ParticipantID},
			rank{entries[j].Score, entries[j].Correct, entries[j].DisplayName, entries[j].ParticipantID},
		)
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return domain.Leaderboard{
		ChatID:    chatID,
		Entries:   entries,
		UpdatedAt: e.now(),
	}
}

// ScoreSnapshot copies every score record, ordered by participant then subject.
func (e *Engine) ScoreSnapshot() []domain.ScoreRecord {
	e.mu.Lock()
	out := make([]domain.ScoreRecord, 0, len(e.scores))
	for _, rec := range e.scores {
		out = append(out, *rec)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ParticipantID != out[j].ParticipantID {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

type rank struct {
	score   float64
	correct int
	name    string
	id      int64
}

// ranksBefore orders by score desc, then correct answers desc, then name and id
// ascending so equal scores always come out in the same order.
func ranksBefore(a, b rank) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.correct != b.correct {
		return a.correct > b.correct
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.id < b.id
}
