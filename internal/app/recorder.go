package app

import (
	"go.uber.org/zap"
	"quiz-poll-bot/internal/domain"
)

// RecordOutcome describes what RecordAnswer did with an event.
type RecordOutcome int

const (
	OutcomeRecorded RecordOutcome = iota
	OutcomeDuplicate
	OutcomeStalePoll
	OutcomeMalformed
)

func (o RecordOutcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStalePoll:
		return "stale_poll"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// RecordAnswer applies a poll answer to the tallies at most once per
// (participant, poll). Only the first selected option counts. Events that
// cannot be applied are dropped, never returned as errors.
func (e *Engine) RecordAnswer(ev domain.AnswerEvent) RecordOutcome {
	if ev.PollID == "" || ev.ParticipantID == 0 || len(ev.OptionIDs) == 0 {
		e.logger.Debug("discarding malformed answer",
			zap.String("poll_id", ev.PollID),
			zap.Int64("participant_id", ev.ParticipantID),
			zap.Ints("options", ev.OptionIDs))
		return OutcomeMalformed
	}
	selected := ev.OptionIDs[0]
	if selected < 0 || selected >= domain.OptionCount {
		e.logger.Debug("discarding answer with out of range option",
			zap.String("poll_id", ev.PollID),
			zap.Int("option", selected))
		return OutcomeMalformed
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	poll, ok := e.polls[ev.PollID]
	if !ok {
		e.logger.Debug("answer for unknown poll", zap.String("poll_id", ev.PollID))
		return OutcomeStalePoll
	}

	now := e.now()
	key := scoreKey{participantID: ev.ParticipantID, subject: poll.Subject}
	marker := answerKey{participantID: ev.ParticipantID, pollID: ev.PollID}
	if _, seen := e.answered[marker]; seen {
		if rec, ok := e.scores[key]; ok {
			rec.LastSeen = now
		}
		return OutcomeDuplicate
	}

	e.answered[marker] = struct{}{}
	rec, ok := e.scores[key]
	if !ok {
		rec = &domain.ScoreRecord{ParticipantID: ev.ParticipantID, Subject: poll.Subject}
		e.scores[key] = rec
	}
	if ev.DisplayName != "" {
		rec.DisplayName = ev.DisplayName
		e.names[ev.ParticipantID] = ev.DisplayName
	}
	rec.Attempted++
	if selected == poll.CorrectOption {
		rec.Correct++
	} else {
		rec.Wrong++
	}
	rec.LastSeen = now

	e.broadcastLocked()
	return OutcomeRecorded
}
