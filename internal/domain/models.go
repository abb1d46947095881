package domain

import "time"

const (
	// FullExamSubject is the synthetic subject every full-exam poll is scored under.
	FullExamSubject = "FullExam"
	// NegativePenalty is subtracted per wrong answer when negative marking is on.
	NegativePenalty = 0.25
	// OptionCount is the number of options every question carries.
	OptionCount = 4
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Prompt        string              `json:"prompt"`
	Options       [OptionCount]string `json:"options"`
	CorrectOption int                 `json:"correctOption"`
}

// Valid reports whether the correct option points at one of the four options.
func (q Question) Valid() bool {
	return q.CorrectOption >= 0 && q.CorrectOption < OptionCount
}

// Subject is a named, ordered collection of questions.
type Subject struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// PollRecord ties a dispatched poll back to what it asked and where.
type PollRecord struct {
	PollID        string
	Subject       string
	QuestionIndex int
	CorrectOption int
	ChatID        int64
	CreatedAt     time.Time
}

// ScoreRecord is the running tally for one participant in one subject.
// Attempted always equals Correct + Wrong.
type ScoreRecord struct {
	ParticipantID int64     `json:"participantId"`
	Subject       string    `json:"subject"`
	DisplayName   string    `json:"displayName"`
	Attempted     int       `json:"attempted"`
	Correct       int       `json:"correct"`
	Wrong         int       `json:"wrong"`
	LastSeen      time.Time `json:"lastSeen"`
}

// AnswerEvent is a single poll answer as delivered by the channel.
type AnswerEvent struct {
	PollID        string
	ParticipantID int64
	DisplayName   string
	OptionIDs     []int
}

// ChatSettings holds the per-chat scoring and pacing configuration.
type ChatSettings struct {
	NegativeMarking bool
	SummaryDelay    time.Duration
}

// SummaryRow is one participant line of a subject summary.
type SummaryRow struct {
	ParticipantID int64     `json:"participantId"`
	Name          string    `json:"name"`
	Attempted     int       `json:"attempted"`
	Correct       int       `json:"correct"`
	Wrong         int       `json:"wrong"`
	Score         float64   `json:"score"`
	LastSeen      time.Time `json:"lastSeen"`
}

// LeaderboardEntry is a participant's aggregate across all subjects.
type LeaderboardEntry struct {
	ParticipantID int64   `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	Attempted     int     `json:"attempted"`
	Correct       int     `json:"correct"`
	Wrong         int     `json:"wrong"`
	Score         float64 `json:"score"`
}

// Leaderboard captures the ordered scoreboard as seen from one chat's scoring rule.
type Leaderboard struct {
	ChatID    int64              `json:"chatId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// PollDescriptor is what the delivery channel needs to publish one quiz poll.
type PollDescriptor struct {
	Prompt        string
	Options       [OptionCount]string
	CorrectOption int
	Anonymous     bool
	OpenPeriod    time.Duration
}

// SessionKind identifies the shape of a quiz session.
type SessionKind string

const (
	SessionSubject  SessionKind = "subject"
	SessionRandom   SessionKind = "random"
	SessionFullExam SessionKind = "full"
)

// SessionReport summarizes one completed (or cancelled) session run.
type SessionReport struct {
	RunID      string
	ChatID     int64
	Kind       SessionKind
	Label      string
	Planned    int
	Dispatched int
	Failed     int
}
