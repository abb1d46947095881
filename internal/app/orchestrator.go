package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"quiz-poll-bot/internal/domain"
)

// RandomSessionLabel groups random-session polls for display.
const RandomSessionLabel = "Random"

// QuestionSource loads quiz content (CSV directory, Postgres, cache, ...).
// LoadQuestions returns an empty slice for an unknown subject.
type QuestionSource interface {
	ListSubjects(ctx context.Context) ([]string, error)
	LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error)
}

// PollSender publishes a quiz poll and returns the channel's poll id.
type PollSender interface {
	SendPoll(ctx context.Context, chatID int64, poll domain.PollDescriptor) (string, error)
}

// Notifier tells the chat a session started or finished.
type Notifier interface {
	SessionStarted(ctx context.Context, report domain.SessionReport)
	SessionFinished(ctx context.Context, report domain.SessionReport)
}

// SessionGuard allows one running session per chat. Acquire hands out a
// token identifying the run; Release only frees the chat while that token
// still holds it.
type SessionGuard interface {
	Acquire(ctx context.Context, chatID int64) (token string, ok bool, err error)
	Release(ctx context.Context, chatID int64, token string)
}

// OrchestratorConfig holds session pacing.
type OrchestratorConfig struct {
	DelayBetweenPolls time.Duration
	// QuestionTimeout closes each poll after the duration when positive.
	QuestionTimeout time.Duration
}

// Orchestrator runs quiz sessions: it picks questions, dispatches them as
// polls at a fixed cadence and registers every poll with the engine.
type Orchestrator struct {
	engine   *Engine
	source   QuestionSource
	sender   PollSender
	notifier Notifier
	guard    SessionGuard
	cfg      OrchestratorConfig
	logger   *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type OrchestratorOption func(*Orchestrator)

func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRandSource makes random sessions reproducible in tests.
func WithRandSource(src rand.Source) OrchestratorOption {
	return func(o *Orchestrator) { o.rnd = rand.New(src) }
}

func NewOrchestrator(engine *Engine, source QuestionSource, sender PollSender, notifier Notifier, guard SessionGuard, cfg OrchestratorConfig, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		source:   source,
		sender:   sender,
		notifier: notifier,
		guard:    guard,
		cfg:      cfg,
		logger:   zap.NewNop(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type plannedPoll struct {
	question      domain.Question
	subject       string
	questionIndex int
	tag           string
}

type sourcedQuestion struct {
	subject  string
	index    int
	question domain.Question
}

// Subjects lists the subjects available from the question source.
func (o *Orchestrator) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := o.source.ListSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// RunSubject dispatches every question of one subject in source order.
func (o *Orchestrator) RunSubject(ctx context.Context, chatID int64, subject string) (domain.SessionReport, error) {
	questions, err := o.source.LoadQuestions(ctx, subject)
	if err != nil {
		return domain.SessionReport{}, fmt.Errorf("load subject %q: %w", subject, err)
	}
	if len(questions) == 0 {
		return domain.SessionReport{}, fmt.Errorf("%w: %s", domain.ErrSubjectNotFound, subject)
	}
	plan := make([]plannedPoll, 0, len(questions))
	for i, q := range questions {
		plan = append(plan, plannedPoll{question: q, subject: subject, questionIndex: i})
	}
	return o.run(ctx, chatID, domain.SessionSubject, subject, plan)
}

// RunRandom draws count questions without replacement from every subject.
// Each poll is still scored under the subject it came from.
func (o *Orchestrator) RunRandom(ctx context.Context, chatID int64, count int) (domain.SessionReport, error) {
	all, err := o.allQuestions(ctx)
	if err != nil {
		return domain.SessionReport{}, err
	}
	if len(all) == 0 {
		return domain.SessionReport{}, domain.ErrNoQuestions
	}
	if count < 1 {
		count = 1
	}
	if count > len(all) {
		count = len(all)
	}

	o.rndMu.Lock()
	picks := o.rnd.Perm(len(all))[:count]
	o.rndMu.Unlock()

	plan := make([]plannedPoll, 0, count)
	for _, idx := range picks {
		sq := all[idx]
		plan = append(plan, plannedPoll{
			question:      sq.question,
			subject:       sq.subject,
			questionIndex: sq.index,
			tag:           sq.subject,
		})
	}
	return o.run(ctx, chatID, domain.SessionRandom, RandomSessionLabel, plan)
}

// RunFullExam dispatches every subject's questions back to back, truncated to
// count when count is positive. All polls score under domain.FullExamSubject.
func (o *Orchestrator) RunFullExam(ctx context.Context, chatID int64, count int) (domain.SessionReport, error) {
	all, err := o.allQuestions(ctx)
	if err != nil {
		return domain.SessionReport{}, err
	}
	if len(all) == 0 {
		return domain.SessionReport{}, domain.ErrNoQuestions
	}
	if count > 0 && count < len(all) {
		all = all[:count]
	}
	plan := make([]plannedPoll, 0, len(all))
	for i, sq := range all {
		plan = append(plan, plannedPoll{
			question:      sq.question,
			subject:       domain.FullExamSubject,
			questionIndex: i,
		})
	}
	return o.run(ctx, chatID, domain.SessionFullExam, domain.FullExamSubject, plan)
}

func (o *Orchestrator) allQuestions(ctx context.Context) ([]sourcedQuestion, error) {
	subjects, err := o.Subjects(ctx)
	if err != nil {
		return nil, err
	}
	var out []sourcedQuestion
	for _, subject := range subjects {
		questions, err := o.source.LoadQuestions(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("load subject %q: %w", subject, err)
		}
		for i, q := range questions {
			out = append(out, sourcedQuestion{subject: subject, index: i, question: q})
		}
	}
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, chatID int64, kind domain.SessionKind, label string, plan []plannedPoll) (domain.SessionReport, error) {
	report := domain.SessionReport{
		RunID:   uuid.NewString(),
		ChatID:  chatID,
		Kind:    kind,
		Label:   label,
		Planned: len(plan),
	}

	token, acquired, err := o.guard.Acquire(ctx, chatID)
	if err != nil {
		return report, fmt.Errorf("acquire session: %w", err)
	}
	if !acquired {
		return report, domain.ErrSessionActive
	}
	defer o.guard.Release(context.WithoutCancel(ctx), chatID, token)

	logger := o.logger.With(
		zap.String("run_id", report.RunID),
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(kind)),
		zap.String("label", label),
	)
	logger.Info("session started", zap.Int("planned", report.Planned))
	o.notifier.SessionStarted(ctx, report)

	for i, p := range plan {
		if i > 0 {
			if err := sleep(ctx, o.cfg.DelayBetweenPolls); err != nil {
				logger.Info("session cancelled", zap.Int("dispatched", report.Dispatched))
				return report, err
			}
		}
		if err := o.dispatch(ctx, chatID, i+1, p); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.Failed++
			logger.Warn("poll dispatch failed", zap.Int("question", i+1), zap.String("subject", p.subject), zap.Error(err))
			continue
		}
		report.Dispatched++
	}

	if err := sleep(ctx, o.engine.Settings(chatID).SummaryDelay); err != nil {
		return report, err
	}
	logger.Info("session finished", zap.Int("dispatched", report.Dispatched), zap.Int("failed", report.Failed))
	o.notifier.SessionFinished(ctx, report)
	return report, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, chatID int64, number int, p plannedPoll) error {
	if !p.question.Valid() {
		return domain.ErrInvalidQuestion
	}
	prompt := fmt.Sprintf("Q%d. %s", number, p.question.Prompt)
	if p.tag != "" {
		prompt = fmt.Sprintf("Q%d [%s]. %s", number, p.tag, p.question.Prompt)
	}
	pollID, err := o.sender.SendPoll(ctx, chatID, domain.PollDescriptor{
		Prompt:        prompt,
		Options:       p.question.Options,
		CorrectOption: p.question.CorrectOption,
		Anonymous:     false,
		OpenPeriod:    o.cfg.QuestionTimeout,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	o.engine.RegisterPoll(domain.PollRecord{
		PollID:        pollID,
		Subject:       p.subject,
		QuestionIndex: p.questionIndex,
		CorrectOption: p.question.CorrectOption,
		ChatID:        chatID,
	})
	return nil
}

// sleep waits for d or until ctx is done. It never holds engine locks.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
