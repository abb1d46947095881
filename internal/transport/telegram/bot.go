package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"quiz-poll-bot/internal/app"
	"quiz-poll-bot/internal/domain"
	"quiz-poll-bot/internal/export"
)

const exportFileName = "scores_export.csv"

// Uploader stores a score export and returns a download link.
type Uploader interface {
	Upload(ctx context.Context, body []byte) (string, error)
}

// Config is the menu and access configuration of the bot.
type Config struct {
	AdminIDs        []int64
	LeaderboardSize int
	RandomCounts    []int
	FullExamCounts  []int
}

// Bot routes Telegram updates into the engine and the orchestrator.
type Bot struct {
	api      API
	engine   *app.Engine
	orch     *app.Orchestrator
	cfg      Config
	admins   map[int64]struct{}
	uploader Uploader
	logger   *zap.Logger

	sessions sync.WaitGroup
}

type BotOption func(*Bot)

func WithBotLogger(logger *zap.Logger) BotOption {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithUploader sends exports as links instead of documents.
func WithUploader(u Uploader) BotOption {
	return func(b *Bot) { b.uploader = u }
}

func NewBot(api API, engine *app.Engine, orch *app.Orchestrator, cfg Config, opts ...BotOption) *Bot {
	b := &Bot{
		api:    api,
		engine: engine,
		orch:   orch,
		cfg:    cfg,
		admins: make(map[int64]struct{}, len(cfg.AdminIDs)),
		logger: zap.NewNop(),
	}
	for _, id := range cfg.AdminIDs {
		b.admins[id] = struct{}{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run consumes updates until ctx is done, then waits for running sessions.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "poll_answer"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot started")
	defer b.sessions.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PollAnswer != nil:
		b.handlePollAnswer(update.PollAnswer)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

// Wait blocks until every session started by the bot has returned.
func (b *Bot) Wait() {
	b.sessions.Wait()
}

func displayName(u tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}

func (b *Bot) handlePollAnswer(pa *tgbotapi.PollAnswer) {
	outcome := b.engine.RecordAnswer(domain.AnswerEvent{
		PollID:        pa.PollID,
		ParticipantID: pa.User.ID,
		DisplayName:   displayName(pa.User),
		OptionIDs:     pa.OptionIDs,
	})
	b.logger.Debug("poll answer",
		zap.String("poll_id", pa.PollID),
		zap.Int64("user_id", pa.User.ID),
		zap.Stringer("outcome", outcome),
	)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", zap.Error(err))
	}
	if cq.Message == nil {
		return
	}
	cmd, err := ParseCommand(cq.Data)
	if err != nil {
		b.logger.Debug("ignoring callback", zap.String("data", cq.Data), zap.Error(err))
		return
	}
	b.execute(ctx, cq.Message.Chat.ID, cmd)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.execute(ctx, chatID, Command{Kind: CmdMainMenu})
	case "help":
		b.send(chatID, helpText, nil)
	case "leaderboard":
		b.execute(ctx, chatID, Command{Kind: CmdLeaderboard})
	case "settings":
		b.execute(ctx, chatID, Command{Kind: CmdSettingsMenu})
	case "export_scores":
		if !b.isAdmin(msg.From) {
			b.send(chatID, "⛔ Only admins can export scores.", nil)
			return
		}
		b.exportScores(ctx, chatID)
	case "reset_scores":
		if !b.isAdmin(msg.From) {
			b.send(chatID, "⛔ Only admins can reset scores.", nil)
			return
		}
		b.engine.Reset()
		b.send(chatID, "🧹 All scores have been reset.", nil)
	}
}

func (b *Bot) isAdmin(u *tgbotapi.User) bool {
	if u == nil {
		return false
	}
	_, ok := b.admins[u.ID]
	return ok
}

func (b *Bot) execute(ctx context.Context, chatID int64, cmd Command) {
	switch cmd.Kind {
	case CmdMainMenu:
		b.send(chatID, "👋 <b>Quiz bot</b>\nChoose an option:", mainMenu())
	case CmdSubjectsMenu:
		b.subjectsMenu(ctx, chatID, CmdRunSubject, CmdMainMenu, "📚 Choose a subject:")
	case CmdRunSubject:
		subject, ok := b.resolveSubject(ctx, chatID, cmd)
		if !ok {
			return
		}
		b.startSession(ctx, chatID, func(ctx context.Context) (domain.SessionReport, error) {
			return b.orch.RunSubject(ctx, chatID, subject)
		})
	case CmdRandomMenu:
		b.send(chatID, "🎲 How many random questions?", countMenu(CmdRunRandom, b.cfg.RandomCounts))
	case CmdRunRandom:
		b.startSession(ctx, chatID, func(ctx context.Context) (domain.SessionReport, error) {
			return b.orch.RunRandom(ctx, chatID, cmd.Count)
		})
	case CmdFullExamMenu:
		b.send(chatID, "📝 How many questions for the full exam?", countMenu(CmdRunFullExam, b.cfg.FullExamCounts))
	case CmdRunFullExam:
		b.startSession(ctx, chatID, func(ctx context.Context) (domain.SessionReport, error) {
			return b.orch.RunFullExam(ctx, chatID, cmd.Count)
		})
	case CmdResultsMenu:
		b.send(chatID, "📊 Which results?", resultsMenu())
	case CmdResultSubjectsMenu:
		b.subjectsMenu(ctx, chatID, CmdResultSubject, CmdResultsMenu, "📊 Results for which subject?")
	case CmdResultSubject:
		subject, ok := b.resolveSubject(ctx, chatID, cmd)
		if !ok {
			return
		}
		b.send(chatID, RenderSubjectSummary(subject, b.engine.SubjectSummary(subject, chatID)), nil)
	case CmdResultRandom:
		b.randomResults(ctx, chatID)
	case CmdResultFull:
		b.send(chatID, RenderSubjectSummary(domain.FullExamSubject, b.engine.SubjectSummary(domain.FullExamSubject, chatID)), nil)
	case CmdLeaderboard:
		b.send(chatID, RenderLeaderboard(b.engine.Leaderboard(chatID, b.cfg.LeaderboardSize)), nil)
	case CmdSettingsMenu:
		b.renderSettingsView(chatID)
	case CmdToggleNegative:
		on := b.engine.ToggleNegativeMarking(chatID)
		b.logger.Info("negative marking changed", zap.Int64("chat_id", chatID), zap.Bool("on", on))
		b.renderSettingsView(chatID)
	case CmdCycleSummaryDelay:
		d := b.engine.CycleSummaryDelay(chatID)
		b.logger.Info("summary delay changed", zap.Int64("chat_id", chatID), zap.Duration("delay", d))
		b.renderSettingsView(chatID)
	}
}

// resolveSubject maps a parsed subject key back to a current subject name.
// Unknown keys are reported to the chat.
func (b *Bot) resolveSubject(ctx context.Context, chatID int64, cmd Command) (string, bool) {
	if cmd.Subject != "" {
		return cmd.Subject, true
	}
	subjects, err := b.orch.Subjects(ctx)
	if err != nil {
		b.logger.Error("list subjects failed", zap.Error(err))
		b.send(chatID, "⚠️ Could not load subjects.", nil)
		return "", false
	}
	for _, s := range subjects {
		if SubjectKey(s) == cmd.SubjectKey {
			return s, true
		}
	}
	b.send(chatID, "⚠️ Subject not found or it has no questions.", nil)
	return "", false
}

func (b *Bot) renderSettingsView(chatID int64) {
	s := b.engine.Settings(chatID)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("Negative marking: "+onOff(s.NegativeMarking), Command{Kind: CmdToggleNegative})),
		tgbotapi.NewInlineKeyboardRow(button(fmt.Sprintf("Summary delay: %s", s.SummaryDelay), Command{Kind: CmdCycleSummaryDelay})),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", Command{Kind: CmdMainMenu})),
	)
	b.send(chatID, RenderSettings(s), &kb)
}

func (b *Bot) subjectsMenu(ctx context.Context, chatID int64, kind, back CommandKind, title string) {
	subjects, err := b.orch.Subjects(ctx)
	if err != nil {
		b.logger.Error("list subjects failed", zap.Error(err))
		b.send(chatID, "⚠️ Could not load subjects.", nil)
		return
	}
	if len(subjects) == 0 {
		b.send(chatID, "⚠️ No subjects found.", nil)
		return
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(subjects)+1)
	for _, s := range subjects {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(s, Command{Kind: kind, Subject: s})))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", Command{Kind: back})))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(chatID, title, &kb)
}

// randomResults shows one summary per subject, since random polls score
// under the subject each question came from.
func (b *Bot) randomResults(ctx context.Context, chatID int64) {
	subjects, err := b.orch.Subjects(ctx)
	if err != nil {
		b.logger.Error("list subjects failed", zap.Error(err))
		b.send(chatID, "⚠️ Could not load subjects.", nil)
		return
	}
	var parts []string
	for _, s := range subjects {
		rows := b.engine.SubjectSummary(s, chatID)
		if len(rows) == 0 {
			continue
		}
		parts = append(parts, RenderSubjectSummary(s, rows))
	}
	if len(parts) == 0 {
		b.send(chatID, "📊 No random quiz results yet.", nil)
		return
	}
	b.send(chatID, strings.Join(parts, "\n\n"), nil)
}

func (b *Bot) startSession(ctx context.Context, chatID int64, run func(context.Context) (domain.SessionReport, error)) {
	b.sessions.Add(1)
	go func() {
		defer b.sessions.Done()
		report, err := run(ctx)
		if err != nil {
			b.reportSessionError(chatID, report, err)
		}
	}()
}

func (b *Bot) reportSessionError(chatID int64, report domain.SessionReport, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		b.logger.Info("session stopped", zap.String("run_id", report.RunID), zap.Int("dispatched", report.Dispatched))
	case errors.Is(err, domain.ErrSubjectNotFound):
		b.send(chatID, "⚠️ Subject not found or it has no questions.", nil)
	case errors.Is(err, domain.ErrNoQuestions):
		b.send(chatID, "⚠️ No questions found.", nil)
	case errors.Is(err, domain.ErrSessionActive):
		b.send(chatID, "⏳ A quiz is already running in this chat.", nil)
	default:
		b.logger.Error("session failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, "⚠️ The quiz could not be started.", nil)
	}
}

func (b *Bot) exportScores(ctx context.Context, chatID int64) {
	records := b.engine.ScoreSnapshot()
	if len(records) == 0 {
		b.send(chatID, "📭 No scores to export.", nil)
		return
	}
	body, err := export.CSVBytes(records)
	if err != nil {
		b.logger.Error("encode export failed", zap.Error(err))
		b.send(chatID, "⚠️ Export failed.", nil)
		return
	}
	if b.uploader != nil {
		url, err := b.uploader.Upload(ctx, body)
		if err == nil {
			b.send(chatID, fmt.Sprintf("📦 <a href=\"%s\">Download scores</a> (%d rows)", html.EscapeString(url), len(records)), nil)
			return
		}
		b.logger.Warn("upload export failed, sending document", zap.Error(err))
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: exportFileName, Bytes: body})
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("send export failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func button(text string, cmd Command) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, cmd.Data())
}

func mainMenu() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📚 Subjects", Command{Kind: CmdSubjectsMenu})),
		tgbotapi.NewInlineKeyboardRow(
			button("🎲 Random", Command{Kind: CmdRandomMenu}),
			button("📝 Full exam", Command{Kind: CmdFullExamMenu}),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("📊 Results", Command{Kind: CmdResultsMenu}),
			button("🏆 Leaderboard", Command{Kind: CmdLeaderboard}),
		),
		tgbotapi.NewInlineKeyboardRow(button("⚙️ Settings", Command{Kind: CmdSettingsMenu})),
	)
	return &kb
}

func resultsMenu() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("📚 By subject", Command{Kind: CmdResultSubjectsMenu})),
		tgbotapi.NewInlineKeyboardRow(
			button("🎲 Random", Command{Kind: CmdResultRandom}),
			button("📝 Full exam", Command{Kind: CmdResultFull}),
		),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", Command{Kind: CmdMainMenu})),
	)
	return &kb
}

func countMenu(kind CommandKind, counts []int) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range counts {
		row = append(row, button(strconv.Itoa(n), Command{Kind: kind, Count: n}))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row, tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", Command{Kind: CmdMainMenu})))
	return &kb
}

// Notifier posts session start and finish messages to the chat.
type Notifier struct {
	api    API
	logger *zap.Logger
}

func NewNotifier(api API, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{api: api, logger: logger}
}

func (n *Notifier) SessionStarted(_ context.Context, report domain.SessionReport) {
	n.send(report.ChatID, sessionStartedText(report), nil)
}

func (n *Notifier) SessionFinished(_ context.Context, report domain.SessionReport) {
	result := Command{Kind: CmdResultSubject, Subject: report.Label}
	switch report.Kind {
	case domain.SessionRandom:
		result = Command{Kind: CmdResultRandom}
	case domain.SessionFullExam:
		result = Command{Kind: CmdResultFull}
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button("📊 Show results", result)))
	n.send(report.ChatID, sessionFinishedText(report), &kb)
}

func (n *Notifier) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("send notification failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
