package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"quiz-poll-bot/internal/domain"
)

// Telegram limits for quiz polls.
const (
	maxPollQuestion = 300
	maxPollOption   = 100
	minOpenPeriod   = 5 * time.Second
	maxOpenPeriod   = 600 * time.Second
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// PollSender publishes quiz polls through the Bot API.
type PollSender struct {
	api API
}

func NewPollSender(api API) *PollSender {
	return &PollSender{api: api}
}

func (s *PollSender) SendPoll(ctx context.Context, chatID int64, poll domain.PollDescriptor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	options := make([]string, len(poll.Options))
	for i, opt := range poll.Options {
		options[i] = truncate(opt, maxPollOption)
	}
	cfg := tgbotapi.NewPoll(chatID, truncate(poll.Prompt, maxPollQuestion), options...)
	cfg.Type = "quiz"
	cfg.IsAnonymous = poll.Anonymous
	cfg.CorrectOptionID = int64(poll.CorrectOption)
	if poll.OpenPeriod > 0 {
		cfg.OpenPeriod = int(clampDuration(poll.OpenPeriod, minOpenPeriod, maxOpenPeriod) / time.Second)
	}

	msg, err := s.api.Send(cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}
	if msg.Poll == nil {
		return "", fmt.Errorf("%w: response carries no poll", domain.ErrDelivery)
	}
	return msg.Poll.ID, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
