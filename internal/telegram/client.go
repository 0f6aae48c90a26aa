// Package telegram is the transport adapter for the reporting bot. It sends
// the portfolio command to the bot's chat and reads replies via Bot API long
// polling. Connection health, login, and retry policy live here; nothing in
// this package interprets the message body beyond the report/loading filters.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"polyfolio/internal/config"
)

// Message is one chat message as the rest of the system sees it.
type Message struct {
	ID     int
	ChatID int64
	Text   string
	SentAt time.Time
}

type Client struct {
	bot          *telego.Bot
	chatID       int64
	command      string
	replyTimeout time.Duration
	pollInterval time.Duration
	logger       *zap.Logger

	// getUpdates offset; advanced past every update we consume.
	offset int
}

func New(cfg config.TelegramConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: chat id is required")
	}
	bot, err := telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	command := cfg.Command
	if command == "" {
		command = "/positions"
	}
	replyTimeout := cfg.ReplyTimeout
	if replyTimeout <= 0 {
		replyTimeout = 30 * time.Second
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		bot:          bot,
		chatID:       cfg.ChatID,
		command:      command,
		replyTimeout: replyTimeout,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

// RequestPortfolio sends the portfolio command and waits for the bot's first
// substantive reply, skipping "loading" placeholders, until the reply timeout.
func (c *Client) RequestPortfolio(ctx context.Context) (Message, error) {
	_, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: c.chatID},
		Text:   c.command,
	})
	if err != nil {
		return Message{}, fmt.Errorf("telegram: send %s: %w", c.command, err)
	}

	deadline := time.Now().Add(c.replyTimeout)
	for {
		if time.Now().After(deadline) {
			return Message{}, fmt.Errorf("telegram: no reply to %s within %s", c.command, c.replyTimeout)
		}
		msgs, err := c.poll(ctx)
		if err != nil {
			return Message{}, err
		}
		for _, m := range msgs {
			if IsLoadingReply(m.Text) {
				c.logger.Debug("skipping loading placeholder", zap.Int("message_id", m.ID))
				continue
			}
			if m.Text != "" {
				return m, nil
			}
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// History drains pending updates and returns up to limit portfolio reports,
// newest last. The Bot API only exposes undelivered updates, so this is a
// bounded best-effort backfill source, pre-filtered with IsPortfolioReport.
func (c *Client) History(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []Message
	for len(out) < limit {
		msgs, err := c.poll(ctx)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			if !IsPortfolioReport(m.Text) {
				continue
			}
			out = append(out, m)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// poll fetches one batch of updates from the bot's chat and advances the
// offset so each update is consumed once.
func (c *Client) poll(ctx context.Context) ([]Message, error) {
	updates, err := c.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:         c.offset,
		Timeout:        1,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: get updates: %w", err)
	}
	var out []Message
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		if u.Message == nil || u.Message.Chat.ID != c.chatID {
			continue
		}
		out = append(out, Message{
			ID:     u.Message.MessageID,
			ChatID: u.Message.Chat.ID,
			Text:   u.Message.Text,
			SentAt: time.Unix(u.Message.Date, 0).UTC(),
		})
	}
	return out, nil
}

// IsPortfolioReport reports whether the text looks like a portfolio reply.
// The literal markers are the transport-level pre-filter for backfill.
func IsPortfolioReport(text string) bool {
	return strings.Contains(text, "Total Balance") || strings.Contains(text, "Positions(")
}

// IsLoadingReply recognizes the bot's transient placeholder replies.
func IsLoadingReply(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "loading") ||
		strings.Contains(l, "please wait") ||
		strings.Contains(l, "fetching") ||
		strings.Contains(text, "⏳")
}
