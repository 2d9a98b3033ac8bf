// Package telegram posts deal messages to a channel.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/dealwire-hq/dealwire/internal/logger"
)

// Channel is the posting surface the pipeline depends on.
type Channel interface {
	Send(ctx context.Context, text string) error
}

// Client posts Markdown messages to a single channel.
type Client struct {
	bot     *tgbot.Bot
	channel string
	log     logger.Logger
}

// New creates a Client for the given bot token and channel. The channel may
// be a @username or a numeric chat ID string.
func New(token, channel string, log logger.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, fmt.Errorf("telegram channel is empty")
	}

	b, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Client{bot: b, channel: channel, log: logger.Ensure(log)}, nil
}

// Send posts one message to the channel.
func (c *Client) Send(ctx context.Context, text string) error {
	_, err := c.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    c.channel,
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	c.log.DebugObj("message posted", "telegram", map[string]interface{}{
		"channel": c.channel,
		"length":  len(text),
	})
	return nil
}

// NopChannel discards messages. It stands in when no bot is configured so
// dry runs still exercise the full cycle.
type NopChannel struct{}

func (NopChannel) Send(context.Context, string) error { return nil }
