package notify

import (
	"context"
	"errors"
	"time"

	"github.com/slack-go/slack"

	"github.com/haasonsaas/leadline/internal/leads"
)

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	// BotToken is the Slack bot OAuth token (xoxb-...).
	BotToken string `yaml:"bot_token"`

	// ChannelID is the channel alerts are posted to.
	ChannelID string `yaml:"channel_id"`
}

// SlackNotifier posts interested-lead alerts to a Slack channel.
type SlackNotifier struct {
	client    *slack.Client
	channelID string
	timeout   time.Duration
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg SlackConfig) (*SlackNotifier, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("notify: slack bot token is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("notify: slack channel id is required")
	}
	return &SlackNotifier{
		client:    slack.New(cfg.BotToken),
		channelID: cfg.ChannelID,
		timeout:   10 * time.Second,
	}, nil
}

// Name identifies this notifier in logs.
func (n *SlackNotifier) Name() string { return "slack" }

// Notify posts the alert to the configured channel.
func (n *SlackNotifier) Notify(ctx context.Context, lead *leads.Lead) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(alertText(lead), false),
	)
	return err
}
