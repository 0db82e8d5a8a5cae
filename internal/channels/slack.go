package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/utils"
)

var severityColors = map[alerts.Severity]string{
	alerts.SeverityInfo:     "#36a64f",
	alerts.SeverityWarning:  "#ff9900",
	alerts.SeverityError:    "#e01e5a",
	alerts.SeverityCritical: "#8b0000",
}

// SlackConfig configures the Slack channel. WebhookURL takes precedence;
// otherwise BotToken and Channel post through the Web API.
type SlackConfig struct {
	WebhookURL  string
	BotToken    string
	Channel     string
	Username    string
	MinSeverity alerts.Severity
	Timeout     time.Duration
	// APIURL overrides the Web API base URL (must end with "/").
	APIURL string
}

// SlackChannel posts color-coded alert attachments to Slack
type SlackChannel struct {
	cfg        SlackConfig
	httpClient *http.Client
	client     *slack.Client
	resolver   *slackChannelResolver
	logger     *zap.Logger
}

// NewSlackChannel creates a Slack channel. It is unconfigured when neither
// a webhook URL nor a bot token with a channel is given.
func NewSlackChannel(logger *zap.Logger, cfg SlackConfig) *SlackChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = alerts.SeverityInfo
	}
	if cfg.Username == "" {
		cfg.Username = "lexwatch"
	}
	s := &SlackChannel{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg.Timeout),
		logger:     logger.Named("slack"),
	}
	if cfg.WebhookURL == "" && cfg.BotToken != "" {
		opts := []slack.Option{slack.OptionHTTPClient(s.httpClient)}
		if cfg.APIURL != "" {
			opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
		}
		s.client = slack.New(cfg.BotToken, opts...)
		s.resolver = newSlackChannelResolver(s.client)
	}
	return s
}

// Name implements Channel.
func (s *SlackChannel) Name() string { return "slack" }

// IsConfigured implements Channel.
func (s *SlackChannel) IsConfigured() bool {
	return s.cfg.WebhookURL != "" || (s.cfg.BotToken != "" && s.cfg.Channel != "")
}

// ShouldSend implements Channel.
func (s *SlackChannel) ShouldSend(severity alerts.Severity) bool {
	return severity.AtLeast(s.cfg.MinSeverity)
}

// Send implements Channel.
func (s *SlackChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	att := BuildSlackAttachment(alert)
	text := fmt.Sprintf("%s alert: %s", strings.ToUpper(alert.Severity.String()), alert.Title)

	if s.cfg.WebhookURL != "" {
		msg := &slack.WebhookMessage{
			Username:    s.cfg.Username,
			Text:        text,
			Attachments: []slack.Attachment{att},
		}
		if err := slack.PostWebhookCustomHTTPContext(ctx, s.cfg.WebhookURL, s.httpClient, msg); err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		return nil
	}

	channelID, err := s.resolver.Resolve(ctx, s.cfg.Channel)
	if err != nil {
		return err
	}
	_, _, err = s.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAttachments(att),
		slack.MsgOptionUsername(s.cfg.Username),
	)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// BuildSlackAttachment renders an alert as a Slack attachment colored by severity
func BuildSlackAttachment(alert *alerts.Alert) slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Severity", Value: strings.ToUpper(alert.Severity.String()), Short: true},
		{Title: "Alert ID", Value: alert.ID, Short: true},
	}
	for _, meta := range []struct{ key, title string }{
		{alerts.MetaUserID, "User"},
		{alerts.MetaIPAddress, "IP Address"},
		{alerts.MetaResource, "Resource"},
	} {
		if v := alert.Metadata.String(meta.key); v != "" {
			fields = append(fields, slack.AttachmentField{Title: meta.title, Value: v, Short: true})
		}
	}

	color, ok := severityColors[alert.Severity]
	if !ok {
		color = severityColors[alerts.SeverityWarning]
	}

	return slack.Attachment{
		Color:    color,
		Fallback: utils.TruncateText(alert.Title+": "+alert.Message, 150),
		Title:    alert.Title,
		Text:     alert.Message,
		Fields:   fields,
		Footer:   "lexwatch",
		Ts:       json.Number(strconv.FormatInt(alert.Timestamp.Unix(), 10)),
	}
}
