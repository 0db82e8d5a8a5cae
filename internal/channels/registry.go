package channels

import (
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/config"
)

// FromConfig builds every supported channel from the loaded configuration.
// Channels lacking secrets are still returned; they report
// IsConfigured() == false and the Dispatcher skips them.
func FromConfig(cfg *config.Config, logger *zap.Logger) []Channel {
	return []Channel{
		NewSlackChannel(logger, SlackConfig{
			WebhookURL: cfg.SlackWebhookURL,
			BotToken:   cfg.SlackBotToken,
			Channel:    cfg.SlackChannel,
			Timeout:    cfg.ChannelTimeout,
		}),
		NewPagerDutyChannel(logger, PagerDutyConfig{
			RoutingKey: cfg.PagerDutyRoutingKey,
			EventsURL:  cfg.PagerDutyEventsURL,
			Timeout:    cfg.ChannelTimeout,
		}),
		NewSMSChannel(logger, SMSConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			FromNumber:  cfg.TwilioFromNumber,
			Recipients:  cfg.SMSRecipients,
			MinSeverity: cfg.SMSMinSeverity,
			PerMinute:   cfg.SMSPerMinute,
			Timeout:     cfg.ChannelTimeout,
		}),
		NewWebhookChannel(logger, WebhookConfig{
			URLs:      cfg.WebhookURLs,
			AuthToken: cfg.WebhookAuthToken,
			Timeout:   cfg.ChannelTimeout,
		}),
		NewEmailChannel(logger, EmailConfig{
			SMTPURL:      cfg.EmailSMTPURL,
			Recipients:   cfg.EmailRecipients,
			CriticalOnly: cfg.EmailCriticalOnly,
		}),
	}
}
