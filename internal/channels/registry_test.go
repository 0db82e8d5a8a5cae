package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		SlackWebhookURL:     "https://hooks.slack.com/services/T/B/X",
		PagerDutyRoutingKey: "rk",
		SMSMinSeverity:      alerts.SeverityError,
		WebhookURLs:         []string{"https://example.com/hook"},
	}

	chs := FromConfig(cfg, zap.NewNop())
	require.Len(t, chs, 5)

	configured := map[string]bool{}
	for _, ch := range chs {
		configured[ch.Name()] = ch.IsConfigured()
	}
	assert.Equal(t, map[string]bool{
		"slack":     true,
		"pagerduty": true,
		"sms":       false,
		"webhook":   true,
		"email":     false,
	}, configured)

	for _, ch := range chs {
		if ch.Name() == "sms" {
			assert.True(t, ch.ShouldSend(alerts.SeverityError))
		}
	}
}
