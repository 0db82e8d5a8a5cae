package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexwatch/lexwatch/internal/alerts"
	"github.com/lexwatch/lexwatch/internal/utils"
)

const (
	// DefaultTwilioBaseURL is the Twilio REST API root
	DefaultTwilioBaseURL = "https://api.twilio.com"
	smsMaxLength         = 160
)

// ErrSMSRateLimited is returned when the per-process SMS budget is exhausted
var ErrSMSRateLimited = errors.New("sms rate limit exceeded")

// SMSConfig configures the SMS channel
type SMSConfig struct {
	AccountSID  string
	AuthToken   string
	FromNumber  string
	Recipients  []string
	MinSeverity alerts.Severity
	// PerMinute caps messages per minute across all recipients; 0 disables the cap.
	PerMinute  int
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SMSChannel texts alerts at or above a severity threshold through Twilio
type SMSChannel struct {
	cfg        SMSConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewSMSChannel creates the SMS channel
func NewSMSChannel(logger *zap.Logger, cfg SMSConfig) *SMSChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = alerts.SeverityCritical
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	s := &SMSChannel{
		cfg:        cfg,
		httpClient: client,
		logger:     logger.Named("sms"),
	}
	if cfg.PerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PerMinute)), cfg.PerMinute)
	}
	return s
}

// Name implements Channel.
func (s *SMSChannel) Name() string { return "sms" }

// IsConfigured implements Channel.
func (s *SMSChannel) IsConfigured() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != "" && s.cfg.FromNumber != "" && len(s.cfg.Recipients) > 0
}

// ShouldSend implements Channel.
func (s *SMSChannel) ShouldSend(severity alerts.Severity) bool {
	return severity.AtLeast(s.cfg.MinSeverity)
}

// Send implements Channel. Every recipient is attempted; failures are joined.
func (s *SMSChannel) Send(ctx context.Context, alert *alerts.Alert) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	body := FormatSMS(alert)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.BaseURL, "/"), url.PathEscape(s.cfg.AccountSID))

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, to := range s.cfg.Recipients {
		if s.limiter != nil && !s.limiter.Allow() {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", maskNumber(to), ErrSMSRateLimited))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			form := url.Values{"To": {to}, "From": {s.cfg.FromNumber}, "Body": {body}}
			err := post(ctx, s.httpClient, request{
				url:         endpoint,
				contentType: "application/x-www-form-urlencoded",
				body:        []byte(form.Encode()),
				username:    s.cfg.AccountSID,
				password:    s.cfg.AuthToken,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", maskNumber(to), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// FormatSMS renders the short text sent to phones
func FormatSMS(alert *alerts.Alert) string {
	text := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(alert.Severity.String()), alert.Title, alert.Message)
	return utils.TruncateText(text, smsMaxLength)
}

// maskNumber keeps the last four digits of a phone number for logs
func maskNumber(number string) string {
	if len(number) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
