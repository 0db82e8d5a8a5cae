package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// slackChannelResolver resolves channel names to IDs for bot-token delivery
type slackChannelResolver struct {
	client *slack.Client
	cache  map[string]string // name -> id
	mu     sync.RWMutex
}

func newSlackChannelResolver(client *slack.Client) *slackChannelResolver {
	return &slackChannelResolver{
		client: client,
		cache:  make(map[string]string),
	}
}

// Resolve accepts a channel ID (C01234567890) or a name (#alerts or
// alerts) and returns the channel ID.
func (r *slackChannelResolver) Resolve(ctx context.Context, nameOrID string) (string, error) {
	if nameOrID == "" {
		return "", fmt.Errorf("channel name/ID is empty")
	}
	if isSlackChannelID(nameOrID) {
		return nameOrID, nil
	}

	name := strings.TrimPrefix(nameOrID, "#")

	r.mu.RLock()
	if id, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	id, err := r.lookup(ctx, name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[name] = id
	r.mu.Unlock()
	return id, nil
}

func (r *slackChannelResolver) lookup(ctx context.Context, name string) (string, error) {
	for _, kind := range []string{"public_channel", "private_channel"} {
		params := &slack.GetConversationsParameters{
			ExcludeArchived: true,
			Limit:           1000,
			Types:           []string{kind},
		}
		for {
			channels, cursor, err := r.client.GetConversationsContext(ctx, params)
			if err != nil {
				return "", fmt.Errorf("failed to list %s channels: %w", kind, err)
			}
			for _, ch := range channels {
				if ch.Name == name {
					return ch.ID, nil
				}
			}
			if cursor == "" {
				break
			}
			params.Cursor = cursor
		}
	}
	return "", fmt.Errorf("channel '%s' not found", name)
}

// isSlackChannelID checks if a string looks like a Slack channel ID:
// C followed by upper-case alphanumerics, 9 to 15 characters in total.
func isSlackChannelID(s string) bool {
	if len(s) < 9 || len(s) > 15 {
		return false
	}
	if !strings.HasPrefix(s, "C") {
		return false
	}
	for _, c := range s[1:] {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
