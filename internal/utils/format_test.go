package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"milliseconds", 45 * time.Millisecond, "45ms"},
		{"one second", 1 * time.Second, "1.0s"},
		{"seconds with decimal", 1500 * time.Millisecond, "1.5s"},
		{"one minute", 1 * time.Minute, "1m"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"one hour", 1 * time.Hour, "1h"},
		{"hours and minutes", 1*time.Hour + 15*time.Minute, "1h 15m"},
		{"retention", 24 * time.Hour, "24h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDuration(tt.duration))
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"newlines folded", "line one\nline two", 20, "line one line two"},
		{"tiny limit", "hello", 2, "..."},
		{"multibyte", "ÄÖÜäöüß-extra", 6, "ÄÖÜ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateText(tt.text, tt.maxLen))
		})
	}
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", Prefix("abcdef", 3))
	assert.Equal(t, "ab", Prefix("ab", 3))
	assert.Equal(t, "日本", Prefix("日本語", 2))
	assert.Equal(t, "", Prefix("abc", 0))
}
