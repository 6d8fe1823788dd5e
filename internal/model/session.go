// Package model defines the cached rollup types for transcript projects.
package model

// TokenUsage tracks token counters. JSON keys match the on-disk index format.
type TokenUsage struct {
	InputTokens         int64 `json:"total_input_tokens"`
	OutputTokens        int64 `json:"total_output_tokens"`
	CacheCreationTokens int64 `json:"total_cache_creation_tokens"`
	CacheReadTokens     int64 `json:"total_cache_read_tokens"`
}

// Add accumulates o into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheCreationTokens += o.CacheCreationTokens
	u.CacheReadTokens += o.CacheReadTokens
}

// Total is the sum of all four counters.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// SessionSummary is the rollup of one conversation across every transcript
// file that mentions its session id.
type SessionSummary struct {
	SessionID        string  `json:"session_id"`
	Summary          *string `json:"summary"`
	FirstTimestamp   string  `json:"first_timestamp"`
	LastTimestamp    string  `json:"last_timestamp"`
	MessageCount     int     `json:"message_count"`
	FirstUserMessage string  `json:"first_user_message"`
	Cwd              string  `json:"cwd,omitempty"`
	TokenUsage
}

// Title returns the generated summary, falling back to the first user message.
func (s SessionSummary) Title() string {
	if s.Summary != nil && *s.Summary != "" {
		return *s.Summary
	}
	return s.FirstUserMessage
}
