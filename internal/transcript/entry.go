// Package transcript models the records found in Claude Code JSONL transcripts
// and converts them to and from their JSON form.
package transcript

import "encoding/json"

// Kind is the value of a record's top-level "type" field.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSummary   Kind = "summary"
)

// Entry is one parsed transcript record. The set of implementations is closed:
// *UserEntry, *AssistantEntry and *SummaryEntry.
type Entry interface {
	Kind() Kind
	entry()
}

// Envelope holds the fields shared by user and assistant records.
type Envelope struct {
	ParentUUID  *string `json:"parentUuid"`
	IsSidechain bool    `json:"isSidechain"`
	UserType    string  `json:"userType"`
	Cwd         string  `json:"cwd"`
	SessionID   string  `json:"sessionId"`
	Version     string  `json:"version"`
	UUID        string  `json:"uuid"`
	Timestamp   string  `json:"timestamp"`
	IsMeta      *bool   `json:"isMeta,omitempty"`
}

// UserEntry is a message typed by the user or a tool result fed back to the model.
type UserEntry struct {
	Envelope
	Type          Kind            `json:"type"`
	Message       UserMessage     `json:"message"`
	ToolUseResult json.RawMessage `json:"toolUseResult,omitempty"`
}

// UserMessage is the payload of a user record.
type UserMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// AssistantEntry is one model response.
type AssistantEntry struct {
	Envelope
	Type      Kind             `json:"type"`
	RequestID string           `json:"requestId,omitempty"`
	Message   AssistantMessage `json:"message"`
}

// AssistantMessage mirrors the API response envelope.
type AssistantMessage struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Role         string        `json:"role"`
	Model        string        `json:"model"`
	Content      []ContentItem `json:"content"`
	StopReason   *string       `json:"stop_reason"`
	StopSequence *string       `json:"stop_sequence"`
	Usage        *Usage        `json:"usage,omitempty"`
}

// Usage holds token counts from the API response.
type Usage struct {
	InputTokens              int64          `json:"input_tokens"`
	OutputTokens             int64          `json:"output_tokens"`
	CacheCreationInputTokens int64          `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64          `json:"cache_read_input_tokens"`
	CacheCreation            *CacheCreation `json:"cache_creation,omitempty"`
	ServiceTier              string         `json:"service_tier,omitempty"`
}

// CacheCreation holds the breakdown of cache write tokens by TTL bucket.
type CacheCreation struct {
	Ephemeral5mInputTokens int64 `json:"ephemeral_5m_input_tokens"`
	Ephemeral1hInputTokens int64 `json:"ephemeral_1h_input_tokens"`
}

// SummaryEntry is a generated conversation title. It carries no timestamp or
// session id; LeafUUID points at the message it summarizes.
type SummaryEntry struct {
	Type     Kind   `json:"type"`
	Summary  string `json:"summary"`
	LeafUUID string `json:"leafUuid"`
}

func (*UserEntry) Kind() Kind      { return KindUser }
func (*AssistantEntry) Kind() Kind { return KindAssistant }
func (*SummaryEntry) Kind() Kind   { return KindSummary }

func (*UserEntry) entry()      {}
func (*AssistantEntry) entry() {}
func (*SummaryEntry) entry()   {}

func envelope(e Entry) *Envelope {
	switch v := e.(type) {
	case *UserEntry:
		return &v.Envelope
	case *AssistantEntry:
		return &v.Envelope
	}
	return nil
}

func field(e Entry, get func(*Envelope) string) (string, bool) {
	env := envelope(e)
	if env == nil {
		return "", false
	}
	s := get(env)
	return s, s != ""
}

// Timestamp returns the record's ISO-8601 timestamp, if it has one.
func Timestamp(e Entry) (string, bool) {
	return field(e, func(env *Envelope) string { return env.Timestamp })
}

// SessionID returns the id of the session the record belongs to.
func SessionID(e Entry) (string, bool) {
	return field(e, func(env *Envelope) string { return env.SessionID })
}

// UUID returns the record's own id.
func UUID(e Entry) (string, bool) {
	return field(e, func(env *Envelope) string { return env.UUID })
}

// Cwd returns the working directory the record was produced in.
func Cwd(e Entry) (string, bool) {
	return field(e, func(env *Envelope) string { return env.Cwd })
}

// IsMeta reports whether a user record was injected by the client rather than typed.
func IsMeta(e Entry) bool {
	env := envelope(e)
	return env != nil && env.IsMeta != nil && *env.IsMeta
}
