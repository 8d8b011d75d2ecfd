package model

// Message roles recognized by the pipeline. Anything else in the export
// (system, tool) is kept verbatim but never drives segmentation or
// scoring.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one normalized archive message. Timestamp is unix seconds,
// kept as float64 because exports carry sub-second fractions.
type Message struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	Timestamp      float64 `json:"timestamp"`
}

type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	CreateTime float64   `json:"create_time,omitempty"`
	UpdateTime float64   `json:"update_time,omitempty"`
	Messages   []Message `json:"messages"`
}

// Archive is the parsed conversation export. Skipped counters record
// how much malformed input was dropped on the way in.
type Archive struct {
	Conversations []Conversation `json:"conversations"`
	SkippedConvs  int            `json:"skipped_conversations,omitempty"`
	SkippedMsgs   int            `json:"skipped_messages,omitempty"`
}
