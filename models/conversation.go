package models

import "time"

// Speaker identifies who produced a conversation message.
type Speaker string

const (
	SpeakerAssistant Speaker = "assistant"
	SpeakerUser      Speaker = "user"
)

// Message is one turn of the flattened conversation, derived from the
// persisted questions and responses. The last message's speaker is the
// decisive signal for turn analysis.
type Message struct {
	Speaker Speaker   `json:"speaker"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
