package models

import "time"

// InboundMessage is what the messaging webhook hands to background processing.
// It is also the JSON payload published on the advisory queue in amqp dispatch mode.
type InboundMessage struct {
	RequestID  string    `json:"request_id"`
	MessageSID string    `json:"message_sid,omitempty"`
	From       string    `json:"from"`
	Body       string    `json:"body"`
	MediaURL   string    `json:"media_url,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// HasMedia reports whether the sender attached an image.
func (m InboundMessage) HasMedia() bool {
	return m.MediaURL != ""
}
