package entity

import "time"

// Inbound is one image attachment received from the chat transport.
type Inbound struct {
	UpdateID   int       `json:"update_id"`
	ChatID     int64     `json:"chat_id"`
	MessageID  int       `json:"message_id"`
	FileID     string    `json:"file_id"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int       `json:"file_size,omitempty"`
	From       string    `json:"from,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
