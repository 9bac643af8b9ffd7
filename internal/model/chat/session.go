package chat

import "time"

// Session captures one conversation between a user and the assistant.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}
