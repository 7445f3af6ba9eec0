// Package message provides buyer/seller conversation threads.
package message

import "time"

// Subject ties a thread to the listing or wanted ad it is about.
// Both empty means a general conversation.
type Subject struct {
	ItemID     string `json:"item_id,omitempty"`
	WantedAdID string `json:"wanted_ad_id,omitempty"`
}

// Thread is a conversation between participants.
type Thread struct {
	ID           string    `json:"id"`
	ItemID       *string   `json:"item_id,omitempty"`
	WantedAdID   *string   `json:"wanted_ad_id,omitempty"`
	Participants []string  `json:"participants"`
	LastMessage  string    `json:"last_message,omitempty"`
	UnreadCount  int       `json:"unread_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single message in a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// maxBodyLen caps message length in runes.
const maxBodyLen = 4000

// previewLen is how much of a message a notification shows.
const previewLen = 80

// preview shortens body for notifications.
func preview(body string) string {
	r := []rune(body)
	if len(r) <= previewLen {
		return body
	}
	return string(r[:previewLen-1]) + "…"
}
