package models

import "time"

// Origin tells who authored a message.
type Origin string

const (
	// OriginUser marks text typed by the person using the widget.
	OriginUser Origin = "user"
	// OriginBot marks text produced by the inference endpoint, or the fallback apology when the
	// endpoint could not be reached.
	OriginBot Origin = "bot"
)

// Message is a piece of chat text together with its author. Messages are ephemeral: they live only
// as long as the transcript that displays them.
type Message struct {
	Text   string `json:"text"`
	Origin Origin `json:"origin"`
}

// Entry is the rendered form of a message inside a display region. Text holds what is currently
// visible, which for a bot entry grows while its reveal animation runs. Loading is true while the
// placeholder is shown, that is until the first character is revealed.
type Entry struct {
	Message

	ID        string    `json:"id"`
	Loading   bool      `json:"loading"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the entry was authored by the user.
func (e Entry) IsUser() bool {
	return e.Origin == OriginUser
}
