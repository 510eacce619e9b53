package models

import "time"

// EventType tags events emitted on a group's change stream.
type EventType string

const (
	EventMessageCreated  EventType = "message_created"
	EventMessageEdited   EventType = "message_edited"
	EventMessageDeleted  EventType = "message_deleted"
	EventReactionAdded   EventType = "reaction_added"
	EventReactionRemoved EventType = "reaction_removed"
	EventMemberAdded     EventType = "member_added"
	EventMemberRemoved   EventType = "member_removed"
	EventTyping          EventType = "typing"
)

// GroupEvent is the typed envelope delivered to group stream subscribers and
// forwarded over the live session websocket.
type GroupEvent struct {
	Type      EventType `json:"type"`
	GroupID   int       `json:"group_id"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	UserID    int       `json:"user_id,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
}

// TypingEvent is the payload published on the ephemeral typing channel.
// It is never persisted.
type TypingEvent struct {
	GroupID  int       `json:"group_id"`
	UserID   int       `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
	At       time.Time `json:"at"`
}
