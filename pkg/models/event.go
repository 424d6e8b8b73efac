package models

// EventType names the kinds of inbound platform events.
type EventType string

const (
	// EventNewMessage is a message posted to a channel.
	EventNewMessage EventType = "new_message"

	// EventMessageEdited is an edit of an existing message.
	EventMessageEdited EventType = "message_edited"

	// EventReactionAdded is a reaction placed on a message.
	EventReactionAdded EventType = "reaction_added"

	// EventSessionReady is emitted once the platform session is established.
	EventSessionReady EventType = "session_ready"
)

// Event is an inbound platform event. Exactly one of the payload fields is
// set, matching Type.
type Event struct {
	Type     EventType      `json:"type"`
	Message  *NewMessage    `json:"message,omitempty"`
	Edit     *MessageEdited `json:"edit,omitempty"`
	Reaction *ReactionAdded `json:"reaction,omitempty"`
	Ready    *SessionReady  `json:"ready,omitempty"`
}

// NewMessage carries a freshly posted message.
type NewMessage struct {
	Message *Message `json:"message"`
}

// MessageEdited reports an edit. Content is nil when the edit did not touch
// the text (for example an embed-only update).
type MessageEdited struct {
	ChannelID string  `json:"channel_id"`
	GuildID   string  `json:"guild_id,omitempty"`
	MessageID string  `json:"message_id"`
	Content   *string `json:"content,omitempty"`
}

// Origin returns the identity of the edited message.
func (e *MessageEdited) Origin() Origin {
	return Origin{ChannelID: e.ChannelID, MessageID: e.MessageID}
}

// ReactionAdded reports a reaction placed by Actor on a message.
type ReactionAdded struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	MessageID string `json:"message_id"`
	ActorID   string `json:"actor_id"`
	Emoji     string `json:"emoji"`
}

// Origin returns the identity of the reacted-to message.
func (r *ReactionAdded) Origin() Origin {
	return Origin{ChannelID: r.ChannelID, MessageID: r.MessageID}
}

// SessionReady is informational: the session is up under DisplayName.
type SessionReady struct {
	DisplayName string `json:"display_name"`
	Guilds      int    `json:"guilds"`
}

// NewMessageEvent wraps a message into an Event.
func NewMessageEvent(msg *Message) Event {
	return Event{Type: EventNewMessage, Message: &NewMessage{Message: msg}}
}

// MessageEditedEvent wraps an edit into an Event.
func MessageEditedEvent(edit *MessageEdited) Event {
	return Event{Type: EventMessageEdited, Edit: edit}
}

// ReactionAddedEvent wraps a reaction into an Event.
func ReactionAddedEvent(r *ReactionAdded) Event {
	return Event{Type: EventReactionAdded, Reaction: r}
}

// SessionReadyEvent wraps a ready notification into an Event.
func SessionReadyEvent(r *SessionReady) Event {
	return Event{Type: EventSessionReady, Ready: r}
}
