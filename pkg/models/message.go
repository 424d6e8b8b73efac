package models

import (
	"time"
)

// ChannelType represents a messaging platform.
type ChannelType string

const (
	ChannelDiscord ChannelType = "discord"
)

// Origin identifies the message anchoring a script: the container (chat
// channel) and the message inside it.
type Origin struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// String renders the origin as "channel/message" for logs.
func (o Origin) String() string {
	return o.ChannelID + "/" + o.MessageID
}

// IsZero reports whether the origin is unset.
func (o Origin) IsZero() bool {
	return o.ChannelID == "" && o.MessageID == ""
}

// User is a platform user as seen from one guild.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Nick      string `json:"nick,omitempty"` // guild nickname, empty when unset
	AvatarURL string `json:"avatar_url,omitempty"`
	Bot       bool   `json:"bot,omitempty"`
}

// DisplayName returns the guild nickname, falling back to the user name.
func (u User) DisplayName() string {
	if u.Nick != "" {
		return u.Nick
	}
	return u.Name
}

// Message is the normalized snapshot of a chat message.
type Message struct {
	ID        string      `json:"id"`
	Channel   ChannelType `json:"channel"`
	ChannelID string      `json:"channel_id"`
	GuildID   string      `json:"guild_id,omitempty"`
	Author    User        `json:"author"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	EditedAt  time.Time   `json:"edited_at,omitempty"`
}

// Origin returns the identity of the message.
func (m *Message) Origin() Origin {
	return Origin{ChannelID: m.ChannelID, MessageID: m.ID}
}

// InGuild reports whether the message was posted in a guild channel.
func (m *Message) InGuild() bool {
	return m.GuildID != ""
}
