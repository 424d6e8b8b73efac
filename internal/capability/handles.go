package capability

import (
	"context"

	"github.com/haasonsaas/neobot/pkg/models"
)

// Message is the script-side view of a chat message (neo.Message).
type Message struct {
	scope *Scope
	msg   *models.Message
}

func (m *Message) Content() string   { return m.msg.Content }
func (m *Message) ID() string        { return m.msg.ID }
func (m *Message) ChannelID() string { return m.msg.ChannelID }

// Author returns the message author.
func (m *Message) Author() *User {
	return &User{scope: m.scope, user: m.msg.Author}
}

// Reply answers the message with v rendered through Str.
func (m *Message) Reply(v any) {
	content := Str(v)
	m.scope.do("reply", func(ctx context.Context) error {
		return m.scope.provider.transport.Reply(ctx, m.msg.ChannelID, m.msg.ID, content)
	})
}

// React adds v (an emoji) as a reaction.
func (m *Message) React(v any) {
	emoji := Str(v)
	m.scope.do("react", func(ctx context.Context) error {
		return m.scope.provider.transport.React(ctx, m.msg.ChannelID, m.msg.ID, emoji)
	})
}

// Delete removes the message.
func (m *Message) Delete() {
	m.scope.do("delete", func(ctx context.Context) error {
		return m.scope.provider.transport.DeleteMessage(ctx, m.msg.ChannelID, m.msg.ID)
	})
}

func (m *Message) String() string { return m.msg.Content }

// User is the script-side view of a user (neo.User).
type User struct {
	scope *Scope
	user  models.User
}

func (u *User) ID() string     { return u.user.ID }
func (u *User) Name() string   { return u.user.Name }
func (u *User) Avatar() string { return u.user.AvatarURL }
func (u *User) IsBot() bool    { return u.user.Bot }

// Nick returns the guild nickname, or the user name when none is set.
func (u *User) Nick() string { return u.user.DisplayName() }

// DirectMessage sends v to the user privately.
func (u *User) DirectMessage(v any) {
	content := Str(v)
	u.scope.do("direct_message", func(ctx context.Context) error {
		return u.scope.provider.transport.DirectMessage(ctx, u.user.ID, content)
	})
}

func (u *User) String() string { return u.user.Name }
