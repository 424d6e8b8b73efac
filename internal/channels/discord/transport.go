package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/neobot/internal/channels"
	"github.com/haasonsaas/neobot/pkg/models"
)

// memberPageSize is the largest page Discord returns from the member list.
const memberPageSize = 1000

// call runs one REST operation under the rate limiter and request timeout,
// recording metrics and a client span. Failures come back as *channels.Error.
func (a *Adapter) call(ctx context.Context, op string, fn func(opts ...discordgo.RequestOption) error) error {
	start := time.Now()
	ctx, span := a.tracer.TraceTransport(ctx, op)
	defer span.End()

	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}

	var cerr *channels.Error
	if err := a.limiter.Wait(ctx); err != nil {
		cerr = channels.ErrTimeout("rate limit wait cancelled", err).WithOp(op)
	} else if a.session == nil {
		cerr = channels.ErrUnavailable("adapter not started", nil).WithOp(op)
	} else if err := fn(discordgo.WithContext(ctx)); err != nil {
		cerr = classifyError(op, err)
	}

	if cerr != nil {
		a.tracer.RecordError(span, cerr)
		a.metrics.RecordTransport(op, string(cerr.Code), time.Since(start).Seconds())
		a.logger.Debug("discord call failed", "op", op, "error", cerr)
		return cerr
	}
	a.metrics.RecordTransport(op, "success", time.Since(start).Seconds())
	return nil
}

// Send posts content to a channel.
func (a *Adapter) Send(ctx context.Context, channelID, content string) error {
	if channelID == "" || content == "" {
		return channels.ErrInvalidInput("channel id and content are required", nil).WithOp("send")
	}
	return a.call(ctx, "send", func(opts ...discordgo.RequestOption) error {
		_, err := a.session.ChannelMessageSend(channelID, content, opts...)
		return err
	})
}

// Reply posts content as a reply referencing messageID.
func (a *Adapter) Reply(ctx context.Context, channelID, messageID, content string) error {
	if channelID == "" || messageID == "" || content == "" {
		return channels.ErrInvalidInput("channel id, message id and content are required", nil).WithOp("reply")
	}
	ref := &discordgo.MessageReference{ChannelID: channelID, MessageID: messageID}
	return a.call(ctx, "reply", func(opts ...discordgo.RequestOption) error {
		_, err := a.session.ChannelMessageSendReply(channelID, content, ref, opts...)
		return err
	})
}

// React adds the bot's reaction to a message.
func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	if emoji == "" {
		return channels.ErrInvalidInput("emoji is required", nil).WithOp("react")
	}
	return a.call(ctx, "react", func(opts ...discordgo.RequestOption) error {
		return a.session.MessageReactionAdd(channelID, messageID, emoji, opts...)
	})
}

// ClearReactions removes every reaction from a message.
func (a *Adapter) ClearReactions(ctx context.Context, channelID, messageID string) error {
	return a.call(ctx, "clear_reactions", func(opts ...discordgo.RequestOption) error {
		return a.session.MessageReactionsRemoveAll(channelID, messageID, opts...)
	})
}

// DeleteMessage deletes a message.
func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return a.call(ctx, "delete", func(opts ...discordgo.RequestOption) error {
		return a.session.ChannelMessageDelete(channelID, messageID, opts...)
	})
}

// DirectMessage opens (or reuses) the DM channel with userID and posts
// content to it.
func (a *Adapter) DirectMessage(ctx context.Context, userID, content string) error {
	if userID == "" || content == "" {
		return channels.ErrInvalidInput("user id and content are required", nil).WithOp("direct_message")
	}
	var dm *discordgo.Channel
	err := a.call(ctx, "open_dm", func(opts ...discordgo.RequestOption) error {
		var err error
		dm, err = a.session.UserChannelCreate(userID, opts...)
		return err
	})
	if err != nil {
		return err
	}
	return a.Send(ctx, dm.ID, content)
}

// FetchMessage loads the current state of a message. When guildID is set the
// author's guild nickname is resolved on a best-effort basis.
func (a *Adapter) FetchMessage(ctx context.Context, guildID, channelID, messageID string) (*models.Message, error) {
	var raw *discordgo.Message
	err := a.call(ctx, "fetch_message", func(opts ...discordgo.RequestOption) error {
		var err error
		raw, err = a.session.ChannelMessage(channelID, messageID, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	msg := convertMessage(raw)
	if msg == nil {
		return nil, channels.ErrNotFound("message has no author", nil).WithOp("fetch_message")
	}
	if msg.GuildID == "" {
		msg.GuildID = guildID
	}
	if msg.GuildID != "" && msg.Author.Nick == "" {
		if member, err := a.member(ctx, msg.GuildID, msg.Author.ID); err == nil {
			msg.Author.Nick = member.Nick
		}
	}
	return msg, nil
}

func (a *Adapter) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	var member *discordgo.Member
	err := a.call(ctx, "guild_member", func(opts ...discordgo.RequestOption) error {
		var err error
		member, err = a.session.GuildMember(guildID, userID, opts...)
		return err
	})
	return member, err
}

// User looks up a user by id.
func (a *Adapter) User(ctx context.Context, userID string) (*models.User, error) {
	var raw *discordgo.User
	err := a.call(ctx, "user", func(opts ...discordgo.RequestOption) error {
		var err error
		raw, err = a.session.User(userID, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	user := convertUser(raw, nil)
	return &user, nil
}

// FindMember returns the first guild member whose user name or nickname
// equals name. It pages through the member list and returns a NOT_FOUND
// error when nobody matches.
func (a *Adapter) FindMember(ctx context.Context, guildID, name string) (*models.User, error) {
	if guildID == "" || strings.TrimSpace(name) == "" {
		return nil, channels.ErrInvalidInput("guild id and name are required", nil).WithOp("find_member")
	}

	after := ""
	for {
		var page []*discordgo.Member
		err := a.call(ctx, "guild_members", func(opts ...discordgo.RequestOption) error {
			var err error
			page, err = a.session.GuildMembers(guildID, after, memberPageSize, opts...)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, member := range page {
			if member == nil || member.User == nil {
				continue
			}
			if member.User.Username == name || (member.Nick != "" && member.Nick == name) {
				user := convertUser(member.User, member)
				return &user, nil
			}
		}

		if len(page) < memberPageSize {
			return nil, channels.ErrNotFound("no member named "+name, nil).WithOp("find_member")
		}
		last := page[len(page)-1]
		if last == nil || last.User == nil {
			return nil, channels.ErrNotFound("no member named "+name, nil).WithOp("find_member")
		}
		after = last.User.ID
	}
}
