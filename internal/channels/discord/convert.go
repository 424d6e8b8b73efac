package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/neobot/internal/channels"
	"github.com/haasonsaas/neobot/pkg/models"
)

var intentsByName = map[string]discordgo.Intent{
	"guilds":                   discordgo.IntentsGuilds,
	"guild_members":            discordgo.IntentsGuildMembers,
	"guild_messages":           discordgo.IntentsGuildMessages,
	"guild_message_reactions":  discordgo.IntentsGuildMessageReactions,
	"direct_messages":          discordgo.IntentsDirectMessages,
	"direct_message_reactions": discordgo.IntentsDirectMessageReactions,
	"message_content":          discordgo.IntentsMessageContent,
}

// ParseIntents combines gateway intent names into a discordgo intent mask.
// An empty list selects what the script engine needs.
func ParseIntents(names []string) (discordgo.Intent, error) {
	if len(names) == 0 {
		return discordgo.IntentsGuilds |
			discordgo.IntentsGuildMembers |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMessageReactions |
			discordgo.IntentsMessageContent, nil
	}

	var intents discordgo.Intent
	for _, name := range names {
		intent, ok := intentsByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			known := make([]string, 0, len(intentsByName))
			for k := range intentsByName {
				known = append(known, k)
			}
			sort.Strings(known)
			return 0, fmt.Errorf("unknown intent %q (known: %s)", name, strings.Join(known, ", "))
		}
		intents |= intent
	}
	return intents, nil
}

func convertMessage(m *discordgo.Message) *models.Message {
	if m == nil || m.Author == nil {
		return nil
	}

	msg := &models.Message{
		ID:        m.ID,
		Channel:   models.ChannelDiscord,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Author:    convertUser(m.Author, m.Member),
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.EditedTimestamp != nil {
		msg.EditedAt = *m.EditedTimestamp
	}
	return msg
}

func convertUser(u *discordgo.User, member *discordgo.Member) models.User {
	if u == nil {
		return models.User{}
	}
	user := models.User{
		ID:        u.ID,
		Name:      u.Username,
		AvatarURL: u.AvatarURL(""),
		Bot:       u.Bot,
	}
	if member != nil {
		user.Nick = member.Nick
	}
	return user
}

// Gateway close codes that no retry can fix.
const (
	gatewayCloseAuthFailed        = 4004
	gatewayCloseInvalidIntents    = 4013
	gatewayCloseDisallowedIntents = 4014
)

// classifyError maps discordgo failures onto coded channel errors.
func classifyError(op string, err error) *channels.Error {
	var restErr *discordgo.RESTError
	var rateErr *discordgo.RateLimitError
	var closeErr *websocket.CloseError

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return channels.ErrTimeout("request timed out", err).WithOp(op)
	case errors.As(err, &closeErr) && closeErr.Code == gatewayCloseAuthFailed:
		return channels.ErrAuthentication("discord rejected the token", err).WithOp(op)
	case errors.As(err, &closeErr) && (closeErr.Code == gatewayCloseInvalidIntents || closeErr.Code == gatewayCloseDisallowedIntents):
		return channels.ErrConfig("discord rejected the gateway intents", err).WithOp(op)
	case errors.As(err, &rateErr):
		return channels.ErrRateLimit("discord rate limit exceeded", err).WithOp(op)
	case errors.As(err, &restErr) && restErr.Response != nil:
		switch status := restErr.Response.StatusCode; {
		case status == http.StatusUnauthorized:
			return channels.ErrAuthentication("discord rejected the token", err).WithOp(op)
		case status == http.StatusForbidden:
			return channels.ErrForbidden("missing permission", err).WithOp(op)
		case status == http.StatusNotFound:
			return channels.ErrNotFound("unknown resource", err).WithOp(op)
		case status == http.StatusTooManyRequests:
			return channels.ErrRateLimit("discord rate limit exceeded", err).WithOp(op)
		case status >= http.StatusInternalServerError:
			return channels.ErrUnavailable("discord server error", err).WithOp(op)
		case status >= http.StatusBadRequest:
			return channels.ErrInvalidInput("request rejected", err).WithOp(op)
		}
	}
	return channels.ErrConnection("discord request failed", err).WithOp(op)
}
