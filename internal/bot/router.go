// Package bot routes normalized chat events into the script engine.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/internal/script"
	"github.com/haasonsaas/neobot/pkg/models"
)

// Platform is the lookup surface the router needs from the chat transport.
type Platform interface {
	FetchMessage(ctx context.Context, guildID, channelID, messageID string) (*models.Message, error)
	User(ctx context.Context, userID string) (*models.User, error)
}

// Config configures a Router.
type Config struct {
	// IgnoreBots drops messages written by bot accounts.
	IgnoreBots bool

	// DisableReaction and EnableReaction are the emoji the origin author
	// uses to switch a script off and on.
	DisableReaction string
	EnableReaction  string

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Router consumes events one at a time, in arrival order.
type Router struct {
	engine   *script.Engine
	platform Platform
	config   Config
	logger   *slog.Logger
}

func NewRouter(engine *script.Engine, platform Platform, config Config) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Router{
		engine:   engine,
		platform: platform,
		config:   config,
		logger:   config.Logger.With("component", "router"),
	}
}

// Run handles events until ctx is cancelled or events is closed.
func (r *Router) Run(ctx context.Context, events <-chan models.Event) error {
	r.logger.Info("router started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("event stream closed")
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event.
func (r *Router) Handle(ctx context.Context, ev models.Event) {
	r.config.Metrics.RecordEvent(string(ev.Type))

	switch {
	case ev.Type == models.EventNewMessage && ev.Message != nil && ev.Message.Message != nil:
		r.handleNewMessage(ctx, ev.Message.Message)
	case ev.Type == models.EventMessageEdited && ev.Edit != nil:
		r.handleEdit(ctx, ev.Edit)
	case ev.Type == models.EventReactionAdded && ev.Reaction != nil:
		r.handleReaction(ctx, ev.Reaction)
	case ev.Type == models.EventSessionReady && ev.Ready != nil:
		r.logger.Info("connected", "display_name", ev.Ready.DisplayName, "guilds", ev.Ready.Guilds)
	default:
		r.logger.Debug("ignoring malformed event", "type", ev.Type)
	}
}

// handleNewMessage runs OnMessage on the channel's scripts, then registers
// the message itself if it carries a script.
func (r *Router) handleNewMessage(ctx context.Context, msg *models.Message) {
	if !msg.InGuild() {
		return
	}
	if r.config.IgnoreBots && msg.Author.Bot {
		return
	}

	ctx, span := r.config.Tracer.TraceEvent(ctx, string(models.EventNewMessage), msg.ChannelID)
	defer span.End()

	r.engine.Dispatch(ctx, msg.ChannelID, script.HookOnMessage, msg)

	if _, err := r.engine.Create(ctx, msg); err != nil && !errors.Is(err, script.ErrNoScript) && !script.IsCompileError(err) {
		r.logger.ErrorContext(ctx, "failed to create script", "origin", msg.Origin().String(), "error", err)
	}
}

// handleEdit re-fetches the edited message for OnMessageUpdate and, when the
// edit changed the text, replaces the script anchored to it.
func (r *Router) handleEdit(ctx context.Context, edit *models.MessageEdited) {
	if edit.GuildID == "" {
		return
	}

	ctx, span := r.config.Tracer.TraceEvent(ctx, string(models.EventMessageEdited), edit.ChannelID)
	defer span.End()

	current, err := r.platform.FetchMessage(ctx, edit.GuildID, edit.ChannelID, edit.MessageID)
	if err != nil {
		r.logger.WarnContext(ctx, "could not re-fetch edited message",
			"origin", edit.Origin().String(),
			"error", err)
	} else {
		r.engine.Dispatch(ctx, edit.ChannelID, script.HookOnMessageUpdate, current)
	}

	if edit.Content == nil {
		return
	}

	_, existed := r.engine.Lookup(edit.Origin())
	if !existed {
		if current == nil {
			return
		}
		if r.config.IgnoreBots && current.Author.Bot {
			return
		}
	}

	anchor := current
	if anchor == nil {
		anchor = &models.Message{
			ID:        edit.MessageID,
			Channel:   models.ChannelDiscord,
			ChannelID: edit.ChannelID,
			GuildID:   edit.GuildID,
		}
	}
	if _, err := r.engine.Replace(ctx, anchor, *edit.Content); err != nil && !script.IsCompileError(err) {
		r.logger.ErrorContext(ctx, "failed to replace script", "origin", edit.Origin().String(), "error", err)
	}
}

// handleReaction lets the origin author toggle their script. Reactions by
// bots, or by users that cannot be looked up, are ignored.
func (r *Router) handleReaction(ctx context.Context, reaction *models.ReactionAdded) {
	var desired bool
	switch reaction.Emoji {
	case r.config.DisableReaction:
		desired = false
	case r.config.EnableReaction:
		desired = true
	default:
		return
	}

	inst, ok := r.engine.Lookup(reaction.Origin())
	if !ok {
		return
	}
	if reaction.ActorID != inst.Message.Author.ID {
		return
	}

	actor, err := r.platform.User(ctx, reaction.ActorID)
	if err != nil || actor == nil || actor.Bot {
		return
	}

	ctx, span := r.config.Tracer.TraceEvent(ctx, string(models.EventReactionAdded), reaction.ChannelID)
	defer span.End()

	r.engine.SetEnabled(ctx, reaction.Origin(), desired)
}
