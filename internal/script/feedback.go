package script

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/neobot/pkg/models"
)

// Kind is a feedback category shown on an origin message.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindExecuted
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindExecuted:
		return "executed"
	case KindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Glyphs maps each feedback kind to a reaction emoji.
type Glyphs struct {
	Success  string
	Failure  string
	Executed string
	Fault    string
}

// DefaultGlyphs returns the stock reaction set.
func DefaultGlyphs() Glyphs {
	return Glyphs{Success: "🟢", Failure: "🔴", Executed: "😇", Fault: "💀"}
}

func (g Glyphs) For(kind Kind) string {
	switch kind {
	case KindSuccess:
		return g.Success
	case KindFailure:
		return g.Failure
	case KindExecuted:
		return g.Executed
	case KindFault:
		return g.Fault
	default:
		return ""
	}
}

// Feedback shows script state on origin messages. Implementations are
// best-effort and never fail the caller.
type Feedback interface {
	Signal(ctx context.Context, origin models.Origin, kind Kind)
	Clear(ctx context.Context, origin models.Origin)
	Echo(ctx context.Context, origin models.Origin, diagnostic string)
}

// ReactionTransport is the subset of the chat transport feedback needs.
type ReactionTransport interface {
	React(ctx context.Context, channelID, messageID, emoji string) error
	ClearReactions(ctx context.Context, channelID, messageID string) error
	Reply(ctx context.Context, channelID, messageID, content string) error
}

// ReactionFeedback renders feedback as reactions on the origin message and
// echoes diagnostics as replies.
type ReactionFeedback struct {
	transport ReactionTransport
	glyphs    Glyphs
	logger    *slog.Logger
}

func NewReactionFeedback(transport ReactionTransport, glyphs Glyphs, logger *slog.Logger) *ReactionFeedback {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReactionFeedback{
		transport: transport,
		glyphs:    glyphs,
		logger:    logger.With("component", "feedback"),
	}
}

func (f *ReactionFeedback) Signal(ctx context.Context, origin models.Origin, kind Kind) {
	glyph := f.glyphs.For(kind)
	if glyph == "" {
		return
	}
	if err := f.transport.React(ctx, origin.ChannelID, origin.MessageID, glyph); err != nil {
		f.logger.DebugContext(ctx, "feedback reaction failed", "origin", origin.String(), "kind", kind.String(), "error", err)
	}
}

func (f *ReactionFeedback) Clear(ctx context.Context, origin models.Origin) {
	if err := f.transport.ClearReactions(ctx, origin.ChannelID, origin.MessageID); err != nil {
		f.logger.DebugContext(ctx, "clearing feedback failed", "origin", origin.String(), "error", err)
	}
}

func (f *ReactionFeedback) Echo(ctx context.Context, origin models.Origin, diagnostic string) {
	if err := f.transport.Reply(ctx, origin.ChannelID, origin.MessageID, "Error: "+diagnostic); err != nil {
		f.logger.DebugContext(ctx, "echoing diagnostic failed", "origin", origin.String(), "error", err)
	}
}

// NopFeedback discards all feedback.
type NopFeedback struct{}

func (NopFeedback) Signal(context.Context, models.Origin, Kind) {}
func (NopFeedback) Clear(context.Context, models.Origin) {}
func (NopFeedback) Echo(context.Context, models.Origin, string) {}
