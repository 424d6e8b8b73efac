package script

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/neobot/pkg/models"
)

type fakeReactionTransport struct {
	reacts  []string
	clears  int
	replies []string
	err     error
}

func (f *fakeReactionTransport) React(_ context.Context, _, _, emoji string) error {
	f.reacts = append(f.reacts, emoji)
	return f.err
}

func (f *fakeReactionTransport) ClearReactions(context.Context, string, string) error {
	f.clears++
	return f.err
}

func (f *fakeReactionTransport) Reply(_ context.Context, _, _, content string) error {
	f.replies = append(f.replies, content)
	return f.err
}

func TestReactionFeedback(t *testing.T) {
	transport := &fakeReactionTransport{}
	fb := NewReactionFeedback(transport, DefaultGlyphs(), nil)
	origin := models.Origin{ChannelID: "c1", MessageID: "m1"}
	ctx := context.Background()

	for _, kind := range []Kind{KindSuccess, KindFailure, KindExecuted, KindFault} {
		fb.Signal(ctx, origin, kind)
	}
	fb.Clear(ctx, origin)
	fb.Echo(ctx, origin, "1:5: expected ')'")

	want := []string{"🟢", "🔴", "😇", "💀"}
	for i, glyph := range want {
		if transport.reacts[i] != glyph {
			t.Errorf("reaction %d = %q, want %q", i, transport.reacts[i], glyph)
		}
	}
	if transport.clears != 1 {
		t.Errorf("clears = %d", transport.clears)
	}
	if len(transport.replies) != 1 || transport.replies[0] != "Error: 1:5: expected ')'" {
		t.Errorf("replies = %v", transport.replies)
	}
}

func TestReactionFeedbackSwallowsErrors(t *testing.T) {
	transport := &fakeReactionTransport{err: errors.New("forbidden")}
	fb := NewReactionFeedback(transport, Glyphs{Success: "ok"}, nil)
	origin := models.Origin{ChannelID: "c1", MessageID: "m1"}

	fb.Signal(context.Background(), origin, KindSuccess)
	fb.Signal(context.Background(), origin, KindFault) // no glyph configured
	if len(transport.reacts) != 1 {
		t.Errorf("reacts = %v", transport.reacts)
	}
}
