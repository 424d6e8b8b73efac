// Package capability builds the "neo" package that scripts import. Each
// script gets its own Scope bound to the channel, guild and message that
// defined it; every side effect a script triggers goes through a Transport.
package capability

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/haasonsaas/neobot/pkg/models"
)

// PackagePath is the import path scripts use for the capability package.
const PackagePath = "neo"

// Transport performs the platform calls behind script side effects.
type Transport interface {
	Send(ctx context.Context, channelID, content string) error
	Reply(ctx context.Context, channelID, messageID, content string) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DirectMessage(ctx context.Context, userID, content string) error
	FindMember(ctx context.Context, guildID, name string) (*models.User, error)
}

// Options configures a Provider.
type Options struct {
	Transport Transport

	// CallTimeout bounds each side effect. Zero means no timeout.
	CallTimeout time.Duration

	// Context is the parent of every side-effect call; cancelling it aborts
	// calls in flight. Defaults to context.Background().
	Context context.Context

	Logger *slog.Logger
}

// Provider hands out per-script scopes.
type Provider struct {
	transport   Transport
	callTimeout time.Duration
	ctx         context.Context
	logger      *slog.Logger
}

func NewProvider(opts Options) *Provider {
	if opts.Transport == nil {
		opts.Transport = NopTransport{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provider{
		transport:   opts.Transport,
		callTimeout: opts.CallTimeout,
		ctx:         opts.Context,
		logger:      opts.Logger.With("component", "capability"),
	}
}

// Scope returns the capability surface for a script anchored to origin.
func (p *Provider) Scope(origin *models.Message) *Scope {
	return &Scope{
		provider:  p,
		channelID: origin.ChannelID,
		guildID:   origin.GuildID,
		origin:    origin.Origin(),
		logger:    p.logger.With("origin", origin.Origin().String()),
	}
}

// Scope is the capability surface of one script.
type Scope struct {
	provider  *Provider
	channelID string
	guildID   string
	origin    models.Origin
	logger    *slog.Logger
}

// Origin returns the message the scope is anchored to.
func (s *Scope) Origin() models.Origin { return s.origin }

// Message wraps a payload into a fresh handle for one hook call.
func (s *Scope) Message(msg *models.Message) *Message {
	if msg == nil {
		return nil
	}
	snapshot := *msg
	return &Message{scope: s, msg: &snapshot}
}

// Exports returns the symbol table registered under "neo/neo" in the
// script's interpreter.
func (s *Scope) Exports() interp.Exports {
	symbols := map[string]reflect.Value{
		"Message": reflect.ValueOf((*Message)(nil)),
		"User":    reflect.ValueOf((*User)(nil)),

		"Broadcast": reflect.ValueOf(s.Broadcast),
		"Random":    reflect.ValueOf(Random),

		"Upper":      reflect.ValueOf(Upper),
		"Lower":      reflect.ValueOf(Lower),
		"Substring":  reflect.ValueOf(Substring),
		"Contains":   reflect.ValueOf(Contains),
		"StartsWith": reflect.ValueOf(StartsWith),
		"Length":     reflect.ValueOf(Length),
		"Str":        reflect.ValueOf(Str),
	}
	if s.guildID != "" {
		symbols["FindUser"] = reflect.ValueOf(s.FindUser)
	}
	return interp.Exports{PackagePath + "/" + PackagePath: symbols}
}

// Broadcast posts v to the script's own channel.
func (s *Scope) Broadcast(v any) {
	content := Str(v)
	s.do("broadcast", func(ctx context.Context) error {
		return s.provider.transport.Send(ctx, s.channelID, content)
	})
}

// FindUser returns the first guild member whose user name or nickname is
// name, or nil.
func (s *Scope) FindUser(name string) *User {
	var found *models.User
	s.do("find_user", func(ctx context.Context) error {
		var err error
		found, err = s.provider.transport.FindMember(ctx, s.guildID, name)
		return err
	})
	if found == nil {
		return nil
	}
	return &User{scope: s, user: *found}
}

// do runs one side effect synchronously under the call timeout. Failures are
// logged and never reach the script.
func (s *Scope) do(op string, fn func(ctx context.Context) error) {
	ctx := s.provider.ctx
	if s.provider.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.provider.callTimeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		s.logger.Debug("capability call failed", "op", op, "error", err)
	}
}

// NopTransport accepts every call and finds nobody. It backs offline script
// checks.
type NopTransport struct{}

func (NopTransport) Send(context.Context, string, string) error { return nil }
func (NopTransport) Reply(context.Context, string, string, string) error { return nil }
func (NopTransport) React(context.Context, string, string, string) error { return nil }
func (NopTransport) DeleteMessage(context.Context, string, string) error { return nil }
func (NopTransport) DirectMessage(context.Context, string, string) error { return nil }
func (NopTransport) FindMember(context.Context, string, string) (*models.User, error) {
	return nil, nil
}
