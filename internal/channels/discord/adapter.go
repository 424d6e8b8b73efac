package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/haasonsaas/neobot/internal/channels"
	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/pkg/models"
)

// discordSession interface allows for mocking the Discord session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

// Config holds configuration for the Discord adapter.
type Config struct {
	// Token is the bot token from Discord Developer Portal (required)
	Token string

	// Intents lists gateway intents by name (see ParseIntents).
	Intents []string

	// MaxReconnectAttempts bounds connection attempts at startup and after
	// each disconnect.
	MaxReconnectAttempts int

	// ReconnectBackoff is the maximum backoff duration for reconnections
	ReconnectBackoff time.Duration

	// RateLimit is the outbound REST call rate (operations per second)
	RateLimit float64

	// RateBurst configures the burst capacity for rate limiting
	RateBurst int

	// RequestTimeout bounds each REST call, including the rate limit wait.
	RequestTimeout time.Duration

	// EventBuffer is the capacity of the inbound event channel.
	EventBuffer int

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return channels.ErrConfig("token is required", nil)
	}
	if _, err := ParseIntents(c.Intents); err != nil {
		return channels.ErrConfig("invalid intents", err)
	}

	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = 60 * time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Adapter owns the single Discord session. It turns gateway events into
// models.Event values, delivered in gateway order, and performs the REST
// calls the script engine needs.
type Adapter struct {
	config  Config
	session discordSession
	status  channels.Status
	selfID  string
	events  chan models.Event
	mu      sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   atomic.Bool
	stopping  atomic.Bool
	degraded  atomic.Bool
	limiter   *rate.Limiter
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger
	newClient func(token string) (discordSession, error)
}

var _ channels.Adapter = (*Adapter)(nil)

// NewAdapter creates a new Discord adapter with the given configuration.
func NewAdapter(config Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		config:  config,
		events:  make(chan models.Event, config.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		metrics: config.Metrics,
		tracer:  config.Tracer,
		logger:  config.Logger.With("adapter", "discord"),
	}
	a.newClient = a.newDiscordSession
	return a, nil
}

func (a *Adapter) newDiscordSession(token string) (discordSession, error) {
	intents, err := ParseIntents(a.config.Intents)
	if err != nil {
		return nil, err
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = intents
	// Handlers run on the gateway goroutine one at a time, which keeps
	// events in arrival order.
	dg.SyncEvents = true
	// Reconnects are driven by handleDisconnect.
	dg.ShouldReconnectOnError = false
	return dg, nil
}

// Start opens the gateway connection, retrying with exponential backoff.
func (a *Adapter) Start(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return channels.ErrInternal("adapter already started", nil)
	}

	a.logger.Info("starting discord adapter",
		"rate_limit", a.config.RateLimit,
		"intents", a.config.Intents)

	if a.session == nil {
		session, err := a.newClient(a.config.Token)
		if err != nil {
			a.started.Store(false)
			return channels.ErrAuthentication("failed to create Discord session", err)
		}
		a.session = session
	}

	a.session.AddHandler(a.handleMessageCreate)
	a.session.AddHandler(a.handleMessageUpdate)
	a.session.AddHandler(a.handleReactionAdd)
	a.session.AddHandler(a.handleReady)
	a.session.AddHandler(a.handleDisconnect)

	// Open dispatches READY synchronously, so no lock is held here.
	if err := a.connectWithRetry(ctx); err != nil {
		a.started.Store(false)
		a.setStatus(false, err.Error())
		var chErr *channels.Error
		if errors.As(err, &chErr) {
			return chErr
		}
		return channels.ErrConnection("failed to connect to Discord", err)
	}

	a.setStatus(true, "")
	a.logger.Info("discord adapter started")
	return nil
}

// Stop closes the session and waits for a pending reconnect to finish.
func (a *Adapter) Stop(ctx context.Context) error {
	if !a.started.Load() || !a.stopping.CompareAndSwap(false, true) {
		return nil
	}

	a.logger.Info("stopping discord adapter")
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("stop timeout, forcing shutdown")
	}

	err := a.session.Close()
	a.setStatus(false, "")
	if err != nil {
		a.logger.Error("failed to close Discord session", "error", err)
		return channels.ErrConnection("failed to close Discord session", err)
	}

	a.logger.Info("discord adapter stopped")
	return nil
}

// Events returns inbound events in gateway order.
func (a *Adapter) Events() <-chan models.Event {
	return a.events
}

// Type returns the channel type.
func (a *Adapter) Type() models.ChannelType {
	return models.ChannelDiscord
}

// Status returns the current connection status.
func (a *Adapter) Status() channels.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// HealthCheck reports the session state without calling Discord.
func (a *Adapter) HealthCheck(ctx context.Context) channels.HealthStatus {
	start := time.Now()
	status := a.Status()

	health := channels.HealthStatus{
		LastCheck: start,
		Healthy:   status.Connected,
		Degraded:  a.degraded.Load(),
	}
	switch {
	case !status.Connected:
		health.Message = "adapter not connected"
	case health.Degraded:
		health.Message = "reconnecting"
	default:
		health.Message = "healthy"
	}
	health.Latency = time.Since(start)
	return health
}

func (a *Adapter) setStatus(connected bool, errText string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.Connected = connected
	a.status.Error = errText
	if connected {
		a.status.LastPing = time.Now().Unix()
	}
}

func (a *Adapter) self() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selfID
}

// emit blocks until the consumer takes the event or the adapter stops.
// Nothing is dropped.
func (a *Adapter) emit(ev models.Event) {
	select {
	case a.events <- ev:
	case <-a.ctx.Done():
	}
}

// Event handlers

func (a *Adapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if m.Author.ID == a.self() {
		return
	}

	a.logger.Debug("received message",
		"channel_id", m.ChannelID,
		"message_id", m.ID,
		"user_id", m.Author.ID,
		"content_length", len(m.Content))

	if msg := convertMessage(m.Message); msg != nil {
		a.emit(models.NewMessageEvent(msg))
	}
}

func (a *Adapter) handleMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m == nil || m.Message == nil {
		return
	}
	if m.Author != nil && m.Author.ID == a.self() {
		return
	}

	edit := &models.MessageEdited{
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		MessageID: m.ID,
	}
	// Embed unfurls arrive as updates without an edit timestamp; those do
	// not carry new text.
	if m.EditedTimestamp != nil {
		content := m.Content
		edit.Content = &content
	}

	a.logger.Debug("received message edit",
		"channel_id", edit.ChannelID,
		"message_id", edit.MessageID,
		"has_content", edit.Content != nil)

	a.emit(models.MessageEditedEvent(edit))
}

func (a *Adapter) handleReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r == nil || r.MessageReaction == nil {
		return
	}
	if r.UserID == a.self() {
		return
	}

	a.emit(models.ReactionAddedEvent(&models.ReactionAdded{
		ChannelID: r.ChannelID,
		GuildID:   r.GuildID,
		MessageID: r.MessageID,
		ActorID:   r.UserID,
		Emoji:     r.Emoji.APIName(),
	}))
}

func (a *Adapter) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}

	a.mu.Lock()
	a.selfID = r.User.ID
	a.status.Connected = true
	a.status.Error = ""
	a.status.LastPing = time.Now().Unix()
	a.mu.Unlock()
	a.degraded.Store(false)

	name := r.User.GlobalName
	if name == "" {
		name = r.User.Username
	}
	a.logger.Info("discord connection ready", "user", name, "guilds", len(r.Guilds))

	a.emit(models.SessionReadyEvent(&models.SessionReady{
		DisplayName: name,
		Guilds:      len(r.Guilds),
	}))
}

func (a *Adapter) handleDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	if a.stopping.Load() || a.ctx.Err() != nil {
		return
	}
	if !a.degraded.CompareAndSwap(false, true) {
		return // reconnect already running
	}

	a.setStatus(false, "disconnected from Discord")
	a.logger.Warn("disconnected from discord")

	a.wg.Add(1)
	go a.reconnect()
}

// Reconnection logic

func (a *Adapter) connectWithRetry(ctx context.Context) error {
	var err error
	maxAttempts := a.config.MaxReconnectAttempts

	for attempt := 0; attempt < maxAttempts; attempt++ {
		a.logger.Info("connecting to discord",
			"attempt", attempt+1,
			"max_attempts", maxAttempts)

		if err = a.session.Open(); err == nil {
			return nil
		}
		if cerr := classifyError("open", err); !cerr.IsRetryable() {
			a.logger.Error("connection failed permanently", "error", err, "code", cerr.Code)
			return cerr
		}

		backoff := calculateBackoff(attempt, a.config.ReconnectBackoff)
		a.logger.Warn("connection failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func (a *Adapter) reconnect() {
	defer a.wg.Done()

	if err := a.connectWithRetry(a.ctx); err != nil {
		if a.ctx.Err() != nil {
			return
		}
		a.setStatus(false, err.Error())
		a.logger.Error("reconnection failed", "error", err)
		return
	}

	a.setStatus(true, "")
	a.degraded.Store(false)
	a.logger.Info("reconnection successful")
}

func calculateBackoff(attempt int, maxWait time.Duration) time.Duration {
	// Exponential backoff: 1s, 2s, 4s, 8s, 16s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > maxWait {
		backoff = maxWait
	}
	return backoff
}
