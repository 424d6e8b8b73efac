package discord

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/neobot/internal/channels"
	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/pkg/models"
)

// mockDiscordSession is a mock implementation for testing
type mockDiscordSession struct {
	mu          sync.Mutex
	openErr     error
	openCalls   int
	closeCalled bool
	handlers    int

	sent      []string
	replies   []string
	reactions []string
	cleared   []string
	deleted   []string

	channelMessageFn func(channelID, messageID string) (*discordgo.Message, error)
	reactionAddFn    func(channelID, messageID, emoji string) error
	userFn           func(userID string) (*discordgo.User, error)
	guildMemberFn    func(guildID, userID string) (*discordgo.Member, error)
	guildMembersFn   func(guildID, after string, limit int) ([]*discordgo.Member, error)
}

func (m *mockDiscordSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++
	return m.openErr
}

func (m *mockDiscordSession) Close() error {
	m.closeCalled = true
	return nil
}

func (m *mockDiscordSession) AddHandler(handler interface{}) func() {
	m.handlers++
	return func() {}
}

func (m *mockDiscordSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.channelMessageFn != nil {
		return m.channelMessageFn(channelID, messageID)
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (m *mockDiscordSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.sent = append(m.sent, channelID+":"+content)
	return &discordgo.Message{ID: "sent", ChannelID: channelID, Content: content}, nil
}

func (m *mockDiscordSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.replies = append(m.replies, reference.MessageID+":"+content)
	return &discordgo.Message{ID: "reply", ChannelID: channelID, Content: content}, nil
}

func (m *mockDiscordSession) ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error {
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockDiscordSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	if m.reactionAddFn != nil {
		return m.reactionAddFn(channelID, messageID, emojiID)
	}
	m.reactions = append(m.reactions, messageID+":"+emojiID)
	return nil
}

func (m *mockDiscordSession) MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error {
	m.cleared = append(m.cleared, messageID)
	return nil
}

func (m *mockDiscordSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (m *mockDiscordSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	if m.userFn != nil {
		return m.userFn(userID)
	}
	return &discordgo.User{ID: userID, Username: "user-" + userID}, nil
}

func (m *mockDiscordSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	if m.guildMemberFn != nil {
		return m.guildMemberFn(guildID, userID)
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (m *mockDiscordSession) GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	if m.guildMembersFn != nil {
		return m.guildMembersFn(guildID, after, limit)
	}
	return nil, nil
}

func newTestAdapter(t *testing.T, mock *mockDiscordSession) (*Adapter, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	adapter, err := NewAdapter(Config{
		Token:                "test-token",
		MaxReconnectAttempts: 2,
		ReconnectBackoff:     time.Millisecond,
		RateLimit:            1000,
		RateBurst:            100,
		EventBuffer:          8,
		Metrics:              metrics,
	})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	adapter.session = mock
	return adapter, metrics
}

func nextEvent(t *testing.T, a *Adapter) models.Event {
	t.Helper()
	select {
	case ev := <-a.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event emitted")
		return models.Event{}
	}
}

func assertNoEvent(t *testing.T, a *Adapter) {
	t.Helper()
	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "missing token", config: Config{}, wantErr: true},
		{name: "bad intent", config: Config{Token: "t", Intents: []string{"everything"}}, wantErr: true},
		{name: "defaults", config: Config{Token: "t"}},
		{name: "named intents", config: Config{Token: "t", Intents: []string{"guilds", "Message_Content"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if channels.GetErrorCode(err) != channels.ErrCodeConfig {
					t.Errorf("code = %v, want CONFIG_ERROR", channels.GetErrorCode(err))
				}
				return
			}
			if tt.config.RateLimit != 5 || tt.config.EventBuffer != 256 || tt.config.Logger == nil {
				t.Errorf("defaults not applied: %+v", tt.config)
			}
		})
	}
}

func TestParseIntents(t *testing.T) {
	got, err := ParseIntents([]string{"guilds", "guild_messages"})
	if err != nil {
		t.Fatalf("ParseIntents() error = %v", err)
	}
	if got != discordgo.IntentsGuilds|discordgo.IntentsGuildMessages {
		t.Errorf("ParseIntents() = %b", got)
	}
	def, _ := ParseIntents(nil)
	if def&discordgo.IntentsMessageContent == 0 {
		t.Error("default intents must include message content")
	}
}

func TestAdapter_StartStop(t *testing.T) {
	mock := &mockDiscordSession{}
	adapter, _ := newTestAdapter(t, mock)

	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if mock.openCalls != 1 {
		t.Errorf("Open calls = %d, want 1", mock.openCalls)
	}
	if mock.handlers != 5 {
		t.Errorf("handlers = %d, want 5", mock.handlers)
	}
	if !adapter.Status().Connected {
		t.Error("expected connected status")
	}
	if err := adapter.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if health := adapter.HealthCheck(context.Background()); !health.Healthy {
		t.Errorf("health = %+v", health)
	}

	if err := adapter.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !mock.closeCalled {
		t.Error("expected Close to be called")
	}
	if adapter.Status().Connected {
		t.Error("expected disconnected status after Stop")
	}
}

func TestAdapter_StartRetriesThenFails(t *testing.T) {
	mock := &mockDiscordSession{openErr: errors.New("gateway down")}
	adapter, _ := newTestAdapter(t, mock)

	err := adapter.Start(context.Background())
	if channels.GetErrorCode(err) != channels.ErrCodeConnection {
		t.Fatalf("Start() error = %v, want CONNECTION_ERROR", err)
	}
	if mock.openCalls != 2 {
		t.Errorf("Open calls = %d, want 2", mock.openCalls)
	}
	if adapter.Status().Error == "" {
		t.Error("status should carry the failure")
	}
}

func TestAdapter_StartStopsOnPermanentFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want channels.ErrorCode
	}{
		{"rejected token", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}, channels.ErrCodeAuthentication},
		{"gateway auth close", &websocket.CloseError{Code: 4004}, channels.ErrCodeAuthentication},
		{"disallowed intents", &websocket.CloseError{Code: 4014}, channels.ErrCodeConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockDiscordSession{openErr: tt.err}
			adapter, _ := newTestAdapter(t, mock)

			err := adapter.Start(context.Background())
			if got := channels.GetErrorCode(err); got != tt.want {
				t.Fatalf("Start() code = %s, want %s (err %v)", got, tt.want, err)
			}
			if channels.IsRetryable(err) {
				t.Error("permanent failure reported as retryable")
			}
			if mock.openCalls != 1 {
				t.Errorf("Open calls = %d, want 1", mock.openCalls)
			}
		})
	}
}

func TestHandleMessageCreate(t *testing.T) {
	adapter, _ := newTestAdapter(t, &mockDiscordSession{})
	adapter.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "bot", Username: "neobot"}})
	if ev := nextEvent(t, adapter); ev.Type != models.EventSessionReady || ev.Ready.DisplayName != "neobot" {
		t.Fatalf("ready event = %+v", ev)
	}

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	adapter.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "hello",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Member:    &discordgo.Member{Nick: "Al"},
	}})

	ev := nextEvent(t, adapter)
	if ev.Type != models.EventNewMessage {
		t.Fatalf("type = %s", ev.Type)
	}
	msg := ev.Message.Message
	if msg.Origin() != (models.Origin{ChannelID: "c1", MessageID: "m1"}) {
		t.Errorf("origin = %v", msg.Origin())
	}
	if msg.Author.Name != "alice" || msg.Author.Nick != "Al" || !msg.CreatedAt.Equal(ts) {
		t.Errorf("message = %+v", msg)
	}

	// Own messages are never surfaced.
	adapter.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m2", ChannelID: "c1", Author: &discordgo.User{ID: "bot", Bot: true},
	}})
	assertNoEvent(t, adapter)
}

func TestHandleMessageUpdate(t *testing.T) {
	adapter, _ := newTestAdapter(t, &mockDiscordSession{})
	edited := time.Now()

	adapter.handleMessageUpdate(nil, &discordgo.MessageUpdate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1", Content: "new text", EditedTimestamp: &edited,
	}})
	ev := nextEvent(t, adapter)
	if ev.Type != models.EventMessageEdited || ev.Edit.Content == nil || *ev.Edit.Content != "new text" {
		t.Fatalf("edit event = %+v", ev.Edit)
	}

	adapter.handleMessageUpdate(nil, &discordgo.MessageUpdate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "c1", GuildID: "g1",
	}})
	ev = nextEvent(t, adapter)
	if ev.Edit.Content != nil {
		t.Errorf("embed-only update should carry no content, got %q", *ev.Edit.Content)
	}
}

func TestHandleReactionAdd(t *testing.T) {
	adapter, _ := newTestAdapter(t, &mockDiscordSession{})
	adapter.handleReady(nil, &discordgo.Ready{User: &discordgo.User{ID: "bot", Username: "neobot"}})
	nextEvent(t, adapter)

	adapter.handleReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "u1", MessageID: "m1", ChannelID: "c1", GuildID: "g1", Emoji: discordgo.Emoji{Name: "🟢"},
	}})
	ev := nextEvent(t, adapter)
	if ev.Type != models.EventReactionAdded || ev.Reaction.Emoji != "🟢" || ev.Reaction.ActorID != "u1" {
		t.Fatalf("reaction event = %+v", ev.Reaction)
	}

	adapter.handleReactionAdd(nil, &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID: "bot", MessageID: "m1", ChannelID: "c1", Emoji: discordgo.Emoji{Name: "😇"},
	}})
	assertNoEvent(t, adapter)
}

func TestEmitUnblocksOnStop(t *testing.T) {
	adapter, _ := newTestAdapter(t, &mockDiscordSession{})
	for i := 0; i < cap(adapter.events); i++ {
		adapter.emit(models.Event{Type: models.EventNewMessage})
	}

	done := make(chan struct{})
	go func() {
		adapter.emit(models.Event{Type: models.EventNewMessage})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("emit should block while the buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	adapter.cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit did not return after cancel")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{0, time.Minute, time.Second},
		{3, time.Minute, 8 * time.Second},
		{10, time.Minute, time.Minute},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, tt.max); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestTransportCallsRecordMetrics(t *testing.T) {
	mock := &mockDiscordSession{
		reactionAddFn: func(channelID, messageID, emoji string) error {
			return &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
		},
	}
	adapter, metrics := newTestAdapter(t, mock)
	ctx := context.Background()

	if err := adapter.Reply(ctx, "c1", "m1", "pong"); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if len(mock.replies) != 1 || mock.replies[0] != "m1:pong" {
		t.Errorf("replies = %v", mock.replies)
	}

	err := adapter.React(ctx, "c1", "m1", "🟢")
	if channels.GetErrorCode(err) != channels.ErrCodeForbidden {
		t.Errorf("React() error = %v, want FORBIDDEN", err)
	}

	if got := testutil.ToFloat64(metrics.TransportCounter.WithLabelValues("reply", "success")); got != 1 {
		t.Errorf("reply success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.TransportCounter.WithLabelValues("react", string(channels.ErrCodeForbidden))); got != 1 {
		t.Errorf("react forbidden = %v, want 1", got)
	}
}

func TestTransportValidatesInput(t *testing.T) {
	adapter, _ := newTestAdapter(t, &mockDiscordSession{})
	ctx := context.Background()

	checks := map[string]error{
		"send":   adapter.Send(ctx, "c1", ""),
		"reply":  adapter.Reply(ctx, "c1", "", "x"),
		"react":  adapter.React(ctx, "c1", "m1", ""),
		"dm":     adapter.DirectMessage(ctx, "", "x"),
		"member": func() error { _, err := adapter.FindMember(ctx, "", "bob"); return err }(),
	}
	for name, err := range checks {
		if channels.GetErrorCode(err) != channels.ErrCodeInvalidInput {
			t.Errorf("%s: error = %v, want INVALID_INPUT", name, err)
		}
	}
}

func TestDirectMessage(t *testing.T) {
	mock := &mockDiscordSession{}
	adapter, _ := newTestAdapter(t, mock)

	if err := adapter.DirectMessage(context.Background(), "u1", "hi"); err != nil {
		t.Fatalf("DirectMessage() error = %v", err)
	}
	if len(mock.sent) != 1 || mock.sent[0] != "dm-u1:hi" {
		t.Errorf("sent = %v", mock.sent)
	}
}

func TestFetchMessageResolvesNick(t *testing.T) {
	mock := &mockDiscordSession{
		channelMessageFn: func(channelID, messageID string) (*discordgo.Message, error) {
			return &discordgo.Message{
				ID: messageID, ChannelID: channelID, Content: "edited",
				Author: &discordgo.User{ID: "u1", Username: "alice"},
			}, nil
		},
		guildMemberFn: func(guildID, userID string) (*discordgo.Member, error) {
			return &discordgo.Member{Nick: "Al", User: &discordgo.User{ID: userID}}, nil
		},
	}
	adapter, _ := newTestAdapter(t, mock)

	msg, err := adapter.FetchMessage(context.Background(), "g1", "c1", "m1")
	if err != nil {
		t.Fatalf("FetchMessage() error = %v", err)
	}
	if msg.GuildID != "g1" || msg.Author.Nick != "Al" || msg.Content != "edited" {
		t.Errorf("message = %+v", msg)
	}

	mock.channelMessageFn = nil
	if _, err := adapter.FetchMessage(context.Background(), "g1", "c1", "gone"); !channels.IsNotFound(err) {
		t.Errorf("FetchMessage(gone) error = %v, want NOT_FOUND", err)
	}
}

func TestFindMemberPages(t *testing.T) {
	var afters []string
	mock := &mockDiscordSession{
		guildMembersFn: func(guildID, after string, limit int) ([]*discordgo.Member, error) {
			afters = append(afters, after)
			if after == "" {
				page := make([]*discordgo.Member, limit)
				for i := range page {
					page[i] = &discordgo.Member{User: &discordgo.User{ID: "filler", Username: "someone"}}
				}
				page[limit-1].User = &discordgo.User{ID: "last", Username: "someone"}
				return page, nil
			}
			return []*discordgo.Member{
				{Nick: "Bobby", User: &discordgo.User{ID: "u2", Username: "bob"}},
			}, nil
		},
	}
	adapter, _ := newTestAdapter(t, mock)

	user, err := adapter.FindMember(context.Background(), "g1", "Bobby")
	if err != nil {
		t.Fatalf("FindMember() error = %v", err)
	}
	if user.ID != "u2" || user.Nick != "Bobby" {
		t.Errorf("user = %+v", user)
	}
	if len(afters) != 2 || afters[1] != "last" {
		t.Errorf("pagination cursors = %v", afters)
	}

	_, err = adapter.FindMember(context.Background(), "g1", "nobody")
	if !channels.IsNotFound(err) {
		t.Errorf("FindMember(nobody) error = %v, want NOT_FOUND", err)
	}
}

func TestClassifyError(t *testing.T) {
	rest := func(code int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
	}
	tests := []struct {
		name string
		err  error
		want channels.ErrorCode
	}{
		{"unauthorized", rest(http.StatusUnauthorized), channels.ErrCodeAuthentication},
		{"forbidden", rest(http.StatusForbidden), channels.ErrCodeForbidden},
		{"not found", rest(http.StatusNotFound), channels.ErrCodeNotFound},
		{"throttled", rest(http.StatusTooManyRequests), channels.ErrCodeRateLimit},
		{"server", rest(http.StatusBadGateway), channels.ErrCodeUnavailable},
		{"bad request", rest(http.StatusBadRequest), channels.ErrCodeInvalidInput},
		{"gateway auth", &websocket.CloseError{Code: 4004}, channels.ErrCodeAuthentication},
		{"gateway intents", &websocket.CloseError{Code: 4014}, channels.ErrCodeConfig},
		{"gateway reset", &websocket.CloseError{Code: 4000}, channels.ErrCodeConnection},
		{"deadline", context.DeadlineExceeded, channels.ErrCodeTimeout},
		{"network", errors.New("connection reset"), channels.ErrCodeConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError("op", tt.err)
			if got.Code != tt.want {
				t.Errorf("code = %s, want %s", got.Code, tt.want)
			}
			if got.Op != "op" {
				t.Errorf("op = %q", got.Op)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the cause")
			}
		})
	}
}
