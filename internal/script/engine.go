// Package script owns the lifecycle of message-bound scripts: recognizing
// script blocks, compiling them into sandboxes, keeping at most one live
// instance per message and dispatching chat events into enabled instances.
package script

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/neobot/internal/capability"
	"github.com/haasonsaas/neobot/internal/config"
	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/pkg/models"
)

// Hook names dispatched by the router.
const (
	HookOnMessage       = "OnMessage"
	HookOnMessageUpdate = "OnMessageUpdate"
)

// Options configures an Engine.
type Options struct {
	Provider *capability.Provider
	Feedback Feedback

	// Fence is the language tag after the opening fence. Defaults to "neo".
	Fence string

	// AllowedPackages is the standard library subset scripts may import.
	AllowedPackages []string

	// EchoCompileErrors replies to the origin message with the diagnostic.
	EchoCompileErrors bool

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Now     func() time.Time
}

// Engine is the registry plus lifecycle controller and dispatcher. Every
// operation holds one mutex for its whole duration, hooks included.
type Engine struct {
	mu       sync.Mutex
	registry *Registry

	provider          *capability.Provider
	feedback          Feedback
	fence             string
	allowed           []string
	echoCompileErrors bool
	logger            *slog.Logger
	metrics           *observability.Metrics
	tracer            *observability.Tracer
	now               func() time.Time
}

func NewEngine(opts Options) *Engine {
	if opts.Provider == nil {
		opts.Provider = capability.NewProvider(capability.Options{Logger: opts.Logger})
	}
	if opts.Feedback == nil {
		opts.Feedback = NopFeedback{}
	}
	if opts.Fence == "" {
		opts.Fence = DefaultFence
	}
	if opts.AllowedPackages == nil {
		opts.AllowedPackages = config.DefaultAllowedPackages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		registry:          NewRegistry(),
		provider:          opts.Provider,
		feedback:          opts.Feedback,
		fence:             opts.Fence,
		allowed:           opts.AllowedPackages,
		echoCompileErrors: opts.EchoCompileErrors,
		logger:            opts.Logger.With("component", "script_engine"),
		metrics:           opts.Metrics,
		tracer:            opts.Tracer,
		now:               opts.Now,
	}
}

// Recognize applies the engine's fence to raw.
func (e *Engine) Recognize(raw string) (string, bool) {
	return RecognizeFence(raw, e.fence)
}

// Create compiles the script in origin's content and registers it enabled.
// An instance already at the origin is replaced. Messages without a block
// yield ErrNoScript; a failed compile yields *CompileError and leaves the
// origin empty.
func (e *Engine) Create(ctx context.Context, origin *models.Message) (*Instance, error) {
	code, ok := e.Recognize(origin.Content)
	if !ok {
		return nil, ErrNoScript
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.registry.Get(origin.Origin()); exists {
		e.removeLocked(ctx, origin.Origin(), true)
	}
	return e.createLocked(ctx, origin, code)
}

// Replace handles an edit of origin to newContent: the instance at the
// origin, if any, is removed and its feedback cleared; then a new one is
// created when newContent still holds a block. The author is carried over
// from the removed instance. Without a block it returns (nil, nil).
// No prior instance is required: a plain message edited to gain a block
// gets a script just as if it had been posted with one.
func (e *Engine) Replace(ctx context.Context, origin *models.Message, newContent string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.TraceLifecycle(ctx, "replace", origin.Origin().String())
	defer span.End()

	anchor := *origin
	anchor.Content = newContent
	if old, ok := e.removeLocked(ctx, origin.Origin(), true); ok {
		anchor.Author = old.Message.Author
		e.metrics.RecordLifecycle("replace", "success")
	}

	code, ok := e.Recognize(newContent)
	if !ok {
		e.logger.InfoContext(ctx, "script edited away", "origin", origin.Origin().String())
		return nil, nil
	}
	return e.createLocked(ctx, &anchor, code)
}

// Remove deletes the instance at origin.
func (e *Engine) Remove(ctx context.Context, origin models.Origin) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.removeLocked(ctx, origin, false)
	return ok
}

// SetEnabled switches the instance at origin on or off and reports whether
// anything changed. Feedback is reset to success (enabled) or failure
// (disabled).
func (e *Engine) SetEnabled(ctx context.Context, origin models.Origin, desired bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.registry.Get(origin)
	if !ok || inst.Enabled == desired {
		return false
	}

	action, kind := "disable", KindFailure
	if desired {
		action, kind = "enable", KindSuccess
	}
	ctx, span := e.tracer.TraceLifecycle(ctx, action, origin.String())
	defer span.End()

	e.feedback.Clear(ctx, origin)
	inst.Enabled = desired
	e.feedback.Signal(ctx, origin, kind)

	e.metrics.RecordLifecycle(action, "success")
	e.logger.InfoContext(ctx, "script "+action+"d", "origin", origin.String(), "instance_id", inst.ID)
	return true
}

// Lookup returns a copy of the instance at origin.
func (e *Engine) Lookup(origin models.Origin) (Instance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.registry.Get(origin)
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// Instances returns copies of a channel's instances in no particular order.
func (e *Engine) Instances(channelID string) []Instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	part := e.registry.Partition(channelID)
	out := make([]Instance, 0, len(part))
	for _, inst := range part {
		out = append(out, *inst)
	}
	return out
}

// Len returns the number of live instances.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Len()
}

func (e *Engine) createLocked(ctx context.Context, origin *models.Message, code string) (*Instance, error) {
	ctx, span := e.tracer.TraceLifecycle(ctx, "create", origin.Origin().String())
	defer span.End()

	scope := e.provider.Scope(origin)
	sandbox, err := Compile(code, e.allowed, scope.Exports())
	if err != nil {
		cerr := &CompileError{Origin: origin.Origin(), Diagnostic: err.Error(), Err: err}
		e.tracer.RecordError(span, cerr)
		e.metrics.RecordLifecycle("create", "failure")
		e.logger.InfoContext(ctx, "script failed to compile",
			"origin", origin.Origin().String(),
			"author_id", origin.Author.ID,
			"error", err)

		e.feedback.Signal(ctx, origin.Origin(), KindFailure)
		if e.echoCompileErrors {
			e.feedback.Echo(ctx, origin.Origin(), cerr.Diagnostic)
		}
		return nil, cerr
	}

	inst := &Instance{
		ID:        uuid.NewString(),
		Origin:    origin.Origin(),
		Message:   *origin,
		Enabled:   true,
		CreatedAt: e.now(),
		sandbox:   sandbox,
		scope:     scope,
	}
	e.registry.Put(inst)
	e.metrics.RecordLifecycle("create", "success")
	e.metrics.SetActiveScripts(e.registry.Len())
	e.logger.InfoContext(ctx, "script created",
		"origin", inst.Origin.String(),
		"instance_id", inst.ID,
		"author_id", origin.Author.ID,
		"hooks", sandbox.Hooks())

	e.feedback.Signal(ctx, inst.Origin, KindSuccess)
	return inst, nil
}

func (e *Engine) removeLocked(ctx context.Context, origin models.Origin, clearFeedback bool) (*Instance, bool) {
	inst, ok := e.registry.Delete(origin)
	if !ok {
		return nil, false
	}
	if clearFeedback {
		e.feedback.Clear(ctx, origin)
	}
	e.metrics.RecordLifecycle("remove", "success")
	e.metrics.SetActiveScripts(e.registry.Len())
	e.logger.InfoContext(ctx, "script removed", "origin", origin.String(), "instance_id", inst.ID)
	return inst, true
}

// IsCompileError reports whether err is a *CompileError.
func IsCompileError(err error) bool {
	var cerr *CompileError
	return errors.As(err, &cerr)
}
