// Package observability provides the logging, metrics and tracing shared by
// the neobot components.
//
// # Logging
//
// NewLogger builds a *slog.Logger with level and format selection. Format
// "auto" picks text when the output is a terminal. Configured secrets, such
// as the bot token, are replaced in every string attribute. Records written
// with a context carry the dispatch pass and channel set by WithPassID and
// WithChannelID:
//
//	ctx = observability.WithPassID(ctx, passID)
//	logger.InfoContext(ctx, "hook faulted", "hook", hook)
//
// # Metrics
//
// NewMetrics registers the neobot collectors on a prometheus.Registerer.
// Tests pass their own registry; serve uses the default one and exposes it
// on /metrics. All Metrics methods accept a nil receiver.
//
// # Tracing
//
// NewTracer exports spans over OTLP/gRPC when an endpoint is configured and
// otherwise hands out no-op spans. Span names follow the event path:
//
//	event.new_message
//	script.dispatch
//	script.hook.OnMessage
//	transport.reply
package observability
