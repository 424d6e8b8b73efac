package channels

import (
	"context"
	"time"

	"github.com/haasonsaas/neobot/pkg/models"
)

// Adapter is a chat platform session that produces normalized inbound events.
type Adapter interface {
	// Start establishes the platform session. Events flow once Start returns.
	Start(ctx context.Context) error

	// Stop closes the session. Events is not closed; consumers stop on
	// their own context.
	Stop(ctx context.Context) error

	// Events returns inbound events in arrival order.
	Events() <-chan models.Event

	// Type returns the platform type.
	Type() models.ChannelType

	// Status returns the current connection status.
	Status() Status

	// HealthCheck reports whether the session is usable.
	HealthCheck(ctx context.Context) HealthStatus
}

// Status represents the connection status of a session.
type Status struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"last_ping,omitempty"` // Unix timestamp
}

// HealthStatus represents the health check result for an adapter.
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`

	// Degraded indicates the session is reconnecting.
	Degraded bool `json:"degraded,omitempty"`
}
