package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of a process.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start prepares the component for work.
	Start(ctx context.Context) error

	// Stop shuts the component down and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) Health
}

// Description holds summary information for the startup display.
type Description struct {
	// Name is the human-readable display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "executor", "database", ...
	Type string
	// Details is a one-liner shown in the startup summary.
	Details string
}

// Describable is optionally implemented by components that self-report what
// they are and how they are configured.
type Describable interface {
	Describe() Description
}
