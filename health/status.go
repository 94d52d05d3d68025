package health

// Health status values.
const (
	StatusHealthy = "healthy"

	StatusDegraded = "degraded"

	StatusUnhealthy = "unhealthy"
)

// Status is the result of a health check.
type Status struct {
	Status string `json:"status"`

	Message string `json:"message,omitempty"`

	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

func Healthy(message string) Status {
	return Status{
		Status:  StatusHealthy,
		Message: message,
	}
}

func Degraded(message string, details map[string]any) Status {
	return Status{
		Status:  StatusDegraded,
		Message: message,
		Details: details,
	}
}

func Unhealthy(message string, details map[string]any) Status {
	return Status{
		Status:  StatusUnhealthy,
		Message: message,
		Details: details,
	}
}
