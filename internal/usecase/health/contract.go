package health

import "context"

// StorePinger checks conversation store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// UpstreamChecker checks an external provider (embedding service, vector
// backend) for availability.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) error
}
