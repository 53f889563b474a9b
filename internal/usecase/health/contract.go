package health

import "context"

// Pinger checks store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OracleChecker checks language model availability.
type OracleChecker interface {
	HealthCheck(ctx context.Context) error
}
