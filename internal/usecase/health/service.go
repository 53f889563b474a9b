package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the assistant cannot serve turns at all.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentSessions = "session_store"
	ComponentCatalog  = "catalog"
	ComponentOracle   = "oracle"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	sessions Pinger
	catalog  Pinger
	oracle   OracleChecker
}

// New creates a Service. oracle can be nil.
func New(sessions, catalog Pinger, oracle OracleChecker) *Service {
	return &Service{sessions: sessions, catalog: catalog, oracle: oracle}
}

// Check runs health checks against all components. A broken session store
// makes the service unhealthy; the catalog and oracle only degrade it since
// turns still get an answer.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentSessions: result(s.sessions.Ping(ctx)),
		ComponentCatalog:  result(s.catalog.Ping(ctx)),
	}
	if s.oracle != nil {
		checks[ComponentOracle] = result(s.oracle.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentSessions] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
