package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider failure; runs still complete through fallbacks.
	Degraded Status = "degraded"
	// Unhealthy indicates the session store is down and runs cannot be recorded.
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

// Component names in Report.Checks.
const (
	ComponentSessions  = "sessions"
	ComponentLLM       = "llm"
	ComponentEmbedding = "embedding"
)

const defaultTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	sessions  DBPinger
	llm       Checker
	embedding Checker
	timeout   time.Duration
}

// New creates a Service. Any checker can be nil; nil checkers are left out of the report.
func New(sessions DBPinger, llm, embedding Checker) *Service {
	return &Service{sessions: sessions, llm: llm, embedding: embedding, timeout: defaultTimeout}
}

// Check runs health checks against all components, each bounded by its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if s.sessions != nil {
		checks[ComponentSessions] = s.run(ctx, s.sessions.Ping)
	}
	if s.llm != nil {
		checks[ComponentLLM] = s.run(ctx, s.llm.HealthCheck)
	}
	if s.embedding != nil {
		checks[ComponentEmbedding] = s.run(ctx, s.embedding.HealthCheck)
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

func (s *Service) run(ctx context.Context, check func(context.Context) error) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := check(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
