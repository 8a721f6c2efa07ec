// Package session persists comparison sessions in memory, Redis or Postgres.
// All backends apply the same run state rules.
package session

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

func transition(s *domain.Session, next domain.RunState) error {
	if err := s.Status.ValidateTransition(next); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.Status = next
	return nil
}

func complete(
	s *domain.Session, result []domain.Verdict, report *domain.Report, completedAt time.Time, elapsed time.Duration,
) error {
	if err := transition(s, domain.RunCompleted); err != nil {
		return err
	}
	s.CompletedAt = &completedAt
	s.ProcessingTime = elapsed
	s.RequirementsCount = len(result)
	s.Result = result
	s.Report = report
	return nil
}

func fail(s *domain.Session, message string, completedAt time.Time, elapsed time.Duration) error {
	if err := transition(s, domain.RunFailed); err != nil {
		return err
	}
	s.CompletedAt = &completedAt
	s.ProcessingTime = elapsed
	s.ErrorMessage = message
	return nil
}

func newPending(id string, createdAt time.Time) domain.Session {
	return domain.Session{ID: id, Status: domain.RunPending, CreatedAt: createdAt}
}

// statsAcc averages processing time over completed sessions only.
type statsAcc struct {
	stats   domain.SessionStats
	seconds float64
}

func (a *statsAcc) add(status domain.RunState, processing time.Duration) {
	a.stats.Total++
	switch status {
	case domain.RunCompleted:
		a.stats.Completed++
		a.seconds += processing.Seconds()
	case domain.RunFailed:
		a.stats.Failed++
	default:
		a.stats.InProgress++
	}
}

func (a *statsAcc) result() domain.SessionStats {
	out := a.stats
	if out.Completed > 0 {
		out.AvgProcessingSeconds = a.seconds / float64(out.Completed)
	}
	return out
}
