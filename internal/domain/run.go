package domain

import (
	"fmt"
	"time"
)

// RunState is the lifecycle of a single comparison run.
//
//	pending → extracting_requirements → building_index → comparing → completed
//
// and any non-terminal state may move to failed.
type RunState string

const (
	RunPending                RunState = "pending"
	RunExtractingRequirements RunState = "extracting_requirements"
	RunBuildingIndex          RunState = "building_index"
	RunComparing              RunState = "comparing"
	RunCompleted              RunState = "completed"
	RunFailed                 RunState = "failed"
)

var runSuccessor = map[RunState]RunState{
	RunPending:                RunExtractingRequirements,
	RunExtractingRequirements: RunBuildingIndex,
	RunBuildingIndex:          RunComparing,
	RunComparing:              RunCompleted,
}

// IsTerminal reports whether no further transitions are allowed.
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// CanTransition reports whether s may move to next.
func (s RunState) CanTransition(next RunState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == RunFailed {
		return true
	}
	return runSuccessor[s] == next
}

// ValidateTransition returns ErrInvalidTransition when s cannot move to next.
func (s RunState) ValidateTransition(next RunState) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// ParseRunState validates a run state label.
func ParseRunState(s string) (RunState, error) {
	switch st := RunState(s); st {
	case RunPending, RunExtractingRequirements, RunBuildingIndex,
		RunComparing, RunCompleted, RunFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown run state %q", s)
	}
}

// Session is the persisted record of a comparison run.
type Session struct {
	ID                string        `json:"session_id"`
	Status            RunState      `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	ProcessingTime    time.Duration `json:"processing_time"`
	RequirementsCount int           `json:"requirements_count"`
	Result            []Verdict     `json:"result,omitempty"`
	Report            *Report       `json:"report,omitempty"`
	ErrorMessage      string        `json:"error_message,omitempty"`
}

// SessionStats summarises stored sessions.
type SessionStats struct {
	Total                int     `json:"total_comparisons"`
	Completed            int     `json:"successful_comparisons"`
	Failed               int     `json:"failed_comparisons"`
	InProgress           int     `json:"in_progress_comparisons"`
	AvgProcessingSeconds float64 `json:"avg_processing_time"`
}

// Report is the aggregated compliance score of a completed run.
type Report struct {
	TotalCompliance float64            `json:"total_compliance"`
	PerRequirement  []RequirementScore `json:"per_requirement"`
	Conclusion      string             `json:"conclusion"`
}

// RequirementScore is the lexical match score of one requirement.
type RequirementScore struct {
	Requirement  string      `json:"requirement"`
	Status       Status      `json:"status"`
	Criticality  Criticality `json:"criticality"`
	MatchPercent float64     `json:"match_percent"`
	Weight       float64     `json:"weight"`
}
