package domain

import (
	"fmt"
	"strings"
)

// Status is the compliance determination for a single requirement.
type Status string

const (
	StatusCompliant          Status = "compliant"
	StatusPartiallyCompliant Status = "partially_compliant"
	StatusNonCompliant       Status = "non_compliant"
	StatusUnknown            Status = "unknown"
)

// ParseStatus validates a status label.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusCompliant, StatusPartiallyCompliant, StatusNonCompliant, StatusUnknown:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Criticality is the severity of a non-compliance.
type Criticality string

const (
	CriticalityNone     Criticality = "none"
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
	CriticalityUnknown  Criticality = "unknown"
)

// ParseCriticality validates a criticality label.
func ParseCriticality(s string) (Criticality, error) {
	switch c := Criticality(strings.ToLower(strings.TrimSpace(s))); c {
	case CriticalityNone, CriticalityLow, CriticalityMedium,
		CriticalityHigh, CriticalityCritical, CriticalityUnknown:
		return c, nil
	default:
		return "", fmt.Errorf("unknown criticality %q", s)
	}
}

// VerdictStatus pairs a status with its criticality.
type VerdictStatus struct {
	Status      Status      `json:"status"`
	Criticality Criticality `json:"criticality"`
}

// Verdict is the per-requirement outcome of a comparison run.
type Verdict struct {
	Requirement string        `json:"requirement"`
	Status      VerdictStatus `json:"status"`
	Analysis    string        `json:"analysis"`
}

// NewVerdict builds a verdict.
func NewVerdict(requirement string, status Status, criticality Criticality, analysis string) Verdict {
	return Verdict{
		Requirement: requirement,
		Status:      VerdictStatus{Status: status, Criticality: criticality},
		Analysis:    analysis,
	}
}

// UnknownVerdict is used for requirements the model response did not cover.
func UnknownVerdict(requirement string) Verdict {
	return NewVerdict(requirement, StatusUnknown, CriticalityUnknown,
		"requirement was not covered by the model response")
}
