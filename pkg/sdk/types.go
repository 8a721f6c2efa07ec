package reqcheck

import "github.com/kailas-cloud/reqcheck/internal/domain"

// Status is the compliance verdict of one requirement.
type Status string

// Status constants.
const (
	StatusCompliant          Status = "compliant"
	StatusPartiallyCompliant Status = "partially_compliant"
	StatusNonCompliant       Status = "non_compliant"
	StatusUnknown            Status = "unknown"
)

// Criticality grades how serious a gap is.
type Criticality string

// Criticality constants.
const (
	CriticalityNone     Criticality = "none"
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
	CriticalityUnknown  Criticality = "unknown"
)

// Verdict is the judgement on a single requirement.
type Verdict struct {
	Requirement string
	Status      Status
	Criticality Criticality
	Analysis    string
}

// RequirementScore is the lexical match score of one requirement.
type RequirementScore struct {
	Requirement  string
	Status       Status
	Criticality  Criticality
	MatchPercent float64
	Weight       float64
}

// Report is the aggregated compliance score, present when WithReport is set.
type Report struct {
	TotalCompliance float64
	PerRequirement  []RequirementScore
	Conclusion      string
}

// Result is the outcome of one comparison. Verdicts follow Requirements order.
type Result struct {
	Requirements []string
	Verdicts     []Verdict
	Report       *Report
}

func verdictFromDomain(v domain.Verdict) Verdict {
	return Verdict{
		Requirement: v.Requirement,
		Status:      Status(v.Status.Status),
		Criticality: Criticality(v.Status.Criticality),
		Analysis:    v.Analysis,
	}
}

func reportFromDomain(r *domain.Report) *Report {
	if r == nil {
		return nil
	}
	out := &Report{
		TotalCompliance: r.TotalCompliance,
		Conclusion:      r.Conclusion,
		PerRequirement:  make([]RequirementScore, len(r.PerRequirement)),
	}
	for i, s := range r.PerRequirement {
		out.PerRequirement[i] = RequirementScore{
			Requirement:  s.Requirement,
			Status:       Status(s.Status),
			Criticality:  Criticality(s.Criticality),
			MatchPercent: s.MatchPercent,
			Weight:       s.Weight,
		}
	}
	return out
}
