package compare

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// Compliance is the model's raw judgement of one requirement.
type Compliance int

const (
	ComplianceNo Compliance = iota
	CompliancePartial
	ComplianceYes
)

// Record is one block parsed from the model answer.
type Record struct {
	Requirement string
	Compliance  Compliance
	Reason      string
}

var labelLine = regexp.MustCompile(
	`(?i)^\s*(?:[-*•#>]+\s*)?(?:\d+[.)]\s*)?(?:\*\*|__)?` +
		`(requirement|требование|compliance|соответствие|reason|причина|analysis|анализ)` +
		`(?:\*\*|__)?\s*[:：]\s*(?:\*\*|__)?\s*(.*)$`,
)

// ParseAnswer reads REQUIREMENT / COMPLIANCE / REASON blocks line by line.
// A requirement line starts a new record; unlabeled lines continue the reason.
func ParseAnswer(answer string) []Record {
	var (
		out      []Record
		cur      *Record
		inReason bool
	)
	flush := func() {
		if cur != nil && cur.Requirement != "" {
			cur.Reason = strings.TrimSpace(cur.Reason)
			out = append(out, *cur)
		}
		cur = nil
		inReason = false
	}

	for _, line := range strings.Split(strings.ReplaceAll(answer, "\r\n", "\n"), "\n") {
		m := labelLine.FindStringSubmatch(line)
		if m == nil {
			if cur != nil && inReason {
				if s := strings.TrimSpace(line); s != "" {
					cur.Reason += " " + s
				}
			}
			continue
		}
		value := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), "*_"))
		switch strings.ToLower(m[1]) {
		case "requirement", "требование":
			flush()
			cur = &Record{Requirement: value}
		case "compliance", "соответствие":
			if cur != nil {
				cur.Compliance = parseCompliance(value)
				inReason = false
			}
		default:
			if cur != nil {
				cur.Reason = value
				inReason = true
			}
		}
	}
	flush()
	return out
}

func parseCompliance(v string) Compliance {
	v = domain.NormalizeText(v)
	switch {
	case strings.Contains(v, "partial") || strings.Contains(v, "частичн"):
		return CompliancePartial
	case hasAnyPrefix(v, "no", "not", "non", "не", "нет"):
		return ComplianceNo
	case hasAnyPrefix(v, "yes", "да", "compliant", "full", "полност", "соответствует"):
		return ComplianceYes
	default:
		return ComplianceNo
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// criticalityFromReason grades a non-compliance by the words the model used.
func criticalityFromReason(reason string) domain.Criticality {
	r := strings.ToLower(reason)
	switch {
	case containsAny(r, "critical", "important", "критич", "важн"):
		return domain.CriticalityHigh
	case containsAny(r, "minor", "insignificant", "незначит", "несуществ", "мелк"):
		return domain.CriticalityLow
	default:
		return domain.CriticalityMedium
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// toVerdict maps a record onto the three-state model, keeping requirement as given.
func toVerdict(requirement string, r Record) domain.Verdict {
	switch r.Compliance {
	case ComplianceYes:
		return domain.NewVerdict(requirement, domain.StatusCompliant, domain.CriticalityNone,
			orDefault(r.Reason, "requirement is met by the implementation"))
	case CompliancePartial:
		return domain.NewVerdict(requirement, domain.StatusPartiallyCompliant, domain.CriticalityMedium,
			orDefault(r.Reason, "requirement is partially met by the implementation"))
	default:
		return domain.NewVerdict(requirement, domain.StatusNonCompliant, criticalityFromReason(r.Reason),
			orDefault(r.Reason, "requirement is not met by the implementation"))
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Reconcile returns exactly one verdict per requirement, in requirement order.
// Records are matched by equal normalized text, then by containment, then by
// position; requirements
// left without a record get an unknown verdict.
func Reconcile(requirements []string, records []Record) []domain.Verdict {
	verdicts := make([]domain.Verdict, len(requirements))
	matched := make([]bool, len(requirements))
	used := make([]bool, len(records))

	normRecs := make([]string, len(records))
	for j := range records {
		normRecs[j] = domain.NormalizeText(stripNumber(records[j].Requirement))
	}

	normReqs := make([]string, len(requirements))
	for i, req := range requirements {
		normReqs[i] = domain.NormalizeText(req)
	}
	exact := func(req, rec string) bool { return req == rec }
	overlap := func(req, rec string) bool { return strings.Contains(rec, req) || strings.Contains(req, rec) }

	for _, same := range []func(req, rec string) bool{exact, overlap} {
		for i, req := range requirements {
			if matched[i] {
				continue
			}
			for j := range records {
				if used[j] || normRecs[j] == "" || !same(normReqs[i], normRecs[j]) {
					continue
				}
				verdicts[i] = toVerdict(req, records[j])
				matched[i], used[j] = true, true
				break
			}
		}
	}

	for i, req := range requirements {
		switch {
		case matched[i]:
		case i < len(records) && !used[i]:
			verdicts[i] = toVerdict(req, records[i])
			used[i] = true
		default:
			verdicts[i] = domain.UnknownVerdict(req)
		}
	}
	return verdicts
}

var leadingNumber = regexp.MustCompile(`^\s*\d+[.)]\s*`)

func stripNumber(s string) string {
	return leadingNumber.ReplaceAllString(s, "")
}
