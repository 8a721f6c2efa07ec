// Package classify decides which paragraphs of a requirements document state
// requirements and turns them into a cleaned, deduplicated list.
package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// Classifier labels one paragraph.
type Classifier interface {
	Classify(text string) domain.Classification
}

// Rule names reported in domain.Classification.Rule.
const (
	RuleExclusion     = "exclusion"
	RuleObligation    = "obligation"
	RuleImperative    = "imperative"
	RuleNumbered      = "numbered_clause"
	RuleQuality       = "quality_keyword"
	RuleCapability    = "heuristic_capability"
	RuleMeasurable    = "heuristic_measurable"
	RuleNoMatch       = "none"
	heuristicMaxChars = 200
	numberedMinWords  = 4
)

// lb and rb are word boundaries that also work for Cyrillic; \b in RE2 is ASCII only.
const (
	lb = `(?:^|[^\p{L}\p{N}])`
	rb = `(?:$|[^\p{L}\p{N}])`
)

// pattern matches any of the whole words, or any word starting with one of the stems.
func pattern(words, stems []string) *regexp.Regexp {
	var alts []string
	if len(words) > 0 {
		alts = append(alts, `(?:`+strings.Join(words, "|")+`)`+rb)
	}
	if len(stems) > 0 {
		alts = append(alts, `(?:`+strings.Join(stems, "|")+`)`)
	}
	return regexp.MustCompile(`(?i)` + lb + `(?:` + strings.Join(alts, "|") + `)`)
}

var (
	exclusionAnywhere = pattern([]string{
		`for example`, `for instance`, `e\.g\.`, `i\.e\.`, `for reference`, `implementation details?`,
		`например`, `к примеру`, `для справки`, `детали реализации`, `особенности реализации`,
	}, nil)
	exclusionLeading = regexp.MustCompile(`(?i)^(?:note|comment|remark|additionally|nb|` +
		`примечание|комментарий|замечание|дополнительно)(?:[\s:.,-]|$)`)

	obligation = pattern([]string{
		`must`, `shall`, `is required to`, `are required to`, `has to`, `have to`, `needs to`, `need to`,
		`долж(?:ен|на|но|ны)`, `необходимо`, `требуется`, `обязан(?:а|о|ы)?`, `следует`,
	}, nil)
	imperative = regexp.MustCompile(`(?i)^(?:implement|ensure|provide(?: for)?|support|develop|allow|enable|` +
		`реализовать|обеспечить|предусмотреть|разработать|поддерживать|организовать)` + rb)
	imperativeInline = pattern([]string{`ensure`, `provide for`}, []string{`обеспечи`, `предусм`})

	quality = pattern([]string{
		`performance`, `security`, `reliability`, `fault[- ]tolerance`, `usability`, `scalability`,
		`availability`, `response times?`, `compatibility`, `throughput`, `latency`, `uptime`,
		`время отклика`,
	}, []string{
		`производительност`, `безопасност`, `надежност`, `надёжност`, `отказоустойчивост`,
		`удобств\p{L}* использования`, `масштабируемост`, `доступност`, `совместимост`,
	})

	capability = pattern([]string{
		`will`, `can`, `is able to`, `are able to`, `allows`, `enables`, `supports`, `provides`,
		`будет`, `будут`, `может`, `могут`, `позволяет`, `поддерживает`, `обеспечивает`,
	}, nil)
	measurable = pattern([]string{
		`with (?:a |an )?(?:precision|accuracy) of`, `in the amount of`, `no more than`,
		`not less than`, `not more than`, `с точностью`, `в объ[её]ме`, `в количестве`, `не менее`, `не более`,
	}, []string{`at least \d`, `up to \d`, `до \d`})

	numberPrefix = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*\.?|[a-zа-я]\)|[-•*–—])\s+`)
)

// RuleClassifier classifies with ordered pattern rules: exclusion, functional,
// non-functional, then a sentence-shape heuristic. English and Russian are covered.
type RuleClassifier struct{}

// NewRuleClassifier creates the default rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify labels text.
func (c *RuleClassifier) Classify(text string) domain.Classification {
	raw := strings.Join(strings.Fields(text), " ")
	body := numberPrefix.ReplaceAllString(raw, "")

	if exclusionLeading.MatchString(body) || exclusionAnywhere.MatchString(body) {
		return domain.Classification{Kind: domain.KindExcluded, Rule: RuleExclusion}
	}

	switch {
	case obligation.MatchString(body):
		return domain.Classification{Kind: domain.KindFunctional, Rule: RuleObligation}
	case imperative.MatchString(body), imperativeInline.MatchString(body):
		return domain.Classification{Kind: domain.KindFunctional, Rule: RuleImperative}
	case raw != body && startsUpper(body) && len(strings.Fields(body)) >= numberedMinWords:
		return domain.Classification{Kind: domain.KindFunctional, Rule: RuleNumbered}
	}

	if quality.MatchString(body) {
		return domain.Classification{Kind: domain.KindNonFunctional, Rule: RuleQuality}
	}

	if utf8.RuneCountInString(body) < heuristicMaxChars && startsUpper(body) && strings.HasSuffix(body, ".") {
		if capability.MatchString(body) {
			return domain.Classification{Kind: domain.KindFunctional, Rule: RuleCapability}
		}
		if measurable.MatchString(body) {
			return domain.Classification{Kind: domain.KindNonFunctional, Rule: RuleMeasurable}
		}
	}
	return domain.Classification{Kind: domain.KindNone, Rule: RuleNoMatch}
}

// isFunctionalSentence is used when trimming an overlong requirement to one sentence.
func isFunctionalSentence(s string) bool {
	return obligation.MatchString(s) || imperative.MatchString(s) || imperativeInline.MatchString(s)
}

// hasObligationWord is the keyword filter used when the model cannot be reached.
func hasObligationWord(s string) bool {
	body := numberPrefix.ReplaceAllString(strings.Join(strings.Fields(s), " "), "")
	if exclusionLeading.MatchString(body) || exclusionAnywhere.MatchString(body) {
		return false
	}
	return obligation.MatchString(body)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
