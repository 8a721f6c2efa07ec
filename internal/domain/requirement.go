package domain

// Kind is the outcome of classifying a paragraph.
type Kind int

const (
	// KindNone is a paragraph that states no obligation.
	KindNone Kind = iota
	// KindExcluded matched an exclusion rule (example, note, comment...).
	KindExcluded
	// KindFunctional states behaviour the system must have.
	KindFunctional
	// KindNonFunctional states a quality attribute (performance, security...).
	KindNonFunctional
)

func (k Kind) String() string {
	switch k {
	case KindExcluded:
		return "excluded"
	case KindFunctional:
		return "functional"
	case KindNonFunctional:
		return "non_functional"
	default:
		return "none"
	}
}

// IsRequirement reports whether the kind is kept as a requirement.
func (k Kind) IsRequirement() bool {
	return k == KindFunctional || k == KindNonFunctional
}

// Classification is a classifier decision with the name of the rule that fired.
type Classification struct {
	Kind Kind
	Rule string
}
