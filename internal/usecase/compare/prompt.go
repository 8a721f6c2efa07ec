package compare

import (
	"fmt"
	"strconv"
	"strings"
)

const comparisonPrompt = `You are checking an implementation document against a requirements specification.
For EVERY requirement in the list emit exactly one block, in list order, and never repeat a requirement:

REQUIREMENT: <the requirement text exactly as listed>
COMPLIANCE: yes | partial | no
REASON: <what is missing or wrong; say whether the gap is critical, important or minor>

Leave REASON empty when COMPLIANCE is yes. Judge only by the implementation excerpts.

Requirements:
%s
Implementation excerpts:
%s`

// Prompt renders the comparison prompt for the whole requirement list and the merged context.
func Prompt(requirements []string, context string) string {
	var b strings.Builder
	for i, r := range requirements {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	if strings.TrimSpace(context) == "" {
		context = "(no matching excerpts)"
	}
	return fmt.Sprintf(comparisonPrompt, b.String(), context)
}
