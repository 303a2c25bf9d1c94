package gladtex

import "strings"

// NormalizeFormula maps a formula to the canonical form used as cache key.
// Runs of spaces are squeezed into one, tabs become spaces, empty braces
// ({}) become a space and surrounding whitespace is trimmed. With this it
// is more likely that a recurring formula is detected as such even when it
// was written with different spacing. The function is idempotent.
func NormalizeFormula(formula string) string {
	formula = strings.ReplaceAll(formula, "{}", " ")
	formula = strings.ReplaceAll(formula, "\t", " ")
	for strings.Contains(formula, "  ") {
		formula = strings.ReplaceAll(formula, "  ", " ")
	}
	return strings.TrimSpace(formula)
}
