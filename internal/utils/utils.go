package utils

import "strings"

// Allows you to specify /funcionarios/* for a prefix match.
// Effectively, if the last character is a *, it just checks to see if its a prefix
// If it's a string literal, it does a literal match (ignoring a trailing slash)
func MatchesWithWildcard(valueToEvaluate string, matcher string) bool {
	if matcher == "" {
		return false
	}
	if matcher[len(matcher)-1] == '*' {
		return strings.HasPrefix(valueToEvaluate, matcher[:len(matcher)-1])
	}
	return trimSlash(valueToEvaluate) == trimSlash(matcher)
}

// Returns the matcher that fits the value most specifically: literal matches beat wildcards,
// and longer wildcards beat shorter ones
func BestMatch(in []string, value string) (string, bool) {
	best := ""
	found := false

	for _, m := range in {
		if !MatchesWithWildcard(value, m) {
			continue
		}
		if !found || specificity(m) > specificity(best) {
			best = m
			found = true
		}
	}

	return best, found
}

func specificity(matcher string) int {
	if strings.HasSuffix(matcher, "*") {
		return len(matcher) - 1
	}
	// literal always wins
	return 1 << 20
}

func trimSlash(s string) string {
	if len(s) > 1 {
		return strings.TrimSuffix(s, "/")
	}
	return s
}
