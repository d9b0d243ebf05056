package core

import "strings"

// NameMatcher determines whether a destination name matches a pattern.
type NameMatcher interface {
	Match(pattern, name string) bool
}

// DefaultMatcher matches dot-separated destination names with exact
// segments, a single-segment wildcard (*) and a multi-segment wildcard (#).
//
//	"orders.created" matches "orders.created"
//	"orders.*"       matches "orders.created", not "orders.us.created"
//	"payments.#"     matches "payments.created" and "payments.us.created"
//	"#"              matches every name
type DefaultMatcher struct{}

func (DefaultMatcher) Match(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(name, "."))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		switch pat[0] {
		case "#":
			if len(pat) == 1 {
				return len(name) > 0
			}
			// # swallows as many segments as needed for the rest to match
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(name) == 0 {
				return false
			}
		default:
			if len(name) == 0 || pat[0] != name[0] {
				return false
			}
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}
