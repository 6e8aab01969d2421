package engine

import (
	"regexp"
	"strings"

	"mercator-hq/mailrules/pkg/rules"
)

// MatchesStatic reports whether every declared static field of the rule
// matches the message. A rule with no static fields never matches.
func MatchesStatic(rule *rules.Rule, msg *rules.Message) bool {
	if rule == nil || msg == nil || !rule.HasStatic() {
		return false
	}

	fields := []struct {
		pattern *string
		value   string
		address bool
	}{
		{rule.From, msg.From, true},
		{rule.To, msg.To, true},
		{rule.Subject, msg.Subject, false},
		{rule.Body, msg.Body, false},
	}

	for _, f := range fields {
		if f.pattern == nil || *f.pattern == "" {
			continue
		}
		if matchStaticField(*f.pattern, f.value) {
			continue
		}
		// Anchored wildcards never match a "Name <addr>" header as written,
		// so address fields get a second try on the bare address.
		if f.address && strings.Contains(*f.pattern, "*") {
			if bare := rules.NormalizeAddress(f.value); bare != f.value && matchStaticField(*f.pattern, bare) {
				continue
			}
		}
		return false
	}
	return true
}

// matchStaticField matches a single static pattern against a message field.
//
// Forms:
//   - contains "*": wildcard, anchored to the whole value, case-sensitive
//   - starts with "@": domain form, the value must contain the literal
//   - anything else: literal substring
func matchStaticField(pattern, value string) bool {
	if strings.Contains(pattern, "*") {
		re, err := compileWildcard(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}
	if strings.HasPrefix(pattern, "@") {
		return strings.Contains(value, pattern)
	}
	return strings.Contains(value, pattern)
}

// compileWildcard compiles a "*" wildcard pattern into an anchored regular
// expression. Everything other than "*" is matched literally and "*" spans
// any run of characters, newlines included.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("(?s)^" + strings.Join(parts, ".*") + "$")
}
