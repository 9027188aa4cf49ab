package secrets

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultRedaction replaces each match; "{rule}" expands to the rule id.
const DefaultRedaction = "[REDACTED:{rule}]"

// Config is the secrets section of config.yaml.
type Config struct {
	Enabled   bool   `koanf:"enabled"`
	Rules     []Rule `koanf:"rules"`
	Redaction string `koanf:"redaction"`

	// AllowList regexes and StopWords (case-insensitive substrings) exempt
	// a match from redaction, e.g. documented sample keys.
	AllowList []string `koanf:"allow_list"`
	StopWords []string `koanf:"stop_words"`
}

// Rule is one detector. When Keywords is set the pattern only runs on text
// containing one of them, which keeps expensive patterns off most messages.
type Rule struct {
	ID          string   `koanf:"id"`
	Description string   `koanf:"description"`
	Pattern     string   `koanf:"pattern"`
	Keywords    []string `koanf:"keywords"`
	Severity    string   `koanf:"severity"` // high, medium or low
}

// DefaultConfig enables the built-in rules with the usual placeholder stop
// words.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Redaction: DefaultRedaction,
		Rules:     DefaultRules(),
		StopWords: []string{"example", "placeholder", "your-api-key", "xxxxxxxx"},
	}
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []string
}

func compileRules(rules []Rule) ([]*compiledRule, error) {
	out := make([]*compiledRule, 0, len(rules))
	for i, r := range rules {
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("rule %d: ID is required", i)
		case r.Pattern == "":
			return nil, fmt.Errorf("rule %s: pattern is required", r.ID)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w: %v", r.ID, ErrInvalidRegex, err)
		}
		cr := &compiledRule{Rule: r, pattern: re}
		for _, kw := range r.Keywords {
			cr.keywords = append(cr.keywords, strings.ToLower(kw))
		}
		out = append(out, cr)
	}
	return out, nil
}

// applies reports whether the keyword gate lets the rule run on text, which
// must already be lowercased.
func (r *compiledRule) applies(lower string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	return slices.ContainsFunc(r.keywords, func(kw string) bool { return strings.Contains(lower, kw) })
}

func (r *compiledRule) finding(content string, start, end int) Finding {
	return Finding{
		RuleID:      r.ID,
		Description: r.Description,
		Severity:    r.Severity,
		StartIndex:  start,
		EndIndex:    end,
		Line:        strings.Count(content[:start], "\n") + 1,
	}
}

type allowMatcher struct {
	regexes   []*regexp.Regexp
	stopWords []string
}

func newAllowMatcher(regexes, stopWords []string) (*allowMatcher, error) {
	m := &allowMatcher{}
	for i, p := range regexes {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("allow_list %d: %w: %v", i, ErrInvalidRegex, err)
		}
		m.regexes = append(m.regexes, re)
	}
	for _, w := range stopWords {
		if w != "" {
			m.stopWords = append(m.stopWords, strings.ToLower(w))
		}
	}
	return m, nil
}

func (m *allowMatcher) allows(match string) bool {
	for _, re := range m.regexes {
		if re.MatchString(match) {
			return true
		}
	}
	lower := strings.ToLower(match)
	for _, w := range m.stopWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
