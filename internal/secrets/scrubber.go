package secrets

import (
	"slices"
	"strings"
	"time"
)

// Scrubber redacts credentials from message text before it is indexed.
// Implementations are safe for concurrent use.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type regexScrubber struct {
	rules       []*compiledRule
	allow       *allowMatcher
	replacement string
}

// New returns a Scrubber for cfg, or for DefaultConfig when cfg is nil. A
// disabled cfg yields NoopScrubber.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	rules, err := compileRules(cfg.Rules)
	if err != nil {
		return nil, err
	}
	allow, err := newAllowMatcher(cfg.AllowList, cfg.StopWords)
	if err != nil {
		return nil, err
	}
	replacement := cfg.Redaction
	if replacement == "" {
		replacement = DefaultRedaction
	}
	return &regexScrubber{rules: rules, allow: allow, replacement: replacement}, nil
}

// Scrub finds every rule match outside the allow list and replaces it.
// Overlapping matches collapse into one span labelled with the earliest one.
func (s *regexScrubber) Scrub(content string) *Result {
	began := time.Now()
	res := &Result{Scrubbed: content, ByRule: map[string]int{}}
	if content == "" {
		return res
	}

	lower := strings.ToLower(content)
	for _, r := range s.rules {
		if !r.applies(lower) {
			continue
		}
		for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
			if s.allow.allows(content[loc[0]:loc[1]]) {
				continue
			}
			res.Findings = append(res.Findings, r.finding(content, loc[0], loc[1]))
			res.ByRule[r.ID]++
		}
	}
	if len(res.Findings) == 0 {
		res.Duration = time.Since(began)
		return res
	}

	slices.SortStableFunc(res.Findings, func(a, b Finding) int {
		return a.StartIndex - b.StartIndex
	})
	res.Scrubbed = s.redact(content, res.Findings)
	res.Duration = time.Since(began)
	return res
}

// redact expects findings ordered by StartIndex.
func (s *regexScrubber) redact(content string, findings []Finding) string {
	var b strings.Builder
	b.Grow(len(content))

	pos := 0
	for i := 0; i < len(findings); {
		start, end, label := findings[i].StartIndex, findings[i].EndIndex, findings[i].RuleID
		i++
		for i < len(findings) && findings[i].StartIndex <= end {
			end = max(end, findings[i].EndIndex)
			i++
		}
		b.WriteString(content[pos:start])
		b.WriteString(strings.ReplaceAll(s.replacement, "{rule}", label))
		pos = end
	}
	b.WriteString(content[pos:])
	return b.String()
}

func (s *regexScrubber) IsEnabled() bool { return true }

// NoopScrubber leaves content untouched. It stands in when
// secrets.enabled is false.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*regexScrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
