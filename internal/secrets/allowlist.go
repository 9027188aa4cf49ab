package secrets

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

var (
	// ErrInvalidTOML is returned when an allowlist file cannot be decoded.
	ErrInvalidTOML = errors.New("invalid allowlist TOML")

	// ErrInvalidRegex is returned when a rule or allowlist pattern does not compile.
	ErrInvalidRegex = errors.New("invalid regex")
)

// Allowlist is the [allowlist] table of a gitleaks-style TOML file:
//
//	[allowlist]
//	description = "test fixtures"
//	regexes = ['''sk-test-[0-9a-f]+''']
//	stopwords = ["dummy"]
type Allowlist struct {
	Description string   `toml:"description"`
	Regexes     []string `toml:"regexes"`
	StopWords   []string `toml:"stopwords"`
}

type allowlistFile struct {
	Allowlist Allowlist `toml:"allowlist"`
}

// LoadAllowlist reads an allowlist file and checks that its regexes compile.
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading allowlist %s: %w", path, err)
	}
	return ParseAllowlist(data)
}

// ParseAllowlist decodes allowlist TOML.
func ParseAllowlist(data []byte) (*Allowlist, error) {
	var f allowlistFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	// Other tables (e.g. gitleaks [[rules]]) are ignored; typos inside
	// [allowlist] are not.
	for _, key := range md.Undecoded() {
		if len(key) > 1 && key[0] == "allowlist" {
			return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidTOML, key)
		}
	}
	for i, re := range f.Allowlist.Regexes {
		if _, err := regexp.Compile(re); err != nil {
			return nil, fmt.Errorf("allowlist regex %d: %w: %v", i, ErrInvalidRegex, err)
		}
	}
	return &f.Allowlist, nil
}

// Apply appends the allowlist entries to cfg.
func (a *Allowlist) Apply(cfg *Config) {
	if a == nil || cfg == nil {
		return
	}
	cfg.AllowList = append(cfg.AllowList, a.Regexes...)
	cfg.StopWords = append(cfg.StopWords, a.StopWords...)
}
