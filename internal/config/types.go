package config

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration is a time.Duration that YAML and environment values can carry as
// text such as "750ms" or "2m".
type Duration time.Duration

var errNegativeDuration = errors.New("duration must not be negative")

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	switch {
	case err != nil:
		return err
	case v < 0:
		return errNegativeDuration
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Secret holds a credential such as server.auth_token. Printing, JSON and
// text encoding all show a placeholder; only Value exposes the content.
type Secret string

const secretMask = "[REDACTED]"

func (s Secret) String() string {
	if s.IsSet() {
		return secretMask
	}
	return ""
}

func (s Secret) GoString() string { return "config.Secret(" + secretMask + ")" }

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return len(s) > 0 }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
