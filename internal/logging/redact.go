package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chatindex/internal/config"
)

const (
	redacted         = "[REDACTED]"
	maxPatternLength = 200
)

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as "[REDACTED:<len>]".
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder hides values of sensitive keys and masks pattern matches
// inside string values. Search queries and request URIs are logged verbatim
// otherwise, and users paste tokens into both.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps base. A disabled cfg returns a pass-through.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	enc := &RedactingEncoder{Encoder: base}
	if !cfg.Enabled {
		return enc, nil
	}

	enc.keys = make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		enc.keys[strings.ToLower(f)] = struct{}{}
	}
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	enc.patterns = patterns
	return enc, nil
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, p := range exprs {
		if len(p) > maxPatternLength {
			return nil, fmt.Errorf("redaction pattern longer than %d chars: %q", maxPatternLength, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	_, ok := e.keys[strings.ToLower(key)]
	return ok
}

func (e *RedactingEncoder) mask(val string) string {
	for _, re := range e.patterns {
		val = re.ReplaceAllString(val, redacted)
	}
	return val
}

// AddString implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.sensitive(key) {
		val = redacted
	}
	e.Encoder.AddString(key, e.mask(val))
}

// AddByteString implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddByteString(key, val)
}

// AddBinary implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitive(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected implements zapcore.ObjectEncoder. Sensitive keys lose the
// whole value; nested fields are not inspected.
func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject implements zapcore.ObjectEncoder.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry sends per-entry fields through the methods above; the wrapped
// encoder would add them to its own clone unfiltered. The message is masked
// too.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for i := range fields {
		fields[i].AddTo(clone)
	}
	ent.Message = e.mask(ent.Message)
	return clone.Encoder.EncodeEntry(ent, nil)
}

// Clone implements zapcore.Encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
	}
}
