// Package language provides best-effort language identification and the
// bundled stop-word lists used for keyword extraction.
//
// Detection is a capability, not a requirement: every failure path (text too
// short, detector unavailable, low confidence, internal error) yields the
// Default language code, so callers never handle errors from it.
package language

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// Detector identifies the language of a text.
type Detector interface {
	// Supported reports whether a real identifier backs this detector.
	Supported() bool

	// Detect returns an ISO 639-1 code. It never fails; see package docs.
	Detect(text string) string
}

// Config configures language detection.
type Config struct {
	// Detector selects the implementation: "lingua" or "none".
	Detector string `koanf:"detector"`

	// MinLength is the minimum trimmed rune count worth detecting.
	MinLength int `koanf:"min_length"`

	// MinConfidence is the minimum top-candidate confidence (0..1).
	MinConfidence float64 `koanf:"min_confidence"`

	// BundledOnly restricts identification to the 15 languages with
	// stop-word lists. By default every lingua language is a candidate, so
	// text in other languages is not forced onto a bundled one.
	BundledOnly bool `koanf:"bundled_only"`

	// LowAccuracy trades accuracy on short texts for speed and memory.
	LowAccuracy bool `koanf:"low_accuracy"`
}

// NewDefaultConfig returns the default detection settings.
func NewDefaultConfig() *Config {
	return &Config{
		Detector:      "lingua",
		MinLength:     20,
		MinConfidence: 0.5,
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	switch c.Detector {
	case "lingua", "none":
	default:
		return fmt.Errorf("detector must be 'lingua' or 'none', got %q", c.Detector)
	}
	if c.MinLength < 0 {
		return fmt.Errorf("min_length must be >= 0, got %d", c.MinLength)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", c.MinConfidence)
	}
	return nil
}

// New returns the detector selected by cfg. A nil cfg uses defaults.
func New(cfg *Config) (Detector, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Detector == "none" {
		return NopDetector{}, nil
	}
	return NewLinguaDetector(cfg), nil
}

// bundledLanguages are the languages with stop-word lists.
var bundledLanguages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Hindi,
	lingua.Spanish,
	lingua.French,
	lingua.Arabic,
	lingua.Bengali,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Japanese,
	lingua.German,
	lingua.Korean,
	lingua.Turkish,
	lingua.Vietnamese,
	lingua.Italian,
}

// LinguaDetector identifies languages with lingua-go.
type LinguaDetector struct {
	detector      lingua.LanguageDetector
	minLength     int
	minConfidence float64
}

// NewLinguaDetector builds a lingua detector. Models load lazily on first use.
func NewLinguaDetector(cfg *Config) *LinguaDetector {
	var builder lingua.LanguageDetectorBuilder
	if cfg.BundledOnly {
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(bundledLanguages...)
	} else {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	}
	if cfg.LowAccuracy {
		builder = builder.WithLowAccuracyMode()
	}

	return &LinguaDetector{
		detector:      builder.Build(),
		minLength:     cfg.MinLength,
		minConfidence: cfg.MinConfidence,
	}
}

// Supported returns true.
func (d *LinguaDetector) Supported() bool { return true }

// Detect returns the most likely language of text.
func (d *LinguaDetector) Detect(text string) (code string) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) < d.minLength {
		return Default
	}

	defer func() {
		if r := recover(); r != nil {
			code = Default
		}
	}()

	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return Default
	}
	top := values[0]
	if top.Value() < d.minConfidence {
		return Default
	}
	return Normalize(top.Language().IsoCode639_1().String())
}

// NopDetector is used when language identification is disabled.
type NopDetector struct{}

// Supported returns false.
func (NopDetector) Supported() bool { return false }

// Detect always returns Default.
func (NopDetector) Detect(string) string { return Default }

var (
	_ Detector = (*LinguaDetector)(nil)
	_ Detector = NopDetector{}
)
