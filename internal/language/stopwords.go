package language

import (
	"sort"
	"strings"
)

// Default is the language assumed whenever detection is skipped or fails.
const Default = "en"

// stopWords is built once from stopWordSource and never modified.
var stopWords = func() map[string]map[string]struct{} {
	tables := make(map[string]map[string]struct{}, len(stopWordSource))
	for code, src := range stopWordSource {
		words := strings.Fields(src)
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		tables[code] = set
	}
	return tables
}()

var names = map[string]string{
	"en": "English",
	"zh": "Chinese",
	"hi": "Hindi",
	"es": "Spanish",
	"fr": "French",
	"ar": "Arabic",
	"bn": "Bengali",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"de": "German",
	"ko": "Korean",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"it": "Italian",
}

// SupportedLanguages returns the codes with bundled stop-word lists, sorted.
func SupportedLanguages() []string {
	codes := make([]string, 0, len(stopWords))
	for code := range stopWords {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// HasStopWords reports whether a stop-word list is bundled for code.
func HasStopWords(code string) bool {
	_, ok := stopWords[code]
	return ok
}

// StopWords returns the union of the stop-word lists for codes.
// Unsupported codes contribute nothing. The result is a fresh set owned by
// the caller.
func StopWords(codes ...string) map[string]struct{} {
	size := 0
	for _, code := range codes {
		size += len(stopWords[code])
	}
	union := make(map[string]struct{}, size)
	for _, code := range codes {
		for w := range stopWords[code] {
			union[w] = struct{}{}
		}
	}
	return union
}

// Name returns the English name of a language code, or "" if unknown.
func Name(code string) string {
	return names[code]
}

// DisplayName formats a code for reports, e.g. "Russian (ru)".
// Unknown codes are returned unchanged.
func DisplayName(code string) string {
	if name, ok := names[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// Normalize lowercases a detector code and folds regional Chinese variants
// (zh-cn, zh-tw, ...) to "zh".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(code, "zh") {
		return "zh"
	}
	if code == "" {
		return Default
	}
	return code
}
