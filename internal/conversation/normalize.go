package conversation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Private-use-area characters the export uses as citation markers.
	puaPattern = regexp.MustCompile(`[\x{E000}-\x{F8FF}]`)

	// citeturn0search1, citeturn2view0, ...
	citationPattern = regexp.MustCompile(`citeturn\d+\w+\d*`)

	excessNewlines = regexp.MustCompile(`\n{3,}`)

	fencedCodePattern = regexp.MustCompile("(?s)```(?:\\w+)?\\s*\\n(.*?)```")
)

// StripPUA removes private-use-area characters.
func StripPUA(text string) string {
	return puaPattern.ReplaceAllString(text, "")
}

// StripCitations removes citeturn citation markup tokens.
func StripCitations(text string) string {
	return citationPattern.ReplaceAllString(text, "")
}

// CleanText strips export noise, collapses runs of blank lines and trims.
func CleanText(text string) string {
	text = StripPUA(text)
	text = StripCitations(text)
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SeparateCode splits fenced code blocks out of text.
// Prose is the text with every block removed; code is the non-blank block
// bodies joined by a blank line.
func SeparateCode(text string) (prose, code string) {
	matches := fencedCodePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), ""
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		if body := strings.TrimSpace(m[1]); body != "" {
			blocks = append(blocks, body)
		}
	}

	prose = strings.TrimSpace(fencedCodePattern.ReplaceAllString(text, ""))
	return prose, strings.Join(blocks, "\n\n")
}

// StripCode removes fenced code blocks and returns the remaining prose.
func StripCode(text string) string {
	return strings.TrimSpace(fencedCodePattern.ReplaceAllString(text, ""))
}

// ExtractTextFromParts joins the string elements of a parts list.
// Non-string parts (image and file pointers) are skipped.
func ExtractTextFromParts(parts []json.RawMessage) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = bytes.TrimSpace(p)
		if len(p) == 0 || p[0] != '"' {
			continue
		}
		var s string
		if err := json.Unmarshal(p, &s); err != nil {
			continue
		}
		texts = append(texts, s)
	}
	return strings.Join(texts, "\n")
}

// Truncate shortens text to at most maxLen runes, ending with "...".
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string([]rune(text)[:maxLen])
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}
