package enrichment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmptyVocabulary is returned when no terms survive tokenization or pruning,
	// typically because every document consists of stop words.
	ErrEmptyVocabulary = errors.New("empty vocabulary")

	// ErrDocFrequencyBounds is returned when the maximum document frequency
	// admits fewer documents than the minimum requires.
	ErrDocFrequencyBounds = errors.New("max document frequency is below min document frequency")
)

// Vectorizer computes sublinear TF-IDF weights over unigrams and bigrams.
type Vectorizer struct {
	// MinDF is the minimum number of documents a term must occur in.
	MinDF int

	// MaxDF is the maximum fraction of documents a term may occur in.
	MaxDF float64

	// MaxFeatures caps the vocabulary to the most frequent terms. 0 disables the cap.
	MaxFeatures int

	// NGramMax is the longest n-gram produced. Values below 1 mean unigrams only.
	NGramMax int

	// StopWords are removed before n-grams are built.
	StopWords map[string]struct{}
}

// Matrix holds L2-normalized TF-IDF rows, one per input document.
type Matrix struct {
	Vocabulary []string
	Rows       []map[int]float64
}

// WeightedTerm is a term and its weight within one document.
type WeightedTerm struct {
	Term   string
	Weight float64
}

// FitTransform learns a vocabulary from docs and returns their weights.
func (v *Vectorizer) FitTransform(docs []string) (*Matrix, error) {
	n := len(docs)
	minDF := v.MinDF
	if minDF < 1 {
		minDF = 1
	}
	maxDocCount := v.MaxDF * float64(n)
	if maxDocCount < float64(minDF) {
		return nil, fmt.Errorf("%w: %d documents, max_df %.2f, min_df %d", ErrDocFrequencyBounds, n, v.MaxDF, minDF)
	}

	counts := make([]map[string]int, n)
	df := make(map[string]int)
	total := make(map[string]int)
	for i, doc := range docs {
		tf := make(map[string]int)
		for _, term := range v.analyze(doc) {
			tf[term]++
		}
		for term, c := range tf {
			df[term]++
			total[term] += c
		}
		counts[i] = tf
	}
	if len(df) == 0 {
		return nil, fmt.Errorf("%w: documents contain only stop words", ErrEmptyVocabulary)
	}

	kept := make([]string, 0, len(df))
	for term, d := range df {
		if float64(d) > maxDocCount || d < minDF {
			continue
		}
		kept = append(kept, term)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no terms remain after pruning", ErrEmptyVocabulary)
	}
	if v.MaxFeatures > 0 && len(kept) > v.MaxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if total[kept[i]] != total[kept[j]] {
				return total[kept[i]] > total[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:v.MaxFeatures]
	}
	sort.Strings(kept)

	index := make(map[string]int, len(kept))
	idf := make([]float64, len(kept))
	for i, term := range kept {
		index[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	m := &Matrix{Vocabulary: kept, Rows: make([]map[int]float64, n)}
	for i, tf := range counts {
		row := make(map[int]float64)
		var norm float64
		for term, c := range tf {
			j, ok := index[term]
			if !ok {
				continue
			}
			w := (1 + math.Log(float64(c))) * idf[j]
			row[j] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		m.Rows[i] = row
	}
	return m, nil
}

// Top returns up to n strictly positive terms of row i, heaviest first.
// Equal weights are ordered by term.
func (m *Matrix) Top(i, n int) []WeightedTerm {
	row := m.Rows[i]
	terms := make([]WeightedTerm, 0, len(row))
	for j, w := range row {
		if w > 0 {
			terms = append(terms, WeightedTerm{Term: m.Vocabulary[j], Weight: w})
		}
	}
	sort.Slice(terms, func(a, b int) bool {
		if terms[a].Weight != terms[b].Weight {
			return terms[a].Weight > terms[b].Weight
		}
		return terms[a].Term < terms[b].Term
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// analyze tokenizes doc and expands the surviving tokens into n-grams.
func (v *Vectorizer) analyze(doc string) []string {
	tokens := tokenize(doc)
	if len(v.StopWords) > 0 {
		filtered := tokens[:0]
		for _, t := range tokens {
			if _, stop := v.StopWords[t]; !stop {
				filtered = append(filtered, t)
			}
		}
		tokens = filtered
	}

	maxN := v.NGramMax
	if maxN < 1 {
		maxN = 1
	}
	terms := make([]string, 0, len(tokens)*maxN)
	terms = append(terms, tokens...)
	for size := 2; size <= maxN; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+size], " "))
		}
	}
	return terms
}

// tokenize lowercases text and returns runs of two or more word characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	start := -1
	flush := func(end int) {
		if start >= 0 && utf8.RuneCountInString(text[start:end]) >= 2 {
			tokens = append(tokens, text[start:end])
		}
		start = -1
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
