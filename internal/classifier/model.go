// Package classifier implements a bag-of-words naive-Bayes text classifier
// used to label transactions with category names. The model learns
// incrementally and is cheap enough to rebuild from scratch on every
// training run.
package classifier

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Example is one labeled training input.
type Example struct {
	Text  string
	Label string
}

// Model holds per-label document counts and word frequency tables.
// It is not safe for concurrent mutation; owners must publish a fully
// trained model and treat it as read-only afterwards.
type Model struct {
	docs       int
	labels     map[string]int
	words      map[string]map[string]int
	wordTotals map[string]int
	vocab      map[string]struct{}
}

func New() *Model {
	return &Model{
		labels:     make(map[string]int),
		words:      make(map[string]map[string]int),
		wordTotals: make(map[string]int),
		vocab:      make(map[string]struct{}),
	}
}

// Normalize builds the canonical classification text from a transaction
// description and type. Training and prediction must use the same form.
func Normalize(description, transactionType string) string {
	return strings.ToLower(strings.TrimSpace(description) + " " + transactionType)
}

// Train feeds one labeled document into the model.
func (m *Model) Train(text, label string) {
	tokens := tokenize(text)
	if label == "" || len(tokens) == 0 {
		return
	}
	m.docs++
	m.labels[label]++
	counts, ok := m.words[label]
	if !ok {
		counts = make(map[string]int)
		m.words[label] = counts
	}
	for _, tok := range tokens {
		counts[tok]++
		m.wordTotals[label]++
		m.vocab[tok] = struct{}{}
	}
}

// Predict returns the most probable label for the text. The second return
// is false when the model has no trained labels or the text has no tokens.
func (m *Model) Predict(text string) (string, bool) {
	if m.docs == 0 || len(m.labels) == 0 {
		return "", false
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return "", false
	}

	// Stable iteration order makes ties deterministic.
	names := make([]string, 0, len(m.labels))
	for label := range m.labels {
		names = append(names, label)
	}
	sort.Strings(names)

	vocabSize := float64(len(m.vocab))
	best := ""
	bestScore := math.Inf(-1)
	for _, label := range names {
		score := math.Log(float64(m.labels[label]) / float64(m.docs))
		counts := m.words[label]
		total := float64(m.wordTotals[label])
		for _, tok := range tokens {
			// Laplace smoothing keeps unseen words from zeroing a label.
			score += math.Log((float64(counts[tok]) + 1) / (total + vocabSize))
		}
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	return best, true
}

// Labels returns the number of distinct trained labels.
func (m *Model) Labels() int {
	return len(m.labels)
}

// Documents returns the number of trained documents.
func (m *Model) Documents() int {
	return m.docs
}

func (m *Model) Empty() bool {
	return m.docs == 0
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
