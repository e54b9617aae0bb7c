package textutil

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenSplitPattern matches non-alphanumeric character sequences.
var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Fingerprint represents a trigram-frequency vector for text similarity comparison.
type Fingerprint struct {
	grams map[string]float64
	norm  float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no trigrams.
func NewFingerprint(text string) *Fingerprint {
	grams := Trigrams(text)
	if len(grams) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(grams))
	for _, gram := range grams {
		counts[gram]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		grams: counts,
		norm:  math.Sqrt(norm),
	}
}

// Trigrams lowercases text, splits it into words, and returns the padded
// character trigrams of every word.
func Trigrams(text string) []string {
	words := tokenSplitPattern.Split(strings.ToLower(text), -1)
	var grams []string
	for _, word := range words {
		if word == "" {
			continue
		}
		runes := []rune(" " + word + " ")
		for i := 0; i+3 <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+3]))
		}
	}
	return grams
}

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for gram, count := range a.grams {
		if other, ok := b.grams[gram]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Suggest returns up to limit candidates whose similarity to query is at
// least threshold, best first. Ties keep candidate order.
func Suggest(query string, candidates []string, threshold float64, limit int) []string {
	target := NewFingerprint(query)
	if target == nil || limit <= 0 {
		return nil
	}
	type scored struct {
		name  string
		score float64
	}
	var hits []scored
	for _, candidate := range candidates {
		score := CosineSimilarity(target, NewFingerprint(candidate))
		if score >= threshold {
			hits = append(hits, scored{name: candidate, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, hit := range hits {
		out[i] = hit.name
	}
	return out
}
