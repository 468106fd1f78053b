// Package similarity provides the word and sequence comparison primitives
// used to decide whether a noisy transcript is a recitation of a given verse.
//
// Four complementary signals are computed between a transcript word list and
// a reference word list:
//
//   - exact ratio: greedy one-to-one matching of identical normalized words,
//   - fuzzy ratio: like exact, but a word pairs with the best unused
//     reference word whose similarity exceeds a threshold,
//   - sequential: longest common subsequence, rewarding words recited in the
//     correct relative order,
//   - length: penalizing big differences in word count.
//
// [Weights.Combined] blends them into one score in [0,1]. All functions are
// pure and safe for concurrent use. Inputs are normalized internally, so
// callers may pass raw or pre-normalized words interchangeably.
package similarity

import (
	"github.com/antzucaro/matchr"

	"github.com/hifdhlab/tasmi/internal/normalize"
)

const (
	// DefaultFuzzyThreshold is the minimum WordSimilarity for a fuzzy word
	// pairing to count as matched.
	DefaultFuzzyThreshold = 0.75

	// lcsEquivalence is the WordSimilarity above which two words are treated
	// as equal when computing the longest common subsequence.
	lcsEquivalence = 0.8
)

// Weights blends the four similarity signals into a combined score. The
// defaults are tuned against the feedback thresholds used by the matcher and
// aligner; override them only together with those.
type Weights struct {
	Exact      float64
	Fuzzy      float64
	Sequential float64
	Length     float64
}

// DefaultWeights returns the standard blend: 0.4 exact, 0.3 fuzzy,
// 0.2 sequential, 0.1 length.
func DefaultWeights() Weights {
	return Weights{Exact: 0.4, Fuzzy: 0.3, Sequential: 0.2, Length: 0.1}
}

// Sum returns the total of all four weights. A valid blend sums to 1.
func (w Weights) Sum() float64 {
	return w.Exact + w.Fuzzy + w.Sequential + w.Length
}

// Combined returns the weighted blend of all four signals for the given word
// lists.
func (w Weights) Combined(transcript, reference []string) float64 {
	return w.Exact*ExactMatchRatio(transcript, reference) +
		w.Fuzzy*FuzzyMatchRatio(transcript, reference, DefaultFuzzyThreshold) +
		w.Sequential*SequentialSimilarity(transcript, reference) +
		w.Length*LengthSimilarity(transcript, reference)
}

// Combined is shorthand for DefaultWeights().Combined.
func Combined(transcript, reference []string) float64 {
	return DefaultWeights().Combined(transcript, reference)
}

// WordSimilarity returns a score in [0,1] for two single words: 1.0 when
// their normalized forms are equal, otherwise 1 - editDistance/maxLen with
// unit-cost insert, delete and substitute over runes, clamped at 0.
func WordSimilarity(a, b string) float64 {
	na, nb := normalize.Text(a), normalize.Text(b)
	if na == nb {
		return 1
	}
	maxLen := max(len([]rune(na)), len([]rune(nb)))
	if maxLen == 0 {
		return 1
	}
	s := 1 - float64(matchr.Levenshtein(na, nb))/float64(maxLen)
	return max(s, 0)
}

// ExactMatchRatio greedily pairs transcript words with identical normalized
// reference words, consuming each reference word at most once, and returns
// matched / max(len(transcript), len(reference)).
func ExactMatchRatio(transcript, reference []string) float64 {
	if len(transcript) == 0 && len(reference) == 0 {
		return 1
	}
	if len(transcript) == 0 || len(reference) == 0 {
		return 0
	}

	ref := make([]string, len(reference))
	for i, w := range reference {
		ref[i] = normalize.Text(w)
	}
	used := make([]bool, len(ref))

	matched := 0
	for _, w := range transcript {
		nw := normalize.Text(w)
		for j, rw := range ref {
			if !used[j] && nw == rw {
				used[j] = true
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(max(len(transcript), len(reference)))
}

// FuzzyMatchRatio is like [ExactMatchRatio] but pairs each transcript word
// with the best unused reference word whose [WordSimilarity] exceeds
// threshold. A threshold <= 0 selects [DefaultFuzzyThreshold].
func FuzzyMatchRatio(transcript, reference []string, threshold float64) float64 {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if len(transcript) == 0 && len(reference) == 0 {
		return 1
	}
	if len(transcript) == 0 || len(reference) == 0 {
		return 0
	}

	used := make([]bool, len(reference))
	matched := 0
	for _, w := range transcript {
		best, bestScore := -1, threshold
		for j, rw := range reference {
			if used[j] {
				continue
			}
			if s := WordSimilarity(w, rw); s > bestScore {
				best, bestScore = j, s
			}
		}
		if best >= 0 {
			used[best] = true
			matched++
		}
	}
	return float64(matched) / float64(max(len(transcript), len(reference)))
}

// SequentialSimilarity returns the longest common subsequence length divided
// by max(len(transcript), len(reference)), where two words are considered
// equal when their WordSimilarity exceeds 0.8. It rewards recitations whose
// words appear in the correct relative order even with gaps.
func SequentialSimilarity(transcript, reference []string) float64 {
	if len(transcript) == 0 && len(reference) == 0 {
		return 1
	}
	if len(transcript) == 0 || len(reference) == 0 {
		return 0
	}

	prev := make([]int, len(reference)+1)
	curr := make([]int, len(reference)+1)
	for i := 1; i <= len(transcript); i++ {
		for j := 1; j <= len(reference); j++ {
			if WordSimilarity(transcript[i-1], reference[j-1]) > lcsEquivalence {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return float64(prev[len(reference)]) / float64(max(len(transcript), len(reference)))
}

// LengthSimilarity returns 1 - |len(a)-len(b)| / max(len(a),len(b)), or 1
// when both lists are empty.
func LengthSimilarity(a, b []string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(maxLen)
}
