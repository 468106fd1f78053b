// Package align compares transcript words against expected verse words and
// classifies every difference as a recitation error.
//
// Two tiers share one error vocabulary. [Classify] is the quick positional
// pass used for per-chunk feedback: it compares word i against word i and
// folds any length difference into a single aggregate error. [AlignWords] is
// the detailed pass: a greedy one-to-one assignment that accounts for every
// transcript and expected word exactly once, at the cost of more work per
// chunk. Callers pick the tier that matches how much they need to know.
package align

import (
	"cmp"
	"slices"
	"strings"

	"github.com/hifdhlab/tasmi/internal/corpus"
	"github.com/hifdhlab/tasmi/internal/session"
	"github.com/hifdhlab/tasmi/internal/similarity"
)

const (
	// PositionalThreshold is the word similarity below which a position-wise
	// comparison counts as a substitution.
	PositionalThreshold = 0.7

	// CorrectThreshold separates a correctly recited word from a
	// substitution in the fine aligner.
	CorrectThreshold = 0.8

	// PairThreshold is the minimum word similarity for the fine aligner to
	// pair a transcript word with an expected word at all; the comparison is
	// strict, so a word scoring exactly at the threshold stays unpaired.
	PairThreshold = 0.6
)

// Classify runs the coarse positional comparison. Words are compared index
// by index over the overlapping length; a similarity below
// [PositionalThreshold] yields a substitution at that word. A length
// mismatch yields one aggregate omission (transcript shorter) or insertion
// (transcript longer) carrying the joined missing or extra text and the word
// count difference. pos locates expected[0] in the corpus.
func Classify(transcript, expected []string, pos corpus.Position) []session.RecitationError {
	var errs []session.RecitationError
	n := min(len(transcript), len(expected))
	for i := range n {
		sim := similarity.WordSimilarity(transcript[i], expected[i])
		if sim < PositionalThreshold {
			errs = append(errs, session.RecitationError{
				Type:         session.ErrorSubstitution,
				Chapter:      pos.Chapter,
				Verse:        pos.Verse,
				WordIndex:    pos.WordIndex + i,
				HeardWord:    transcript[i],
				ExpectedWord: expected[i],
				Confidence:   sim,
			})
		}
	}

	switch {
	case len(transcript) < len(expected):
		errs = append(errs, session.RecitationError{
			Type:         session.ErrorOmission,
			Chapter:      pos.Chapter,
			Verse:        pos.Verse,
			WordIndex:    pos.WordIndex + n,
			ExpectedWord: strings.Join(expected[n:], " "),
			WordCount:    len(expected) - len(transcript),
		})
	case len(transcript) > len(expected):
		errs = append(errs, session.RecitationError{
			Type:      session.ErrorInsertion,
			Chapter:   pos.Chapter,
			Verse:     pos.Verse,
			WordIndex: pos.WordIndex + n,
			HeardWord: strings.Join(transcript[n:], " "),
			WordCount: len(transcript) - len(expected),
		})
	}
	return errs
}

// entry carries an error with its ordering key: the expected-word index for
// substitutions and omissions, the preceding matched expected index for
// insertions. kind orders an insertion after the entry it follows.
type entry struct {
	err  session.RecitationError
	key  int
	kind int
	seq  int
}

// AlignWords runs the fine word-level alignment. Each transcript word, in
// order, greedily claims the most similar unused expected word scoring above
// [PairThreshold]: at or above [CorrectThreshold] the word is correct,
// below it a substitution. Transcript words that claim nothing become
// insertions; expected words never claimed become omissions. The returned
// errors are ordered by expected-word index with insertions interleaved at
// their transcript position, and correct is the number of correctly recited
// words. Every transcript and expected word is accounted for exactly once.
func AlignWords(transcript, expected []string, pos corpus.Position) (errs []session.RecitationError, correct int) {
	used := make([]bool, len(expected))
	matchedAt := make([]int, len(transcript))
	sims := make([]float64, len(transcript))

	for i, w := range transcript {
		bestJ, bestSim := -1, PairThreshold
		for j, ew := range expected {
			if used[j] {
				continue
			}
			if sim := similarity.WordSimilarity(w, ew); sim > bestSim {
				bestJ, bestSim = j, sim
			}
		}
		matchedAt[i] = bestJ
		sims[i] = bestSim
		if bestJ >= 0 {
			used[bestJ] = true
			if bestSim >= CorrectThreshold {
				correct++
			}
		}
	}

	var entries []entry
	anchor := -1
	for i, w := range transcript {
		j := matchedAt[i]
		if j < 0 {
			entries = append(entries, entry{
				key:  anchor,
				kind: 1,
				seq:  i,
				err: session.RecitationError{
					Type:      session.ErrorInsertion,
					Chapter:   pos.Chapter,
					Verse:     pos.Verse,
					WordIndex: pos.WordIndex + i,
					HeardWord: w,
				},
			})
			continue
		}
		anchor = j
		if sims[i] >= CorrectThreshold {
			continue
		}
		entries = append(entries, entry{
			key: j,
			seq: i,
			err: session.RecitationError{
				Type:         session.ErrorSubstitution,
				Chapter:      pos.Chapter,
				Verse:        pos.Verse,
				WordIndex:    pos.WordIndex + j,
				HeardWord:    w,
				ExpectedWord: expected[j],
				Confidence:   sims[i],
			},
		})
	}
	for j, ew := range expected {
		if used[j] {
			continue
		}
		entries = append(entries, entry{
			key: j,
			seq: len(transcript) + j,
			err: session.RecitationError{
				Type:         session.ErrorOmission,
				Chapter:      pos.Chapter,
				Verse:        pos.Verse,
				WordIndex:    pos.WordIndex + j,
				ExpectedWord: ew,
			},
		})
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.key, b.key); c != 0 {
			return c
		}
		if c := cmp.Compare(a.kind, b.kind); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	errs = make([]session.RecitationError, len(entries))
	for i, e := range entries {
		errs[i] = e.err
	}
	return errs, correct
}
