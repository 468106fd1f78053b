// Package match locates the verse a noisy transcript was recited from.
//
// The matcher searches outward from the expected cursor position: the
// expected verse itself first, then nearby verses in the same chapter, then
// the whole corpus. A candidate counts as a match only when its combined
// similarity score clears [AcceptThreshold]; "no match" is an ordinary
// result carried by the IsMatch flag, not an error.
package match

import (
	"math"

	"github.com/hifdhlab/tasmi/internal/corpus"
	"github.com/hifdhlab/tasmi/internal/similarity"
)

const (
	// AcceptThreshold is the combined score a candidate must exceed to count
	// as a match.
	AcceptThreshold = 0.6

	// DefaultSearchWindow is the verse radius around the expected verse
	// searched before falling back to the full corpus.
	DefaultSearchWindow = 2

	// scoreEpsilon is the margin within which two candidate scores tie.
	scoreEpsilon = 1e-9
)

// Result is the outcome of a candidate search. When IsMatch is false the
// remaining fields still describe the best candidate seen, which is useful
// for logging but must never advance a session.
type Result struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`

	// Chapter, Verse and StartWordIndex locate the matched window.
	Chapter        int `json:"chapter"`
	Verse          int `json:"verse"`
	StartWordIndex int `json:"start_word_index"`

	// MatchLength is how many words of the matched verse the transcript
	// covers; a session advances by exactly this many words.
	MatchLength int `json:"match_length"`

	// ExpectedWords is the normalized remainder of the matched verse from
	// StartWordIndex to its end. ExpectedWords[:MatchLength] is the window
	// the confidence was scored over.
	ExpectedWords []string `json:"expected_words,omitempty"`
}

// Matcher scores transcript words against corpus verses.
type Matcher struct {
	index   *corpus.Index
	weights similarity.Weights
	accept  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWeights overrides the default combined-score weights.
func WithWeights(w similarity.Weights) Option {
	return func(m *Matcher) { m.weights = w }
}

// WithAcceptThreshold overrides [AcceptThreshold] as the score a candidate
// must exceed. Values outside (0,1) keep the default.
func WithAcceptThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 && t < 1 {
			m.accept = t
		}
	}
}

// New creates a Matcher reading verses from index.
func New(index *corpus.Index, opts ...Option) *Matcher {
	m := &Matcher{index: index, weights: similarity.DefaultWeights(), accept: AcceptThreshold}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// candidate is one scored verse window.
type candidate struct {
	verse *corpus.Verse
	start int
	score float64
	dist  int
}

// FindBestMatch searches for the verse window the transcript words belong
// to, starting at pos. Candidates are scored over the aligned window of
// min(len(words), remaining verse words); the highest combined score wins
// and ties break toward the candidate nearest pos. Verses within window of
// pos in the same chapter are tried first; the full corpus is scanned only
// when none of them clears [AcceptThreshold]. window <= 0 selects
// [DefaultSearchWindow].
func (m *Matcher) FindBestMatch(words []string, pos corpus.Position, window int) Result {
	miss := Result{Chapter: pos.Chapter, Verse: pos.Verse, StartWordIndex: pos.WordIndex}
	c := m.index.Corpus()
	if c == nil || len(words) == 0 {
		return miss
	}
	if window <= 0 {
		window = DefaultSearchWindow
	}

	var best candidate
	found := false
	consider := func(v *corpus.Verse, start int) {
		if start < 0 || start >= len(v.NormalizedWords) {
			return
		}
		remainder := v.NormalizedWords[start:]
		n := min(len(words), len(remainder))
		score := m.weights.Combined(words[:n], remainder[:n])
		dist := positionDistance(v, pos)
		if !found || score > best.score+scoreEpsilon ||
			(math.Abs(score-best.score) <= scoreEpsilon && dist < best.dist) {
			best = candidate{verse: v, start: start, score: score, dist: dist}
			found = true
		}
	}

	// The expected verse from the cursor onward, then its neighbors.
	if v, ok := c.Verse(pos.Chapter, pos.Verse); ok {
		consider(v, pos.WordIndex)
	}
	for offset := 1; offset <= window; offset++ {
		if v, ok := c.Verse(pos.Chapter, pos.Verse-offset); ok {
			consider(v, 0)
		}
		if v, ok := c.Verse(pos.Chapter, pos.Verse+offset); ok {
			consider(v, 0)
		}
	}

	if !found || best.score <= m.accept {
		// Nothing nearby: scan the rest of the corpus from each verse start.
		for _, ch := range c.Chapters() {
			for _, v := range ch.Verses {
				if v.ChapterNumber == pos.Chapter && abs(v.VerseNumber-pos.Verse) <= window {
					continue
				}
				consider(v, 0)
			}
		}
	}
	if !found {
		return miss
	}

	remainder := best.verse.NormalizedWords[best.start:]
	return Result{
		IsMatch:        best.score > m.accept,
		Confidence:     best.score,
		Chapter:        best.verse.ChapterNumber,
		Verse:          best.verse.VerseNumber,
		StartWordIndex: best.start,
		MatchLength:    min(len(words), len(remainder)),
		ExpectedWords:  remainder,
	}
}

// SearchEverywhere is the corpus-wide fuzzy fallback for transcripts that
// matched nothing near the cursor. Each verse is scored with the fuzzy match
// ratio against its opening window; the best verse is returned with
// found=true only when its ratio clears [AcceptThreshold]. Callers use a hit
// to suggest the passage the speaker is probably reciting instead.
func (m *Matcher) SearchEverywhere(words []string) (*corpus.Verse, float64, bool) {
	c := m.index.Corpus()
	if c == nil || len(words) == 0 {
		return nil, 0, false
	}

	var (
		bestVerse *corpus.Verse
		bestRatio float64
	)
	for _, ch := range c.Chapters() {
		for _, v := range ch.Verses {
			if len(v.NormalizedWords) == 0 {
				continue
			}
			n := min(len(words), len(v.NormalizedWords))
			ratio := similarity.FuzzyMatchRatio(words[:n], v.NormalizedWords[:n], 0)
			if bestVerse == nil || ratio > bestRatio {
				bestVerse, bestRatio = v, ratio
			}
		}
	}
	if bestVerse == nil {
		return nil, 0, false
	}
	return bestVerse, bestRatio, bestRatio > m.accept
}

// positionDistance orders candidates by how far they sit from the expected
// position: verses in another chapter always rank behind any verse in the
// expected chapter.
func positionDistance(v *corpus.Verse, pos corpus.Position) int {
	if v.ChapterNumber == pos.Chapter {
		return abs(v.VerseNumber - pos.Verse)
	}
	return 1_000_000 + abs(v.ChapterNumber-pos.Chapter)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
