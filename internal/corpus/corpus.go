// Package corpus holds the reference scripture text, organized by chapter
// and verse, behind an O(1) position lookup.
//
// A [Corpus] is immutable once built. Live reloads go through [Index], which
// builds a complete replacement corpus off to the side and publishes it with
// a single atomic pointer swap, so concurrent readers never observe a
// half-built state.
package corpus

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hifdhlab/tasmi/internal/normalize"
)

// ErrVerseNotFound is returned when a (chapter, verse) position does not
// exist in the loaded corpus.
var ErrVerseNotFound = errors.New("verse not found")

// ErrBadFormat is returned when a corpus source cannot be recognized or
// parsed. The loader skips such sources and tries the next candidate.
var ErrBadFormat = errors.New("unrecognized corpus format")

// Verse is a single reference verse. Immutable after load; the normalized
// fields are precomputed so matching never re-normalizes reference text.
type Verse struct {
	ChapterNumber int
	VerseNumber   int

	// Text is the original, fully vocalized verse text.
	Text string

	// Normalized is Text passed through the normalize pipeline.
	Normalized string

	// Words is Text split on whitespace, in recitation order.
	Words []string

	// NormalizedWords is Normalized split on whitespace. Matching and
	// alignment operate on this form.
	NormalizedWords []string
}

// Position identifies a word within the corpus.
type Position struct {
	Chapter   int `json:"chapter"`
	Verse     int `json:"verse"`
	WordIndex int `json:"word_index"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d+%d", p.Chapter, p.Verse, p.WordIndex)
}

// Chapter is an ordered run of verses with its canonical metadata.
type Chapter struct {
	Number         int
	Name           string
	TranslatedName string

	// TotalVerseCount is the canonical number of verses in this chapter. It
	// may exceed len(Verses) when only part of the chapter was loaded.
	TotalVerseCount int

	// Verses is sorted ascending by VerseNumber.
	Verses []*Verse
}

// Corpus is the uniform reference model every source shape is loaded into.
// Read-only after construction and safe for unsynchronized concurrent reads.
type Corpus struct {
	chapters []*Chapter
	byNumber map[int]*Chapter
	verses   map[verseKey]*Verse
	builtAt  time.Time
}

type verseKey struct {
	chapter int
	verse   int
}

// newVerse builds a Verse with its normalized fields precomputed.
func newVerse(chapter, verse int, text string) *Verse {
	normalized := normalize.Text(text)
	return &Verse{
		ChapterNumber:   chapter,
		VerseNumber:     verse,
		Text:            text,
		Normalized:      normalized,
		Words:           strings.Fields(text),
		NormalizedWords: strings.Fields(normalized),
	}
}

// build assembles the lookup structures from loaded chapters. Chapters and
// verses are sorted ascending; metadata gaps are filled from the packaged
// chapter table.
func build(chapters []*Chapter) (*Corpus, error) {
	if len(chapters) == 0 {
		return nil, fmt.Errorf("corpus: no chapters loaded: %w", ErrBadFormat)
	}

	slices.SortFunc(chapters, func(a, b *Chapter) int { return a.Number - b.Number })

	c := &Corpus{
		chapters: chapters,
		byNumber: make(map[int]*Chapter, len(chapters)),
		verses:   make(map[verseKey]*Verse),
		builtAt:  time.Now(),
	}
	for _, ch := range chapters {
		if ch.Number < 1 {
			return nil, fmt.Errorf("corpus: chapter number %d: %w", ch.Number, ErrBadFormat)
		}
		if _, dup := c.byNumber[ch.Number]; dup {
			return nil, fmt.Errorf("corpus: duplicate chapter %d: %w", ch.Number, ErrBadFormat)
		}
		fillMetadata(ch)
		slices.SortFunc(ch.Verses, func(a, b *Verse) int { return a.VerseNumber - b.VerseNumber })
		c.byNumber[ch.Number] = ch
		for _, v := range ch.Verses {
			key := verseKey{ch.Number, v.VerseNumber}
			if _, dup := c.verses[key]; dup {
				return nil, fmt.Errorf("corpus: duplicate verse %d:%d: %w", ch.Number, v.VerseNumber, ErrBadFormat)
			}
			c.verses[key] = v
		}
	}
	return c, nil
}

// Verse returns the verse at (chapter, verse), or false when the position is
// not loaded.
func (c *Corpus) Verse(chapter, verse int) (*Verse, bool) {
	v, ok := c.verses[verseKey{chapter, verse}]
	return v, ok
}

// Chapter returns the chapter with the given number, or false when absent.
func (c *Corpus) Chapter(number int) (*Chapter, bool) {
	ch, ok := c.byNumber[number]
	return ch, ok
}

// Chapters returns all loaded chapters in ascending order. The returned
// slice is shared and must not be modified.
func (c *Corpus) Chapters() []*Chapter {
	return c.chapters
}

// VerseCount returns the total number of loaded verses.
func (c *Corpus) VerseCount() int {
	return len(c.verses)
}

// BuiltAt returns the time the corpus finished building.
func (c *Corpus) BuiltAt() time.Time {
	return c.builtAt
}

// NextPosition returns the position following a completed verse: word 0 of
// the next loaded verse in the same chapter, or of the first verse of the
// next loaded chapter. done is true when v is the final verse of the final
// chapter, meaning there is nowhere left to advance.
func (c *Corpus) NextPosition(v *Verse) (next Position, done bool) {
	if nv, ok := c.Verse(v.ChapterNumber, v.VerseNumber+1); ok {
		return Position{Chapter: nv.ChapterNumber, Verse: nv.VerseNumber}, false
	}
	idx := slices.IndexFunc(c.chapters, func(ch *Chapter) bool { return ch.Number == v.ChapterNumber })
	for i := idx + 1; i < len(c.chapters); i++ {
		if len(c.chapters[i].Verses) > 0 {
			first := c.chapters[i].Verses[0]
			return Position{Chapter: first.ChapterNumber, Verse: first.VerseNumber}, false
		}
	}
	return Position{Chapter: v.ChapterNumber, Verse: v.VerseNumber}, true
}
