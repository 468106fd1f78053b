// Package normalize canonicalizes scripture text and ASR transcripts into a
// diacritic-free comparable form.
//
// Recited audio is transcribed from fully vocalized text, but transcription
// engines emit wildly inconsistent orthography: with or without vowel marks,
// with hamza seats preserved or folded, with Quranic annotation signs, with
// tatweel stretching. Matching must be insensitive to all of it, so both the
// reference corpus and every transcript pass through the same pipeline:
//
//  1. NFKD decomposition, so combining marks become separable code points
//     and presentation-form ligatures expand to base letters.
//  2. Strip all combining marks (Unicode Mn: harakat, tanween, shadda,
//     sukun, Quranic annotations) and the tatweel elongation bar.
//  3. Fold interchangeable letter variants: alef wasla to plain alef, teh
//     marbuta to heh, alef maksura to yeh. Hamza-seated letters need no
//     table entry: decomposition splits them into base letter plus a
//     combining hamza, which step 2 removes. A standalone hamza has no base
//     letter and is dropped.
//  4. Strip every rune outside the core Arabic letter block and ASCII
//     letters, keeping whitespace.
//  5. Collapse whitespace runs to single spaces and trim.
//  6. Lowercase, a no-op for Arabic but required for the Latin
//     transliteration path.
//
// The pipeline is deterministic and idempotent: Text(Text(s)) == Text(s).
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	hamza       = 'ء' // ء
	alef        = 'ا' // ا
	heh         = 'ه' // ه
	tehMarbuta  = 'ة' // ة
	yeh         = 'ي' // ي
	alefMaksura = 'ى' // ى
	tatweel     = 'ـ' // ـ elongation bar
	alefWasla   = 'ٱ' // ٱ has no NFKD decomposition, folded by table

	firstLetter = 'ء' // start of the core Arabic letter range
	lastLetter  = 'ي' // end of the core Arabic letter range
)

// folds maps letter variants that are acoustically interchangeable onto the
// canonical form used for comparison.
var folds = map[rune]rune{
	alefWasla:   alef,
	tehMarbuta:  heh,
	alefMaksura: yeh,
}

// Text returns the canonical comparable form of s. It is a pure function and
// safe for concurrent use.
func Text(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) || r == tatweel || r == hamza {
			continue
		}
		if f, ok := folds[r]; ok {
			r = f
		}
		switch {
		case r >= firstLetter && r <= lastLetter:
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.ToLower(strings.Join(strings.Fields(b.String()), " "))
}

// Words normalizes s and splits it on whitespace. Blank or fully stripped
// input yields an empty slice.
func Words(s string) []string {
	return strings.Fields(Text(s))
}
