package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Format identifies the shape of a corpus source.
type Format string

const (
	// FormatAuto sniffs the shape from the source body.
	FormatAuto Format = ""

	// FormatFlat is a JSON array of per-verse records:
	// [{"chapter":1,"verse":1,"text":"..."}, ...]. The field aliases
	// surah/sura, ayah/aya and content are accepted.
	FormatFlat Format = "flat"

	// FormatNested is a JSON object keyed by chapter number, each value an
	// object keyed by verse number: {"1":{"1":"...","2":"..."}}.
	FormatNested Format = "nested"

	// FormatCanonical is the service's own shape, produced by export
	// tooling: {"format":"tasmi/corpus@1","chapters":[...]}.
	FormatCanonical Format = "canonical"

	// FormatTanzilXML is the Tanzil distribution shape:
	// <quran><sura index="1" name="..."><aya index="1" text="..."/></sura></quran>.
	FormatTanzilXML Format = "tanzil-xml"
)

// IsValid reports whether f is a recognized source format.
func (f Format) IsValid() bool {
	switch f {
	case FormatAuto, FormatFlat, FormatNested, FormatCanonical, FormatTanzilXML:
		return true
	}
	return false
}

// canonicalFormatID is the format marker written by export tooling. The
// trailing @1 is the shape version.
const canonicalFormatID = "tasmi/corpus@1"

// Source is one candidate corpus file. Candidates are tried in order; the
// first one that parses wins.
type Source struct {
	// Name labels the source in logs. Defaults to Path.
	Name string

	// Path is the file to read.
	Path string

	// Format is the expected shape. Leave empty to sniff.
	Format Format
}

func (s Source) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// New builds a Corpus from assembled chapters. Most callers go through
// [Load]; New is the programmatic path for tools and tests. Chapters and
// verses are sorted, metadata gaps are filled from the packaged table.
func New(chapters []*Chapter) (*Corpus, error) {
	return build(chapters)
}

// NewVerse builds a single verse with its normalized fields precomputed.
func NewVerse(chapter, verse int, text string) *Verse {
	return newVerse(chapter, verse, text)
}

// Load reads the candidate sources in order and returns the corpus from the
// first one that parses. Unreadable or malformed sources are logged and
// skipped; Load fails only when every candidate does.
func Load(sources ...Source) (*Corpus, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("corpus: no sources configured")
	}

	var errs []error
	for _, src := range sources {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			slog.Warn("corpus source unreadable, trying next", "source", src.label(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.label(), err))
			continue
		}
		c, err := Decode(data, src.Format)
		if err != nil {
			slog.Warn("corpus source malformed, trying next", "source", src.label(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.label(), err))
			continue
		}
		slog.Info("corpus loaded",
			"source", src.label(),
			"chapters", len(c.chapters),
			"verses", c.VerseCount(),
		)
		return c, nil
	}
	return nil, fmt.Errorf("corpus: all sources failed: %w", errors.Join(errs...))
}

// Decode parses a single source body into a Corpus. An empty format sniffs
// the shape from the body.
func Decode(data []byte, format Format) (*Corpus, error) {
	if format == FormatAuto {
		format = sniff(data)
	}
	switch format {
	case FormatFlat:
		return decodeFlat(data)
	case FormatNested:
		return decodeNested(data)
	case FormatCanonical:
		return decodeCanonical(data)
	case FormatTanzilXML:
		return decodeTanzil(data)
	default:
		return nil, fmt.Errorf("corpus: format %q: %w", format, ErrBadFormat)
	}
}

// sniff guesses the source shape from its first significant byte and, for
// JSON objects, its top-level keys.
func sniff(data []byte) Format {
	body := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if len(body) == 0 {
		return Format("empty")
	}
	switch body[0] {
	case '<':
		return FormatTanzilXML
	case '[':
		return FormatFlat
	case '{':
		var top map[string]json.RawMessage
		if err := json.Unmarshal(body, &top); err != nil {
			return Format("invalid")
		}
		if _, ok := top["chapters"]; ok {
			return FormatCanonical
		}
		if _, ok := top["format"]; ok {
			return FormatCanonical
		}
		return FormatNested
	default:
		return Format("invalid")
	}
}

// flatVerse is one record of the flat shape. Aliases cover the field names
// seen across public verse datasets.
type flatVerse struct {
	Chapter int    `json:"chapter"`
	Surah   int    `json:"surah"`
	Sura    int    `json:"sura"`
	Verse   int    `json:"verse"`
	Ayah    int    `json:"ayah"`
	Aya     int    `json:"aya"`
	Text    string `json:"text"`
	Content string `json:"content"`
}

func (fv flatVerse) chapter() int {
	switch {
	case fv.Chapter != 0:
		return fv.Chapter
	case fv.Surah != 0:
		return fv.Surah
	default:
		return fv.Sura
	}
}

func (fv flatVerse) verse() int {
	switch {
	case fv.Verse != 0:
		return fv.Verse
	case fv.Ayah != 0:
		return fv.Ayah
	default:
		return fv.Aya
	}
}

func (fv flatVerse) text() string {
	if fv.Text != "" {
		return fv.Text
	}
	return fv.Content
}

func decodeFlat(data []byte) (*Corpus, error) {
	var records []flatVerse
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corpus: flat records: %v: %w", err, ErrBadFormat)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("corpus: flat source has no records: %w", ErrBadFormat)
	}

	text := make(map[int]map[int]string)
	for i, rec := range records {
		ch, v, t := rec.chapter(), rec.verse(), rec.text()
		if ch < 1 || v < 1 || t == "" {
			return nil, fmt.Errorf("corpus: flat record %d incomplete (chapter=%d verse=%d): %w", i, ch, v, ErrBadFormat)
		}
		if text[ch] == nil {
			text[ch] = make(map[int]string)
		}
		text[ch][v] = t
	}
	return build(chaptersFromText(text, nil))
}

func decodeNested(data []byte) (*Corpus, error) {
	var nested map[string]map[string]string
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("corpus: nested object: %v: %w", err, ErrBadFormat)
	}
	if len(nested) == 0 {
		return nil, fmt.Errorf("corpus: nested source has no chapters: %w", ErrBadFormat)
	}

	text := make(map[int]map[int]string, len(nested))
	for chKey, verses := range nested {
		ch, err := strconv.Atoi(chKey)
		if err != nil || ch < 1 {
			return nil, fmt.Errorf("corpus: nested chapter key %q: %w", chKey, ErrBadFormat)
		}
		text[ch] = make(map[int]string, len(verses))
		for vKey, t := range verses {
			v, err := strconv.Atoi(vKey)
			if err != nil || v < 1 || t == "" {
				return nil, fmt.Errorf("corpus: nested verse key %q in chapter %d: %w", vKey, ch, ErrBadFormat)
			}
			text[ch][v] = t
		}
	}
	return build(chaptersFromText(text, nil))
}

// canonicalFile is the service's own export shape.
type canonicalFile struct {
	Format   string `json:"format"`
	Chapters []struct {
		Number         int    `json:"number"`
		Name           string `json:"name"`
		TranslatedName string `json:"translated_name"`
		TotalVerses    int    `json:"total_verses"`
		Verses         []struct {
			Number int    `json:"number"`
			Text   string `json:"text"`
		} `json:"verses"`
	} `json:"chapters"`
}

func decodeCanonical(data []byte) (*Corpus, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var file canonicalFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("corpus: canonical shape: %v: %w", err, ErrBadFormat)
	}
	if file.Format != "" && file.Format != canonicalFormatID {
		return nil, fmt.Errorf("corpus: format marker %q, want %q: %w", file.Format, canonicalFormatID, ErrBadFormat)
	}
	if len(file.Chapters) == 0 {
		return nil, fmt.Errorf("corpus: canonical source has no chapters: %w", ErrBadFormat)
	}

	chapters := make([]*Chapter, 0, len(file.Chapters))
	for _, fc := range file.Chapters {
		if fc.Number < 1 {
			return nil, fmt.Errorf("corpus: canonical chapter number %d: %w", fc.Number, ErrBadFormat)
		}
		ch := &Chapter{
			Number:          fc.Number,
			Name:            fc.Name,
			TranslatedName:  fc.TranslatedName,
			TotalVerseCount: fc.TotalVerses,
			Verses:          make([]*Verse, 0, len(fc.Verses)),
		}
		for _, fv := range fc.Verses {
			if fv.Number < 1 || fv.Text == "" {
				return nil, fmt.Errorf("corpus: canonical verse %d:%d incomplete: %w", fc.Number, fv.Number, ErrBadFormat)
			}
			ch.Verses = append(ch.Verses, newVerse(fc.Number, fv.Number, fv.Text))
		}
		chapters = append(chapters, ch)
	}
	return build(chapters)
}

func decodeTanzil(data []byte) (*Corpus, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("corpus: tanzil xml: %v: %w", err, ErrBadFormat)
	}
	suras, err := xmlquery.QueryAll(root, "//sura")
	if err != nil || len(suras) == 0 {
		return nil, fmt.Errorf("corpus: tanzil xml has no sura elements: %w", ErrBadFormat)
	}

	text := make(map[int]map[int]string, len(suras))
	names := make(map[int]string, len(suras))
	for _, sura := range suras {
		ch, err := strconv.Atoi(sura.SelectAttr("index"))
		if err != nil || ch < 1 {
			return nil, fmt.Errorf("corpus: tanzil sura index %q: %w", sura.SelectAttr("index"), ErrBadFormat)
		}
		names[ch] = strings.TrimSpace(sura.SelectAttr("name"))

		ayas, err := xmlquery.QueryAll(sura, "aya")
		if err != nil || len(ayas) == 0 {
			return nil, fmt.Errorf("corpus: tanzil sura %d has no aya elements: %w", ch, ErrBadFormat)
		}
		text[ch] = make(map[int]string, len(ayas))
		for _, aya := range ayas {
			v, err := strconv.Atoi(aya.SelectAttr("index"))
			if err != nil || v < 1 {
				return nil, fmt.Errorf("corpus: tanzil aya index %q in sura %d: %w", aya.SelectAttr("index"), ch, ErrBadFormat)
			}
			t := aya.SelectAttr("text")
			if t == "" {
				return nil, fmt.Errorf("corpus: tanzil aya %d:%d has no text: %w", ch, v, ErrBadFormat)
			}
			text[ch][v] = t
		}
	}
	return build(chaptersFromText(text, names))
}

// chaptersFromText assembles chapters from a chapter -> verse -> text map.
// names optionally carries source-provided chapter names.
func chaptersFromText(text map[int]map[int]string, names map[int]string) []*Chapter {
	chapters := make([]*Chapter, 0, len(text))
	for ch, verses := range text {
		chapter := &Chapter{
			Number: ch,
			Name:   names[ch],
			Verses: make([]*Verse, 0, len(verses)),
		}
		for v, t := range verses {
			chapter.Verses = append(chapter.Verses, newVerse(ch, v, t))
		}
		chapters = append(chapters, chapter)
	}
	return chapters
}
