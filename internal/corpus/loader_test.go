package corpus_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hifdhlab/tasmi/internal/corpus"
)

const flatJSON = `[
	{"chapter": 112, "verse": 1, "text": "قُلْ هُوَ اللَّهُ أَحَدٌ"},
	{"chapter": 112, "verse": 2, "text": "اللَّهُ الصَّمَدُ"},
	{"surah": 112, "ayah": 3, "text": "لَمْ يَلِدْ وَلَمْ يُولَدْ"}
]`

const nestedJSON = `{
	"112": {
		"1": "قُلْ هُوَ اللَّهُ أَحَدٌ",
		"2": "اللَّهُ الصَّمَدُ"
	}
}`

const canonicalJSON = `{
	"format": "tasmi/corpus@1",
	"chapters": [
		{
			"number": 112,
			"name": "Al-Ikhlas",
			"translated_name": "The Sincerity",
			"total_verses": 4,
			"verses": [
				{"number": 1, "text": "قُلْ هُوَ اللَّهُ أَحَدٌ"},
				{"number": 2, "text": "اللَّهُ الصَّمَدُ"}
			]
		}
	]
}`

const tanzilXML = `<?xml version="1.0" encoding="UTF-8"?>
<quran>
	<sura index="112" name="الإخلاص">
		<aya index="1" text="قُلْ هُوَ اللَّهُ أَحَدٌ"/>
		<aya index="2" text="اللَّهُ الصَّمَدُ"/>
	</sura>
</quran>`

func TestDecode_AllShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		verses int
	}{
		{"flat", flatJSON, 3},
		{"nested", nestedJSON, 2},
		{"canonical", canonicalJSON, 2},
		{"tanzil xml", tanzilXML, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, err := corpus.Decode([]byte(tc.data), corpus.FormatAuto)
			if err != nil {
				t.Fatalf("Decode(%s) error: %v", tc.name, err)
			}
			if got := c.VerseCount(); got != tc.verses {
				t.Errorf("VerseCount()=%d, want %d", got, tc.verses)
			}

			v, ok := c.Verse(112, 1)
			if !ok {
				t.Fatal("Verse(112, 1) not found")
			}
			if len(v.NormalizedWords) != 4 {
				t.Errorf("NormalizedWords=%q, want 4 words", v.NormalizedWords)
			}
			if v.NormalizedWords[0] != "قل" {
				t.Errorf("NormalizedWords[0]=%q, want %q", v.NormalizedWords[0], "قل")
			}
		})
	}
}

func TestDecode_ExplicitFormatOverridesSniffing(t *testing.T) {
	t.Parallel()

	// Flat data decoded with the wrong explicit format must fail rather
	// than fall back to sniffing.
	_, err := corpus.Decode([]byte(flatJSON), corpus.FormatNested)
	if !errors.Is(err, corpus.ErrBadFormat) {
		t.Errorf("Decode(flat as nested) error=%v, want ErrBadFormat", err)
	}
}

func TestDecode_MalformedSources(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"truncated json":     `[{"chapter": 1, "verse": 1,`,
		"empty array":        `[]`,
		"missing text":       `[{"chapter": 1, "verse": 1}]`,
		"zero verse number":  `[{"chapter": 1, "verse": 0, "text": "x"}]`,
		"non-numeric key":    `{"one": {"1": "x"}}`,
		"xml without suras":  `<quran></quran>`,
		"plain text":         `bismillah`,
		"wrong format field": `{"format": "tasmi/corpus@9", "chapters": [{"number": 1, "verses": [{"number": 1, "text": "x"}]}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := corpus.Decode([]byte(data), corpus.FormatAuto); !errors.Is(err, corpus.ErrBadFormat) {
				t.Errorf("Decode error=%v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDecode_ChapterMetadataFromTable(t *testing.T) {
	t.Parallel()

	// The flat shape carries no chapter metadata; names and the canonical
	// verse count come from the packaged table.
	c, err := corpus.Decode([]byte(flatJSON), corpus.FormatFlat)
	if err != nil {
		t.Fatalf("Decode(flat) error: %v", err)
	}
	ch, ok := c.Chapter(112)
	if !ok {
		t.Fatal("Chapter(112) not found")
	}
	if ch.Name != "Al-Ikhlas" {
		t.Errorf("Name=%q, want %q", ch.Name, "Al-Ikhlas")
	}
	if ch.TranslatedName != "The Sincerity" {
		t.Errorf("TranslatedName=%q, want %q", ch.TranslatedName, "The Sincerity")
	}
	if ch.TotalVerseCount != 4 {
		t.Errorf("TotalVerseCount=%d, want 4 (canonical count with partial load)", ch.TotalVerseCount)
	}
	if len(ch.Verses) != 3 {
		t.Errorf("len(Verses)=%d, want 3 loaded", len(ch.Verses))
	}
}

func TestDecode_SourceNameOverridesTable(t *testing.T) {
	t.Parallel()

	c, err := corpus.Decode([]byte(tanzilXML), corpus.FormatTanzilXML)
	if err != nil {
		t.Fatalf("Decode(tanzil) error: %v", err)
	}
	ch, _ := c.Chapter(112)
	if ch.Name != "الإخلاص" {
		t.Errorf("Name=%q, want source-provided %q", ch.Name, "الإخلاص")
	}
}

func TestLoad_SkipsBadSourcesAndUsesFirstGood(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(bad, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(good, []byte(flatJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := corpus.Load(
		corpus.Source{Path: filepath.Join(dir, "missing.json")},
		corpus.Source{Path: bad},
		corpus.Source{Path: good},
	)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.VerseCount() != 3 {
		t.Errorf("VerseCount()=%d, want 3 from the good source", c.VerseCount())
	}
}

func TestLoad_AllSourcesFailing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`null`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := corpus.Load(
		corpus.Source{Path: filepath.Join(dir, "missing.json")},
		corpus.Source{Path: bad},
	)
	if err == nil {
		t.Fatal("Load() with only bad sources: want error, got nil")
	}
}
