package normalize_test

import (
	"slices"
	"testing"

	"github.com/hifdhlab/tasmi/internal/normalize"
)

func TestText_StripsDiacritics(t *testing.T) {
	t.Parallel()

	// Fully vocalized basmala against its bare form.
	vocalized := "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ"
	bare := "بسم الله الرحمن الرحيم"

	if got := normalize.Text(vocalized); got != bare {
		t.Errorf("Text(vocalized)=%q, want %q", got, bare)
	}
	if got := normalize.Text(bare); got != bare {
		t.Errorf("Text(bare)=%q, want unchanged %q", got, bare)
	}
}

func TestText_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ",
		"إِيَّاكَ نَعْبُدُ وَإِيَّاكَ نَسْتَعِينُ",
		"ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَٰلَمِينَ",
		"Bismillah ar-Rahman",
		"",
	}
	for _, in := range inputs {
		once := normalize.Text(in)
		twice := normalize.Text(once)
		if once != twice {
			t.Errorf("Text not idempotent for %q: first=%q, second=%q", in, once, twice)
		}
	}
}

func TestText_FoldsLetterVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"alef hamza above", "أَعُوذُ", "اعوذ"},
		{"alef hamza below", "إِيَّاكَ", "اياك"},
		{"alef madda", "آمَنُوا", "امنوا"},
		{"alef wasla", "ٱلْحَمْدُ", "الحمد"},
		{"teh marbuta to heh", "ٱلصَّلَوٰةَ", "الصلوه"},
		{"alef maksura to yeh", "عَلَىٰ", "علي"},
		{"yeh hamza", "سُئِلَ", "سيل"},
		{"waw hamza", "يُؤْمِنُونَ", "يومنون"},
		{"standalone hamza dropped", "سَمَاءٍ", "سما"},
		{"tatweel removed", "بـــسم", "بسم"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := normalize.Text(tc.in); got != tc.want {
				t.Errorf("Text(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestText_ExpandsPresentationForms(t *testing.T) {
	t.Parallel()

	// U+FEFB is the lam-alef ligature presentation form.
	if got := normalize.Text("ﻻ"); got != "لا" {
		t.Errorf("Text(lam-alef ligature)=%q, want %q", got, "لا")
	}
}

func TestText_StripsNonLetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"بسم ۝ الله", "بسم الله"}, // verse-end sign
		{"قل: هو", "قل هو"},
		{"ar-Rahman", "arrahman"},
		{"  بسم   الله  ", "بسم الله"},
		{"123 ٤٥٦", ""},
	}
	for _, tc := range tests {
		if got := normalize.Text(tc.in); got != tc.want {
			t.Errorf("Text(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestText_LowercasesLatin(t *testing.T) {
	t.Parallel()

	if got := normalize.Text("BISMILLAH"); got != "bismillah" {
		t.Errorf("Text(%q)=%q, want %q", "BISMILLAH", got, "bismillah")
	}
}

func TestWords(t *testing.T) {
	t.Parallel()

	got := normalize.Words("بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ")
	want := []string{"بسم", "الله", "الرحمن", "الرحيم"}
	if !slices.Equal(got, want) {
		t.Errorf("Words()=%q, want %q", got, want)
	}

	if got := normalize.Words("   "); len(got) != 0 {
		t.Errorf("Words(blank)=%q, want empty", got)
	}
	if got := normalize.Words("۞"); len(got) != 0 {
		t.Errorf("Words(ornament)=%q, want empty", got)
	}
}
