// Package dataset provides reference recitations of known-correct verse
// texts, used to cross-validate live transcripts against how experienced
// reciters render the same verse.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/hifdhlab/tasmi/internal/normalize"
)

// VerseReference is one reciter's rendition of a verse.
type VerseReference struct {
	ReciterID      string `json:"reciter_id"`
	NormalizedText string `json:"normalized_text"`
	AudioRef       string `json:"audio_ref,omitempty"`
}

// Dataset serves reference recitations per verse. An empty slice with a nil
// error means no references are known for that verse.
type Dataset interface {
	VerseReferences(ctx context.Context, chapter, verse int) ([]VerseReference, error)
}

type verseKey struct {
	chapter, verse int
}

// referenceFile is the on-disk shape: one JSON file per reciter, verses
// keyed by chapter then verse number.
//
// Example:
//
//	{
//	  "reciter_id": "husary",
//	  "chapters": {
//	    "112": {
//	      "1": {"text": "قل هو الله أحد", "audio_ref": "husary/112001.mp3"}
//	    }
//	  }
//	}
type referenceFile struct {
	ReciterID string                               `json:"reciter_id"`
	Chapters  map[string]map[string]referenceEntry `json:"chapters"`
}

type referenceEntry struct {
	Text     string `json:"text"`
	AudioRef string `json:"audio_ref"`
}

// FileSet is a Dataset loaded once from a directory of reference files.
// Texts are normalized at load so lookups return comparison-ready words.
type FileSet struct {
	refs map[verseKey][]VerseReference
}

var _ Dataset = (*FileSet)(nil)

// LoadDir reads every .json file in dir. Malformed files are logged and
// skipped; an empty or missing set of usable files yields an empty FileSet,
// since cross-validation is optional. Only an unreadable directory fails.
func LoadDir(dir string) (*FileSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read dir %q: %w", dir, err)
	}

	fs := &FileSet{refs: make(map[verseKey][]VerseReference)}
	files := 0
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		if err := fs.addFile(path); err != nil {
			slog.Warn("dataset: skipping reference file", "path", path, "error", err)
			continue
		}
		files++
	}
	slog.Info("dataset: loaded reference recitations", "dir", dir, "files", files, "verses", len(fs.refs))
	return fs, nil
}

func (fs *FileSet) addFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return fs.addReader(f)
}

func (fs *FileSet) addReader(r io.Reader) error {
	var rf referenceFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rf); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if rf.ReciterID == "" {
		return fmt.Errorf("missing reciter_id")
	}

	for chKey, verses := range rf.Chapters {
		chapter, err := strconv.Atoi(chKey)
		if err != nil || chapter < 1 {
			return fmt.Errorf("bad chapter key %q", chKey)
		}
		for vKey, entry := range verses {
			verse, err := strconv.Atoi(vKey)
			if err != nil || verse < 1 {
				return fmt.Errorf("chapter %d: bad verse key %q", chapter, vKey)
			}
			text := normalize.Text(entry.Text)
			if text == "" {
				return fmt.Errorf("chapter %d verse %d: empty text", chapter, verse)
			}
			key := verseKey{chapter, verse}
			fs.refs[key] = append(fs.refs[key], VerseReference{
				ReciterID:      rf.ReciterID,
				NormalizedText: text,
				AudioRef:       entry.AudioRef,
			})
		}
	}
	return nil
}

// VerseReferences returns all known renditions of the verse.
func (fs *FileSet) VerseReferences(_ context.Context, chapter, verse int) ([]VerseReference, error) {
	return slices.Clone(fs.refs[verseKey{chapter, verse}]), nil
}

// Static is a fixed in-memory Dataset for tests.
type Static struct {
	refs map[verseKey][]VerseReference
}

var _ Dataset = (*Static)(nil)

// NewStatic returns an empty Static dataset.
func NewStatic() *Static {
	return &Static{refs: make(map[verseKey][]VerseReference)}
}

// Add registers renditions for a verse, normalizing their texts.
func (s *Static) Add(chapter, verse int, refs ...VerseReference) {
	key := verseKey{chapter, verse}
	for _, ref := range refs {
		ref.NormalizedText = normalize.Text(ref.NormalizedText)
		s.refs[key] = append(s.refs[key], ref)
	}
}

// VerseReferences returns all renditions registered for the verse.
func (s *Static) VerseReferences(_ context.Context, chapter, verse int) ([]VerseReference, error) {
	return slices.Clone(s.refs[verseKey{chapter, verse}]), nil
}
