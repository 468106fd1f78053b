// Package session tracks the progress of a single recitation: the cursor
// into the reference text, the accumulated recitation errors, and the
// lifecycle state machine.
//
// A [Session] moves through NotStarted, Active and Stopped; Stopped is
// terminal. Every mutating method takes the session's own lock, so chunks
// arriving concurrently for the same session (a retrying client, or a chunk
// in flight while the session is being stopped) serialize cleanly: whoever
// loses the race against Stop observes the Stopped state and gets
// [ErrClosed].
package session

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hifdhlab/tasmi/internal/corpus"
)

// ErrNotFound is returned when no session with the requested id exists.
var ErrNotFound = errors.New("session not found")

// ErrClosed is returned by mutating calls on a stopped session.
var ErrClosed = errors.New("session closed")

// State is a session lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateActive     State = "active"
	StateStopped    State = "stopped"
)

// ErrorType classifies a single recitation error.
type ErrorType string

const (
	// ErrorSubstitution: a word was recited but differs from the expected one.
	ErrorSubstitution ErrorType = "substitution"
	// ErrorOmission: an expected word was not recited.
	ErrorOmission ErrorType = "omission"
	// ErrorInsertion: a word was recited that the reference does not contain.
	ErrorInsertion ErrorType = "insertion"
	// ErrorSequence: the recitation matches a different passage than expected.
	ErrorSequence ErrorType = "sequence"
)

// RecitationError is one detected mistake. Append-only within a session.
type RecitationError struct {
	ID           string    `json:"id"`
	Type         ErrorType `json:"type"`
	Chapter      int       `json:"chapter"`
	Verse        int       `json:"verse"`
	WordIndex    int       `json:"word_index"`
	HeardWord    string    `json:"heard_word,omitempty"`
	ExpectedWord string    `json:"expected_word,omitempty"`

	// WordCount is the number of words covered by an aggregate omission or
	// insertion error; zero for single-word errors.
	WordCount int `json:"word_count,omitempty"`

	// StartTime and EndTime are offsets in seconds within the audio chunk
	// that produced the error, when the transcriber supplied timestamps.
	StartTime float64 `json:"start_time,omitempty"`
	EndTime   float64 `json:"end_time,omitempty"`

	Confidence float64 `json:"confidence,omitempty"`

	// Suggestion carries a human-readable hint, set on sequence errors when
	// the recitation matched a different passage than expected.
	Suggestion string `json:"suggestion,omitempty"`
}

// Progress is the cursor into the reference text.
type Progress struct {
	Chapter           int     `json:"chapter"`
	Verse             int     `json:"verse"`
	WordIndex         int     `json:"word_index"`
	TotalWordsInVerse int     `json:"total_words_in_verse"`
	PercentComplete   float64 `json:"percent_complete"`
	VerseComplete     bool    `json:"verse_complete"`
}

// Session is one recitation session. All exported fields are owned by the
// session's internal lock; read them only from a [Session.Snapshot].
type Session struct {
	mu sync.Mutex

	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	StartingPosition corpus.Position   `json:"starting_position"`
	Mode             string            `json:"mode"`
	ErrorThreshold   float64           `json:"error_threshold"`
	State            State             `json:"state"`
	Active           bool              `json:"active"`
	Progress         Progress          `json:"progress"`
	Errors           []RecitationError `json:"errors"`
	ErrorCounts      map[ErrorType]int `json:"error_counts"`
	ChunksProcessed  int               `json:"chunks_processed"`

	// RecitationSeconds is the summed duration of all processed chunks.
	RecitationSeconds float64 `json:"recitation_seconds"`

	// WordsRecited counts transcript words across all aligned chunks;
	// CorrectWords counts how many of them matched the reference.
	WordsRecited int `json:"words_recited"`
	CorrectWords int `json:"correct_words"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitzero"`
	AverageAccuracy float64   `json:"average_accuracy"`

	// Complete is latched when the cursor passes the final verse of the
	// final loaded chapter. The session stays Active until stopped, but the
	// cursor no longer advances.
	Complete bool `json:"complete"`
}

// New creates an Active session with the cursor at pos. totalWordsInVerse is
// the word count of the verse at pos.
func New(userID string, pos corpus.Position, mode string, errorThreshold float64, totalWordsInVerse int) *Session {
	return &Session{
		ID:               uuid.NewString(),
		UserID:           userID,
		StartingPosition: pos,
		Mode:             mode,
		ErrorThreshold:   errorThreshold,
		State:            StateActive,
		Active:           true,
		Progress:         progressAt(pos, totalWordsInVerse),
		ErrorCounts:      make(map[ErrorType]int),
		StartedAt:        time.Now(),
	}
}

func progressAt(pos corpus.Position, totalWords int) Progress {
	p := Progress{
		Chapter:           pos.Chapter,
		Verse:             pos.Verse,
		WordIndex:         pos.WordIndex,
		TotalWordsInVerse: totalWords,
	}
	if totalWords > 0 {
		p.PercentComplete = min(float64(pos.WordIndex)/float64(totalWords)*100, 100)
	}
	return p
}

// Pos returns the current cursor position.
func (s *Session) Pos() corpus.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return corpus.Position{
		Chapter:   s.Progress.Chapter,
		Verse:     s.Progress.Verse,
		WordIndex: s.Progress.WordIndex,
	}
}

// Advance moves the cursor forward by matchLength words within the current
// verse. verseWordCount is the verse's total word count. It returns
// verseDone=true when the cursor reached or passed the end of the verse; the
// caller then resolves the next verse and calls [Session.MoveTo] or
// [Session.MarkComplete]. The word index never decreases.
func (s *Session) Advance(matchLength, verseWordCount int) (verseDone bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return false, ErrClosed
	}
	if s.Complete || matchLength <= 0 {
		return false, nil
	}

	s.Progress.WordIndex += matchLength
	s.Progress.TotalWordsInVerse = verseWordCount
	if verseWordCount > 0 {
		s.Progress.PercentComplete = min(float64(s.Progress.WordIndex)/float64(verseWordCount)*100, 100)
	}
	if s.Progress.WordIndex >= verseWordCount {
		s.Progress.VerseComplete = true
		return true, nil
	}
	return false, nil
}

// MoveTo resets the cursor to word 0 of a new verse after a verse was
// completed, or repositions an active session.
func (s *Session) MoveTo(pos corpus.Position, totalWordsInVerse int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return ErrClosed
	}
	s.Progress = progressAt(pos, totalWordsInVerse)
	return nil
}

// MarkComplete latches the session as having recited past the final loaded
// verse. The cursor pins in place; further Advance calls are no-ops.
func (s *Session) MarkComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return ErrClosed
	}
	s.Complete = true
	s.Progress.VerseComplete = true
	s.Progress.PercentComplete = 100
	return nil
}

// RecordErrors appends errs and updates the per-type counts. Errors without
// an ID get one assigned.
func (s *Session) RecordErrors(errs []RecitationError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return ErrClosed
	}
	for _, e := range errs {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.Errors = append(s.Errors, e)
		s.ErrorCounts[e.Type]++
	}
	return nil
}

// NoteChunk accounts one processed audio chunk of the given duration.
func (s *Session) NoteChunk(durationSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return ErrClosed
	}
	s.ChunksProcessed++
	if durationSeconds > 0 {
		s.RecitationSeconds += durationSeconds
	}
	return nil
}

// NoteWords accounts the word tallies from one aligned chunk: recited is the
// transcript word count, correct how many of them matched the reference.
func (s *Session) NoteWords(recited, correct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return ErrClosed
	}
	if recited > 0 {
		s.WordsRecited += recited
	}
	if correct > 0 {
		s.CorrectWords += correct
	}
	return nil
}

// Stop finalizes the session: Stopped state, end timestamp, and the average
// accuracy max(0, (chunks-errors)/chunks), 0 when no chunks were processed.
// A second Stop returns [ErrClosed].
func (s *Session) Stop() (finalAccuracy float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != StateActive {
		return 0, ErrClosed
	}
	s.State = StateStopped
	s.Active = false
	s.EndedAt = time.Now()
	s.AverageAccuracy = 0
	if s.ChunksProcessed > 0 {
		acc := float64(s.ChunksProcessed-len(s.Errors)) / float64(s.ChunksProcessed)
		s.AverageAccuracy = max(acc, 0)
	}
	return s.AverageAccuracy, nil
}

// Snapshot returns a deep copy safe to persist or serialize while the
// session keeps mutating.
func (s *Session) Snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Session{
		ID:                s.ID,
		UserID:            s.UserID,
		StartingPosition:  s.StartingPosition,
		Mode:              s.Mode,
		ErrorThreshold:    s.ErrorThreshold,
		State:             s.State,
		Active:            s.Active,
		Progress:          s.Progress,
		Errors:            slices.Clone(s.Errors),
		ErrorCounts:       maps.Clone(s.ErrorCounts),
		ChunksProcessed:   s.ChunksProcessed,
		RecitationSeconds: s.RecitationSeconds,
		WordsRecited:      s.WordsRecited,
		CorrectWords:      s.CorrectWords,
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		AverageAccuracy:   s.AverageAccuracy,
		Complete:          s.Complete,
	}
}
