package recite_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hifdhlab/tasmi/internal/recite"
	"github.com/hifdhlab/tasmi/internal/session"
	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/asr/mock"
)

func subAt(chapter, verse int) session.RecitationError {
	return session.RecitationError{Type: session.ErrorSubstitution, Chapter: chapter, Verse: verse}
}

func TestStatistics_LiveSession(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, &mock.Transcriber{})
	sess := startSession(t, o)

	for range 4 {
		if err := sess.NoteChunk(1.5); err != nil {
			t.Fatalf("NoteChunk: %v", err)
		}
	}
	if err := sess.NoteWords(16, 12); err != nil {
		t.Fatalf("NoteWords: %v", err)
	}
	recErrs := []session.RecitationError{subAt(1, 1), subAt(1, 1), {
		Type: session.ErrorOmission, Chapter: 1, Verse: 2,
	}}
	if err := sess.RecordErrors(recErrs); err != nil {
		t.Fatalf("RecordErrors: %v", err)
	}

	stats, err := o.Statistics(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}

	if stats.SessionID != sess.ID || stats.State != session.StateActive {
		t.Errorf("got session %s state %s, want %s active", stats.SessionID, stats.State, sess.ID)
	}
	if stats.ChunkCount != 4 {
		t.Errorf("ChunkCount=%d, want 4", stats.ChunkCount)
	}
	// 12 correct words over 6 seconds of audio.
	if math.Abs(stats.WordsPerMinute-120) > 1e-9 {
		t.Errorf("WordsPerMinute=%v, want 120", stats.WordsPerMinute)
	}
	if stats.TotalDuration <= 0 {
		t.Errorf("TotalDuration=%v, want positive for a live session", stats.TotalDuration)
	}
	if stats.AverageAccuracy != 0 {
		t.Errorf("AverageAccuracy=%v before stop, want 0", stats.AverageAccuracy)
	}
	if stats.ErrorBreakdown[session.ErrorSubstitution] != 2 || stats.ErrorBreakdown[session.ErrorOmission] != 1 {
		t.Errorf("ErrorBreakdown=%v, want substitution:2 omission:1", stats.ErrorBreakdown)
	}
	want := []recite.VerseDifficulty{
		{Chapter: 1, Verse: 1, ErrorCount: 2},
		{Chapter: 1, Verse: 2, ErrorCount: 1},
	}
	if len(stats.MostDifficultVerses) != len(want) {
		t.Fatalf("MostDifficultVerses=%v, want %v", stats.MostDifficultVerses, want)
	}
	for i, w := range want {
		if stats.MostDifficultVerses[i] != w {
			t.Errorf("MostDifficultVerses[%d]=%v, want %v", i, stats.MostDifficultVerses[i], w)
		}
	}
}

func TestStatistics_FreshSessionIsEmpty(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, &mock.Transcriber{})
	sess := startSession(t, o)

	stats, err := o.Statistics(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.ChunkCount != 0 || stats.WordsPerMinute != 0 || len(stats.MostDifficultVerses) != 0 {
		t.Errorf("fresh session stats=%+v, want zero counts", stats)
	}
}

func TestStatistics_StoppedSessionReadsFromStore(t *testing.T) {
	t.Parallel()

	tr := &mock.Transcriber{Results: []*asr.Result{{Text: "alpha beta gamma delta"}}}
	o, _ := newOrchestrator(t, tr)
	sess := startSession(t, o)
	ctx := context.Background()

	if _, err := o.ProcessChunk(ctx, pcmChunk(sess.ID)); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	accuracy, err := o.StopSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}

	// The registry no longer holds the session; Statistics falls back to the
	// stored snapshot.
	stats, err := o.Statistics(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Statistics after stop: %v", err)
	}
	if stats.State != session.StateStopped {
		t.Errorf("State=%s, want stopped", stats.State)
	}
	if math.Abs(stats.AverageAccuracy-accuracy) > 1e-9 {
		t.Errorf("AverageAccuracy=%v, want %v", stats.AverageAccuracy, accuracy)
	}
	if stats.TotalDuration < 0 {
		t.Errorf("TotalDuration=%v, want non-negative", stats.TotalDuration)
	}
	if stats.ChunkCount != 1 {
		t.Errorf("ChunkCount=%d, want 1", stats.ChunkCount)
	}
}

func TestStatistics_RanksWorstVersesFirst(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, &mock.Transcriber{})
	sess := startSession(t, o)

	// Six distinct verses with error counts 1,3,2,2,4,1; only the top five
	// survive, ties keeping first-seen order.
	var recErrs []session.RecitationError
	add := func(chapter, verse, n int) {
		for range n {
			recErrs = append(recErrs, subAt(chapter, verse))
		}
	}
	add(1, 1, 1)
	add(1, 2, 3)
	add(1, 3, 2)
	add(2, 1, 2)
	add(2, 2, 4)
	add(2, 3, 1)
	if err := sess.RecordErrors(recErrs); err != nil {
		t.Fatalf("RecordErrors: %v", err)
	}

	stats, err := o.Statistics(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := []recite.VerseDifficulty{
		{Chapter: 2, Verse: 2, ErrorCount: 4},
		{Chapter: 1, Verse: 2, ErrorCount: 3},
		{Chapter: 1, Verse: 3, ErrorCount: 2},
		{Chapter: 2, Verse: 1, ErrorCount: 2},
		{Chapter: 1, Verse: 1, ErrorCount: 1},
	}
	if len(stats.MostDifficultVerses) != len(want) {
		t.Fatalf("got %d ranked verses %v, want %d", len(stats.MostDifficultVerses), stats.MostDifficultVerses, len(want))
	}
	for i, w := range want {
		if stats.MostDifficultVerses[i] != w {
			t.Errorf("rank %d = %v, want %v", i, stats.MostDifficultVerses[i], w)
		}
	}
}

func TestStatistics_UnknownSession(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, &mock.Transcriber{})
	if _, err := o.Statistics(context.Background(), "no-such-id"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Statistics(unknown) error=%v, want ErrNotFound", err)
	}
}
