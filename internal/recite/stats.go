package recite

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hifdhlab/tasmi/internal/session"
)

// difficultVerseLimit caps how many verses Statistics ranks.
const difficultVerseLimit = 5

// Statistics summarizes a session for review. It can be computed for live
// and stopped sessions alike.
type Statistics struct {
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`

	// TotalDuration is wall-clock time from start to stop, or to now for a
	// session that is still active.
	TotalDuration time.Duration `json:"total_duration"`

	ChunkCount     int                       `json:"chunk_count"`
	ErrorBreakdown map[session.ErrorType]int `json:"error_breakdown"`

	// MostDifficultVerses ranks verses by recorded error count, most first.
	MostDifficultVerses []VerseDifficulty `json:"most_difficult_verses"`

	// WordsPerMinute is the rate of correctly recited words over the summed
	// chunk audio duration.
	WordsPerMinute float64 `json:"words_per_minute"`

	// AverageAccuracy is the final accuracy; zero until the session stops.
	AverageAccuracy float64 `json:"average_accuracy"`
}

// VerseDifficulty counts the errors recorded against one verse.
type VerseDifficulty struct {
	Chapter    int `json:"chapter"`
	Verse      int `json:"verse"`
	ErrorCount int `json:"error_count"`
}

// Statistics computes the summary for the session with the given id.
func (o *Orchestrator) Statistics(ctx context.Context, id string) (*Statistics, error) {
	sess, err := o.fetchSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recite: session %s: %w", id, err)
	}
	snap := sess.Snapshot()

	stats := &Statistics{
		SessionID:           snap.ID,
		State:               snap.State,
		ChunkCount:          snap.ChunksProcessed,
		ErrorBreakdown:      snap.ErrorCounts,
		MostDifficultVerses: difficultVerses(snap.Errors, difficultVerseLimit),
		AverageAccuracy:     snap.AverageAccuracy,
	}
	if snap.EndedAt.IsZero() {
		stats.TotalDuration = time.Since(snap.StartedAt)
	} else {
		stats.TotalDuration = snap.EndedAt.Sub(snap.StartedAt)
	}
	if snap.RecitationSeconds > 0 {
		stats.WordsPerMinute = float64(snap.CorrectWords) / (snap.RecitationSeconds / 60)
	}
	return stats, nil
}

// difficultVerses ranks verses by how many errors they collected, most
// first. Verses with equal counts keep the order they were first seen in.
func difficultVerses(errs []session.RecitationError, limit int) []VerseDifficulty {
	type key struct{ chapter, verse int }
	counts := make(map[key]int, len(errs))
	var order []key
	for _, e := range errs {
		k := key{e.Chapter, e.Verse}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}

	ranked := make([]VerseDifficulty, 0, len(order))
	for _, k := range order {
		ranked = append(ranked, VerseDifficulty{
			Chapter:    k.chapter,
			Verse:      k.verse,
			ErrorCount: counts[k],
		})
	}
	slices.SortStableFunc(ranked, func(a, b VerseDifficulty) int {
		return cmp.Compare(b.ErrorCount, a.ErrorCount)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
