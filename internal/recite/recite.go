// Package recite drives the recognition pipeline: it routes each audio
// chunk through transcription, normalization, verse matching, word
// alignment and session progress tracking, and assembles the feedback the
// caller sees.
//
// Transcriber calls run under a weighted semaphore (capacity
// [DefaultMaxConcurrent] unless overridden), so at most that many chunks
// are in flight against the ASR backend at once; everything after
// transcription is pure computation on the caller's goroutine. Sessions are
// held live in a [session.Registry] so concurrent chunks for the same
// session serialize on one lock, and snapshots are written to the injected
// [session.Store] every few chunks and at stop.
package recite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hifdhlab/tasmi/internal/align"
	"github.com/hifdhlab/tasmi/internal/corpus"
	"github.com/hifdhlab/tasmi/internal/dataset"
	"github.com/hifdhlab/tasmi/internal/match"
	"github.com/hifdhlab/tasmi/internal/normalize"
	"github.com/hifdhlab/tasmi/internal/observe"
	"github.com/hifdhlab/tasmi/internal/session"
	"github.com/hifdhlab/tasmi/internal/similarity"
	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/audio"
)

const (
	// DefaultMaxConcurrent bounds simultaneous transcriber calls.
	DefaultMaxConcurrent = 3

	// DefaultPersistInterval is how many processed chunks pass between
	// session snapshots written to the store.
	DefaultPersistInterval = 5
)

// ErrNoCorpus is returned by StartSession while no corpus is loaded.
var ErrNoCorpus = errors.New("recite: no corpus loaded")

// Chunk is one piece of recitation audio submitted for recognition.
type Chunk struct {
	SessionID  string
	Audio      []byte
	Format     asr.Format
	SampleRate int

	// DurationSeconds is the chunk's audio duration as reported by the
	// caller. When zero it is derived from the PCM payload.
	DurationSeconds float64
}

// Feedback is the outcome of one processed chunk.
type Feedback struct {
	TranscribedText string `json:"transcribed_text"`

	// Matched reports whether the transcript was located in the corpus.
	// MatchedChapter and MatchedVerse are only meaningful when it is true.
	Matched        bool `json:"matched"`
	MatchedChapter int  `json:"matched_chapter,omitempty"`
	MatchedVerse   int  `json:"matched_verse,omitempty"`

	// Confidence is the combined match score, blended with the reference
	// dataset accuracy when references for the verse exist.
	Confidence float64 `json:"confidence"`

	// VerseCompleted reports that this chunk carried the recitation past
	// the end of a verse.
	VerseCompleted bool `json:"verse_completed,omitempty"`

	Errors   []session.RecitationError `json:"errors,omitempty"`
	Progress session.Progress          `json:"progress"`
}

// Orchestrator runs the chunk pipeline. Construct it with [New]; the zero
// value is not usable.
type Orchestrator struct {
	index       *corpus.Index
	store       session.Store
	transcriber asr.Transcriber
	registry    *session.Registry
	matcher     *match.Matcher
	refs        dataset.Dataset
	metrics     *observe.Metrics
	weights     similarity.Weights
	sem         *semaphore.Weighted

	persistEvery   int
	searchWindow   int
	matchThreshold float64
	language       string
	provider       string
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithDataset enables cross-validation against a reference dataset of
// known-correct recitations.
func WithDataset(ds dataset.Dataset) Option {
	return func(o *Orchestrator) { o.refs = ds }
}

// WithMetrics overrides the default metrics instance. Useful in tests with a
// manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithWeights overrides the default combined-score weights for matching and
// dataset cross-validation.
func WithWeights(w similarity.Weights) Option {
	return func(o *Orchestrator) { o.weights = w }
}

// WithMaxConcurrent sets the transcription concurrency bound. Values below 1
// keep the default.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithPersistInterval sets how many processed chunks pass between session
// snapshots written to the store. Values below 1 keep the default.
func WithPersistInterval(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.persistEvery = n
		}
	}
}

// WithSearchWindow sets the verse radius searched around the cursor before
// the matcher falls back to the full corpus.
func WithSearchWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.searchWindow = n
		}
	}
}

// WithMatchThreshold overrides the combined score a candidate verse must
// exceed to count as a match. Values outside (0,1) keep the default.
func WithMatchThreshold(t float64) Option {
	return func(o *Orchestrator) {
		if t > 0 && t < 1 {
			o.matchThreshold = t
		}
	}
}

// WithLanguage sets the language hint forwarded to the transcriber.
func WithLanguage(lang string) Option {
	return func(o *Orchestrator) { o.language = lang }
}

// WithProviderName labels the transcriber in logs and error metrics.
func WithProviderName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.provider = name
		}
	}
}

// New creates an Orchestrator reading verses from index, persisting session
// snapshots to store, and transcribing audio with transcriber. All three are
// required.
func New(index *corpus.Index, store session.Store, transcriber asr.Transcriber, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		index:        index,
		store:        store,
		transcriber:  transcriber,
		registry:     session.NewRegistry(),
		metrics:      observe.DefaultMetrics(),
		weights:      similarity.DefaultWeights(),
		sem:          semaphore.NewWeighted(DefaultMaxConcurrent),
		persistEvery: DefaultPersistInterval,
		searchWindow: match.DefaultSearchWindow,
		provider:     "unknown",
	}
	for _, opt := range opts {
		opt(o)
	}
	mopts := []match.Option{match.WithWeights(o.weights)}
	if o.matchThreshold > 0 {
		mopts = append(mopts, match.WithAcceptThreshold(o.matchThreshold))
	}
	o.matcher = match.New(index, mopts...)
	return o
}

// ActiveSessions returns the number of live sessions accepting chunks.
func (o *Orchestrator) ActiveSessions() int {
	return o.registry.Len()
}

// StartSession creates and registers a new recitation session positioned at
// the given verse. It fails with [ErrNoCorpus] while no corpus is loaded and
// with [corpus.ErrVerseNotFound] when the starting verse does not exist.
func (o *Orchestrator) StartSession(ctx context.Context, userID string, chapter, verse int, mode string, errorThreshold float64) (*session.Session, error) {
	c := o.index.Corpus()
	if c == nil {
		return nil, ErrNoCorpus
	}
	v, ok := c.Verse(chapter, verse)
	if !ok {
		return nil, fmt.Errorf("recite: start at %d:%d: %w", chapter, verse, corpus.ErrVerseNotFound)
	}

	pos := corpus.Position{Chapter: chapter, Verse: verse}
	sess := session.New(userID, pos, mode, errorThreshold, len(v.NormalizedWords))
	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("recite: save new session: %w", err)
	}
	o.registry.Add(sess)
	o.metrics.ActiveSessions.Add(ctx, 1)

	observe.Logger(ctx).Info("recitation session started",
		"session_id", sess.ID,
		"user_id", userID,
		"position", pos,
		"mode", mode,
	)
	return sess, nil
}

// ProcessChunk runs one audio chunk through the pipeline and returns the
// feedback for it. Transcription failures drop the chunk: the error is
// returned, but the session stays active and accepts the next chunk. A chunk
// racing [Orchestrator.StopSession] is accepted only if it reaches the
// session before the stop; afterwards it fails with [session.ErrClosed].
func (o *Orchestrator) ProcessChunk(ctx context.Context, chunk Chunk) (*Feedback, error) {
	ctx, span := observe.StartSpan(ctx, "recite.process_chunk")
	defer span.End()
	start := time.Now()
	log := observe.Logger(ctx)

	sess, err := o.fetchSession(ctx, chunk.SessionID)
	if err != nil {
		return nil, fmt.Errorf("recite: session %s: %w", chunk.SessionID, err)
	}

	payload, format, rate := chunk.Audio, chunk.Format, chunk.SampleRate
	if format == asr.FormatOpus {
		pcm, err := audio.OpusToPCM16(payload, asr.DefaultSampleRate)
		if err != nil {
			o.metrics.RecordChunk(ctx, "failed")
			return nil, fmt.Errorf("recite: decode opus chunk: %w", err)
		}
		payload, format, rate = pcm, asr.FormatPCM16, asr.DefaultSampleRate
	}
	if rate <= 0 {
		rate = asr.DefaultSampleRate
	}
	duration := chunk.DurationSeconds
	if duration <= 0 && format != asr.FormatWAV {
		duration = audio.Duration(payload, rate, 1).Seconds()
	}

	res, err := o.transcribe(ctx, asr.Request{
		Audio:      payload,
		Format:     format,
		SampleRate: rate,
		Language:   o.language,
	})
	if err != nil {
		log.Error("transcription failed, dropping chunk",
			"session_id", chunk.SessionID, "provider", o.provider, "err", err)
		o.metrics.RecordTranscriberError(ctx, o.provider)
		o.metrics.RecordChunk(ctx, "failed")
		return nil, fmt.Errorf("recite: transcribe: %w", err)
	}

	text := strings.TrimSpace(res.Text)
	words := normalize.Words(text)

	// First session mutation decides the race against Stop: a chunk that
	// reaches the session after Stop is rejected wholesale.
	if err := sess.NoteChunk(duration); err != nil {
		return nil, fmt.Errorf("recite: session %s: %w", chunk.SessionID, err)
	}

	fb := &Feedback{TranscribedText: text}
	if len(words) == 0 {
		o.metrics.RecordChunk(ctx, "silent")
	} else {
		pos := sess.Pos()
		m := o.matcher.FindBestMatch(words, pos, o.searchWindow)
		o.metrics.MatchConfidence.Record(ctx, m.Confidence)
		fb.Confidence = m.Confidence

		if m.IsMatch {
			err = o.applyMatch(ctx, sess, words, m, fb)
		} else {
			err = o.applyMiss(ctx, sess, words, pos, fb)
		}
		if err != nil {
			return nil, err
		}
	}

	snap := sess.Snapshot()
	fb.Progress = snap.Progress
	o.maybePersist(ctx, snap)

	o.metrics.ChunkDuration.Record(ctx, time.Since(start).Seconds())
	log.Debug("chunk processed",
		"session_id", snap.ID,
		"matched", fb.Matched,
		"confidence", fb.Confidence,
		"errors", len(fb.Errors),
		"position", corpus.Position{
			Chapter:   snap.Progress.Chapter,
			Verse:     snap.Progress.Verse,
			WordIndex: snap.Progress.WordIndex,
		},
	)
	return fb, nil
}

// StopSession finalizes the session and returns its average accuracy. A
// second stop fails with [session.ErrClosed].
func (o *Orchestrator) StopSession(ctx context.Context, id string) (float64, error) {
	sess, err := o.fetchSession(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("recite: session %s: %w", id, err)
	}
	accuracy, err := sess.Stop()
	if err != nil {
		return 0, fmt.Errorf("recite: session %s: %w", id, err)
	}
	o.registry.Remove(id)
	o.metrics.ActiveSessions.Add(ctx, -1)

	snap := sess.Snapshot()
	if err := o.store.Save(ctx, sess); err != nil {
		observe.Logger(ctx).Warn("persist stopped session", "session_id", id, "err", err)
	}
	observe.Logger(ctx).Info("recitation session stopped",
		"session_id", id,
		"accuracy", accuracy,
		"chunks", snap.ChunksProcessed,
		"errors", len(snap.Errors),
	)
	return accuracy, nil
}

// fetchSession resolves id to the live session instance. Sessions known only
// to the store, left over from a previous run, are adopted into the registry
// when still active; stopped snapshots are returned as-is so callers observe
// [session.ErrClosed] on mutation.
func (o *Orchestrator) fetchSession(ctx context.Context, id string) (*session.Session, error) {
	if s, err := o.registry.Get(id); err == nil {
		return s, nil
	}
	s, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != session.StateActive {
		return s, nil
	}
	adopted := o.registry.Adopt(s)
	if adopted == s {
		o.metrics.ActiveSessions.Add(ctx, 1)
		observe.Logger(ctx).Info("adopted persisted session", "session_id", id)
	}
	return adopted, nil
}

// transcribe calls the ASR backend under the concurrency bound. Acquire
// blocks until a slot frees or ctx is canceled; the slot is released before
// any of the pure computation that follows.
func (o *Orchestrator) transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire transcription slot: %w", err)
	}
	defer o.sem.Release(1)

	start := time.Now()
	res, err := o.transcriber.Transcribe(ctx, req)
	o.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	return res, err
}

// applyMatch records alignment errors against the matched verse window,
// advances the cursor, and rolls the session over to the next verse when
// this chunk completed one.
func (o *Orchestrator) applyMatch(ctx context.Context, sess *session.Session, words []string, m match.Result, fb *Feedback) error {
	c := o.index.Corpus()
	v, ok := c.Verse(m.Chapter, m.Verse)
	if !ok {
		// The corpus was reloaded mid-chunk and no longer has the verse.
		observe.Logger(ctx).Warn("matched verse missing after reload",
			"session_id", sess.ID, "chapter", m.Chapter, "verse", m.Verse)
		o.metrics.RecordChunk(ctx, "unmatched")
		return nil
	}

	pos := sess.Pos()
	matchedPos := corpus.Position{Chapter: m.Chapter, Verse: m.Verse, WordIndex: m.StartWordIndex}
	if matchedPos.Chapter != pos.Chapter || matchedPos.Verse != pos.Verse {
		observe.Logger(ctx).Info("recitation resumed at a different verse",
			"session_id", sess.ID, "from", pos, "to", matchedPos)
		if err := sess.MoveTo(matchedPos, len(v.NormalizedWords)); err != nil {
			return fmt.Errorf("recite: session %s: %w", sess.ID, err)
		}
	}

	window := m.ExpectedWords[:m.MatchLength]
	errs, correct := align.AlignWords(words, window, matchedPos)
	if err := sess.NoteWords(len(words), correct); err != nil {
		return fmt.Errorf("recite: session %s: %w", sess.ID, err)
	}
	if len(errs) > 0 {
		if err := sess.RecordErrors(errs); err != nil {
			return fmt.Errorf("recite: session %s: %w", sess.ID, err)
		}
		for _, e := range errs {
			o.metrics.RecordRecitationError(ctx, string(e.Type))
		}
	}

	verseDone, err := sess.Advance(m.MatchLength, len(v.NormalizedWords))
	if err != nil {
		return fmt.Errorf("recite: session %s: %w", sess.ID, err)
	}
	if verseDone {
		fb.VerseCompleted = true
		o.metrics.VersesCompleted.Add(ctx, 1)
		if err := o.rollover(ctx, sess, v); err != nil {
			return err
		}
	}

	fb.Matched = true
	fb.MatchedChapter = m.Chapter
	fb.MatchedVerse = m.Verse
	fb.Errors = errs
	if acc, ok := o.datasetAccuracy(ctx, words, m.Chapter, m.Verse); ok {
		fb.Confidence = (m.Confidence + acc) / 2
	}
	o.metrics.RecordChunk(ctx, "matched")
	return nil
}

// rollover moves the cursor to the verse after v, or latches the session
// complete when v was the final loaded verse.
func (o *Orchestrator) rollover(ctx context.Context, sess *session.Session, v *corpus.Verse) error {
	c := o.index.Corpus()
	next, done := c.NextPosition(v)
	if done {
		if err := sess.MarkComplete(); err != nil {
			return fmt.Errorf("recite: session %s: %w", sess.ID, err)
		}
		observe.Logger(ctx).Info("recitation reached the final loaded verse", "session_id", sess.ID)
		return nil
	}
	nv, ok := c.Verse(next.Chapter, next.Verse)
	if !ok {
		return nil
	}
	if err := sess.MoveTo(next, len(nv.NormalizedWords)); err != nil {
		return fmt.Errorf("recite: session %s: %w", sess.ID, err)
	}
	return nil
}

// applyMiss handles a transcript that matched nothing near the cursor. A
// corpus-wide fuzzy hit means the speaker is probably reciting a different
// passage: a sequence error with a suggestion is recorded and the cursor
// stays put.
func (o *Orchestrator) applyMiss(ctx context.Context, sess *session.Session, words []string, pos corpus.Position, fb *Feedback) error {
	defer o.metrics.RecordChunk(ctx, "unmatched")

	v, ratio, found := o.matcher.SearchEverywhere(words)
	if !found {
		return nil
	}

	seqErr := session.RecitationError{
		Type:       session.ErrorSequence,
		Chapter:    pos.Chapter,
		Verse:      pos.Verse,
		WordIndex:  pos.WordIndex,
		HeardWord:  strings.Join(words, " "),
		Confidence: ratio,
		Suggestion: fmt.Sprintf("expected %d:%d but the recitation matches %d:%d",
			pos.Chapter, pos.Verse, v.ChapterNumber, v.VerseNumber),
	}
	if err := sess.RecordErrors([]session.RecitationError{seqErr}); err != nil {
		return fmt.Errorf("recite: session %s: %w", sess.ID, err)
	}
	o.metrics.RecordRecitationError(ctx, string(session.ErrorSequence))
	fb.Errors = []session.RecitationError{seqErr}
	return nil
}

// datasetAccuracy scores the transcript against every reference recitation
// of the verse, in parallel, and returns the best score. ok is false when no
// dataset is configured, the verse has no references, or the lookup failed.
func (o *Orchestrator) datasetAccuracy(ctx context.Context, words []string, chapter, verse int) (acc float64, ok bool) {
	if o.refs == nil {
		return 0, false
	}
	refs, err := o.refs.VerseReferences(ctx, chapter, verse)
	if err != nil {
		observe.Logger(ctx).Warn("reference dataset lookup failed",
			"chapter", chapter, "verse", verse, "err", err)
		return 0, false
	}
	if len(refs) == 0 {
		return 0, false
	}

	scores := make([]float64, len(refs))
	var eg errgroup.Group
	for i, ref := range refs {
		eg.Go(func() error {
			scores[i] = o.weights.Combined(words, strings.Fields(ref.NormalizedText))
			return nil
		})
	}
	_ = eg.Wait()

	best := scores[0]
	for _, s := range scores[1:] {
		best = max(best, s)
	}
	return best, true
}

// maybePersist writes the snapshot to the store on every persistEvery-th
// processed chunk. Persistence failures are logged, not propagated, so a
// flaky store cannot fail chunk processing.
func (o *Orchestrator) maybePersist(ctx context.Context, snap *session.Session) {
	if snap.ChunksProcessed == 0 || snap.ChunksProcessed%o.persistEvery != 0 {
		return
	}
	if err := o.store.Save(ctx, snap); err != nil {
		observe.Logger(ctx).Warn("persist session snapshot",
			"session_id", snap.ID, "chunks", snap.ChunksProcessed, "err", err)
	}
}
