// Package mock provides a scriptable asr.Transcriber for tests.
package mock

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/hifdhlab/tasmi/pkg/asr"
)

// TranscribeCall records the request of one Transcribe invocation. The audio
// payload is a copy.
type TranscribeCall struct {
	Req asr.Request
}

// Transcriber is a test double for asr.Transcriber. Configure the exported
// fields before use; they must not be changed while calls are in flight.
//
// Calls consume Results in order, repeating the last entry once the script
// runs out. A nil Results script yields empty results.
type Transcriber struct {
	// Results are returned by successive Transcribe calls.
	Results []*asr.Result

	// Err, when set, is returned by every Transcribe call.
	Err error

	// Delay, when positive, is slept before each call returns. Useful for
	// exercising concurrency limits.
	Delay time.Duration

	// TranscribeFunc, when set, replaces the scripted behavior entirely.
	TranscribeFunc func(ctx context.Context, req asr.Request) (*asr.Result, error)

	mu    sync.Mutex
	calls []TranscribeCall
	next  int
}

var _ asr.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and replays the configured script.
func (t *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	recorded := req
	recorded.Audio = bytes.Clone(req.Audio)

	t.mu.Lock()
	t.calls = append(t.calls, TranscribeCall{Req: recorded})
	idx := t.next
	if t.next < len(t.Results)-1 {
		t.next++
	}
	t.mu.Unlock()

	if t.TranscribeFunc != nil {
		return t.TranscribeFunc(ctx, req)
	}
	if t.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(t.Delay):
		}
	}
	if t.Err != nil {
		return nil, t.Err
	}
	if len(t.Results) == 0 {
		return &asr.Result{}, nil
	}
	res := t.Results[idx]
	if res == nil {
		return &asr.Result{}, nil
	}
	copied := *res
	return &copied, nil
}

// Calls returns a copy of all recorded calls.
func (t *Transcriber) Calls() []TranscribeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscribeCall, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallCount returns the number of Transcribe invocations so far.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// Reset clears recorded calls and rewinds the result script.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
	t.next = 0
}
