package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-autobuy/internal/listing"
	"github.com/iliyamo/ticket-autobuy/internal/model"
)

type staticSource struct {
	batches [][]Message
	err     error
	calls   int
}

func (s *staticSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	if len(s.batches) > 1 {
		s.batches = s.batches[1:]
	}
	return b, nil
}

type recordingProcessor struct {
	processed []string
	fail      map[string]error
}

func (p *recordingProcessor) Process(ctx context.Context, id string, f listing.Fields) (*model.Listing, error) {
	if err := p.fail[id]; err != nil {
		return nil, err
	}
	p.processed = append(p.processed, id)
	return &model.Listing{ID: uint64(len(p.processed)), MessageID: id, Status: model.StatusNew}, nil
}

var start = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func msg(id string, offset time.Duration) Message {
	return Message{
		ID:        id,
		Timestamp: start.Add(offset),
		Embeds:    []Embed{{Fields: []EmbedField{{Name: "Event ID", Value: "E1"}}}},
	}
}

func invalid() error {
	return &listing.ValidationError{Kind: listing.ErrMissingField, Field: listing.FieldFullCheckout}
}

func newTestPoller(src Source, proc Processor, skip bool) *Poller {
	return NewPoller(src, proc, discardLogger(), PollerOptions{StartedAt: start, SkipInvalid: skip, Interval: time.Millisecond})
}

func TestPollOnce_DedupAndStartCutoff(t *testing.T) {
	batch := []Message{msg("old", -time.Second), msg("a", time.Second), msg("a", time.Second), {ID: "", Timestamp: start.Add(time.Minute)}, msg("b", 0)}
	src := &staticSource{batches: [][]Message{batch}}
	proc := &recordingProcessor{}
	p := newTestPoller(src, proc, false)

	res, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, proc.processed)
	assert.Equal(t, BatchResult{Fetched: 5, Skipped: 3, Processed: 2}, res)

	res, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, []string{"a", "b"}, proc.processed)
	assert.False(t, p.Seen("old"))
}

func TestPollOnce_ValidationAbortsBatch(t *testing.T) {
	src := &staticSource{batches: [][]Message{{msg("a", time.Second), msg("bad", time.Second), msg("c", time.Second)}}}
	proc := &recordingProcessor{fail: map[string]error{"bad": invalid()}}
	p := newTestPoller(src, proc, false)

	res, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, []string{"a"}, proc.processed)
	assert.True(t, p.Seen("bad"))
	assert.False(t, p.Seen("c"))

	// c is picked up on the next cycle; bad is not retried.
	_, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, proc.processed)
}

func TestPollOnce_NoEmbedIsValidationFailure(t *testing.T) {
	src := &staticSource{batches: [][]Message{{{ID: "bare", Timestamp: start.Add(time.Second)}, msg("next", time.Second)}}}
	proc := &recordingProcessor{}
	p := newTestPoller(src, proc, false)

	res, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Empty(t, proc.processed)
}

func TestPollOnce_SkipInvalid(t *testing.T) {
	src := &staticSource{batches: [][]Message{{msg("a", time.Second), msg("bad", time.Second), msg("c", time.Second)}}}
	proc := &recordingProcessor{fail: map[string]error{"bad": invalid()}}
	p := newTestPoller(src, proc, true)

	res, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Aborted)
	assert.Equal(t, []string{"a", "c"}, proc.processed)
}

func TestPollOnce_FatalErrorPropagates(t *testing.T) {
	dbDown := errors.New("db down")
	src := &staticSource{batches: [][]Message{{msg("a", time.Second), msg("b", time.Second)}}}
	proc := &recordingProcessor{fail: map[string]error{"a": dbDown}}
	p := newTestPoller(src, proc, true)

	_, err := p.PollOnce(context.Background())
	assert.ErrorIs(t, err, dbDown)
	assert.Empty(t, proc.processed)
}

func TestRun_ContinuesPastUnreachableAndStopsOnCancel(t *testing.T) {
	src := &countingSource{}
	p := newTestPoller(src, &recordingProcessor{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_ReturnsFatalError(t *testing.T) {
	dbDown := errors.New("db down")
	src := &staticSource{batches: [][]Message{{msg("a", time.Second)}}}
	p := newTestPoller(src, &recordingProcessor{fail: map[string]error{"a": dbDown}}, false)
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, dbDown)
}

type countingSource struct{ calls atomic.Int32 }

func (s *countingSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	s.calls.Add(1)
	return nil, ErrProviderUnreachable
}

type cancellingProcessor struct {
	recordingProcessor
	cancel context.CancelFunc
}

func (p *cancellingProcessor) Process(ctx context.Context, id string, f listing.Fields) (*model.Listing, error) {
	l, err := p.recordingProcessor.Process(ctx, id, f)
	p.cancel()
	return l, err
}

func TestPollOnce_CancelStopsBetweenMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &staticSource{batches: [][]Message{{msg("a", time.Second), msg("b", time.Second)}}}
	proc := &cancellingProcessor{cancel: cancel}
	p := newTestPoller(src, proc, false)

	res, err := p.PollOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, proc.processed)
	assert.Equal(t, 1, res.Processed)
	assert.False(t, p.Seen("b"))
}

func TestRun_FatalErrorDuringShutdownIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	boom := errors.New("store listing: disk full")
	src := &staticSource{batches: [][]Message{{msg("a", time.Second)}}}
	proc := &failingCancelProcessor{err: boom, cancel: cancel}
	p := newTestPoller(src, proc, false)

	require.ErrorIs(t, p.Run(ctx), boom)
}

type failingCancelProcessor struct {
	err    error
	cancel context.CancelFunc
}

func (p *failingCancelProcessor) Process(ctx context.Context, id string, f listing.Fields) (*model.Listing, error) {
	p.cancel()
	return nil, p.err
}

func TestNewPoller_NilLoggerFallsBack(t *testing.T) {
	src := &staticSource{batches: [][]Message{{msg("a", time.Second)}}}
	proc := &recordingProcessor{}
	p := NewPoller(src, proc, nil, PollerOptions{StartedAt: start})

	require.NotPanics(t, func() {
		_, err := p.PollOnce(context.Background())
		require.NoError(t, err)
	})
	assert.Equal(t, []string{"a"}, proc.processed)
}
