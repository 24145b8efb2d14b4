package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/car-rating/internal/kafka"
	"github.com/jmehdipour/car-rating/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (f *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	for {
		f.mu.Lock()
		if len(f.queue) > 0 {
			m := f.queue[0]
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return m, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeSource) commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeSink struct {
	mu    sync.Mutex
	rows  []model.RateEvent
	err   error
	calls int
}

func (f *fakeSink) InsertBatch(_ context.Context, events []model.RateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, events...)
	return nil
}

func (f *fakeSink) DailyByCar(context.Context, int64, int) ([]model.DailyRates, error) {
	return nil, nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func rateMsg(t *testing.T, offset int64, ev model.RateEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestProjector_FlushInsertsThenCommits(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	p := NewProjector(src, sink)

	p.pending = []kafka.Message{
		rateMsg(t, 1, model.RateEvent{ID: "a", RateID: 1, CarID: 7, Rate: 5}),
		rateMsg(t, 2, model.RateEvent{ID: "b", RateID: 2, CarID: 7, Rate: 3}),
	}

	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, 2, src.commits())
	assert.Zero(t, p.Pending())
}

func TestProjector_PoisonMessageSkippedButCommitted(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{}
	p := NewProjector(src, sink)

	p.pending = []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: []byte(`{"rate_id":9}`)}, // no event id
		rateMsg(t, 3, model.RateEvent{ID: "c", RateID: 3, CarID: 1, Rate: 0}),
	}

	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "c", sink.rows[0].ID)
	assert.Equal(t, 3, src.commits())
}

func TestProjector_InsertFailureKeepsBatch(t *testing.T) {
	src := &fakeSource{}
	sink := &fakeSink{err: errors.New("clickhouse down")}
	p := NewProjector(src, sink)
	p.pending = []kafka.Message{rateMsg(t, 1, model.RateEvent{ID: "a", CarID: 1, Rate: 4})}

	require.Error(t, p.Flush(context.Background()))
	assert.Equal(t, 1, p.Pending())
	assert.Zero(t, src.commits())

	sink.err = nil
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, src.commits())
}

func TestProjector_RunFlushesBySize(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 4; i++ {
		src.queue = append(src.queue, rateMsg(t, int64(i), model.RateEvent{ID: string(rune('a' + i)), CarID: 2, Rate: 2}))
	}
	sink := &fakeSink{}
	p := NewProjector(src, sink)
	p.BatchSize = 2
	p.BatchWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 4 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 4, src.commits())
}

func TestProjector_RunFlushesOnTick(t *testing.T) {
	src := &fakeSource{queue: []kafka.Message{rateMsg(t, 1, model.RateEvent{ID: "z", CarID: 3, Rate: 1})}}
	sink := &fakeSink{}
	p := NewProjector(src, sink)
	p.BatchSize = 100
	p.BatchWait = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, src.commits())
}

func TestProjector_RequiresSourceAndSink(t *testing.T) {
	p := &Projector{}
	require.Error(t, p.Run(context.Background()))
}
