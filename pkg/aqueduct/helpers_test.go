package aqueduct

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSink records every pushed batch and hands out queued changes on Pull.
type fakeSink struct {
	mu      sync.Mutex
	batches []*Batch
	pushErr error
	pullErr error
	pending Changes
}

func (f *fakeSink) Push(ctx context.Context, b *Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeSink) Pull(ctx context.Context) (*Changes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	c := f.pending
	f.pending = Changes{}
	return &c, nil
}

func (f *fakeSink) setPushErr(err error) {
	f.mu.Lock()
	f.pushErr = err
	f.mu.Unlock()
}

func (f *fakeSink) queueEdit(name, raw string) {
	f.mu.Lock()
	f.pending.Edits = append(f.pending.Edits, SetpointEdit{Name: name, Value: []byte(raw)})
	f.mu.Unlock()
}

func (f *fakeSink) queueResolution(id, raw string) {
	f.mu.Lock()
	f.pending.Resolutions = append(f.pending.Resolutions, Resolution{QueryID: id, Value: []byte(raw)})
	f.mu.Unlock()
}

func (f *fakeSink) pushed() []*Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Batch(nil), f.batches...)
}

// records returns every pushed state of the named record, in push order.
func (f *fakeSink) records(class RecordClass, name string) []RecordState {
	var out []RecordState
	for _, b := range f.pushed() {
		for _, st := range b.Records {
			if st.Class == class && st.Name == name {
				out = append(out, st)
			}
		}
	}
	return out
}

// samples returns every pushed sample of the named recordable, in push order.
func (f *fakeSink) samples(name string) []Sample {
	var out []Sample
	for _, b := range f.pushed() {
		for _, sb := range b.Samples {
			if sb.Name == name {
				out = append(out, sb.Samples...)
			}
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type tickRecorder struct {
	mu    sync.Mutex
	ticks []TickStats
}

func (r *tickRecorder) ObserveTick(st TickStats) {
	r.mu.Lock()
	r.ticks = append(r.ticks, st)
	r.mu.Unlock()
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

// newTestSession builds a quiet session for user "1". Unset options keep
// their defaults.
func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.UserID == "" {
		opts.UserID = "1"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	s, err := NewSession(opts)
	require.NoError(t, err)
	return s
}
