package aqueduct

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetpointUpdate(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, Options{Now: clock.Now})

	t.Run("same kind replaces value and timestamp", func(t *testing.T) {
		sp, err := s.Setpoint("flow_rate", 2.5, KindFloat)
		require.NoError(t, err)
		created := sp.Timestamp()

		clock.Advance(time.Second)
		require.NoError(t, sp.Update(3.5))

		assert.Equal(t, 3.5, sp.Get().Interface())
		assert.Equal(t, created.Add(time.Second), sp.Timestamp())
		assert.Equal(t, uint64(2), sp.Snapshot().Version)
	})

	t.Run("int is widened into float setpoint", func(t *testing.T) {
		sp, err := s.Setpoint("temperature", 20.0, KindFloat)
		require.NoError(t, err)

		require.NoError(t, sp.Update(25))
		f, ok := sp.Get().Float()
		assert.True(t, ok)
		assert.Equal(t, 25.0, f)
		assert.Equal(t, KindFloat, sp.Kind())
	})

	t.Run("different kind is rejected", func(t *testing.T) {
		sp, err := s.Setpoint("mode", "auto", KindString)
		require.NoError(t, err)

		err = sp.Update(3)
		assert.ErrorIs(t, err, ErrInvalidValueType)
		assert.Equal(t, "auto", sp.Get().Interface())
		assert.Equal(t, uint64(1), sp.Snapshot().Version)
	})

	t.Run("float is not narrowed into int setpoint", func(t *testing.T) {
		sp, err := s.Setpoint("cycles", 3, KindInt)
		require.NoError(t, err)
		assert.ErrorIs(t, sp.Update(3.5), ErrInvalidValueType)
	})
}

func TestRecordTimestampsNeverDecrease(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, Options{Now: clock.Now})

	rc, err := s.Recordable("pressure", 1.0, KindFloat)
	require.NoError(t, err)
	first := rc.Timestamp()

	clock.Advance(-time.Minute)
	require.NoError(t, rc.Update(2.0))

	assert.Equal(t, first, rc.Timestamp())
	assert.Equal(t, uint64(2), rc.Snapshot().Version)
}

func TestSetpointChangeCallback(t *testing.T) {
	s := newTestSession(t, Options{})
	sp, err := s.Setpoint("volume", 10, KindInt)
	require.NoError(t, err)

	var calls []Value
	sp.OnChange(func(got *Setpoint, previous Value) {
		assert.Same(t, sp, got)
		calls = append(calls, previous)
	})

	t.Run("recipe update does not fire", func(t *testing.T) {
		require.NoError(t, sp.Update(11))
		assert.Empty(t, calls)
	})

	t.Run("hub edit fires with previous value", func(t *testing.T) {
		require.NoError(t, sp.applyEdit([]byte("12")))
		require.Len(t, calls, 1)
		assert.Equal(t, 11, calls[0].Interface())
		assert.Equal(t, int64(12), sp.Get().Interface())
	})

	t.Run("edit of the wrong kind is rejected", func(t *testing.T) {
		err := sp.applyEdit([]byte(`"twelve"`))
		assert.ErrorIs(t, err, ErrInvalidValueType)
		assert.Len(t, calls, 1)
	})

	t.Run("nil clears the callback", func(t *testing.T) {
		sp.OnChange(nil)
		require.NoError(t, sp.applyEdit([]byte("13")))
		assert.Len(t, calls, 1)
	})
}

func TestRecordableSamples(t *testing.T) {
	t.Run("keeps every update in order", func(t *testing.T) {
		s := newTestSession(t, Options{})
		rc, err := s.Recordable("ph", 7.0, KindFloat)
		require.NoError(t, err)

		for _, v := range []float64{7.1, 7.2, 7.3} {
			require.NoError(t, rc.Update(v))
		}

		samples, dropped := rc.drainSamples()
		assert.Zero(t, dropped)
		require.Len(t, samples, 4)
		for i, smp := range samples {
			assert.Equal(t, uint64(i+1), smp.Version)
		}
		assert.Equal(t, 7.3, samples[3].Value.Interface())

		again, _ := rc.drainSamples()
		assert.Empty(t, again)
	})

	t.Run("bounded buffer drops oldest", func(t *testing.T) {
		s := newTestSession(t, Options{SampleBuffer: 3})
		rc, err := s.Recordable("count", 0, KindInt)
		require.NoError(t, err)

		for i := 1; i <= 5; i++ {
			require.NoError(t, rc.Update(i))
		}

		samples, dropped := rc.drainSamples()
		assert.Equal(t, 3, dropped)
		require.Len(t, samples, 3)
		assert.Equal(t, 3, samples[0].Value.Interface())
		assert.Equal(t, 5, samples[2].Value.Interface())
	})

	t.Run("requeued samples go ahead of newer ones", func(t *testing.T) {
		s := newTestSession(t, Options{})
		rc, err := s.Recordable("level", 0, KindInt)
		require.NoError(t, err)

		old, _ := rc.drainSamples()
		require.NoError(t, rc.Update(1))
		rc.requeueSamples(old)

		samples, _ := rc.drainSamples()
		require.Len(t, samples, 2)
		assert.Equal(t, 0, samples[0].Value.Interface())
		assert.Equal(t, 1, samples[1].Value.Interface())
	})
}

func TestRecordConcurrentUpdates(t *testing.T) {
	s := newTestSession(t, Options{})
	rc, err := s.Recordable("weight", 0, KindInt)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = rc.Update(i)
				st := rc.Snapshot()
				assert.Equal(t, KindInt, st.Value.Kind())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(201), rc.Snapshot().Version)
	samples, _ := rc.drainSamples()
	assert.Len(t, samples, 201)
}

func TestDispose(t *testing.T) {
	s := newTestSession(t, Options{})

	t.Run("removes from session", func(t *testing.T) {
		sp, err := s.Setpoint("a", 1, KindInt)
		require.NoError(t, err)

		sp.Dispose()
		_, ok := s.LookupSetpoint("a")
		assert.False(t, ok)
	})

	t.Run("twice is a no-op", func(t *testing.T) {
		rc, err := s.Recordable("b", 1, KindInt)
		require.NoError(t, err)

		rc.Dispose()
		assert.NotPanics(t, rc.Dispose)
	})

	t.Run("does not remove a replacement", func(t *testing.T) {
		first, err := s.Setpoint("c", 1, KindInt)
		require.NoError(t, err)
		second, err := s.Setpoint("c", 2, KindInt)
		require.NoError(t, err)

		first.Dispose()
		got, ok := s.LookupSetpoint("c")
		require.True(t, ok)
		assert.Same(t, second, got)
	})
}
