package schedjobs

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebouncer_TrailingEdgeCoalesces(t *testing.T) {
	d := NewDebouncer("autosave", nil)
	require.NoError(t, d.Start())
	defer d.Stop()

	var runs atomic.Int32
	finished := make(chan error, 1)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Schedule(&DebouncedJob{
			ID:         "textarea",
			Wait:       40 * time.Millisecond,
			Task:       func() error { runs.Add(1); return nil },
			OnFinished: func(err error) { finished <- err },
		}))
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer("autosave", nil)
	require.NoError(t, d.Start())

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)
	d.OnJobFinished = func(job *DebouncedJob, err error) {
		mu.Lock()
		got = append(got, job.ID)
		mu.Unlock()
		wg.Done()
	}
	noop := func() error { return nil }
	require.NoError(t, d.Schedule(&DebouncedJob{ID: "change", Wait: 10 * time.Millisecond, Task: noop}))
	require.NoError(t, d.Schedule(&DebouncedJob{ID: "signature", Wait: 30 * time.Millisecond, Task: noop}))
	wg.Wait()
	d.Stop()

	assert.Equal(t, []string{"change", "signature"}, got)
}

func TestDebouncer_StopFlushesPending(t *testing.T) {
	d := NewDebouncer("autosave", nil)
	require.NoError(t, d.Start())

	var ran atomic.Bool
	require.NoError(t, d.Schedule(&DebouncedJob{
		ID:   "textarea",
		Wait: time.Hour,
		Task: func() error { ran.Store(true); return nil },
	}))
	d.Stop()
	assert.True(t, ran.Load())

	select {
	case err := <-d.Done():
		assert.NoError(t, err)
	default:
		t.Fatal("Done not signalled")
	}
	assert.ErrorIs(t, d.Schedule(&DebouncedJob{ID: "x", Task: func() error { return nil }}), ErrStopped)
	d.Stop() // second stop is a no-op
}

func TestDebouncer_RecoversPanics(t *testing.T) {
	d := NewDebouncer("autosave", nil)
	require.NoError(t, d.Start())
	defer d.Stop()

	finished := make(chan error, 1)
	require.NoError(t, d.Schedule(&DebouncedJob{
		ID:         "boom",
		Wait:       time.Millisecond,
		Task:       func() error { panic("kaput") },
		OnFinished: func(err error) { finished <- err; panic("again") },
	}))
	select {
	case err := <-finished:
		var pe *PanicError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "kaput", pe.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("job never finished")
	}
}
