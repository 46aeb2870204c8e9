package jobmgr

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStartAsync_DuplicateNameRejected(t *testing.T) {
	m := New(zerolog.Nop())
	release := make(chan struct{})

	err := m.StartAsync(context.Background(), "once", func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	err = m.StartAsync(context.Background(), "once", func(ctx context.Context) error { return nil })
	require.Error(t, err)

	close(release)
}

func TestStartPeriodic_SurvivesPanicAndError(t *testing.T) {
	m := New(zerolog.Nop())
	var ticks atomic.Int32

	err := m.StartPeriodic(context.Background(), "flaky", 10*time.Millisecond, func(ctx context.Context) error {
		n := ticks.Add(1)
		switch n {
		case 1:
			panic("boom")
		case 2:
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond,
		"job should keep ticking after a panic and an error")

	require.NoError(t, m.Stop("flaky"))
}

func TestStop_UnknownJob(t *testing.T) {
	m := New(zerolog.Nop())
	require.Error(t, m.Stop("ghost"))
}

func TestList_SortedNames(t *testing.T) {
	m := New(zerolog.Nop())
	release := make(chan struct{})
	defer close(release)

	for _, name := range []string{"b-job", "a-job"} {
		require.NoError(t, m.StartAsync(context.Background(), name, func(ctx context.Context) error {
			<-release
			return nil
		}))
	}
	require.Equal(t, []string{"a-job", "b-job"}, m.List())
}

func TestStopAll_CancelsContexts(t *testing.T) {
	m := New(zerolog.Nop())
	stopped := make(chan struct{})

	require.NoError(t, m.StartAsync(context.Background(), "waiter", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}))

	m.StopAll()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job context was not canceled")
	}
}
