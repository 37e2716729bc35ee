package framework

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDispatch(t *testing.T) {
	l := NewLoop()
	var order []string
	record := func(name string) Controller {
		return ControlFunc(func(ctx ControlContext) error {
			require.Equal(t, name, ctx.Name())
			order = append(order, name)
			return nil
		})
	}
	require.NoError(t, l.AddVector("fast", 1, record("fast")))
	require.NoError(t, l.AddVector("slow", 10, record("slow")))
	require.NoError(t, l.AddVector("mid", 5, record("mid")))

	for i := 0; i < 10; i++ {
		l.Dispatch(context.Background())
	}
	require.EqualValues(t, 10, l.Tick())
	require.Equal(t, time.Millisecond, l.Elapsed())

	counts := make(map[string]int)
	for _, name := range order {
		counts[name]++
	}
	require.Equal(t, map[string]int{"fast": 10, "mid": 2, "slow": 1}, counts)
	// registration order within one tick
	require.Equal(t, []string{"fast", "slow", "mid"}, order[len(order)-3:])
}

func TestVectorTableFull(t *testing.T) {
	l := NewLoop()
	for i := 0; i < MaxVectors; i++ {
		require.NoError(t, l.AddVector("v", 1, HandlerFunc(func() {})))
	}
	require.ErrorIs(t, l.AddVector("overflow", 1, HandlerFunc(func() {})), ErrVectorTableFull)
	require.Len(t, l.Vectors(), MaxVectors)
}

func TestVectorErrors(t *testing.T) {
	l := NewLoop()
	require.NoError(t, l.AddVector("failing", 2, ControlFunc(func(ControlContext) error {
		return errors.New("failed")
	})))
	for i := 0; i < 6; i++ {
		l.Dispatch(context.Background())
	}
	infos := l.Vectors()
	require.Len(t, infos, 1)
	require.Equal(t, VectorInfo{Name: "failing", Every: 2, Errors: 3}, infos[0])
}

func TestRun(t *testing.T) {
	ticks := make(ChanTicks)
	l := NewLoop()
	l.Ticks = ticks

	var dispatched, idle atomic.Int32
	require.NoError(t, l.AddVector("tick", 1, HandlerFunc(func() { dispatched.Add(1) })))
	l.AddIdle(HandlerFunc(func() { idle.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	for i := 0; i < 5; i++ {
		ticks <- time.Now()
	}
	require.Eventually(t, func() bool { return idle.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.EqualValues(t, 5, dispatched.Load())
}

func TestRunTicksClosed(t *testing.T) {
	ticks := make(ChanTicks)
	l := NewLoop()
	l.Ticks = ticks
	close(ticks)
	require.NoError(t, l.Run(context.Background()))
}

func TestRunnerReportsFailures(t *testing.T) {
	errPort := errors.New("port closed")
	testCases := []struct {
		name     string
		runners  []Runnable
		failed   []string
		expected string
	}{
		{
			name: "all ok",
			runners: []Runnable{
				NamedRun("ok", RunnableFunc(func(context.Context) error { return nil })),
				RunnableFunc(func(context.Context) error { return context.Canceled }),
			},
		},
		{
			name: "named failure",
			runners: []Runnable{
				NamedRun("ok", RunnableFunc(func(context.Context) error { return nil })),
				NamedRun("port", RunnableFunc(func(context.Context) error { return errPort })),
			},
			failed:   []string{"port"},
			expected: "port: port closed",
		},
		{
			name: "unnamed failure is numbered",
			runners: []Runnable{
				NamedRun("ok", RunnableFunc(func(context.Context) error { return nil })),
				RunnableFunc(func(context.Context) error { return errPort }),
			},
			failed:   []string{"#1"},
			expected: "#1: port closed",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRunner().Go(tc.runners...)
			require.Len(t, r.Names(), len(tc.runners))
			err := r.Wait()
			if tc.failed == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errPort)
			require.Equal(t, tc.failed, FailedRunnables(err))
			require.Equal(t, tc.expected, err.Error())
		})
	}
}

func TestRunnerCombinesFailures(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner().Go(
		NamedRun("link", RunnableFunc(func(context.Context) error { return errors.New("a") })),
		NamedRun("poll", RunnableFunc(func(context.Context) error {
			<-release
			return errors.New("b")
		})),
	)
	// let link stop first
	time.Sleep(10 * time.Millisecond)
	close(release)
	err := r.Wait()
	require.Equal(t, []string{"link", "poll"}, FailedRunnables(err))
	require.Len(t, multierr.Errors(err), 2)
	var re *RunnableError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "link", re.Name)
}

type failingVector struct{ err error }

func (v *failingVector) Control(ControlContext) error { return nil }
func (v *failingVector) Run(context.Context) error    { return v.err }

func TestRunReportsVectorName(t *testing.T) {
	errADC := errors.New("adc gone")
	l := NewLoop()
	l.Ticks = make(ChanTicks)
	require.NoError(t, l.AddVector("adc", 1, &failingVector{err: errADC}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	err := <-errCh
	require.ErrorIs(t, err, errADC)
	require.Equal(t, []string{"adc"}, FailedRunnables(err))
}
