package throttle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sys/unix"
)

//go:generate mockgen -destination mock_signaler_test.go -package throttle -write_package_comment=false github.com/psantana5/slowdown/internal/throttle Signaler

const testPID = 4242

// seqSource replays draws in order, wrapping around.
type seqSource struct {
	draws []uint64
	i     int
}

func (s *seqSource) Uint64N(n uint64) uint64 {
	d := s.draws[s.i%len(s.draws)] % n
	s.i++
	return d
}

const (
	drawPause = 0             // below every non-zero threshold
	drawRun   = DrawRange - 1 // at or above every threshold except 100%
)

// countingSignaler records every signal and can fail on demand.
type countingSignaler struct {
	stops, conts int
	err          error
}

func (s *countingSignaler) Signal(pid int, sig unix.Signal) error {
	if s.err != nil {
		return s.err
	}
	switch sig {
	case unix.SIGCONT:
		s.conts++
	default:
		s.stops++
	}
	return nil
}

type tallyRecorder struct {
	ticks, pausedTicks int
	sent, failed       map[string]int
}

func newTallyRecorder() *tallyRecorder {
	return &tallyRecorder{sent: map[string]int{}, failed: map[string]int{}}
}

func (r *tallyRecorder) RecordTick(paused bool) {
	r.ticks++
	if paused {
		r.pausedTicks++
	}
}

func (r *tallyRecorder) RecordSignal(action string, err error) {
	if err != nil {
		r.failed[action]++
		return
	}
	r.sent[action]++
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		pid     int
		percent int
	}{
		{"zero pid", 0, 50},
		{"negative pid", -7, 50},
		{"negative percent", testPID, -5},
		{"percent above 100", testPID, 101},
		{"percent 150", testPID, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.pid, tt.percent)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, IsType(err, InvalidArgument), "got %v", err)
		})
	}
}

func TestNewStartsRunning(t *testing.T) {
	c, err := New(testPID, 30)
	require.NoError(t, err)

	assert.False(t, c.Paused())
	assert.False(t, c.Terminated())
	assert.Equal(t, testPID, c.PID())
	assert.Equal(t, 30, c.PausePercent())
	assert.Equal(t, Threshold(30), c.Threshold())
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, uint64(0), Threshold(0))
	assert.Equal(t, DrawRange/2, Threshold(50))
	assert.Equal(t, DrawRange, Threshold(100))
	assert.Equal(t, DrawRange/100, Threshold(1))
}

func TestPauseFractionConverges(t *testing.T) {
	const ticks = 100_000

	for _, percent := range []int{0, 1, 10, 25, 50, 75, 90, 99, 100} {
		sig := &countingSignaler{}
		rec := newTallyRecorder()
		c, err := New(testPID, percent,
			WithSignaler(sig),
			WithRecorder(rec),
			WithSeed(uint64(percent)+1))
		require.NoError(t, err)

		for i := 0; i < ticks; i++ {
			c.Tick()
		}

		got := float64(rec.pausedTicks) / float64(rec.ticks)
		want := float64(percent) / 100
		assert.InDelta(t, want, got, 0.01, "pause percent %d", percent)
		assert.Equal(t, ticks, rec.ticks)
		// Signals alternate, so stops and continues differ by at most one.
		assert.LessOrEqual(t, sig.stops-sig.conts, 1)
		assert.GreaterOrEqual(t, sig.stops-sig.conts, 0)
	}
}

func TestZeroPercentNeverStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	sig := NewMockSignaler(ctrl)
	// No expectations: any Signal call fails the test.

	c, err := New(testPID, 0, WithSignaler(sig), WithSeed(99))
	require.NoError(t, err)

	for i := 0; i < 10_000; i++ {
		c.Tick()
	}
	assert.False(t, c.Paused())
	assert.NoError(t, c.Terminate())
}

func TestHundredPercentStopsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sig := NewMockSignaler(ctrl)

	gomock.InOrder(
		sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(nil).Times(1),
		sig.EXPECT().Signal(testPID, unix.SIGCONT).Return(nil).Times(1),
	)

	c, err := New(testPID, 100, WithSignaler(sig), WithSeed(7))
	require.NoError(t, err)

	for i := 0; i < 10_000; i++ {
		c.Tick()
		require.True(t, c.Paused())
	}

	require.NoError(t, c.Terminate())
	assert.False(t, c.Paused())
}

func TestStopSignalOption(t *testing.T) {
	ctrl := gomock.NewController(t)
	sig := NewMockSignaler(ctrl)
	sig.EXPECT().Signal(testPID, unix.SIGTSTP).Return(nil)

	c, err := New(testPID, 100, WithSignaler(sig), WithStopSignal(unix.SIGTSTP))
	require.NoError(t, err)

	c.Tick()
	c.Tick()
	assert.True(t, c.Paused())
}

func TestMatchingTicksSendNothing(t *testing.T) {
	t.Run("paused stays paused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sig := NewMockSignaler(ctrl)
		sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(nil).Times(1)

		src := &seqSource{draws: []uint64{drawPause}}
		c, err := New(testPID, 50, WithSignaler(sig), WithSource(src))
		require.NoError(t, err)

		for i := 0; i < 500; i++ {
			c.Tick()
		}
		assert.True(t, c.Paused())
	})

	t.Run("running stays running", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sig := NewMockSignaler(ctrl)

		src := &seqSource{draws: []uint64{drawRun}}
		c, err := New(testPID, 50, WithSignaler(sig), WithSource(src))
		require.NoError(t, err)

		for i := 0; i < 500; i++ {
			c.Tick()
		}
		assert.False(t, c.Paused())
	})
}

func TestTransitionsFollowDraws(t *testing.T) {
	sig := &countingSignaler{}
	src := &seqSource{draws: []uint64{drawPause, drawPause, drawRun, drawPause, drawRun, drawRun}}
	c, err := New(testPID, 50, WithSignaler(sig), WithSource(src))
	require.NoError(t, err)

	want := []bool{true, true, false, true, false, false}
	for i, w := range want {
		c.Tick()
		assert.Equal(t, w, c.Paused(), "tick %d", i)
	}
	assert.Equal(t, 2, sig.stops)
	assert.Equal(t, 2, sig.conts)
}

func TestFailedStopStaysRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	sig := NewMockSignaler(ctrl)
	rec := newTallyRecorder()

	gomock.InOrder(
		sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(unix.ESRCH).Times(3),
		sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(nil).Times(1),
	)

	c, err := New(testPID, 100, WithSignaler(sig), WithRecorder(rec))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.Tick()
		assert.False(t, c.Paused(), "tick %d", i)
	}
	c.Tick()
	assert.True(t, c.Paused())
	c.Tick()

	assert.Equal(t, 3, rec.failed[ActionStop])
	assert.Equal(t, 1, rec.sent[ActionStop])
	assert.Equal(t, 5, rec.ticks)
	assert.Equal(t, 2, rec.pausedTicks)
}

func TestFailedContinueStaysPaused(t *testing.T) {
	ctrl := gomock.NewController(t)
	sig := NewMockSignaler(ctrl)

	gomock.InOrder(
		sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(nil),
		sig.EXPECT().Signal(testPID, unix.SIGCONT).Return(unix.EPERM),
		sig.EXPECT().Signal(testPID, unix.SIGCONT).Return(nil),
	)

	src := &seqSource{draws: []uint64{drawPause, drawRun, drawRun, drawRun}}
	c, err := New(testPID, 50, WithSignaler(sig), WithSource(src))
	require.NoError(t, err)

	c.Tick()
	assert.True(t, c.Paused())
	c.Tick()
	assert.True(t, c.Paused(), "failed continue must keep the paused belief")
	c.Tick()
	assert.False(t, c.Paused())
	c.Tick()
	assert.False(t, c.Paused())
}

func TestTerminate(t *testing.T) {
	tests := []struct {
		name      string
		draws     []uint64
		resumeErr error
		wantCont  bool
		wantErr   bool
	}{
		{"running sends nothing", []uint64{drawRun}, nil, false, false},
		{"paused resumes", []uint64{drawPause}, nil, true, false},
		{"paused resume fails", []uint64{drawPause}, unix.ESRCH, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sig := NewMockSignaler(ctrl)
			sig.EXPECT().Signal(testPID, unix.SIGSTOP).Return(nil).AnyTimes()
			if tt.wantCont {
				sig.EXPECT().Signal(testPID, unix.SIGCONT).Return(tt.resumeErr).Times(1)
			}

			c, err := New(testPID, 50, WithSignaler(sig), WithSource(&seqSource{draws: tt.draws}))
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				c.Tick()
			}

			err = c.Terminate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, SignalDeliveryFailure))
				assert.True(t, errors.Is(err, tt.resumeErr))
			} else {
				require.NoError(t, err)
			}
			assert.True(t, c.Terminated())

			// Second call and later ticks must not signal again.
			assert.NoError(t, c.Terminate())
			c.Tick()
		})
	}
}

func TestParseStopSignal(t *testing.T) {
	tests := []struct {
		in      string
		want    unix.Signal
		wantErr bool
	}{
		{"", unix.SIGSTOP, false},
		{"STOP", unix.SIGSTOP, false},
		{"sigstop", unix.SIGSTOP, false},
		{"TSTP", unix.SIGTSTP, false},
		{"SIGTSTP", unix.SIGTSTP, false},
		{"KILL", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStopSignal(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, InvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError(SignalDeliveryFailure, "tick", 12, "failed to stop process", unix.ESRCH)
	assert.Equal(t, "failed to stop process (pid 12): no such process", err.Error())
	assert.ErrorIs(t, err, unix.ESRCH)
	assert.Equal(t, "signal delivery failure", err.Type.String())

	plain := NewError(InvalidArgument, "parse", 0, "bad input", nil)
	assert.Equal(t, "bad input", plain.Error())
	assert.False(t, IsType(errors.New("other"), InvalidArgument))
}
