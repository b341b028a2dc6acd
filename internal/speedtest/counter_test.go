package speedtest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounterRejectsBadDurations(t *testing.T) {
	now := time.Now()

	_, err := NewCounter(0, time.Second, now)
	assert.Error(t, err)

	_, err = NewCounter(time.Millisecond, -time.Second, now)
	assert.Error(t, err)
}

func TestCounterFullSpeed(t *testing.T) {
	start := time.Unix(1000, 0)
	c, err := NewCounter(time.Millisecond, time.Second, start)
	require.NoError(t, err)

	var (
		r  Report
		ok bool
	)
	for i := 1; i <= 1000; i++ {
		r, ok = c.Incr(start.Add(time.Duration(i) * time.Millisecond))
		if i < 1000 {
			require.False(t, ok, "period closed early at %d", i)
		}
	}

	require.True(t, ok)
	assert.Equal(t, 1000, r.Count)
	assert.Equal(t, time.Second, r.Elapsed)
	assert.InDelta(t, 1000.0, r.Expected, 1e-9)
	assert.InDelta(t, 100.0, r.Speed, 1e-9)
}

func TestCounterHalfSpeed(t *testing.T) {
	start := time.Unix(1000, 0)
	c, err := NewCounter(time.Millisecond, time.Second, start)
	require.NoError(t, err)

	// One increment every 2ms: half the expected rate.
	var r Report
	ok := false
	for i := 1; !ok; i++ {
		r, ok = c.Incr(start.Add(time.Duration(2*i) * time.Millisecond))
	}

	assert.Equal(t, 500, r.Count)
	assert.InDelta(t, 50.0, r.Speed, 1e-9)
}

func TestCounterResetsAfterReport(t *testing.T) {
	start := time.Unix(1000, 0)
	c, err := NewCounter(time.Millisecond, 10*time.Millisecond, start)
	require.NoError(t, err)

	r, ok := c.Incr(start.Add(20 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 1, r.Count)
	assert.InDelta(t, 5.0, r.Speed, 1e-9)

	_, ok = c.Incr(start.Add(25 * time.Millisecond))
	assert.False(t, ok)

	r, ok = c.Incr(start.Add(30 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, 2, r.Count)
	assert.Equal(t, 10*time.Millisecond, r.Elapsed)
}

func TestReportString(t *testing.T) {
	r := Report{Speed: 49.5, Elapsed: 1500 * time.Millisecond, Count: 742, Expected: 1500}
	assert.Equal(t, " 49.50%,  1.50 sec,  742 incr, 1500.0 expected incr", r.String())
}

func TestRunWritesReportsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	require.NoError(t, Run(ctx, &buf, time.Millisecond, 20*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Contains(t, line, "expected incr")
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	assert.Error(t, Run(context.Background(), &bytes.Buffer{}, 0, time.Second))
}
