package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestIncrease(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                  string
		lastUsage, usage      int64
		lastTime, now, window int64
		expected              int64
	}{
		{"zero elapsed keeps the usage", 1000, 0, 7, 7, WindowSize, 1000},
		{"full window decays to zero", 1000, 0, 7, 7 + WindowSize, WindowSize, 0},
		{"beyond the window", 1000, 0, 7, 7 + 2*WindowSize, WindowSize, 0},
		{"half window halves", 28800, 0, 0, 14400, WindowSize, 14400},
		{"fresh usage", 0, 100, 5, 5, WindowSize, 100},
		{"usage on top of decayed usage", 28800, 100, 0, 14400, WindowSize, 14500},
		{"clock going backwards", 1000, 0, 10, 5, WindowSize, 1000},
		{"network average window", 500, 0, 0, 10, AverageWindowSize, 250},
		{"no window", 3, 4, 0, 100, 0, 7},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, c.expected, Increase(c.lastUsage, c.usage, c.lastTime, c.now, c.window))
		})
	}
}

func TestIncreaseRoundsHalfUp(t *testing.T) {
	t.Parallel()

	// 1 energy over 28800 slots averages to 35 (ceil of 34.72), one slot
	// later 35 * 28799 / 28800 = 34.9988 rounds up to 35 again
	assert.Equal(t, int64(1), Increase(1, 0, 0, 1, WindowSize))
}

func TestIncreaseProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		usage := rapid.Int64Range(0, 1<<40).Draw(t, "usage")
		last := rapid.Int64Range(0, 1<<30).Draw(t, "last")
		elapsed := rapid.Int64Range(0, 2*WindowSize).Draw(t, "elapsed")

		// no decay without elapsed time, full decay after a window
		if got := Increase(usage, 0, last, last, WindowSize); got != usage {
			t.Fatalf("zero elapsed: got %d, want %d", got, usage)
		}

		if got := Increase(usage, 0, last, last+WindowSize, WindowSize); got != 0 {
			t.Fatalf("full window: got %d, want 0", got)
		}

		// decay never grows the usage and is monotone in the elapsed time
		now := Increase(usage, 0, last, last+elapsed, WindowSize)
		later := Increase(usage, 0, last, last+elapsed+1, WindowSize)

		if now > usage || later > now {
			t.Fatalf("decay not monotone: usage %d, now %d, later %d", usage, now, later)
		}

		// new usage is never lost
		extra := rapid.Int64Range(0, 1<<40).Draw(t, "extra")
		if got := Increase(usage, extra, last, last+elapsed, WindowSize); got < extra {
			t.Fatalf("new usage lost: got %d, extra %d", got, extra)
		}
	})
}
