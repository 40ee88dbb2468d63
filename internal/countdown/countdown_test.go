package countdown

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemaining(t *testing.T) {
	tests := []struct {
		name     string
		end, now int64
		want     int64
	}{
		{name: "future", end: 1_000, now: 400, want: 600},
		{name: "exactly now", end: 1_000, now: 1_000, want: 0},
		{name: "past", end: 1_000, now: 5_000, want: 0},
		{name: "negative end", end: -10, now: 0, want: 0},
		{name: "extreme past", end: math.MinInt64 + 1, now: math.MaxInt64, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remaining(tt.end, tt.now)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int64
		style   Style
		want    string
	}{
		{0, StyleLetters, "0h 0m 0s"},
		{3661, StyleLetters, "1h 1m 1s"},
		{59, StyleLetters, "0h 0m 59s"},
		{86_400, StyleLetters, "24h 0m 0s"},
		{0, StyleColon, "0:0:0"},
		{3661, StyleColon, "1:1:1"},
		{7_325, StyleColon, "2:2:5"},
		{-5, StyleColon, "0:0:0"},
	}

	for _, tt := range tests {
		t.Run(tt.style.String()+"/"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.seconds, tt.style))
		})
	}
}

func TestView(t *testing.T) {
	assert.Equal(t, ClosedColon, View(100, 101, StyleColon))
	assert.Equal(t, "0:0:0", View(100, 100, StyleColon))
	assert.Equal(t, "0h 0m 0s", View(100, 500, StyleLetters))
	assert.Equal(t, "1h 1m 1s", View(3761, 100, StyleLetters))
}

func TestClosed(t *testing.T) {
	assert.False(t, Closed(10, 9))
	assert.True(t, Closed(10, 10))
	assert.True(t, Closed(10, 11))
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleLetters, s)

	s, err = ParseStyle(" Colon ")
	require.NoError(t, err)
	assert.Equal(t, StyleColon, s)

	_, err = ParseStyle("iso")
	assert.Error(t, err)
}
