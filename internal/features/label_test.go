package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelAt(t *testing.T) {
	prices := hourlyTicks(30, func(int) float64 { return 100 })

	tests := []struct {
		name        string
		futureClose float64
		wantValue   int
		wantReturn  float64
	}{
		{"flat", 100, 0, 0},
		{"exactly threshold", 101, 0, 0.01},
		{"above threshold", 101.5, 1, 0.015},
		{"negative", 95, 0, -0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices[25].Close = tt.futureClose

			label, ok := LabelAt(prices, 1)
			assert.True(t, ok)
			assert.Equal(t, tt.wantValue, label.Value)
			assert.InDelta(t, tt.wantReturn, label.FutureReturn24h, 1e-12)
		})
	}
}

func TestLabelAt_OutOfRange(t *testing.T) {
	prices := hourlyTicks(30, func(int) float64 { return 100 })

	_, ok := LabelAt(prices, 6)
	assert.False(t, ok, "i+24 == len is out of range")

	_, ok = LabelAt(prices, 5)
	assert.True(t, ok)

	_, ok = LabelAt(prices, -1)
	assert.False(t, ok)

	_, ok = LabelAt(nil, 0)
	assert.False(t, ok)
}

func TestLabelAt_ZeroClose(t *testing.T) {
	prices := hourlyTicks(30, func(int) float64 { return 100 })
	prices[0].Close = 0

	_, ok := LabelAt(prices, 0)
	assert.False(t, ok)
}

func TestLabelAt_ReadsOnlyCurrentAndHorizon(t *testing.T) {
	prices := hourlyTicks(30, func(int) float64 { return 100 })
	prices[25].Close = 110

	before, ok := LabelAt(prices, 1)
	assert.True(t, ok)

	// Ticks before i and between i and the horizon do not matter.
	prices[0].Close = 1
	prices[10].Close = 1000

	after, ok := LabelAt(prices, 1)
	assert.True(t, ok)
	assert.Equal(t, before, after)
}
