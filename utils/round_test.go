package utils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meenmo/hedgeassign/utils"
)

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		name   string
		v      float64
		places int32
		want   float64
	}{
		{name: "half rounds up", v: 2.675, places: 2, want: 2.68},
		{name: "negative half rounds away from zero", v: -2.675, places: 2, want: -2.68},
		{name: "banker's case", v: 0.125, places: 2, want: 0.13},
		{name: "four places", v: 1234.56785, places: 4, want: 1234.5679},
		{name: "already rounded", v: 10, places: 4, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, utils.RoundHalfUp(tt.v, tt.places))
		})
	}
}

func TestRoundHalfUp_NonFinite(t *testing.T) {
	assert.True(t, math.IsNaN(utils.RoundHalfUp(math.NaN(), 2)))
	assert.True(t, math.IsInf(utils.RoundHalfUp(math.Inf(1), 2), 1))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.1235", utils.FormatFixed(0.12345, 4))
	assert.Equal(t, "1000000", utils.FormatPlain(1e6))
	assert.Equal(t, "-0.0001", utils.FormatPlain(-1e-4))
}
