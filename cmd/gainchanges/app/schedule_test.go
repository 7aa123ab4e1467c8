package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleAt(t *testing.T) {
	s := Schedule{Gains: []int{40, 50, 59}, LNAStates: []int{0, 3}}

	type pair struct {
		gr  int
		lna uint8
	}
	want := []pair{
		{50, 3}, // n=1
		{59, 0},
		{40, 3},
		{50, 0},
		{59, 3},
		{40, 0},
		{50, 3}, // n=7, both lists wrapped
	}

	for i, w := range want {
		gr, lna := s.At(uint32(i + 1))
		assert.Equal(t, w, pair{gr, lna}, "n=%d", i+1)
	}

	gr, lna := s.At(0)
	assert.Equal(t, 40, gr)
	assert.Equal(t, uint8(0), lna)
}

func TestScheduleAtLargeIndex(t *testing.T) {
	s := Schedule{Gains: []int{20, 30}, LNAStates: []int{1}}

	gr, lna := s.At(4294967295)
	assert.Equal(t, 30, gr)
	assert.Equal(t, uint8(1), lna)
}
