package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonday(t *testing.T) {
	assert.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), Monday(2026, 42))
	// 2021 week 1 starts on 4 January.
	assert.Equal(t, time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC), Monday(2021, 1))
	// 2026 week 1 starts in the previous calendar year.
	assert.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), Monday(2026, 1))
}

func TestShiftCrossesYears(t *testing.T) {
	y, w := Shift(2026, 1, -1)
	assert.Equal(t, [2]int{2025, 52}, [2]int{y, w})
	y, w = Shift(2020, 53, 1)
	assert.Equal(t, [2]int{2021, 1}, [2]int{y, w})
}

func TestValidWeek(t *testing.T) {
	assert.True(t, ValidWeek(2020, 53))
	assert.False(t, ValidWeek(2021, 53))
	assert.False(t, ValidWeek(2026, 0))
	assert.False(t, ValidWeek(1999, 10))
}
