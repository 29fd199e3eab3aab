package bouquet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestColorsCompatible(t *testing.T) {
	assert.True(t, ColorsCompatible("red", "red"), "same color always combines")
	assert.True(t, ColorsCompatible("red", "white"))
	assert.True(t, ColorsCompatible("Red", "WHITE"), "case insensitive")
	assert.False(t, ColorsCompatible("red", "blue"))
	assert.False(t, ColorsCompatible("red", "purple"))

	assert.True(t, ColorsCompatible("", "red"), "unspecified color is permissive")
	assert.True(t, ColorsCompatible("chartreuse", "chartreuse"), "unknown colors match themselves")
	assert.False(t, ColorsCompatible("chartreuse", "red"))
}

func TestCurrentSeason(t *testing.T) {
	assert.Equal(t, "spring", CurrentSeason(time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "summer", CurrentSeason(time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "autumn", CurrentSeason(time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "winter", CurrentSeason(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "winter", CurrentSeason(time.Date(2026, time.December, 25, 0, 0, 0, 0, time.UTC)))
}

func TestInSeason(t *testing.T) {
	assert.True(t, InSeason("all", "winter"))
	assert.True(t, InSeason("", "winter"), "blank seasonality means year-round")
	assert.True(t, InSeason("spring", "spring"))
	assert.True(t, InSeason("Spring", "SPRING"))
	assert.False(t, InSeason("spring", "winter"))
}

func TestRulesTablesAreCopies(t *testing.T) {
	m := ColorMatrix()
	m["red"] = nil
	assert.NotEmpty(t, ColorMatrix()["red"], "mutating the returned matrix must not touch the table")

	st := SeasonTable()
	assert.ElementsMatch(t, []string{"march", "april", "may"}, st["spring"])
	assert.Len(t, st, 4)
}
