package timegrid

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("10:45")
	require.NoError(t, err)
	assert.Equal(t, Clock(645), c)
	assert.Equal(t, "10:45", c.String())

	for _, raw := range []string{"", "9:00", "24:00", "10:60", "10-00", "ab:cd", "10:000"} {
		_, err := ParseClock(raw)
		assert.ErrorIs(t, err, ErrInvalidClock, raw)
	}
}

func TestOverlapsExhaustiveGrid(t *testing.T) {
	slots := Default().Slots()
	require.Len(t, slots, 9)

	for a := 0; a < len(slots); a++ {
		for b := a + 1; b < len(slots); b++ {
			for c := 0; c < len(slots); c++ {
				for d := c + 1; d < len(slots); d++ {
					// index arithmetic is the reference: [a,b) and [c,d) meet iff a<d and c<b
					want := a < d && c < b
					got := Overlaps(slots[a], slots[b], slots[c], slots[d])
					assert.Equal(t, want, got, "[%s,%s) vs [%s,%s)", slots[a], slots[b], slots[c], slots[d])
					assert.Equal(t, got, Overlaps(slots[c], slots[d], slots[a], slots[b]), "symmetry")
				}
			}
		}
	}
}

func TestOverlapsBackToBack(t *testing.T) {
	assert.False(t, Overlaps("10:00", "10:45", "10:45", "11:30"))
	assert.True(t, Overlaps("10:00", "10:45", "10:00", "11:30"))
	assert.True(t, Overlaps("10:00", "16:00", "12:15", "13:00"))
}

func TestDefaultGridValidateRange(t *testing.T) {
	g := Default()

	require.NoError(t, g.ValidateRange("10:00", "10:45"))
	require.NoError(t, g.ValidateRange("10:00", "16:00"))

	cases := [][2]string{
		{"10:45", "10:00"},
		{"10:00", "10:00"},
		{"10:05", "10:45"},
		{"10:00", "17:00"},
		{"", "10:45"},
	}
	for _, tc := range cases {
		err := g.ValidateRange(tc[0], tc[1])
		assert.True(t, errors.Is(err, ErrInvalidRange), "%v", tc)
	}
}

func TestSteppedMatchesDefault(t *testing.T) {
	g, err := Stepped("10:00", "16:00", 45*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSlots, g.Slots())
	assert.Equal(t, Weekdays, g.Days())
}

func TestNewRejectsUnorderedBoundaries(t *testing.T) {
	_, err := New([]string{"10:00", "09:00"}, nil)
	require.Error(t, err)

	_, err = New([]string{"10:00"}, nil)
	require.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	g, err := Parse([]byte("days: [monday, tuesday]\nslots: [\"08:00\", \"09:00\", \"10:00\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00", "10:00"}, g.Slots())
	assert.Equal(t, []string{"Monday", "Tuesday"}, g.Days())
	assert.True(t, g.HasDay("Monday"))
	assert.False(t, g.HasDay("Friday"))

	g, err = Parse([]byte("start: \"08:00\"\nend: \"10:00\"\nstep: 30m\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:30", "09:00", "09:30", "10:00"}, g.Slots())

	_, err = Parse([]byte("days: [Sunday]\nslots: [\"08:00\", \"09:00\"]\n"))
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestWeekdays(t *testing.T) {
	day, err := ParseWeekday(" mOnDaY ")
	require.NoError(t, err)
	assert.Equal(t, "Monday", day)

	_, err = ParseWeekday("Sunday")
	assert.ErrorIs(t, err, ErrInvalidDay)

	monday := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	day, ok := WeekdayOf(monday)
	assert.True(t, ok)
	assert.Equal(t, "Monday", day)

	_, ok = WeekdayOf(monday.AddDate(0, 0, 6))
	assert.False(t, ok)

	wd, ok := TimeWeekday("Saturday")
	assert.True(t, ok)
	assert.Equal(t, time.Saturday, wd)
	assert.Equal(t, 2, DayOrder("Wednesday"))
}
