package race

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

func TestFilterReservable(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Hour)
	past := now.Add(-2 * time.Hour)

	shifts := []shiftheroes.Shift{
		{ID: "open", StartsAt: future, Seats: 14, SeatsTaken: 3},
		{ID: "full", StartsAt: future, Seats: 14, SeatsTaken: 14},
		{ID: "past", StartsAt: past, Seats: 14, SeatsTaken: 0},
		{ID: "last-seat", StartsAt: future, Seats: 2, SeatsTaken: 1},
		{ID: "broken", Seats: 5, SeatsTaken: 0}, // no usable timestamp
		{ID: "starts-now", StartsAt: now, Seats: 5, SeatsTaken: 0},
	}

	out, malformed := FilterReservable(shifts, now)

	assert.Equal(t, 1, malformed)
	ids := make([]string, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	// Service ordering preserved, non-reservable entries gone.
	assert.Equal(t, []string{"open", "last-seat"}, ids)
}

func TestFilterReservableFullSlotExcludedRegardlessOfStart(t *testing.T) {
	now := time.Now()
	shifts := []shiftheroes.Shift{
		{ID: "x", StartsAt: now.Add(1000 * time.Hour), Seats: 14, SeatsTaken: 14},
	}
	out, malformed := FilterReservable(shifts, now)
	assert.Empty(t, out)
	assert.Zero(t, malformed)
}

func TestFilterReservableEmptyInput(t *testing.T) {
	out, malformed := FilterReservable(nil, time.Now())
	assert.Empty(t, out)
	assert.Zero(t, malformed)
}
