package race

import (
	"time"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

// FilterReservable keeps the shifts still worth attempting: at least one seat
// left and a start strictly in the future of now. Service ordering is
// preserved. Shifts without a usable start timestamp are dropped and counted
// in malformed so the caller can log them; they are a data problem, never an
// error.
func FilterReservable(shifts []shiftheroes.Shift, now time.Time) (out []shiftheroes.Shift, malformed int) {
	for _, s := range shifts {
		if s.StartsAt.IsZero() {
			malformed++
			continue
		}
		if s.SeatsLeft() <= 0 {
			continue
		}
		if !s.StartsAt.After(now) {
			continue
		}
		out = append(out, s)
	}
	return out, malformed
}
