package race

import (
	"context"
	"sync"
	"time"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

// fakeAPI scripts the remote service for tests. Each hook receives the
// 1-based call number so scripts can change behavior over time.
type fakeAPI struct {
	mu sync.Mutex

	planningsFn func(call int) ([]shiftheroes.Planning, error)
	shiftsFn    func(call int) ([]shiftheroes.Shift, error)
	reserveFn   func(call int, planningID, shiftID string) (shiftheroes.Outcome, error)

	planningsCalls int
	shiftsCalls    int
	reserveCalls   int
	reserved       []string
}

func (f *fakeAPI) ListPlannings(ctx context.Context) ([]shiftheroes.Planning, error) {
	f.mu.Lock()
	f.planningsCalls++
	n := f.planningsCalls
	fn := f.planningsFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(n)
}

func (f *fakeAPI) ListShifts(ctx context.Context, planningID string) ([]shiftheroes.Shift, error) {
	f.mu.Lock()
	f.shiftsCalls++
	n := f.shiftsCalls
	fn := f.shiftsFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(n)
}

func (f *fakeAPI) Reserve(ctx context.Context, planningID, shiftID string) (shiftheroes.Outcome, error) {
	f.mu.Lock()
	f.reserveCalls++
	n := f.reserveCalls
	f.reserved = append(f.reserved, shiftID)
	fn := f.reserveFn
	f.mu.Unlock()
	if fn == nil {
		return shiftheroes.OutcomeConfirmed, nil
	}
	return fn(n, planningID, shiftID)
}

func (f *fakeAPI) reserveCount(shiftID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.reserved {
		if id == shiftID {
			n++
		}
	}
	return n
}

func (f *fakeAPI) totalReserves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserveCalls
}

func (f *fakeAPI) reservedOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reserved...)
}

// alwaysPublished scripts ListPlannings to report the planning as published
// from the first poll.
func alwaysPublished(id string, at time.Time) func(int) ([]shiftheroes.Planning, error) {
	return func(int) ([]shiftheroes.Planning, error) {
		return []shiftheroes.Planning{
			{ID: id, Type: "weekly", State: shiftheroes.StatePublished, PublishedAt: &at},
		}, nil
	}
}

func neverPublished(id string) func(int) ([]shiftheroes.Planning, error) {
	return func(int) ([]shiftheroes.Planning, error) {
		return []shiftheroes.Planning{
			{ID: id, Type: "weekly", State: shiftheroes.StateUnpublished},
		}, nil
	}
}

func futureShift(id string, seats, taken int) shiftheroes.Shift {
	return shiftheroes.Shift{
		ID:         id,
		PlanningID: "P1",
		Day:        "lundi",
		StartsAt:   time.Now().Add(24 * time.Hour),
		EndsAt:     time.Now().Add(30 * time.Hour),
		Seats:      seats,
		SeatsTaken: taken,
	}
}
