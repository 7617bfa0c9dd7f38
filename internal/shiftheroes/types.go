package shiftheroes

import (
	"context"
	"time"
)

// PlanningState is the lifecycle state of a planning as reported by the API.
type PlanningState string

const (
	StateUnpublished PlanningState = "unpublished"
	StatePublished   PlanningState = "published"
	StateUnknown     PlanningState = "unknown"
)

// Planning is a read-only snapshot of one remotely managed planning. State can
// flip between polls, so callers refetch rather than cache it.
type Planning struct {
	ID          string
	Type        string // "daily", "weekly", "permanent"
	State       PlanningState
	PublishedAt *time.Time
}

// Shift is a read-only snapshot of one reservable shift. StartsAt/EndsAt are
// zero when the service sent an unusable timestamp; such shifts are never
// reservable.
type Shift struct {
	ID         string
	PlanningID string
	Day        string
	StartsAt   time.Time
	EndsAt     time.Time
	Seats      int
	SeatsTaken int
}

// SeatsLeft never goes negative even if the service over-reports takers.
func (s Shift) SeatsLeft() int {
	if s.SeatsTaken >= s.Seats {
		return 0
	}
	return s.Seats - s.SeatsTaken
}

// Outcome classifies one reservation attempt. A rejection means someone else
// got the seat first; it is an expected result, not a failure.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)

// API is the surface of the remote scheduling service consumed by the race
// package. Implementations do plain I/O: no retries, no business rules.
type API interface {
	ListPlannings(ctx context.Context) ([]Planning, error)
	ListShifts(ctx context.Context, planningID string) ([]Shift, error)
	// Reserve attempts to claim one shift. The error is non-nil only when the
	// outcome is OutcomeError.
	Reserve(ctx context.Context, planningID, shiftID string) (Outcome, error)
}
