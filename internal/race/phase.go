package race

import "time"

// Phase is the lifecycle of one racer. Transitions are monotonic:
// awaiting_publication -> racing -> one of the terminal phases. A terminal
// racer never issues another network call.
type Phase string

const (
	PhaseAwaitingPublication Phase = "awaiting_publication"
	PhaseRacing              Phase = "racing"
	PhaseQuotaMet            Phase = "quota_met"
	PhaseTimedOut            Phase = "timed_out"
	PhaseExhausted           Phase = "exhausted"
	PhaseFailed              Phase = "failed"
)

func (p Phase) Terminal() bool {
	switch p {
	case PhaseQuotaMet, PhaseTimedOut, PhaseExhausted, PhaseFailed:
		return true
	}
	return false
}

// Result is the per-pair record a racer hands back to the coordinator.
type Result struct {
	Account    string
	PlanningID string
	Phase      Phase
	Confirmed  int
	Elapsed    time.Duration
	// PublishedAt is set once the watcher observed publication; zero when the
	// race never got past awaiting_publication.
	PublishedAt time.Time
	// Err is the fatal error for a failed race, otherwise the last attempt
	// error seen (if any). Rejections are never recorded here.
	Err error
}
