package race

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

const (
	DefaultPollInterval    = time.Second
	DefaultStartupDeadline = 10 * time.Second
	DefaultRaceDeadline    = time.Minute
	DefaultRetryBackoff    = 250 * time.Millisecond
)

// Racer drives one (account, planning) pair through the race lifecycle:
// wait for publication, then repeatedly list reservable shifts and claim
// them until the quota is met, the hard deadline passes, or (optionally)
// the planning looks exhausted. One racer owns its credentials and talks to
// the API strictly sequentially; no two attempts are ever in flight at once
// for the same pair.
type Racer struct {
	API        shiftheroes.API
	Account    string
	PlanningID string

	// Quota is the target count of confirmed reservations. <= 0 means take
	// everything reservable until another exit condition fires.
	Quota int

	PollInterval time.Duration // default 1s

	// StartupDeadline bounds the awaiting_publication phase. Default 10s.
	StartupDeadline time.Duration

	// RaceDeadline bounds the racing phase, measured from the instant racing
	// starts. It is taken literally: zero means the race times out before the
	// first observation. Callers wanting the default apply it themselves
	// (the coordinator policy does).
	RaceDeadline time.Duration

	// EmptyPollLimit is the number of consecutive observations with zero
	// attemptable shifts after which the race is declared exhausted. Zero
	// disables exhaustion: the racer keeps polling until the deadline, since
	// new shifts can appear between polls.
	EmptyPollLimit int

	RetryBackoff   time.Duration // backoff before the single attempt retry, default 250ms
	MaxFetchErrors int           // consecutive listing failures before fatal, default 3

	Log zerolog.Logger

	mu        sync.Mutex
	phase     Phase
	confirmed int
}

// Phase returns the current lifecycle phase. Safe for concurrent use.
func (r *Racer) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == "" {
		return PhaseAwaitingPublication
	}
	return r.phase
}

// Confirmed returns the count of confirmed reservations so far.
func (r *Racer) Confirmed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmed
}

// transition moves the racer forward; terminal phases are sticky.
func (r *Racer) transition(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase.Terminal() {
		return
	}
	r.phase = p
}

func (r *Racer) addConfirmed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed++
	return r.confirmed
}

// Run executes the race to completion and returns its result. It blocks
// until a terminal phase is reached.
func (r *Racer) Run(ctx context.Context) Result {
	start := time.Now()
	log := r.Log.With().Str("account", r.Account).Str("planning", r.PlanningID).Logger()

	res := Result{Account: r.Account, PlanningID: r.PlanningID}
	r.transition(PhaseAwaitingPublication)

	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	startupDeadline := r.StartupDeadline
	if startupDeadline <= 0 {
		startupDeadline = DefaultStartupDeadline
	}

	w := &Watcher{API: r.API, Interval: interval, MaxFetchErrors: r.MaxFetchErrors, Log: log}
	publishedAt, err := w.Wait(ctx, r.PlanningID, start.Add(startupDeadline))
	if err != nil {
		if errors.Is(err, ErrPublicationTimeout) {
			log.Info().Dur("waited", time.Since(start)).Msg("planning never published, abandoning race")
			r.transition(PhaseTimedOut)
		} else {
			log.Error().Err(err).Msg("watcher failed")
			r.transition(PhaseFailed)
			res.Err = err
		}
		return r.finish(res, start)
	}

	res.PublishedAt = publishedAt
	r.transition(PhaseRacing)
	log.Info().Time("published_at", publishedAt).Msg("planning published, racing")

	raceStart := time.Now()
	hardDeadline := raceStart.Add(r.RaceDeadline)

	attempted := make(map[string]bool)
	emptyRuns := 0
	fetchErrs := 0
	var lastErr error

	for r.Phase() == PhaseRacing {
		if !time.Now().Before(hardDeadline) {
			log.Info().Int("confirmed", r.Confirmed()).Msg("race deadline reached")
			r.transition(PhaseTimedOut)
			break
		}

		shifts, err := r.API.ListShifts(ctx, r.PlanningID)
		switch {
		case err == nil:
			fetchErrs = 0
			open, malformed := FilterReservable(shifts, time.Now())
			if malformed > 0 {
				log.Warn().Int("count", malformed).Msg("shifts with unusable timestamps skipped")
			}
			fresh := open[:0:0]
			for _, s := range open {
				if !attempted[s.ID] {
					fresh = append(fresh, s)
				}
			}
			if len(fresh) == 0 {
				emptyRuns++
				if r.EmptyPollLimit > 0 && emptyRuns >= r.EmptyPollLimit {
					log.Info().Int("observations", emptyRuns).Msg("no reservable shifts left, giving up")
					r.transition(PhaseExhausted)
				}
			} else {
				emptyRuns = 0
				r.attemptAll(ctx, log, fresh, attempted, &res, &lastErr)
			}
		case shiftheroes.IsAuth(err):
			log.Error().Err(err).Msg("credentials rejected")
			r.transition(PhaseFailed)
			res.Err = err
		case shiftheroes.IsData(err):
			// Malformed listing: nothing usable this cycle, keep polling.
			log.Warn().Err(err).Msg("unusable shift listing")
		case ctx.Err() != nil:
			r.transition(PhaseFailed)
			res.Err = ctx.Err()
		default:
			fetchErrs++
			maxErrs := r.MaxFetchErrors
			if maxErrs <= 0 {
				maxErrs = 3
			}
			if fetchErrs >= maxErrs {
				log.Error().Err(err).Int("failures", fetchErrs).Msg("shift listing keeps failing")
				r.transition(PhaseFailed)
				res.Err = err
			} else {
				log.Warn().Err(err).Int("failures", fetchErrs).Msg("shift listing failed")
			}
		}

		if r.Phase() != PhaseRacing {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			r.transition(PhaseFailed)
			res.Err = err
		}
	}

	if res.Err == nil {
		res.Err = lastErr
	}
	return r.finish(res, start)
}

// attemptAll claims shifts in filter order and stops the instant the quota is
// met, even mid-iteration. Every shift is attempted at most once per race:
// rejected and errored shifts are dropped for good, confirmed ones are held.
func (r *Racer) attemptAll(ctx context.Context, log zerolog.Logger, fresh []shiftheroes.Shift, attempted map[string]bool, res *Result, lastErr *error) {
	for _, s := range fresh {
		outcome, err := r.attempt(ctx, s.ID)
		attempted[s.ID] = true

		switch outcome {
		case shiftheroes.OutcomeConfirmed:
			n := r.addConfirmed()
			log.Info().Str("shift", s.ID).Str("day", s.Day).Int("confirmed", n).Msg("reservation confirmed")
			if r.Quota > 0 && n >= r.Quota {
				r.transition(PhaseQuotaMet)
				return
			}
		case shiftheroes.OutcomeRejected:
			// Lost this one to another client; expected, move on.
			log.Debug().Str("shift", s.ID).Msg("reservation rejected, shift gone")
		default:
			if shiftheroes.IsAuth(err) {
				log.Error().Err(err).Msg("credentials rejected")
				r.transition(PhaseFailed)
				res.Err = err
				return
			}
			if ctx.Err() != nil {
				r.transition(PhaseFailed)
				res.Err = ctx.Err()
				return
			}
			// One shift failing must not abort the race.
			log.Warn().Err(err).Str("shift", s.ID).Msg("reservation attempt failed, dropping shift")
			*lastErr = err
		}
	}
}

// attempt issues one reservation with a single bounded retry on error.
func (r *Racer) attempt(ctx context.Context, shiftID string) (shiftheroes.Outcome, error) {
	outcome, err := r.API.Reserve(ctx, r.PlanningID, shiftID)
	if err == nil || shiftheroes.IsAuth(err) {
		return outcome, err
	}
	backoff := r.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	if serr := sleep(ctx, backoff); serr != nil {
		return shiftheroes.OutcomeError, err
	}
	return r.API.Reserve(ctx, r.PlanningID, shiftID)
}

func (r *Racer) finish(res Result, start time.Time) Result {
	res.Phase = r.Phase()
	res.Confirmed = r.Confirmed()
	res.Elapsed = time.Since(start)
	return res
}
