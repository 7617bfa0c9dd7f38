package race

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

// ErrPublicationTimeout is the normal outcome of watching a planning that
// never publishes inside the startup deadline. It is not a failure.
var ErrPublicationTimeout = errors.New("planning not published before deadline")

// Watcher polls one planning until it flips to published or a deadline
// passes. It never busy-spins: every iteration sleeps the poll interval.
type Watcher struct {
	API      shiftheroes.API
	Interval time.Duration // default 1s
	// MaxFetchErrors bounds consecutive transient listing failures before the
	// watch is surfaced as fatal. Default 3.
	MaxFetchErrors int
	Log            zerolog.Logger
}

// Wait returns the observed publication timestamp, ErrPublicationTimeout if
// the deadline passed first, or a fatal error (auth rejection, transport
// failures past the retry budget).
func (w *Watcher) Wait(ctx context.Context, planningID string, deadline time.Time) (time.Time, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	maxErrs := w.MaxFetchErrors
	if maxErrs <= 0 {
		maxErrs = 3
	}

	failures := 0
	for {
		plannings, err := w.API.ListPlannings(ctx)
		switch {
		case err == nil:
			failures = 0
			if at, ok := publishedAt(plannings, planningID); ok {
				return at, nil
			}
		case shiftheroes.IsAuth(err):
			return time.Time{}, err
		case ctx.Err() != nil:
			return time.Time{}, ctx.Err()
		default:
			failures++
			w.Log.Warn().Err(err).Str("planning", planningID).Int("failures", failures).
				Msg("watcher poll failed")
			if failures >= maxErrs {
				return time.Time{}, fmt.Errorf("watch planning %s: %w", planningID, err)
			}
		}

		if !time.Now().Before(deadline) {
			return time.Time{}, ErrPublicationTimeout
		}
		if err := sleep(ctx, interval); err != nil {
			return time.Time{}, err
		}
	}
}

// publishedAt reports whether the planning is visible and published. A
// planning missing from the listing is treated as not yet published.
func publishedAt(plannings []shiftheroes.Planning, id string) (time.Time, bool) {
	for _, p := range plannings {
		if p.ID != id {
			continue
		}
		if p.State != shiftheroes.StatePublished {
			return time.Time{}, false
		}
		if p.PublishedAt != nil {
			return *p.PublishedAt, true
		}
		return time.Now(), true
	}
	return time.Time{}, false
}

// sleep waits d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
