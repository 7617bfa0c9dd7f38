package race

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

// Target names one (account, planning) pair to race. Either PlanningID is
// set explicitly or PlanningType asks the coordinator to discover the first
// matching planning at run time.
type Target struct {
	Account      string
	Token        string
	PlanningID   string
	PlanningType string
	// Quota overrides Policy.DefaultQuota when > 0.
	Quota int
}

// Policy carries the knobs shared by every racer in one run.
type Policy struct {
	PollInterval    time.Duration
	StartupDeadline time.Duration
	RaceDeadline    time.Duration
	EmptyPollLimit  int
	RetryBackoff    time.Duration
	DefaultQuota    int
}

func (p Policy) withDefaults() Policy {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.StartupDeadline <= 0 {
		p.StartupDeadline = DefaultStartupDeadline
	}
	if p.RaceDeadline <= 0 {
		p.RaceDeadline = DefaultRaceDeadline
	}
	if p.RetryBackoff <= 0 {
		p.RetryBackoff = DefaultRetryBackoff
	}
	return p
}

// Summary aggregates one run across all pairs.
type Summary struct {
	Results   []Result
	Confirmed int
	Elapsed   time.Duration
}

// Coordinator fans out one independent racer per target and waits for all of
// them to reach a terminal phase. Racers share nothing: each gets its own
// client (own credentials) and its own result slot. One pair failing never
// touches its siblings.
type Coordinator struct {
	// NewAPI builds the per-account client. Required.
	NewAPI func(token string) shiftheroes.API
	Policy Policy
	Log    zerolog.Logger
}

// Run races every target concurrently and blocks until all finish.
func (c *Coordinator) Run(ctx context.Context, targets []Target) Summary {
	start := time.Now()
	pol := c.Policy.withDefaults()

	results := make([]Result, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		i, t := i, t
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.runOne(ctx, pol, t)
		}()
	}
	wg.Wait()

	sum := Summary{Results: results, Elapsed: time.Since(start)}
	for _, r := range results {
		sum.Confirmed += r.Confirmed
	}
	return sum
}

func (c *Coordinator) runOne(ctx context.Context, pol Policy, t Target) Result {
	api := c.NewAPI(t.Token)

	planningID := t.PlanningID
	if planningID == "" {
		id, err := discoverPlanning(ctx, api, t.PlanningType)
		if err != nil {
			c.Log.Error().Err(err).Str("account", t.Account).Msg("target discovery failed")
			return Result{Account: t.Account, Phase: PhaseFailed, Err: err}
		}
		planningID = id
	}

	quota := t.Quota
	if quota <= 0 {
		quota = pol.DefaultQuota
	}

	r := &Racer{
		API:             api,
		Account:         t.Account,
		PlanningID:      planningID,
		Quota:           quota,
		PollInterval:    pol.PollInterval,
		StartupDeadline: pol.StartupDeadline,
		RaceDeadline:    pol.RaceDeadline,
		EmptyPollLimit:  pol.EmptyPollLimit,
		RetryBackoff:    pol.RetryBackoff,
		Log:             c.Log,
	}
	return r.Run(ctx)
}

// discoverPlanning picks the first planning of the wanted type, or simply the
// first listed one when no type is given.
func discoverPlanning(ctx context.Context, api shiftheroes.API, planningType string) (string, error) {
	plannings, err := api.ListPlannings(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range plannings {
		if planningType == "" || p.Type == planningType {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("no planning of type %q visible", planningType)
}
