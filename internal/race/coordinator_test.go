package race

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shift-sniper/internal/shiftheroes"
)

func testPolicy() Policy {
	return Policy{
		PollInterval:    2 * time.Millisecond,
		StartupDeadline: 100 * time.Millisecond,
		RaceDeadline:    500 * time.Millisecond,
		RetryBackoff:    time.Millisecond,
	}
}

func TestCoordinatorRacesTargetsIndependently(t *testing.T) {
	// One pair whose credentials are dead, one pair that wins. The failure
	// must stay confined to its own result slot.
	var mu sync.Mutex
	apis := map[string]*fakeAPI{}

	c := &Coordinator{
		NewAPI: func(token string) shiftheroes.API {
			api := &fakeAPI{
				planningsFn: alwaysPublished("P1", time.Now()),
			}
			if token == "dead-token" {
				api.shiftsFn = func(int) ([]shiftheroes.Shift, error) {
					return nil, &shiftheroes.AuthError{Status: 401}
				}
			} else {
				api.shiftsFn = func(int) ([]shiftheroes.Shift, error) {
					return []shiftheroes.Shift{futureShift("a", 1, 0)}, nil
				}
			}
			mu.Lock()
			apis[token] = api
			mu.Unlock()
			return api
		},
		Policy: testPolicy(),
		Log:    zerolog.Nop(),
	}

	sum := c.Run(context.Background(), []Target{
		{Account: "alice", Token: "dead-token", PlanningID: "P1", Quota: 1},
		{Account: "bob", Token: "live-token", PlanningID: "P1", Quota: 1},
	})

	require.Len(t, sum.Results, 2)
	assert.Equal(t, "alice", sum.Results[0].Account)
	assert.Equal(t, PhaseFailed, sum.Results[0].Phase)
	assert.True(t, shiftheroes.IsAuth(sum.Results[0].Err))

	assert.Equal(t, "bob", sum.Results[1].Account)
	assert.Equal(t, PhaseQuotaMet, sum.Results[1].Phase)
	assert.Equal(t, 1, sum.Results[1].Confirmed)

	assert.Equal(t, 1, sum.Confirmed)
}

func TestCoordinatorEachTargetGetsOwnClient(t *testing.T) {
	var mu sync.Mutex
	var tokens []string

	c := &Coordinator{
		NewAPI: func(token string) shiftheroes.API {
			mu.Lock()
			tokens = append(tokens, token)
			mu.Unlock()
			return &fakeAPI{
				planningsFn: alwaysPublished("P1", time.Now()),
				shiftsFn: func(int) ([]shiftheroes.Shift, error) {
					return []shiftheroes.Shift{futureShift("a", 1, 0)}, nil
				},
			}
		},
		Policy: testPolicy(),
		Log:    zerolog.Nop(),
	}

	c.Run(context.Background(), []Target{
		{Account: "alice", Token: "t-alice", PlanningID: "P1", Quota: 1},
		{Account: "bob", Token: "t-bob", PlanningID: "P1", Quota: 1},
	})

	assert.ElementsMatch(t, []string{"t-alice", "t-bob"}, tokens)
}

func TestCoordinatorDiscoversPlanningByType(t *testing.T) {
	api := &fakeAPI{
		planningsFn: func(int) ([]shiftheroes.Planning, error) {
			now := time.Now()
			return []shiftheroes.Planning{
				{ID: "D1", Type: "daily", State: shiftheroes.StatePublished, PublishedAt: &now},
				{ID: "W1", Type: "weekly", State: shiftheroes.StatePublished, PublishedAt: &now},
			}, nil
		},
		shiftsFn: func(int) ([]shiftheroes.Shift, error) {
			return []shiftheroes.Shift{futureShift("a", 1, 0)}, nil
		},
	}

	c := &Coordinator{
		NewAPI: func(string) shiftheroes.API { return api },
		Policy: testPolicy(),
		Log:    zerolog.Nop(),
	}

	sum := c.Run(context.Background(), []Target{
		{Account: "alice", PlanningType: "weekly", Quota: 1},
	})

	require.Len(t, sum.Results, 1)
	assert.Equal(t, "W1", sum.Results[0].PlanningID)
	assert.Equal(t, PhaseQuotaMet, sum.Results[0].Phase)
}

func TestCoordinatorDiscoveryFailureIsTerminal(t *testing.T) {
	api := &fakeAPI{
		planningsFn: func(int) ([]shiftheroes.Planning, error) {
			return []shiftheroes.Planning{
				{ID: "D1", Type: "daily", State: shiftheroes.StatePublished},
			}, nil
		},
	}

	c := &Coordinator{
		NewAPI: func(string) shiftheroes.API { return api },
		Policy: testPolicy(),
		Log:    zerolog.Nop(),
	}

	sum := c.Run(context.Background(), []Target{
		{Account: "alice", PlanningType: "permanent", Quota: 1},
	})

	require.Len(t, sum.Results, 1)
	assert.Equal(t, PhaseFailed, sum.Results[0].Phase)
	assert.Error(t, sum.Results[0].Err)
	assert.Zero(t, api.shiftsCalls)
}

func TestCoordinatorDefaultQuotaApplies(t *testing.T) {
	api := &fakeAPI{
		planningsFn: alwaysPublished("P1", time.Now()),
		shiftsFn: func(int) ([]shiftheroes.Shift, error) {
			return []shiftheroes.Shift{
				futureShift("a", 1, 0),
				futureShift("b", 1, 0),
				futureShift("c", 1, 0),
			}, nil
		},
	}

	pol := testPolicy()
	pol.DefaultQuota = 2

	c := &Coordinator{
		NewAPI: func(string) shiftheroes.API { return api },
		Policy: pol,
		Log:    zerolog.Nop(),
	}

	sum := c.Run(context.Background(), []Target{
		{Account: "alice", PlanningID: "P1"},
	})

	require.Len(t, sum.Results, 1)
	assert.Equal(t, PhaseQuotaMet, sum.Results[0].Phase)
	assert.Equal(t, 2, sum.Results[0].Confirmed)
}
