package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/shift-sniper/internal/config"
	"github.com/example/shift-sniper/internal/crypto"
	"github.com/example/shift-sniper/internal/db"
	"github.com/example/shift-sniper/internal/migrate"
	"github.com/example/shift-sniper/internal/race"
	"github.com/example/shift-sniper/internal/shiftheroes"
	"github.com/example/shift-sniper/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		targetsPath string
		fromDB      bool
		save        bool
	)

	c := &cobra.Command{
		Use:   "run",
		Short: "Run one race: every configured account competes for its planning until quota, deadline or exhaustion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pol := race.Policy{
				PollInterval:    cfg.PollInterval,
				StartupDeadline: cfg.StartupDeadline,
				RaceDeadline:    cfg.RaceDeadline,
			}

			var d *db.DB
			if fromDB || save {
				d, err = db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			var targets []race.Target
			switch {
			case fromDB:
				targets, err = targetsFromDB(ctx, cfg, d)
			default:
				targets, pol, err = targetsFromFile(targetsPath, pol)
			}
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("nothing to race")
			}

			coord := &race.Coordinator{
				NewAPI: func(token string) shiftheroes.API {
					return shiftheroes.New(shiftheroes.Config{BaseURL: cfg.ShiftHeroesURL, Token: token})
				},
				Policy: pol,
				Log:    log,
			}

			startedAt := time.Now()
			log.Info().Int("pairs", len(targets)).Msg("starting race")
			summary := coord.Run(ctx, targets)

			for _, res := range summary.Results {
				line := fmt.Sprintf("account=%s planning=%s phase=%s confirmed=%d elapsed=%s",
					res.Account, res.PlanningID, res.Phase, res.Confirmed, res.Elapsed.Round(time.Millisecond))
				if res.Err != nil {
					line += fmt.Sprintf(" err=%q", res.Err)
				}
				fmt.Fprintln(os.Stdout, line)
			}
			fmt.Fprintf(os.Stdout, "total confirmed=%d elapsed=%s\n",
				summary.Confirmed, summary.Elapsed.Round(time.Millisecond))

			if save {
				repo := store.NewRepo(d)
				for _, res := range summary.Results {
					if err := repo.RecordRace(ctx, startedAt, res); err != nil {
						log.Warn().Err(err).Str("account", res.Account).Msg("could not record race")
					}
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&targetsPath, "targets", "targets.yaml", "YAML file with accounts and policy")
	c.Flags().BoolVar(&fromDB, "from-db", false, "load accounts from the database instead of a targets file")
	c.Flags().BoolVar(&save, "save", false, "record per-pair results in the races table")
	return c
}

func targetsFromFile(path string, pol race.Policy) ([]race.Target, race.Policy, error) {
	tf, err := config.LoadTargets(path)
	if err != nil {
		return nil, pol, err
	}

	pol.PollInterval = tf.PollInterval(pol.PollInterval)
	pol.StartupDeadline = tf.StartupDeadline(pol.StartupDeadline)
	pol.RaceDeadline = tf.RaceDeadline(pol.RaceDeadline)
	pol.EmptyPollLimit = tf.EmptyPollLimit
	pol.DefaultQuota = tf.DefaultQuota

	targets := make([]race.Target, 0, len(tf.Accounts))
	for _, a := range tf.Accounts {
		token, err := a.Token()
		if err != nil {
			return nil, pol, err
		}
		targets = append(targets, race.Target{
			Account:      a.Label,
			Token:        token,
			PlanningID:   a.PlanningID,
			PlanningType: a.PlanningType,
			Quota:        a.Quota,
		})
	}
	return targets, pol, nil
}

func targetsFromDB(ctx context.Context, cfg config.Config, d *db.DB) ([]race.Target, error) {
	if err := cfg.RequireCipherKey(); err != nil {
		return nil, err
	}
	aead, err := crypto.New(cfg.TokenCipherKey)
	if err != nil {
		return nil, err
	}

	accounts, err := store.NewRepo(d).ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]race.Target, 0, len(accounts))
	for _, a := range accounts {
		token, err := aead.DecryptString(a.TokenCiphertext)
		if err != nil {
			return nil, fmt.Errorf("decrypt token for account %q: %w", a.Label, err)
		}
		targets = append(targets, race.Target{
			Account:      a.Label,
			Token:        token,
			PlanningID:   a.PlanningID,
			PlanningType: a.PlanningType,
			Quota:        a.Quota,
		})
	}
	return targets, nil
}
