package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/shift-sniper/internal/config"
	"github.com/example/shift-sniper/internal/shiftheroes"
)

// plannings mirrors what the API exposes: without an argument it lists
// plannings, with one it lists that planning's shifts.
func newPlanningsCmd() *cobra.Command {
	var tokenEnv string

	c := &cobra.Command{
		Use:   "plannings [planning-id]",
		Short: "List visible plannings, or the shifts of one planning",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			token := strings.TrimSpace(os.Getenv(tokenEnv))
			if token == "" {
				return fmt.Errorf("env var %s is empty", tokenEnv)
			}
			client := shiftheroes.New(shiftheroes.Config{BaseURL: cfg.ShiftHeroesURL, Token: token})
			ctx := context.Background()

			if len(args) == 0 {
				plannings, err := client.ListPlannings(ctx)
				if err != nil {
					return err
				}
				for _, p := range plannings {
					published := "-"
					if p.PublishedAt != nil {
						published = p.PublishedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(os.Stdout, "id=%s type=%s state=%s published=%s\n", p.ID, p.Type, p.State, published)
				}
				return nil
			}

			shifts, err := client.ListShifts(ctx, args[0])
			if err != nil {
				return err
			}
			for _, s := range shifts {
				start := "-"
				if !s.StartsAt.IsZero() {
					start = s.StartsAt.Format("15:04")
				}
				end := "-"
				if !s.EndsAt.IsZero() {
					end = s.EndsAt.Format("15:04")
				}
				fmt.Fprintf(os.Stdout, "id=%s day=%s %s-%s seats=%d/%d\n",
					s.ID, s.Day, start, end, s.SeatsTaken, s.Seats)
			}
			return nil
		},
	}

	c.Flags().StringVar(&tokenEnv, "token-env", "SHIFTHEROES_TOKEN", "env var holding the bearer token")
	return c
}
