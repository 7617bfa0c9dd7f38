package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/shift-sniper/internal/auth"
	"github.com/example/shift-sniper/internal/config"
	"github.com/example/shift-sniper/internal/db"
	"github.com/example/shift-sniper/internal/migrate"
	"github.com/example/shift-sniper/internal/shiftheroes"
	"github.com/example/shift-sniper/internal/store"
	"github.com/example/shift-sniper/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI over race history, accounts and a live plannings view",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireWebKeys(); err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			// Optional read-only client for the live plannings page.
			var live shiftheroes.API
			if token := strings.TrimSpace(os.Getenv("SHIFTHEROES_TOKEN")); token != "" {
				live = shiftheroes.New(shiftheroes.Config{BaseURL: cfg.ShiftHeroesURL, Token: token})
			}

			ws := &web.Server{
				Auth: auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey),
				Repo: store.NewRepo(d),
				Live: live,
				Log:  log,
			}
			log.Info().Str("addr", cfg.ListenAddr).Msg("web UI listening")
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
