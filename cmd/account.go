package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/shift-sniper/internal/config"
	"github.com/example/shift-sniper/internal/crypto"
	"github.com/example/shift-sniper/internal/db"
	"github.com/example/shift-sniper/internal/migrate"
	"github.com/example/shift-sniper/internal/store"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage stored ShiftHeroes accounts (tokens encrypted at rest)",
	}
	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountListCmd())
	return cmd
}

func newAccountAddCmd() *cobra.Command {
	var (
		label        string
		tokenEnv     string
		planningID   string
		planningType string
		quota        int
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Store an account; the bearer token is read from an env var, never from a flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if err := cfg.RequireCipherKey(); err != nil {
				return err
			}
			if planningID == "" && planningType == "" {
				return fmt.Errorf("--planning or --planning-type required")
			}

			token := strings.TrimSpace(os.Getenv(tokenEnv))
			if token == "" {
				return fmt.Errorf("env var %s is empty", tokenEnv)
			}

			aead, err := crypto.New(cfg.TokenCipherKey)
			if err != nil {
				return err
			}
			ciphertext, err := aead.EncryptToString(token)
			if err != nil {
				return err
			}

			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()
			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			repo := store.NewRepo(d)
			id, err := repo.CreateAccount(ctx, store.Account{
				Label:           label,
				TokenCiphertext: ciphertext,
				PlanningID:      planningID,
				PlanningType:    planningType,
				Quota:           quota,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stored account %q id=%d\n", label, id)
			return nil
		},
	}

	c.Flags().StringVar(&label, "label", "", "account label")
	c.Flags().StringVar(&tokenEnv, "token-env", "SHIFTHEROES_TOKEN", "env var holding the bearer token")
	c.Flags().StringVar(&planningID, "planning", "", "target planning id")
	c.Flags().StringVar(&planningType, "planning-type", "", "discover first planning of this type (daily/weekly/permanent)")
	c.Flags().IntVar(&quota, "quota", 0, "confirmed-reservation quota for this account (0 = unlimited)")
	_ = c.MarkFlagRequired("label")
	return c
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := store.NewRepo(d)
			accounts, err := repo.ListAccounts(ctx)
			if err != nil {
				return err
			}
			for _, a := range accounts {
				target := a.PlanningID
				if target == "" {
					target = "type=" + a.PlanningType
				}
				fmt.Fprintf(os.Stdout, "label=%s planning=%s quota=%d added=%s\n",
					a.Label, target, a.Quota, a.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}
