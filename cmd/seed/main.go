package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/balmohsen/backend/internal/config"
	"github.com/balmohsen/backend/internal/logging"
	"github.com/balmohsen/backend/internal/notify"
	"github.com/balmohsen/backend/internal/repository"
	"github.com/balmohsen/backend/internal/workflow"
	"github.com/balmohsen/backend/pkg/models"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "seed",
		Short: "Seed the approval service database",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	root.AddCommand(usersCmd(), demoCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return pool, nil
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "Provision one account per approver role plus a submitter",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.NewLogger()

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := repository.NewPostgresUserStore(pool)

			accounts := []struct {
				Username string
				Email    string
				Role     models.Role
			}{
				{"employee", "employee@localhost", models.RoleEmployee},
				{"finance", "finance@localhost", models.RoleFinance},
				{"manager", "manager@localhost", models.RoleManager},
				{"vp", "vp@localhost", models.RoleVP},
				{"admin", "admin@localhost", models.RoleAdministrator},
			}

			for _, a := range accounts {
				if _, err := store.GetByEmail(ctx, a.Email); err == nil {
					logger.Info("Skipping existing user", "email", a.Email)
					continue
				}

				now := time.Now().UTC()
				user := &models.User{
					ID:        uuid.New().String(),
					Username:  a.Username,
					Email:     a.Email,
					Role:      a.Role,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := store.Create(ctx, user); err != nil {
					logger.Error("Failed to create user", "email", a.Email, "error", err)
					continue
				}
				logger.Info("Seeded user", "email", a.Email, "role", a.Role.String())
			}
			logger.Info("Seeding complete!")
			return nil
		},
	}
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Submit a sample COC form from the seeded employee account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.NewLogger()

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			formStore := repository.NewPostgresFormStore(pool)
			userStore := repository.NewPostgresUserStore(pool)

			engine, err := workflow.New(formStore, userStore, discardDispatcher{}, nil, logger)
			if err != nil {
				return err
			}

			submitter, err := userStore.GetByEmail(ctx, "employee@localhost")
			if err != nil {
				return fmt.Errorf("seeded employee account missing, run `seed users` first: %w", err)
			}

			actor := models.Principal{
				ID:       submitter.ID,
				Username: submitter.Username,
				Email:    submitter.Email,
				Role:     submitter.Role,
			}
			form, err := engine.Submit(ctx, actor, models.FormTypeCOC, "Sample certificate of conformance",
				[]byte(`{"project": "Demo Project", "contract_number": "C-1001"}`))
			if err != nil {
				return err
			}

			logger.Info("Seeded demo form", "form_id", form.ID, "status", string(form.Status))
			return nil
		},
	}
}

// discardDispatcher drops notifications; seeding has no mail relay.
type discardDispatcher struct{}

func (discardDispatcher) Enqueue(notify.Message) {}
