package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/notify"
	"github.com/cleancity/wastetrack/internal/platform/db"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/jobs"
	"github.com/cleancity/wastetrack/migrations"
)

func connect(cmd *cobra.Command) (*pgxpool.Pool, environment, error) {
	env, err := loadEnvironment()
	if err != nil {
		return nil, env, err
	}
	pool, err := db.New(cmd.Context(), env.cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, env, err
	}
	return pool, env, nil
}

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, _, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := db.Migrate(cmd.Context(), pool, migrations.Files)
			for _, version := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", version)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	})
	return migrate
}

func newAdminCommand() *cobra.Command {
	var email, password, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a confirmed identity holding the admin role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, _, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := cmd.Context()
			service := auth.NewService(auth.NewRepository(pool), nil)
			identity, err := service.CreateConfirmed(ctx, email, password, name)
			if err != nil {
				return err
			}
			if err := rbac.NewStore(pool).Grant(ctx, identity.ID, rbac.RoleAdmin); err != nil {
				if delErr := service.Delete(ctx, identity.ID); delErr != nil {
					return errors.Join(err, fmt.Errorf("remove identity %s: %w", identity.ID, delErr))
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (%s)\n", identity.Email, identity.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "login password")
	create.Flags().StringVar(&name, "name", "", "full name")
	for _, flag := range []string{"email", "password", "name"} {
		_ = create.MarkFlagRequired(flag)
	}

	admin := &cobra.Command{Use: "admin", Short: "Manage administrators"}
	admin.AddCommand(create)
	return admin
}

func newBinsCommand() *cobra.Command {
	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Validate and insert bins from a YAML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			inputs, err := parseBins(f)
			if err != nil {
				return err
			}
			if errs := validateBins(inputs); !errs.Empty() {
				return errs
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d bins valid\n", len(inputs))
				return nil
			}

			pool, _, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := bins.NewService(bins.NewRepository(pool)).Import(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bins imported\n", n)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")

	cmd := &cobra.Command{Use: "bins", Short: "Manage the bin registry"}
	cmd.AddCommand(importCmd)
	return cmd
}

func newNotifyCommand() *cobra.Command {
	var driverID, number string
	test := &cobra.Command{
		Use:   "test",
		Short: "Enqueue an assignment notification for an existing complaint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, env, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := cmd.Context()
			c, err := findComplaint(ctx, complaints.NewRepository(pool), number)
			if err != nil {
				return err
			}
			client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: env.cfg.RedisAddr})
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.EnqueueDriverAssignment(ctx, notify.Assignment{
				DriverID:        driverID,
				ComplaintID:     c.ID,
				ComplaintNumber: c.ComplaintNumber,
				Area:            c.Area,
				Address:         c.Address,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", info.ID, info.Queue)
			return nil
		},
	}
	test.Flags().StringVar(&driverID, "driver", "", "driver id")
	test.Flags().StringVar(&number, "complaint-number", "", "complaint number, e.g. WC-20240501-1A2B3C")
	_ = test.MarkFlagRequired("driver")
	_ = test.MarkFlagRequired("complaint-number")

	cmd := &cobra.Command{Use: "notify", Short: "Driver notification tools"}
	cmd.AddCommand(test)
	return cmd
}

type complaintFinder interface {
	List(ctx context.Context, filter complaints.ListFilter) ([]complaints.Complaint, error)
}

func findComplaint(ctx context.Context, repo complaintFinder, number string) (complaints.Complaint, error) {
	list, err := repo.List(ctx, complaints.ListFilter{Search: number, Order: complaints.OrderCreated})
	if err != nil {
		return complaints.Complaint{}, err
	}
	for _, c := range list {
		if c.ComplaintNumber == number {
			return c, nil
		}
	}
	return complaints.Complaint{}, fmt.Errorf("%w: %s", complaints.ErrNotFound, number)
}
