// Command wastectl runs operator tasks against a WasteTrack deployment:
// schema migrations, admin provisioning, bin imports and notification checks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleancity/wastetrack/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "wastectl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wastectl",
		Short:         "Operator tools for WasteTrack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(), newAdminCommand(), newBinsCommand(), newNotifyCommand())
	return root
}

// environment is the configuration shared by every subcommand.
type environment struct {
	cfg *app.Config
}

func loadEnvironment() (environment, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return environment{}, fmt.Errorf("load config: %w", err)
	}
	return environment{cfg: cfg}, nil
}
