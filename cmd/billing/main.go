package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"owners-billing/internal/config"
	"owners-billing/internal/core"
	"owners-billing/internal/db"
	"owners-billing/internal/jobs"
	"owners-billing/internal/logger"
)

// billing is the batch entry point: one-shot generation or overdue runs for
// operators and external cron, plus a long-running cron mode.
func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "billing",
		Short: "Contract billing batch jobs",
		Long: `Runs the recurring billing jobs against the configured database:
invoice generation for active contracts and the overdue sweep.

One-shot subcommands suit external schedulers; "cron" keeps the process
running with the built-in scheduler.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(generateCmd(), checkOverdueCmd(), cronCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config and wires the job dependencies shared by every subcommand.
func setup(ctx context.Context) (*core.Generator, *core.OverdueChecker, *config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, zerolog.Logger{}, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, zerolog.Logger{}, nil, err
	}

	settingsService := core.NewSettingsService(pool)
	contractService := core.NewContractService(pool)
	invoiceService := core.NewInvoiceService(pool, settingsService, core.NopNotifier{})
	generator := core.NewGenerator(contractService, invoiceService, settingsService, logger.WithComponent(log, "generator"))
	overdueChecker := core.NewOverdueChecker(pool, logger.WithComponent(log, "overdue"))

	return generator, overdueChecker, cfg, log, pool.Close, nil
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Run one invoice generation sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			generator, _, _, _, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := generator.Run(ctx)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
}

func checkOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-overdue",
		Short: "Mark open invoices past their due date as overdue and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, overdueChecker, _, _, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			marked, err := overdueChecker.Run(ctx)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(map[string]int{"marked_overdue": marked})
		},
	}
}

func cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run both jobs on their configured schedules until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			generator, overdueChecker, cfg, log, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			scheduler := jobs.NewScheduler(generator, overdueChecker, logger.WithComponent(log, "scheduler"))
			scheduler.Start(cfg.GenerateJobSchedule, cfg.OverdueJobSchedule)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("stopping scheduler")
			<-scheduler.Stop().Done()
			return nil
		},
	}
}
