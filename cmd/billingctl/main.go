package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"billing/internal/app"
	"billing/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate the recurring invoice billing service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Minute, "Abort the command after this long")

	rootCmd.AddCommand(runNowCmd())
	rootCmd.AddCommand(requeueCmd())
	rootCmd.AddCommand(failuresCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withComponents wires the service against the configured stores, runs fn and
// releases every connection afterwards.
func withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *app.Components) error) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg := config.Load()
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	components, err := app.Build(ctx, cfg, logger.Named("billingctl"))
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("error while closing connections", zap.Error(err))
		}
	}()

	return fn(ctx, components)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseInvoiceID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", arg)
	}
	return id, nil
}

func runNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-now",
		Short: "Run a billing pass immediately",
		Long: `Run a billing pass immediately, alongside any scheduled pass.
Invoices already being charged by another pass are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				summary, err := c.Billing.ForceRunNow(ctx)
				if printErr := printJSON(cmd, summary); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
}

func requeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue [invoice-id]",
		Short: "Move a failed or stuck invoice back to PENDING",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				invoice, err := c.Billing.ForceRequeue(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "invoice %d is %s\n", invoice.ID, invoice.Status)
				return nil
			})
		},
	}
}

func failuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failures [invoice-id]",
		Short: "Show the failed billing history of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				failures, err := c.Billing.FailedBillings(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, failures)
			})
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit [invoice-id]",
		Short: "Show and verify the audit trail of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInvoiceID(args[0])
			if err != nil {
				return err
			}
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				trail, err := c.Billing.AuditTrail(ctx, id)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, trail); err != nil {
					return err
				}
				if !trail.Verified {
					return fmt.Errorf("audit trail of invoice %d does not verify", id)
				}
				return nil
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the upcoming billing trigger instants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := cmd.Flags().GetInt("count")
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("count must be positive")
			}
			return withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				for _, at := range c.Billing.UpcomingRuns(count) {
					fmt.Fprintln(cmd.OutOrStdout(), at.Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntP("count", "n", 3, "Number of instants to print")

	return cmd
}
