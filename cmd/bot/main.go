package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"futuresbot/internal/eod/eodobs"
	"futuresbot/internal/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:          "bot",
		Short:        "Futures trading bot for Binance and Bybit",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), cfgPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the trading loop (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), cfgPath)
		},
	})
	rootCmd.AddCommand(newReportCmd(&cfgPath))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: exchange=%s symbol=%s mode=%s leverage=%d\n",
				cfg.Exchange, cfg.Symbol, cfg.Mode(), cfg.Leverage)
			return nil
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "futuresbot", version)
		},
	})
	return rootCmd
}

func newReportCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the daily CSV summary of the trade journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			day := time.Now().UTC().AddDate(0, 0, -1)
			if date != "" {
				parsed, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				day = parsed
			}

			if err := initializeSystem(); err != nil {
				return err
			}
			cfg, err := store.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			path, err := eodobs.Wrap(initializeEOD(cfg)).SummarizeDay(day)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no trades journaled for", day.Format("2006-01-02"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().String("date", "", "UTC day in YYYY-MM-DD format (yesterday if not provided)")
	return cmd
}
