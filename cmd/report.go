package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatchd/internal/api"
	"github.com/storewatch/storewatchd/internal/config"
	"github.com/storewatch/storewatchd/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run one report synchronously and print the CSV to stdout",
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	ctx := cmd.Context()
	rep, err := s.CreateReport(ctx)
	if err != nil {
		return err
	}
	slog.Info("report created", "report_id", rep.ID)

	runner := report.NewRunner(s, slog.Default(), cfg.DefaultTimezone)
	if err := runner.Run(ctx, rep.ID); err != nil {
		return err
	}

	items, err := s.GetReportItems(ctx, rep.ID)
	if err != nil {
		return err
	}
	return api.WriteReportCSV(os.Stdout, items)
}
