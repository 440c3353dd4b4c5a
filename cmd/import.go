package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatchd/internal/config"
	"github.com/storewatch/storewatchd/internal/importer"
)

var (
	storesFile       string
	hoursFile        string
	observationsFile string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load store, business-hours, and observation CSVs",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&storesFile, "stores", "", "store timezone CSV (store_id, timezone_str)")
	importCmd.Flags().StringVar(&hoursFile, "business-hours", "", "business hours CSV (store_id, dayOfWeek, start_time_local, end_time_local)")
	importCmd.Flags().StringVar(&observationsFile, "observations", "", "status poll CSV (store_id, timestamp_utc, status)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging()

	if storesFile == "" && hoursFile == "" && observationsFile == "" {
		return fmt.Errorf("nothing to import: pass --stores, --business-hours, and/or --observations")
	}

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
	im := importer.New(s, slog.Default())

	// Reference data first so observations never precede their stores.
	if storesFile != "" {
		if err := importFile(ctx, storesFile, im.ImportStores); err != nil {
			return fmt.Errorf("importing stores: %w", err)
		}
	}
	if hoursFile != "" {
		if err := importFile(ctx, hoursFile, im.ImportBusinessHours); err != nil {
			return fmt.Errorf("importing business hours: %w", err)
		}
	}
	if observationsFile != "" {
		if err := importFile(ctx, observationsFile, im.ImportObservations); err != nil {
			return fmt.Errorf("importing observations: %w", err)
		}
	}

	slog.Info("import complete")
	return nil
}

func importFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	n, err := load(ctx, f)
	if err != nil {
		return err
	}
	slog.Info("file imported", "path", path, "rows", n)
	return nil
}
