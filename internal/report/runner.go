// Package report orchestrates one report run: deriving the three trailing
// windows from the observation log, computing per-store uptime/downtime
// for each, and persisting the results atomically.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/storewatch/storewatchd/internal/store"
	"github.com/storewatch/storewatchd/internal/uptime"
)

// ErrNoObservations is returned when the observation log is empty and no
// reference instant can be derived. The report stays pending.
var ErrNoObservations = errors.New("observation log is empty")

// tzPad widens the observation fetch so that any UTC timestamp whose
// localized wall time lands inside a window is included, regardless of the
// store's offset.
const tzPad = 24 * time.Hour

// Runner executes report runs against a Store.
type Runner struct {
	store     store.Store
	logger    *slog.Logger
	defaultTZ string
}

// NewRunner creates a Runner. defaultTZ falls back to America/Chicago when
// empty.
func NewRunner(s store.Store, logger *slog.Logger, defaultTZ string) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: s, logger: logger, defaultTZ: defaultTZ}
}

// Run computes and persists all three windows for the given report.
//
// The run is all-or-nothing: the three windows' upserts and the
// pending→completed transition share one transaction, and any failure
// rolls the whole run back, leaving the report pending with no rows.
// Errors are returned to the caller; the asynchronous trigger path logs
// and discards them.
func (r *Runner) Run(ctx context.Context, reportID uuid.UUID) error {
	started := time.Now()

	stores, err := r.store.GetStores(ctx)
	if err != nil {
		return fmt.Errorf("loading stores: %w", err)
	}
	hours, err := r.store.GetBusinessHours(ctx)
	if err != nil {
		return fmt.Errorf("loading business hours: %w", err)
	}
	resolver, err := uptime.NewResolver(stores, hours, r.defaultTZ)
	if err != nil {
		return err
	}

	// The reference instant anchors all three windows to "now" as defined
	// by the data, not wall-clock time.
	latest, err := r.store.LatestObservationTimes(ctx)
	if err != nil {
		return fmt.Errorf("finding latest observations: %w", err)
	}
	ref, err := uptime.ReferenceInstant(resolver, latest)
	if err != nil {
		return err
	}
	if ref.IsZero() {
		return ErrNoObservations
	}

	windows := uptime.DeriveWindows(ref)

	// One fetch covers all three windows: the week window opens earliest
	// and the hour window closes latest. Bounds are naive local times, so
	// pad for timezone offsets; Aggregate re-filters exactly per store.
	fetchStart := windows[0].Start.Add(-tzPad)
	fetchEnd := windows[len(windows)-1].End.Add(tzPad)
	observations, err := r.store.GetObservations(ctx, fetchStart, fetchEnd)
	if err != nil {
		return fmt.Errorf("loading observations: %w", err)
	}

	r.logger.Info("report run started",
		"report_id", reportID,
		"reference_instant", ref.Format(time.RFC3339),
		"observations", len(observations),
		"stores", len(stores),
	)

	// The windows are independent computations over shared read-only
	// input; compute them concurrently, write sequentially below.
	results := make([][]uptime.StoreTotals, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			totals, err := uptime.Aggregate(w, resolver, observations)
			if err != nil {
				return fmt.Errorf("aggregating %s window: %w", w.Kind, err)
			}
			results[i] = totals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	run, err := r.store.BeginReportRun(ctx, reportID)
	if err != nil {
		return err
	}
	defer run.Rollback() //nolint:errcheck // rollback after commit is harmless

	for i, w := range windows {
		if err := run.SaveWindowResults(ctx, w.Kind, results[i]); err != nil {
			return err
		}
	}
	if err := run.Complete(ctx, time.Now().UTC()); err != nil {
		return err
	}

	r.logger.Info("report run completed",
		"report_id", reportID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}
