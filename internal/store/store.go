package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storewatch/storewatchd/internal/uptime"
)

// ReportStatus is the lifecycle state of a report. A report is created
// pending and transitions to completed exactly once; there is no failed
// state — a failed run rolls back and leaves the report pending.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportCompleted ReportStatus = "completed"
)

// Report is the database model for one report run.
type Report struct {
	ID          uuid.UUID
	Status      ReportStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ReportItem is one store's computed uptime/downtime for a report. Fields
// are nil until the corresponding window has been written.
type ReportItem struct {
	StoreID          int64
	UptimeLastHour   *time.Duration
	UptimeLastDay    *time.Duration
	UptimeLastWeek   *time.Duration
	DowntimeLastHour *time.Duration
	DowntimeLastDay  *time.Duration
	DowntimeLastWeek *time.Duration
}

// Store defines the storage interface for reference data, the observation
// log, and report state. Both SQLite and PostgreSQL implementations
// satisfy this interface.
type Store interface {
	// SaveStores batch-upserts store reference rows keyed by id.
	SaveStores(ctx context.Context, stores []uptime.Store) error

	// SaveBusinessHours batch-inserts business-hours rows.
	SaveBusinessHours(ctx context.Context, hours []uptime.BusinessHours) error

	// SaveObservations appends to the observation log. Row ids assigned by
	// the database preserve insertion order; duplicate timestamps are
	// permitted.
	SaveObservations(ctx context.Context, obs []uptime.Observation) error

	// GetStores retrieves all store reference rows.
	GetStores(ctx context.Context) ([]uptime.Store, error)

	// GetBusinessHours retrieves all business-hours rows.
	GetBusinessHours(ctx context.Context) ([]uptime.BusinessHours, error)

	// GetObservations retrieves observations with UTC timestamps in
	// [start, end), ordered by timestamp then row id.
	GetObservations(ctx context.Context, start, end time.Time) ([]uptime.Observation, error)

	// LatestObservationTimes returns each store's newest observation
	// timestamp (UTC) across the whole log.
	LatestObservationTimes(ctx context.Context) (map[int64]time.Time, error)

	// CountObservations returns the total size of the observation log.
	CountObservations(ctx context.Context) (int, error)

	// CreateReport allocates a new report in pending state.
	CreateReport(ctx context.Context) (*Report, error)

	// GetReport retrieves a report by id, or nil if none exists.
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)

	// GetReportItems retrieves a completed report's per-store results
	// ordered by store id.
	GetReportItems(ctx context.Context, id uuid.UUID) ([]ReportItem, error)

	// CountReports returns how many reports are pending and completed.
	CountReports(ctx context.Context) (pending, completed int, err error)

	// BeginReportRun opens the transaction scoping one report run: all
	// three windows' writes plus the completion flip commit atomically via
	// Complete, or are discarded via Rollback.
	BeginReportRun(ctx context.Context, id uuid.UUID) (ReportRun, error)

	// Close closes the database connection.
	Close() error
}

// ReportRun is one in-flight report computation's transactional scope.
type ReportRun interface {
	// SaveWindowResults upserts per-store totals for one window kind,
	// writing only that window's column pair. Rows are created by the
	// first window and updated in place by later ones, keyed on
	// (report_id, store_id).
	SaveWindowResults(ctx context.Context, kind uptime.WindowKind, totals []uptime.StoreTotals) error

	// Complete transitions the report from pending to completed, stamps
	// the completion time, and commits the run.
	Complete(ctx context.Context, at time.Time) error

	// Rollback discards all of the run's writes. Harmless after Complete.
	Rollback() error
}

// windowColumns maps a window kind to its report_items column pair.
func windowColumns(kind uptime.WindowKind) (uptimeCol, downtimeCol string, err error) {
	switch kind {
	case uptime.WindowHour, uptime.WindowDay, uptime.WindowWeek:
		return "uptime_last_" + string(kind), "downtime_last_" + string(kind), nil
	default:
		return "", "", fmt.Errorf("unknown window kind %q", kind)
	}
}

// --- Shared helpers ---

// parseTimestamp handles both time.Time and string timestamp values from
// SQLite.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05Z",
			"2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05+00:00",
			"2006-01-02 15:04:05 +0000 UTC",
			"2006-01-02 15:04:05",
			"2006-01-02",
		} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type: %T", v)
	}
}

// replacePlaceholders converts ? to $1, $2, $3 etc for postgres.
func replacePlaceholders(query string) string {
	result := make([]byte, 0, len(query))
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, fmt.Sprintf("$%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
