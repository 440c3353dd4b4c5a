package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storewatch/storewatchd/internal/uptime"
)

const batchSize = 500

// sqlStore implements Store on database/sql and is shared by the SQLite
// and PostgreSQL backends. Queries are written with ? placeholders and
// rewritten for postgres.
type sqlStore struct {
	db      *sql.DB
	dialect string // "sqlite" or "postgres"
}

func (s *sqlStore) rebind(query string) string {
	if s.dialect == "postgres" {
		return replacePlaceholders(query)
	}
	return query
}

// DB returns the underlying database connection for migration commands.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) SaveStores(ctx context.Context, stores []uptime.Store) error {
	return s.saveBatched(ctx, len(stores), `
		INSERT INTO stores (id, timezone) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET timezone=excluded.timezone`,
		func(i int) []any {
			return []any{stores[i].ID, stores[i].Timezone}
		})
}

func (s *sqlStore) SaveBusinessHours(ctx context.Context, hours []uptime.BusinessHours) error {
	return s.saveBatched(ctx, len(hours), `
		INSERT INTO business_hours (store_id, day_of_week, open_time, close_time)
		VALUES (?, ?, ?, ?)`,
		func(i int) []any {
			h := hours[i]
			return []any{h.StoreID, h.DayOfWeek, h.Open.String(), h.Close.String()}
		})
}

func (s *sqlStore) SaveObservations(ctx context.Context, obs []uptime.Observation) error {
	return s.saveBatched(ctx, len(obs), `
		INSERT INTO observations (store_id, timestamp_utc, status)
		VALUES (?, ?, ?)`,
		func(i int) []any {
			o := obs[i]
			return []any{o.StoreID, o.Timestamp.UTC(), string(o.Status)}
		})
}

// saveBatched inserts n rows in batches, each batch one transaction with a
// prepared statement.
func (s *sqlStore) saveBatched(ctx context.Context, n int, query string, args func(int) []any) error {
	query = s.rebind(query)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		if err := s.saveBatch(ctx, query, start, end, args); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) saveBatch(ctx context.Context, query string, start, end int, args func(int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is harmless

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for i := start; i < end; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("inserting row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *sqlStore) GetStores(ctx context.Context) ([]uptime.Store, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timezone FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var stores []uptime.Store
	for rows.Next() {
		var st uptime.Store
		if err := rows.Scan(&st.ID, &st.Timezone); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

func (s *sqlStore) GetBusinessHours(ctx context.Context) ([]uptime.BusinessHours, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, day_of_week, open_time, close_time
		FROM business_hours ORDER BY store_id, day_of_week, id`)
	if err != nil {
		return nil, fmt.Errorf("listing business hours: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var hours []uptime.BusinessHours
	for rows.Next() {
		var (
			h         uptime.BusinessHours
			open, cls string
		)
		if err := rows.Scan(&h.StoreID, &h.DayOfWeek, &open, &cls); err != nil {
			return nil, fmt.Errorf("scanning business hours: %w", err)
		}
		if h.Open, err = uptime.ParseClock(open); err != nil {
			return nil, fmt.Errorf("store %d: %w", h.StoreID, err)
		}
		if h.Close, err = uptime.ParseClock(cls); err != nil {
			return nil, fmt.Errorf("store %d: %w", h.StoreID, err)
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

func (s *sqlStore) GetObservations(ctx context.Context, start, end time.Time) ([]uptime.Observation, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, store_id, timestamp_utc, status
		FROM observations
		WHERE timestamp_utc >= ? AND timestamp_utc < ?
		ORDER BY timestamp_utc, id`), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var obs []uptime.Observation
	for rows.Next() {
		var (
			o      uptime.Observation
			tsRaw  any
			status string
		)
		if err := rows.Scan(&o.ID, &o.StoreID, &tsRaw, &status); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		if o.Timestamp, err = parseTimestamp(tsRaw); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		o.Status = uptime.Status(status)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func (s *sqlStore) LatestObservationTimes(ctx context.Context) (map[int64]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, MAX(timestamp_utc) FROM observations GROUP BY store_id`)
	if err != nil {
		return nil, fmt.Errorf("querying latest observations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	latest := make(map[int64]time.Time)
	for rows.Next() {
		var (
			storeID int64
			tsRaw   any
		)
		if err := rows.Scan(&storeID, &tsRaw); err != nil {
			return nil, fmt.Errorf("scanning latest observation: %w", err)
		}
		ts, err := parseTimestamp(tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		latest[storeID] = ts
	}
	return latest, rows.Err()
}

func (s *sqlStore) CountObservations(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting observations: %w", err)
	}
	return count, nil
}

func (s *sqlStore) CreateReport(ctx context.Context) (*Report, error) {
	r := &Report{
		ID:        uuid.New(),
		Status:    ReportPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO reports (id, status, created_at) VALUES (?, ?, ?)`),
		r.ID.String(), string(r.Status), r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return r, nil
}

func (s *sqlStore) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	var (
		status       string
		createdRaw   any
		completedRaw any
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT status, created_at, completed_at FROM reports WHERE id = ?`),
		id.String()).Scan(&status, &createdRaw, &completedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}

	r := &Report{ID: id, Status: ReportStatus(status)}
	if r.CreatedAt, err = parseTimestamp(createdRaw); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if completedRaw != nil {
		completed, err := parseTimestamp(completedRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		r.CompletedAt = &completed
	}
	return r, nil
}

func (s *sqlStore) GetReportItems(ctx context.Context, id uuid.UUID) ([]ReportItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT store_id,
			uptime_last_hour, uptime_last_day, uptime_last_week,
			downtime_last_hour, downtime_last_day, downtime_last_week
		FROM report_items
		WHERE report_id = ?
		ORDER BY store_id`), id.String())
	if err != nil {
		return nil, fmt.Errorf("querying report items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []ReportItem
	for rows.Next() {
		var (
			item ReportItem
			cols [6]sql.NullInt64
		)
		if err := rows.Scan(&item.StoreID,
			&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5]); err != nil {
			return nil, fmt.Errorf("scanning report item: %w", err)
		}
		dsts := []**time.Duration{
			&item.UptimeLastHour, &item.UptimeLastDay, &item.UptimeLastWeek,
			&item.DowntimeLastHour, &item.DowntimeLastDay, &item.DowntimeLastWeek,
		}
		for i, c := range cols {
			if c.Valid {
				d := time.Duration(c.Int64) * time.Second
				*dsts[i] = &d
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *sqlStore) CountReports(ctx context.Context) (pending, completed int, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
	if err != nil {
		return 0, 0, fmt.Errorf("counting reports: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, fmt.Errorf("scanning report count: %w", err)
		}
		switch ReportStatus(status) {
		case ReportPending:
			pending = count
		case ReportCompleted:
			completed = count
		}
	}
	return pending, completed, rows.Err()
}

func (s *sqlStore) BeginReportRun(ctx context.Context, id uuid.UUID) (ReportRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning report run: %w", err)
	}
	return &reportRun{tx: tx, store: s, reportID: id}, nil
}

// reportRun wraps a single transaction covering one report run.
type reportRun struct {
	tx       *sql.Tx
	store    *sqlStore
	reportID uuid.UUID
}

func (r *reportRun) SaveWindowResults(ctx context.Context, kind uptime.WindowKind, totals []uptime.StoreTotals) error {
	upCol, downCol, err := windowColumns(kind)
	if err != nil {
		return err
	}

	// Column names come from the fixed window-kind enum, never from input.
	stmt, err := r.tx.PrepareContext(ctx, r.store.rebind(fmt.Sprintf(`
		INSERT INTO report_items (report_id, store_id, %[1]s, %[2]s)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(report_id, store_id) DO UPDATE SET
			%[1]s=excluded.%[1]s,
			%[2]s=excluded.%[2]s`, upCol, downCol)))
	if err != nil {
		return fmt.Errorf("preparing %s upsert: %w", kind, err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, t := range totals {
		if _, err := stmt.ExecContext(ctx, r.reportID.String(), t.StoreID,
			int64(t.Uptime/time.Second), int64(t.Downtime/time.Second)); err != nil {
			return fmt.Errorf("upserting %s results for store %d: %w", kind, t.StoreID, err)
		}
	}
	return nil
}

func (r *reportRun) Complete(ctx context.Context, at time.Time) error {
	res, err := r.tx.ExecContext(ctx, r.store.rebind(`
		UPDATE reports SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`),
		string(ReportCompleted), at.UTC(), r.reportID.String(), string(ReportPending))
	if err != nil {
		return fmt.Errorf("completing report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing report: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("report %s is not pending", r.reportID)
	}

	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("committing report run: %w", err)
	}
	return nil
}

func (r *reportRun) Rollback() error {
	if err := r.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}
