// Package importer bulk-loads the three reference CSVs (stores, business
// hours, observations) into the store.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/storewatch/storewatchd/internal/store"
	"github.com/storewatch/storewatchd/internal/uptime"
)

// chunkSize bounds how many parsed rows are buffered before a write; the
// observation log CSVs run to millions of rows.
const chunkSize = 5000

// observation timestamp layouts, most specific first. The canonical export
// format carries a trailing " UTC" suffix.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999 UTC",
	"2006-01-02 15:04:05 UTC",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Importer parses CSV exports and writes them to a Store in batches.
type Importer struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an Importer.
func New(s store.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: s, logger: logger}
}

// header maps column names (trimmed, lowercased) to their positions, so
// column order in the export does not matter.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	h := make(header, len(record))
	for i, name := range record {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h, nil
}

// col returns the value for the first matching column name.
func (h header) col(record []string, names ...string) (string, error) {
	for _, name := range names {
		if i, ok := h[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i]), nil
		}
	}
	return "", fmt.Errorf("missing column %q", names[0])
}

// ImportStores loads the store/timezone CSV (columns store_id,
// timezone_str). Returns the number of rows imported.
func (im *Importer) ImportStores(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	total := 0
	batch := make([]uptime.Store, 0, chunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.SaveStores(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		id, err := parseStoreID(h, record)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		tz, err := h.col(record, "timezone_str", "timezone")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		batch = append(batch, uptime.Store{ID: id, Timezone: tz})
		if len(batch) == chunkSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	im.logger.Info("imported stores", "rows", total)
	return total, nil
}

// ImportBusinessHours loads the business-hours CSV (columns store_id,
// dayOfWeek, start_time_local, end_time_local; Monday=0).
func (im *Importer) ImportBusinessHours(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	total := 0
	batch := make([]uptime.BusinessHours, 0, chunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.SaveBusinessHours(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		id, err := parseStoreID(h, record)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		dayStr, err := h.col(record, "dayofweek", "day_of_week", "day")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		day, err := strconv.Atoi(dayStr)
		if err != nil || day < 0 || day > 6 {
			return total, fmt.Errorf("line %d: invalid day of week %q", line, dayStr)
		}
		openStr, err := h.col(record, "start_time_local", "open_time")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		closeStr, err := h.col(record, "end_time_local", "close_time")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		open, err := uptime.ParseClock(openStr)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		cls, err := uptime.ParseClock(closeStr)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		batch = append(batch, uptime.BusinessHours{
			StoreID:   id,
			DayOfWeek: day,
			Open:      open,
			Close:     cls,
		})
		if len(batch) == chunkSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	im.logger.Info("imported business hours", "rows", total)
	return total, nil
}

// ImportObservations loads the status-poll CSV (columns store_id,
// timestamp_utc, status). Rows are appended to the observation log in file
// order; duplicates are not rejected.
func (im *Importer) ImportObservations(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return 0, err
	}

	total := 0
	batch := make([]uptime.Observation, 0, chunkSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.SaveObservations(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		id, err := parseStoreID(h, record)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		tsStr, err := h.col(record, "timestamp_utc", "timestamp")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		statusStr, err := h.col(record, "status")
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		status, err := parseStatus(statusStr)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}

		batch = append(batch, uptime.Observation{
			StoreID:   id,
			Timestamp: ts,
			Status:    status,
		})
		if len(batch) == chunkSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	im.logger.Info("imported observations", "rows", total)
	return total, nil
}

func parseStoreID(h header, record []string) (int64, error) {
	s, err := h.col(record, "store_id")
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid store_id %q", s)
	}
	return id, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", s)
}

func parseStatus(s string) (uptime.Status, error) {
	switch strings.ToLower(s) {
	case string(uptime.StatusActive):
		return uptime.StatusActive, nil
	case string(uptime.StatusInactive):
		return uptime.StatusInactive, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}
