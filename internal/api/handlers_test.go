package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storewatch/storewatchd/internal/report"
	"github.com/storewatch/storewatchd/internal/store"
	"github.com/storewatch/storewatchd/internal/uptime"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	stores       []uptime.Store
	hours        []uptime.BusinessHours
	observations []uptime.Observation
	reports      map[uuid.UUID]*store.Report
	items        map[uuid.UUID]map[int64]*store.ReportItem
}

func newMockStore() *mockStore {
	return &mockStore{
		reports: make(map[uuid.UUID]*store.Report),
		items:   make(map[uuid.UUID]map[int64]*store.ReportItem),
	}
}

func (m *mockStore) SaveStores(_ context.Context, s []uptime.Store) error {
	m.stores = append(m.stores, s...)
	return nil
}

func (m *mockStore) SaveBusinessHours(_ context.Context, h []uptime.BusinessHours) error {
	m.hours = append(m.hours, h...)
	return nil
}

func (m *mockStore) SaveObservations(_ context.Context, o []uptime.Observation) error {
	m.observations = append(m.observations, o...)
	return nil
}

func (m *mockStore) GetStores(_ context.Context) ([]uptime.Store, error) {
	return m.stores, nil
}

func (m *mockStore) GetBusinessHours(_ context.Context) ([]uptime.BusinessHours, error) {
	return m.hours, nil
}

func (m *mockStore) GetObservations(_ context.Context, start, end time.Time) ([]uptime.Observation, error) {
	var result []uptime.Observation
	for _, o := range m.observations {
		if !o.Timestamp.Before(start) && o.Timestamp.Before(end) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockStore) LatestObservationTimes(_ context.Context) (map[int64]time.Time, error) {
	latest := make(map[int64]time.Time)
	for _, o := range m.observations {
		if o.Timestamp.After(latest[o.StoreID]) {
			latest[o.StoreID] = o.Timestamp
		}
	}
	return latest, nil
}

func (m *mockStore) CountObservations(_ context.Context) (int, error) {
	return len(m.observations), nil
}

func (m *mockStore) CreateReport(_ context.Context) (*store.Report, error) {
	r := &store.Report{ID: uuid.New(), Status: store.ReportPending, CreatedAt: time.Now().UTC()}
	m.reports[r.ID] = r
	return r, nil
}

func (m *mockStore) GetReport(_ context.Context, id uuid.UUID) (*store.Report, error) {
	return m.reports[id], nil
}

func (m *mockStore) GetReportItems(_ context.Context, id uuid.UUID) ([]store.ReportItem, error) {
	var result []store.ReportItem
	for _, item := range m.items[id] {
		result = append(result, *item)
	}
	return result, nil
}

func (m *mockStore) CountReports(_ context.Context) (pending, completed int, err error) {
	for _, r := range m.reports {
		if r.Status == store.ReportCompleted {
			completed++
		} else {
			pending++
		}
	}
	return pending, completed, nil
}

func (m *mockStore) BeginReportRun(_ context.Context, id uuid.UUID) (store.ReportRun, error) {
	return &mockRun{store: m, reportID: id}, nil
}

func (m *mockStore) Close() error { return nil }

type mockRun struct {
	store    *mockStore
	reportID uuid.UUID
}

func (r *mockRun) SaveWindowResults(_ context.Context, kind uptime.WindowKind, totals []uptime.StoreTotals) error {
	items := r.store.items[r.reportID]
	if items == nil {
		items = make(map[int64]*store.ReportItem)
		r.store.items[r.reportID] = items
	}
	for _, t := range totals {
		item := items[t.StoreID]
		if item == nil {
			item = &store.ReportItem{StoreID: t.StoreID}
			items[t.StoreID] = item
		}
		up, down := t.Uptime, t.Downtime
		switch kind {
		case uptime.WindowHour:
			item.UptimeLastHour, item.DowntimeLastHour = &up, &down
		case uptime.WindowDay:
			item.UptimeLastDay, item.DowntimeLastDay = &up, &down
		case uptime.WindowWeek:
			item.UptimeLastWeek, item.DowntimeLastWeek = &up, &down
		}
	}
	return nil
}

func (r *mockRun) Complete(_ context.Context, at time.Time) error {
	rep := r.store.reports[r.reportID]
	rep.Status = store.ReportCompleted
	rep.CompletedAt = &at
	return nil
}

func (r *mockRun) Rollback() error { return nil }

func setupTestServer(ms *mockStore) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Handlers{
		Store:     ms,
		Runner:    report.NewRunner(ms, logger, ""),
		Logger:    logger,
		StartTime: time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/reports", h.TriggerReport)
	mux.HandleFunc("GET /api/v1/reports/{report_id}", h.GetReport)
	mux.HandleFunc("GET /api/v1/stores", h.ListStores)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	return httptest.NewServer(mux)
}

func TestHandlers_Health(t *testing.T) {
	ms := newMockStore()
	srv := setupTestServer(ms)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want 'healthy'", body["status"])
	}
}

func TestHandlers_ListStores(t *testing.T) {
	ms := newMockStore()
	_ = ms.SaveStores(context.Background(), []uptime.Store{
		{ID: 42, Timezone: "America/Denver"},
		{ID: 99},
	})

	srv := setupTestServer(ms)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stores")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if len(body) != 2 {
		t.Fatalf("got %d stores, want 2", len(body))
	}
	if body[0]["store_id"] != float64(42) || body[0]["timezone"] != "America/Denver" {
		t.Errorf("unexpected first store: %v", body[0])
	}
}

func TestHandlers_TriggerReport(t *testing.T) {
	ms := newMockStore()
	srv := setupTestServer(ms)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/reports", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	id, err := uuid.Parse(body["report_id"])
	if err != nil {
		t.Fatalf("report_id %q is not a uuid: %v", body["report_id"], err)
	}
	if ms.reports[id] == nil {
		t.Error("report was not created in the store")
	}
}

func TestHandlers_GetReport_InvalidID(t *testing.T) {
	srv := setupTestServer(newMockStore())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/reports/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandlers_GetReport_NotFound(t *testing.T) {
	srv := setupTestServer(newMockStore())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/reports/" + uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHandlers_GetReport_Pending(t *testing.T) {
	ms := newMockStore()
	rep, _ := ms.CreateReport(context.Background())

	srv := setupTestServer(ms)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/reports/" + rep.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q, want application/json", ct)
	}

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "pending" {
		t.Errorf("status = %q, want 'pending'", body["status"])
	}
}

func TestHandlers_GetReport_CompletedCSV(t *testing.T) {
	ms := newMockStore()
	rep, _ := ms.CreateReport(context.Background())

	// Seed results the way a run writes them: the day and week windows
	// produced rows for store 42 but the hour window did not, leaving its
	// hour columns empty in the CSV.
	run, _ := ms.BeginReportRun(context.Background(), rep.ID)
	_ = run.SaveWindowResults(context.Background(), uptime.WindowWeek, []uptime.StoreTotals{
		{StoreID: 42, Uptime: 100 * time.Hour, Downtime: 12 * time.Hour},
	})
	_ = run.SaveWindowResults(context.Background(), uptime.WindowDay, []uptime.StoreTotals{
		{StoreID: 42, Uptime: 20 * time.Hour, Downtime: 4 * time.Hour},
	})
	_ = run.Complete(context.Background(), time.Now().UTC())

	srv := setupTestServer(ms)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/reports/" + rep.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("content disposition = %q, want attachment", cd)
	}

	data, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d csv lines, want 2:\n%s", len(lines), data)
	}

	wantHeader := "store_id,uptime_last_hour,uptime_last_day,uptime_last_week,downtime_last_hour,downtime_last_day,downtime_last_week"
	if lines[0] != wantHeader {
		t.Errorf("header = %q, want %q", lines[0], wantHeader)
	}

	// Hour columns empty, day/week in whole hours.
	if lines[1] != "42,,20,100,,4,12" {
		t.Errorf("row = %q, want %q", lines[1], "42,,20,100,,4,12")
	}
}
