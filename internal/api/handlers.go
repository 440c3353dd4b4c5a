package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/storewatch/storewatchd/internal/report"
	"github.com/storewatch/storewatchd/internal/store"
)

// reportTimeout bounds one background report run.
const reportTimeout = 15 * time.Minute

// csvHeader is the column order of the report download, matching the
// report_items schema.
var csvHeader = []string{
	"store_id",
	"uptime_last_hour", "uptime_last_day", "uptime_last_week",
	"downtime_last_hour", "downtime_last_day", "downtime_last_week",
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Store         store.Store
	Runner        *report.Runner
	Logger        *slog.Logger
	StartTime     time.Time
	StorageDriver string
	StoragePath   string
	Version       string
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// csvCell renders a duration column in whole units of unit, or empty when
// the window produced no row for the store.
func csvCell(d *time.Duration, unit time.Duration) string {
	if d == nil {
		return ""
	}
	return strconv.FormatInt(int64(*d/unit), 10)
}

// TriggerReport handles POST /api/v1/reports
//
// The report is created pending and computed in the background; failures
// are logged, never surfaced, and leave the report pending.
func (h *Handlers) TriggerReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Store.CreateReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create report")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := h.Runner.Run(ctx, rep.ID); err != nil {
			h.Logger.Error("report run failed", "report_id", rep.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"report_id": rep.ID.String(),
	})
}

// GetReport handles GET /api/v1/reports/{report_id}
//
// While pending it answers with a JSON status; once completed it streams
// the result CSV. Hour columns are whole minutes, day and week columns
// whole hours.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("report_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report_id")
		return
	}

	rep, err := h.Store.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get report")
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	if rep.Status != store.ReportCompleted {
		writeJSON(w, http.StatusOK, map[string]string{
			"report_id": rep.ID.String(),
			"status":    string(rep.Status),
		})
		return
	}

	items, err := h.Store.GetReportItems(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get report items")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "report_"+rep.ID.String()+".csv"))
	w.WriteHeader(http.StatusOK)

	if err := WriteReportCSV(w, items); err != nil {
		h.Logger.Error("failed to write report csv", "report_id", id, "error", err)
	}
}

// WriteReportCSV renders report items as CSV. Hour columns are whole
// minutes, day and week columns whole hours; a missing window leaves its
// cells empty. Also used by the CLI report command.
func WriteReportCSV(w io.Writer, items []store.ReportItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range items {
		err := cw.Write([]string{
			strconv.FormatInt(item.StoreID, 10),
			csvCell(item.UptimeLastHour, time.Minute),
			csvCell(item.UptimeLastDay, time.Hour),
			csvCell(item.UptimeLastWeek, time.Hour),
			csvCell(item.DowntimeLastHour, time.Minute),
			csvCell(item.DowntimeLastDay, time.Hour),
			csvCell(item.DowntimeLastWeek, time.Hour),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ListStores handles GET /api/v1/stores
func (h *Handlers) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.Store.GetStores(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stores")
		return
	}

	type storeResponse struct {
		StoreID  int64  `json:"store_id"`
		Timezone string `json:"timezone,omitempty"`
	}

	result := make([]storeResponse, 0, len(stores))
	for _, st := range stores {
		result = append(result, storeResponse{StoreID: st.ID, Timezone: st.Timezone})
	}

	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type dbHealth struct {
		Driver            string `json:"driver"`
		Status            string `json:"status"`
		SizeBytes         int64  `json:"size_bytes,omitempty"`
		TotalObservations int    `json:"total_observations"`
	}
	type reportHealth struct {
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
	}
	type healthResponse struct {
		Status   string       `json:"status"`
		Version  string       `json:"version"`
		Uptime   string       `json:"uptime"`
		Database dbHealth     `json:"database"`
		Reports  reportHealth `json:"reports"`
	}

	resp := healthResponse{
		Status:  "healthy",
		Version: h.Version,
		Uptime:  formatUptime(time.Since(h.StartTime)),
	}

	// Database health (path omitted to avoid exposing filesystem details).
	resp.Database = dbHealth{
		Driver: h.StorageDriver,
		Status: "ok",
	}
	if count, err := h.Store.CountObservations(r.Context()); err == nil {
		resp.Database.TotalObservations = count
	} else {
		resp.Database.Status = "error"
	}
	if h.StorageDriver == "sqlite" && h.StoragePath != "" {
		if info, err := os.Stat(h.StoragePath); err == nil {
			resp.Database.SizeBytes = info.Size()
		}
	}

	if pending, completed, err := h.Store.CountReports(r.Context()); err == nil {
		resp.Reports = reportHealth{Pending: pending, Completed: completed}
	}

	writeJSON(w, http.StatusOK, resp)
}
