package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/rs/zerolog"
)

// ReportBuilder builds usage and process-list reports
type ReportBuilder interface {
	BuildReport(ctx context.Context, req reports.DateRangeRequest) *reports.UsageReport
	BuildProcessList(ctx context.Context, instance reports.InstanceRef) *reports.ProcessReport
}

// InstanceService is the admin instance API used by the handlers
type InstanceService interface {
	ListInstances(ctx context.Context, f openstack.InstanceFilter) ([]openstack.Instance, error)
	GetInstance(ctx context.Context, id string) (openstack.Instance, error)
	ActionLog(ctx context.Context, id string) ([]openstack.Action, error)
	ConsoleLog(ctx context.Context, id string, length int) (string, error)
}

type Handler struct {
	reports   ReportBuilder
	instances InstanceService
	logLength int
}

func NewHandler(reportBuilder ReportBuilder, instances InstanceService, logLength int) *Handler {
	return &Handler{
		reports:   reportBuilder,
		instances: instances,
		logLength: logLength,
	}
}

// GetUsage serves the usage report as JSON, or as a CSV download with
// format=csv. An unusable date range is a 400.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	q := r.URL.Query()

	report := h.reports.BuildReport(ctx, reports.DateRangeRequest{
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		Period:   q.Get("period"),
	})
	for _, warning := range report.Warnings {
		if errors.Is(warning, reports.ErrInput) {
			http.Error(w, warning.Error(), http.StatusBadRequest)
			return
		}
	}
	if sorted, _ := strconv.ParseBool(q.Get("sort")); sorted {
		reports.SortRows(report.Rows)
	}

	var err error
	switch q.Get("format") {
	case reports.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="usage_report.csv"`)
		err = report.OutputCSV(w)
	case reports.FormatJSON, "":
		w.Header().Set("Content-Type", "application/json")
		err = report.OutputJSON(w)
	default:
		http.Error(w, "unsupported format: "+q.Get("format"), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to encode usage report")
	}
}

func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	q := r.URL.Query()

	instances, err := h.instances.ListInstances(ctx, openstack.InstanceFilter{
		Project: q.Get("project"),
		Host:    q.Get("host"),
		Name:    q.Get("name"),
		IP:      q.Get("ip"),
		IP6:     q.Get("ip6"),
		Status:  q.Get("status"),
		Image:   q.Get("image"),
		Flavor:  q.Get("flavor"),
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to list instances")
		http.Error(w, "unable to retrieve instances", http.StatusBadGateway)
		return
	}
	if instances == nil {
		instances = []openstack.Instance{}
	}

	writeJSON(w, logger, instances)
}

func (h *Handler) GetProcesses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := chi.URLParam(r, "id")

	instance, ok := h.instance(w, r, id)
	if !ok {
		return
	}

	report := h.reports.BuildProcessList(ctx, reports.InstanceRef{ID: instance.ID, Name: instance.Name})
	w.Header().Set("Content-Type", "application/json")
	if err := report.OutputJSON(w); err != nil {
		logger.Error().
			Err(err).
			Str("instance", id).
			Msg("failed to encode process list")
	}
}

func (h *Handler) GetActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := chi.URLParam(r, "id")

	actions, err := h.instances.ActionLog(ctx, id)
	if err != nil {
		if openstack.IsNotFound(err) {
			http.Error(w, "instance not found: "+id, http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("instance", id).Msg("failed to list instance actions")
		http.Error(w, "unable to retrieve instance audit information", http.StatusBadGateway)
		return
	}
	if actions == nil {
		actions = []openstack.Action{}
	}

	writeJSON(w, logger, actions)
}

// GetConsoleLog serves the console output as text. A log that cannot be
// fetched is replaced by a notice rather than failing the request.
func (h *Handler) GetConsoleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	id := chi.URLParam(r, "id")

	length := h.logLength
	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid 'length': expected a positive integer", http.StatusBadRequest)
			return
		}
		length = n
	}

	out, err := h.instances.ConsoleLog(ctx, id, length)
	if err != nil {
		logger.Warn().Err(err).Str("instance", id).Msg("unable to get console log")
		out = openstack.UnavailableLogMessage(id)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(out)); err != nil {
		logger.Error().Err(err).Msg("failed to write console log")
	}
}

func (h *Handler) instance(w http.ResponseWriter, r *http.Request, id string) (openstack.Instance, bool) {
	instance, err := h.instances.GetInstance(r.Context(), id)
	if err != nil {
		if openstack.IsNotFound(err) {
			http.Error(w, "instance not found: "+id, http.StatusNotFound)
			return openstack.Instance{}, false
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("instance", id).Msg("failed to get instance")
		http.Error(w, "unable to retrieve instance details", http.StatusBadGateway)
		return openstack.Instance{}, false
	}
	return instance, true
}

func writeJSON(w http.ResponseWriter, logger *zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().
			Err(err).
			Msg("failed to encode response")
	}
}
