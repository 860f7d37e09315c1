// Package handler exposes the operational HTTP surface: health, metrics and
// the manual trigger endpoints. The registrant-facing REST API lives in the
// surrounding application, not here.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"immuna/internal/platform/middleware"
	"immuna/internal/recalc/jobs"
	"immuna/internal/recalc/runner"
	dErrors "immuna/pkg/domain-errors"
	"immuna/pkg/platform/httputil"
)

// RecalcRunner triggers one recalculation run.
type RecalcRunner interface {
	RunRecalculation(ctx context.Context, batchSize, partitionCount int) (runner.Report, error)
}

// SweepRunner triggers the status-move sweeps.
type SweepRunner interface {
	RunImmunizeSweep(ctx context.Context) (jobs.Report, error)
	RunBoosterUnlockSweep(ctx context.Context) (jobs.Report, error)
}

// Handler wires the operational endpoints.
type Handler struct {
	runner  RecalcRunner
	sweeper SweepRunner
	logger  *slog.Logger

	defaultBatchSize      int
	defaultPartitionCount int
}

// New constructs the operational handler.
func New(r RecalcRunner, s SweepRunner, logger *slog.Logger, batchSize, partitionCount int) *Handler {
	return &Handler{
		runner:                r,
		sweeper:               s,
		logger:                logger,
		defaultBatchSize:      batchSize,
		defaultPartitionCount: partitionCount,
	}
}

// Router builds the chi router, guarding the trigger endpoints with admin
// auth.
func (h *Handler) Router(adminJWTKey string) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(adminJWTKey))
		r.Post("/admin/recalculation/run", h.handleRecalculationRun)
		r.Post("/admin/sweeps/run", h.handleSweepsRun)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runRequest struct {
	BatchSize      int `json:"batch_size"`
	PartitionCount int `json:"partition_count"`
}

func (h *Handler) handleRecalculationRun(w http.ResponseWriter, r *http.Request) {
	req := runRequest{
		BatchSize:      h.defaultBatchSize,
		PartitionCount: h.defaultPartitionCount,
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if req.BatchSize <= 0 || req.PartitionCount < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "batch_size must be positive and partition_count non-negative"))
		return
	}

	report, err := h.runner.RunRecalculation(r.Context(), req.BatchSize, req.PartitionCount)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual recalculation run failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "recalculation run failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"claimed":   report.Claimed,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})
}

func (h *Handler) handleSweepsRun(w http.ResponseWriter, r *http.Request) {
	immunize, err := h.sweeper.RunImmunizeSweep(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "immunize sweep failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "immunize sweep failed"))
		return
	}
	booster, err := h.sweeper.RunBoosterUnlockSweep(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "booster unlock sweep failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "booster unlock sweep failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"immunize": map[string]int{
			"scanned": immunize.Scanned, "moved": immunize.Moved, "failed": immunize.Failed,
		},
		"booster_unlock": map[string]int{
			"scanned": booster.Scanned, "moved": booster.Moved, "failed": booster.Failed,
		},
	})
}
