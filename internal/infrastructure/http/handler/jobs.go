// Package handler implements the job invocation endpoints: engine jobs
// (worker, maintenance, monitor, scheduler) and synchronous runs of the
// enrichment handlers.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/melodex/melodex/internal/application/queue"
	"github.com/melodex/melodex/internal/domain"
	"github.com/melodex/melodex/internal/infrastructure/http/response"
)

// Jobs exposes the pipeline's jobs over POST endpoints. Every endpoint runs
// the job inline and returns its summary; scheduling cadence lives in the
// scheduler binary, not here.
type Jobs struct {
	dispatcher  *queue.Dispatcher
	maintenance *queue.Maintenance
	monitor     *queue.Monitor
	schedule    *queue.Schedule
	registry    *queue.Registry
}

// NewJobs creates the jobs handler.
func NewJobs(dispatcher *queue.Dispatcher, maintenance *queue.Maintenance, monitor *queue.Monitor, schedule *queue.Schedule, registry *queue.Registry) *Jobs {
	return &Jobs{
		dispatcher:  dispatcher,
		maintenance: maintenance,
		monitor:     monitor,
		schedule:    schedule,
		registry:    registry,
	}
}

// Routes mounts the job endpoints on a fresh router.
func (h *Jobs) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/worker", h.Worker)
	r.Post("/maintenance", h.Maintenance)
	r.Post("/monitor", h.Monitor)
	r.Post("/scheduler", h.Scheduler)
	r.Post("/{batchType}", h.Invoke)
	return r
}

// Worker runs one dispatcher tick.
func (h *Jobs) Worker(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.RunTickOnce(r.Context())
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.OK(w, result)
}

// Maintenance runs one maintenance pass.
func (h *Jobs) Maintenance(w http.ResponseWriter, r *http.Request) {
	result, err := h.maintenance.RunOnce(r.Context())
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.OK(w, result)
}

// monitorResponse is a health report plus the alert delivery outcome.
type monitorResponse struct {
	*queue.HealthReport
	AlertSent queue.SendResult `json:"alert_sent"`
}

// Monitor runs one health check.
func (h *Jobs) Monitor(w http.ResponseWriter, r *http.Request) {
	report, sent, err := h.monitor.RunOnce(r.Context())
	if err != nil {
		response.InternalError(w, r, err)
		return
	}
	response.OK(w, monitorResponse{HealthReport: report, AlertSent: sent})
}

// schedulerRequest optionally pins the evaluation time, used by tests and
// manual replays.
type schedulerRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

// Scheduler evaluates one schedule tick.
func (h *Jobs) Scheduler(w http.ResponseWriter, r *http.Request) {
	var req schedulerRequest
	if err := decodeBody(r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	now := time.Now().UTC()
	if req.Now != nil {
		now = req.Now.UTC()
	}

	fired := h.schedule.Tick(r.Context(), now)
	response.OK(w, map[string]any{"fired": fired})
}

// Invoke runs the registered handler for the path's batch type synchronously
// with the request body as metadata. The registry's aliases make
// process-album-page, process-track-page and identify-producers resolve to
// their pipeline handlers.
func (h *Jobs) Invoke(w http.ResponseWriter, r *http.Request) {
	batchType := chi.URLParam(r, "batchType")

	jobHandler, ok := h.registry.Resolve(batchType)
	if !ok {
		response.NotFound(w, "job "+batchType)
		return
	}

	var metadata domain.Metadata
	if err := decodeBody(r, &metadata); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if metadata == nil {
		metadata = domain.Metadata{}
	}

	result, err := jobHandler.Handle(r.Context(), metadata)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if batchType == domain.TypeDiscoverArtists {
		response.OK(w, map[string]int{
			"artists_found":   result.ItemsTotal,
			"batches_created": result.ItemsProcessed,
		})
		return
	}
	response.OK(w, map[string]int{
		"items_processed": result.ItemsProcessed,
		"items_total":     result.ItemsTotal,
		"items_failed":    result.ItemsFailed,
	})
}

// decodeBody unmarshals an optional JSON body; an empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
