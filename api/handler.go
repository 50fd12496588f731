// Package api exposes the dispatch engine over HTTP. Handlers validate
// request bodies, delegate to the manager and translate its error taxonomy
// to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/strayaid/rescuedispatch/core/dispatch"
	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/infra/logger"
)

// Handler contains all HTTP handlers.
type Handler struct {
	manager  *dispatch.Manager
	validate *validator.Validate
	log      logger.Logger
}

// NewHandler creates a new handler instance.
func NewHandler(manager *dispatch.Manager, log logger.Logger) *Handler {
	return &Handler{
		manager:  manager,
		validate: validator.New(),
		log:      log,
	}
}

// Router builds the API route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reports/{id}/dispatch", h.DispatchHandler).Methods("POST")
	api.HandleFunc("/reports/{id}/assignments", h.ReportAssignmentsHandler).Methods("GET")
	api.HandleFunc("/assignments/{id}", h.GetAssignmentHandler).Methods("GET")
	api.HandleFunc("/assignments/{id}/accept", h.AcceptHandler).Methods("POST")
	api.HandleFunc("/assignments/{id}/status", h.UpdateStatusHandler).Methods("POST")
	api.HandleFunc("/assignments/{id}/location", h.LocationHandler).Methods("POST")
	api.HandleFunc("/assignments/{id}/complete", h.CompleteHandler).Methods("POST")
	api.HandleFunc("/assignments/{id}/cancel", h.CancelHandler).Methods("POST")
	api.HandleFunc("/volunteers/{id}/rescues", h.AvailableRescuesHandler).Methods("GET")
	r.HandleFunc("/health", h.HealthHandler).Methods("GET")
	return r
}

type acceptRequest struct {
	VolunteerID      string     `json:"volunteer_id" validate:"required"`
	Type             string     `json:"type" validate:"omitempty,oneof=PRIMARY BACKUP TRANSPORT MEDICAL"`
	EstimatedArrival *time.Time `json:"estimated_arrival"`
	Notes            string     `json:"notes"`
}

type statusRequest struct {
	VolunteerID string `json:"volunteer_id" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=EN_ROUTE ON_SCENE NO_SHOW"`
	Notes       string `json:"notes"`
}

type locationRequest struct {
	VolunteerID string  `json:"volunteer_id" validate:"required"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lng         float64 `json:"lng" validate:"min=-180,max=180"`
}

type completeRequest struct {
	VolunteerID string `json:"volunteer_id" validate:"required"`
	Outcome     string `json:"outcome" validate:"required,oneof=SUCCESS PARTIAL UNSUCCESSFUL ANIMAL_GONE REFERRED"`
	Notes       string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// DispatchHandler runs candidate matching for a report and creates
// assignments for the top candidates.
func (h *Handler) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]
	res, err := h.manager.Dispatch(r.Context(), reportID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, res)
}

// AcceptHandler claims an assignment for a volunteer.
func (h *Handler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts := dispatch.AcceptOptions{
		Type:             model.AssignmentType(req.Type),
		EstimatedArrival: req.EstimatedArrival,
		Notes:            req.Notes,
	}
	a, err := h.manager.Accept(r.Context(), mux.Vars(r)["id"], req.VolunteerID, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// UpdateStatusHandler moves an assignment along its lifecycle.
func (h *Handler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.manager.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.VolunteerID, model.AssignmentStatus(req.Status), req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// LocationHandler appends a location ping to the assignment trail.
func (h *Handler) LocationHandler(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !h.decode(w, r, &req) {
		return
	}
	pos := model.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if err := h.manager.AppendLocation(r.Context(), mux.Vars(r)["id"], req.VolunteerID, pos); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteHandler finishes an assignment with an outcome.
func (h *Handler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.manager.Complete(r.Context(), mux.Vars(r)["id"], req.VolunteerID, model.Outcome(req.Outcome), req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// CancelHandler withdraws an assignment, e.g. by a coordinator.
func (h *Handler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.manager.Cancel(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// GetAssignmentHandler returns one assignment.
func (h *Handler) GetAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.manager.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// ReportAssignmentsHandler lists the assignments of one report.
func (h *Handler) ReportAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	as, err := h.manager.ListByReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, as)
}

// AvailableRescuesHandler lists pending rescues a volunteer could respond to.
func (h *Handler) AvailableRescuesHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.manager.ListAvailableRescues(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Errorf("encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrAlreadyAssigned), errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrDuplicateAssignment):
		status = http.StatusConflict
	case errors.Is(err, model.ErrNoCandidates):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidCoordinate):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Errorf("request failed: %v", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
