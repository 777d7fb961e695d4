package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/feedforge/activitylog/internal/core/domain"
	"github.com/feedforge/activitylog/internal/core/usecase"
	"github.com/go-chi/chi/v5"
)

const (
	timeFormat      = "2006-01-02T15:04:05.999999999Z07:00"
	maxJSONBodySize = 1 << 20
)

type Handler struct {
	activities *usecase.ActivityService
}

func NewHandler(activities *usecase.ActivityService) *Handler {
	return &Handler{activities: activities}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Post("/v1/activities", h.logActivity)
	r.Get("/v1/activities", h.listActivities)
	r.Get("/v1/activities/{id}", h.getActivity)
	r.Get("/v1/activities/{id}/description", h.describeActivity)
	r.Patch("/v1/activities/{id}/properties", h.updateProperties)
	r.Delete("/v1/activities/{id}", h.deleteActivity)

	return r
}

type entityRefRequest struct {
	Role string `json:"role"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

type logRequest struct {
	Action     string                    `json:"action"`
	Template   string                    `json:"template"`
	OccurredAt string                    `json:"occurred_at,omitempty"`
	Properties map[string]any            `json:"properties,omitempty"`
	Entities   []entityRefRequest        `json:"entities,omitempty"`
	Changes    map[string]map[string]any `json:"changes,omitempty"`
}

type activityResponse struct {
	ID         string             `json:"id"`
	Action     string             `json:"action"`
	Template   string             `json:"template"`
	Properties map[string]any     `json:"properties"`
	Entities   []entityRefRequest `json:"entities"`
	OccurredAt string             `json:"occurred_at"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at"`
}

type descriptionResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type propertiesRequest struct {
	Properties map[string]any `json:"properties"`
}

func (h *Handler) logActivity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if err := validateLogRequest(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req logRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	builder := domain.NewBuilder(nil).
		Action(req.Action).
		Template(req.Template).
		Properties(req.Properties).
		ChangesFromMapping(req.Changes)
	for _, ref := range req.Entities {
		builder.Entity(ref.Role, domain.EntityKey{Type: ref.Type, ID: ref.ID})
	}
	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "occurred_at must be RFC3339")
			return
		}
		builder.OccurredAt(occurredAt)
	}

	rec, err := builder.Finalize()
	if err != nil {
		handleDomainError(w, err)
		return
	}

	stored, err := h.activities.Log(r.Context(), rec)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityResponse(stored))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.activities.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityResponse(rec))
}

func (h *Handler) describeActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	viewer, ok := parseViewer(w, r)
	if !ok {
		return
	}

	var text string
	var err error
	if r.URL.Query().Get("fresh") == "1" {
		text, err = h.activities.DescribeFresh(r.Context(), id, viewer)
	} else {
		text, err = h.activities.Describe(r.Context(), id, viewer)
	}
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, descriptionResponse{ID: id, Description: text})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	filter := domain.ActivityFilter{
		Action: r.URL.Query().Get("action"),
		Property: domain.PropertyFilter{
			Path:  r.URL.Query().Get("prop_path"),
			Op:    r.URL.Query().Get("prop_op"),
			Value: r.URL.Query().Get("prop_value"),
		},
		Limit: limit,
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		filter.Before = before
	}

	records, err := h.activities.List(r.Context(), filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	items := make([]activityResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, toActivityResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) updateProperties(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var req propertiesRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Properties) == 0 {
		writeError(w, http.StatusBadRequest, "properties must not be empty")
		return
	}

	rec, err := h.activities.UpdateProperties(r.Context(), id, req.Properties)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityResponse(rec))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.activities.Delete(r.Context(), id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func parseViewer(w http.ResponseWriter, r *http.Request) (*domain.EntityKey, bool) {
	viewerType := r.URL.Query().Get("viewer_type")
	viewerID := r.URL.Query().Get("viewer_id")
	if viewerType == "" && viewerID == "" {
		return nil, true
	}
	if viewerType == "" || viewerID == "" {
		writeError(w, http.StatusBadRequest, "viewer_type and viewer_id must be supplied together")
		return nil, false
	}
	return &domain.EntityKey{Type: viewerType, ID: viewerID}, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func toActivityResponse(rec domain.ActivityRecord) activityResponse {
	entities := make([]entityRefRequest, 0, len(rec.EntityRefs))
	for _, ref := range rec.EntityRefs {
		entities = append(entities, entityRefRequest{Role: ref.Role, Type: ref.Entity.Type, ID: ref.Entity.ID})
	}
	return activityResponse{
		ID:         rec.ID,
		Action:     rec.Action,
		Template:   rec.Template,
		Properties: rec.Properties,
		Entities:   entities,
		OccurredAt: rec.OccurredAt.UTC().Format(timeFormat),
		CreatedAt:  rec.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:  rec.UpdatedAt.UTC().Format(timeFormat),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingAction),
		errors.Is(err, domain.ErrMissingTemplate),
		errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "activitylog",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/activities": map[string]any{
				"post": map[string]any{"summary": "Log activity"},
				"get":  map[string]any{"summary": "List activities"},
			},
			"/v1/activities/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get activity"},
				"delete": map[string]any{"summary": "Delete activity"},
			},
			"/v1/activities/{id}/description": map[string]any{
				"get": map[string]any{"summary": "Render activity description"},
			},
			"/v1/activities/{id}/properties": map[string]any{
				"patch": map[string]any{"summary": "Merge activity properties"},
			},
		},
	}
}
