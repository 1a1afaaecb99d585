package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/metrics"
	"github.com/mtlprog/taskgate/internal/middleware"
	"github.com/mtlprog/taskgate/internal/repository"
	"github.com/mtlprog/taskgate/internal/service"
	"github.com/mtlprog/taskgate/internal/static"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	approvals      *service.ApprovalService
	policies       *service.PolicyService
	metrics        *metrics.Metrics
	authMiddleware *middleware.AuthMiddleware
}

// New creates a new Handler instance with all dependencies.
func New(
	pool *pgxpool.Pool,
	approvals *service.ApprovalService,
	policies *service.PolicyService,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		pool:           pool,
		approvals:      approvals,
		policies:       policies,
		metrics:        m,
		authMiddleware: middleware.NewAuthMiddleware(repository.NewUserRepository(pool)),
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api.md", h.handleAPIDoc)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}

	// Approval policy
	mux.Handle("GET /api/v1/projects/{id}/approval-policy", auth(h.handleGetPolicy))
	mux.Handle("PUT /api/v1/projects/{id}/approval-policy", auth(h.handleUpdatePolicy))
	mux.Handle("POST /api/v1/projects/{id}/approval-policy/toggle", auth(h.handleTogglePolicy))
	mux.Handle("POST /api/v1/projects/{id}/approval-policy/apply-template", auth(h.handleApplyTemplate))

	// Project approval queue
	mux.Handle("GET /api/v1/projects/{id}/approvals/pending", auth(h.handleListPending))
	mux.Handle("GET /api/v1/projects/{id}/approvals/stats", auth(h.handleGetStats))

	// Task approval lifecycle
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("GET /api/v1/tasks/{id}/events", auth(h.handleGetEvents))
	mux.Handle("POST /api/v1/tasks/{id}/approval/request", auth(h.handleRequestApproval))
	mux.Handle("POST /api/v1/tasks/{id}/approval/approve", auth(h.handleApprove))
	mux.Handle("POST /api/v1/tasks/{id}/approval/reject", auth(h.handleReject))
	mux.Handle("POST /api/v1/tasks/{id}/approval/bypass", auth(h.handleBypass))
	mux.Handle("GET /api/v1/tasks/{id}/checklist", auth(h.handleGetChecklist))
	mux.Handle("PATCH /api/v1/tasks/{id}/checklist/{itemId}", auth(h.handleToggleChecklistItem))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleAPIDoc serves the embedded API reference.
func (h *Handler) handleAPIDoc(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(static.APIMd)); err != nil {
		slog.Error("failed to write api.md", "error", err)
	}
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a service error to its HTTP response.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// extractUUID extracts and validates a UUID path parameter.
// Returns (value, true) if valid, ("", false) if invalid (error already sent to client).
func extractUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" is required")
		return "", false
	}

	if _, err := uuid.Parse(value); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", name+" must be a valid UUID")
		return "", false
	}

	return value, true
}

// currentUserID returns the authenticated user's ID.
// Returns ("", false) if the request is unauthenticated (error already sent to client).
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, err := middleware.GetUserFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return "", false
	}
	return user.ID, true
}

// validate checks `validate` struct tags on request bodies, reporting JSON field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes the request body into v and validates it.
// Returns false if the body is malformed or invalid (error already sent to client).
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
				fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
			return false
		}
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}
