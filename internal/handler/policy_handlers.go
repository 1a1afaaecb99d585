package handler

import (
	"net/http"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler/dto"
)

// handleGetPolicy returns the project's approval policy, or the default one.
func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.policies.ViewPolicy(r.Context(), projectID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// handleUpdatePolicy replaces the project's approval policy.
func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var p domain.Policy
	if !decodeJSON(w, r, &p) {
		return
	}

	saved, err := h.policies.UpdatePolicy(r.Context(), projectID, userID, &p)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, saved)
}

// handleTogglePolicy switches approval enforcement on or off.
func (h *Handler) handleTogglePolicy(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.TogglePolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.policies.ToggleEnabled(r.Context(), projectID, userID, *req.Enabled)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// handleApplyTemplate replaces the policy with a built-in template.
func (h *Handler) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ApplyTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.policies.ApplyTemplate(r.Context(), projectID, userID, req.Template)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}
