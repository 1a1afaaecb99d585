package handler

import (
	"net/http"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/policy"
)

// handleGetTask returns a task with its approval requests and checklist.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.approvals.GetTask(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskDetail(task, policy.Progress(task.Checklist)))
}

// handleGetEvents returns the task's approval audit log.
func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	events, err := h.approvals.GetEvents(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := make([]dto.TaskEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, dto.ToTaskEventResponse(event))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleRequestApproval submits a task for approval.
// Tasks that need no approval under the current policy are left untouched and returned with a null event.
func (h *Handler) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	event, err := h.approvals.RequestApproval(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if event != nil {
		status = http.StatusCreated
	}
	h.respondTransition(w, r, status, taskID, userID, event)
}

// handleApprove approves the pending request.
func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.ApproveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.approvals.Approve(r.Context(), taskID, req.RequestID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.respondTransition(w, r, http.StatusOK, taskID, userID, event)
}

// handleReject rejects the pending request and sends the task back to IN_PROGRESS.
func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.RejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.approvals.Reject(r.Context(), taskID, req.RequestID, userID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.respondTransition(w, r, http.StatusOK, taskID, userID, event)
}

// handleBypass force-approves the pending request.
func (h *Handler) handleBypass(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	var req dto.BypassRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.approvals.Bypass(r.Context(), taskID, req.RequestID, userID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.respondTransition(w, r, http.StatusOK, taskID, userID, event)
}

// handleGetChecklist returns the task's checklist with progress.
func (h *Handler) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	items, progress, err := h.approvals.GetChecklist(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChecklistResponse(items, progress))
}

// handleToggleChecklistItem checks or unchecks a checklist item.
func (h *Handler) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	taskID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := extractUUID(w, r, "itemId")
	if !ok {
		return
	}

	var req dto.ToggleChecklistItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.approvals.ToggleChecklistItem(r.Context(), taskID, itemID, userID, *req.Checked); err != nil {
		respondDomainError(w, err)
		return
	}

	items, progress, err := h.approvals.GetChecklist(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToChecklistResponse(items, progress))
}

// respondTransition writes the committed event together with the task as it is now.
func (h *Handler) respondTransition(w http.ResponseWriter, r *http.Request, status int, taskID, userID string, event *domain.TaskEvent) {
	task, err := h.approvals.GetTask(r.Context(), taskID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.TransitionResponse{
		Task: dto.ToTaskDetail(task, policy.Progress(task.Checklist)),
	}
	if event != nil {
		e := dto.ToTaskEventResponse(event)
		resp.Event = &e
	}

	respondJSON(w, status, resp)
}
