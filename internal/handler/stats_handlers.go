package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/handler/dto"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/mtlprog/taskgate/internal/repository"
)

// handleListPending returns the project's approval queue, longest-waiting first.
func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	filters, ok := parsePendingFilters(w, r, userID)
	if !ok {
		return
	}

	types := make([]domain.TaskType, 0, len(filters.Types))
	for _, t := range filters.Types {
		types = append(types, domain.TaskType(t))
	}

	tasks, total, err := h.approvals.ListPending(r.Context(), repository.PendingFilters{
		ProjectID:  projectID,
		Types:      types,
		AssigneeID: filters.AssigneeID,
		Escalated:  filters.Escalated,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	items := make([]dto.PendingTask, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, dto.ToPendingTask(task, policy.Progress(task.Checklist)))
	}

	respondJSON(w, http.StatusOK, dto.PendingListResponse{
		Tasks:  items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// handleGetStats returns approval statistics for a project.
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	projectID, ok := extractUUID(w, r, "id")
	if !ok {
		return
	}

	filters := dto.StatsFilters{Period: r.URL.Query().Get("period")}
	if filters.Period == "" {
		filters.Period = "week"
	}

	now := time.Now().UTC()
	var periodStart *time.Time
	switch filters.Period {
	case "day":
		start := now.AddDate(0, 0, -1)
		periodStart = &start
	case "week":
		start := now.AddDate(0, 0, -7)
		periodStart = &start
	case "month":
		start := now.AddDate(0, -1, 0)
		periodStart = &start
	case "all":
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid period, must be: day, week, month, all")
		return
	}

	var since time.Time
	if periodStart != nil {
		since = *periodStart
	}

	stats, err := h.approvals.Stats(r.Context(), projectID, userID, since)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(filters.Period, periodStart, now, stats))
}

// parsePendingFilters reads queue filters from the query string.
// Returns false if a filter is invalid (error already sent to client).
func parsePendingFilters(w http.ResponseWriter, r *http.Request, userID string) (dto.PendingFilters, bool) {
	query := r.URL.Query()
	filters := dto.PendingFilters{Limit: 50}

	if typeParam := query.Get("type"); typeParam != "" {
		for _, t := range splitAndTrim(strings.ToUpper(typeParam), ",") {
			if !domain.TaskType(t).IsValid() {
				respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid task type: "+t)
				return filters, false
			}
			filters.Types = append(filters.Types, t)
		}
	}

	if assignee := query.Get("assignee"); assignee != "" {
		if assignee == "me" {
			assignee = userID
		}
		filters.AssigneeID = &assignee
	}

	filters.Escalated = query.Get("escalated") == "true"

	if limitParam := query.Get("limit"); limitParam != "" {
		if n, err := strconv.Atoi(limitParam); err == nil && n > 0 && n <= 200 {
			filters.Limit = n
		}
	}
	if offsetParam := query.Get("offset"); offsetParam != "" {
		if n, err := strconv.Atoi(offsetParam); err == nil && n >= 0 {
			filters.Offset = n
		}
	}

	return filters, true
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
