package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alecgard/cascade/internal/work"
	"github.com/go-chi/chi/v5"
)

// objectivesHandler groups objective HTTP handlers scoped to the role in the URL.
type objectivesHandler struct {
	store ObjectiveStore
}

func newObjectivesHandler(store ObjectiveStore) *objectivesHandler {
	return &objectivesHandler{store: store}
}

func validateObjectiveFields(name *string, priority *work.Priority) string {
	if name != nil && strings.TrimSpace(*name) == "" {
		return "Objective name is required."
	}
	if priority != nil && *priority != "" && !priority.Valid() {
		return "Priority must be one of VERY_HIGH, HIGH, MEDIUM, LOW or VERY_LOW."
	}
	return ""
}

// List handles GET /roles/{roleId}/objectives.
func (h *objectivesHandler) List(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleId")

	owned, err := h.store.ListOwned(r.Context(), roleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	assigned, err := h.store.ListAssigned(r.Context(), roleID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"ownedObjectives":    owned,
		"assignedObjectives": assigned,
	}, "Objectives retrieved successfully.")
}

// Create handles POST /roles/{roleId}/objectives.
func (h *objectivesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in work.ObjectiveInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateObjectiveFields(&in.Name, &in.Priority); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	o, err := h.store.Create(r.Context(), roleID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "create", "objective", o.ID, "role_id", roleID)
	writeSuccess(w, http.StatusCreated, map[string]any{"objective": o}, "Objective created successfully.")
}

// Get handles GET /roles/{roleId}/objectives/{objectiveId}.
func (h *objectivesHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetByID(r.Context(), chi.URLParam(r, "objectiveId"))
	if err != nil {
		if errors.Is(err, work.ErrObjectiveNotFound) {
			writeError(w, http.StatusNotFound, "Objective not found.", "Invalid Objective ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	if !o.AccessibleBy(chi.URLParam(r, "roleId")) {
		writeError(w, http.StatusForbidden, "Access denied.", "Objective not accessible by the specified role.")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"objective": o}, "Objective retrieved successfully.")
}

// Update handles PUT /roles/{roleId}/objectives/{objectiveId}.
func (h *objectivesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch work.ObjectivePatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateObjectiveFields(patch.Name, patch.Priority); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	roleID := chi.URLParam(r, "roleId")
	objectiveID := chi.URLParam(r, "objectiveId")
	o, err := h.store.Update(r.Context(), roleID, objectiveID, patch)
	if err != nil {
		if errors.Is(err, work.ErrObjectiveNotFound) {
			writeError(w, http.StatusNotFound, "Objective not found.", "Invalid ID for objective or role.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "update", "objective", objectiveID, "role_id", roleID)
	writeSuccess(w, http.StatusOK, map[string]any{"updatedObjective": o}, "Objective updated successfully.")
}

// Delete handles DELETE /roles/{roleId}/objectives/{objectiveId}.
func (h *objectivesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleId")
	objectiveID := chi.URLParam(r, "objectiveId")

	if err := h.store.Delete(r.Context(), roleID, objectiveID); err != nil {
		if errors.Is(err, work.ErrObjectiveNotFound) {
			writeError(w, http.StatusNotFound, "Objective not found, hence could not be deleted.", "Invalid ID for objective or role.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete", "objective", objectiveID, "role_id", roleID)
	writeSuccess(w, http.StatusOK, nil, "The objective was deleted successfully.")
}
