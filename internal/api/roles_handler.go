package api

import (
	"errors"
	"net/http"

	"github.com/alecgard/cascade/internal/role"
	"github.com/go-chi/chi/v5"
)

// rolesHandler groups role HTTP handlers. Mutations go through the hierarchy
// service so supervision edges and memberships stay consistent.
type rolesHandler struct {
	store     RoleStore
	hierarchy RoleService
}

func newRolesHandler(store RoleStore, hierarchy RoleService) *rolesHandler {
	return &rolesHandler{store: store, hierarchy: hierarchy}
}

// List handles GET /departments/{departmentId}/roles.
func (h *rolesHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListByDepartment(r.Context(), chi.URLParam(r, "departmentId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(roles) == 0 {
		writeError(w, http.StatusNotFound, "Could not find any roles for the department.",
			"Department ID is not valid or no available roles.")
		return
	}
	writeSuccess(w, http.StatusOK, roles, "Department roles returned successfully.")
}

// Create handles POST /departments/{departmentId}/roles.
func (h *rolesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in role.CreateRoleInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateRoleFields(&in.HierarchyLevel, &in.JobTitle); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	departmentID := chi.URLParam(r, "departmentId")
	saved, err := h.hierarchy.CreateRole(r.Context(), departmentID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "create", "role", saved.ID, "department_id", departmentID)
	writeSuccess(w, http.StatusCreated, map[string]any{"savedRole": saved}, "Role was created successfully.")
}

// Get handles GET /departments/{departmentId}/roles/{roleId}.
func (h *rolesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rl, err := h.store.GetInDepartment(r.Context(), chi.URLParam(r, "departmentId"), chi.URLParam(r, "roleId"))
	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Department or Role IDs were not found.", "Invalid Department or Role ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"role": rl}, "Role is retrieved successfully.")
}

// Update handles PUT /departments/{departmentId}/roles/{roleId}.
func (h *rolesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch role.UpdateRoleInput
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if msg := validateRoleFields(patch.HierarchyLevel, patch.JobTitle); msg != "" {
		writeError(w, http.StatusBadRequest, msgValidation, msg)
		return
	}

	departmentID := chi.URLParam(r, "departmentId")
	roleID := chi.URLParam(r, "roleId")
	updated, err := h.hierarchy.UpdateRole(r.Context(), departmentID, roleID, patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "update", "role", roleID, "department_id", departmentID)
	writeSuccess(w, http.StatusOK, map[string]any{"updatedRole": updated}, "Role is updated successfully.")
}

// Delete handles DELETE /departments/{departmentId}/roles/{roleId}.
func (h *rolesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	departmentID := chi.URLParam(r, "departmentId")
	roleID := chi.URLParam(r, "roleId")

	if err := h.hierarchy.DeleteRole(r.Context(), departmentID, roleID); err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete", "role", roleID, "department_id", departmentID)
	writeSuccess(w, http.StatusOK, nil, "The role was deleted successfully.")
}

// validateRoleFields checks the fields present in a create or update body.
// A nil pointer means the field was not sent.
func validateRoleFields(level *role.Level, jobTitle *string) string {
	if level != nil && !level.Valid() {
		return "Hierarchy level must be one of COMPANY_ADMIN, TOP_LEVEL_MANAGER, MANAGER or EMPLOYEE."
	}
	if jobTitle != nil && (len(*jobTitle) == 0 || len(*jobTitle) > 100) {
		return "Job title must be between 1 and 100 characters long."
	}
	return ""
}
