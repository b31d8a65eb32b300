package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/go-chi/chi/v5"
)

// departmentsHandler groups department HTTP handlers.
type departmentsHandler struct {
	companies   CompanyStore
	departments DepartmentStore
	cascade     CompanyService
}

func newDepartmentsHandler(companies CompanyStore, departments DepartmentStore, cascade CompanyService) *departmentsHandler {
	return &departmentsHandler{companies: companies, departments: departments, cascade: cascade}
}

func validDepartmentName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n > 0 && n <= 100
}

// Create handles POST /companies/{companyId}/departments. Listed roles are
// moved into the new department.
func (h *departmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in company.CreateDepartmentInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if !validDepartmentName(in.Name) {
		writeError(w, http.StatusBadRequest, msgValidation, "Department name must be between 1 and 100 characters long.")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Roles = role.Dedupe(in.Roles)

	companyID := chi.URLParam(r, "companyId")
	dept, err := h.cascade.CreateDepartment(r.Context(), companyID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "create", "department", dept.ID, "company_id", companyID)
	writeSuccess(w, http.StatusCreated, map[string]any{"department": dept}, "Department was created successfully.")
}

// List handles GET /companies/{companyId}/departments.
func (h *departmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")
	if _, err := h.companies.GetByID(r.Context(), companyID); err != nil {
		if errors.Is(err, company.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Company not found.", "Company ID is not valid.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	depts, err := h.departments.ListByCompany(r.Context(), companyID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if len(depts) == 0 {
		writeError(w, http.StatusBadRequest, "Could not find any departments for this company.",
			"Company ID is not valid or no available departments.")
		return
	}
	writeSuccess(w, http.StatusOK, depts, "Company departments returned successfully.")
}

// Get handles GET /companies/{companyId}/departments/{departmentId}.
func (h *departmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	dept, err := h.departments.GetInCompany(r.Context(), chi.URLParam(r, "companyId"), chi.URLParam(r, "departmentId"))
	if err != nil {
		if errors.Is(err, company.ErrDepartmentNotFound) {
			writeError(w, http.StatusNotFound, "Company or Department are not found.", "Invalid Company or Department ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"department": dept}, "Department is retrieved successfully.")
}

// Update handles PUT /companies/{companyId}/departments/{departmentId}.
func (h *departmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in company.UpdateDepartmentInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if in.Name == nil || !validDepartmentName(*in.Name) {
		writeError(w, http.StatusBadRequest, msgValidation, "Department name must be between 1 and 100 characters long.")
		return
	}
	name := strings.TrimSpace(*in.Name)
	in.Name = &name

	companyID := chi.URLParam(r, "companyId")
	departmentID := chi.URLParam(r, "departmentId")
	dept, err := h.cascade.UpdateDepartment(r.Context(), companyID, departmentID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "update", "department", departmentID, "company_id", companyID)
	writeSuccess(w, http.StatusOK, map[string]any{"updatedDepartment": dept}, "Department is updated successfully.")
}

// Delete handles DELETE /companies/{companyId}/departments/{departmentId}.
func (h *departmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")
	departmentID := chi.URLParam(r, "departmentId")

	if err := h.cascade.DeleteDepartment(r.Context(), companyID, departmentID); err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete", "department", departmentID, "company_id", companyID)
	writeSuccess(w, http.StatusOK, nil, "The department was deleted successfully.")
}
