package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/company"
	"github.com/go-chi/chi/v5"
)

const msgValidation = "Validation error occurred. Please check your request."

// companiesHandler groups company HTTP handlers.
type companiesHandler struct {
	store   CompanyStore
	cascade CompanyService
}

func newCompaniesHandler(store CompanyStore, cascade CompanyService) *companiesHandler {
	return &companiesHandler{store: store, cascade: cascade}
}

func validCompanyName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n > 0 && n <= 100
}

// Create handles POST /companies. The caller becomes the company admin and
// receives an access token that already carries the new membership.
func (h *companiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in company.CreateCompanyInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if !validCompanyName(in.Name) {
		writeError(w, http.StatusBadRequest, msgValidation, "Company name must be between 1 and 100 characters long.")
		return
	}
	if in.SubscriptionPlan == "" {
		in.SubscriptionPlan = company.PlanFree
	}
	if !in.SubscriptionPlan.Valid() {
		writeError(w, http.StatusBadRequest, msgValidation, "Subscription plan must be one of FREE, MONTHLY or YEARLY.")
		return
	}
	in.Name = strings.TrimSpace(in.Name)

	p := auth.PayloadFromContext(r.Context())
	res, err := h.cascade.CreateCompany(r.Context(), p.UserID, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "create", "company", res.Company.ID)
	writeSuccess(w, http.StatusCreated, res, "Company & admin role created successfully, and user updated.")
}

type companySummary struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	CompanyDepartments []company.DepartmentRef `json:"companyDepartments"`
}

// List handles GET /companies, returning the companies the caller's
// memberships reference.
func (h *companiesHandler) List(w http.ResponseWriter, r *http.Request) {
	p := auth.PayloadFromContext(r.Context())

	seen := make(map[string]bool)
	var ids []string
	for _, m := range p.CompanyRoles {
		if m.CompanyID != "" && !seen[m.CompanyID] {
			seen[m.CompanyID] = true
			ids = append(ids, m.CompanyID)
		}
	}

	out := []companySummary{}
	if len(ids) > 0 {
		companies, err := h.store.ListByIDs(r.Context(), ids)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		for _, c := range companies {
			out = append(out, companySummary{ID: c.ID, Name: c.Name, CompanyDepartments: c.CompanyDepartments})
		}
	}

	writeSuccess(w, http.StatusOK, map[string]any{"companies": out}, "Related companies data are retrieved.")
}

// Get handles GET /companies/{companyId}.
func (h *companiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetByID(r.Context(), chi.URLParam(r, "companyId"))
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Company not found.", "Invalid company ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"company": c}, "Company data retrieved successfully.")
}

// Update handles PUT /companies/{companyId}.
func (h *companiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in company.UpdateCompanyInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgValidation, "failed to parse request body")
		return
	}
	if in.Name != nil {
		if !validCompanyName(*in.Name) {
			writeError(w, http.StatusBadRequest, msgValidation, "Company name must be between 1 and 100 characters long.")
			return
		}
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.SubscriptionPlan != nil && !in.SubscriptionPlan.Valid() {
		writeError(w, http.StatusBadRequest, msgValidation, "Subscription plan must be one of FREE, MONTHLY or YEARLY.")
		return
	}

	id := chi.URLParam(r, "companyId")
	c, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		if errors.Is(err, company.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Company not found.", "Invalid company ID.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "update", "company", id)
	writeSuccess(w, http.StatusOK, map[string]any{"updatedCompany": c}, "Company has been updated successfully.")
}

// Delete handles DELETE /companies/{companyId}. Everything under the company
// is removed and the caller gets a token without the company's memberships.
func (h *companiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "companyId")
	p := auth.PayloadFromContext(r.Context())

	res, err := h.cascade.DeleteCompany(r.Context(), p.UserID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "delete", "company", id,
		"departments", res.Departments,
		"roles", res.Roles,
		"tasks", res.Tasks,
		"objectives", res.Objectives,
	)
	writeSuccess(w, http.StatusOK, map[string]string{"accessToken": res.AccessToken}, "The company was deleted successfully.")
}
