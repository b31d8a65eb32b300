package company

import "time"

// Plan is a company's subscription tier.
type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanMonthly Plan = "MONTHLY"
	PlanYearly  Plan = "YEARLY"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// DefaultDepartmentName is the department every new company starts with.
const DefaultDepartmentName = "Cascade"

// DepartmentRef mirrors one of the company's departments.
type DepartmentRef struct {
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
}

// Company is the tenant root.
type Company struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	SubscriptionPlan   Plan            `json:"subscriptionPlan"`
	CompanyDepartments []DepartmentRef `json:"companyDepartments"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type CreateCompanyInput struct {
	Name             string `json:"name"`
	SubscriptionPlan Plan   `json:"subscriptionPlan"`
}

type UpdateCompanyInput struct {
	Name             *string `json:"name,omitempty"`
	SubscriptionPlan *Plan   `json:"subscriptionPlan,omitempty"`
}

// Department belongs to one company and lists its role ids.
type Department struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateDepartmentInput struct {
	CompanyID string   `json:"-"`
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
}

type UpdateDepartmentInput struct {
	Name *string `json:"name,omitempty"`
}
