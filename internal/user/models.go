package user

import "time"

// WebAppRole is the platform-wide role, independent of any company.
type WebAppRole string

const (
	WebAppAdmin     WebAppRole = "WEB_APP_ADMIN"
	CustomerSupport WebAppRole = "CUSTOMER_SUPPORT"
	RegularUser     WebAppRole = "USER"
)

// DefaultImage is the profile image every account starts with.
const DefaultImage = "default_user_image.png"

// CompanyRole is one membership of a user in a company's hierarchy.
// DepartmentID is empty once the department has been deleted.
type CompanyRole struct {
	ID           string `json:"id"`
	CompanyID    string `json:"companyId"`
	DepartmentID string `json:"departmentId,omitempty"`
	RoleID       string `json:"roleId"`
}

// User represents a registered account.
type User struct {
	ID                    string        `json:"id"`
	FirstName             string        `json:"firstName"`
	LastName              string        `json:"lastName"`
	Email                 string        `json:"email"`
	PasswordHash          string        `json:"-"`
	WebAppRole            WebAppRole    `json:"webAppRole"`
	CompanyRoles          []CompanyRole `json:"companyRoles"`
	Image                 string        `json:"image"`
	RefreshTokenHash      string        `json:"-"`
	RefreshTokenExpiresAt *time.Time    `json:"-"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// CreateUserInput holds the fields required to create a new user. The
// password must already be hashed.
type CreateUserInput struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	WebAppRole   WebAppRole
}

// UpdateUserInput holds optional fields for a partial user update.
type UpdateUserInput struct {
	FirstName    *string
	LastName     *string
	Email        *string
	PasswordHash *string
	Image        *string
}

// HasRole reports whether any membership references roleID.
func HasRole(roles []CompanyRole, roleID string) bool {
	for _, cr := range roles {
		if cr.RoleID == roleID {
			return true
		}
	}
	return false
}

// FindRole returns the membership referencing roleID.
func FindRole(roles []CompanyRole, roleID string) (CompanyRole, bool) {
	for _, cr := range roles {
		if cr.RoleID == roleID {
			return cr, true
		}
	}
	return CompanyRole{}, false
}

// WithoutRole returns a copy of roles with every membership for roleID removed.
func WithoutRole(roles []CompanyRole, roleID string) []CompanyRole {
	out := make([]CompanyRole, 0, len(roles))
	for _, cr := range roles {
		if cr.RoleID != roleID {
			out = append(out, cr)
		}
	}
	return out
}

// WithoutCompany returns a copy of roles with every membership in companyID removed.
func WithoutCompany(roles []CompanyRole, companyID string) []CompanyRole {
	out := make([]CompanyRole, 0, len(roles))
	for _, cr := range roles {
		if cr.CompanyID != companyID {
			out = append(out, cr)
		}
	}
	return out
}

// WithoutDepartment returns a copy of roles where the membership for roleID
// keeps its company but loses its department.
func WithoutDepartment(roles []CompanyRole, roleID string) []CompanyRole {
	out := make([]CompanyRole, len(roles))
	copy(out, roles)
	for i := range out {
		if out[i].RoleID == roleID {
			out[i].DepartmentID = ""
		}
	}
	return out
}

// CompanyIDs returns the distinct company ids in membership order.
func CompanyIDs(roles []CompanyRole) []string {
	seen := make(map[string]bool, len(roles))
	var ids []string
	for _, cr := range roles {
		if cr.CompanyID == "" || seen[cr.CompanyID] {
			continue
		}
		seen[cr.CompanyID] = true
		ids = append(ids, cr.CompanyID)
	}
	return ids
}
