package role

import "time"

// Level is a role's rank in the company hierarchy.
type Level string

const (
	LevelCompanyAdmin    Level = "COMPANY_ADMIN"
	LevelTopLevelManager Level = "TOP_LEVEL_MANAGER"
	LevelManager         Level = "MANAGER"
	LevelEmployee        Level = "EMPLOYEE"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelCompanyAdmin, LevelTopLevelManager, LevelManager, LevelEmployee:
		return true
	}
	return false
}

// Role is a node in a department's supervision graph. SupervisedBy and
// Supervises are kept symmetric across roles: if A.Supervises has B then
// B.SupervisedBy has A.
type Role struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"companyId"`
	DepartmentID   string    `json:"departmentId"`
	UserID         string    `json:"userId,omitempty"`
	HierarchyLevel Level     `json:"hierarchyLevel"`
	JobTitle       string    `json:"jobTitle"`
	JobDescription string    `json:"jobDescription"`
	SupervisedBy   []string  `json:"supervisedBy"`
	Supervises     []string  `json:"supervises"`
	Permissions    []string  `json:"permissions"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateRoleInput holds the fields for a new role.
type CreateRoleInput struct {
	CompanyID      string   `json:"-"`
	DepartmentID   string   `json:"-"`
	UserID         string   `json:"userId"`
	HierarchyLevel Level    `json:"hierarchyLevel"`
	JobTitle       string   `json:"jobTitle"`
	JobDescription string   `json:"jobDescription"`
	SupervisedBy   []string `json:"supervisedBy"`
	Supervises     []string `json:"supervises"`
	Permissions    []string `json:"permissions"`
}

// UpdateRoleInput holds optional fields for a partial role update. Users is
// not a column: it lists the users who should hold a membership for the role.
type UpdateRoleInput struct {
	UserID         *string   `json:"userId,omitempty"`
	HierarchyLevel *Level    `json:"hierarchyLevel,omitempty"`
	JobTitle       *string   `json:"jobTitle,omitempty"`
	JobDescription *string   `json:"jobDescription,omitempty"`
	SupervisedBy   *[]string `json:"supervisedBy,omitempty"`
	Supervises     *[]string `json:"supervises,omitempty"`
	Permissions    *[]string `json:"permissions,omitempty"`
	Users          *[]string `json:"users,omitempty"`
}

// Diff returns the ids present in next but not in current, and those present
// in current but not in next. Duplicates in either input are ignored.
func Diff(current, next []string) (added, removed []string) {
	cur := make(map[string]bool, len(current))
	for _, id := range current {
		cur[id] = true
	}
	nxt := make(map[string]bool, len(next))
	for _, id := range next {
		if !nxt[id] && !cur[id] {
			added = append(added, id)
		}
		nxt[id] = true
	}
	seen := make(map[string]bool, len(current))
	for _, id := range current {
		if !nxt[id] && !seen[id] {
			removed = append(removed, id)
		}
		seen[id] = true
	}
	return added, removed
}

// Dedupe returns ids without duplicates, keeping first occurrences.
func Dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
