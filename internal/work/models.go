// Package work stores the tasks and objectives owned by roles.
package work

import "time"

// Status is a task's workflow state.
type Status string

const (
	StatusToDo       Status = "TO_DO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusCanceled   Status = "CANCELED"
	StatusDrafted    Status = "DRAFTED"
	StatusOnHold     Status = "ON_HOLD"
)

func (s Status) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone, StatusCanceled, StatusDrafted, StatusOnHold:
		return true
	}
	return false
}

// Priority applies to both tasks and objectives.
type Priority string

const (
	PriorityVeryHigh Priority = "VERY_HIGH"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
	PriorityVeryLow  Priority = "VERY_LOW"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityVeryHigh, PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow:
		return true
	}
	return false
}

// FileKind selects one of a task's file-name lists.
type FileKind string

const (
	FileResource FileKind = "resources"
	FileOutput   FileKind = "outputs"
)

func (k FileKind) column() string {
	if k == FileOutput {
		return "outputs"
	}
	return "resources"
}

type Requirement struct {
	RequirementTitle       string  `json:"requirementTitle"`
	RequirementDescription string  `json:"requirementDescription,omitempty"`
	RequirementWeight      float64 `json:"requirementWeight"`
}

// Task is owned by one role and optionally assigned to others.
type Task struct {
	ID               string        `json:"id"`
	ObjectiveID      string        `json:"objectiveId,omitempty"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	TaskRubric       []Requirement `json:"taskRubric"`
	Status           Status        `json:"status"`
	StartDate        *time.Time    `json:"startDate,omitempty"`
	DueDate          *time.Time    `json:"dueDate,omitempty"`
	OwnerRoleID      string        `json:"ownerRoleId"`
	AssignedRolesIDs []string      `json:"assignedRolesIds"`
	Priority         Priority      `json:"priority"`
	RecentComments   []string      `json:"recentComments"`
	CommentsCount    int           `json:"commentsCount"`
	Feedbacks        []string      `json:"feedbacks"`
	TaskResources    []string      `json:"taskResources"`
	TaskOutputs      []string      `json:"taskOutputs"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// AccessibleBy reports whether roleID owns or is assigned the task.
func (t *Task) AccessibleBy(roleID string) bool {
	return t.OwnerRoleID == roleID || contains(t.AssignedRolesIDs, roleID)
}

// Files returns the file-name list for kind.
func (t *Task) Files(kind FileKind) []string {
	if kind == FileOutput {
		return t.TaskOutputs
	}
	return t.TaskResources
}

type TaskInput struct {
	ObjectiveID      string        `json:"objectiveId"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	TaskRubric       []Requirement `json:"taskRubric"`
	Status           Status        `json:"status"`
	StartDate        *time.Time    `json:"startDate"`
	DueDate          *time.Time    `json:"dueDate"`
	AssignedRolesIDs []string      `json:"assignedRolesIds"`
	Priority         Priority      `json:"priority"`
}

type TaskPatch struct {
	ObjectiveID      *string        `json:"objectiveId,omitempty"`
	Title            *string        `json:"title,omitempty"`
	Description      *string        `json:"description,omitempty"`
	TaskRubric       *[]Requirement `json:"taskRubric,omitempty"`
	Status           *Status        `json:"status,omitempty"`
	StartDate        *time.Time     `json:"startDate,omitempty"`
	DueDate          *time.Time     `json:"dueDate,omitempty"`
	AssignedRolesIDs *[]string      `json:"assignedRolesIds,omitempty"`
	Priority         *Priority      `json:"priority,omitempty"`
}

type KPI struct {
	KPIName        string   `json:"kpiName"`
	KPIDescription string   `json:"kpiDescription,omitempty"`
	Target         *float64 `json:"target,omitempty"`
	Actual         *float64 `json:"actual,omitempty"`
}

type Milestone struct {
	Name      string     `json:"name"`
	Target    *float64   `json:"target,omitempty"`
	Actual    *float64   `json:"actual,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

type GoalProgress struct {
	GoalID              string    `json:"goalId"`
	ProgressDescription string    `json:"progressDescription,omitempty"`
	ProgressDate        time.Time `json:"progressDate"`
}

// Objective is owned by one role and optionally assigned to others.
type Objective struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	ObjectiveKPIs          []KPI          `json:"objectiveKPIs"`
	Milestones             []Milestone    `json:"milestones"`
	GoalProgress           []GoalProgress `json:"goalProgress"`
	ObjectiveStartDate     *time.Time     `json:"objectiveStartDate,omitempty"`
	ObjectiveDueDate       *time.Time     `json:"objectiveDueDate,omitempty"`
	OwnerRoleID            string         `json:"ownerRoleId"`
	AssignedRoleIDs        []string       `json:"assignedRoleIds"`
	AccountableDepartments []string       `json:"accountableDepartments"`
	Priority               Priority       `json:"priority"`
	ObjectiveResources     []string       `json:"objectiveResources"`
	ObjectiveDocuments     []string       `json:"objectiveDocuments"`
	RecentComments         []string       `json:"recentComments"`
	Feedbacks              []string       `json:"feedbacks"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
}

// AccessibleBy reports whether roleID owns or is assigned the objective.
func (o *Objective) AccessibleBy(roleID string) bool {
	return o.OwnerRoleID == roleID || contains(o.AssignedRoleIDs, roleID)
}

type ObjectiveInput struct {
	Name                   string         `json:"name"`
	ObjectiveKPIs          []KPI          `json:"objectiveKPIs"`
	Milestones             []Milestone    `json:"milestones"`
	GoalProgress           []GoalProgress `json:"goalProgress"`
	ObjectiveStartDate     *time.Time     `json:"objectiveStartDate"`
	ObjectiveDueDate       *time.Time     `json:"objectiveDueDate"`
	AssignedRoleIDs        []string       `json:"assignedRoleIds"`
	AccountableDepartments []string       `json:"accountableDepartments"`
	Priority               Priority       `json:"priority"`
}

type ObjectivePatch struct {
	Name                   *string         `json:"name,omitempty"`
	ObjectiveKPIs          *[]KPI          `json:"objectiveKPIs,omitempty"`
	Milestones             *[]Milestone    `json:"milestones,omitempty"`
	GoalProgress           *[]GoalProgress `json:"goalProgress,omitempty"`
	ObjectiveStartDate     *time.Time      `json:"objectiveStartDate,omitempty"`
	ObjectiveDueDate       *time.Time      `json:"objectiveDueDate,omitempty"`
	AssignedRoleIDs        *[]string       `json:"assignedRoleIds,omitempty"`
	AccountableDepartments *[]string       `json:"accountableDepartments,omitempty"`
	Priority               *Priority       `json:"priority,omitempty"`
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
