package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/cascade"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/alecgard/cascade/internal/work"
)

// ---------------------------------------------------------------------------
// Users (also the token service's account store)
// ---------------------------------------------------------------------------

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*user.User
	seq   int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*user.User)}
}

func (f *fakeUsers) put(u *user.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.CompanyRoles == nil {
		u.CompanyRoles = []user.CompanyRole{}
	}
	if u.Image == "" {
		u.Image = user.DefaultImage
	}
	f.users[u.ID] = u
}

func (f *fakeUsers) get(id string) *user.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (f *fakeUsers) Create(_ context.Context, in user.CreateUserInput) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(in.Email)
	for _, u := range f.users {
		if u.Email == email {
			return nil, user.ErrEmailTaken
		}
	}
	f.seq++
	u := &user.User{
		ID:           fmt.Sprintf("new-user-%d", f.seq),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        email,
		PasswordHash: in.PasswordHash,
		WebAppRole:   in.WebAppRole,
		CompanyRoles: []user.CompanyRole{},
		Image:        user.DefaultImage,
	}
	f.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("getting user: %w", user.ErrNotFound)
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("getting user by email: %w", user.ErrNotFound)
}

func (f *fakeUsers) Update(_ context.Context, id string, in user.UpdateUserInput) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Email != nil {
		u.Email = strings.ToLower(*in.Email)
	}
	if in.PasswordHash != nil {
		u.PasswordHash = *in.PasswordHash
	}
	if in.Image != nil {
		u.Image = *in.Image
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) LookupAccount(_ context.Context, userID string) (*auth.Account, error) {
	u := f.get(userID)
	if u == nil {
		return nil, auth.ErrAccountNotFound
	}
	return &auth.Account{
		Payload:               *user.PayloadOf(u),
		RefreshTokenHash:      u.RefreshTokenHash,
		RefreshTokenExpiresAt: u.RefreshTokenExpiresAt,
	}, nil
}

func (f *fakeUsers) SaveRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return auth.ErrAccountNotFound
	}
	u.RefreshTokenHash = tokenHash
	u.RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (f *fakeUsers) ClearRefreshToken(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return auth.ErrAccountNotFound
	}
	u.RefreshTokenHash = ""
	u.RefreshTokenExpiresAt = nil
	return nil
}

// ---------------------------------------------------------------------------
// Companies, departments, roles
// ---------------------------------------------------------------------------

type fakeCompanies map[string]*company.Company

func (f fakeCompanies) GetByID(_ context.Context, id string) (*company.Company, error) {
	c, ok := f[id]
	if !ok {
		return nil, company.ErrNotFound
	}
	return c, nil
}

func (f fakeCompanies) ListByIDs(_ context.Context, ids []string) ([]*company.Company, error) {
	var out []*company.Company
	for _, id := range ids {
		if c, ok := f[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeCompanies) Update(_ context.Context, id string, in company.UpdateCompanyInput) (*company.Company, error) {
	c, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("updating company: %w", company.ErrNotFound)
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.SubscriptionPlan != nil {
		c.SubscriptionPlan = *in.SubscriptionPlan
	}
	return c, nil
}

type fakeDepartments map[string]*company.Department

func (f fakeDepartments) GetByID(_ context.Context, id string) (*company.Department, error) {
	d, ok := f[id]
	if !ok {
		return nil, company.ErrDepartmentNotFound
	}
	return d, nil
}

func (f fakeDepartments) GetInCompany(_ context.Context, companyID, id string) (*company.Department, error) {
	d, ok := f[id]
	if !ok || d.CompanyID != companyID {
		return nil, company.ErrDepartmentNotFound
	}
	return d, nil
}

func (f fakeDepartments) ListByCompany(_ context.Context, companyID string) ([]*company.Department, error) {
	out := []*company.Department{}
	for _, d := range f {
		if d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRoles map[string]*role.Role

func (f fakeRoles) GetByID(_ context.Context, id string) (*role.Role, error) {
	r, ok := f[id]
	if !ok {
		return nil, role.ErrNotFound
	}
	return r, nil
}

func (f fakeRoles) GetInDepartment(_ context.Context, departmentID, id string) (*role.Role, error) {
	r, ok := f[id]
	if !ok || r.DepartmentID != departmentID {
		return nil, fmt.Errorf("getting role: %w", role.ErrNotFound)
	}
	return r, nil
}

func (f fakeRoles) ListByDepartment(_ context.Context, departmentID string) ([]*role.Role, error) {
	out := []*role.Role{}
	for _, r := range f {
		if r.DepartmentID == departmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------
// Tasks and objectives
// ---------------------------------------------------------------------------

type fakeTasks struct {
	mu    sync.Mutex
	tasks map[string]*work.Task
	seq   int
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]*work.Task)}
}

func (f *fakeTasks) put(t *work.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
}

func (f *fakeTasks) Create(_ context.Context, ownerRoleID string, in work.TaskInput) (*work.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	status := in.Status
	if status == "" {
		status = work.StatusToDo
	}
	t := &work.Task{
		ID:               fmt.Sprintf("task-%d", f.seq),
		Title:            in.Title,
		Status:           status,
		OwnerRoleID:      ownerRoleID,
		AssignedRolesIDs: in.AssignedRolesIDs,
		Priority:         in.Priority,
		TaskResources:    []string{},
		TaskOutputs:      []string{},
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*work.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("getting task: %w", work.ErrTaskNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) ListOwned(_ context.Context, roleID string) ([]*work.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*work.Task{}
	for _, t := range f.tasks {
		if t.OwnerRoleID == roleID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) ListAssigned(_ context.Context, roleID string) ([]*work.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*work.Task{}
	for _, t := range f.tasks {
		for _, id := range t.AssignedRolesIDs {
			if id == roleID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTasks) Update(_ context.Context, ownerRoleID, id string, in work.TaskPatch) (*work.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.OwnerRoleID != ownerRoleID {
		return nil, work.ErrTaskNotFound
	}
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) AddFile(_ context.Context, id string, kind work.FileKind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil
	}
	if kind == work.FileOutput {
		t.TaskOutputs = append(t.TaskOutputs, name)
	} else {
		t.TaskResources = append(t.TaskResources, name)
	}
	return nil
}

func (f *fakeTasks) RemoveFile(_ context.Context, id string, kind work.FileKind, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil
	}
	remove := func(list []string) []string {
		out := []string{}
		for _, v := range list {
			if v != name {
				out = append(out, v)
			}
		}
		return out
	}
	if kind == work.FileOutput {
		t.TaskOutputs = remove(t.TaskOutputs)
	} else {
		t.TaskResources = remove(t.TaskResources)
	}
	return nil
}

func (f *fakeTasks) Delete(_ context.Context, ownerRoleID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.OwnerRoleID != ownerRoleID {
		return work.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

type fakeObjectives struct {
	mu         sync.Mutex
	objectives map[string]*work.Objective
	seq        int
}

func newFakeObjectives() *fakeObjectives {
	return &fakeObjectives{objectives: make(map[string]*work.Objective)}
}

func (f *fakeObjectives) put(o *work.Objective) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objectives[o.ID] = o
}

func (f *fakeObjectives) Create(_ context.Context, ownerRoleID string, in work.ObjectiveInput) (*work.Objective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	o := &work.Objective{
		ID:              fmt.Sprintf("objective-%d", f.seq),
		Name:            in.Name,
		OwnerRoleID:     ownerRoleID,
		AssignedRoleIDs: in.AssignedRoleIDs,
		Priority:        in.Priority,
	}
	f.objectives[o.ID] = o
	return o, nil
}

func (f *fakeObjectives) GetByID(_ context.Context, id string) (*work.Objective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objectives[id]
	if !ok {
		return nil, fmt.Errorf("getting objective: %w", work.ErrObjectiveNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeObjectives) ListOwned(_ context.Context, roleID string) ([]*work.Objective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*work.Objective{}
	for _, o := range f.objectives {
		if o.OwnerRoleID == roleID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeObjectives) ListAssigned(_ context.Context, roleID string) ([]*work.Objective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*work.Objective{}
	for _, o := range f.objectives {
		if o.AccessibleBy(roleID) && o.OwnerRoleID != roleID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeObjectives) Update(_ context.Context, ownerRoleID, id string, in work.ObjectivePatch) (*work.Objective, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objectives[id]
	if !ok || o.OwnerRoleID != ownerRoleID {
		return nil, work.ErrObjectiveNotFound
	}
	if in.Name != nil {
		o.Name = *in.Name
	}
	cp := *o
	return &cp, nil
}

func (f *fakeObjectives) Delete(_ context.Context, ownerRoleID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objectives[id]
	if !ok || o.OwnerRoleID != ownerRoleID {
		return work.ErrObjectiveNotFound
	}
	delete(f.objectives, id)
	return nil
}

// ---------------------------------------------------------------------------
// Services
// ---------------------------------------------------------------------------

// fakeHierarchy records calls and returns err when set.
type fakeHierarchy struct {
	err     error
	created []role.CreateRoleInput
	updated []role.UpdateRoleInput
	deleted []string
}

func (f *fakeHierarchy) CreateRole(_ context.Context, departmentID string, in role.CreateRoleInput) (*role.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &role.Role{
		ID:             "role-new",
		DepartmentID:   departmentID,
		UserID:         in.UserID,
		HierarchyLevel: in.HierarchyLevel,
		JobTitle:       in.JobTitle,
	}, nil
}

func (f *fakeHierarchy) UpdateRole(_ context.Context, departmentID, roleID string, patch role.UpdateRoleInput) (*role.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = append(f.updated, patch)
	r := &role.Role{ID: roleID, DepartmentID: departmentID}
	if patch.JobTitle != nil {
		r.JobTitle = *patch.JobTitle
	}
	return r, nil
}

func (f *fakeHierarchy) DeleteRole(_ context.Context, _, roleID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, roleID)
	return nil
}

// fakeCascade records calls and returns err when set.
type fakeCascade struct {
	err            error
	createdBy      string
	createdCompany company.CreateCompanyInput
	deletedCompany string
	createdDept    company.CreateDepartmentInput
	renamedDept    string
	deletedDept    string
}

func (f *fakeCascade) CreateCompany(_ context.Context, userID string, in company.CreateCompanyInput) (*cascade.CreatedCompany, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.createdBy = userID
	f.createdCompany = in
	return &cascade.CreatedCompany{
		Company:     &company.Company{ID: "co-new", Name: in.Name, SubscriptionPlan: in.SubscriptionPlan},
		AccessToken: "fresh-token",
	}, nil
}

func (f *fakeCascade) DeleteCompany(_ context.Context, _, companyID string) (*cascade.DeletedCompany, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletedCompany = companyID
	return &cascade.DeletedCompany{AccessToken: "after-delete", Roles: 2}, nil
}

func (f *fakeCascade) CreateDepartment(_ context.Context, companyID string, in company.CreateDepartmentInput) (*company.Department, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.createdDept = in
	return &company.Department{ID: "dept-new", CompanyID: companyID, Name: in.Name, Roles: in.Roles}, nil
}

func (f *fakeCascade) UpdateDepartment(_ context.Context, companyID, departmentID string, in company.UpdateDepartmentInput) (*company.Department, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.renamedDept = *in.Name
	return &company.Department{ID: departmentID, CompanyID: companyID, Name: *in.Name}, nil
}

func (f *fakeCascade) DeleteDepartment(_ context.Context, _, departmentID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedDept = departmentID
	return nil
}

var errDeptMissing = apperr.New(apperr.NotFound, "Company or Department are not found.", "Invalid Company or Department ID.")
