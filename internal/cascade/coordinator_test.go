package cascade

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/alecgard/cascade/internal/work"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory stores ---

type memDB struct {
	companies  map[string]*company.Company
	depts      map[string]*company.Department
	roles      map[string]*role.Role
	tasks      map[string]*work.Task
	objectives map[string]*work.Objective
	users      map[string]*user.User
	nextID     int
	locked     []string
}

func newMemDB() *memDB {
	return &memDB{
		companies:  make(map[string]*company.Company),
		depts:      make(map[string]*company.Department),
		roles:      make(map[string]*role.Role),
		tasks:      make(map[string]*work.Task),
		objectives: make(map[string]*work.Objective),
		users:      make(map[string]*user.User),
	}
}

func (db *memDB) id(prefix string) string {
	db.nextID++
	return fmt.Sprintf("%s-%d", prefix, db.nextID)
}

func (db *memDB) clone() *memDB {
	c := newMemDB()
	c.nextID = db.nextID
	c.locked = slices.Clone(db.locked)
	for k, v := range db.companies {
		cp := *v
		cp.CompanyDepartments = slices.Clone(v.CompanyDepartments)
		c.companies[k] = &cp
	}
	for k, v := range db.depts {
		cp := *v
		cp.Roles = slices.Clone(v.Roles)
		c.depts[k] = &cp
	}
	for k, v := range db.roles {
		cp := *v
		c.roles[k] = &cp
	}
	for k, v := range db.tasks {
		cp := *v
		c.tasks[k] = &cp
	}
	for k, v := range db.objectives {
		cp := *v
		c.objectives[k] = &cp
	}
	for k, v := range db.users {
		cp := *v
		cp.CompanyRoles = slices.Clone(v.CompanyRoles)
		c.users[k] = &cp
	}
	return c
}

type memCompanies struct{ db *memDB }

func (m memCompanies) Create(_ context.Context, in company.CreateCompanyInput) (*company.Company, error) {
	c := &company.Company{ID: m.db.id("co"), Name: in.Name, SubscriptionPlan: in.SubscriptionPlan,
		CompanyDepartments: []company.DepartmentRef{}}
	m.db.companies[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m memCompanies) GetByID(_ context.Context, id string) (*company.Company, error) {
	c, ok := m.db.companies[id]
	if !ok {
		return nil, company.ErrNotFound
	}
	cp := *c
	cp.CompanyDepartments = slices.Clone(c.CompanyDepartments)
	return &cp, nil
}

func (m memCompanies) AddDepartmentRef(_ context.Context, companyID string, ref company.DepartmentRef) error {
	c, ok := m.db.companies[companyID]
	if !ok {
		return company.ErrNotFound
	}
	c.CompanyDepartments = append(c.CompanyDepartments, ref)
	return nil
}

func (m memCompanies) RemoveDepartmentRef(_ context.Context, companyID, departmentID string) error {
	c, ok := m.db.companies[companyID]
	if !ok {
		return company.ErrNotFound
	}
	c.CompanyDepartments = slices.DeleteFunc(c.CompanyDepartments, func(r company.DepartmentRef) bool {
		return r.DepartmentID == departmentID
	})
	return nil
}

func (m memCompanies) RenameDepartmentRef(_ context.Context, companyID, departmentID, name string) error {
	c, ok := m.db.companies[companyID]
	if !ok {
		return company.ErrNotFound
	}
	for i := range c.CompanyDepartments {
		if c.CompanyDepartments[i].DepartmentID == departmentID {
			c.CompanyDepartments[i].DepartmentName = name
		}
	}
	return nil
}

func (m memCompanies) Delete(_ context.Context, id string) error {
	if _, ok := m.db.companies[id]; !ok {
		return company.ErrNotFound
	}
	delete(m.db.companies, id)
	return nil
}

type memDepartments struct{ db *memDB }

func (m memDepartments) Create(_ context.Context, in company.CreateDepartmentInput) (*company.Department, error) {
	d := &company.Department{ID: m.db.id("dep"), CompanyID: in.CompanyID, Name: in.Name, Roles: slices.Clone(in.Roles)}
	if d.Roles == nil {
		d.Roles = []string{}
	}
	m.db.depts[d.ID] = d
	cp := *d
	return &cp, nil
}

func (m memDepartments) GetInCompany(_ context.Context, companyID, id string) (*company.Department, error) {
	d, ok := m.db.depts[id]
	if !ok || d.CompanyID != companyID {
		return nil, company.ErrDepartmentNotFound
	}
	cp := *d
	cp.Roles = slices.Clone(d.Roles)
	return &cp, nil
}

func (m memDepartments) ListByCompany(_ context.Context, companyID string) ([]*company.Department, error) {
	var out []*company.Department
	for _, d := range m.db.depts {
		if d.CompanyID == companyID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memDepartments) Rename(ctx context.Context, companyID, id, name string) (*company.Department, error) {
	d, ok := m.db.depts[id]
	if !ok || d.CompanyID != companyID {
		return nil, company.ErrDepartmentNotFound
	}
	d.Name = name
	return m.GetInCompany(ctx, companyID, id)
}

func (m memDepartments) AddRole(_ context.Context, id, roleID string) error {
	if d, ok := m.db.depts[id]; ok && !slices.Contains(d.Roles, roleID) {
		d.Roles = append(d.Roles, roleID)
	}
	return nil
}

func (m memDepartments) RemoveRole(_ context.Context, id, roleID string) error {
	if d, ok := m.db.depts[id]; ok {
		d.Roles = slices.DeleteFunc(d.Roles, func(v string) bool { return v == roleID })
	}
	return nil
}

func (m memDepartments) Delete(_ context.Context, companyID, id string) error {
	d, ok := m.db.depts[id]
	if !ok || d.CompanyID != companyID {
		return company.ErrDepartmentNotFound
	}
	delete(m.db.depts, id)
	return nil
}

func (m memDepartments) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.db.depts[id]; ok {
			delete(m.db.depts, id)
			n++
		}
	}
	return n, nil
}

type memRoles struct{ db *memDB }

func (m memRoles) Create(_ context.Context, in role.CreateRoleInput) (*role.Role, error) {
	r := &role.Role{ID: m.db.id("role"), CompanyID: in.CompanyID, DepartmentID: in.DepartmentID, UserID: in.UserID,
		HierarchyLevel: in.HierarchyLevel, JobTitle: in.JobTitle, JobDescription: in.JobDescription,
		SupervisedBy: []string{}, Supervises: []string{}, Permissions: []string{}}
	m.db.roles[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m memRoles) ListByCompany(_ context.Context, companyID string) ([]*role.Role, error) {
	var out []*role.Role
	for _, r := range m.db.roles {
		if r.CompanyID == companyID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memRoles) ListByDepartments(_ context.Context, departmentIDs []string) ([]*role.Role, error) {
	var out []*role.Role
	for _, r := range m.db.roles {
		if slices.Contains(departmentIDs, r.DepartmentID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memRoles) ListByIDs(_ context.Context, ids []string) ([]*role.Role, error) {
	var out []*role.Role
	for _, id := range ids {
		if r, ok := m.db.roles[id]; ok {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memRoles) SetDepartment(_ context.Context, ids []string, departmentID string) error {
	for _, id := range ids {
		if r, ok := m.db.roles[id]; ok {
			r.DepartmentID = departmentID
			if d, ok := m.db.depts[departmentID]; ok {
				r.CompanyID = d.CompanyID
			}
		}
	}
	return nil
}

func (m memRoles) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.db.roles[id]; ok {
			delete(m.db.roles, id)
			n++
		}
	}
	return n, nil
}

type memTasks struct{ db *memDB }

func (m memTasks) DeleteByRoles(_ context.Context, roleIDs []string) (int64, error) {
	var n int64
	for id, t := range m.db.tasks {
		if slices.Contains(roleIDs, t.OwnerRoleID) || slices.ContainsFunc(t.AssignedRolesIDs, func(r string) bool {
			return slices.Contains(roleIDs, r)
		}) {
			delete(m.db.tasks, id)
			n++
		}
	}
	return n, nil
}

type memObjectives struct{ db *memDB }

func (m memObjectives) DeleteByRoles(_ context.Context, roleIDs []string) (int64, error) {
	var n int64
	for id, o := range m.db.objectives {
		if slices.Contains(roleIDs, o.OwnerRoleID) || slices.ContainsFunc(o.AssignedRoleIDs, func(r string) bool {
			return slices.Contains(roleIDs, r)
		}) {
			delete(m.db.objectives, id)
			n++
		}
	}
	return n, nil
}

type memUsers struct{ db *memDB }

func (m memUsers) GetByIDForUpdate(_ context.Context, id string) (*user.User, error) {
	u, ok := m.db.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	m.db.locked = append(m.db.locked, id)
	cp := *u
	cp.CompanyRoles = slices.Clone(u.CompanyRoles)
	return &cp, nil
}

func (m memUsers) ListByRoleForUpdate(ctx context.Context, roleID string) ([]*user.User, error) {
	var out []*user.User
	for id, u := range m.db.users {
		if user.HasRole(u.CompanyRoles, roleID) {
			cp, _ := m.GetByIDForUpdate(ctx, id)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m memUsers) SetCompanyRoles(_ context.Context, id string, roles []user.CompanyRole) error {
	u, ok := m.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.CompanyRoles = slices.Clone(roles)
	return nil
}

type memTx struct{ db *memDB }

func (t *memTx) WithinTx(_ context.Context, fn func(Stores) error) error {
	next := t.db.clone()
	err := fn(Stores{
		Companies:   memCompanies{next},
		Departments: memDepartments{next},
		Roles:       memRoles{next},
		Tasks:       memTasks{next},
		Objectives:  memObjectives{next},
		Users:       memUsers{next},
	})
	if err != nil {
		return err
	}
	*t.db = *next
	return nil
}

type failingIssuer struct{}

func (failingIssuer) IssueAccessToken(*auth.Payload) (string, error) {
	return "", apperr.New(apperr.Signing, "Access token generation failed", "boom")
}

type recordingObserver map[string]int64

func (o recordingObserver) ObserveCascadeDeletion(entity string, n int64) { o[entity] += n }

func newTokens() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		Secret:     "cascade-test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}, nil)
}

func setup(t *testing.T) (*Coordinator, *memDB, *auth.TokenService) {
	t.Helper()
	db := newMemDB()
	db.users["user-1"] = &user.User{ID: "user-1", WebAppRole: user.RegularUser, CompanyRoles: []user.CompanyRole{}}
	db.users["user-2"] = &user.User{ID: "user-2", WebAppRole: user.RegularUser, CompanyRoles: []user.CompanyRole{}}
	tokens := newTokens()
	return NewCoordinator(&memTx{db: db}, tokens), db, tokens
}

func companyIDs(roles []auth.Membership) []string {
	var ids []string
	for _, m := range roles {
		ids = append(ids, m.CompanyID)
	}
	return ids
}

// --- CreateCompany ---

func TestCreateCompany(t *testing.T) {
	c, db, tokens := setup(t)

	res, err := c.CreateCompany(context.Background(), "user-1", company.CreateCompanyInput{
		Name:             "Acme",
		SubscriptionPlan: company.PlanFree,
	})
	require.NoError(t, err)

	co := res.Company
	require.Len(t, co.CompanyDepartments, 1)
	ref := co.CompanyDepartments[0]
	assert.Equal(t, company.DefaultDepartmentName, ref.DepartmentName)

	dept := db.depts[ref.DepartmentID]
	require.NotNil(t, dept)
	assert.Equal(t, co.ID, dept.CompanyID)
	require.Len(t, dept.Roles, 1)

	admin := db.roles[dept.Roles[0]]
	require.NotNil(t, admin)
	assert.Equal(t, role.LevelCompanyAdmin, admin.HierarchyLevel)
	assert.Equal(t, "user-1", admin.UserID)
	assert.Equal(t, "Company Admin", admin.JobTitle)

	memberships := db.users["user-1"].CompanyRoles
	require.Len(t, memberships, 1)
	assert.Equal(t, user.CompanyRole{
		ID:           memberships[0].ID,
		CompanyID:    co.ID,
		DepartmentID: dept.ID,
		RoleID:       admin.ID,
	}, memberships[0])

	claims, err := tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{co.ID}, companyIDs(claims.CompanyRoles))
}

func TestCreateCompany_UnknownUser(t *testing.T) {
	c, db, _ := setup(t)

	_, err := c.CreateCompany(context.Background(), "ghost", company.CreateCompanyInput{Name: "Acme"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Empty(t, db.companies)
}

func TestCreateCompany_SigningFailureRollsBack(t *testing.T) {
	db := newMemDB()
	db.users["user-1"] = &user.User{ID: "user-1", CompanyRoles: []user.CompanyRole{}}
	c := NewCoordinator(&memTx{db: db}, failingIssuer{})

	_, err := c.CreateCompany(context.Background(), "user-1", company.CreateCompanyInput{Name: "Acme"})
	assert.True(t, apperr.Is(err, apperr.Signing))
	assert.Empty(t, db.companies)
	assert.Empty(t, db.depts)
	assert.Empty(t, db.roles)
	assert.Empty(t, db.users["user-1"].CompanyRoles)
}

// --- DeleteCompany ---

// seedTwoDepartments builds a company with D1/R1 and D2/R2, one open task per
// role and an objective on R2. user-1 holds R1, user-2 holds R2.
func seedTwoDepartments(t *testing.T, c *Coordinator, db *memDB) (co *company.Company, d1, d2 *company.Department, r1, r2 string) {
	t.Helper()
	ctx := context.Background()

	res, err := c.CreateCompany(ctx, "user-1", company.CreateCompanyInput{Name: "Acme"})
	require.NoError(t, err)
	co = res.Company

	r1 = db.id("role")
	r2 = db.id("role")
	db.roles[r1] = &role.Role{ID: r1, HierarchyLevel: role.LevelManager}
	db.roles[r2] = &role.Role{ID: r2, HierarchyLevel: role.LevelEmployee}

	d1, err = c.CreateDepartment(ctx, co.ID, company.CreateDepartmentInput{Name: "D1", Roles: []string{r1}})
	require.NoError(t, err)
	d2, err = c.CreateDepartment(ctx, co.ID, company.CreateDepartmentInput{Name: "D2", Roles: []string{r2}})
	require.NoError(t, err)

	db.users["user-1"].CompanyRoles = append(db.users["user-1"].CompanyRoles,
		user.CompanyRole{ID: "m-r1", CompanyID: co.ID, DepartmentID: d1.ID, RoleID: r1})
	db.users["user-2"].CompanyRoles = append(db.users["user-2"].CompanyRoles,
		user.CompanyRole{ID: "m-r2", CompanyID: co.ID, DepartmentID: d2.ID, RoleID: r2})

	db.tasks["task-1"] = &work.Task{ID: "task-1", OwnerRoleID: r1, Status: work.StatusToDo}
	db.tasks["task-2"] = &work.Task{ID: "task-2", OwnerRoleID: "elsewhere", AssignedRolesIDs: []string{r2}, Status: work.StatusToDo}
	db.objectives["obj-1"] = &work.Objective{ID: "obj-1", OwnerRoleID: r2}
	return co, d1, d2, r1, r2
}

func TestDeleteCompany(t *testing.T) {
	c, db, tokens := setup(t)
	obs := recordingObserver{}
	c.SetObserver(obs)

	co, d1, d2, r1, r2 := seedTwoDepartments(t, c, db)
	db.tasks["unrelated"] = &work.Task{ID: "unrelated", OwnerRoleID: "other-role"}

	res, err := c.DeleteCompany(context.Background(), "user-1", co.ID)
	require.NoError(t, err)

	assert.NotContains(t, db.tasks, "task-1")
	assert.NotContains(t, db.tasks, "task-2")
	assert.Contains(t, db.tasks, "unrelated")
	assert.NotContains(t, db.objectives, "obj-1")
	assert.NotContains(t, db.roles, r1)
	assert.NotContains(t, db.roles, r2)
	assert.NotContains(t, db.depts, d1.ID)
	assert.NotContains(t, db.depts, d2.ID)
	assert.Empty(t, db.depts)
	assert.NotContains(t, db.companies, co.ID)

	for _, m := range db.users["user-1"].CompanyRoles {
		assert.NotEqual(t, co.ID, m.CompanyID)
	}
	// Only the acting user is repaired.
	assert.True(t, user.HasRole(db.users["user-2"].CompanyRoles, r2))

	claims, err := tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.NotContains(t, companyIDs(claims.CompanyRoles), co.ID)

	assert.Equal(t, int64(2), res.Tasks)
	assert.Equal(t, int64(1), res.Objectives)
	assert.Equal(t, int64(3), res.Roles)
	assert.Equal(t, int64(3), res.Departments)
	assert.Equal(t, int64(2), obs["task"])
	assert.Equal(t, int64(1), obs["company"])
}

func TestDeleteCompany_NotFound(t *testing.T) {
	c, _, _ := setup(t)

	_, err := c.DeleteCompany(context.Background(), "user-1", "co-404")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteCompany_FailureRollsBack(t *testing.T) {
	c, db, _ := setup(t)
	co, d1, _, r1, _ := seedTwoDepartments(t, c, db)

	failing := NewCoordinator(&memTx{db: db}, failingIssuer{})
	_, err := failing.DeleteCompany(context.Background(), "user-1", co.ID)
	require.Error(t, err)

	assert.Contains(t, db.companies, co.ID)
	assert.Contains(t, db.depts, d1.ID)
	assert.Contains(t, db.roles, r1)
	assert.Contains(t, db.tasks, "task-1")
	assert.True(t, user.HasRole(db.users["user-1"].CompanyRoles, r1))
}

// --- departments ---

func TestCreateDepartment_Errors(t *testing.T) {
	c, db, _ := setup(t)
	ctx := context.Background()

	_, err := c.CreateDepartment(ctx, "co-404", company.CreateDepartmentInput{Name: "Ops"})
	assert.True(t, apperr.Is(err, apperr.NotFound))

	res, err := c.CreateCompany(ctx, "user-1", company.CreateCompanyInput{Name: "Acme"})
	require.NoError(t, err)
	depts := len(db.depts)

	_, err = c.CreateDepartment(ctx, res.Company.ID, company.CreateDepartmentInput{Name: "Ops", Roles: []string{"role-404"}})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "One or more roles not found.", ae.Message)
	assert.Len(t, db.depts, depts)
}

func TestCreateDepartment_MovesRoles(t *testing.T) {
	c, db, _ := setup(t)
	ctx := context.Background()

	res, err := c.CreateCompany(ctx, "user-1", company.CreateCompanyInput{Name: "Acme"})
	require.NoError(t, err)
	defaultDept := res.Company.CompanyDepartments[0].DepartmentID
	adminRole := db.depts[defaultDept].Roles[0]

	ops, err := c.CreateDepartment(ctx, res.Company.ID, company.CreateDepartmentInput{Name: "Ops", Roles: []string{adminRole}})
	require.NoError(t, err)

	assert.Equal(t, ops.ID, db.roles[adminRole].DepartmentID)
	assert.NotContains(t, db.depts[defaultDept].Roles, adminRole)
	assert.Equal(t, []string{adminRole}, db.depts[ops.ID].Roles)

	m, ok := user.FindRole(db.users["user-1"].CompanyRoles, adminRole)
	require.True(t, ok)
	assert.Equal(t, ops.ID, m.DepartmentID)

	refs := db.companies[res.Company.ID].CompanyDepartments
	require.Len(t, refs, 2)
	assert.Equal(t, company.DepartmentRef{DepartmentID: ops.ID, DepartmentName: "Ops"}, refs[1])
}

func TestUpdateDepartment_RenamesRef(t *testing.T) {
	c, db, _ := setup(t)
	ctx := context.Background()

	res, err := c.CreateCompany(ctx, "user-1", company.CreateCompanyInput{Name: "Acme"})
	require.NoError(t, err)
	deptID := res.Company.CompanyDepartments[0].DepartmentID

	name := "Headquarters"
	updated, err := c.UpdateDepartment(ctx, res.Company.ID, deptID, company.UpdateDepartmentInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, name, db.companies[res.Company.ID].CompanyDepartments[0].DepartmentName)

	_, err = c.UpdateDepartment(ctx, "co-other", deptID, company.UpdateDepartmentInput{Name: &name})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDeleteDepartment_ClearsMembershipDepartment(t *testing.T) {
	c, db, _ := setup(t)
	co, d1, d2, r1, _ := seedTwoDepartments(t, c, db)

	require.NoError(t, c.DeleteDepartment(context.Background(), co.ID, d1.ID))

	assert.NotContains(t, db.depts, d1.ID)
	assert.Contains(t, db.depts, d2.ID)
	assert.Contains(t, db.roles, r1, "roles survive their department")

	m, ok := user.FindRole(db.users["user-1"].CompanyRoles, r1)
	require.True(t, ok, "membership is kept")
	assert.Equal(t, co.ID, m.CompanyID)
	assert.Empty(t, m.DepartmentID)

	for _, ref := range db.companies[co.ID].CompanyDepartments {
		assert.NotEqual(t, d1.ID, ref.DepartmentID)
	}
}

func TestDeleteDepartment_DetachesRoles(t *testing.T) {
	c, db, _ := setup(t)
	co, d1, _, r1, _ := seedTwoDepartments(t, c, db)
	require.Equal(t, co.ID, db.roles[r1].CompanyID)

	db.locked = nil
	require.NoError(t, c.DeleteDepartment(context.Background(), co.ID, d1.ID))

	assert.Empty(t, db.roles[r1].DepartmentID)
	assert.Equal(t, co.ID, db.roles[r1].CompanyID)
	assert.Equal(t, []string{"user-1"}, db.locked, "membership rewrites read the holder with a lock")
}

func TestDeleteCompany_AfterDeleteDepartment(t *testing.T) {
	c, db, _ := setup(t)
	ctx := context.Background()
	co, d1, _, r1, r2 := seedTwoDepartments(t, c, db)

	require.NoError(t, c.DeleteDepartment(ctx, co.ID, d1.ID))
	res, err := c.DeleteCompany(ctx, "user-1", co.ID)
	require.NoError(t, err)

	assert.NotContains(t, db.roles, r1, "detached role goes with its company")
	assert.NotContains(t, db.roles, r2)
	assert.NotContains(t, db.tasks, "task-1")
	assert.NotContains(t, db.tasks, "task-2")
	assert.NotContains(t, db.objectives, "obj-1")
	assert.Empty(t, db.roles)
	assert.Empty(t, db.depts)
	assert.Equal(t, int64(3), res.Roles)
	assert.Equal(t, int64(2), res.Departments)
}

func TestDeleteDepartment_NotFound(t *testing.T) {
	c, db, _ := setup(t)
	co, d1, _, _, _ := seedTwoDepartments(t, c, db)

	err := c.DeleteDepartment(context.Background(), "co-other", d1.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Contains(t, db.depts, d1.ID)

	err = c.DeleteDepartment(context.Background(), co.ID, "dep-404")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
