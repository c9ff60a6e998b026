// Package servicetest provides in-memory repositories and collaborators for
// service tests.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/evaluation"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/kpi"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/google/uuid"
)

// Transactor runs fn directly. Fail makes the next call return Fail without running fn.
type Transactor struct {
	Calls int
	Fail  error
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	if t.Fail != nil {
		err := t.Fail
		t.Fail = nil
		return err
	}
	return fn(ctx)
}

func page[T any](items []T, p, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := (p - 1) * limit
	if start < 0 || start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ---------------------------------------------------------------- users

type UserRepository struct {
	mu    sync.Mutex
	Users map[string]user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{Users: make(map[string]user.User)}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrUserNotFound
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, newUser user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if strings.EqualFold(u.Email, newUser.Email) {
			return user.User{}, user.ErrUserEmailExists
		}
	}
	if newUser.ID == "" {
		newUser.ID = uuid.NewString()
	}
	newUser.CreatedAt = time.Now()
	newUser.UpdatedAt = newUser.CreatedAt
	r.Users[newUser.ID] = newUser
	return newUser, nil
}

func (r *UserRepository) LinkGoogleAccount(ctx context.Context, googleID string, email string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.Users {
		if strings.EqualFold(u.Email, email) {
			provider := "google"
			u.OAuthProvider = &provider
			u.OAuthProviderID = &googleID
			r.Users[id] = u
			return u, nil
		}
	}
	return user.User{}, user.ErrUserNotFound
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID string, role user.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Role = role
	r.Users[userID] = u
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.PasswordHash = &passwordHash
	r.Users[userID] = u
	return nil
}

// ---------------------------------------------------------------- employees

type EmployeeRepository struct {
	mu        sync.Mutex
	Employees map[string]employee.Employee
}

func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{Employees: make(map[string]employee.Employee)}
}

// Add stores e as is and returns it.
func (r *EmployeeRepository) Add(e employee.Employee) employee.Employee {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	r.Employees[e.ID] = e
	return e
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Employees[id]
	if !ok || e.DeletedAt != nil {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *EmployeeRepository) GetByUserID(ctx context.Context, userID string) (employee.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Employees {
		if e.UserID == userID && e.DeletedAt == nil {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (r *EmployeeRepository) Create(ctx context.Context, newEmployee employee.Employee) (employee.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Employees {
		if e.EmployeeCode == newEmployee.EmployeeCode {
			return employee.Employee{}, employee.ErrEmployeeCodeExists
		}
	}
	newEmployee.ID = uuid.NewString()
	newEmployee.CreatedAt = time.Now()
	newEmployee.UpdatedAt = newEmployee.CreatedAt
	r.Employees[newEmployee.ID] = newEmployee
	return newEmployee, nil
}

func (r *EmployeeRepository) ExistsByCode(ctx context.Context, employeeCode string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Employees {
		if e.EmployeeCode == employeeCode {
			return true, nil
		}
	}
	return false, nil
}

func (r *EmployeeRepository) Update(ctx context.Context, req employee.UpdateEmployeeRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Employees[req.ID]
	if !ok || e.DeletedAt != nil {
		return employee.ErrEmployeeNotFound
	}
	if req.FullName != nil {
		e.FullName = *req.FullName
	}
	if req.PositionTitle != nil {
		e.PositionTitle = req.PositionTitle
	}
	if req.Role != nil {
		e.Role = user.Role(*req.Role)
	}
	if req.SectionID != nil {
		e.SectionID = req.SectionID
	}
	if req.DepartmentID != nil {
		e.DepartmentID = req.DepartmentID
	}
	e.UpdatedAt = time.Now()
	r.Employees[req.ID] = e
	return nil
}

func (r *EmployeeRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Employees[id]
	if !ok || e.DeletedAt != nil {
		return employee.ErrEmployeeNotFound
	}
	now := time.Now()
	e.DeletedAt = &now
	r.Employees[id] = e
	return nil
}

func (r *EmployeeRepository) UpdateAvatar(ctx context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Employees[id]
	if !ok || e.DeletedAt != nil {
		return employee.ErrEmployeeNotFound
	}
	e.AvatarPath = &path
	r.Employees[id] = e
	return nil
}

func (r *EmployeeRepository) List(ctx context.Context, filter employee.EmployeeFilter) ([]employee.Employee, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []employee.Employee
	for _, e := range r.Employees {
		if e.DeletedAt != nil {
			continue
		}
		if filter.SectionID != nil && (e.SectionID == nil || *e.SectionID != *filter.SectionID) {
			continue
		}
		if filter.DepartmentID != nil && (e.DepartmentID == nil || *e.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.Role != nil && string(e.Role) != *filter.Role {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(e.FullName), strings.ToLower(*filter.Search)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return page(out, filter.Page, filter.Limit), int64(len(out)), nil
}

// FindApprovers returns the holders of the stage role whose scope covers owner.
// Admins may act anywhere but are not routed approval requests.
func (r *EmployeeRepository) FindApprovers(ctx context.Context, stage approval.Stage, owner user.Owner) ([]employee.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []employee.Employee
	for _, e := range r.Employees {
		if e.DeletedAt != nil || e.Role != user.StageRoles[stage] {
			continue
		}
		if user.CanActAtStage(e.Actor(), stage, owner) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeCode < out[j].EmployeeCode })
	return out, nil
}

// ---------------------------------------------------------------- master data

type DepartmentRepository struct {
	mu          sync.Mutex
	Departments map[string]department.Department
	InUse       map[string]bool
}

func NewDepartmentRepository() *DepartmentRepository {
	return &DepartmentRepository{Departments: make(map[string]department.Department), InUse: make(map[string]bool)}
}

func (r *DepartmentRepository) Create(ctx context.Context, d department.Department) (department.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Departments {
		if existing.Code == d.Code {
			return department.Department{}, department.ErrDepartmentCodeExists
		}
	}
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	r.Departments[d.ID] = d
	return d, nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id string) (department.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.Departments[id]
	if !ok {
		return department.Department{}, department.ErrDepartmentNotFound
	}
	return d, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]department.Department, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]department.Department, 0, len(r.Departments))
	for _, d := range r.Departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *DepartmentRepository) Update(ctx context.Context, req department.UpdateDepartmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.Departments[req.ID]
	if !ok {
		return department.ErrDepartmentNotFound
	}
	if req.Code != nil {
		for id, existing := range r.Departments {
			if id != req.ID && existing.Code == *req.Code {
				return department.ErrDepartmentCodeExists
			}
		}
		d.Code = *req.Code
	}
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if req.HeadID != nil {
		d.HeadID = req.HeadID
	}
	d.UpdatedAt = time.Now()
	r.Departments[req.ID] = d
	return nil
}

func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Departments[id]; !ok {
		return department.ErrDepartmentNotFound
	}
	if r.InUse[id] {
		return department.ErrDepartmentInUse
	}
	delete(r.Departments, id)
	return nil
}

type SectionRepository struct {
	mu       sync.Mutex
	Sections map[string]section.Section
	InUse    map[string]bool
}

func NewSectionRepository() *SectionRepository {
	return &SectionRepository{Sections: make(map[string]section.Section), InUse: make(map[string]bool)}
}

func (r *SectionRepository) Create(ctx context.Context, s section.Section) (section.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Sections {
		if existing.Code == s.Code {
			return section.Section{}, section.ErrSectionCodeExists
		}
	}
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.Sections[s.ID] = s
	return s, nil
}

func (r *SectionRepository) GetByID(ctx context.Context, id string) (section.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sections[id]
	if !ok {
		return section.Section{}, section.ErrSectionNotFound
	}
	return s, nil
}

func (r *SectionRepository) List(ctx context.Context, filter section.SectionFilter) ([]section.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []section.Section
	for _, s := range r.Sections {
		if filter.DepartmentID != nil && s.DepartmentID != *filter.DepartmentID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *SectionRepository) Update(ctx context.Context, req section.UpdateSectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Sections[req.ID]
	if !ok {
		return section.ErrSectionNotFound
	}
	if req.Code != nil {
		for id, existing := range r.Sections {
			if id != req.ID && existing.Code == *req.Code {
				return section.ErrSectionCodeExists
			}
		}
		s.Code = *req.Code
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.DepartmentID != nil {
		s.DepartmentID = *req.DepartmentID
	}
	if req.HeadID != nil {
		s.HeadID = req.HeadID
	}
	s.UpdatedAt = time.Now()
	r.Sections[req.ID] = s
	return nil
}

func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Sections[id]; !ok {
		return section.ErrSectionNotFound
	}
	if r.InUse[id] {
		return section.ErrSectionInUse
	}
	delete(r.Sections, id)
	return nil
}

// ---------------------------------------------------------------- review cycles

type ReviewCycleRepository struct {
	mu         sync.Mutex
	Cycles     map[string]reviewcycle.ReviewCycle
	Referenced map[string]bool
}

func NewReviewCycleRepository() *ReviewCycleRepository {
	return &ReviewCycleRepository{Cycles: make(map[string]reviewcycle.ReviewCycle), Referenced: make(map[string]bool)}
}

func (r *ReviewCycleRepository) Create(ctx context.Context, c reviewcycle.ReviewCycle) (reviewcycle.ReviewCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Cycles {
		if existing.Name == c.Name {
			return reviewcycle.ReviewCycle{}, reviewcycle.ErrReviewCycleNameExists
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.Cycles[c.ID] = c
	return c, nil
}

func (r *ReviewCycleRepository) GetByID(ctx context.Context, id string) (reviewcycle.ReviewCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Cycles[id]
	if !ok {
		return reviewcycle.ReviewCycle{}, reviewcycle.ErrReviewCycleNotFound
	}
	c.Referenced = r.Referenced[id]
	return c, nil
}

func (r *ReviewCycleRepository) List(ctx context.Context) ([]reviewcycle.ReviewCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reviewcycle.ReviewCycle, 0, len(r.Cycles))
	for id, c := range r.Cycles {
		c.Referenced = r.Referenced[id]
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *ReviewCycleRepository) Update(ctx context.Context, c reviewcycle.ReviewCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Cycles[c.ID]; !ok {
		return reviewcycle.ErrReviewCycleNotFound
	}
	for id, existing := range r.Cycles {
		if id != c.ID && existing.Name == c.Name {
			return reviewcycle.ErrReviewCycleNameExists
		}
	}
	c.UpdatedAt = time.Now()
	r.Cycles[c.ID] = c
	return nil
}

func (r *ReviewCycleRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Referenced[id], nil
}

// ---------------------------------------------------------------- kpis

type KpiRepository struct {
	mu   sync.Mutex
	Kpis map[string]kpi.Kpi
}

func NewKpiRepository() *KpiRepository {
	return &KpiRepository{Kpis: make(map[string]kpi.Kpi)}
}

func (r *KpiRepository) Create(ctx context.Context, k kpi.Kpi) (kpi.Kpi, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Kpis {
		if strings.EqualFold(existing.Name, k.Name) {
			return kpi.Kpi{}, kpi.ErrKpiNameExists
		}
	}
	k.ID = uuid.NewString()
	k.CreatedAt = time.Now()
	k.UpdatedAt = k.CreatedAt
	r.Kpis[k.ID] = k
	return k, nil
}

func (r *KpiRepository) GetByID(ctx context.Context, id string) (kpi.Kpi, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.Kpis[id]
	if !ok {
		return kpi.Kpi{}, kpi.ErrKpiNotFound
	}
	return k, nil
}

func (r *KpiRepository) List(ctx context.Context, filter kpi.KpiFilter) ([]kpi.Kpi, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []kpi.Kpi
	for _, k := range r.Kpis {
		if filter.IsActive != nil && k.IsActive != *filter.IsActive {
			continue
		}
		if filter.DepartmentID != nil && (k.DepartmentID == nil || *k.DepartmentID != *filter.DepartmentID) {
			continue
		}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, filter.Page, filter.Limit), int64(len(out)), nil
}

func (r *KpiRepository) Update(ctx context.Context, req kpi.UpdateKpiRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.Kpis[req.ID]
	if !ok {
		return kpi.ErrKpiNotFound
	}
	if req.Name != nil {
		k.Name = *req.Name
	}
	if req.Description != nil {
		k.Description = req.Description
	}
	if req.Unit != nil {
		k.Unit = *req.Unit
	}
	if req.DepartmentID != nil {
		k.DepartmentID = req.DepartmentID
	}
	if req.DefaultTarget != nil {
		k.DefaultTarget = req.DefaultTarget
	}
	if req.Frequency != nil {
		k.Frequency = kpi.Frequency(*req.Frequency)
	}
	if req.IsActive != nil {
		k.IsActive = *req.IsActive
	}
	k.UpdatedAt = time.Now()
	r.Kpis[req.ID] = k
	return nil
}

func (r *KpiRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Kpis[id]; !ok {
		return kpi.ErrKpiNotFound
	}
	delete(r.Kpis, id)
	return nil
}

// ValueRepository stores KPI values. Join fields are filled from Employees and
// Kpis when those are set.
type ValueRepository struct {
	mu        sync.Mutex
	Values    map[string]kpi.Value
	Employees *EmployeeRepository
	Kpis      *KpiRepository
	Locks     int
	// BudgetLocks records each LockWeightBudget call as "employee/cycle".
	BudgetLocks []string
}

func NewValueRepository(employees *EmployeeRepository, kpis *KpiRepository) *ValueRepository {
	return &ValueRepository{Values: make(map[string]kpi.Value), Employees: employees, Kpis: kpis}
}

func (r *ValueRepository) join(v kpi.Value) kpi.Value {
	if r.Employees != nil {
		if e, err := r.Employees.GetByID(context.Background(), v.EmployeeID); err == nil {
			o := e.Owner()
			v.EmployeeName, v.SectionID, v.DepartmentID = e.FullName, o.SectionID, o.DepartmentID
		}
	}
	if r.Kpis != nil {
		if k, err := r.Kpis.GetByID(context.Background(), v.KpiID); err == nil {
			v.KpiName = k.Name
		}
	}
	return v
}

func (r *ValueRepository) Create(ctx context.Context, v kpi.Value) (kpi.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Values {
		if existing.EmployeeID == v.EmployeeID && existing.KpiID == v.KpiID && existing.ReviewCycleID == v.ReviewCycleID {
			return kpi.Value{}, kpi.ErrKpiValueExists
		}
	}
	v.ID = uuid.NewString()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	r.Values[v.ID] = v
	return r.join(v), nil
}

func (r *ValueRepository) GetByID(ctx context.Context, id string) (kpi.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Values[id]
	if !ok {
		return kpi.Value{}, kpi.ErrKpiValueNotFound
	}
	return r.join(v), nil
}

func (r *ValueRepository) GetByIDForUpdate(ctx context.Context, id string) (kpi.Value, error) {
	r.mu.Lock()
	r.Locks++
	r.mu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *ValueRepository) List(ctx context.Context, filter kpi.ValueFilter) ([]kpi.Value, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []kpi.Value
	for _, v := range r.Values {
		v = r.join(v)
		if filter.EmployeeID != nil && v.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.KpiID != nil && v.KpiID != *filter.KpiID {
			continue
		}
		if filter.ReviewCycleID != nil && v.ReviewCycleID != *filter.ReviewCycleID {
			continue
		}
		if filter.Status != nil && string(v.Status) != *filter.Status {
			continue
		}
		if filter.SectionID != nil && v.SectionID != *filter.SectionID {
			continue
		}
		if filter.DepartmentID != nil && v.DepartmentID != *filter.DepartmentID {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, filter.Page, filter.Limit), int64(len(out)), nil
}

func (r *ValueRepository) Update(ctx context.Context, v kpi.Value, expected approval.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.Values[v.ID]
	if !ok {
		return kpi.ErrKpiValueNotFound
	}
	if stored.Status != expected {
		return &approval.PreconditionError{Expected: string(expected), Actual: string(stored.Status)}
	}
	v.UpdatedAt = time.Now()
	r.Values[v.ID] = v
	return nil
}

func (r *ValueRepository) LockWeightBudget(ctx context.Context, employeeID, reviewCycleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BudgetLocks = append(r.BudgetLocks, employeeID+"/"+reviewCycleID)
	return nil
}

func (r *ValueRepository) SumWeight(ctx context.Context, employeeID, reviewCycleID, excludeID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for id, v := range r.Values {
		if id != excludeID && v.EmployeeID == employeeID && v.ReviewCycleID == reviewCycleID {
			sum += v.Weight
		}
	}
	return sum, nil
}

func (r *ValueRepository) CountByKpi(ctx context.Context, kpiID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, v := range r.Values {
		if v.KpiID == kpiID {
			n++
		}
	}
	return n, nil
}

func (r *ValueRepository) ListPendingSince(ctx context.Context, before time.Time) ([]kpi.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []kpi.Value
	for _, v := range r.Values {
		if v.Status.IsPending() && v.TransitionedAt != nil && v.TransitionedAt.Before(before) {
			out = append(out, r.join(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransitionedAt.Before(*out[j].TransitionedAt) })
	return out, nil
}

func (r *ValueRepository) UpdateEvidence(ctx context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.Values[id]
	if !ok {
		return kpi.ErrKpiValueNotFound
	}
	v.EvidencePath = &path
	r.Values[id] = v
	return nil
}

// ---------------------------------------------------------------- evaluations

type EvaluationRepository struct {
	mu          sync.Mutex
	Evaluations map[string]evaluation.Evaluation
	Employees   *EmployeeRepository
	Cycles      *ReviewCycleRepository
}

func NewEvaluationRepository(employees *EmployeeRepository, cycles *ReviewCycleRepository) *EvaluationRepository {
	return &EvaluationRepository{Evaluations: make(map[string]evaluation.Evaluation), Employees: employees, Cycles: cycles}
}

func (r *EvaluationRepository) join(e evaluation.Evaluation) evaluation.Evaluation {
	if r.Employees != nil {
		if emp, err := r.Employees.GetByID(context.Background(), e.EmployeeID); err == nil {
			o := emp.Owner()
			e.EmployeeName, e.SectionID, e.DepartmentID = emp.FullName, o.SectionID, o.DepartmentID
		}
	}
	if r.Cycles != nil {
		if c, err := r.Cycles.GetByID(context.Background(), e.ReviewCycleID); err == nil {
			e.CycleName = c.Name
		}
	}
	return e
}

func clone(e evaluation.Evaluation) evaluation.Evaluation {
	e.Objectives = append([]evaluation.Objective(nil), e.Objectives...)
	return e
}

func (r *EvaluationRepository) Create(ctx context.Context, e evaluation.Evaluation) (evaluation.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Evaluations {
		if existing.EmployeeID == e.EmployeeID && existing.ReviewCycleID == e.ReviewCycleID {
			return evaluation.Evaluation{}, evaluation.ErrEvaluationExists
		}
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	r.Evaluations[e.ID] = clone(e)
	return r.join(clone(e)), nil
}

func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (evaluation.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Evaluations[id]
	if !ok {
		return evaluation.Evaluation{}, evaluation.ErrEvaluationNotFound
	}
	return r.join(clone(e)), nil
}

func (r *EvaluationRepository) GetByIDForUpdate(ctx context.Context, id string) (evaluation.Evaluation, error) {
	return r.GetByID(ctx, id)
}

func (r *EvaluationRepository) List(ctx context.Context, filter evaluation.EvaluationFilter) ([]evaluation.Evaluation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []evaluation.Evaluation
	for _, e := range r.Evaluations {
		e = r.join(clone(e))
		if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.ReviewCycleID != nil && e.ReviewCycleID != *filter.ReviewCycleID {
			continue
		}
		if filter.Status != nil && string(e.Status) != *filter.Status {
			continue
		}
		if filter.SectionID != nil && e.SectionID != *filter.SectionID {
			continue
		}
		if filter.DepartmentID != nil && e.DepartmentID != *filter.DepartmentID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, filter.Page, filter.Limit), int64(len(out)), nil
}

func (r *EvaluationRepository) Update(ctx context.Context, e evaluation.Evaluation, expected approval.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.Evaluations[e.ID]
	if !ok {
		return evaluation.ErrEvaluationNotFound
	}
	if stored.Status != expected {
		return &approval.PreconditionError{Expected: string(expected), Actual: string(stored.Status)}
	}
	e.UpdatedAt = time.Now()
	r.Evaluations[e.ID] = clone(e)
	return nil
}

func (r *EvaluationRepository) ExistsForEmployeeCycle(ctx context.Context, employeeID, reviewCycleID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Evaluations {
		if e.EmployeeID == employeeID && e.ReviewCycleID == reviewCycleID {
			return true, nil
		}
	}
	return false, nil
}

func (r *EvaluationRepository) ListPendingSince(ctx context.Context, before time.Time) ([]evaluation.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []evaluation.Evaluation
	for _, e := range r.Evaluations {
		if e.Status.IsPending() && e.TransitionedAt != nil && e.TransitionedAt.Before(before) {
			out = append(out, r.join(clone(e)))
		}
	}
	return out, nil
}
