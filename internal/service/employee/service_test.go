package employee

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/kpi-backend-go/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const otherDepartmentID = "7e2c8b63-4d20-4c9f-8b62-2a3a1e7d0002"

type employeeFixture struct {
	org     *servicetest.Org
	tx      *servicetest.Transactor
	auditor *servicetest.Auditor
	service employee.EmployeeService
	ctx     context.Context
}

func newEmployeeFixture() employeeFixture {
	org := servicetest.NewOrg()
	departments := servicetest.NewDepartmentRepository()
	departments.Departments[servicetest.DepartmentID] = department.Department{ID: servicetest.DepartmentID, Name: "Operations", Code: "OPS"}
	departments.Departments[otherDepartmentID] = department.Department{ID: otherDepartmentID, Name: "Finance", Code: "FIN"}

	sections := servicetest.NewSectionRepository()
	sections.Sections[servicetest.SectionID] = section.Section{ID: servicetest.SectionID, DepartmentID: servicetest.DepartmentID, Name: "Logistics", Code: "LOG"}
	sections.Sections[servicetest.OtherSectionID] = section.Section{ID: servicetest.OtherSectionID, DepartmentID: servicetest.DepartmentID, Name: "Warehouse", Code: "WH"}

	f := employeeFixture{
		org:     org,
		tx:      &servicetest.Transactor{},
		auditor: &servicetest.Auditor{},
		ctx:     user.WithActor(context.Background(), org.Admin.Actor()),
	}
	f.service = NewEmployeeService(f.tx, org.Employees, org.Users, departments, sections, f.auditor)
	return f
}

func strPtr(s string) *string { return &s }

func validCreate() employee.CreateEmployeeRequest {
	return employee.CreateEmployeeRequest{
		Email:        "New.Hire@KPI.test",
		Password:     "password123",
		EmployeeCode: "EMP-100",
		FullName:     "New Hire",
		SectionID:    strPtr(servicetest.SectionID),
		DepartmentID: strPtr(servicetest.DepartmentID),
		HireDate:     strPtr("2025-01-06"),
	}
}

func TestEmployeeService_CreateEmployee(t *testing.T) {
	f := newEmployeeFixture()

	resp, err := f.service.CreateEmployee(f.ctx, validCreate())
	require.NoError(t, err)
	assert.Equal(t, "new.hire@kpi.test", resp.Email)
	assert.Equal(t, "employee", resp.Role)
	require.NotNil(t, resp.HireDate)
	assert.Equal(t, "2025-01-06", *resp.HireDate)
	assert.Equal(t, 1, f.tx.Calls)

	u, err := f.org.Users.GetByEmail(context.Background(), "new.hire@kpi.test")
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, u.ID)
	require.NotNil(t, u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte("password123")))

	assert.Equal(t, []string{"create"}, f.auditor.Actions())
	assert.Equal(t, f.org.Admin.UserID, f.auditor.Records[0].ActorUserID)
}

func TestEmployeeService_CreateEmployee_Conflicts(t *testing.T) {
	f := newEmployeeFixture()

	req := validCreate()
	req.EmployeeCode = f.org.Staff.EmployeeCode
	_, err := f.service.CreateEmployee(f.ctx, req)
	assert.ErrorIs(t, err, employee.ErrEmployeeCodeExists)

	req = validCreate()
	req.Email = f.org.Staff.Email
	_, err = f.service.CreateEmployee(f.ctx, req)
	assert.ErrorIs(t, err, employee.ErrEmailExists)

	assert.Equal(t, 0, f.tx.Calls)
}

func TestEmployeeService_CreateEmployee_Placement(t *testing.T) {
	f := newEmployeeFixture()

	req := validCreate()
	req.DepartmentID = strPtr(otherDepartmentID)
	_, err := f.service.CreateEmployee(f.ctx, req)
	assert.ErrorIs(t, err, employee.ErrSectionOutsideDept)

	req = validCreate()
	req.SectionID = nil
	_, err = f.service.CreateEmployee(f.ctx, req)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "section_id")

	// department heads carry only a department
	req = validCreate()
	req.Role = string(user.RoleDepartmentHead)
	req.SectionID = nil
	_, err = f.service.CreateEmployee(f.ctx, req)
	assert.NoError(t, err)
}

func TestEmployeeService_CreateEmployee_RollsBackOnTxFailure(t *testing.T) {
	f := newEmployeeFixture()
	f.tx.Fail = assert.AnError

	_, err := f.service.CreateEmployee(f.ctx, validCreate())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.auditor.Records)
}

func TestEmployeeService_UpdateEmployee_RoleReachesUser(t *testing.T) {
	f := newEmployeeFixture()

	resp, err := f.service.UpdateEmployee(f.ctx, employee.UpdateEmployeeRequest{
		ID:   f.org.Staff.ID,
		Role: strPtr(string(user.RoleSectionHead)),
	})
	require.NoError(t, err)
	assert.Equal(t, "section_head", resp.Role)

	u, err := f.org.Users.GetByID(context.Background(), f.org.Staff.UserID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleSectionHead, u.Role)
}

func TestEmployeeService_UpdateEmployee_SectionMustMatchDepartment(t *testing.T) {
	f := newEmployeeFixture()

	_, err := f.service.UpdateEmployee(f.ctx, employee.UpdateEmployeeRequest{
		ID:           f.org.Staff.ID,
		DepartmentID: strPtr(otherDepartmentID),
	})
	assert.ErrorIs(t, err, employee.ErrSectionOutsideDept)

	resp, err := f.service.UpdateEmployee(f.ctx, employee.UpdateEmployeeRequest{
		ID:        f.org.Staff.ID,
		SectionID: strPtr(servicetest.OtherSectionID),
	})
	require.NoError(t, err)
	assert.Equal(t, servicetest.OtherSectionID, *resp.SectionID)
}

func TestEmployeeService_GetEmployee_Scope(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	_, err := f.service.GetEmployee(ctx, f.org.Staff.Actor(), f.org.Staff.ID)
	assert.NoError(t, err)

	_, err = f.service.GetEmployee(ctx, f.org.Staff.Actor(), f.org.Colleague.ID)
	assert.ErrorIs(t, err, employee.ErrUnauthorized)

	_, err = f.service.GetEmployee(ctx, f.org.SectionHead.Actor(), f.org.Colleague.ID)
	assert.ErrorIs(t, err, employee.ErrUnauthorized)

	_, err = f.service.GetEmployee(ctx, f.org.DeptHead.Actor(), f.org.Colleague.ID)
	assert.NoError(t, err)

	_, err = f.service.GetEmployee(ctx, f.org.Manager.Actor(), "missing")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestEmployeeService_GetMe(t *testing.T) {
	f := newEmployeeFixture()

	me, err := f.service.GetMe(context.Background(), f.org.Staff.Actor())
	require.NoError(t, err)
	assert.Equal(t, f.org.Staff.ID, me.ID)

	_, err = f.service.GetMe(context.Background(), user.Actor{UserID: "no-profile"})
	assert.ErrorIs(t, err, user.ErrEmployeeProfileRequired)
}

func TestEmployeeService_ListEmployees_Scoped(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	all, err := f.service.ListEmployees(ctx, f.org.Manager.Actor(), employee.EmployeeFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, all.TotalCount)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 20, all.Limit)
	assert.Equal(t, "1-6 of 6", all.Showing)

	// a section head asking for another section still gets their own
	scoped, err := f.service.ListEmployees(ctx, f.org.SectionHead.Actor(), employee.EmployeeFilter{SectionID: strPtr(servicetest.OtherSectionID)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, scoped.TotalCount)
	for _, e := range scoped.Employees {
		assert.Equal(t, servicetest.SectionID, *e.SectionID)
	}

	_, err = f.service.ListEmployees(ctx, f.org.Staff.Actor(), employee.EmployeeFilter{})
	assert.ErrorIs(t, err, user.ErrInsufficientPermissions)
}

func TestEmployeeService_DeleteEmployee(t *testing.T) {
	f := newEmployeeFixture()

	err := f.service.DeleteEmployee(f.ctx, f.org.Admin.Actor(), f.org.Admin.ID)
	assert.ErrorIs(t, err, employee.ErrCannotDeleteSelf)

	require.NoError(t, f.service.DeleteEmployee(f.ctx, f.org.Admin.Actor(), f.org.Colleague.ID))
	_, err = f.service.GetEmployee(context.Background(), f.org.Manager.Actor(), f.org.Colleague.ID)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	assert.ErrorIs(t, f.service.DeleteEmployee(f.ctx, f.org.Admin.Actor(), f.org.Colleague.ID), employee.ErrEmployeeNotFound)
	assert.Equal(t, []string{"delete"}, f.auditor.Actions())
}
