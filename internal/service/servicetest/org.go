package servicetest

import (
	"context"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
)

const (
	SectionID      = "5d1b7a52-3c1f-4b8e-9a51-1f2f0d6c0001"
	OtherSectionID = "5d1b7a52-3c1f-4b8e-9a51-1f2f0d6c0002"
	DepartmentID   = "7e2c8b63-4d20-4c9f-8b62-2a3a1e7d0001"
)

// Org is a small organisation: one section inside one department with a holder
// for every approval role, plus a colleague in another section.
type Org struct {
	Users     *UserRepository
	Employees *EmployeeRepository

	Staff       employee.Employee
	Colleague   employee.Employee
	SectionHead employee.Employee
	DeptHead    employee.Employee
	Manager     employee.Employee
	Admin       employee.Employee
}

func NewOrg() *Org {
	o := &Org{Users: NewUserRepository(), Employees: NewEmployeeRepository()}
	o.Staff = o.add("EMP-001", "Rina Staff", user.RoleEmployee, SectionID)
	o.Colleague = o.add("EMP-002", "Budi Colleague", user.RoleEmployee, OtherSectionID)
	o.SectionHead = o.add("EMP-010", "Sari Section", user.RoleSectionHead, SectionID)
	o.DeptHead = o.add("EMP-020", "Dewi Department", user.RoleDepartmentHead, "")
	o.Manager = o.add("EMP-030", "Joko Manager", user.RoleManager, "")
	o.Admin = o.add("EMP-040", "Ani Admin", user.RoleAdmin, "")
	return o
}

func (o *Org) add(code, name string, role user.Role, sectionID string) employee.Employee {
	email := code + "@kpi.test"
	u, err := o.Users.Create(context.Background(), user.User{Email: email, Role: role})
	if err != nil {
		panic(err)
	}

	dept := DepartmentID
	e := employee.Employee{
		UserID:       u.ID,
		EmployeeCode: code,
		FullName:     name,
		DepartmentID: &dept,
		Email:        email,
		Role:         role,
	}
	if sectionID != "" {
		s := sectionID
		e.SectionID = &s
	}
	e = o.Employees.Add(e)

	u.EmployeeID = &e.ID
	u.DepartmentID = &dept
	u.SectionID = e.SectionID
	o.Users.Users[u.ID] = u
	return e
}
