package department

import "errors"

var (
	ErrDepartmentNotFound   = errors.New("department not found")
	ErrDepartmentCodeExists = errors.New("department with this code already exists")
	ErrDepartmentInUse      = errors.New("department still has sections or employees")
)
