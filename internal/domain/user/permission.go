package user

import "github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"

type Permission string

const (
	// Self Management
	PermissionViewOwnProfile Permission = "profile.view_own"

	// KPI definitions
	PermissionKpiView   Permission = "kpi.view"
	PermissionKpiManage Permission = "kpi.manage"

	// KPI values
	PermissionKpiValueSubmit  Permission = "kpi_value.submit"
	PermissionKpiValueViewAll Permission = "kpi_value.view_all"
	PermissionKpiValueApprove Permission = "kpi_value.approve"

	// Performance evaluations
	PermissionEvaluationViewOwn Permission = "evaluation.view_own"
	PermissionEvaluationViewAll Permission = "evaluation.view_all"
	PermissionEvaluationManage  Permission = "evaluation.manage"
	PermissionEvaluationReview  Permission = "evaluation.review"

	// Organisation
	PermissionReviewCycleManage Permission = "review_cycle.manage"
	PermissionMasterManage      Permission = "master.manage"
	PermissionEmployeeViewAll   Permission = "employee.view_all"
	PermissionEmployeeManage    Permission = "employee.manage"

	// Reports
	PermissionReportView Permission = "report.view"

	// Audit
	PermissionAuditView Permission = "audit.view"
)

var approverPermissions = []Permission{
	PermissionViewOwnProfile,
	PermissionKpiView,
	PermissionKpiValueSubmit,
	PermissionKpiValueViewAll,
	PermissionKpiValueApprove,
	PermissionEvaluationViewOwn,
	PermissionEvaluationViewAll,
	PermissionEvaluationManage,
	PermissionEvaluationReview,
	PermissionEmployeeViewAll,
	PermissionReportView,
}

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: append(append([]Permission{}, approverPermissions...),
		PermissionKpiManage,
		PermissionReviewCycleManage,
		PermissionMasterManage,
		PermissionEmployeeManage,
		PermissionAuditView,
	),
	RoleManager:        approverPermissions,
	RoleDepartmentHead: approverPermissions,
	RoleSectionHead:    approverPermissions,
	RoleEmployee: {
		PermissionViewOwnProfile,
		PermissionKpiView,
		PermissionKpiValueSubmit,
		PermissionEvaluationViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}

// Actor is the authenticated caller as seen by the services.
type Actor struct {
	UserID       string
	EmployeeID   string
	Role         Role
	SectionID    string
	DepartmentID string
}

// Owner is the organisational placement of the employee a record belongs to.
type Owner struct {
	EmployeeID   string
	SectionID    string
	DepartmentID string
}

// StageRoles lists the roles that sit on each approval stage besides admin.
var StageRoles = map[approval.Stage]Role{
	approval.StageSection:    RoleSectionHead,
	approval.StageDepartment: RoleDepartmentHead,
	approval.StageManager:    RoleManager,
}

// CanActAtStage reports whether the actor may approve or reject owner's records at stage.
// Section heads are scoped to the owner's section, department heads to the owner's
// department. Nobody approves their own records.
func CanActAtStage(a Actor, stage approval.Stage, o Owner) bool {
	if a.EmployeeID != "" && a.EmployeeID == o.EmployeeID {
		return false
	}
	if a.Role == RoleAdmin {
		return true
	}
	if StageRoles[stage] != a.Role {
		return false
	}

	switch stage {
	case approval.StageSection:
		return a.SectionID != "" && a.SectionID == o.SectionID
	case approval.StageDepartment:
		return a.DepartmentID != "" && a.DepartmentID == o.DepartmentID
	case approval.StageManager:
		return true
	}
	return false
}

// CanView reports whether the actor may read a record owned by o.
func CanView(a Actor, o Owner) bool {
	if a.EmployeeID != "" && a.EmployeeID == o.EmployeeID {
		return true
	}
	switch a.Role {
	case RoleAdmin, RoleManager:
		return true
	case RoleDepartmentHead:
		return a.DepartmentID != "" && a.DepartmentID == o.DepartmentID
	case RoleSectionHead:
		return a.SectionID != "" && a.SectionID == o.SectionID
	}
	return false
}
