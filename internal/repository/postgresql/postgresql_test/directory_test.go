package postgresql_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/audit"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/department"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/master/section"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/reviewcycle"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/kpi-backend-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, postgresql.Migrate(context.Background(), db))
}

func TestUserRepository(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewUserRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)

	created, err := repo.Create(ctx, user.User{Email: "new@kpi.test", PasswordHash: &h, Role: user.RoleEmployee})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, user.User{Email: "new@kpi.test", Role: user.RoleEmployee})
	assert.ErrorIs(t, err, user.ErrUserEmailExists)

	// the join carries the employee placement used for scoping
	staff, err := repo.GetByEmail(ctx, "STAFF@kpi.test")
	require.NoError(t, err)
	require.NotNil(t, staff.EmployeeID)
	assert.Equal(t, s.EmployeeID, *staff.EmployeeID)
	require.NotNil(t, staff.SectionID)
	assert.Equal(t, s.SectionID, *staff.SectionID)

	linked, err := repo.LinkGoogleAccount(ctx, "google-1", "staff@kpi.test")
	require.NoError(t, err)
	require.NotNil(t, linked.OAuthProviderID)
	assert.Equal(t, "google-1", *linked.OAuthProviderID)

	require.NoError(t, repo.UpdateRole(ctx, s.UserID, user.RoleSectionHead))
	got, err := repo.GetByID(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleSectionHead, got.Role)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestEmployeeRepository_FindApprovers(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewEmployeeRepository(db)

	staff, err := repo.GetByUserID(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Logistics", *staff.SectionName)

	approvers, err := repo.FindApprovers(ctx, approval.StageSection, staff.Owner())
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	assert.Equal(t, "EMP-010", approvers[0].EmployeeCode)
	headID := approvers[0].ID

	// nobody holds the department head role yet
	approvers, err = repo.FindApprovers(ctx, approval.StageDepartment, staff.Owner())
	require.NoError(t, err)
	assert.Empty(t, approvers)

	require.NoError(t, repo.SoftDelete(ctx, headID))
	approvers, err = repo.FindApprovers(ctx, approval.StageSection, staff.Owner())
	require.NoError(t, err)
	assert.Empty(t, approvers, "deleted employees stop receiving requests")

	exists, err := repo.ExistsByCode(ctx, "EMP-001")
	require.NoError(t, err)
	assert.True(t, exists)

	list, total, err := repo.List(ctx, employee.EmployeeFilter{SectionID: &s.SectionID, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestMasterRepositories_DeleteInUse(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()

	departments := postgresql.NewDepartmentRepository(db)
	sections := postgresql.NewSectionRepository(db)

	_, err := departments.Create(ctx, department.Department{Name: "Duplicate", Code: "OPS"})
	assert.ErrorIs(t, err, department.ErrDepartmentCodeExists)

	assert.ErrorIs(t, departments.Delete(ctx, s.DepartmentID), department.ErrDepartmentInUse)
	assert.ErrorIs(t, sections.Delete(ctx, s.SectionID), section.ErrSectionInUse)

	empty, err := sections.Create(ctx, section.Section{DepartmentID: s.DepartmentID, Name: "Archive", Code: "ARC"})
	require.NoError(t, err)
	assert.Equal(t, "Operations", empty.DepartmentName)
	require.NoError(t, sections.Delete(ctx, empty.ID))
}

func TestReviewCycleRepository_Referenced(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewReviewCycleRepository(db)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	q2, err := repo.Create(ctx, reviewcycle.ReviewCycle{Name: "Q2 2025", StartDate: start, EndDate: start.AddDate(0, 3, -1)})
	require.NoError(t, err)

	_, err = repo.Create(ctx, reviewcycle.ReviewCycle{Name: "Q2 2025", StartDate: start, EndDate: start})
	assert.ErrorIs(t, err, reviewcycle.ErrReviewCycleNameExists)

	referenced, err := repo.IsReferenced(ctx, q2.ID)
	require.NoError(t, err)
	assert.False(t, referenced)

	_, err = db.Exec(ctx, `INSERT INTO kpi_values (kpi_id, employee_id, review_cycle_id, target_value, actual_value, weight)
		VALUES ($1, $2, $3, 1, 1, 10)`, s.KpiID, s.EmployeeID, q2.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, q2.ID)
	require.NoError(t, err)
	assert.True(t, got.Referenced)

	cycles, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "Q2 2025", cycles[0].Name)
}

func TestNotificationRepository(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewNotificationRepository(db)

	batch := []*notification.Notification{
		{RecipientID: s.ApproverID, SenderID: &s.UserID, Type: notification.TypeApprovalRequested, Title: "KPI value waiting", Message: "m1", Data: map[string]interface{}{"stage": "section"}},
		{RecipientID: s.ApproverID, Type: notification.TypeApprovalReminder, Title: "Reminder", Message: "m2"},
		{RecipientID: s.UserID, Type: notification.TypeApprovalApproved, Title: "Approved", Message: "m3"},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	inbox, total, err := repo.GetByUserID(ctx, s.ApproverID, 1, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, inbox, 2)

	first, err := repo.GetByID(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "section", first.Data["stage"])

	// ids owned by someone else are left alone
	require.NoError(t, repo.MarkAsRead(ctx, []string{batch[0].ID, batch[2].ID}, s.ApproverID))
	unread, err := repo.GetUnreadCount(ctx, s.ApproverID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	unread, err = repo.GetUnreadCount(ctx, s.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, repo.MarkAllAsRead(ctx, s.ApproverID))
	_, total, err = repo.GetByUserID(ctx, s.ApproverID, 1, 10, true)
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.ErrorIs(t, repo.Delete(ctx, batch[2].ID, s.ApproverID), notification.ErrNotificationNotFound)
	require.NoError(t, repo.Delete(ctx, batch[2].ID, s.UserID))

	_, err = repo.GetPreference(ctx, s.UserID, notification.TypeApprovalReminder)
	assert.ErrorIs(t, err, notification.ErrPreferenceNotFound)

	pref := &notification.NotificationPreference{UserID: s.UserID, NotificationType: notification.TypeApprovalReminder, EmailEnabled: false, PushEnabled: true}
	require.NoError(t, repo.UpsertPreference(ctx, pref))
	pref.EmailEnabled, pref.PushEnabled = true, false
	require.NoError(t, repo.UpsertPreference(ctx, pref))

	prefs, err := repo.GetPreferences(ctx, s.UserID)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.True(t, prefs[0].EmailEnabled)
	assert.False(t, prefs[0].PushEnabled)
}

func TestAuditRepository(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewAuditRepository(db)

	after, err := json.Marshal(map[string]string{"status": "pending_section_approval"})
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, audit.Entry{ActorUserID: &s.UserID, Action: "submit", EntityType: audit.EntityKpiValue, EntityID: "v1", After: after, RequestID: "req-1", IP: "10.0.0.1"}))
	require.NoError(t, repo.Create(ctx, audit.Entry{Action: "reminder", EntityType: audit.EntityKpiValue, EntityID: "v2"}))

	entity := "v1"
	entries, total, err := repo.List(ctx, audit.Filter{EntityID: &entity, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "submit", entries[0].Action)
	assert.Nil(t, entries[0].Before)
	assert.JSONEq(t, string(after), string(entries[0].After))

	entries, total, err = repo.List(ctx, audit.Filter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, entries, 1)
}
