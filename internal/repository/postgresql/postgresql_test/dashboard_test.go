package postgresql_test

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/dashboard"
	"github.com/cmlabs-hris/kpi-backend-go/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardRepository_Counts(t *testing.T) {
	db := setupDB(t)
	s := seedOrg(t, db)
	ctx := context.Background()
	repo := postgresql.NewDashboardRepository(db)

	var headID string
	require.NoError(t, db.QueryRow(ctx, `SELECT id FROM employees WHERE user_id = $1`, s.ApproverID).Scan(&headID))

	_, err := db.Exec(ctx, `
		INSERT INTO kpi_values (kpi_id, employee_id, review_cycle_id, target_value, actual_value, weight, status) VALUES
			($1, $2, $3, 100, 90, 20, 'submitted'),
			($1, $4, $3, 100, 70, 20, 'pending_section_approval')`,
		s.KpiID, s.EmployeeID, s.CycleID, headID)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `
		INSERT INTO evaluations (employee_id, review_cycle_id, status, rank, final_score, completed_at) VALUES
			($1, $2, 'approved', 'A', 4.5, NOW()),
			($3, $2, 'pending_manager_approval', '', NULL, NULL)`,
		s.EmployeeID, s.CycleID, headID)
	require.NoError(t, err)

	counts, err := repo.CountValuesByStatus(ctx, dashboard.Scope{SectionID: &s.SectionID})
	require.NoError(t, err)
	assert.Equal(t, dashboard.StatusCounts{approval.StatusPendingSectionApproval: 2}, counts)

	counts, err = repo.CountValuesByStatus(ctx, dashboard.Scope{SectionID: &s.SectionID, ExcludeEmployeeID: &headID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[approval.StatusPendingSectionApproval])

	other := "00000000-0000-0000-0000-000000000000"
	counts, err = repo.CountValuesByStatus(ctx, dashboard.Scope{ReviewCycleID: &other})
	require.NoError(t, err)
	assert.Empty(t, counts)

	counts, err = repo.CountEvaluationsByStatus(ctx, dashboard.Scope{DepartmentID: &s.DepartmentID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[approval.StatusApproved])
	assert.EqualValues(t, 1, counts[approval.StatusPendingManagerApproval])

	stats, err := repo.GetScoreStats(ctx, dashboard.Scope{ReviewCycleID: &s.CycleID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Completed)
	assert.InDelta(t, 4.5, stats.AverageFinal, 0.0001)
	assert.Equal(t, map[string]int64{"A": 1}, stats.Ranks)
}
