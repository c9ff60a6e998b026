package approval

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func pending() Workflow {
	w := NewDraft()
	if err := w.Submit(now); err != nil {
		panic(err)
	}
	return w
}

func TestSubmit(t *testing.T) {
	w := NewDraft()
	require.NoError(t, w.Submit(now))
	assert.Equal(t, StatusPendingSectionApproval, w.Status)
	require.NotNil(t, w.SubmittedAt)

	err := w.Submit(now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveChain(t *testing.T) {
	w := pending()

	require.NoError(t, w.Approve(StageSection, "sec-head", now))
	assert.Equal(t, StatusPendingDeptApproval, w.Status)
	require.NoError(t, w.Approve(StageDepartment, "dept-head", now))
	assert.Equal(t, StatusPendingManagerApproval, w.Status)
	require.NoError(t, w.Approve(StageManager, "manager", now))
	assert.Equal(t, StatusApproved, w.Status)

	assert.Equal(t, "sec-head", *w.SectionApprovedBy)
	assert.Equal(t, "dept-head", *w.DepartmentApprovedBy)
	assert.Equal(t, "manager", *w.ManagerApprovedBy)
}

func TestApproveFromLegacySubmitted(t *testing.T) {
	w := Workflow{Status: StatusSubmitted}
	require.NoError(t, w.Approve(StageSection, "sec-head", now))
	assert.Equal(t, StatusPendingDeptApproval, w.Status)
}

func TestApproveManagerOnlyYieldsApproved(t *testing.T) {
	for _, s := range Statuses {
		w := Workflow{Status: s}
		err := w.Approve(StageManager, "manager", now)
		if s == StatusPendingManagerApproval {
			require.NoError(t, err)
			assert.Equal(t, StatusApproved, w.Status)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition, "from %s", s)
		assert.Equal(t, s, w.Status)
	}
}

func TestApproveWrongStageLeavesStatusUnchanged(t *testing.T) {
	w := pending()

	err := w.Approve(StageManager, "manager", now)
	require.Error(t, err)

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, StatusPendingSectionApproval, ite.Current)
	assert.Equal(t, ActionApproveManager, ite.Action)
	assert.Equal(t, StatusPendingSectionApproval, w.Status)
	assert.Nil(t, w.ManagerApprovedBy)
}

func TestRejectReasonLength(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		ok     bool
	}{
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"one char", "x", true},
		{"exactly 500", strings.Repeat("a", 500), true},
		{"501", strings.Repeat("a", 501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := pending()
			err := w.Reject(StageSection, tt.reason, "sec-head", now)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, StatusRejectedBySection, w.Status)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, StatusPendingSectionApproval, w.Status)
			assert.Nil(t, w.RejectionReason)
		})
	}
}

func TestResubmitAlwaysRestartsAtSection(t *testing.T) {
	for _, stage := range Stages {
		t.Run(string(stage), func(t *testing.T) {
			w := pending()
			for _, s := range Stages {
				if s == stage {
					break
				}
				require.NoError(t, w.Approve(s, "approver", now))
			}
			require.NoError(t, w.Reject(stage, "missing evidence", "approver", now))
			assert.Equal(t, stage.Rejected(), w.Status)

			require.NoError(t, w.Resubmit(now))
			assert.Equal(t, StatusPendingSectionApproval, w.Status)
			assert.Nil(t, w.RejectionReason)
			assert.Nil(t, w.RejectedBy)
			assert.Nil(t, w.SectionApprovedBy)
			assert.Nil(t, w.DepartmentApprovedBy)
		})
	}
}

func TestResubmitOnlyFromRejected(t *testing.T) {
	for _, s := range Statuses {
		w := Workflow{Status: s}
		err := w.Resubmit(now)
		if s.IsRejected() {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition, "from %s", s)
	}
}

func TestRejectDepartmentScenario(t *testing.T) {
	w := Workflow{Status: StatusSubmitted}

	require.NoError(t, w.Approve(StageSection, "sec-head", now))
	assert.Equal(t, StatusPendingDeptApproval, w.Status)

	require.NoError(t, w.Reject(StageDepartment, "incomplete data", "dept-head", now))
	assert.Equal(t, StatusRejectedByDept, w.Status)
	require.NotNil(t, w.RejectionReason)
	assert.Equal(t, "incomplete data", *w.RejectionReason)

	require.NoError(t, w.Resubmit(now))
	assert.Equal(t, StatusPendingSectionApproval, w.Status)
	assert.Nil(t, w.RejectionReason)
}

// Every reachable status stays inside the closed set and no approval skips a stage.
func TestTransitionTableClosed(t *testing.T) {
	actions := []Action{
		ActionSubmit, ActionApproveSection, ActionApproveDepartment, ActionApproveManager,
		ActionRejectSection, ActionRejectDepartment, ActionRejectManager, ActionResubmit,
	}
	order := map[Status]int{
		StatusPendingSectionApproval: 0,
		StatusSubmitted:              0,
		StatusPendingDeptApproval:    1,
		StatusPendingManagerApproval: 2,
		StatusApproved:               3,
	}

	for _, from := range Statuses {
		for _, a := range actions {
			to, err := Next(from, a)
			if err != nil {
				assert.Equal(t, from, to)
				continue
			}
			assert.True(t, to.Valid(), "%s --%s--> %s", from, a, to)

			fromIdx, fromOK := order[from]
			toIdx, toOK := order[to]
			if fromOK && toOK {
				assert.Equal(t, fromIdx+1, toIdx, "%s --%s--> %s skips a stage", from, a, to)
			}
		}
	}
}

func TestExpectPending(t *testing.T) {
	w := Workflow{Status: StatusSubmitted}
	assert.NoError(t, w.ExpectPending(StageSection))

	err := w.ExpectPending(StageDepartment)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, string(StatusPendingDeptApproval), pe.Expected)
	assert.Equal(t, string(StatusSubmitted), pe.Actual)
	assert.ErrorIs(t, err, ErrPreconditionViolation)
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage("department")
	require.NoError(t, err)
	assert.Equal(t, StageDepartment, st)

	_, err = ParseStage("board")
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestPendingStage(t *testing.T) {
	st, ok := StatusSubmitted.PendingStage()
	assert.True(t, ok)
	assert.Equal(t, StageSection, st)

	_, ok = StatusApproved.PendingStage()
	assert.False(t, ok)
}
