package kpi

import (
	"time"

	"github.com/cmlabs-hris/kpi-backend-go/internal/domain/approval"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

var ValidFrequencies = []string{string(FrequencyMonthly), string(FrequencyQuarterly), string(FrequencyYearly)}

// Kpi is an indicator definition that employees submit values against.
type Kpi struct {
	ID            string
	Name          string
	Description   *string
	Unit          string
	DepartmentID  *string
	DefaultTarget *float64
	Frequency     Frequency
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Value is one measurement an employee submits for a KPI in a review cycle.
type Value struct {
	ID            string
	KpiID         string
	EmployeeID    string
	ReviewCycleID string
	TargetValue   float64
	ActualValue   float64
	Weight        float64
	Notes         *string
	EvidencePath  *string

	approval.Workflow

	CreatedAt time.Time
	UpdatedAt time.Time

	// Join
	KpiName      string
	EmployeeName string
	SectionID    string
	DepartmentID string
}

// EvidenceEditable reports whether the owner may still replace the attached evidence.
func (v Value) EvidenceEditable() bool {
	s := v.Status.Normalize()
	return s == approval.StatusDraft || s == approval.StatusPendingSectionApproval || s.IsRejected()
}
