package kpi

import "errors"

var (
	ErrKpiNotFound          = errors.New("kpi not found")
	ErrKpiNameExists        = errors.New("kpi name already exists")
	ErrKpiInactive          = errors.New("kpi is inactive")
	ErrKpiInUse             = errors.New("kpi has submitted values and cannot be deleted")
	ErrKpiValueNotFound     = errors.New("kpi value not found")
	ErrKpiValueExists       = errors.New("a value for this kpi and review cycle already exists")
	ErrWeightBudgetExceeded = errors.New("total weight of kpi values in this review cycle exceeds the allowed total")
)

// ErrEvidenceLocked is returned once a value has moved past the section stage.
var ErrEvidenceLocked = errors.New("evidence can only change while the value is a draft, rejected or awaiting section review")
