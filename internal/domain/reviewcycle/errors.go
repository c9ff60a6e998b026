package reviewcycle

import "errors"

var (
	ErrReviewCycleNotFound   = errors.New("review cycle not found")
	ErrReviewCycleNameExists = errors.New("review cycle name already exists")
	ErrReviewCycleLocked     = errors.New("review cycle is referenced by kpi values or evaluations; only the name can be changed")
)
