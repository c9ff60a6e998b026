package evaluation

import "errors"

var (
	ErrEvaluationNotFound     = errors.New("evaluation not found")
	ErrEvaluationExists       = errors.New("evaluation already exists for this employee and review cycle")
	ErrObjectiveNotFound      = errors.New("objective not found")
	ErrObjectivesLocked       = errors.New("objectives can only be edited while the evaluation is a draft or rejected")
	ErrWeightBudgetExceeded   = errors.New("objective weights exceed the total weight")
	ErrInvalidTemplate        = errors.New("invalid evaluation template")
	ErrConfirmationNotAllowed = errors.New("only the evaluated employee or an approver may confirm")
)
