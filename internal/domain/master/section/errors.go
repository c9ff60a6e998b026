package section

import "errors"

var (
	ErrSectionNotFound   = errors.New("section not found")
	ErrSectionCodeExists = errors.New("section with this code already exists")
	ErrSectionInUse      = errors.New("section still has employees")
)
