package section

import "context"

type SectionRepository interface {
	Create(ctx context.Context, s Section) (Section, error)
	GetByID(ctx context.Context, id string) (Section, error)
	List(ctx context.Context, filter SectionFilter) ([]Section, error)
	Update(ctx context.Context, req UpdateSectionRequest) error
	Delete(ctx context.Context, id string) error
}
