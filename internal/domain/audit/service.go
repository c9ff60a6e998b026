package audit

import "context"

// Service records and lists audit entries. Record never fails the caller's
// operation; write errors are logged.
type Service interface {
	Record(ctx context.Context, req RecordRequest)
	List(ctx context.Context, filter Filter) (ListEntryResponse, error)
}
