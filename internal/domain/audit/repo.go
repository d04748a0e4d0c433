package audit

import (
	"context"
)

// EntryRepository is append-only. There is no update or delete on purpose.
type EntryRepository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Entry, int, error)
}
