package repository

import (
	"context"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/pkg/model"

	"github.com/google/uuid"
)

const CollectionName = "Requests"

// RequestStore is the single source of truth for requests and the only
// synchronization point of the lifecycle: every write is a version-gated
// compare-and-swap, so every race collapses into ErrVersionConflict here.
type RequestStore interface {
	Create(ctx context.Context, request *model.Request) error
	Get(ctx context.Context, id string) (*model.Request, error)
	// CompareAndSwap applies mutation only if the stored version equals
	// expectedVersion, and returns the post-state with Version+1.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutation model.Mutation) (*model.Request, error)
	// ListActive returns every request in sent or searching, oldest deadline first.
	ListActive(ctx context.Context) ([]*model.Request, error)
	ListSearching(ctx context.Context, limit int, offset int64) ([]*model.Request, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Request, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Request, error)
	Ping(ctx context.Context) error
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return requesterrors.ErrInvalidID
	}
	return nil
}
