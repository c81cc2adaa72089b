package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/pkg/model"
)

// memoryRequestStore keeps requests in process. The mutex only makes each
// CAS atomic; it is never held across a caller's read-validate-write cycle.
type memoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*model.Request
	now      func() time.Time
}

func NewMemoryRequestStore(now func() time.Time) RequestStore {
	if now == nil {
		now = time.Now
	}
	return &memoryRequestStore{
		requests: make(map[string]*model.Request),
		now:      now,
	}
}

func (s *memoryRequestStore) Create(ctx context.Context, request *model.Request) error {
	if err := validateID(request.ID); err != nil {
		return fmt.Errorf("%w: %s", err, request.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return requesterrors.ErrDuplicateID
	}
	request.UpdatedAt = request.CreatedAt
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *memoryRequestStore) Get(ctx context.Context, id string) (*model.Request, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, requesterrors.ErrNotFound
	}
	return request.Clone(), nil
}

func (s *memoryRequestStore) CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutation model.Mutation) (*model.Request, error) {
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[id]
	if !ok {
		return nil, requesterrors.ErrNotFound
	}
	if current.Version != expectedVersion {
		return nil, requesterrors.ErrVersionConflict
	}

	next := mutation.Apply(current)
	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()
	s.requests[id] = next
	return next.Clone(), nil
}

func (s *memoryRequestStore) ListActive(ctx context.Context) ([]*model.Request, error) {
	active := s.filter(func(r *model.Request) bool { return r.Status.IsActive() })
	slices.SortFunc(active, func(a, b *model.Request) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	return active, nil
}

func (s *memoryRequestStore) ListSearching(ctx context.Context, limit int, offset int64) ([]*model.Request, error) {
	now := s.now()
	open := s.filter(func(r *model.Request) bool {
		return r.Status == model.StatusSearching && now.Before(r.ExpiresAt)
	})
	slices.SortFunc(open, func(a, b *model.Request) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return page(open, limit, offset), nil
}

func (s *memoryRequestStore) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Request, error) {
	owned := s.filter(func(r *model.Request) bool { return r.PatientID == patientID })
	sortNewestFirst(owned)
	return page(owned, limit, offset), nil
}

func (s *memoryRequestStore) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Request, error) {
	claimed := s.filter(func(r *model.Request) bool { return r.ClaimedBy == providerID })
	sortNewestFirst(claimed)
	return page(claimed, limit, offset), nil
}

func (s *memoryRequestStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *memoryRequestStore) filter(keep func(*model.Request) bool) []*model.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Request, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func sortNewestFirst(requests []*model.Request) {
	slices.SortFunc(requests, func(a, b *model.Request) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func page(requests []*model.Request, limit int, offset int64) []*model.Request {
	if offset >= int64(len(requests)) {
		return []*model.Request{}
	}
	requests = requests[offset:]
	if limit > 0 && limit < len(requests) {
		requests = requests[:limit]
	}
	return requests
}
