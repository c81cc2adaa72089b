package service

import (
	"context"
	"errors"

	requesterrors "openrequests/internal/requests/errors"
	"openrequests/internal/requests/lifecycle"
	"openrequests/internal/requests/repository"
	"openrequests/pkg/model"
)

// evaluator reads the current state and decides the mutation for it, or
// rejects. done is set when the desired outcome already holds and nothing
// needs to be written.
type evaluator func(ctx context.Context) (current *model.Request, mutation model.Mutation, done bool, err error)

// casLoop runs read, validate, compare-and-swap. A version conflict re-reads
// and re-validates, so a concurrent change surfaces as the error the new state
// dictates. Once maxRetries conflicts have been lost the latest state is
// evaluated once more, and ErrConflict is returned only if it still allows
// the write.
func casLoop(ctx context.Context, store repository.RequestStore, maxRetries int, evaluate evaluator) (*model.Request, bool, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		current, mutation, done, err := evaluate(ctx)
		if err != nil {
			return nil, false, err
		}
		if done {
			return current, false, nil
		}

		updated, err := store.CompareAndSwap(ctx, current.ID, current.Version, mutation)
		if err == nil {
			return updated, true, nil
		}
		if !errors.Is(err, requesterrors.ErrVersionConflict) {
			return nil, false, err
		}
	}

	current, _, done, err := evaluate(ctx)
	if err != nil {
		return nil, false, err
	}
	if done {
		return current, false, nil
	}
	return nil, false, requesterrors.ErrConflict
}

// transitionEvaluator validates a plain lifecycle event against the latest state.
func transitionEvaluator(store repository.RequestStore, id string, cmd func() lifecycle.Command) evaluator {
	return func(ctx context.Context) (*model.Request, model.Mutation, bool, error) {
		current, err := store.Get(ctx, id)
		if err != nil {
			return nil, model.Mutation{}, false, err
		}
		mutation, err := lifecycle.Transition(current, cmd())
		if err != nil {
			return nil, model.Mutation{}, false, err
		}
		return current, mutation, false, nil
	}
}
