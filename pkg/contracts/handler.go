package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a background loop owned by the application lifecycle.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc struct {
	WorkerName string
	Fn         func(ctx context.Context) error
}

func (w WorkerFunc) Name() string {
	return w.WorkerName
}

func (w WorkerFunc) Run(ctx context.Context) error {
	return w.Fn(ctx)
}
