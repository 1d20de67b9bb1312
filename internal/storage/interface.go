// Package storage defines interfaces and implementations for evaluation result storage backends.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/hymod/internal/types"
)

// StorageEngineInterface is an interface that provides a few standardized
// methods for various storage backends
type StorageEngineInterface interface {
	// RegisterRun records the run that subsequent evaluations belong to.
	RegisterRun(context.Context, types.Run) error

	// StartStorageEngine starts the engine's processing goroutine. The engine stores every
	// evaluation sent on the returned channel until the channel is closed.
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- types.Evaluation

	// Close releases the backend once its channel has been drained.
	Close() error
}
