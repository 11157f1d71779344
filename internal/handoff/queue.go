package handoff

import (
	"context"
	"errors"

	"github.com/rickgao/pushchannel/internal/model"
)

// Errors
var (
	ErrUnknownBackend = errors.New("unknown queue backend")
)

// Backend names accepted by configuration.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Queue is a FIFO of messages shared between one producer path and one
// consumer path.
type Queue interface {
	// Enqueue appends msg to the tail.
	Enqueue(msg model.Message)

	// Dequeue pops the head. found is false when the queue is empty.
	Dequeue() (msg model.Message, found bool)

	// Len returns the number of pending messages.
	Len() int
}

// Lister is implemented by durable queues that can show pending entries
// without consuming them.
type Lister interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

var (
	_ Queue  = (*Memory)(nil)
	_ Queue  = (*SQLite)(nil)
	_ Queue  = (*Postgres)(nil)
	_ Lister = (*SQLite)(nil)
	_ Lister = (*Postgres)(nil)
)
