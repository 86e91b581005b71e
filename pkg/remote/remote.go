// Package remote defines the durable record store the service syncs to and
// how its failures are classified.
package remote

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ErrNotConfigured is returned when no remote store is wired.
var ErrNotConfigured = errors.New("remote store is not configured")

// ErrNotFound is returned when a single record operation names an unknown id.
var ErrNotFound = errors.New("record not found")

// Store holds every kind's records. DeleteAll followed by InsertBatch calls
// is how a record set replaces what is stored; the two steps must run in
// that order.
type Store interface {
	ReadAll(ctx context.Context, kind models.Kind) (models.RecordSet, error)
	DeleteAll(ctx context.Context, kind models.Kind) error
	InsertBatch(ctx context.Context, kind models.Kind, records []models.Record) error
}

// QuoteStore adds single record operations for quote requests.
type QuoteStore interface {
	AddQuote(ctx context.Context, quote models.QuoteRequestLine) error
	UpdateQuote(ctx context.Context, quote models.QuoteRequestLine) error
	DeleteQuote(ctx context.Context, id uuid.UUID) error
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
