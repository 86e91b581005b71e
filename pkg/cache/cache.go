// Package cache holds the local Cache Snapshot: the last known-good record
// set per kind, readable when the remote store is not.
package cache

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
)

// Store is a keyed snapshot store. Write overwrites the kind's snapshot,
// last writer wins.
type Store interface {
	// Read returns the snapshot for kind. ok is false when none was written.
	Read(ctx context.Context, kind models.Kind) (set models.RecordSet, ok bool, err error)
	Write(ctx context.Context, set models.RecordSet) error

	// SetPending marks or clears kind as holding changes the remote store
	// has not accepted. The mark is independent of the snapshot itself.
	SetPending(ctx context.Context, kind models.Kind, pending bool) error
	// Pending reports whether kind is marked.
	Pending(ctx context.Context, kind models.Kind) (bool, error)
}

func validate(set models.RecordSet) error {
	if err := set.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return nil
}

func observe(driver Driver, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CacheOperationsTotal.WithLabelValues(string(driver), operation, status).Inc()
}
