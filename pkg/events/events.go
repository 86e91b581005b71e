// Package events publishes sync lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

type EventType string

const (
	SyncSaved   EventType = "sync.saved"
	SyncPartial EventType = "sync.partial"
	SyncFailed  EventType = "sync.failed"
)

// SyncEvent describes the outcome of one save-all.
type SyncEvent struct {
	Type      EventType   `json:"type"`
	Kind      models.Kind `json:"kind"`
	Status    string      `json:"status"`
	Records   int         `json:"records"`
	Written   int         `json:"written"`
	Failed    int         `json:"failed"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Publisher delivers sync events. Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, evt *SyncEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, *SyncEvent) error { return nil }
