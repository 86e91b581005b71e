package orchestrator

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/writer"
)

type Status string

const (
	StatusOK            Status = "ok"
	StatusNotConfigured Status = "not_configured"
	StatusPartial       Status = "partial"
	StatusFailed        Status = "failed"
	// StatusPending is a read served by the cache because local changes
	// have not reached the remote store yet.
	StatusPending Status = "pending"
)

// Source names where a read-all was served from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

const (
	MessageSaved         = "saved"
	MessageNotConfigured = "cloud sync not configured, saved locally"
	MessageSyncFailed    = "cloud sync failed, local copy retained"
	MessageSyncPending   = "cloud sync pending, showing local copy"
	MessageReadFailed    = "cloud read failed, showing local copy"
)

// PartialMessage is the user facing text for a save that skipped records.
func PartialMessage(failed int) string {
	return fmt.Sprintf("partial failure — %d records skipped", failed)
}

// Result is the outcome of a write operation as shown to callers.
type Result struct {
	Kind      models.Kind    `json:"kind"`
	Operation string         `json:"operation"`
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Records   int            `json:"records"`
	Report    *writer.Report `json:"report,omitempty"`
}

// ReadResult is a read-all answer. Warning is set when the cache answered
// in place of a failed or not yet synced remote store.
type ReadResult struct {
	Set     models.RecordSet `json:"-"`
	Source  Source           `json:"source"`
	Cached  bool             `json:"cached"`
	Warning string           `json:"warning,omitempty"`
}

// SyncError is returned when a remote operation failed after the cache
// snapshot was written. Result carries what the caller should show.
type SyncError struct {
	Result Result
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Result.Kind, e.Result.Operation, e.Result.Message, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ToHTTPError renders the error as a 502 with the result in meta.
func (e *SyncError) ToHTTPError() *httperror.HTTPError {
	httpErr := httperror.NewHTTPError(http.StatusBadGateway, e.Result.Message).
		AddMetaValue("kind", string(e.Result.Kind)).
		AddMetaValue("operation", e.Result.Operation).
		AddMetaValue("status", string(e.Result.Status))
	if e.Result.Report != nil {
		httpErr = httpErr.
			AddMetaValue("written", strconv.Itoa(e.Result.Report.Written)).
			AddMetaValue("failed", strconv.Itoa(e.Result.Report.Failed))
	}
	return httpErr
}

// IsSyncError reports whether err is or wraps a SyncError.
func IsSyncError(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr)
}
