// Package orchestrator coordinates record sets between the local cache
// snapshot and the remote store.
package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/writer"
)

const DefaultLockTTL = 5 * time.Minute

type Orchestrator struct {
	logger    ectologger.Logger
	cache     cache.Store
	remote    remote.Store
	quotes    remote.QuoteStore
	writer    *writer.Writer
	publisher events.Publisher
	locker    Locker
	lockTTL   time.Duration

	// quote operations read, modify and rewrite the quote snapshot
	quoteMu sync.Mutex
}

type Option func(*Orchestrator)

// WithPublisher sends sync events after every remote save.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLocker holds a per-kind lock for the duration of each save-all.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// New creates an orchestrator. A nil store means the remote is not
// configured and every operation is served by the cache alone.
func New(logger ectologger.Logger, snapshots cache.Store, store remote.Store, config writer.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:    logger,
		cache:     snapshots,
		remote:    store,
		publisher: events.Nop{},
		lockTTL:   DefaultLockTTL,
	}
	if store != nil {
		o.writer = writer.New(logger, store, config)
		if quotes, ok := store.(remote.QuoteStore); ok {
			o.quotes = quotes
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether a remote store is wired.
func (o *Orchestrator) Configured() bool {
	return o.remote != nil
}

// ReadAll returns the remote record set and refreshes the cache from it. The
// cache snapshot is returned instead when the remote is unconfigured, fails,
// or the kind has local changes the remote has not accepted yet; a kind that
// was never cached reads as an empty set.
func (o *Orchestrator) ReadAll(ctx context.Context, kind models.Kind) (ReadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.ReadAll")
	defer span.End()

	if !kind.Valid() {
		return ReadResult{}, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown record kind %q", kind)
	}

	var warning string
	status := StatusNotConfigured
	if o.remote != nil {
		status = StatusFailed
		if o.pending(ctx, kind) {
			status = StatusPending
			warning = MessageSyncPending
			o.logger.WithContext(ctx).Infof("%s has unsynced local changes, serving cache snapshot", kind)
		} else {
			set, err := o.remote.ReadAll(ctx, kind)
			if err == nil {
				if cacheErr := o.cache.Write(ctx, set); cacheErr != nil {
					o.logger.WithContext(ctx).WithError(cacheErr).Warnf("failed to refresh %s cache snapshot", kind)
				}
				metrics.SyncReadSourceTotal.WithLabelValues(kind.String(), string(SourceRemote)).Inc()
				metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "read", string(StatusOK)).Inc()
				return ReadResult{Set: set, Source: SourceRemote}, nil
			}

			span.RecordError(err)
			o.logger.WithContext(ctx).WithError(err).Warnf("remote read of %s failed, serving cache snapshot", kind)
			warning = MessageReadFailed
		}
	}

	set, ok, err := o.cache.Read(ctx, kind)
	if err != nil {
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "read", string(StatusFailed)).Inc()
		o.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s cache snapshot", kind)
		return ReadResult{}, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read %s", kind)
	}
	if !ok {
		set = models.NewRecordSet(kind)
	}

	metrics.SyncReadSourceTotal.WithLabelValues(kind.String(), string(SourceCache)).Inc()
	metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "read", string(status)).Inc()
	return ReadResult{Set: set, Source: SourceCache, Cached: ok, Warning: warning}, nil
}

// SaveAll writes set to the cache snapshot, then replaces the remote copy of
// its kind: delete everything, then insert in batches. A remote failure
// returns a *SyncError; the cache snapshot is kept either way. The kind
// stays pending until a replace writes every record.
func (o *Orchestrator) SaveAll(ctx context.Context, set models.RecordSet) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.SaveAll")
	defer span.End()

	if err := set.Validate(); err != nil {
		return Result{}, httperror.WrapError(http.StatusBadRequest, err)
	}
	kind := set.Kind
	result := Result{Kind: kind, Operation: "save", Records: set.Len()}

	release, err := o.lock(ctx, kind)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if err := o.cache.Write(ctx, set); err != nil {
		o.logger.WithContext(ctx).WithError(err).Errorf("failed to write %s cache snapshot, remote left untouched", kind)
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "save", string(StatusFailed)).Inc()
		return Result{}, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to save %s locally", kind)
	}

	if o.remote == nil {
		result.Status = StatusNotConfigured
		result.Message = MessageNotConfigured
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "save", string(result.Status)).Inc()
		return result, nil
	}

	// marked before the remote is touched so a crash mid-replace still
	// leaves reads on the snapshot
	if err := o.cache.SetPending(ctx, kind, true); err != nil {
		o.logger.WithContext(ctx).WithError(err).Errorf("failed to mark %s pending, remote left untouched", kind)
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "save", string(StatusFailed)).Inc()
		return Result{}, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to save %s locally", kind)
	}

	_, err = o.writer.Retry(ctx, kind, "delete", func(ctx context.Context) error {
		return o.remote.DeleteAll(ctx, kind)
	})
	if err != nil {
		return o.failSave(ctx, result, err)
	}

	report, err := o.writer.Write(ctx, kind, set.Records)
	result.Report = &report
	if err != nil {
		return o.failSave(ctx, result, err)
	}

	result.Status = StatusOK
	result.Message = MessageSaved
	evtType := events.SyncSaved
	if report.Partial() {
		result.Status = StatusPartial
		result.Message = PartialMessage(report.Failed)
		evtType = events.SyncPartial
	} else if err := o.cache.SetPending(ctx, kind, false); err != nil {
		// reads keep using the snapshot, which matches what was saved
		o.logger.WithContext(ctx).WithError(err).Warnf("failed to clear %s pending mark", kind)
	}

	metrics.SyncOperationsTotal.WithLabelValues(kind.String(), "save", string(result.Status)).Inc()
	o.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":    kind,
		"records": set.Len(),
		"written": report.Written,
		"failed":  report.Failed,
	}).Infof("Saved %s: %s", kind, result.Message)
	o.publish(ctx, evtType, result)
	return result, nil
}

func (o *Orchestrator) failSave(ctx context.Context, result Result, err error) (Result, error) {
	result.Status = StatusFailed
	result.Message = MessageSyncFailed

	metrics.SyncOperationsTotal.WithLabelValues(result.Kind.String(), result.Operation, string(StatusFailed)).Inc()
	o.logger.WithContext(ctx).WithError(err).Errorf("%s %s: %s", result.Kind, result.Operation, result.Message)
	o.publish(ctx, events.SyncFailed, result)
	return result, &SyncError{Result: result, Err: err}
}

// pending reports whether kind holds changes the remote has not accepted.
// An unreadable mark counts as set.
func (o *Orchestrator) pending(ctx context.Context, kind models.Kind) bool {
	pending, err := o.cache.Pending(ctx, kind)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Warnf("failed to read %s pending mark", kind)
		return true
	}
	return pending
}

func (o *Orchestrator) markPending(ctx context.Context, kind models.Kind) {
	if err := o.cache.SetPending(ctx, kind, true); err != nil {
		o.logger.WithContext(ctx).WithError(err).Errorf("failed to mark %s pending", kind)
	}
}

func (o *Orchestrator) lock(ctx context.Context, kind models.Kind) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}

	lock, err := o.locker.Acquire(ctx, "save:"+kind.String(), o.lockTTL)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "a save of %s is already in progress", kind)
	}
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Errorf("failed to acquire %s save lock", kind)
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "failed to acquire save lock")
	}

	return func() {
		// the lock may have expired mid-save; nothing to undo then
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			o.logger.WithContext(ctx).WithError(err).Warnf("failed to release %s save lock", kind)
		}
	}, nil
}

func (o *Orchestrator) publish(ctx context.Context, evtType events.EventType, result Result) {
	evt := &events.SyncEvent{
		Type:    evtType,
		Kind:    result.Kind,
		Status:  string(result.Status),
		Records: result.Records,
		Message: result.Message,
	}
	if result.Report != nil {
		evt.Written = result.Report.Written
		evt.Failed = result.Report.Failed
	}
	if err := o.publisher.Publish(ctx, evt); err != nil {
		o.logger.WithContext(ctx).WithError(err).Warnf("failed to publish %s for %s", evtType, result.Kind)
	}
}
