package orchestrator

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// AddQuote appends a quote request to the cache snapshot, then to the remote.
func (o *Orchestrator) AddQuote(ctx context.Context, quote models.QuoteRequestLine) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.AddQuote")
	defer span.End()

	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	return o.quoteOp(ctx, "add_quote", quote.ID, func(records []models.Record) ([]models.Record, error) {
		if _, _, found := (models.RecordSet{Records: records}).Find(quote.ID); found {
			return nil, httperror.NewHTTPErrorf(http.StatusConflict, "quote %s already exists", quote.ID)
		}
		if quote.RowNo == 0 {
			quote.RowNo = nextRowNo(records)
		}
		return append(records, quote), nil
	}, func(ctx context.Context, store remote.QuoteStore) error {
		return store.AddQuote(ctx, quote)
	})
}

// UpdateQuote replaces the quote request with the same id.
func (o *Orchestrator) UpdateQuote(ctx context.Context, quote models.QuoteRequestLine) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.UpdateQuote")
	defer span.End()

	return o.quoteOp(ctx, "update_quote", quote.ID, func(records []models.Record) ([]models.Record, error) {
		existing, i, found := (models.RecordSet{Records: records}).Find(quote.ID)
		if !found {
			return nil, errNotCached
		}
		if quote.RowNo == 0 {
			quote.RowNo = existing.(models.QuoteRequestLine).RowNo
		}
		records[i] = quote
		return records, nil
	}, func(ctx context.Context, store remote.QuoteStore) error {
		return store.UpdateQuote(ctx, quote)
	})
}

// DeleteQuote removes the quote request with id.
func (o *Orchestrator) DeleteQuote(ctx context.Context, id uuid.UUID) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.DeleteQuote")
	defer span.End()

	return o.quoteOp(ctx, "delete_quote", id, func(records []models.Record) ([]models.Record, error) {
		return removeQuote(records, id)
	}, func(ctx context.Context, store remote.QuoteStore) error {
		return store.DeleteQuote(ctx, id)
	})
}

// errNotCached means the quote is missing from the snapshot. The remote may
// still hold it, so it is only fatal when no remote is configured.
var errNotCached = errors.New("quote not in cache snapshot")

func removeQuote(records []models.Record, id uuid.UUID) ([]models.Record, error) {
	_, i, found := (models.RecordSet{Records: records}).Find(id)
	if !found {
		return nil, errNotCached
	}
	return append(records[:i], records[i+1:]...), nil
}

// quoteOp applies edit to the cached quote snapshot, then call to the remote.
// A remote not-found drops id from the snapshot; any other remote failure
// marks the quote kind pending.
func (o *Orchestrator) quoteOp(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	edit func([]models.Record) ([]models.Record, error),
	call func(context.Context, remote.QuoteStore) error,
) (Result, error) {
	kind := models.KindQuote
	result := Result{Kind: kind, Operation: operation, Records: 1}

	if err := o.editQuoteSnapshot(ctx, edit); err != nil {
		return Result{}, err
	}

	if o.quotes == nil {
		result.Status = StatusNotConfigured
		result.Message = MessageNotConfigured
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), operation, string(result.Status)).Inc()
		return result, nil
	}

	_, err := o.writer.Retry(ctx, kind, operation, func(ctx context.Context) error {
		return call(ctx, o.quotes)
	})
	if errors.Is(err, remote.ErrNotFound) {
		metrics.SyncOperationsTotal.WithLabelValues(kind.String(), operation, string(StatusFailed)).Inc()
		if dropErr := o.editQuoteSnapshot(ctx, func(records []models.Record) ([]models.Record, error) {
			return removeQuote(records, id)
		}); dropErr != nil {
			o.logger.WithContext(ctx).WithError(dropErr).Warnf("failed to drop quote %s from cache snapshot", id)
		}
		return Result{}, httperror.NewHTTPError(http.StatusNotFound, "quote not found")
	}
	if err != nil {
		o.markPending(ctx, kind)
		return o.failSave(ctx, result, err)
	}

	result.Status = StatusOK
	result.Message = MessageSaved
	metrics.SyncOperationsTotal.WithLabelValues(kind.String(), operation, string(result.Status)).Inc()
	return result, nil
}

func (o *Orchestrator) editQuoteSnapshot(ctx context.Context, edit func([]models.Record) ([]models.Record, error)) error {
	o.quoteMu.Lock()
	defer o.quoteMu.Unlock()

	set, _, err := o.cache.Read(ctx, models.KindQuote)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("failed to read quote cache snapshot")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to read quotes")
	}

	records, err := edit(append([]models.Record(nil), set.Records...))
	if errors.Is(err, errNotCached) {
		if o.quotes == nil {
			return httperror.NewHTTPError(http.StatusNotFound, "quote not found")
		}
		// the snapshot is stale; let the remote decide
		return nil
	}
	if err != nil {
		return err
	}

	if err := o.cache.Write(ctx, models.RecordSet{Kind: models.KindQuote, Records: records}); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("failed to write quote cache snapshot")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save quote locally")
	}
	return nil
}

func nextRowNo(records []models.Record) int {
	next := 1
	for _, r := range records {
		if q, ok := r.(models.QuoteRequestLine); ok && q.RowNo >= next {
			next = q.RowNo + 1
		}
	}
	return next
}
