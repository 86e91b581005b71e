// Package writer pushes record sets to the remote store in bounded batches.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultBatchSize  = 500
	DefaultBatchDelay = 300 * time.Millisecond
)

// Config tunes a Writer.
type Config struct {
	BatchSizes map[models.Kind]int
	BatchDelay time.Duration
	// Policy is applied to every batch write and, after a batch gives up, to
	// every single record write. Its Retryable predicate is replaced with the
	// remote transient classification.
	Policy retry.Policy
}

// DefaultConfig uses 500 record batches for the line kinds and 200 for the
// wider supplier and quote records.
func DefaultConfig() Config {
	return Config{
		BatchSizes: map[models.Kind]int{
			models.KindRevenue:   500,
			models.KindPurchase:  500,
			models.KindInventory: 500,
			models.KindSupplier:  200,
			models.KindQuote:     200,
		},
		BatchDelay: DefaultBatchDelay,
		Policy:     retry.DefaultPolicy(),
	}
}

// Report accounts for every record handed to Write.
type Report struct {
	Kind    models.Kind `json:"kind"`
	Total   int         `json:"total"`
	Written int         `json:"written"`
	Failed  int         `json:"failed"`
	Batches int         `json:"batches"`
	// FallbackBatches counts batches that were written record by record.
	FallbackBatches int `json:"fallback_batches"`
	// Attempts counts every remote call, retries included.
	Attempts int `json:"attempts"`
}

// Partial reports whether some records could not be written.
func (r Report) Partial() bool {
	return r.Failed > 0
}

// BatchError aborts a write. It is returned when a batch fails with a
// permanent error, or when every record of a batch failed on its own.
type BatchError struct {
	Kind      models.Kind
	Batch     int
	Offset    int
	Size      int
	Permanent bool
	Err       error
}

func (e *BatchError) Error() string {
	reason := "every record failed"
	if e.Permanent {
		reason = "permanent error"
	}
	return fmt.Sprintf("%s batch %d (records %d-%d): %s: %v", e.Kind, e.Batch, e.Offset, e.Offset+e.Size-1, reason, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type Writer struct {
	logger ectologger.Logger
	store  remote.Store
	config Config
}

func New(logger ectologger.Logger, store remote.Store, config Config) *Writer {
	if config.BatchSizes == nil {
		config.BatchSizes = DefaultConfig().BatchSizes
	}
	return &Writer{logger: logger, store: store, config: config}
}

// BatchSize is the batch size used for kind.
func (w *Writer) BatchSize(kind models.Kind) int {
	if n := w.config.BatchSizes[kind]; n > 0 {
		return n
	}
	return DefaultBatchSize
}

// Write inserts records in sequential batches. Transient failures are
// retried; a batch that still fails is retried record by record and the
// records that fail even then are counted in the report rather than failing
// the write. The returned report is accurate up to the point of any error.
func (w *Writer) Write(ctx context.Context, kind models.Kind, records []models.Record) (Report, error) {
	ctx, span := tracing.StartSpan(ctx, "Writer.Write")
	defer span.End()

	report := Report{Kind: kind, Total: len(records)}
	size := w.BatchSize(kind)

	for offset, batch := 0, 0; offset < len(records); offset, batch = offset+size, batch+1 {
		if batch > 0 && w.config.BatchDelay > 0 {
			if err := retry.Sleep(ctx, w.config.BatchDelay); err != nil {
				return report, err
			}
		}

		end := min(offset+size, len(records))
		if err := w.writeBatch(ctx, kind, batch, offset, records[offset:end], &report); err != nil {
			span.RecordError(err)
			return report, err
		}
		report.Batches++
	}

	if report.Partial() {
		w.logger.WithContext(ctx).WithFields(map[string]any{
			"kind":    kind,
			"failed":  report.Failed,
			"written": report.Written,
		}).Warnf("partial failure, %d records skipped", report.Failed)
	}
	return report, nil
}

// Retry runs fn under the same policy as batch writes, so a caller's delete
// step backs off exactly like the inserts that follow it.
func (w *Writer) Retry(ctx context.Context, kind models.Kind, operation string, fn func(ctx context.Context) error) (int, error) {
	return retry.Do(ctx, w.policy(kind, operation), fn)
}

func (w *Writer) policy(kind models.Kind, granularity string) retry.Policy {
	p := w.config.Policy
	p.Retryable = remote.IsTransient
	next := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.WriterRetriesTotal.WithLabelValues(kind.String(), granularity).Inc()
		w.logger.WithError(err).Warnf("%s %s write failed, retrying in %v (attempt %d/%d)",
			kind, granularity, delay, attempt, max(p.MaxAttempts, 1))
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return p
}

func (w *Writer) writeBatch(ctx context.Context, kind models.Kind, batch, offset int, records []models.Record, report *Report) error {
	ctx, span := tracing.StartSpan(ctx, "Writer.writeBatch")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.WriterBatchDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}()

	attempts, err := retry.Do(ctx, w.policy(kind, "batch"), func(ctx context.Context) error {
		return w.store.InsertBatch(ctx, kind, records)
	})
	report.Attempts += attempts
	if err == nil {
		report.Written += len(records)
		metrics.WriterBatchesTotal.WithLabelValues(kind.String(), "ok").Inc()
		return nil
	}

	if !remote.IsTransient(err) {
		metrics.WriterBatchesTotal.WithLabelValues(kind.String(), "failed").Inc()
		w.logger.WithContext(ctx).WithError(err).Errorf("%s batch %d failed with a permanent error", kind, batch)
		return &BatchError{Kind: kind, Batch: batch, Offset: offset, Size: len(records), Permanent: true, Err: err}
	}

	w.logger.WithContext(ctx).WithError(err).Warnf("%s batch %d exhausted retries, writing %d records one by one", kind, batch, len(records))

	failed := 0
	var lastErr error
	for i, record := range records {
		n, err := retry.Do(ctx, w.policy(kind, "record"), func(ctx context.Context) error {
			return w.store.InsertBatch(ctx, kind, []models.Record{record})
		})
		report.Attempts += n
		if err != nil {
			failed++
			lastErr = err
			w.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"kind":   kind,
				"record": offset + i,
				"row_no": rowNo(record),
			}).Warn("record could not be written")
			continue
		}
		report.Written++
	}

	if failed == len(records) {
		metrics.WriterBatchesTotal.WithLabelValues(kind.String(), "failed").Inc()
		metrics.WriterFailedRecordsTotal.WithLabelValues(kind.String()).Add(float64(failed))
		report.Failed += failed
		return &BatchError{Kind: kind, Batch: batch, Offset: offset, Size: len(records), Err: lastErr}
	}

	metrics.WriterBatchesTotal.WithLabelValues(kind.String(), "fallback").Inc()
	metrics.WriterFailedRecordsTotal.WithLabelValues(kind.String()).Add(float64(failed))
	report.Failed += failed
	report.FallbackBatches++
	return nil
}

func rowNo(r models.Record) int {
	switch v := r.(type) {
	case models.RevenueLine:
		return v.RowNo
	case models.PurchaseLine:
		return v.RowNo
	case models.InventoryLine:
		return v.RowNo
	case models.SupplierProfile:
		return v.RowNo
	case models.QuoteRequestLine:
		return v.RowNo
	}
	return 0
}
