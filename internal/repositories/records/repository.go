package records

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	revenueStruct   = database.NewStruct(new(models.RevenueLine))
	purchaseStruct  = database.NewStruct(new(models.PurchaseLine))
	inventoryStruct = database.NewStruct(new(models.InventoryLine))
	supplierStruct  = database.NewStruct(new(models.SupplierProfile))
	quoteStruct     = database.NewStruct(new(models.QuoteRequestLine))
)

// Repository is the PostgreSQL remote store. It keeps one table per kind.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

var (
	_ remote.Store      = (*Repository)(nil)
	_ remote.QuoteStore = (*Repository)(nil)
	_ remote.Pinger     = (*Repository)(nil)
)

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func structFor(kind models.Kind) (*sqlbuilder.Struct, error) {
	switch kind {
	case models.KindRevenue:
		return revenueStruct, nil
	case models.KindPurchase:
		return purchaseStruct, nil
	case models.KindInventory:
		return inventoryStruct, nil
	case models.KindSupplier:
		return supplierStruct, nil
	case models.KindQuote:
		return quoteStruct, nil
	}
	return nil, remote.Permanent(httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown record kind %s", kind))
}

// fail logs err and hides driver detail from callers, except that transient
// errors keep their cause so the writer can classify and retry them.
func (r *Repository) fail(ctx context.Context, err error, kind models.Kind, msg string) error {
	r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"kind":  kind,
		"table": kind.Table(),
	}).Error(msg)
	if remote.IsTransient(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return remote.Permanent(httperror.NewHTTPError(http.StatusInternalServerError, msg))
}

func (r *Repository) ReadAll(ctx context.Context, kind models.Kind) (models.RecordSet, error) {
	ctx, span := tracing.StartSpan(ctx, "RecordsRepository.ReadAll")
	defer span.End()

	var (
		records []models.Record
		err     error
	)
	switch kind {
	case models.KindRevenue:
		records, err = selectAll[models.RevenueLine](ctx, r.db, revenueStruct, kind)
	case models.KindPurchase:
		records, err = selectAll[models.PurchaseLine](ctx, r.db, purchaseStruct, kind)
	case models.KindInventory:
		records, err = selectAll[models.InventoryLine](ctx, r.db, inventoryStruct, kind)
	case models.KindSupplier:
		records, err = selectAll[models.SupplierProfile](ctx, r.db, supplierStruct, kind)
	case models.KindQuote:
		records, err = selectAll[models.QuoteRequestLine](ctx, r.db, quoteStruct, kind)
	default:
		_, err = structFor(kind)
		return models.RecordSet{}, err
	}
	if err != nil {
		return models.RecordSet{}, r.fail(ctx, err, kind, fmt.Sprintf("failed to read %s", kind.Table()))
	}

	r.logger.WithContext(ctx).Debugf("Read %d rows from %s", len(records), kind.Table())
	return models.RecordSet{Kind: kind, Records: records}, nil
}

func selectAll[T models.Record](ctx context.Context, db database.DB, st *sqlbuilder.Struct, kind models.Kind) ([]models.Record, error) {
	sb := st.SelectFrom(kind.Table())
	sb.OrderBy("row_no").Asc()

	query, args := sb.Build()
	var rows []T
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = row
	}
	return records, nil
}

// DeleteAll removes every row of the kind's table with the sentinel
// predicate rather than TRUNCATE.
func (r *Repository) DeleteAll(ctx context.Context, kind models.Kind) error {
	ctx, span := tracing.StartSpan(ctx, "RecordsRepository.DeleteAll")
	defer span.End()

	if _, err := structFor(kind); err != nil {
		return err
	}

	query, args := database.NewDeleteAllBuilder(kind.Table()).Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, kind, fmt.Sprintf("failed to clear %s", kind.Table()))
	}

	deleted, _ := res.RowsAffected()
	r.logger.WithContext(ctx).Debugf("Deleted %d rows from %s", deleted, kind.Table())
	return nil
}

// InsertBatch inserts records in a single statement, so a batch either lands
// whole or not at all.
func (r *Repository) InsertBatch(ctx context.Context, kind models.Kind, records []models.Record) error {
	ctx, span := tracing.StartSpan(ctx, "RecordsRepository.InsertBatch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}
	st, err := structFor(kind)
	if err != nil {
		return err
	}

	values := make([]any, len(records))
	for i, record := range records {
		if record.Kind() != kind {
			return remote.Permanent(httperror.NewHTTPErrorf(http.StatusBadRequest,
				"record %d has kind %s, expected %s", i, record.Kind(), kind))
		}
		values[i] = record
	}

	query, args := st.InsertInto(kind.Table(), values...).Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return r.fail(ctx, err, kind, fmt.Sprintf("failed to insert into %s", kind.Table()))
	}

	r.logger.WithContext(ctx).Debugf("Inserted %d rows into %s", len(records), kind.Table())
	return nil
}

func (r *Repository) AddQuote(ctx context.Context, quote models.QuoteRequestLine) error {
	return r.InsertBatch(ctx, models.KindQuote, []models.Record{quote})
}

// UpdateQuote rewrites one quote request inside a transaction so callers that
// already hold one on ctx join it.
func (r *Repository) UpdateQuote(ctx context.Context, quote models.QuoteRequestLine) (err error) {
	ctx, span := tracing.StartSpan(ctx, "RecordsRepository.UpdateQuote")
	defer span.End()

	table := models.KindQuote.Table()
	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return r.fail(ctx, err, models.KindQuote, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	ub := quoteStruct.WithoutTag("pk").Update(table, quote)
	ub.Where(ub.Equal("id", quote.ID))
	query, args := ub.Build()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, models.KindQuote, fmt.Sprintf("failed to update %s", table))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("quote %s: %w", quote.ID, remote.ErrNotFound)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return r.fail(ctx, err, models.KindQuote, "failed to commit quote update")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"quote_id": quote.ID,
	}).Debugf("Updated %s", table)
	return nil
}

func (r *Repository) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "RecordsRepository.DeleteQuote")
	defer span.End()

	table := models.KindQuote.Table()
	db := database.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.Equal("id", id))
	query, args := db.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.fail(ctx, err, models.KindQuote, fmt.Sprintf("failed to delete from %s", table))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("quote %s: %w", id, remote.ErrNotFound)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"quote_id": id,
	}).Debugf("Deleted %s", table)
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
