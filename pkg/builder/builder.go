// Package builder turns mapped rows into canonical records.
package builder

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
	"github.com/Ramsey-B/fern/pkg/schema"
)

const (
	DefaultQuoteStatus = "requested"
	DefaultItemType    = "material"
)

// Builder assembles records of one kind from rows resolved by a mapping.
type Builder struct {
	logger      ectologger.Logger
	defaultYear int
	newID       func() uuid.UUID
}

type Option func(*Builder)

// WithDefaultYear sets the year used when a period carries only a month.
func WithDefaultYear(year int) Option {
	return func(b *Builder) {
		b.defaultYear = year
	}
}

// WithIDFunc replaces the surrogate id generator.
func WithIDFunc(fn func() uuid.UUID) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

func New(logger ectologger.Logger, opts ...Option) *Builder {
	b := &Builder{logger: logger, newID: uuid.New}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build applies m to one row. Rows without an identifying value are skipped,
// never failed.
func (b *Builder) Build(ctx context.Context, m *schema.Mapping, cells []string, rowNo int) models.Outcome {
	if blank(cells) {
		return models.Skipped(models.SkipEmptyRow, rowNo)
	}

	r := row{m: m, cells: cells}
	var record models.Record
	switch m.Kind {
	case models.KindRevenue:
		record = b.revenue(r, rowNo)
	case models.KindPurchase:
		record = b.purchase(r, rowNo)
	case models.KindInventory:
		record = b.inventory(r, rowNo)
	case models.KindSupplier:
		record = b.supplier(r, rowNo)
	case models.KindQuote:
		record = b.quote(r, rowNo)
	}

	if record == nil {
		b.logger.WithContext(ctx).WithFields(map[string]any{
			"kind": m.Kind,
			"row":  rowNo,
		}).Debug("row has no identifying value, skipping")
		return models.Skipped(models.SkipMissingIdentifier, rowNo)
	}
	return models.Ok(record, rowNo)
}

// row binds a mapping to the cells of one line.
type row struct {
	m     *schema.Mapping
	cells []string
}

func (r row) text(f schema.Field) string {
	return r.m.Value(r.cells, f)
}

func (r row) number(f schema.Field) float64 {
	return normalize.ParseNumber(r.text(f))
}

// located reports whether f is mapped to a column present in this row.
func (r row) located(f schema.Field) bool {
	col, ok := r.m.Column(f)
	return ok && col < len(r.cells)
}

// amount reads the amount cell, deriving unit price × quantity when the cell
// is absent or empty.
func (r row) amount() float64 {
	if raw := r.text(schema.FieldAmount); raw != "" {
		return normalize.ParseNumber(raw)
	}
	return DeriveAmount(r.text(schema.FieldUnitPrice), r.text(schema.FieldQuantity))
}

// DeriveAmount is price × quantity, computed exactly and rounded to two places.
func DeriveAmount(price, quantity string) float64 {
	p := normalize.ParseDecimal(price)
	q := normalize.ParseDecimal(quantity)
	if p.IsZero() || q.IsZero() {
		return 0
	}
	return p.Mul(q).Round(2).InexactFloat64()
}

func (b *Builder) period(raw string) (int, string) {
	year, month := normalize.SplitPeriod(raw)
	if year == 0 {
		year = b.defaultYear
	}
	return year, month
}

func (b *Builder) revenue(r row, rowNo int) models.Record {
	customer := r.text(schema.FieldCustomer)
	if customer == "" {
		return nil
	}
	year, month := b.period(r.text(schema.FieldPeriod))
	return models.RevenueLine{
		ID:             b.newID(),
		RowNo:          rowNo,
		Seq:            r.text(schema.FieldSeq),
		Year:           year,
		Month:          month,
		Customer:       customer,
		Model:          r.text(schema.FieldModel),
		PartNo:         r.text(schema.FieldPartNo),
		CustomerPartNo: r.text(schema.FieldCustomerPartNo),
		PartName:       r.text(schema.FieldPartName),
		Quantity:       r.number(schema.FieldQuantity),
		Amount:         r.amount(),
	}
}

func (b *Builder) purchase(r row, rowNo int) models.Record {
	code, name := r.text(schema.FieldItemCode), r.text(schema.FieldItemName)
	if code == "" && name == "" {
		return nil
	}
	date := r.text(schema.FieldDate)
	year, month := b.period(date)
	return models.PurchaseLine{
		ID:           b.newID(),
		RowNo:        rowNo,
		Date:         date,
		Year:         year,
		Month:        month,
		Category:     r.m.Dialect,
		Supplier:     r.text(schema.FieldSupplier),
		ItemCode:     code,
		ItemName:     name,
		Spec:         r.text(schema.FieldSpecText),
		Unit:         r.text(schema.FieldUnit),
		MaterialType: r.text(schema.FieldMaterialType),
		Quantity:     r.number(schema.FieldQuantity),
		UnitPrice:    r.number(schema.FieldUnitPrice),
		Amount:       r.amount(),
	}
}

func (b *Builder) inventory(r row, rowNo int) models.Record {
	code, name := r.text(schema.FieldItemCode), r.text(schema.FieldItemName)
	if code == "" && name == "" {
		return nil
	}
	itemType := r.text(schema.FieldItemType)
	if itemType == "" && r.m.Dialect == schema.DialectMaterial {
		itemType = DefaultItemType
	}
	return models.InventoryLine{
		ID:             b.newID(),
		RowNo:          rowNo,
		ItemType:       itemType,
		Code:           code,
		CustomerPartNo: r.text(schema.FieldCustomerPartNo),
		Name:           name,
		Spec:           r.text(schema.FieldSpecText),
		Unit:           r.text(schema.FieldUnit),
		Model:          r.text(schema.FieldModel),
		Status:         r.text(schema.FieldStatus),
		Warehouse:      r.text(schema.FieldWarehouse),
		Location:       r.text(schema.FieldLocation),
		Quantity:       r.number(schema.FieldQuantity),
	}
}

var salesFields = []schema.Field{schema.FieldSales1, schema.FieldSales2, schema.FieldSales3}

func (b *Builder) supplier(r row, rowNo int) models.Record {
	company := r.text(schema.FieldCompanyName)
	if company == "" {
		return nil
	}
	sales := make([]models.YearAmount, 0, len(salesFields))
	for _, f := range salesFields {
		if !r.located(f) {
			continue
		}
		sales = append(sales, models.YearAmount{
			Year:   normalize.ParseYear(r.m.Headers[f]),
			Amount: r.number(f),
		})
	}
	profile := models.SupplierProfile{
		ID:             b.newID(),
		RowNo:          rowNo,
		CompanyName:    company,
		BusinessNumber: r.text(schema.FieldBusinessNumber),
		CEO:            r.text(schema.FieldCEO),
		Address:        r.text(schema.FieldAddress),
	}
	profile.Sales.Data = sales
	return profile
}

func (b *Builder) quote(r row, rowNo int) models.Record {
	code, name := r.text(schema.FieldItemCode), r.text(schema.FieldItemName)
	if code == "" && name == "" {
		return nil
	}
	status := r.text(schema.FieldStatus)
	if status == "" {
		status = DefaultQuoteStatus
	}
	return models.QuoteRequestLine{
		ID:          b.newID(),
		RowNo:       rowNo,
		RequestDate: r.text(schema.FieldRequestDate),
		Customer:    r.text(schema.FieldCustomer),
		ItemCode:    code,
		ItemName:    name,
		Quantity:    r.number(schema.FieldQuantity),
		UnitPrice:   r.number(schema.FieldUnitPrice),
		Amount:      r.amount(),
		DueDate:     r.text(schema.FieldDueDate),
		Status:      status,
		Note:        r.text(schema.FieldNote),
	}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
