package models

import (
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Record is the closed set of canonical record variants. Values are built once
// by the record builder and never mutated afterwards.
type Record interface {
	Kind() Kind
	RecordID() uuid.UUID
	isRecord()
}

// RevenueLine is one sales line for a customer/model in a period.
type RevenueLine struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RowNo          int       `json:"row_no" db:"row_no"`
	Seq            string    `json:"seq" db:"seq"`
	Year           int       `json:"year" db:"year"`
	Month          string    `json:"month" db:"month"`
	Customer       string    `json:"customer" db:"customer"`
	Model          string    `json:"model" db:"model"`
	PartNo         string    `json:"part_no" db:"part_no"`
	CustomerPartNo string    `json:"customer_part_no" db:"customer_part_no"`
	PartName       string    `json:"part_name" db:"part_name"`
	Quantity       float64   `json:"quantity" db:"quantity"`
	Amount         float64   `json:"amount" db:"amount"`
}

// PurchaseLine is a parts or material purchase. Category carries the dialect
// the line was read from.
type PurchaseLine struct {
	ID           uuid.UUID `json:"id" db:"id"`
	RowNo        int       `json:"row_no" db:"row_no"`
	Date         string    `json:"date" db:"date"`
	Year         int       `json:"year" db:"year"`
	Month        string    `json:"month" db:"month"`
	Category     string    `json:"category" db:"category"`
	Supplier     string    `json:"supplier" db:"supplier"`
	ItemCode     string    `json:"item_code" db:"item_code"`
	ItemName     string    `json:"item_name" db:"item_name"`
	Spec         string    `json:"spec" db:"spec"`
	Unit         string    `json:"unit" db:"unit"`
	MaterialType string    `json:"material_type" db:"material_type"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	UnitPrice    float64   `json:"unit_price" db:"unit_price"`
	Amount       float64   `json:"amount" db:"amount"`
}

// InventoryLine is a stock position for one item in one warehouse.
type InventoryLine struct {
	ID             uuid.UUID `json:"id" db:"id"`
	RowNo          int       `json:"row_no" db:"row_no"`
	ItemType       string    `json:"item_type" db:"item_type"`
	Code           string    `json:"code" db:"code"`
	CustomerPartNo string    `json:"customer_part_no" db:"customer_part_no"`
	Name           string    `json:"name" db:"name"`
	Spec           string    `json:"spec" db:"spec"`
	Unit           string    `json:"unit" db:"unit"`
	Model          string    `json:"model" db:"model"`
	Status         string    `json:"status" db:"status"`
	Warehouse      string    `json:"warehouse" db:"warehouse"`
	Location       string    `json:"location" db:"location"`
	Quantity       float64   `json:"quantity" db:"quantity"`
}

// YearAmount is a sales figure for a single year. Year is 0 when the source
// column carried no year.
type YearAmount struct {
	Year   int     `json:"year"`
	Amount float64 `json:"amount"`
}

// SupplierProfile describes a supplier company and its recent sales.
type SupplierProfile struct {
	ID             uuid.UUID                      `json:"id" db:"id"`
	RowNo          int                            `json:"row_no" db:"row_no"`
	CompanyName    string                         `json:"company_name" db:"company_name"`
	BusinessNumber string                         `json:"business_number" db:"business_number"`
	CEO            string                         `json:"ceo" db:"ceo"`
	Address        string                         `json:"address" db:"address"`
	Sales          database.JSONB[[]YearAmount] `json:"sales" db:"sales"`
}

// QuoteRequestLine is a quote requested by a customer.
type QuoteRequestLine struct {
	ID          uuid.UUID `json:"id" db:"id"`
	RowNo       int       `json:"row_no" db:"row_no"`
	RequestDate string    `json:"request_date" db:"request_date"`
	Customer    string    `json:"customer" db:"customer"`
	ItemCode    string    `json:"item_code" db:"item_code"`
	ItemName    string    `json:"item_name" db:"item_name"`
	Quantity    float64   `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
	Amount      float64   `json:"amount" db:"amount"`
	DueDate     string    `json:"due_date" db:"due_date"`
	Status      string    `json:"status" db:"status"`
	Note        string    `json:"note" db:"note"`
}

func (RevenueLine) Kind() Kind      { return KindRevenue }
func (PurchaseLine) Kind() Kind     { return KindPurchase }
func (InventoryLine) Kind() Kind    { return KindInventory }
func (SupplierProfile) Kind() Kind  { return KindSupplier }
func (QuoteRequestLine) Kind() Kind { return KindQuote }

func (r RevenueLine) RecordID() uuid.UUID      { return r.ID }
func (r PurchaseLine) RecordID() uuid.UUID     { return r.ID }
func (r InventoryLine) RecordID() uuid.UUID    { return r.ID }
func (r SupplierProfile) RecordID() uuid.UUID  { return r.ID }
func (r QuoteRequestLine) RecordID() uuid.UUID { return r.ID }

func (RevenueLine) isRecord()      {}
func (PurchaseLine) isRecord()     {}
func (InventoryLine) isRecord()    {}
func (SupplierProfile) isRecord()  {}
func (QuoteRequestLine) isRecord() {}

// TotalSales sums the yearly sales figures.
func (s SupplierProfile) TotalSales() float64 {
	var total float64
	for _, ya := range s.Sales.Data {
		total += ya.Amount
	}
	return total
}
