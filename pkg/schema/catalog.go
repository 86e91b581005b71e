package schema

import (
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// Field is a canonical field name of a record kind.
type Field string

const (
	FieldSeq            Field = "seq"
	FieldPeriod         Field = "period"
	FieldDate           Field = "date"
	FieldCustomer       Field = "customer"
	FieldModel          Field = "model"
	FieldPartNo         Field = "part_no"
	FieldCustomerPartNo Field = "customer_part_no"
	FieldPartName       Field = "part_name"
	FieldSupplier       Field = "supplier"
	FieldItemType       Field = "item_type"
	FieldItemCode       Field = "item_code"
	FieldItemName       Field = "item_name"
	FieldSpecText       Field = "spec"
	FieldUnit           Field = "unit"
	FieldMaterialType   Field = "material_type"
	FieldStatus         Field = "status"
	FieldWarehouse      Field = "warehouse"
	FieldLocation       Field = "location"
	FieldQuantity       Field = "quantity"
	FieldUnitPrice      Field = "unit_price"
	FieldAmount         Field = "amount"
	FieldCompanyName    Field = "company_name"
	FieldBusinessNumber Field = "business_number"
	FieldCEO            Field = "ceo"
	FieldAddress        Field = "address"
	FieldSales1         Field = "sales_1"
	FieldSales2         Field = "sales_2"
	FieldSales3         Field = "sales_3"
	FieldRequestDate    Field = "request_date"
	FieldDueDate        Field = "due_date"
	FieldNote           Field = "note"
)

// Dialect names.
const (
	DialectLegacy    = "legacy"
	DialectExtended  = "extended"
	DialectParts     = "parts"
	DialectMaterial  = "material"
	DialectWarehouse = "warehouse"
	DialectStandard  = "standard"
)

// FieldSpec describes how a field is recognized in a header.
type FieldSpec struct {
	Name    Field
	Labels  []string
	Numeric bool
}

// Layout is a fixed column order used when no header is recognized.
type Layout struct {
	Dialect   string
	Width     int
	Positions map[Field]int
}

// KindSpec is the catalog entry for one record kind.
type KindSpec struct {
	Kind   models.Kind
	Fields []FieldSpec
	// Required lists groups of fields; at least one field of every group must
	// be located for a run to proceed.
	Required [][]Field
	Layouts  []Layout
	// labelDialect picks a dialect once labels are resolved.
	labelDialect func(located map[Field]int, width int) string
	// positionalLayout picks a layout from sample rows when no label matched.
	positionalLayout func(sample [][]string) Layout
}

// Spec returns the catalog entry for kind.
func Spec(kind models.Kind) (*KindSpec, bool) {
	spec, ok := catalog[kind]
	return spec, ok
}

// Field returns the definition of a field by name.
func (s *KindSpec) Field(name Field) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Layout returns the positional layout of a dialect.
func (s *KindSpec) Layout(dialect string) (Layout, bool) {
	for _, l := range s.Layouts {
		if l.Dialect == dialect {
			return l, true
		}
	}
	return Layout{}, false
}

func (s *KindSpec) mustLayout(dialect string) Layout {
	l, _ := s.Layout(dialect)
	return l
}

func positions(fields ...Field) map[Field]int {
	m := make(map[Field]int, len(fields))
	for i, f := range fields {
		if f != "" {
			m[f] = i
		}
	}
	return m
}

func layout(dialect string, fields ...Field) Layout {
	return Layout{Dialect: dialect, Width: len(fields), Positions: positions(fields...)}
}

var salesLabels = []string{"매출액", "매출", "sales", "revenue"}

var catalog = map[models.Kind]*KindSpec{
	models.KindRevenue: {
		Kind: models.KindRevenue,
		Fields: []FieldSpec{
			{Name: FieldSeq, Labels: []string{"순번", "번호", "no", "seq"}},
			{Name: FieldPeriod, Labels: []string{"매출기간", "기간", "매출월", "년월", "period"}},
			{Name: FieldCustomer, Labels: []string{"거래처", "고객사", "거래처명", "고객", "customer"}},
			{Name: FieldModel, Labels: []string{"모델", "차종", "model"}},
			{Name: FieldPartNo, Labels: []string{"품번", "partno", "part no"}},
			{Name: FieldCustomerPartNo, Labels: []string{"고객사품번", "고객품번", "customer part no"}},
			{Name: FieldPartName, Labels: []string{"품명", "품목명", "part name"}},
			{Name: FieldQuantity, Labels: []string{"수량", "매출수량", "qty", "quantity"}, Numeric: true},
			{Name: FieldAmount, Labels: []string{"매출금액", "금액", "매출액", "amount"}, Numeric: true},
		},
		Required: [][]Field{{FieldPeriod}, {FieldCustomer}, {FieldAmount}},
		Layouts: []Layout{
			layout(DialectLegacy, FieldSeq, FieldPeriod, FieldCustomer, FieldModel, FieldQuantity, FieldAmount),
			layout(DialectExtended, FieldSeq, FieldPeriod, FieldCustomer, FieldModel, FieldPartNo,
				FieldCustomerPartNo, FieldPartName, FieldQuantity, FieldAmount),
		},
		labelDialect: func(located map[Field]int, _ int) string {
			for _, f := range []Field{FieldPartNo, FieldCustomerPartNo, FieldPartName} {
				if _, ok := located[f]; ok {
					return DialectExtended
				}
			}
			return DialectLegacy
		},
	},
	models.KindPurchase: {
		Kind: models.KindPurchase,
		Fields: []FieldSpec{
			{Name: FieldDate, Labels: []string{"일자", "입고일자", "매입일자", "날짜", "date"}},
			{Name: FieldSupplier, Labels: []string{"거래처", "공급처", "매입처", "업체", "supplier", "vendor"}},
			{Name: FieldItemCode, Labels: []string{"품목코드", "품번", "자재코드", "코드", "item code", "code"}},
			{Name: FieldItemName, Labels: []string{"품목명", "품명", "자재명", "item name", "name"}},
			{Name: FieldSpecText, Labels: []string{"규격", "spec"}},
			{Name: FieldUnit, Labels: []string{"단위", "unit"}},
			{Name: FieldMaterialType, Labels: []string{"재질", "자재구분", "재질구분", "자재종류", "material"}},
			{Name: FieldQuantity, Labels: []string{"수량", "입고수량", "qty", "quantity"}, Numeric: true},
			{Name: FieldUnitPrice, Labels: []string{"단가", "unit price", "price"}, Numeric: true},
			{Name: FieldAmount, Labels: []string{"금액", "공급가액", "매입금액", "amount"}, Numeric: true},
		},
		Required: [][]Field{{FieldDate}, {FieldItemCode, FieldItemName}, {FieldAmount, FieldUnitPrice}},
		Layouts: []Layout{
			layout(DialectParts, FieldDate, FieldSupplier, "", FieldItemCode, FieldItemName, FieldSpecText,
				FieldUnit, FieldMaterialType, "", FieldQuantity, "", FieldUnitPrice, FieldAmount),
			layout(DialectMaterial, FieldDate, FieldMaterialType, FieldSupplier, FieldItemCode, FieldItemName,
				FieldUnit, "", FieldQuantity, "", FieldUnitPrice, FieldAmount),
		},
		labelDialect: func(located map[Field]int, width int) string {
			if _, ok := located[FieldSpecText]; ok || width >= 13 {
				return DialectParts
			}
			return DialectMaterial
		},
	},
	models.KindInventory: {
		Kind: models.KindInventory,
		Fields: []FieldSpec{
			{Name: FieldItemType, Labels: []string{"품목구분", "구분", "유형", "type"}},
			{Name: FieldItemCode, Labels: []string{"품목코드", "품번", "코드", "code"}},
			{Name: FieldCustomerPartNo, Labels: []string{"고객사품번", "고객품번", "customer part no"}},
			{Name: FieldItemName, Labels: []string{"품명", "품목명", "name"}},
			{Name: FieldSpecText, Labels: []string{"규격", "spec"}},
			{Name: FieldUnit, Labels: []string{"단위", "unit"}},
			{Name: FieldModel, Labels: []string{"모델", "차종", "model"}},
			{Name: FieldStatus, Labels: []string{"상태", "status"}},
			{Name: FieldWarehouse, Labels: []string{"창고", "창고명", "warehouse"}},
			{Name: FieldLocation, Labels: []string{"위치", "로케이션", "보관위치", "location"}},
			{Name: FieldQuantity, Labels: []string{"재고수량", "현재고", "수량", "qty", "quantity"}, Numeric: true},
		},
		Required: [][]Field{{FieldItemCode, FieldItemName}, {FieldQuantity}},
		Layouts: []Layout{
			layout(DialectWarehouse, FieldItemType, FieldItemCode, FieldCustomerPartNo, FieldItemName, FieldSpecText,
				FieldUnit, FieldModel, FieldStatus, FieldWarehouse, FieldLocation, FieldQuantity),
			layout(DialectMaterial, FieldItemCode, FieldItemName, FieldUnit, FieldWarehouse, FieldQuantity),
		},
		labelDialect: func(located map[Field]int, _ int) string {
			for _, f := range []Field{FieldItemType, FieldCustomerPartNo, FieldModel, FieldStatus, FieldLocation} {
				if _, ok := located[f]; ok {
					return DialectWarehouse
				}
			}
			return DialectMaterial
		},
	},
	models.KindSupplier: {
		Kind: models.KindSupplier,
		Fields: []FieldSpec{
			{Name: FieldCompanyName, Labels: []string{"업체명", "회사명", "상호", "거래처명", "company"}},
			{Name: FieldBusinessNumber, Labels: []string{"사업자번호", "사업자등록번호", "business number"}},
			{Name: FieldCEO, Labels: []string{"대표자", "대표자명", "대표", "ceo"}},
			{Name: FieldAddress, Labels: []string{"주소", "소재지", "address"}},
			{Name: FieldSales1, Labels: salesLabels, Numeric: true},
			{Name: FieldSales2, Labels: salesLabels, Numeric: true},
			{Name: FieldSales3, Labels: salesLabels, Numeric: true},
		},
		Required: [][]Field{{FieldCompanyName}},
		Layouts: []Layout{
			layout(DialectStandard, FieldCompanyName, FieldBusinessNumber, FieldCEO, FieldAddress,
				FieldSales1, FieldSales2, FieldSales3),
		},
	},
	models.KindQuote: {
		Kind: models.KindQuote,
		Fields: []FieldSpec{
			{Name: FieldRequestDate, Labels: []string{"요청일", "요청일자", "견적요청일", "일자", "request date", "date"}},
			{Name: FieldCustomer, Labels: []string{"거래처", "고객사", "요청처", "customer"}},
			{Name: FieldItemCode, Labels: []string{"품목코드", "품번", "item code", "code"}},
			{Name: FieldItemName, Labels: []string{"품명", "품목명", "item name", "item"}},
			{Name: FieldQuantity, Labels: []string{"수량", "qty", "quantity"}, Numeric: true},
			{Name: FieldUnitPrice, Labels: []string{"단가", "unit price", "price"}, Numeric: true},
			{Name: FieldAmount, Labels: []string{"금액", "견적금액", "amount"}, Numeric: true},
			{Name: FieldDueDate, Labels: []string{"납기", "납기일", "마감일", "due date"}},
			{Name: FieldStatus, Labels: []string{"상태", "진행상태", "status"}},
			{Name: FieldNote, Labels: []string{"비고", "메모", "note"}},
		},
		Required: [][]Field{{FieldItemCode, FieldItemName}, {FieldQuantity, FieldAmount}},
		Layouts: []Layout{
			layout(DialectStandard, FieldRequestDate, FieldCustomer, FieldItemCode, FieldItemName, FieldQuantity,
				FieldUnitPrice, FieldAmount, FieldDueDate, FieldStatus, FieldNote),
		},
	},
}

func init() {
	revenue := catalog[models.KindRevenue]
	revenue.positionalLayout = func(sample [][]string) Layout {
		if commonWidth(sample) >= revenue.mustLayout(DialectExtended).Width {
			return revenue.mustLayout(DialectExtended)
		}
		return revenue.mustLayout(DialectLegacy)
	}

	purchase := catalog[models.KindPurchase]
	purchase.positionalLayout = func(sample [][]string) Layout {
		if commonWidth(sample) >= purchase.mustLayout(DialectParts).Width {
			return purchase.mustLayout(DialectParts)
		}
		return purchase.mustLayout(DialectMaterial)
	}

	inventory := catalog[models.KindInventory]
	inventory.positionalLayout = func(sample [][]string) Layout {
		warehouse := inventory.mustLayout(DialectWarehouse)
		qty := warehouse.Positions[FieldQuantity]
		for _, row := range sample {
			if len(row) >= warehouse.Width && normalize.IsNumeric(row[qty]) {
				return warehouse
			}
		}
		return inventory.mustLayout(DialectMaterial)
	}

	for _, kind := range []models.Kind{models.KindSupplier, models.KindQuote} {
		spec := catalog[kind]
		spec.positionalLayout = func([][]string) Layout { return spec.Layouts[0] }
		spec.labelDialect = func(map[Field]int, int) string { return DialectStandard }
	}
}

// commonWidth is the most frequent row length in rows, preferring the
// shorter length on a tie. Rows lengthened by split numbers stay a minority.
func commonWidth(rows [][]string) int {
	counts := map[int]int{}
	for _, r := range rows {
		counts[len(r)]++
	}
	width, best := 0, 0
	for w, n := range counts {
		if n > best || (n == best && w < width) {
			width, best = w, n
		}
	}
	return width
}
