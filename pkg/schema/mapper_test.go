package schema

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestMapper() *Mapper {
	return NewMapper(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestResolve_LabelsFoundOutOfPosition(t *testing.T) {
	sample := [][]string{
		{"거래처", "매출금액", "모델", "매출기간", "수량", "순번"},
		{"Acme", "1000", "X1", "2024-01", "10", "1"},
	}

	mapping, err := newTestMapper().Resolve(context.Background(), models.KindRevenue, sample)
	require.NoError(t, err)

	assert.Equal(t, StrategyLabel, mapping.Strategy)
	assert.Equal(t, DialectLegacy, mapping.Dialect)
	assert.True(t, mapping.HeaderRow)

	period, ok := mapping.Column(FieldPeriod)
	require.True(t, ok)
	assert.Equal(t, 3, period)

	amount, ok := mapping.Column(FieldAmount)
	require.True(t, ok)
	assert.Equal(t, 1, amount)

	assert.Equal(t, "2024-01", mapping.Value(sample[1], FieldPeriod))
	assert.True(t, mapping.NumericColumn(1))
	assert.False(t, mapping.NumericColumn(0))
}

func TestResolve_PositionalFallbackIsLegacyLayout(t *testing.T) {
	sample := [][]string{
		{"1", "2024-01", "Acme", "X1", "10", "1000"},
		{"2", "2024-02", "Beta", "X2", "5", "500"},
	}

	mapping, err := newTestMapper().Resolve(context.Background(), models.KindRevenue, sample)
	require.NoError(t, err)

	legacy, ok := catalog[models.KindRevenue].Layout(DialectLegacy)
	require.True(t, ok)

	assert.Equal(t, StrategyPositional, mapping.Strategy)
	assert.Equal(t, DialectLegacy, mapping.Dialect)
	assert.Equal(t, legacy.Positions, mapping.Index)
	assert.Equal(t, 6, mapping.Width)
	assert.False(t, mapping.HeaderRow)
}

func TestResolve_PositionalGenericHeader(t *testing.T) {
	sample := [][]string{
		{"c1", "c2", "c3", "c4", "c5", "c6"},
		{"1", "2024-01", "Acme", "X1", "10", "1000"},
	}

	mapping, err := newTestMapper().Resolve(context.Background(), models.KindRevenue, sample)
	require.NoError(t, err)

	assert.Equal(t, StrategyPositional, mapping.Strategy)
	assert.True(t, mapping.HeaderRow)
}

func TestResolve_Dialects(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.Kind
		sample  [][]string
		dialect string
	}{
		{
			name: "revenue extended by label",
			kind: models.KindRevenue,
			sample: [][]string{
				{"순번", "매출기간", "거래처", "모델", "품번", "고객사품번", "품명", "수량", "매출금액"},
			},
			dialect: DialectExtended,
		},
		{
			name: "revenue extended by width",
			kind: models.KindRevenue,
			sample: [][]string{
				{"1", "2024-01", "Acme", "X1", "P-1", "CP-1", "Bracket", "10", "1000"},
			},
			dialect: DialectExtended,
		},
		{
			name: "purchase material by width",
			kind: models.KindPurchase,
			sample: [][]string{
				{"2024-01-05", "STEEL", "Posco", "M-1", "Plate", "KG", "L1", "100", "KRW", "10", "1000"},
			},
			dialect: DialectMaterial,
		},
		{
			name: "purchase parts by width",
			kind: models.KindPurchase,
			sample: [][]string{
				{"2024-01-05", "Acme", "PO-1", "P-1", "Bolt", "M6", "EA", "SUS", "W1", "100", "KRW", "10", "1000"},
			},
			dialect: DialectParts,
		},
		{
			name: "inventory warehouse needs numeric quantity",
			kind: models.KindInventory,
			sample: [][]string{
				{"완제품", "A1", "CP1", "Bolt", "M6", "EA", "X1", "정상", "W1", "R-01", "1,200"},
			},
			dialect: DialectWarehouse,
		},
		{
			name: "inventory material when trailing cell is text",
			kind: models.KindInventory,
			sample: [][]string{
				{"A1", "Bolt", "EA", "W1", "12", "", "", "", "", "", "memo"},
			},
			dialect: DialectMaterial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, err := newTestMapper().Resolve(context.Background(), tt.kind, tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, mapping.Dialect)
		})
	}
}

func TestResolve_SubstringMatch(t *testing.T) {
	sample := [][]string{
		{"업체명", "사업자 등록번호", "대표자명", "본사 주소", "2022년 매출액", "2023년 매출액", "2024년 매출액"},
	}

	mapping, err := newTestMapper().Resolve(context.Background(), models.KindSupplier, sample)
	require.NoError(t, err)

	assert.Equal(t, StrategyLabel, mapping.Strategy)
	assert.Equal(t, map[Field]int{
		FieldCompanyName:    0,
		FieldBusinessNumber: 1,
		FieldCEO:            2,
		FieldAddress:        3,
		FieldSales1:         4,
		FieldSales2:         5,
		FieldSales3:         6,
	}, mapping.Index)
	assert.Equal(t, "2023년 매출액", mapping.Headers[FieldSales2])
}

func TestResolve_MissingRequiredFields(t *testing.T) {
	sample := [][]string{
		{"거래처", "모델", "수량", "매출금엑"},
	}

	mapping, err := newTestMapper().Resolve(context.Background(), models.KindRevenue, sample)
	require.Error(t, err)
	assert.Nil(t, mapping)
	assert.True(t, IsMappingError(err))

	var mappingErr *MappingError
	require.ErrorAs(t, err, &mappingErr)
	assert.Equal(t, []Field{FieldPeriod, FieldAmount}, mappingErr.Missing)

	httpErr := mappingErr.ToHTTPError()
	assert.Equal(t, http.StatusUnprocessableEntity, httperror.GetStatusCode(httpErr))
}

func TestResolve_EmptySample(t *testing.T) {
	_, err := newTestMapper().Resolve(context.Background(), models.KindInventory, nil)
	assert.True(t, IsMappingError(err))
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Part No.", "partno"},
		{" 매출 기간 ", "매출기간"},
		{"UNIT_PRICE", "unitprice"},
		{"(단가)", "단가"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeLabel(tt.in))
		})
	}
}
