package tokenizer

import (
	"context"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestTokenize_QuotedCells(t *testing.T) {
	blob := strings.Join([]string{
		`순번,매출기간,거래처,모델,수량,매출금액`,
		`1,2024-01,"Acme, Inc.",X1,"1,200","2,482,192"`,
		`2,2024-02,"He said ""hi""",X2,10,500`,
		`3,2024-03,Plain,X3,5,250`,
	}, "\n")

	tok := New(testLogger())
	result := tok.Tokenize(context.Background(), []byte(blob), models.KindRevenue)

	require.Len(t, result.Rows, 4)
	assert.Zero(t, result.Dropped)
	for _, row := range result.Rows {
		assert.Len(t, row.Cells, 6, "line %d", row.Line)
	}
	assert.Equal(t, "Acme, Inc.", result.Rows[1].Cells[2])
	assert.Equal(t, "2,482,192", result.Rows[1].Cells[5])
	assert.Equal(t, `He said "hi"`, result.Rows[2].Cells[2])
	assert.Equal(t, 3, result.Rows[2].Line)
	assert.Equal(t, EncodingUTF8, result.Encoding)
}

func TestTokenize_DropsShortRows(t *testing.T) {
	blob := "a,b,c,d,e,f\n1,2,3\n\n4,5,6,7,8,9\n"

	result := New(testLogger()).Tokenize(context.Background(), []byte(blob), models.KindRevenue)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, []string{"4", "5", "6", "7", "8", "9"}, result.Rows[1].Cells)
}

func TestTokenize_StripsBOM(t *testing.T) {
	blob := append([]byte{0xEF, 0xBB, 0xBF}, []byte("code,name,unit,warehouse,qty\nA1,Bolt,EA,W1,3\n")...)

	result := New(testLogger()).Tokenize(context.Background(), blob, models.KindInventory)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "code", result.Rows[0].Cells[0])
	assert.Equal(t, EncodingUTF8BOM, result.Encoding)
}

func TestTokenize_Delimiter(t *testing.T) {
	blob := "code;name;unit;warehouse;qty\nA1;\"Bolt; M6\";EA;W1;3\n"

	result := New(testLogger(), WithDelimiter(';')).Tokenize(context.Background(), []byte(blob), models.KindInventory)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Bolt; M6", result.Rows[1].Cells[1])
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{name: "comma", text: "a,b,c\n1,2,3\n", want: ','},
		{name: "semicolon with decimal commas", text: "code;name;qty\nA1;Bolt;1,5\nA2;Nut;2,25\n", want: ';'},
		{name: "tab", text: "code\tname\tqty\nA1\tBolt, M6\t3\n", want: '\t'},
		{name: "pipe", text: "code|name|qty\nA1|Bolt|3\n", want: '|'},
		{name: "quoted commas do not vote", text: "a;b;c\n\"1,200\";\"2,482,192\";x\n", want: ';'},
		{name: "quoted newline", text: "a;b\n\"line one\nline, two, three\";x\n", want: ';'},
		{name: "title line first", text: "2024 매출 현황\n순번\t거래처\t금액\n1\tAcme\t100\n", want: '\t'},
		{name: "nothing to go on", text: "just words\n", want: ','},
		{name: "empty", text: "", want: ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter(tt.text))
		})
	}
}

func TestTokenize_SniffsDelimiter(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "semicolon", blob: "code;name;unit;warehouse;qty\nA1;\"Bolt; M6\";EA;W1;3\n"},
		{name: "tab", blob: "code\tname\tunit\twarehouse\tqty\nA1\tBolt; M6\tEA\tW1\t3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(testLogger(), WithDelimiter(0)).Tokenize(context.Background(), []byte(tt.blob), models.KindInventory)

			require.Len(t, result.Rows, 2)
			assert.Zero(t, result.Dropped)
			assert.Equal(t, []string{"A1", "Bolt; M6", "EA", "W1", "3"}, result.Rows[1].Cells)
		})
	}
}

func TestRows_IsRestartable(t *testing.T) {
	blob := []byte("a,b,c,d,e\n1,2,3,4,5\n6,7,8,9,10\n")
	seq := New(testLogger()).Rows(context.Background(), blob, models.KindSupplier)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}

	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())

	for row := range seq {
		assert.Equal(t, "a", row.Cells[0])
		break
	}
}

func TestInput_DroppedFollowsLatestPass(t *testing.T) {
	blob := []byte("a,b,c,d,e\n1,2\n1,2,3,4,5\n6,7\n6,7,8,9,10\n")
	in := New(testLogger()).Open(context.Background(), blob, models.KindSupplier)

	for row := range in.Rows(context.Background()) {
		if row.Line == 3 {
			break
		}
	}
	assert.Equal(t, 1, in.Dropped())

	lines := []int{}
	for row := range in.Rows(context.Background()) {
		lines = append(lines, row.Line)
	}
	assert.Equal(t, []int{1, 3, 5}, lines)
	assert.Equal(t, 2, in.Dropped())
	assert.Equal(t, EncodingUTF8, in.Encoding)
}

func TestOpenXLSX_ReplaysRows(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"코드", "품명", "단위", "창고", "수량"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A1", "Bolt", "EA", "W1", 12}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	in, err := New(testLogger()).OpenXLSX(context.Background(), buf.Bytes(), models.KindInventory)
	require.NoError(t, err)

	for range 2 {
		n := 0
		for range in.Rows(context.Background()) {
			n++
		}
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, "xlsx", in.Encoding)
}

func TestDecode_FallsBackToEUCKR(t *testing.T) {
	text := "매출기간,매출금액,거래처,모델,수량,순번\n2024-01,1000,대한,X1,1,1\n"
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), text)
	require.NoError(t, err)

	decoded := Decode([]byte(encoded))

	assert.Equal(t, EncodingEUCKR, decoded.Encoding)
	assert.True(t, decoded.Repaired)
	assert.Equal(t, text, decoded.Text)
	assert.Zero(t, decoded.BadRatio)
}

func TestDecode_KeepsCleanUTF8(t *testing.T) {
	decoded := Decode([]byte("거래처,금액\n대한,100\n"))

	assert.Equal(t, EncodingUTF8, decoded.Encoding)
	assert.False(t, decoded.Repaired)
	assert.Equal(t, "거래처,금액\n대한,100\n", decoded.Text)
}

func TestTokenizeXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"코드", "품명", "단위", "창고", "수량"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A1", "Bolt", "EA", "W1", 12}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]any{"A2", "Nut"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	blob := buf.Bytes()
	assert.True(t, IsXLSX("", blob))

	result, err := New(testLogger()).TokenizeXLSX(context.Background(), blob, models.KindInventory)
	require.NoError(t, err)

	require.Len(t, result.Rows, 3, "blank row 3 is skipped")
	assert.Equal(t, []string{"A1", "Bolt", "EA", "W1", "12"}, result.Rows[1].Cells)
	assert.Equal(t, []string{"A2", "Nut", "", "", ""}, result.Rows[2].Cells)
	assert.Equal(t, 4, result.Rows[2].Line)
}

func TestIsXLSX(t *testing.T) {
	assert.True(t, IsXLSX("report.XLSX", nil))
	assert.False(t, IsXLSX("report.csv", []byte("a,b")))
}
