package tokenizer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Ramsey-B/fern/pkg/models"
)

var zipMagic = []byte("PK\x03\x04")

// IsXLSX reports whether blob looks like an Office Open XML workbook.
func IsXLSX(filename string, blob []byte) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return true
	}
	return bytes.HasPrefix(blob, zipMagic)
}

// TokenizeXLSX reads the active sheet of a workbook. Rows are padded to the
// widest row because the workbook omits trailing empty cells.
func (t *Tokenizer) TokenizeXLSX(ctx context.Context, blob []byte, kind models.Kind) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("failed to open workbook")
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Result{}, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("failed to read sheet %s", sheet)
		return Result{}, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	width := 0
	for _, r := range raw {
		width = max(width, len(r))
	}

	result := Result{Rows: []Row{}, Encoding: "xlsx"}
	minCells := kind.MinCells()
	for i, r := range raw {
		if isBlank(r) {
			continue
		}
		cells := make([]string, width)
		for j, c := range r {
			cells[j] = strings.TrimSpace(c)
		}
		if width < minCells {
			t.logger.WithContext(ctx).Warnf("dropping short row %d of sheet %s", i+1, sheet)
			result.Dropped++
			continue
		}
		result.Rows = append(result.Rows, Row{Line: i + 1, Cells: cells})
	}
	return result, nil
}

// OpenXLSX reads a workbook into an Input. The sheet is read eagerly, so
// passes over Rows replay the same rows.
func (t *Tokenizer) OpenXLSX(ctx context.Context, blob []byte, kind models.Kind) (*Input, error) {
	result, err := t.TokenizeXLSX(ctx, blob, kind)
	if err != nil {
		return nil, err
	}
	return &Input{Encoding: result.Encoding, t: t, kind: kind, rows: result.Rows, fixed: true, dropped: result.Dropped}, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
