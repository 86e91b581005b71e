package models

// SkipReason explains why a row produced no record.
type SkipReason string

const (
	SkipMissingIdentifier SkipReason = "missing_identifier"
	SkipHeaderRow         SkipReason = "header_row"
	SkipEmptyRow          SkipReason = "empty_row"
	SkipShortRow          SkipReason = "short_row"
)

// Outcome is the result of building one row: either a record or a skip reason.
type Outcome struct {
	Record Record
	Reason SkipReason
	RowNo  int
}

// Ok wraps a built record.
func Ok(record Record, rowNo int) Outcome {
	return Outcome{Record: record, RowNo: rowNo}
}

// Skipped reports a row that was excluded.
func Skipped(reason SkipReason, rowNo int) Outcome {
	return Outcome{Reason: reason, RowNo: rowNo}
}

// IsOk reports whether the outcome carries a record.
func (o Outcome) IsOk() bool {
	return o.Record != nil
}
