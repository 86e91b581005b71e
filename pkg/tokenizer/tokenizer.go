// Package tokenizer splits raw tabular exports into rows of cells.
package tokenizer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Row is one tokenized line. Line is the 1-based line number in the source.
type Row struct {
	Line  int
	Cells []string
}

// Result is a fully materialized tokenization.
type Result struct {
	Rows     []Row
	Dropped  int
	Encoding string
	Repaired bool
}

// Tokenizer splits delimiter-separated text. It keeps no state between calls,
// so the same blob may be tokenized any number of times. Without a fixed
// delimiter each input is sniffed.
type Tokenizer struct {
	logger    ectologger.Logger
	delimiter rune
}

type Option func(*Tokenizer)

// WithDelimiter fixes the delimiter. Zero keeps sniffing.
func WithDelimiter(d rune) Option {
	return func(t *Tokenizer) {
		t.delimiter = d
	}
}

func New(logger ectologger.Logger, opts ...Option) *Tokenizer {
	t := &Tokenizer{logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Input is a decoded blob whose rows can be walked any number of times.
type Input struct {
	Encoding string
	Repaired bool

	t       *Tokenizer
	text    string
	kind    models.Kind
	rows    []Row
	fixed   bool
	dropped int
}

// Open decodes blob once, repairing its encoding if needed.
func (t *Tokenizer) Open(ctx context.Context, blob []byte, kind models.Kind) *Input {
	decoded := Decode(blob)
	if decoded.Repaired {
		t.logger.WithContext(ctx).WithFields(map[string]any{
			"kind":      kind,
			"encoding":  decoded.Encoding,
			"bad_ratio": decoded.BadRatio,
		}).Warn("input re-decoded with fallback encoding")
	}
	return &Input{Encoding: decoded.Encoding, Repaired: decoded.Repaired, t: t, text: decoded.Text, kind: kind}
}

// Rows returns a lazy sequence over the input. Rows with fewer cells than the
// kind requires are dropped with a warning. Every iteration starts again from
// the first line.
func (in *Input) Rows(ctx context.Context) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if in.fixed {
			for _, row := range in.rows {
				if !yield(row) {
					return
				}
			}
			return
		}
		in.dropped = 0
		in.t.scan(ctx, in.text, in.kind, yield, func(Row) { in.dropped++ })
	}
}

// Dropped is the number of rows dropped by the latest pass over Rows.
func (in *Input) Dropped() int {
	return in.dropped
}

// Rows returns a lazy sequence over the rows of blob. See Input.Rows.
func (t *Tokenizer) Rows(ctx context.Context, blob []byte, kind models.Kind) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		in := &Input{t: t, text: Decode(blob).Text, kind: kind}
		in.Rows(ctx)(yield)
	}
}

// Tokenize reads every row of blob and reports how many were dropped.
func (t *Tokenizer) Tokenize(ctx context.Context, blob []byte, kind models.Kind) Result {
	in := t.Open(ctx, blob, kind)
	result := Result{Rows: []Row{}, Encoding: in.Encoding, Repaired: in.Repaired}
	for row := range in.Rows(ctx) {
		result.Rows = append(result.Rows, row)
	}
	result.Dropped = in.Dropped()
	return result
}

func (t *Tokenizer) reader(ctx context.Context, text string) *csv.Reader {
	delimiter := t.delimiter
	if delimiter == 0 {
		delimiter = SniffDelimiter(text)
		t.logger.WithContext(ctx).Debugf("sniffed delimiter %q", delimiter)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func (t *Tokenizer) scan(ctx context.Context, text string, kind models.Kind, yield func(Row) bool, onDrop func(Row)) {
	r := t.reader(ctx, text)
	minCells := kind.MinCells()

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				t.logger.WithContext(ctx).WithError(err).Error("failed to read tabular input")
				return
			}
			t.logger.WithContext(ctx).WithError(err).Warnf("skipping malformed line %d", parseErr.StartLine)
			if onDrop != nil {
				onDrop(Row{Line: parseErr.StartLine})
			}
			continue
		}

		line, _ := r.FieldPos(0)
		row := Row{Line: line, Cells: trimCells(record)}
		if len(row.Cells) < minCells {
			t.logger.WithContext(ctx).WithFields(map[string]any{
				"kind":  kind,
				"line":  line,
				"cells": len(row.Cells),
				"min":   minCells,
			}).Warn("dropping short row")
			if onDrop != nil {
				onDrop(row)
			}
			continue
		}

		if !yield(row) {
			return
		}
	}
}

func trimCells(record []string) []string {
	cells := make([]string, len(record))
	for i, c := range record {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}
