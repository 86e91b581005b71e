// Package ingest runs one upload through tokenizing, schema resolution and
// record building.
package ingest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/builder"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/tokenizer"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultSampleSize is how many leading rows are handed to the mapper.
const DefaultSampleSize = 10

// Source is one upload.
type Source struct {
	Kind     models.Kind
	Filename string
	Data     []byte
	// DefaultYear applies to periods that carry only a month. Zero falls back
	// to the pipeline default.
	DefaultYear int
}

// Summary describes a finished run. Row-level problems never fail a run;
// they are counted here instead.
type Summary struct {
	RecordSet   models.RecordSet          `json:"-"`
	Kind        models.Kind               `json:"kind"`
	Records     int                       `json:"records"`
	Rows        int                       `json:"rows"`
	Dropped     int                       `json:"dropped"`
	Skipped     int                       `json:"skipped"`
	SkipReasons map[models.SkipReason]int `json:"skip_reasons"`
	Repaired    int                       `json:"repaired"`
	Dialect     string                    `json:"dialect"`
	Strategy    schema.Strategy           `json:"strategy"`
	Encoding    string                    `json:"encoding"`
	Reencoded   bool                      `json:"reencoded"`
}

func (s *Summary) skip(reason models.SkipReason) {
	s.Skipped++
	s.SkipReasons[reason]++
}

type Pipeline struct {
	logger      ectologger.Logger
	tokenizer   *tokenizer.Tokenizer
	mapper      *schema.Mapper
	defaultYear int
	sampleSize  int
}

type Option func(*Pipeline)

// WithDefaultYear overrides the current year as the year for month-only
// periods. Zero keeps the current year.
func WithDefaultYear(year int) Option {
	return func(p *Pipeline) {
		if year > 0 {
			p.defaultYear = year
		}
	}
}

func WithSampleSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.sampleSize = n
		}
	}
}

func NewPipeline(logger ectologger.Logger, tok *tokenizer.Tokenizer, mapper *schema.Mapper, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:      logger,
		tokenizer:   tok,
		mapper:      mapper,
		defaultYear: time.Now().Year(),
		sampleSize:  DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests src. The only error for well-formed input is a
// *schema.MappingError, returned together with an empty summary when no
// recognizable schema was found.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "Pipeline.Run")
	defer span.End()

	start := time.Now()
	logger := p.logger.WithContext(ctx)

	if !src.Kind.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown record kind %s", src.Kind)
	}

	input, err := p.open(ctx, src)
	if err != nil {
		logger.WithError(err).Errorf("failed to tokenize %s upload", src.Kind)
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}

	summary := &Summary{
		RecordSet:   models.NewRecordSet(src.Kind),
		Kind:        src.Kind,
		SkipReasons: map[models.SkipReason]int{},
		Encoding:    input.Encoding,
		Reencoded:   input.Repaired,
	}

	sample := make([][]string, 0, p.sampleSize)
	for row := range input.Rows(ctx) {
		if len(sample) == p.sampleSize {
			break
		}
		sample = append(sample, row.Cells)
	}

	mapping, err := p.mapper.Resolve(ctx, src.Kind, sample)
	if err != nil {
		summary.Dropped = input.Dropped()
		metrics.IngestRunsTotal.WithLabelValues(src.Kind.String(), "", "failed").Inc()
		return summary, err
	}
	summary.Dialect = mapping.Dialect
	summary.Strategy = mapping.Strategy

	year := src.DefaultYear
	if year == 0 {
		year = p.defaultYear
	}
	b := builder.New(p.logger, builder.WithDefaultYear(year))

	var header []string
	first := true
	for row := range input.Rows(ctx) {
		if first && mapping.HeaderRow {
			first = false
			header = row.Cells
			if mapping.Strategy == schema.StrategyPositional {
				summary.skip(models.SkipHeaderRow)
			}
			continue
		}
		first = false
		summary.Rows++

		if header != nil && sameRow(header, row.Cells) {
			summary.skip(models.SkipHeaderRow)
			continue
		}

		cells := row.Cells
		if len(cells) > mapping.Width {
			var merges int
			cells, merges = normalize.RepairSplitThousands(cells, mapping.Width, mapping.NumericColumn)
			summary.Repaired += merges
		}

		outcome := b.Build(ctx, mapping, cells, row.Line)
		if !outcome.IsOk() {
			summary.skip(outcome.Reason)
			continue
		}
		summary.RecordSet.Records = append(summary.RecordSet.Records, outcome.Record)
	}
	summary.Dropped = input.Dropped()
	summary.Records = summary.RecordSet.Len()

	p.record(summary, time.Since(start))
	logger.WithFields(map[string]any{
		"kind":     src.Kind,
		"filename": src.Filename,
		"records":  summary.Records,
		"rows":     summary.Rows,
		"dropped":  summary.Dropped,
		"skipped":  summary.Skipped,
		"repaired": summary.Repaired,
		"dialect":  summary.Dialect,
		"strategy": summary.Strategy,
	}).Info("ingestion run finished")

	return summary, nil
}

func (p *Pipeline) open(ctx context.Context, src Source) (*tokenizer.Input, error) {
	if tokenizer.IsXLSX(src.Filename, src.Data) {
		return p.tokenizer.OpenXLSX(ctx, src.Data, src.Kind)
	}
	return p.tokenizer.Open(ctx, src.Data, src.Kind), nil
}

func (p *Pipeline) record(s *Summary, elapsed time.Duration) {
	kind := s.Kind.String()
	metrics.IngestRunsTotal.WithLabelValues(kind, string(s.Strategy), "ok").Inc()
	metrics.IngestRowsTotal.WithLabelValues(kind, "built").Add(float64(s.Records))
	metrics.IngestRowsTotal.WithLabelValues(kind, "skipped").Add(float64(s.Skipped))
	metrics.IngestRowsTotal.WithLabelValues(kind, "dropped").Add(float64(s.Dropped))
	metrics.IngestRowsTotal.WithLabelValues(kind, "repaired").Add(float64(s.Repaired))
	metrics.IngestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// sameRow reports whether a data row repeats the header, as happens when
// exports are concatenated.
func sameRow(header, cells []string) bool {
	if len(header) != len(cells) {
		return false
	}
	for i := range header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), strings.TrimSpace(cells[i])) {
			return false
		}
	}
	return true
}
