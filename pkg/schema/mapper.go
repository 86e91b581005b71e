// Package schema resolves which column of a tabular export holds which field
// of a record kind.
package schema

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// Strategy names how a mapping was resolved.
type Strategy string

const (
	StrategyLabel      Strategy = "label"
	StrategyPositional Strategy = "positional"
)

// Mapping is the field-index table of one ingestion run. A field missing from
// Index is absent from the input.
type Mapping struct {
	Kind     models.Kind
	Dialect  string
	Strategy Strategy
	// Width is the number of columns a well-formed row has.
	Width int
	// HeaderRow is true when the first row holds labels rather than data.
	HeaderRow bool
	Index     map[Field]int
	// Headers keeps the original header text of each located field.
	Headers map[Field]string

	numeric map[int]bool
}

// Column returns the index of f.
func (m *Mapping) Column(f Field) (int, bool) {
	i, ok := m.Index[f]
	return i, ok
}

// Value returns the cell of f, or "" when f is absent or the row is short.
func (m *Mapping) Value(cells []string, f Field) string {
	i, ok := m.Index[f]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// NumericColumn reports whether column col holds a numeric field.
func (m *Mapping) NumericColumn(col int) bool {
	return m.numeric[col]
}

// Mapper resolves mappings. It is stateless.
type Mapper struct {
	logger ectologger.Logger
}

func NewMapper(logger ectologger.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// Resolve computes the mapping of a run from its first rows. sample[0] is the
// header candidate; the remaining rows help tell dialects apart when no
// header is recognized. Labels are tried by exact match, then by substring,
// and a kind-specific positional layout is used only when no label matched
// at all.
func (m *Mapper) Resolve(ctx context.Context, kind models.Kind, sample [][]string) (*Mapping, error) {
	spec, ok := Spec(kind)
	if !ok {
		return nil, NewMappingError(kind, nil)
	}
	if len(sample) == 0 {
		return nil, NewMappingError(kind, spec.requiredFirsts())
	}

	header := sample[0]
	located, headers, exact, fuzzy := matchLabels(spec, header)

	if !recognized(exact, fuzzy) {
		mapping := m.positional(spec, sample)
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"kind":       kind,
			"dialect":    mapping.Dialect,
			"header_row": mapping.HeaderRow,
		}).Debug("no header recognized, using positional layout")
		return mapping, nil
	}

	if missing := spec.missing(located); len(missing) > 0 {
		unmatched := make([]string, 0, len(header))
		taken := make(map[int]bool, len(located))
		for _, col := range located {
			taken[col] = true
		}
		for col, cell := range header {
			if !taken[col] && strings.TrimSpace(cell) != "" {
				unmatched = append(unmatched, strings.TrimSpace(cell))
			}
		}
		err := NewMappingError(kind, missing).suggest(spec, unmatched)
		m.logger.WithContext(ctx).WithError(err).Warn("required fields could not be located")
		return nil, err
	}

	mapping := &Mapping{
		Kind:      kind,
		Dialect:   spec.labelDialect(located, len(header)),
		Strategy:  StrategyLabel,
		Width:     len(header),
		HeaderRow: true,
		Index:     located,
		Headers:   headers,
	}
	mapping.numeric = numericColumns(spec, located)

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":    kind,
		"dialect": mapping.Dialect,
		"exact":   exact,
		"fuzzy":   fuzzy,
	}).Debug("header resolved by label")
	return mapping, nil
}

// recognized decides whether a header row was actually found. A single
// substring hit is treated as noise from a data row.
func recognized(exact, fuzzy int) bool {
	return exact > 0 || fuzzy > 1
}

func (m *Mapper) positional(spec *KindSpec, sample [][]string) *Mapping {
	l := spec.positionalLayout(sample)
	index := make(map[Field]int, len(l.Positions))
	for f, i := range l.Positions {
		index[f] = i
	}
	mapping := &Mapping{
		Kind:     spec.Kind,
		Dialect:  l.Dialect,
		Strategy: StrategyPositional,
		Width:    l.Width,
		Index:    index,
		Headers:  map[Field]string{},
	}
	mapping.numeric = numericColumns(spec, index)
	mapping.HeaderRow = genericHeader(mapping, sample[0])
	return mapping
}

// genericHeader reports whether none of the numeric positions of row parse
// as numbers, which marks it as a header of unknown labels.
func genericHeader(m *Mapping, row []string) bool {
	seen := false
	for col := range m.numeric {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		seen = true
		if normalize.IsNumeric(row[col]) {
			return false
		}
	}
	return seen
}

func numericColumns(spec *KindSpec, index map[Field]int) map[int]bool {
	cols := map[int]bool{}
	for _, f := range spec.Fields {
		if !f.Numeric {
			continue
		}
		if col, ok := index[f.Name]; ok {
			cols[col] = true
		}
	}
	return cols
}

type candidate struct {
	col      int
	field    int
	labelLen int
}

// matchLabels assigns header columns to fields. Exact matches are taken
// column by column first; the remaining columns and fields are then paired
// by substring containment, longest label first.
func matchLabels(spec *KindSpec, header []string) (map[Field]int, map[Field]string, int, int) {
	located := map[Field]int{}
	headers := map[Field]string{}
	colTaken := make([]bool, len(header))
	fieldTaken := make([]bool, len(spec.Fields))

	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = normalizeLabel(h)
	}

	assign := func(col, field int) {
		colTaken[col] = true
		fieldTaken[field] = true
		located[spec.Fields[field].Name] = col
		headers[spec.Fields[field].Name] = strings.TrimSpace(header[col])
	}

	exact := 0
	for col, cell := range cells {
		if cell == "" {
			continue
		}
	fields:
		for fi, f := range spec.Fields {
			if fieldTaken[fi] {
				continue
			}
			for _, label := range f.Labels {
				if normalizeLabel(label) == cell {
					assign(col, fi)
					exact++
					break fields
				}
			}
		}
	}

	var candidates []candidate
	for col, cell := range cells {
		if colTaken[col] || !substringable(cell) {
			continue
		}
		for fi, f := range spec.Fields {
			if fieldTaken[fi] {
				continue
			}
			best := 0
			for _, label := range f.Labels {
				norm := normalizeLabel(label)
				if !substringable(norm) {
					continue
				}
				if strings.Contains(cell, norm) || strings.Contains(norm, cell) {
					best = max(best, utf8.RuneCountInString(norm))
				}
			}
			if best > 0 {
				candidates = append(candidates, candidate{col: col, field: fi, labelLen: best})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.labelLen != b.labelLen {
			return a.labelLen > b.labelLen
		}
		if a.col != b.col {
			return a.col < b.col
		}
		return a.field < b.field
	})

	fuzzy := 0
	for _, c := range candidates {
		if colTaken[c.col] || fieldTaken[c.field] {
			continue
		}
		assign(c.col, c.field)
		fuzzy++
	}

	return located, headers, exact, fuzzy
}

// substringable rejects fragments too short to mean anything on their own.
// Two Hangul syllables carry a word; two Latin letters do not.
func substringable(s string) bool {
	n := utf8.RuneCountInString(s)
	for _, r := range s {
		if r > unicode.MaxASCII {
			return n >= 2
		}
	}
	return n >= 3
}

var labelNoise = strings.NewReplacer(
	"_", "", "-", "", ".", "", "/", "", "(", "", ")", "", "[", "", "]", "", "#", "", ":", "", "*", "",
)

// normalizeLabel lowercases s and drops whitespace and punctuation so that
// "Part No." and "partno" compare equal.
func normalizeLabel(s string) string {
	s = labelNoise.Replace(strings.ToLower(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func (s *KindSpec) missing(located map[Field]int) []Field {
	var missing []Field
	for _, group := range s.Required {
		found := false
		for _, f := range group {
			if _, ok := located[f]; ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, group[0])
		}
	}
	return missing
}

func (s *KindSpec) requiredFirsts() []Field {
	return s.missing(nil)
}
