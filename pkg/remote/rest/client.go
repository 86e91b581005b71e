// Package rest is a remote store spoken to over a PostgREST style HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// DefaultPageSize is the page size used by ReadAll
	DefaultPageSize = 1000
)

// Config holds REST store configuration
type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	PageSize        int
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// DefaultConfig returns default REST store configuration
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		PageSize:        DefaultPageSize,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Store implements remote.Store and remote.QuoteStore against a PostgREST
// endpoint at BaseURL/rest/v1.
type Store struct {
	client *http.Client
	config Config
	logger ectologger.Logger
	now    func() time.Time
}

var (
	_ remote.Store      = (*Store)(nil)
	_ remote.QuoteStore = (*Store)(nil)
	_ remote.Pinger     = (*Store)(nil)
)

// NewStore creates a new REST store
func NewStore(cfg Config, logger ectologger.Logger) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Store{
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

type response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (s *Store) endpoint(table string, query url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", s.config.BaseURL, table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do executes a request and turns any non-2xx answer into a
// *remote.StatusError.
func (s *Store) do(ctx context.Context, method, target string, body any, headers map[string]string) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, remote.Permanent(fmt.Errorf("failed to encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, remote.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("apikey", s.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		req.Header.Set("traceparent", tp)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", method, req.URL.Path)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, remote.Permanent(fmt.Errorf("response body too large: %d bytes (max %d)", len(data), MaxResponseSize))
	}

	s.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)", method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &remote.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
			Delay:      remote.ParseRetryAfter(resp.Header.Get("Retry-After"), s.now()),
		}
	}
	return &response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// ReadAll pages through the table ordered by source row.
func (s *Store) ReadAll(ctx context.Context, kind models.Kind) (models.RecordSet, error) {
	ctx, span := tracing.StartSpan(ctx, "RestStore.ReadAll")
	defer span.End()

	set := models.NewRecordSet(kind)
	for offset := 0; ; offset += s.config.PageSize {
		query := url.Values{}
		query.Set("select", "*")
		query.Set("order", "row_no.asc")
		query.Set("limit", strconv.Itoa(s.config.PageSize))
		query.Set("offset", strconv.Itoa(offset))

		resp, err := s.do(ctx, http.MethodGet, s.endpoint(kind.Table(), query), nil, nil)
		if err != nil {
			return models.RecordSet{}, err
		}

		var raws []json.RawMessage
		if err := json.Unmarshal(resp.Body, &raws); err != nil {
			return models.RecordSet{}, remote.Permanent(fmt.Errorf("failed to decode %s page: %w", kind, err))
		}
		records, err := models.DecodeRecords(kind, raws)
		if err != nil {
			return models.RecordSet{}, remote.Permanent(err)
		}
		set.Records = append(set.Records, records...)

		if len(raws) < s.config.PageSize {
			return set, nil
		}
	}
}

// DeleteAll removes every row of the kind. PostgREST refuses an unfiltered
// delete, so the filter names an id no row can have.
func (s *Store) DeleteAll(ctx context.Context, kind models.Kind) error {
	ctx, span := tracing.StartSpan(ctx, "RestStore.DeleteAll")
	defer span.End()

	query := url.Values{}
	query.Set("id", "neq."+database.ImpossibleID)
	_, err := s.do(ctx, http.MethodDelete, s.endpoint(kind.Table(), query), nil, map[string]string{
		"Prefer": "return=minimal",
	})
	return err
}

func (s *Store) InsertBatch(ctx context.Context, kind models.Kind, records []models.Record) error {
	ctx, span := tracing.StartSpan(ctx, "RestStore.InsertBatch")
	defer span.End()

	if len(records) == 0 {
		return nil
	}
	_, err := s.do(ctx, http.MethodPost, s.endpoint(kind.Table(), nil), records, map[string]string{
		"Prefer": "return=minimal",
	})
	return err
}

func (s *Store) AddQuote(ctx context.Context, quote models.QuoteRequestLine) error {
	return s.InsertBatch(ctx, models.KindQuote, []models.Record{quote})
}

func (s *Store) UpdateQuote(ctx context.Context, quote models.QuoteRequestLine) error {
	ctx, span := tracing.StartSpan(ctx, "RestStore.UpdateQuote")
	defer span.End()

	query := url.Values{}
	query.Set("id", "eq."+quote.ID.String())
	resp, err := s.do(ctx, http.MethodPatch, s.endpoint(models.KindQuote.Table(), query), quote, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return err
	}
	return expectRows(resp.Body, quote.ID)
}

func (s *Store) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "RestStore.DeleteQuote")
	defer span.End()

	query := url.Values{}
	query.Set("id", "eq."+id.String())
	resp, err := s.do(ctx, http.MethodDelete, s.endpoint(models.KindQuote.Table(), query), nil, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return err
	}
	return expectRows(resp.Body, id)
}

// Ping issues the cheapest possible read.
func (s *Store) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")
	_, err := s.do(ctx, http.MethodGet, s.endpoint(models.KindQuote.Table(), query), nil, nil)
	return err
}

func expectRows(body []byte, id uuid.UUID) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return remote.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(rows) == 0 {
		return fmt.Errorf("quote %s: %w", id, remote.ErrNotFound)
	}
	return nil
}
