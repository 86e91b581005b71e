package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/archive"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/orchestrator"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/tokenizer"
	"github.com/Ramsey-B/fern/pkg/writer"
)

const revenueCSV = "순번,매출기간,거래처,모델,수량,매출금액\n1,2024-01,Acme,X1,10,1000\n2,2024-02,Beta,X2,1,250\n"

var errUnavailable = &remote.StatusError{StatusCode: http.StatusServiceUnavailable}

type fakeRemote struct {
	mu         sync.Mutex
	tables     map[models.Kind][]models.Record
	readErr    error
	deleteErr  error
	insertFail func(records []models.Record) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{tables: map[models.Kind][]models.Record{}}
}

func (f *fakeRemote) ReadAll(_ context.Context, kind models.Kind) (models.RecordSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return models.RecordSet{}, f.readErr
	}
	return models.RecordSet{Kind: kind, Records: append([]models.Record{}, f.tables[kind]...)}, nil
}

func (f *fakeRemote) DeleteAll(_ context.Context, kind models.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.tables[kind] = nil
	return nil
}

func (f *fakeRemote) InsertBatch(_ context.Context, kind models.Kind, records []models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertFail != nil {
		if err := f.insertFail(records); err != nil {
			return err
		}
	}
	f.tables[kind] = append(f.tables[kind], records...)
	return nil
}

func (f *fakeRemote) AddQuote(ctx context.Context, quote models.QuoteRequestLine) error {
	return f.InsertBatch(ctx, models.KindQuote, []models.Record{quote})
}

func (f *fakeRemote) UpdateQuote(_ context.Context, quote models.QuoteRequestLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.tables[models.KindQuote] {
		if r.RecordID() == quote.ID {
			f.tables[models.KindQuote][i] = quote
			return nil
		}
	}
	return remote.ErrNotFound
}

func (f *fakeRemote) DeleteQuote(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	quotes := f.tables[models.KindQuote]
	for i, r := range quotes {
		if r.RecordID() == id {
			f.tables[models.KindQuote] = append(quotes[:i], quotes[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

type testServer struct {
	echo    *echo.Echo
	archive *archive.Memory
}

// newTestServer wires the handlers the way main does. A nil store runs
// without a remote.
func newTestServer(t *testing.T, store *fakeRemote) *testServer {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	policy := retry.DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	cfg := writer.DefaultConfig()
	cfg.BatchDelay = 0
	cfg.Policy = policy

	var orch *orchestrator.Orchestrator
	if store == nil {
		orch = orchestrator.New(logger, cache.NewMemory(), nil, cfg)
	} else {
		orch = orchestrator.New(logger, cache.NewMemory(), store, cfg)
	}

	arc := archive.NewMemory()
	pipeline := ingest.NewPipeline(logger, tokenizer.New(logger), schema.NewMapper(logger))

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	api := e.Group("/api/v1")
	NewRecordsHandler(logger, pipeline, orch, arc).RegisterRoutes(api)
	NewQuotesHandler(orch).RegisterRoutes(api)

	return &testServer{echo: e, archive: arc}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func jsonRequest(method, target string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestImport(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantSave   string
	}{
		{name: "ingest only", target: "/api/v1/records/revenue/import?filename=sales.csv", body: revenueCSV, wantStatus: http.StatusOK},
		{name: "ingest and save", target: "/api/v1/records/sales/import?save=true", body: revenueCSV, wantStatus: http.StatusOK, wantSave: "not_configured"},
		{name: "unknown kind", target: "/api/v1/records/invoice/import", body: revenueCSV, wantStatus: http.StatusBadRequest},
		{name: "bad year", target: "/api/v1/records/revenue/import?year=soon", body: revenueCSV, wantStatus: http.StatusBadRequest},
		{name: "empty body", target: "/api/v1/records/revenue/import", body: "", wantStatus: http.StatusBadRequest},
		{name: "no recognizable schema", target: "/api/v1/records/revenue/import", body: "거래처,모델,수량,비고,x,y\nAcme,X1,1,-,-,-\n", wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, "text/csv")

			status, body := srv.do(t, req)
			require.Equal(t, tt.wantStatus, status, body)
			if status != http.StatusOK {
				assert.NotEmpty(t, body["message"])
				return
			}

			summary := body["summary"].(map[string]any)
			assert.Equal(t, float64(2), summary["records"])
			assert.Equal(t, "revenue", summary["kind"])

			key := body["archive"].(map[string]any)["key"].(string)
			data, ok := srv.archive.Get(key)
			require.True(t, ok)
			assert.Equal(t, revenueCSV, string(data))

			if tt.wantSave != "" {
				assert.Equal(t, tt.wantSave, body["save"].(map[string]any)["status"])
			} else {
				assert.Nil(t, body["save"])
			}
		})
	}
}

func TestImport_Multipart(t *testing.T) {
	srv := newTestServer(t, newFakeRemote())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "2024 매출.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte(revenueCSV))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/revenue/import?save=true", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())

	status, body := srv.do(t, req)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "ok", body["save"].(map[string]any)["status"])
	assert.Contains(t, body["archive"].(map[string]any)["key"], "-2024 매출.csv")

	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/records/revenue", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "remote", body["source"])
	assert.Len(t, body["records"], 2)
}

func TestSaveAll_Partial(t *testing.T) {
	store := newFakeRemote()
	store.insertFail = func(records []models.Record) error {
		if len(records) > 1 || records[0].(models.InventoryLine).Name == "broken" {
			return errUnavailable
		}
		return nil
	}
	srv := newTestServer(t, store)

	status, body := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/records/inventory", []map[string]any{
		{"code": "B-1", "name": "bolt", "quantity": 10},
		{"code": "B-2", "name": "broken", "quantity": 1},
	}))

	require.Equal(t, http.StatusMultiStatus, status, body)
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, "partial failure — 1 records skipped", body["message"])
	assert.Len(t, store.tables[models.KindInventory], 1)
}

func TestSaveAll_RemoteFailureKeepsLocalCopy(t *testing.T) {
	store := newFakeRemote()
	store.deleteErr = remote.Permanent(errors.New("permission denied"))
	srv := newTestServer(t, store)

	status, body := srv.do(t, jsonRequest(http.MethodPut, "/api/v1/records/supplier", []map[string]any{
		{"company_name": "Initech", "sales": []map[string]any{{"year": 2024, "amount": 1500}}},
	}))
	require.Equal(t, http.StatusBadGateway, status, body)
	assert.Equal(t, "cloud sync failed, local copy retained", body["message"])
	assert.Equal(t, "failed", body["meta"].(map[string]any)["status"])

	// the remote still answers reads, but the local copy is newer
	status, body = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/records/supplier", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, "cloud sync pending, showing local copy", body["warning"])

	records := body["records"].([]any)
	require.Len(t, records, 1)
	supplier := records[0].(map[string]any)
	assert.Equal(t, "Initech", supplier["company_name"])
	assert.NotEqual(t, uuid.Nil.String(), supplier["id"])
}

func TestSaveAll_BadBody(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/records/quote", strings.NewReader(`{"not":"an array"}`))
	status, _ := srv.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestReadAll_EmptyKind(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/records/purchase", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, []any{}, body["records"])
}

func TestQuotes(t *testing.T) {
	store := newFakeRemote()
	srv := newTestServer(t, store)

	status, body := srv.do(t, jsonRequest(http.MethodPost, "/api/v1/quotes", map[string]any{
		"customer": "Acme", "item_name": "bracket", "quantity": 3, "unit_price": 1.1,
	}))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "ok", body["status"])
	quote := body["quote"].(map[string]any)
	assert.Equal(t, "requested", quote["status"])
	assert.Equal(t, 3.3, quote["amount"])
	id := quote["id"].(string)

	status, body = srv.do(t, jsonRequest(http.MethodPut, "/api/v1/quotes/"+id, map[string]any{
		"item_name": "bracket", "quantity": 5, "status": "quoted",
	}))
	require.Equal(t, http.StatusOK, status, body)
	updated := store.tables[models.KindQuote][0].(models.QuoteRequestLine)
	assert.Equal(t, "quoted", updated.Status)
	assert.Equal(t, 1, updated.RowNo)

	status, _ = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/quotes/"+id, nil))
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, store.tables[models.KindQuote])

	status, _ = srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/quotes/"+id, nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestQuotes_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "no item", req: jsonRequest(http.MethodPost, "/api/v1/quotes", map[string]any{"quantity": 1})},
		{name: "negative quantity", req: jsonRequest(http.MethodPost, "/api/v1/quotes", map[string]any{"item_name": "x", "quantity": -1})},
		{name: "bad id", req: jsonRequest(http.MethodPut, "/api/v1/quotes/nope", map[string]any{"item_name": "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := srv.do(t, tt.req)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	status, _ := srv.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/quotes/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, status)
}
