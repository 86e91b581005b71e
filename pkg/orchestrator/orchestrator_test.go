package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/remote"
	"github.com/Ramsey-B/fern/pkg/retry"
	"github.com/Ramsey-B/fern/pkg/writer"
)

var errUnavailable = &remote.StatusError{StatusCode: http.StatusServiceUnavailable}

// fakeRemote is an in-memory remote store with switchable failures.
type fakeRemote struct {
	mu         sync.Mutex
	tables     map[models.Kind][]models.Record
	ops        []string
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
	f.ops = append(f.ops, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.tables[kind] = nil
	return nil
}

func (f *fakeRemote) InsertBatch(_ context.Context, kind models.Kind, records []models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "insert")
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

type recordingPublisher struct {
	events []*events.SyncEvent
}

func (p *recordingPublisher) Publish(_ context.Context, evt *events.SyncEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func testConfig() writer.Config {
	policy := retry.DefaultPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	cfg := writer.DefaultConfig()
	cfg.BatchDelay = 0
	cfg.Policy = policy
	return cfg
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestOrchestrator(store remote.Store, opts ...Option) (*Orchestrator, *cache.Memory) {
	snapshots := cache.NewMemory()
	return New(testLogger(), snapshots, store, testConfig(), opts...), snapshots
}

func revenueSet(n int) models.RecordSet {
	set := models.NewRecordSet(models.KindRevenue)
	for i := range n {
		set.Records = append(set.Records, models.RevenueLine{
			ID: uuid.New(), RowNo: i + 2, Year: 2024, Month: "03월", Customer: "Acme", Amount: float64(100 * (i + 1)),
		})
	}
	return set
}

func TestSaveAll_CacheRetainedWhenRemoteFails(t *testing.T) {
	store := newFakeRemote()
	store.insertFail = func([]models.Record) error { return errUnavailable }
	publisher := &recordingPublisher{}
	o, snapshots := newTestOrchestrator(store, WithPublisher(publisher))
	ctx := context.Background()
	set := revenueSet(3)

	result, err := o.SaveAll(ctx, set)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, MessageSyncFailed, result.Message)
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(syncErr.ToHTTPError()))

	cached, ok, err := snapshots.Read(ctx, models.KindRevenue)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, set, cached)

	// the remote is now unreachable for reads too
	store.readErr = errUnavailable
	read, err := o.ReadAll(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, read.Source)
	assert.NotEmpty(t, read.Warning)
	assert.Equal(t, set, read.Set)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.SyncFailed, publisher.events[0].Type)
}

func TestReadAll_ServesCacheUntilFullReplace(t *testing.T) {
	tests := []struct {
		name        string
		breakRemote func(store *fakeRemote, set models.RecordSet)
	}{
		{
			name: "inserts unavailable",
			breakRemote: func(store *fakeRemote, _ models.RecordSet) {
				store.insertFail = func([]models.Record) error { return errUnavailable }
			},
		},
		{
			name: "delete rejected",
			breakRemote: func(store *fakeRemote, _ models.RecordSet) {
				store.deleteErr = &remote.StatusError{StatusCode: http.StatusForbidden}
			},
		},
		{
			name: "one record rejected",
			breakRemote: func(store *fakeRemote, set models.RecordSet) {
				bad := set.Records[1].RecordID()
				store.insertFail = func(records []models.Record) error {
					for _, r := range records {
						if r.RecordID() == bad {
							return errUnavailable
						}
					}
					return nil
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeRemote()
			store.tables[models.KindRevenue] = revenueSet(7).Records
			o, snapshots := newTestOrchestrator(store)
			ctx := context.Background()
			set := revenueSet(3)

			tt.breakRemote(store, set)
			result, _ := o.SaveAll(ctx, set)
			assert.NotEqual(t, StatusOK, result.Status)

			pending, err := snapshots.Pending(ctx, models.KindRevenue)
			require.NoError(t, err)
			assert.True(t, pending)

			// the remote answers reads again with whatever the failed save left
			store.insertFail = nil
			store.deleteErr = nil

			read, err := o.ReadAll(ctx, models.KindRevenue)
			require.NoError(t, err)
			assert.Equal(t, SourceCache, read.Source)
			assert.Equal(t, MessageSyncPending, read.Warning)
			assert.Equal(t, set.Records, read.Set.Records)

			cached, _, err := snapshots.Read(ctx, models.KindRevenue)
			require.NoError(t, err)
			assert.Equal(t, 3, cached.Len())

			result, err = o.SaveAll(ctx, set)
			require.NoError(t, err)
			assert.Equal(t, StatusOK, result.Status)

			read, err = o.ReadAll(ctx, models.KindRevenue)
			require.NoError(t, err)
			assert.Equal(t, SourceRemote, read.Source)
			assert.Empty(t, read.Warning)
			assert.Equal(t, set.Records, read.Set.Records)
		})
	}
}

func TestReadAll_PendingSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	store := newFakeRemote()
	store.insertFail = func([]models.Record) error { return errUnavailable }

	snapshots, err := cache.NewSQLite(ctx, path, testLogger())
	require.NoError(t, err)
	set := revenueSet(3)
	_, err = New(testLogger(), snapshots, store, testConfig()).SaveAll(ctx, set)
	require.True(t, IsSyncError(err))
	require.NoError(t, snapshots.Close())

	store.insertFail = nil
	reopened, err := cache.NewSQLite(ctx, path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	read, err := New(testLogger(), reopened, store, testConfig()).ReadAll(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, read.Source)
	assert.Equal(t, set.Records, read.Set.Records)
}

func TestSaveAll_DeleteFailureIsPermanent(t *testing.T) {
	store := newFakeRemote()
	store.deleteErr = &remote.StatusError{StatusCode: http.StatusForbidden}
	o, snapshots := newTestOrchestrator(store)

	_, err := o.SaveAll(context.Background(), revenueSet(2))

	assert.True(t, IsSyncError(err))
	assert.Equal(t, []string{"delete"}, store.ops)
	_, ok, _ := snapshots.Read(context.Background(), models.KindRevenue)
	assert.True(t, ok)
}

func TestSaveAll_TwiceLeavesOneCopy(t *testing.T) {
	store := newFakeRemote()
	o, _ := newTestOrchestrator(store)
	ctx := context.Background()
	set := revenueSet(4)

	for range 2 {
		result, err := o.SaveAll(ctx, set)
		require.NoError(t, err)
		assert.Equal(t, StatusOK, result.Status)
	}

	assert.Equal(t, set.Records, store.tables[models.KindRevenue])
	assert.Equal(t, []string{"delete", "insert", "delete", "insert"}, store.ops)
}

func TestSaveAll_Partial(t *testing.T) {
	set := revenueSet(3)
	bad := set.Records[2].RecordID()
	store := newFakeRemote()
	store.insertFail = func(records []models.Record) error {
		for _, r := range records {
			if r.RecordID() == bad {
				return errUnavailable
			}
		}
		return nil
	}
	publisher := &recordingPublisher{}
	o, _ := newTestOrchestrator(store, WithPublisher(publisher))

	result, err := o.SaveAll(context.Background(), set)

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, "partial failure — 1 records skipped", result.Message)
	require.NotNil(t, result.Report)
	assert.Equal(t, 2, result.Report.Written)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.SyncPartial, publisher.events[0].Type)
	assert.Equal(t, 1, publisher.events[0].Failed)
}

func TestSaveAll_NotConfigured(t *testing.T) {
	o, _ := newTestOrchestrator(nil)
	ctx := context.Background()
	set := revenueSet(2)

	result, err := o.SaveAll(ctx, set)
	require.NoError(t, err)
	assert.Equal(t, StatusNotConfigured, result.Status)
	assert.False(t, o.Configured())

	read, err := o.ReadAll(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, read.Source)
	assert.True(t, read.Cached)
	assert.Empty(t, read.Warning)
	assert.Equal(t, set, read.Set)
}

func TestSaveAll_RejectsMixedSet(t *testing.T) {
	o, _ := newTestOrchestrator(newFakeRemote())
	set := revenueSet(1)
	set.Kind = models.KindQuote

	_, err := o.SaveAll(context.Background(), set)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestReadAll_RefreshesCache(t *testing.T) {
	store := newFakeRemote()
	remoteSet := revenueSet(2)
	store.tables[models.KindRevenue] = remoteSet.Records
	o, snapshots := newTestOrchestrator(store)
	ctx := context.Background()
	require.NoError(t, snapshots.Write(ctx, revenueSet(5)))

	read, err := o.ReadAll(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, read.Source)
	assert.Equal(t, remoteSet.Records, read.Set.Records)

	cached, _, err := snapshots.Read(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, remoteSet.Records, cached.Records)
}

func TestReadAll_EmptyWhenNothingCached(t *testing.T) {
	store := newFakeRemote()
	store.readErr = errors.New("dial tcp: connection refused")
	o, _ := newTestOrchestrator(store)

	read, err := o.ReadAll(context.Background(), models.KindInventory)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, read.Source)
	assert.False(t, read.Cached)
	assert.Zero(t, read.Set.Len())

	_, err = o.ReadAll(context.Background(), models.Kind("ledger"))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestQuotes_RoundTrip(t *testing.T) {
	store := newFakeRemote()
	o, snapshots := newTestOrchestrator(store)
	ctx := context.Background()

	quote := models.QuoteRequestLine{ItemName: "bracket", Quantity: 10, Status: "requested"}
	result, err := o.AddQuote(ctx, quote)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)

	cached, _, err := snapshots.Read(ctx, models.KindQuote)
	require.NoError(t, err)
	require.Equal(t, 1, cached.Len())
	added := cached.Records[0].(models.QuoteRequestLine)
	assert.NotEqual(t, uuid.Nil, added.ID)
	assert.Equal(t, 1, added.RowNo)
	assert.Equal(t, cached.Records, store.tables[models.KindQuote])

	added.Status = "quoted"
	added.RowNo = 0
	_, err = o.UpdateQuote(ctx, added)
	require.NoError(t, err)
	cached, _, _ = snapshots.Read(ctx, models.KindQuote)
	assert.Equal(t, "quoted", cached.Records[0].(models.QuoteRequestLine).Status)
	assert.Equal(t, 1, cached.Records[0].(models.QuoteRequestLine).RowNo)

	_, err = o.DeleteQuote(ctx, added.ID)
	require.NoError(t, err)
	cached, _, _ = snapshots.Read(ctx, models.KindQuote)
	assert.Zero(t, cached.Len())
	assert.Empty(t, store.tables[models.KindQuote])

	_, err = o.DeleteQuote(ctx, added.ID)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestQuotes_UpdateMissingRemotelyDropsCachedEntry(t *testing.T) {
	store := newFakeRemote()
	o, snapshots := newTestOrchestrator(store)
	ctx := context.Background()

	kept := models.QuoteRequestLine{ID: uuid.New(), RowNo: 1, ItemName: "bolt", Quantity: 5, Status: "requested"}
	stale := models.QuoteRequestLine{ID: uuid.New(), RowNo: 2, ItemName: "bracket", Quantity: 10, Status: "requested"}
	require.NoError(t, snapshots.Write(ctx, models.RecordSet{Kind: models.KindQuote, Records: []models.Record{kept, stale}}))
	store.tables[models.KindQuote] = []models.Record{kept}

	stale.Status = "quoted"
	_, err := o.UpdateQuote(ctx, stale)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	cached, _, err := snapshots.Read(ctx, models.KindQuote)
	require.NoError(t, err)
	assert.Equal(t, []models.Record{kept}, cached.Records)

	pending, err := snapshots.Pending(ctx, models.KindQuote)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestQuotes_RemoteFailureMarksPending(t *testing.T) {
	store := newFakeRemote()
	store.insertFail = func([]models.Record) error { return errUnavailable }
	o, snapshots := newTestOrchestrator(store)
	ctx := context.Background()

	_, err := o.AddQuote(ctx, models.QuoteRequestLine{ItemName: "bracket", Quantity: 10, Status: "requested"})
	require.True(t, IsSyncError(err))

	pending, err := snapshots.Pending(ctx, models.KindQuote)
	require.NoError(t, err)
	assert.True(t, pending)

	store.insertFail = nil
	read, err := o.ReadAll(ctx, models.KindQuote)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, read.Source)
	require.Equal(t, 1, read.Set.Len())
	assert.Equal(t, "bracket", read.Set.Records[0].(models.QuoteRequestLine).ItemName)
}

func TestQuotes_NotConfigured(t *testing.T) {
	o, _ := newTestOrchestrator(nil)
	ctx := context.Background()

	result, err := o.AddQuote(ctx, models.QuoteRequestLine{ItemName: "bolt", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusNotConfigured, result.Status)

	_, err = o.UpdateQuote(ctx, models.QuoteRequestLine{ID: uuid.New(), ItemName: "nut"})
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

type fakeLocker struct {
	held map[string]bool
}

type fakeLock struct {
	locker *fakeLocker
	key    string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (Lock, error) {
	if l.held[key] {
		return nil, redis.ErrLockNotAcquired
	}
	l.held[key] = true
	return fakeLock{locker: l, key: key}, nil
}

func (l fakeLock) Release(context.Context) error {
	delete(l.locker.held, l.key)
	return nil
}

func TestSaveAll_Lock(t *testing.T) {
	locker := &fakeLocker{held: map[string]bool{}}
	o, _ := newTestOrchestrator(newFakeRemote(), WithLocker(locker, time.Minute))
	ctx := context.Background()

	_, err := o.SaveAll(ctx, revenueSet(1))
	require.NoError(t, err)
	assert.Empty(t, locker.held, "lock released after save")

	locker.held["save:revenue"] = true
	_, err = o.SaveAll(ctx, revenueSet(1))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}
