package records_test

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/records"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/remote"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		t.Skip("DB_HOST not set")
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "fern"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	return database.NewDatabaseInstance(db, getTestLogger())
}

func revenue(customer string, row int, amount float64) models.RevenueLine {
	return models.RevenueLine{
		ID:       uuid.New(),
		RowNo:    row,
		Year:     2024,
		Month:    "01월",
		Customer: customer,
		Amount:   amount,
	}
}

func TestIntegrationRepository_FullReplace(t *testing.T) {
	repo := records.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()

	set := []models.Record{revenue("Acme", 2, 100), revenue("Globex", 3, 250.5)}

	for range 2 {
		require.NoError(t, repo.DeleteAll(ctx, models.KindRevenue))
		require.NoError(t, repo.InsertBatch(ctx, models.KindRevenue, set))
	}

	got, err := repo.ReadAll(ctx, models.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, set, got.Records)
}

func TestIntegrationRepository_SupplierSales(t *testing.T) {
	repo := records.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()

	profile := models.SupplierProfile{ID: uuid.New(), RowNo: 2, CompanyName: "Initech"}
	profile.Sales.Data = []models.YearAmount{{Year: 2023, Amount: 1200}, {Year: 2024, Amount: 1500}}

	require.NoError(t, repo.DeleteAll(ctx, models.KindSupplier))
	require.NoError(t, repo.InsertBatch(ctx, models.KindSupplier, []models.Record{profile}))

	got, err := repo.ReadAll(ctx, models.KindSupplier)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, 2700.0, got.Records[0].(models.SupplierProfile).TotalSales())
}

func TestIntegrationRepository_Quotes(t *testing.T) {
	repo := records.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()

	require.NoError(t, repo.DeleteAll(ctx, models.KindQuote))

	quote := models.QuoteRequestLine{ID: uuid.New(), RowNo: 1, ItemName: "bracket", Quantity: 10, Status: "requested"}
	require.NoError(t, repo.AddQuote(ctx, quote))

	quote.Status = "quoted"
	require.NoError(t, repo.UpdateQuote(ctx, quote))

	got, err := repo.ReadAll(ctx, models.KindQuote)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "quoted", got.Records[0].(models.QuoteRequestLine).Status)

	require.NoError(t, repo.DeleteQuote(ctx, quote.ID))
	assert.ErrorIs(t, repo.DeleteQuote(ctx, quote.ID), remote.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateQuote(ctx, quote), remote.ErrNotFound)
}

func TestIntegrationRepository_RejectsMixedKinds(t *testing.T) {
	repo := records.NewRepository(getTestDB(t), getTestLogger())

	err := repo.InsertBatch(context.Background(), models.KindQuote, []models.Record{revenue("Acme", 2, 1)})
	require.Error(t, err)
	assert.False(t, remote.IsTransient(err))
}
