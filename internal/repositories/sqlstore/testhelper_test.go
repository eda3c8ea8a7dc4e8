package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/infrastructure/config"
	"github.com/asakaida/reviewlab/internal/infrastructure/database"
	"github.com/stretchr/testify/require"
)

// SetupTestDB opens a migrated in-memory SQLite database
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(), "failed to run migrations")
	return db.DB
}

// fixture holds the records created by seed
type fixture struct {
	ada, bob    *entities.Customer
	lamp, chair *entities.Item
	reviews     []*entities.Review
}

// seed creates two customers, two items and three reviews:
// ada -> lamp, ada -> chair, bob -> lamp
func seed(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	customers := NewCustomerRepository(db)
	items := NewItemRepository(db)
	reviews := NewReviewRepository(db)

	f := &fixture{
		ada:   &entities.Customer{Name: "Ada", Email: "ada@example.com"},
		bob:   &entities.Customer{Name: "Bob", Email: "bob@example.com"},
		lamp:  &entities.Item{Name: "Lamp", Price: 19.5},
		chair: &entities.Item{Name: "Chair", Price: 45},
	}
	require.NoError(t, customers.Create(ctx, f.ada))
	require.NoError(t, customers.Create(ctx, f.bob))
	require.NoError(t, items.Create(ctx, f.lamp))
	require.NoError(t, items.Create(ctx, f.chair))

	for _, rv := range []*entities.Review{
		{Comment: "bright", CustomerID: f.ada.ID, ItemID: f.lamp.ID},
		{Comment: "comfy", CustomerID: f.ada.ID, ItemID: f.chair.ID},
		{Comment: "too bright", CustomerID: f.bob.ID, ItemID: f.lamp.ID},
	} {
		require.NoError(t, reviews.Create(ctx, rv))
		f.reviews = append(f.reviews, rv)
	}

	return f
}
