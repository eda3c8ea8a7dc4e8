package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerRepository_CreateAndGet(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	customer := &entities.Customer{Name: "Ada", Email: "a@x.com"}
	require.NoError(t, repo.Create(ctx, customer))
	assert.NotZero(t, customer.ID)

	got, err := repo.Get(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Empty(t, got.Reviews)
}

func TestCustomerRepository_CreateInvalid(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewCustomerRepository(db)

	err := repo.Create(context.Background(), &entities.Customer{Name: "Ada", Email: "nope"})
	assert.Error(t, err)
}

func TestCustomerRepository_GetWithReviews(t *testing.T) {
	db := SetupTestDB(t)
	f := seed(t, db)
	repo := NewCustomerRepository(db)

	got, err := repo.Get(context.Background(), f.ada.ID)
	require.NoError(t, err)
	require.Len(t, got.Reviews, 2)
	assert.Equal(t, "bright", got.Reviews[0].Comment)
	assert.Equal(t, "comfy", got.Reviews[1].Comment)
	assert.Equal(t, f.lamp.ID, got.Reviews[0].ItemID)
}

func TestCustomerRepository_GetNotFound(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewCustomerRepository(db)

	_, err := repo.Get(context.Background(), 42)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestCustomerRepository_List(t *testing.T) {
	db := SetupTestDB(t)
	f := seed(t, db)
	repo := NewCustomerRepository(db)

	customers, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, f.ada.ID, customers[0].ID)
	assert.Len(t, customers[0].Reviews, 2)
	assert.Len(t, customers[1].Reviews, 1)
}

func TestCustomerRepository_ListEmpty(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewCustomerRepository(db)

	customers, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, customers)
}

func TestCustomerRepository_DeleteCascades(t *testing.T) {
	db := SetupTestDB(t)
	f := seed(t, db)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, f.ada.ID))

	_, err := repo.Get(ctx, f.ada.ID)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))

	remaining, err := NewReviewRepository(db).List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, f.bob.ID, remaining[0].CustomerID)

	err = repo.Delete(ctx, f.ada.ID)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestCustomerRepository_Items(t *testing.T) {
	db := SetupTestDB(t)
	f := seed(t, db)
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	items, err := repo.Items(ctx, f.ada.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Lamp", items[0].Name)
	assert.Equal(t, "Chair", items[1].Name)
	// The lamp carries both its reviews, not only Ada's
	assert.Len(t, items[0].Reviews, 2)

	_, err = repo.Items(ctx, 999)
	assert.True(t, errors.Is(err, repositories.ErrNotFound))
}

func TestCustomerRepository_ItemsKeepsDuplicates(t *testing.T) {
	db := SetupTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	second := &entities.Review{Comment: "still bright", CustomerID: f.bob.ID, ItemID: f.lamp.ID}
	require.NoError(t, NewReviewRepository(db).Create(ctx, second))

	items, err := NewCustomerRepository(db).Items(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, items[0].ID, items[1].ID)
}

func TestCustomerRepository_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCustomerRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name, email FROM customers ORDER BY id").
		WillReturnError(errors.New("connection reset"))
	_, err = repo.List(ctx)
	assert.ErrorContains(t, err, "failed to list customers")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reviews WHERE customer_id").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM customers WHERE id").
		WithArgs(int64(7)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()
	err = repo.Delete(ctx, 7)
	assert.ErrorContains(t, err, "failed to delete customer")

	require.NoError(t, mock.ExpectationsWereMet())
}
