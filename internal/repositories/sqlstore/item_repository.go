package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/repositories"
)

// ItemRepository implements repositories.ItemRepository
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new SQL item repository
func NewItemRepository(db *sql.DB) repositories.ItemRepository {
	return &ItemRepository{db: db}
}

func scanItems(rows *sql.Rows) ([]*entities.Item, error) {
	var items []*entities.Item
	for rows.Next() {
		i := &entities.Item{}
		if err := rows.Scan(&i.ID, &i.Name, &i.Price); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// List returns all items with their reviews
func (r *ItemRepository) List(ctx context.Context) ([]*entities.Item, error) {
	items, err := r.listItems(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	reviews, err := reviewsBy(ctx, r.db, "item_id", ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Reviews = reviews[item.ID]
	}

	return items, nil
}

func (r *ItemRepository) listItems(ctx context.Context) ([]*entities.Item, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// Get returns an item with its reviews
func (r *ItemRepository) Get(ctx context.Context, id int64) (*entities.Item, error) {
	item := &entities.Item{}
	err := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id).
		Scan(&item.ID, &item.Name, &item.Price)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	reviews, err := reviewsBy(ctx, r.db, "item_id", []int64{id})
	if err != nil {
		return nil, err
	}
	item.Reviews = reviews[id]

	return item, nil
}

// Create inserts an item
func (r *ItemRepository) Create(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO items (name, price) VALUES ($1, $2) RETURNING id`,
		item.Name, item.Price,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// Delete removes an item and its reviews
func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE item_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete item reviews: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
