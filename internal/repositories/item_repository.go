package repositories

import (
	"context"

	"github.com/asakaida/reviewlab/internal/entities"
)

// ItemRepository defines the interface for item data access
type ItemRepository interface {
	// List returns all items ordered by ID, each with its reviews
	List(ctx context.Context) ([]*entities.Item, error)

	// Get returns an item with its reviews, or ErrNotFound
	Get(ctx context.Context, id int64) (*entities.Item, error)

	// Create inserts an item and sets its ID
	Create(ctx context.Context, item *entities.Item) error

	// Delete removes an item and its reviews in a single transaction
	Delete(ctx context.Context, id int64) error
}
