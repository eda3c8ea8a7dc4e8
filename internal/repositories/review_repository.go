package repositories

import (
	"context"

	"github.com/asakaida/reviewlab/internal/entities"
)

// ReviewFilter defines filter criteria for listing reviews
type ReviewFilter struct {
	CustomerID int64 // Filter by customer (optional, 0 = any)
	ItemID     int64 // Filter by item (optional, 0 = any)
}

// ReviewRepository defines the interface for review data access
type ReviewRepository interface {
	// List returns reviews matching the filter ordered by ID, each with its
	// customer and item
	List(ctx context.Context, filter *ReviewFilter) ([]*entities.Review, error)

	// Get returns a review with its customer and item, or ErrNotFound
	Get(ctx context.Context, id int64) (*entities.Review, error)

	// Create inserts a review and sets its ID
	Create(ctx context.Context, review *entities.Review) error

	// Delete removes a review
	Delete(ctx context.Context, id int64) error
}
