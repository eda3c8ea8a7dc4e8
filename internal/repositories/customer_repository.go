package repositories

import (
	"context"
	"errors"

	"github.com/asakaida/reviewlab/internal/entities"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	// List returns all customers ordered by ID, each with its reviews
	List(ctx context.Context) ([]*entities.Customer, error)

	// Get returns a customer with its reviews, or ErrNotFound
	Get(ctx context.Context, id int64) (*entities.Customer, error)

	// Create inserts a customer and sets its ID
	Create(ctx context.Context, customer *entities.Customer) error

	// Delete removes a customer and its reviews in a single transaction
	Delete(ctx context.Context, id int64) error

	// Items returns the items reached through the customer's reviews, in
	// review order. An item reviewed twice appears twice.
	Items(ctx context.Context, id int64) ([]*entities.Item, error)
}
