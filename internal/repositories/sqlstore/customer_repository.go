package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/repositories"
)

// CustomerRepository implements repositories.CustomerRepository
type CustomerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new SQL customer repository
func NewCustomerRepository(db *sql.DB) repositories.CustomerRepository {
	return &CustomerRepository{db: db}
}

func scanCustomers(rows *sql.Rows) ([]*entities.Customer, error) {
	var customers []*entities.Customer
	for rows.Next() {
		c := &entities.Customer{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customers: %w", err)
	}
	return customers, nil
}

// List returns all customers with their reviews
func (r *CustomerRepository) List(ctx context.Context) ([]*entities.Customer, error) {
	customers, err := r.listCustomers(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(customers))
	for i, c := range customers {
		ids[i] = c.ID
	}
	reviews, err := reviewsBy(ctx, r.db, "customer_id", ids)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		c.Reviews = reviews[c.ID]
	}

	return customers, nil
}

func (r *CustomerRepository) listCustomers(ctx context.Context) ([]*entities.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// Get returns a customer with its reviews
func (r *CustomerRepository) Get(ctx context.Context, id int64) (*entities.Customer, error) {
	c := &entities.Customer{}
	err := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	reviews, err := reviewsBy(ctx, r.db, "customer_id", []int64{id})
	if err != nil {
		return nil, err
	}
	c.Reviews = reviews[id]

	return c, nil
}

// Create inserts a customer
func (r *CustomerRepository) Create(ctx context.Context, customer *entities.Customer) error {
	if err := customer.Validate(); err != nil {
		return fmt.Errorf("invalid customer: %w", err)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO customers (name, email) VALUES ($1, $2) RETURNING id`,
		customer.Name, customer.Email,
	).Scan(&customer.ID)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

// Delete removes a customer and its reviews
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE customer_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete customer reviews: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Items returns the items the customer reviewed, one per review
func (r *CustomerRepository) Items(ctx context.Context, id int64) ([]*entities.Item, error) {
	found, err := exists(ctx, r.db, "customers", id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}

	items, err := r.reviewedItems(ctx, id)
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

func (r *CustomerRepository) reviewedItems(ctx context.Context, customerID int64) ([]*entities.Item, error) {
	query := `
		SELECT i.id, i.name, i.price
		FROM reviews r
		JOIN items i ON i.id = r.item_id
		WHERE r.customer_id = $1
		ORDER BY r.id
	`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}
