package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/repositories"
)

// ReviewRepository implements repositories.ReviewRepository
type ReviewRepository struct {
	db *sql.DB
}

// NewReviewRepository creates a new SQL review repository
func NewReviewRepository(db *sql.DB) repositories.ReviewRepository {
	return &ReviewRepository{db: db}
}

// List returns reviews matching the filter with their customer and item
func (r *ReviewRepository) List(ctx context.Context, filter *repositories.ReviewFilter) ([]*entities.Review, error) {
	var conditions []string
	var args []any
	if filter != nil {
		if filter.CustomerID != 0 {
			args = append(args, filter.CustomerID)
			conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
		}
		if filter.ItemID != 0 {
			args = append(args, filter.ItemID)
			conditions = append(conditions, fmt.Sprintf("item_id = $%d", len(args)))
		}
	}

	query := `SELECT ` + reviewColumns + ` FROM reviews`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	reviews, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attach(ctx, reviews); err != nil {
		return nil, err
	}

	return reviews, nil
}

func (r *ReviewRepository) query(ctx context.Context, query string, args ...any) ([]*entities.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	return scanReviews(rows)
}

// attach loads the customer and item of every review.
func (r *ReviewRepository) attach(ctx context.Context, reviews []*entities.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	customerIDs := make([]int64, len(reviews))
	itemIDs := make([]int64, len(reviews))
	for i, rv := range reviews {
		customerIDs[i] = rv.CustomerID
		itemIDs[i] = rv.ItemID
	}

	customers, err := customersByID(ctx, r.db, customerIDs)
	if err != nil {
		return err
	}
	items, err := itemsByID(ctx, r.db, itemIDs)
	if err != nil {
		return err
	}

	for _, rv := range reviews {
		rv.Customer = customers[rv.CustomerID]
		rv.Item = items[rv.ItemID]
	}
	return nil
}

// Get returns a review with its customer and item
func (r *ReviewRepository) Get(ctx context.Context, id int64) (*entities.Review, error) {
	rv := &entities.Review{}
	err := r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id).
		Scan(&rv.ID, &rv.Comment, &rv.CustomerID, &rv.ItemID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review %d: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	if err := r.attach(ctx, []*entities.Review{rv}); err != nil {
		return nil, err
	}

	return rv, nil
}

// Create inserts a review
func (r *ReviewRepository) Create(ctx context.Context, review *entities.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("invalid review: %w", err)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO reviews (comment, customer_id, item_id) VALUES ($1, $2, $3) RETURNING id`,
		review.Comment, review.CustomerID, review.ItemID,
	).Scan(&review.ID)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}

	return nil
}

// Delete removes a review
func (r *ReviewRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("review %d: %w", id, repositories.ErrNotFound)
	}

	return nil
}
