// Package sqlstore implements the repositories on database/sql. Queries use
// $n placeholders and INSERT ... RETURNING, which both PostgreSQL (lib/pq)
// and SQLite (modernc.org/sqlite) accept.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/asakaida/reviewlab/internal/entities"
)

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	customerColumns = "id, name, email"
	itemColumns     = "id, name, price"
	reviewColumns   = "id, comment, customer_id, item_id"
)

// inClause returns "$start, $start+1, ..." and the matching args for ids.
func inClause(ids []int64, start int) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(placeholders, ", "), args
}

// uniqueIDs returns ids without duplicates, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func scanReviews(rows *sql.Rows) ([]*entities.Review, error) {
	var reviews []*entities.Review
	for rows.Next() {
		r := &entities.Review{}
		if err := rows.Scan(&r.ID, &r.Comment, &r.CustomerID, &r.ItemID); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}

// maxBatch caps the ids bound into one IN clause, well under the
// SQLite (32766) and PostgreSQL (65535) parameter limits.
const maxBatch = 500

// batches splits ids into consecutive runs of at most size.
func batches(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// reviewsBy loads the reviews whose column (customer_id or item_id) is in
// ids, grouped by that column and ordered by review ID.
func reviewsBy(ctx context.Context, q querier, column string, ids []int64) (map[int64][]*entities.Review, error) {
	grouped := make(map[int64][]*entities.Review, len(ids))
	for _, batch := range batches(uniqueIDs(ids), maxBatch) {
		reviews, err := reviewBatch(ctx, q, column, batch)
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			key := r.CustomerID
			if column == "item_id" {
				key = r.ItemID
			}
			grouped[key] = append(grouped[key], r)
		}
	}
	return grouped, nil
}

func reviewBatch(ctx context.Context, q querier, column string, ids []int64) ([]*entities.Review, error) {
	in, args := inClause(ids, 1)
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE %s IN (%s) ORDER BY id`, reviewColumns, column, in)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	defer rows.Close()

	return scanReviews(rows)
}

// customersByID loads customers (without their reviews) keyed by ID.
func customersByID(ctx context.Context, q querier, ids []int64) (map[int64]*entities.Customer, error) {
	out := make(map[int64]*entities.Customer, len(ids))
	for _, batch := range batches(uniqueIDs(ids), maxBatch) {
		customers, err := customerBatch(ctx, q, batch)
		if err != nil {
			return nil, err
		}
		for _, c := range customers {
			out[c.ID] = c
		}
	}
	return out, nil
}

func customerBatch(ctx context.Context, q querier, ids []int64) ([]*entities.Customer, error) {
	in, args := inClause(ids, 1)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM customers WHERE id IN (%s)`, customerColumns, in), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// itemsByID loads items (without their reviews) keyed by ID.
func itemsByID(ctx context.Context, q querier, ids []int64) (map[int64]*entities.Item, error) {
	out := make(map[int64]*entities.Item, len(ids))
	for _, batch := range batches(uniqueIDs(ids), maxBatch) {
		items, err := itemBatch(ctx, q, batch)
		if err != nil {
			return nil, err
		}
		for _, i := range items {
			out[i.ID] = i
		}
	}
	return out, nil
}

func itemBatch(ctx context.Context, q querier, ids []int64) ([]*entities.Item, error) {
	in, args := inClause(ids, 1)
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM items WHERE id IN (%s)`, itemColumns, in), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// exists reports whether a row with the given id exists in table.
func exists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	return true, nil
}
