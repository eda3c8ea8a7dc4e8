package handlers

import (
	"context"

	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/asakaida/reviewlab/internal/services"
)

// Mock CatalogService; unset funcs return zero values
type mockCatalogService struct {
	listCustomersFunc   func(ctx context.Context) ([]map[string]any, error)
	getCustomerFunc     func(ctx context.Context, id int64) (map[string]any, error)
	createCustomerFunc  func(ctx context.Context, in *services.CustomerInput) (map[string]any, error)
	deleteCustomerFunc  func(ctx context.Context, id int64) error
	customerReviewsFunc func(ctx context.Context, id int64) ([]map[string]any, error)
	customerItemsFunc   func(ctx context.Context, id int64) ([]map[string]any, error)
	listItemsFunc       func(ctx context.Context) ([]map[string]any, error)
	getItemFunc         func(ctx context.Context, id int64) (map[string]any, error)
	createItemFunc      func(ctx context.Context, in *services.ItemInput) (map[string]any, error)
	deleteItemFunc      func(ctx context.Context, id int64) error
	itemReviewsFunc     func(ctx context.Context, id int64) ([]map[string]any, error)
	listReviewsFunc     func(ctx context.Context, filter *repositories.ReviewFilter) ([]map[string]any, error)
	getReviewFunc       func(ctx context.Context, id int64) (map[string]any, error)
	createReviewFunc    func(ctx context.Context, in *services.ReviewInput) (map[string]any, error)
	deleteReviewFunc    func(ctx context.Context, id int64) error
}

var _ services.CatalogServiceInterface = (*mockCatalogService)(nil)

func (m *mockCatalogService) ListCustomers(ctx context.Context) ([]map[string]any, error) {
	if m.listCustomersFunc != nil {
		return m.listCustomersFunc(ctx)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) GetCustomer(ctx context.Context, id int64) (map[string]any, error) {
	if m.getCustomerFunc != nil {
		return m.getCustomerFunc(ctx, id)
	}
	return map[string]any{"id": id}, nil
}

func (m *mockCatalogService) CreateCustomer(ctx context.Context, in *services.CustomerInput) (map[string]any, error) {
	if m.createCustomerFunc != nil {
		return m.createCustomerFunc(ctx, in)
	}
	return map[string]any{"id": int64(1), "name": in.Name, "email": in.Email}, nil
}

func (m *mockCatalogService) DeleteCustomer(ctx context.Context, id int64) error {
	if m.deleteCustomerFunc != nil {
		return m.deleteCustomerFunc(ctx, id)
	}
	return nil
}

func (m *mockCatalogService) CustomerReviews(ctx context.Context, id int64) ([]map[string]any, error) {
	if m.customerReviewsFunc != nil {
		return m.customerReviewsFunc(ctx, id)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) CustomerItems(ctx context.Context, id int64) ([]map[string]any, error) {
	if m.customerItemsFunc != nil {
		return m.customerItemsFunc(ctx, id)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) ListItems(ctx context.Context) ([]map[string]any, error) {
	if m.listItemsFunc != nil {
		return m.listItemsFunc(ctx)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) GetItem(ctx context.Context, id int64) (map[string]any, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, id)
	}
	return map[string]any{"id": id}, nil
}

func (m *mockCatalogService) CreateItem(ctx context.Context, in *services.ItemInput) (map[string]any, error) {
	if m.createItemFunc != nil {
		return m.createItemFunc(ctx, in)
	}
	return map[string]any{"id": int64(1), "name": in.Name, "price": in.Price}, nil
}

func (m *mockCatalogService) DeleteItem(ctx context.Context, id int64) error {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, id)
	}
	return nil
}

func (m *mockCatalogService) ItemReviews(ctx context.Context, id int64) ([]map[string]any, error) {
	if m.itemReviewsFunc != nil {
		return m.itemReviewsFunc(ctx, id)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) ListReviews(ctx context.Context, filter *repositories.ReviewFilter) ([]map[string]any, error) {
	if m.listReviewsFunc != nil {
		return m.listReviewsFunc(ctx, filter)
	}
	return []map[string]any{}, nil
}

func (m *mockCatalogService) GetReview(ctx context.Context, id int64) (map[string]any, error) {
	if m.getReviewFunc != nil {
		return m.getReviewFunc(ctx, id)
	}
	return map[string]any{"id": id}, nil
}

func (m *mockCatalogService) CreateReview(ctx context.Context, in *services.ReviewInput) (map[string]any, error) {
	if m.createReviewFunc != nil {
		return m.createReviewFunc(ctx, in)
	}
	return map[string]any{"id": int64(1), "comment": in.Comment}, nil
}

func (m *mockCatalogService) DeleteReview(ctx context.Context, id int64) error {
	if m.deleteReviewFunc != nil {
		return m.deleteReviewFunc(ctx, id)
	}
	return nil
}
