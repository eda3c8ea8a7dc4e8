package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/infrastructure/logging"
	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/asakaida/reviewlab/internal/services/serializer"
	"github.com/asakaida/reviewlab/pkg/cache/memorycache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is an in-memory backing store shared by the mock repositories
type mockStore struct {
	nextID    int64
	customers map[int64]entities.Customer
	items     map[int64]entities.Item
	reviews   map[int64]entities.Review
	listErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		customers: make(map[int64]entities.Customer),
		items:     make(map[int64]entities.Item),
		reviews:   make(map[int64]entities.Review),
	}
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

func sortedKeys[V any](in map[int64]V) []int64 {
	keys := make([]int64, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (m *mockStore) reviewRows(match func(entities.Review) bool) []*entities.Review {
	var out []*entities.Review
	for _, id := range sortedKeys(m.reviews) {
		r := m.reviews[id]
		if match(r) {
			out = append(out, &r)
		}
	}
	return out
}

func (m *mockStore) customer(id int64) (*entities.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}
	c.Reviews = m.reviewRows(func(r entities.Review) bool { return r.CustomerID == id })
	return &c, nil
}

func (m *mockStore) item(id int64) (*entities.Item, error) {
	i, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}
	i.Reviews = m.reviewRows(func(r entities.Review) bool { return r.ItemID == id })
	return &i, nil
}

func (m *mockStore) attach(r *entities.Review) *entities.Review {
	if c, ok := m.customers[r.CustomerID]; ok {
		r.Customer = &c
	}
	if i, ok := m.items[r.ItemID]; ok {
		r.Item = &i
	}
	return r
}

type mockCustomerRepository struct{ *mockStore }

func (m mockCustomerRepository) List(ctx context.Context) ([]*entities.Customer, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entities.Customer
	for _, id := range sortedKeys(m.customers) {
		c, _ := m.customer(id)
		out = append(out, c)
	}
	return out, nil
}

func (m mockCustomerRepository) Get(ctx context.Context, id int64) (*entities.Customer, error) {
	return m.customer(id)
}

func (m mockCustomerRepository) Create(ctx context.Context, c *entities.Customer) error {
	c.ID = m.id()
	m.customers[c.ID] = entities.Customer{ID: c.ID, Name: c.Name, Email: c.Email}
	return nil
}

func (m mockCustomerRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.customers[id]; !ok {
		return fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}
	delete(m.customers, id)
	for rid, r := range m.reviews {
		if r.CustomerID == id {
			delete(m.reviews, rid)
		}
	}
	return nil
}

func (m mockCustomerRepository) Items(ctx context.Context, id int64) ([]*entities.Item, error) {
	if _, ok := m.customers[id]; !ok {
		return nil, fmt.Errorf("customer %d: %w", id, repositories.ErrNotFound)
	}
	var out []*entities.Item
	for _, r := range m.reviewRows(func(r entities.Review) bool { return r.CustomerID == id }) {
		i, err := m.item(r.ItemID)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

type mockItemRepository struct{ *mockStore }

func (m mockItemRepository) List(ctx context.Context) ([]*entities.Item, error) {
	var out []*entities.Item
	for _, id := range sortedKeys(m.items) {
		i, _ := m.item(id)
		out = append(out, i)
	}
	return out, nil
}

func (m mockItemRepository) Get(ctx context.Context, id int64) (*entities.Item, error) {
	return m.item(id)
}

func (m mockItemRepository) Create(ctx context.Context, i *entities.Item) error {
	i.ID = m.id()
	m.items[i.ID] = entities.Item{ID: i.ID, Name: i.Name, Price: i.Price}
	return nil
}

func (m mockItemRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item %d: %w", id, repositories.ErrNotFound)
	}
	delete(m.items, id)
	for rid, r := range m.reviews {
		if r.ItemID == id {
			delete(m.reviews, rid)
		}
	}
	return nil
}

type mockReviewRepository struct{ *mockStore }

func (m mockReviewRepository) List(ctx context.Context, filter *repositories.ReviewFilter) ([]*entities.Review, error) {
	rows := m.reviewRows(func(r entities.Review) bool {
		return (filter.CustomerID == 0 || r.CustomerID == filter.CustomerID) &&
			(filter.ItemID == 0 || r.ItemID == filter.ItemID)
	})
	for _, r := range rows {
		m.attach(r)
	}
	return rows, nil
}

func (m mockReviewRepository) Get(ctx context.Context, id int64) (*entities.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %d: %w", id, repositories.ErrNotFound)
	}
	return m.attach(&r), nil
}

func (m mockReviewRepository) Create(ctx context.Context, r *entities.Review) error {
	r.ID = m.id()
	m.reviews[r.ID] = entities.Review{ID: r.ID, Comment: r.Comment, CustomerID: r.CustomerID, ItemID: r.ItemID}
	return nil
}

func (m mockReviewRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.reviews[id]; !ok {
		return fmt.Errorf("review %d: %w", id, repositories.ErrNotFound)
	}
	delete(m.reviews, id)
	return nil
}

func newTestService(t *testing.T, withCache bool) (*CatalogService, *mockStore, *memorycache.Cache[map[string]any]) {
	t.Helper()
	store := newMockStore()
	var c *memorycache.Cache[map[string]any]
	svc := NewCatalogService(
		mockCustomerRepository{store},
		mockItemRepository{store},
		mockReviewRepository{store},
		serializer.New(entities.Schema()),
		nil,
		time.Minute,
		logging.Discard(),
	)
	if withCache {
		c = memorycache.New(&memorycache.Config[map[string]any]{
			MaxSizeBytes:  1 << 20,
			DefaultTTL:    time.Minute,
			EnableMetrics: true,
			SizeOf:        RecordSize,
		})
		svc.cache = c
	}
	return svc, store, c
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// seedCatalog creates Ada (1), Lamp (2) and review 3 "great" by Ada on Lamp
func seedCatalog(t *testing.T, svc *CatalogService) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateCustomer(ctx, &CustomerInput{Name: "Ada", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, &ItemInput{Name: "Lamp", Price: 12.5})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, &ReviewInput{Comment: "great", CustomerID: 1, ItemID: 2})
	require.NoError(t, err)
}

func TestCatalogService_GetCustomer(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	seedCatalog(t, svc)

	got, err := svc.GetCustomer(context.Background(), 1)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":1,"name":"Ada","email":"a@x.com","reviews":[{"id":3,"comment":"great","customer_id":1,"item_id":2}]}`,
		toJSON(t, got))
}

func TestCatalogService_GetReview(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	seedCatalog(t, svc)

	got, err := svc.GetReview(context.Background(), 3)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":3,"comment":"great","customer_id":1,"item_id":2,`+
			`"customer":{"id":1,"name":"Ada","email":"a@x.com"},`+
			`"item":{"id":2,"name":"Lamp","price":12.5}}`,
		toJSON(t, got))
}

func TestCatalogService_CreateCustomer_EmptyReviews(t *testing.T) {
	svc, _, _ := newTestService(t, false)

	got, err := svc.CreateCustomer(context.Background(), &CustomerInput{Name: "Bob", Email: "b@x.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"Bob","email":"b@x.com","reviews":[]}`, toJSON(t, got))
}

func TestCatalogService_InvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	seedCatalog(t, svc)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"nil customer", func() error { _, err := svc.CreateCustomer(ctx, nil); return err }},
		{"blank customer name", func() error {
			_, err := svc.CreateCustomer(ctx, &CustomerInput{Name: " ", Email: "a@x.com"})
			return err
		}},
		{"bad email", func() error {
			_, err := svc.CreateCustomer(ctx, &CustomerInput{Name: "Ada", Email: "nope"})
			return err
		}},
		{"negative price", func() error {
			_, err := svc.CreateItem(ctx, &ItemInput{Name: "Lamp", Price: -1})
			return err
		}},
		{"empty comment", func() error {
			_, err := svc.CreateReview(ctx, &ReviewInput{CustomerID: 1, ItemID: 2})
			return err
		}},
		{"missing review customer", func() error {
			_, err := svc.CreateReview(ctx, &ReviewInput{Comment: "ok", ItemID: 2})
			return err
		}},
		{"overlong item name", func() error {
			_, err := svc.CreateItem(ctx, &ItemInput{Name: strings.Repeat("x", 201), Price: 1})
			return err
		}},
		{"zero id", func() error { _, err := svc.GetCustomer(ctx, 0); return err }},
		{"negative id", func() error { return svc.DeleteReview(ctx, -4) }},
		{"negative filter", func() error {
			_, err := svc.ListReviews(ctx, &repositories.ReviewFilter{ItemID: -1})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrInvalidInput)
		})
	}
}

func TestCatalogService_InvalidInputNamesField(t *testing.T) {
	svc, _, _ := newTestService(t, false)

	_, err := svc.CreateCustomer(context.Background(), &CustomerInput{Name: "Ada", Email: "nope"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), `Email failed on "contains"`)
}

func TestCatalogService_CreateReview_UnknownParents(t *testing.T) {
	svc, store, _ := newTestService(t, false)
	seedCatalog(t, svc)
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, &ReviewInput{Comment: "hm", CustomerID: 99, ItemID: 2})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = svc.CreateReview(ctx, &ReviewInput{Comment: "hm", CustomerID: 1, ItemID: 99})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.Len(t, store.reviews, 1)
}

func TestCatalogService_NestedCollections(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	seedCatalog(t, svc)
	ctx := context.Background()

	reviews, err := svc.CustomerReviews(ctx, 1)
	require.NoError(t, err)
	// Seen from the customer, a review does not repeat its customer.
	assert.JSONEq(t,
		`[{"id":3,"comment":"great","customer_id":1,"item_id":2,"item":{"id":2,"name":"Lamp","price":12.5}}]`,
		toJSON(t, reviews))

	reviews, err = svc.ItemReviews(ctx, 2)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"id":3,"comment":"great","customer_id":1,"item_id":2,"customer":{"id":1,"name":"Ada","email":"a@x.com"}}]`,
		toJSON(t, reviews))

	items, err := svc.CustomerItems(ctx, 1)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"id":2,"name":"Lamp","price":12.5,"reviews":[{"id":3,"comment":"great","customer_id":1,"item_id":2}]}]`,
		toJSON(t, items))

	_, err = svc.CustomerReviews(ctx, 42)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = svc.ItemReviews(ctx, 42)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = svc.CustomerItems(ctx, 42)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestCatalogService_Lists(t *testing.T) {
	svc, _, _ := newTestService(t, false)
	ctx := context.Background()

	customers, err := svc.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "[]", toJSON(t, customers))

	seedCatalog(t, svc)

	customers, err = svc.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 1)

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	reviews, err := svc.ListReviews(ctx, nil)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Contains(t, reviews[0], "customer")
	assert.Contains(t, reviews[0], "item")

	reviews, err = svc.ListReviews(ctx, &repositories.ReviewFilter{CustomerID: 7})
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestCatalogService_ListError(t *testing.T) {
	svc, store, _ := newTestService(t, false)
	store.listErr = errors.New("connection refused")

	_, err := svc.ListCustomers(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestCatalogService_Delete(t *testing.T) {
	svc, store, _ := newTestService(t, false)
	seedCatalog(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.DeleteCustomer(ctx, 1))
	assert.Empty(t, store.reviews)
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, 1), repositories.ErrNotFound)

	require.NoError(t, svc.DeleteItem(ctx, 2))
	assert.ErrorIs(t, svc.DeleteItem(ctx, 2), repositories.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteReview(ctx, 3), repositories.ErrNotFound)
}

func TestCatalogService_CacheHitAndInvalidation(t *testing.T) {
	svc, _, c := newTestService(t, true)
	seedCatalog(t, svc)
	ctx := context.Background()

	first, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	second, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, toJSON(t, first), toJSON(t, second))

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)

	// A new review for Ada must evict her cached record.
	_, err = svc.CreateReview(ctx, &ReviewInput{Comment: "again", CustomerID: 1, ItemID: 2})
	require.NoError(t, err)

	got, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	seq, ok := got["reviews"].(*serializer.Sequence)
	require.True(t, ok)
	assert.Equal(t, 2, seq.Len())

	_, err = svc.GetReview(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteReview(ctx, 3))
	_, err = svc.GetReview(ctx, 3)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	got, err = svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got["reviews"].(*serializer.Sequence).Len())
}

func TestCatalogService_DeleteCustomerInvalidatesReviewsAndItems(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	seedCatalog(t, svc)
	ctx := context.Background()

	_, err := svc.GetItem(ctx, 2)
	require.NoError(t, err)
	_, err = svc.GetReview(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, 1))

	item, err := svc.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, item["reviews"].(*serializer.Sequence).Len())

	_, err = svc.GetReview(ctx, 3)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, keys ...string) error {
	p.keys = append(p.keys, keys...)
	return nil
}

func TestCatalogService_PublishesInvalidations(t *testing.T) {
	svc, _, _ := newTestService(t, true)
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	seedCatalog(t, svc)

	assert.Equal(t, []string{"customer:1", "item:2"}, pub.keys)

	pub.keys = nil
	require.NoError(t, svc.DeleteReview(context.Background(), 3))
	assert.Equal(t, []string{"review:3", "customer:1", "item:2"}, pub.keys)
}

func TestRecordSize(t *testing.T) {
	size := RecordSize("customer:1", map[string]any{"id": 1})
	assert.Equal(t, int64(len("customer:1")+len(`{"id":1}`)), size)
}

// interleavedCustomerRepository runs write once, after a customer was read
// but before the read returns
type interleavedCustomerRepository struct {
	mockCustomerRepository
	write func()
}

func (r *interleavedCustomerRepository) Get(ctx context.Context, id int64) (*entities.Customer, error) {
	c, err := r.mockCustomerRepository.Get(ctx, id)
	if w := r.write; w != nil {
		r.write = nil
		w()
	}
	return c, err
}

func TestCatalogService_WriteDuringLoadIsNotCached(t *testing.T) {
	svc, store, c := newTestService(t, true)
	seedCatalog(t, svc)
	ctx := context.Background()

	repo := &interleavedCustomerRepository{mockCustomerRepository: mockCustomerRepository{store}}
	repo.write = func() {
		_, err := svc.CreateReview(ctx, &ReviewInput{Comment: "again", CustomerID: 1, ItemID: 2})
		require.NoError(t, err)
	}
	svc.customers = repo

	stale, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stale["reviews"].(*serializer.Sequence).Len())

	_, cached := c.Get(ctx, "customer:1")
	assert.False(t, cached, "a load overlapping a write must not be cached")

	fresh, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh["reviews"].(*serializer.Sequence).Len())
}

func TestCatalogService_EvictAll(t *testing.T) {
	svc, _, c := newTestService(t, true)
	seedCatalog(t, svc)
	ctx := context.Background()

	_, err := svc.GetCustomer(ctx, 1)
	require.NoError(t, err)
	_, err = svc.GetItem(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	require.NoError(t, svc.EvictAll(ctx))
	assert.Equal(t, 0, c.Len())
}
