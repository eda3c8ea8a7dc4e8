package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asakaida/reviewlab/internal/entities"
	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/asakaida/reviewlab/internal/services/serializer"
	"github.com/asakaida/reviewlab/pkg/cache"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ErrInvalidInput is returned when a request fails validation
var ErrInvalidInput = errors.New("invalid input")

// CustomerInput holds the writable fields of a customer
type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,contains=@,max=320"`
}

// ItemInput holds the writable fields of an item
type ItemInput struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
}

// ReviewInput holds the writable fields of a review
type ReviewInput struct {
	Comment    string `json:"comment" validate:"required"`
	CustomerID int64  `json:"customer_id" validate:"gt=0"`
	ItemID     int64  `json:"item_id" validate:"gt=0"`
}

// CatalogServiceInterface defines the record operations exposed to transports
type CatalogServiceInterface interface {
	ListCustomers(ctx context.Context) ([]map[string]any, error)
	GetCustomer(ctx context.Context, id int64) (map[string]any, error)
	CreateCustomer(ctx context.Context, in *CustomerInput) (map[string]any, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CustomerReviews(ctx context.Context, id int64) ([]map[string]any, error)
	CustomerItems(ctx context.Context, id int64) ([]map[string]any, error)

	ListItems(ctx context.Context) ([]map[string]any, error)
	GetItem(ctx context.Context, id int64) (map[string]any, error)
	CreateItem(ctx context.Context, in *ItemInput) (map[string]any, error)
	DeleteItem(ctx context.Context, id int64) error
	ItemReviews(ctx context.Context, id int64) ([]map[string]any, error)

	ListReviews(ctx context.Context, filter *repositories.ReviewFilter) ([]map[string]any, error)
	GetReview(ctx context.Context, id int64) (map[string]any, error)
	CreateReview(ctx context.Context, in *ReviewInput) (map[string]any, error)
	DeleteReview(ctx context.Context, id int64) error
}

// Publisher broadcasts invalidated cache keys to other server instances
type Publisher interface {
	Publish(ctx context.Context, keys ...string) error
}

// CatalogService loads records from the repositories and serializes them
type CatalogService struct {
	customers  repositories.CustomerRepository
	items      repositories.ItemRepository
	reviews    repositories.ReviewRepository
	serializer *serializer.Serializer
	cache      cache.Cache[map[string]any] // nil disables caching
	cacheTTL   time.Duration
	publisher  Publisher // nil when running as a single instance

	// epoch counts invalidations; a load that overlaps one is not cached
	epochMu sync.Mutex
	epoch   uint64
	validate   *validator.Validate
	log        *logrus.Logger
}

// NewCatalogService creates a new CatalogService. recordCache may be nil.
func NewCatalogService(
	customers repositories.CustomerRepository,
	items repositories.ItemRepository,
	reviews repositories.ReviewRepository,
	s *serializer.Serializer,
	recordCache cache.Cache[map[string]any],
	cacheTTL time.Duration,
	log *logrus.Logger,
) *CatalogService {
	return &CatalogService{
		customers:  customers,
		items:      items,
		reviews:    reviews,
		serializer: s,
		cache:      recordCache,
		cacheTTL:   cacheTTL,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		log:        log,
	}
}

var _ CatalogServiceInterface = (*CatalogService)(nil)

// SetPublisher makes every local invalidation also reach other instances
func (s *CatalogService) SetPublisher(p Publisher) {
	s.publisher = p
}

// RecordSize estimates the memory held by a cached record as the length of
// its JSON encoding.
func RecordSize(key string, record map[string]any) int64 {
	b, err := json.Marshal(record)
	if err != nil {
		return int64(len(key))
	}
	return int64(len(key) + len(b))
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

// check runs the struct tag rules of an input
func (s *CatalogService) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidInput, fe.Field(), fe.Tag())
		}
		return invalid(err)
	}
	return nil
}

func validID(kind string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s id must be positive, got %d", ErrInvalidInput, kind, id)
	}
	return nil
}

// cached returns the record stored under key, or loads and serializes it.
func (s *CatalogService) cached(ctx context.Context, key string, load func() (serializer.Record, error)) (map[string]any, error) {
	var epoch uint64
	if s.cache != nil {
		if m, ok := s.cache.Get(ctx, key); ok {
			return m, nil
		}
		epoch = s.currentEpoch()
	}

	rec, err := load()
	if err != nil {
		return nil, err
	}
	m, err := s.serializer.Serialize(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", key, err)
	}

	if s.cache != nil {
		s.store(ctx, key, m, epoch)
	}
	return m, nil
}

func (s *CatalogService) currentEpoch() uint64 {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	return s.epoch
}

// store caches m unless an invalidation ran since epoch was read.
func (s *CatalogService) store(ctx context.Context, key string, m map[string]any, epoch uint64) {
	s.epochMu.Lock()
	defer s.epochMu.Unlock()

	if s.epoch != epoch {
		s.log.WithField("key", key).Debug("skipping cache fill after concurrent write")
		return
	}
	if err := s.cache.Set(ctx, key, m, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("failed to cache record")
	}
}

// Evict drops cached records by key without publishing the keys. Loads
// already in flight are not cached afterwards.
func (s *CatalogService) Evict(ctx context.Context, keys ...string) error {
	if s.cache == nil || len(keys) == 0 {
		return nil
	}
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	s.epoch++
	return s.cache.Delete(ctx, keys...)
}

// EvictAll drops every cached record
func (s *CatalogService) EvictAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.epochMu.Lock()
	defer s.epochMu.Unlock()
	s.epoch++
	return s.cache.Clear(ctx)
}

func (s *CatalogService) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}

	if err := s.Evict(ctx, keys...); err != nil {
		s.log.WithError(err).WithField("keys", keys).Warn("failed to invalidate cached records")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, keys...); err != nil {
			s.log.WithError(err).WithField("keys", keys).Warn("failed to publish cache invalidation")
		}
	}
}

// serializeAll serializes records, reached through via when it is non-nil.
func serializeAll[R serializer.Record](s *serializer.Serializer, records []R, via *serializer.Edge) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		m, err := s.SerializeFrom(rec, via)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize %s: %w", rec.DescriptorName(), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ListCustomers returns every customer with its reviews
func (s *CatalogService) ListCustomers(ctx context.Context) ([]map[string]any, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, customers, nil)
}

// GetCustomer returns a customer with its reviews
func (s *CatalogService) GetCustomer(ctx context.Context, id int64) (map[string]any, error) {
	if err := validID("customer", id); err != nil {
		return nil, err
	}
	return s.cached(ctx, cache.Key(entities.DescriptorCustomer, id), func() (serializer.Record, error) {
		return s.customers.Get(ctx, id)
	})
}

// CreateCustomer stores a new customer and returns it serialized
func (s *CatalogService) CreateCustomer(ctx context.Context, in *CustomerInput) (map[string]any, error) {
	if in == nil {
		return nil, invalid(errors.New("customer is required"))
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	c := &entities.Customer{Name: in.Name, Email: in.Email}
	if err := c.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"customer_id": c.ID, "name": c.Name}).Info("customer created")
	return s.serializer.Serialize(c)
}

// DeleteCustomer removes a customer together with its reviews
func (s *CatalogService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := validID("customer", id); err != nil {
		return err
	}
	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.customers.Delete(ctx, id); err != nil {
		return err
	}

	keys := []string{cache.Key(entities.DescriptorCustomer, id)}
	for _, r := range c.Reviews {
		keys = append(keys, cache.Key(entities.DescriptorReview, r.ID), cache.Key(entities.DescriptorItem, r.ItemID))
	}
	s.invalidate(ctx, keys...)

	s.log.WithFields(logrus.Fields{"customer_id": id, "reviews": len(c.Reviews)}).Info("customer deleted")
	return nil
}

// CustomerReviews returns the reviews written by a customer as seen from the
// customer, so the customer's rules apply to them
func (s *CatalogService) CustomerReviews(ctx context.Context, id int64) ([]map[string]any, error) {
	if err := validID("customer", id); err != nil {
		return nil, err
	}
	if _, err := s.customers.Get(ctx, id); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.List(ctx, &repositories.ReviewFilter{CustomerID: id})
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, reviews, entities.CustomerReviews)
}

// CustomerItems returns the items a customer reviewed, one per review
func (s *CatalogService) CustomerItems(ctx context.Context, id int64) ([]map[string]any, error) {
	if err := validID("customer", id); err != nil {
		return nil, err
	}
	items, err := s.customers.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, items, nil)
}

// ListItems returns every item with its reviews
func (s *CatalogService) ListItems(ctx context.Context) ([]map[string]any, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, items, nil)
}

// GetItem returns an item with its reviews
func (s *CatalogService) GetItem(ctx context.Context, id int64) (map[string]any, error) {
	if err := validID("item", id); err != nil {
		return nil, err
	}
	return s.cached(ctx, cache.Key(entities.DescriptorItem, id), func() (serializer.Record, error) {
		return s.items.Get(ctx, id)
	})
}

// CreateItem stores a new item and returns it serialized
func (s *CatalogService) CreateItem(ctx context.Context, in *ItemInput) (map[string]any, error) {
	if in == nil {
		return nil, invalid(errors.New("item is required"))
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	item := &entities.Item{Name: in.Name, Price: in.Price}
	if err := item.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"item_id": item.ID, "name": item.Name}).Info("item created")
	return s.serializer.Serialize(item)
}

// DeleteItem removes an item together with its reviews
func (s *CatalogService) DeleteItem(ctx context.Context, id int64) error {
	if err := validID("item", id); err != nil {
		return err
	}
	item, err := s.items.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}

	keys := []string{cache.Key(entities.DescriptorItem, id)}
	for _, r := range item.Reviews {
		keys = append(keys, cache.Key(entities.DescriptorReview, r.ID), cache.Key(entities.DescriptorCustomer, r.CustomerID))
	}
	s.invalidate(ctx, keys...)

	s.log.WithFields(logrus.Fields{"item_id": id, "reviews": len(item.Reviews)}).Info("item deleted")
	return nil
}

// ItemReviews returns the reviews of an item as seen from the item
func (s *CatalogService) ItemReviews(ctx context.Context, id int64) ([]map[string]any, error) {
	if err := validID("item", id); err != nil {
		return nil, err
	}
	if _, err := s.items.Get(ctx, id); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.List(ctx, &repositories.ReviewFilter{ItemID: id})
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, reviews, entities.ItemReviews)
}

// ListReviews returns the reviews matching filter with their customer and item
func (s *CatalogService) ListReviews(ctx context.Context, filter *repositories.ReviewFilter) ([]map[string]any, error) {
	if filter == nil {
		filter = &repositories.ReviewFilter{}
	}
	if filter.CustomerID < 0 || filter.ItemID < 0 {
		return nil, invalid(errors.New("filter ids must not be negative"))
	}
	reviews, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return serializeAll(s.serializer, reviews, nil)
}

// GetReview returns a review with its customer and item
func (s *CatalogService) GetReview(ctx context.Context, id int64) (map[string]any, error) {
	if err := validID("review", id); err != nil {
		return nil, err
	}
	return s.cached(ctx, cache.Key(entities.DescriptorReview, id), func() (serializer.Record, error) {
		return s.reviews.Get(ctx, id)
	})
}

// CreateReview stores a review for an existing customer and item
func (s *CatalogService) CreateReview(ctx context.Context, in *ReviewInput) (map[string]any, error) {
	if in == nil {
		return nil, invalid(errors.New("review is required"))
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	r := &entities.Review{Comment: in.Comment, CustomerID: in.CustomerID, ItemID: in.ItemID}
	if err := r.Validate(); err != nil {
		return nil, invalid(err)
	}

	if _, err := s.customers.Get(ctx, r.CustomerID); err != nil {
		return nil, err
	}
	if _, err := s.items.Get(ctx, r.ItemID); err != nil {
		return nil, err
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return nil, err
	}

	s.invalidate(ctx,
		cache.Key(entities.DescriptorCustomer, r.CustomerID),
		cache.Key(entities.DescriptorItem, r.ItemID),
	)
	s.log.WithFields(logrus.Fields{
		"review_id":   r.ID,
		"customer_id": r.CustomerID,
		"item_id":     r.ItemID,
	}).Info("review created")

	created, err := s.reviews.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return s.serializer.Serialize(created)
}

// DeleteReview removes a review
func (s *CatalogService) DeleteReview(ctx context.Context, id int64) error {
	if err := validID("review", id); err != nil {
		return err
	}
	r, err := s.reviews.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx,
		cache.Key(entities.DescriptorReview, id),
		cache.Key(entities.DescriptorCustomer, r.CustomerID),
		cache.Key(entities.DescriptorItem, r.ItemID),
	)
	s.log.WithField("review_id", id).Info("review deleted")
	return nil
}
