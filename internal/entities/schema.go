package entities

import (
	"fmt"
	"sync"

	"github.com/asakaida/reviewlab/internal/services/serializer"
)

// Descriptor names
const (
	DescriptorCustomer = "customer"
	DescriptorItem     = "item"
	DescriptorReview   = "review"
)

var (
	schemaOnce sync.Once
	schema     *serializer.Schema
)

// Schema returns the static serializer schema for customers, items and reviews.
// It is built once and shared; callers must not modify it.
func Schema() *serializer.Schema {
	schemaOnce.Do(func() {
		s, err := buildSchema()
		if err != nil {
			panic(fmt.Sprintf("invalid entity schema: %v", err))
		}
		schema = s
	})
	return schema
}

func buildSchema() (*serializer.Schema, error) {
	s := serializer.NewSchema()

	descriptors := []*serializer.Descriptor{
		{
			Name:   DescriptorCustomer,
			Fields: []string{"id", "name", "email"},
			Relationships: []*serializer.Relationship{
				{Name: "reviews", Target: DescriptorReview, Cardinality: serializer.Many, Inverse: "customer"},
			},
		},
		{
			Name:   DescriptorItem,
			Fields: []string{"id", "name", "price"},
			Relationships: []*serializer.Relationship{
				{Name: "reviews", Target: DescriptorReview, Cardinality: serializer.Many, Inverse: "item"},
			},
		},
		{
			Name:   DescriptorReview,
			Fields: []string{"id", "comment", "customer_id", "item_id"},
			Relationships: []*serializer.Relationship{
				{Name: "customer", Target: DescriptorCustomer, Cardinality: serializer.One, Inverse: "reviews"},
				{Name: "item", Target: DescriptorItem, Cardinality: serializer.One, Inverse: "reviews"},
			},
		},
	}
	for _, d := range descriptors {
		if err := s.Register(d); err != nil {
			return nil, err
		}
	}

	// A review reached from its customer or item does not point back.
	s.Exclude(DescriptorCustomer, serializer.ExclusionRule{Descriptor: DescriptorReview, Relationship: "customer"})
	s.Exclude(DescriptorItem, serializer.ExclusionRule{Descriptor: DescriptorReview, Relationship: "item"})
	s.Exclude(DescriptorReview, serializer.ExclusionRule{Descriptor: DescriptorCustomer, Relationship: "reviews"})
	s.Exclude(DescriptorReview, serializer.ExclusionRule{Descriptor: DescriptorItem, Relationship: "reviews"})

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Edges used when serializing nested collections
var (
	CustomerReviews = &serializer.Edge{Descriptor: DescriptorCustomer, Relationship: "reviews"}
	ItemReviews     = &serializer.Edge{Descriptor: DescriptorItem, Relationship: "reviews"}
)
