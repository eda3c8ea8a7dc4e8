package entities

import (
	"fmt"
	"strings"
)

// Review links a customer to an item with a comment
// Example: customer 1 says "great" about item 5
type Review struct {
	ID         int64
	Comment    string
	CustomerID int64     // Foreign key to customers.id
	ItemID     int64     // Foreign key to items.id
	Customer   *Customer // Author (optional, loaded by the repository)
	Item       *Item     // Reviewed item (optional, loaded by the repository)
}

// String returns a string representation of the review
func (r *Review) String() string {
	return fmt.Sprintf("<Review %d, Customer %d, Item %d>", r.ID, r.CustomerID, r.ItemID)
}

// Validate checks if the review is valid
func (r *Review) Validate() error {
	if strings.TrimSpace(r.Comment) == "" {
		return fmt.Errorf("review comment is required")
	}
	if r.CustomerID <= 0 {
		return fmt.Errorf("review customer_id is required")
	}
	if r.ItemID <= 0 {
		return fmt.Errorf("review item_id is required")
	}
	return nil
}

// DescriptorName implements serializer.Record
func (r *Review) DescriptorName() string {
	return DescriptorReview
}

// Field implements serializer.Record
func (r *Review) Field(name string) (any, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "comment":
		return r.Comment, true
	case "customer_id":
		return r.CustomerID, true
	case "item_id":
		return r.ItemID, true
	}
	return nil, false
}

// Related implements serializer.Record.
// Unset pointers are reported as untyped nil so the serializer sees them as absent.
func (r *Review) Related(name string) (any, bool) {
	switch name {
	case "customer":
		if r.Customer == nil {
			return nil, true
		}
		return r.Customer, true
	case "item":
		if r.Item == nil {
			return nil, true
		}
		return r.Item, true
	}
	return nil, false
}
