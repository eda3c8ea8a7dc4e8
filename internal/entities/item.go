package entities

import (
	"fmt"
	"strings"
)

// Item represents a product that can be reviewed
type Item struct {
	ID      int64
	Name    string
	Price   float64
	Reviews []*Review // Reviews about this item (loaded by the repository)
}

// String returns a string representation of the item
func (i *Item) String() string {
	return fmt.Sprintf("<Item %d, %s, %g>", i.ID, i.Name, i.Price)
}

// Validate checks if the item is valid
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("item name is required")
	}
	if i.Price < 0 {
		return fmt.Errorf("item price must not be negative, got %g", i.Price)
	}
	return nil
}

// DescriptorName implements serializer.Record
func (i *Item) DescriptorName() string {
	return DescriptorItem
}

// Field implements serializer.Record
func (i *Item) Field(name string) (any, bool) {
	switch name {
	case "id":
		return i.ID, true
	case "name":
		return i.Name, true
	case "price":
		return i.Price, true
	}
	return nil, false
}

// Related implements serializer.Record
func (i *Item) Related(name string) (any, bool) {
	if name == "reviews" {
		return reviewRecords(i.Reviews), true
	}
	return nil, false
}
