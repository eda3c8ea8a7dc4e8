package entities

import (
	"fmt"
	"strings"

	"github.com/asakaida/reviewlab/internal/services/serializer"
)

// Customer represents a customer who writes reviews
type Customer struct {
	ID      int64     // Primary key
	Name    string    // Display name
	Email   string    // Contact email
	Reviews []*Review // Reviews written by this customer (loaded by the repository)
}

// String returns a string representation of the customer
func (c *Customer) String() string {
	return fmt.Sprintf("<Customer %d, %s>", c.ID, c.Name)
}

// Validate checks if the customer is valid
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("customer name is required")
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("customer email %q is invalid", c.Email)
	}
	return nil
}

// DescriptorName implements serializer.Record
func (c *Customer) DescriptorName() string {
	return DescriptorCustomer
}

// Field implements serializer.Record
func (c *Customer) Field(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "name":
		return c.Name, true
	case "email":
		return c.Email, true
	}
	return nil, false
}

// Related implements serializer.Record
func (c *Customer) Related(name string) (any, bool) {
	if name == "reviews" {
		return reviewRecords(c.Reviews), true
	}
	return nil, false
}

func reviewRecords(reviews []*Review) []serializer.Record {
	out := make([]serializer.Record, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, r)
	}
	return out
}
