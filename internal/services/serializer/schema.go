package serializer

import (
	"errors"
	"fmt"
)

// Cardinality tells how many records a relationship points to.
type Cardinality int

const (
	// One is a single related record, possibly absent.
	One Cardinality = iota
	// Many is a collection of related records.
	Many
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

// Relationship is a named edge from one descriptor to another.
type Relationship struct {
	Name        string      // Relationship name (e.g., "reviews")
	Target      string      // Target descriptor name (e.g., "review")
	Cardinality Cardinality // One or Many
	Inverse     string      // Relationship on Target pointing back (optional)
}

// Descriptor is the static definition of one record type.
type Descriptor struct {
	Name          string          // Descriptor name (e.g., "customer")
	Fields        []string        // Scalar field names, in output order
	Relationships []*Relationship // Relationship definitions
}

// GetRelationship returns the relationship definition by name
func (d *Descriptor) GetRelationship(name string) *Relationship {
	for _, r := range d.Relationships {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Edge identifies a relationship on a descriptor, e.g. {customer, reviews}.
type Edge struct {
	Descriptor   string
	Relationship string
}

func (e Edge) String() string {
	return e.Descriptor + "." + e.Relationship
}

// ExclusionRule suppresses expansion of Relationship on records of
// Descriptor.
type ExclusionRule Edge

func (r ExclusionRule) String() string {
	return Edge(r).String()
}

// Schema is the registry of descriptors and their exclusion rule sets.
// It is built once and must not be mutated after it is handed to a Serializer.
type Schema struct {
	descriptors map[string]*Descriptor
	order       []string
	rules       map[string][]ExclusionRule
}

// NewSchema creates an empty schema
func NewSchema() *Schema {
	return &Schema{
		descriptors: make(map[string]*Descriptor),
		rules:       make(map[string][]ExclusionRule),
	}
}

// Register adds a descriptor to the schema.
func (s *Schema) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("descriptor name is required")
	}
	if _, exists := s.descriptors[d.Name]; exists {
		return fmt.Errorf("descriptor %q already registered", d.Name)
	}

	seen := make(map[string]bool, len(d.Fields)+len(d.Relationships))
	for _, f := range d.Fields {
		if f == "" {
			return fmt.Errorf("descriptor %q: empty field name", d.Name)
		}
		if seen[f] {
			return fmt.Errorf("descriptor %q: duplicate name %q", d.Name, f)
		}
		seen[f] = true
	}
	for _, r := range d.Relationships {
		if r.Name == "" {
			return fmt.Errorf("descriptor %q: empty relationship name", d.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("descriptor %q: duplicate name %q", d.Name, r.Name)
		}
		seen[r.Name] = true
	}

	s.descriptors[d.Name] = d
	s.order = append(s.order, d.Name)
	return nil
}

// Exclude adds rule to the rule set of the owner descriptor.
func (s *Schema) Exclude(owner string, rule ExclusionRule) {
	s.rules[owner] = append(s.rules[owner], rule)
}

// Descriptor returns the descriptor registered under name, or nil.
func (s *Schema) Descriptor(name string) *Descriptor {
	return s.descriptors[name]
}

// Rules returns the rule set of the owner descriptor.
func (s *Schema) Rules(owner string) []ExclusionRule {
	return s.rules[owner]
}

// Descriptors returns registered descriptor names in registration order.
func (s *Schema) Descriptors() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// excludes reports whether the owner's rule set holds {descriptor, relationship}.
func (s *Schema) excludes(owner, descriptor, relationship string) bool {
	for _, r := range s.rules[owner] {
		if r.Descriptor == descriptor && r.Relationship == relationship {
			return true
		}
	}
	return false
}

// excludedAnywhere reports whether any rule set holds {descriptor, relationship}.
func (s *Schema) excludedAnywhere(descriptor, relationship string) bool {
	for owner := range s.rules {
		if s.excludes(owner, descriptor, relationship) {
			return true
		}
	}
	return false
}

// Validate checks relationship targets, inverse consistency, rule
// references, and that every bidirectional pair has at least one
// direction excluded.
func (s *Schema) Validate() error {
	var errs []error

	for _, name := range s.order {
		d := s.descriptors[name]
		for _, r := range d.Relationships {
			target := s.descriptors[r.Target]
			if target == nil {
				errs = append(errs, fmt.Errorf("%s.%s: target %q not registered", d.Name, r.Name, r.Target))
				continue
			}
			if r.Inverse == "" {
				continue
			}
			inv := target.GetRelationship(r.Inverse)
			if inv == nil {
				errs = append(errs, fmt.Errorf("%s.%s: inverse %s.%s not declared", d.Name, r.Name, r.Target, r.Inverse))
				continue
			}
			if inv.Target != d.Name || inv.Inverse != r.Name {
				errs = append(errs, fmt.Errorf("%s.%s: inverse %s.%s does not point back", d.Name, r.Name, r.Target, r.Inverse))
				continue
			}
			if !s.excludedAnywhere(d.Name, r.Name) && !s.excludedAnywhere(r.Target, r.Inverse) {
				errs = append(errs, fmt.Errorf("%s.%s <-> %s.%s: no direction excluded", d.Name, r.Name, r.Target, r.Inverse))
			}
		}
	}

	for owner, rules := range s.rules {
		if s.descriptors[owner] == nil {
			errs = append(errs, fmt.Errorf("rule set owner %q not registered", owner))
		}
		for _, rule := range rules {
			d := s.descriptors[rule.Descriptor]
			if d == nil || d.GetRelationship(rule.Relationship) == nil {
				errs = append(errs, fmt.Errorf("rule %s on %q references an unknown relationship", rule, owner))
			}
		}
	}

	return errors.Join(errs...)
}
