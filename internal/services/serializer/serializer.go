// Package serializer converts records into nested maps of primitive values,
// expanding relationships one level deep according to a static Schema.
package serializer

import (
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
)

// Record is an entity instance as seen by the serializer.
type Record interface {
	// DescriptorName returns the name of the record's descriptor.
	DescriptorName() string
	// Field returns the value of a scalar field. ok is false when absent.
	Field(name string) (value any, ok bool)
	// Related returns nil, a Record (cardinality one) or a []Record
	// (cardinality many). ok is false when the relationship is absent.
	Related(name string) (value any, ok bool)
}

// Serializer turns records into maps. It holds no mutable state and is
// safe for concurrent use as long as the records are not mutated.
type Serializer struct {
	schema *Schema
}

// New creates a serializer over schema.
func New(schema *Schema) *Serializer {
	return &Serializer{schema: schema}
}

// Schema returns the schema the serializer was built with.
func (s *Serializer) Schema() *Schema {
	return s.schema
}

// Serialize converts a top-level record.
func (s *Serializer) Serialize(rec Record) (map[string]any, error) {
	return s.SerializeFrom(rec, nil)
}

// SerializeFrom converts rec reached through the relationship via. The rule
// set of via.Descriptor then also applies to rec. A nil via is the same as
// Serialize.
func (s *Serializer) SerializeFrom(rec Record, via *Edge) (map[string]any, error) {
	if isNil(rec) {
		return nil, &SchemaMismatchError{Reason: "nil record"}
	}
	d := s.schema.Descriptor(rec.DescriptorName())
	if d == nil {
		return nil, &SchemaMismatchError{Descriptor: rec.DescriptorName(), Reason: "not registered"}
	}

	parent := ""
	if via != nil {
		pd := s.schema.Descriptor(via.Descriptor)
		if pd == nil {
			return nil, &SchemaMismatchError{Descriptor: via.Descriptor, Reason: "not registered"}
		}
		rel := pd.GetRelationship(via.Relationship)
		if rel == nil || rel.Target != d.Name {
			return nil, &SchemaMismatchError{Descriptor: d.Name, Reason: fmt.Sprintf("not reachable through %s", via)}
		}
		parent = pd.Name
	}

	out, err := s.scalars(d, rec)
	if err != nil {
		return nil, err
	}

	for _, rel := range d.Relationships {
		if s.schema.excludes(d.Name, d.Name, rel.Name) {
			continue
		}
		if parent != "" && s.schema.excludes(parent, d.Name, rel.Name) {
			continue
		}
		v, err := s.expand(d, rel, rec)
		if err != nil {
			return nil, err
		}
		out[rel.Name] = v
	}

	return out, nil
}

// scalars copies the declared scalar fields of rec.
func (s *Serializer) scalars(d *Descriptor, rec Record) (map[string]any, error) {
	out := make(map[string]any, len(d.Fields)+len(d.Relationships))
	for _, f := range d.Fields {
		v, ok := rec.Field(f)
		if !ok {
			return nil, &FieldAccessError{Descriptor: d.Name, Field: f, Reason: "field not present on record"}
		}
		out[f] = v
	}
	return out, nil
}

// flat serializes a related record: scalar fields only, never its relationships.
func (s *Serializer) flat(target *Descriptor, rec Record) (map[string]any, error) {
	if isNil(rec) {
		return nil, &SchemaMismatchError{Descriptor: target.Name, Reason: "nil record in collection"}
	}
	if rec.DescriptorName() != target.Name {
		return nil, &SchemaMismatchError{
			Descriptor: rec.DescriptorName(),
			Reason:     fmt.Sprintf("expected %q", target.Name),
		}
	}
	return s.scalars(target, rec)
}

func (s *Serializer) expand(d *Descriptor, rel *Relationship, rec Record) (any, error) {
	value, ok := rec.Related(rel.Name)
	if !ok {
		return nil, &FieldAccessError{Descriptor: d.Name, Field: rel.Name, Reason: "relationship not present on record"}
	}
	target := s.schema.Descriptor(rel.Target)
	if target == nil {
		return nil, &SchemaMismatchError{Descriptor: rel.Target, Reason: "not registered"}
	}

	switch rel.Cardinality {
	case One:
		if value == nil {
			return nil, nil
		}
		related, isRecord := value.(Record)
		if !isRecord {
			return nil, &FieldAccessError{Descriptor: d.Name, Field: rel.Name, Reason: fmt.Sprintf("expected a record, got %T", value)}
		}
		if isNil(related) {
			return nil, nil
		}
		return s.flat(target, related)
	case Many:
		var records []Record
		if value != nil {
			var isSlice bool
			records, isSlice = value.([]Record)
			if !isSlice {
				return nil, &FieldAccessError{Descriptor: d.Name, Field: rel.Name, Reason: fmt.Sprintf("expected []Record, got %T", value)}
			}
		}
		return &Sequence{s: s, target: target, records: records}, nil
	default:
		return nil, &SchemaMismatchError{Descriptor: d.Name, Reason: fmt.Sprintf("relationship %q has cardinality %s", rel.Name, rel.Cardinality)}
	}
}

// isNil reports whether rec is nil or a nil pointer behind the interface.
func isNil(rec Record) bool {
	if rec == nil {
		return true
	}
	v := reflect.ValueOf(rec)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Sequence is the serialized form of a "many" relationship. Items are
// produced on iteration and every iteration starts over from the first one.
type Sequence struct {
	s       *Serializer
	target  *Descriptor
	records []Record
}

// Len returns the number of items.
func (q *Sequence) Len() int {
	return len(q.records)
}

// All yields each related record as a map of its scalar fields. Iteration
// stops after the first error.
func (q *Sequence) All() iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for _, rec := range q.records {
			m, err := q.s.flat(q.target, rec)
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// Collect materializes the sequence. An empty sequence gives an empty,
// non-nil slice.
func (q *Sequence) Collect() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(q.records))
	for m, err := range q.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// MarshalJSON encodes the sequence as a JSON array.
func (q *Sequence) MarshalJSON() ([]byte, error) {
	items, err := q.Collect()
	if err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

// Plain returns a copy of m with every Sequence materialized into []any,
// for consumers that only accept concrete values.
func Plain(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case *Sequence:
			items, err := val.Collect()
			if err != nil {
				return nil, err
			}
			list := make([]any, len(items))
			for i, item := range items {
				list[i] = item
			}
			out[k] = list
		case map[string]any:
			nested, err := Plain(val)
			if err != nil {
				return nil, err
			}
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out, nil
}
