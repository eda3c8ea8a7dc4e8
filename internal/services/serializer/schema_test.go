package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Register(t *testing.T) {
	tests := []struct {
		name    string
		desc    *Descriptor
		wantErr bool
	}{
		{
			name: "valid descriptor",
			desc: &Descriptor{Name: "tag", Fields: []string{"id", "label"}},
		},
		{
			name:    "nil descriptor",
			desc:    nil,
			wantErr: true,
		},
		{
			name:    "empty name",
			desc:    &Descriptor{Fields: []string{"id"}},
			wantErr: true,
		},
		{
			name:    "duplicate field",
			desc:    &Descriptor{Name: "tag", Fields: []string{"id", "id"}},
			wantErr: true,
		},
		{
			name: "relationship shadows field",
			desc: &Descriptor{
				Name:          "tag",
				Fields:        []string{"id", "owner"},
				Relationships: []*Relationship{{Name: "owner", Target: "customer"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchema().Register(tt.desc)
			if (err != nil) != tt.wantErr {
				t.Errorf("Schema.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_RegisterTwice(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.Register(&Descriptor{Name: "tag"}))
	assert.Error(t, s.Register(&Descriptor{Name: "tag"}))
	assert.Equal(t, []string{"tag"}, s.Descriptors())
}

func TestSchema_Validate(t *testing.T) {
	build := func(t *testing.T, rules map[string][]ExclusionRule, reviewInverse string) *Schema {
		t.Helper()
		s := NewSchema()
		require.NoError(t, s.Register(&Descriptor{
			Name:          "customer",
			Fields:        []string{"id"},
			Relationships: []*Relationship{{Name: "reviews", Target: "review", Cardinality: Many, Inverse: "customer"}},
		}))
		require.NoError(t, s.Register(&Descriptor{
			Name:          "review",
			Fields:        []string{"id"},
			Relationships: []*Relationship{{Name: "customer", Target: "customer", Cardinality: One, Inverse: reviewInverse}},
		}))
		for owner, list := range rules {
			for _, r := range list {
				s.Exclude(owner, r)
			}
		}
		return s
	}

	tests := []struct {
		name          string
		rules         map[string][]ExclusionRule
		reviewInverse string
		wantErr       string
	}{
		{
			name: "one direction excluded",
			rules: map[string][]ExclusionRule{
				"customer": {{Descriptor: "review", Relationship: "customer"}},
			},
			reviewInverse: "reviews",
		},
		{
			name: "both directions excluded",
			rules: map[string][]ExclusionRule{
				"customer": {{Descriptor: "review", Relationship: "customer"}},
				"review":   {{Descriptor: "customer", Relationship: "reviews"}},
			},
			reviewInverse: "reviews",
		},
		{
			name:          "no direction excluded",
			reviewInverse: "reviews",
			wantErr:       "no direction excluded",
		},
		{
			name: "inverse does not point back",
			rules: map[string][]ExclusionRule{
				"customer": {{Descriptor: "review", Relationship: "customer"}},
			},
			reviewInverse: "orders",
			wantErr:       "does not point back",
		},
		{
			name: "rule references unknown relationship",
			rules: map[string][]ExclusionRule{
				"customer": {
					{Descriptor: "review", Relationship: "customer"},
					{Descriptor: "review", Relationship: "author"},
				},
			},
			reviewInverse: "reviews",
			wantErr:       "unknown relationship",
		},
		{
			name: "rule owner not registered",
			rules: map[string][]ExclusionRule{
				"customer": {{Descriptor: "review", Relationship: "customer"}},
				"order":    {{Descriptor: "review", Relationship: "customer"}},
			},
			reviewInverse: "reviews",
			wantErr:       "owner \"order\" not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := build(t, tt.rules, tt.reviewInverse).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_ValidateUnknownTarget(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.Register(&Descriptor{
		Name:          "customer",
		Relationships: []*Relationship{{Name: "orders", Target: "order", Cardinality: Many}},
	}))

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `target "order" not registered`)
}

func TestCardinality_String(t *testing.T) {
	assert.Equal(t, "one", One.String())
	assert.Equal(t, "many", Many.String())
	assert.Equal(t, "Cardinality(7)", Cardinality(7).String())
}
