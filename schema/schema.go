/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"regexp"

	"github.com/suparena/itemstore/errors"
	"github.com/suparena/itemstore/index"
	"github.com/suparena/itemstore/registry"
	"github.com/suparena/itemstore/storagemodels"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Reader exposes property values by name.
type Reader interface {
	Get(name string) (any, bool)
}

// Property declares a stored property.
type Property struct {
	Name     string
	Type     string // registered type name, defaults to "string"
	Default  any
	Required bool
}

// Computed declares a property derived from other properties. It is never stored.
type Computed struct {
	Name   string
	Type   string // optional type used when serializing derived values for output
	Derive func(Reader) any
}

// IndexDefinition declares an index on a property or computed property.
type IndexDefinition struct {
	Property string
	Type     string // registered index kind, defaults to "eq"
}

// Definition is the declarative description of a model.
type Definition struct {
	Name       string
	Properties []Property
	Computed   []Computed
	Indices    []IndexDefinition
}

// CompiledProperty is a property with its serializer resolved.
type CompiledProperty struct {
	Property
	Serializer registry.Serializer
}

// CompiledComputed is a computed property with its optional serializer resolved.
type CompiledComputed struct {
	Computed
	Serializer registry.Serializer
}

// Binding couples a property and an operator to an index handler.
type Binding struct {
	Property string
	Operator string
	Computed *CompiledComputed // nil for plain properties
	Handler  index.Handler
}

// Value extracts the value this binding indexes from r.
func (b *Binding) Value(r Reader) any {
	if b.Computed != nil {
		return b.Computed.Derive(r)
	}
	v, _ := r.Get(b.Property)
	return v
}

// Schema is the immutable compiled form of a Definition.
type Schema struct {
	Name     string
	props    []*CompiledProperty
	propMap  map[string]*CompiledProperty
	computed map[string]*CompiledComputed
	indices  []*Binding
}

// Compile validates def, resolves its types and creates one index handler per
// declared index.
func Compile(def Definition) (*Schema, error) {
	if !namePattern.MatchString(def.Name) {
		return nil, errors.NewValidationError("name", fmt.Sprintf("invalid model name %q", def.Name))
	}

	s := &Schema{
		Name:     def.Name,
		propMap:  make(map[string]*CompiledProperty, len(def.Properties)),
		computed: make(map[string]*CompiledComputed, len(def.Computed)),
	}

	for _, p := range def.Properties {
		if !namePattern.MatchString(p.Name) || p.Name == "uuid" {
			return nil, errors.NewValidationError(p.Name, "invalid property name")
		}
		if _, dup := s.propMap[p.Name]; dup {
			return nil, errors.NewValidationError(p.Name, "duplicate property")
		}
		if p.Type == "" {
			p.Type = TypeString
		}
		ser, err := registry.GetSerializer(p.Type)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		if p.Default != nil {
			if p.Default, err = ser.Coerce(p.Default); err != nil {
				return nil, errors.NewValidationError(p.Name, "invalid default: "+err.Error())
			}
		}
		cp := &CompiledProperty{Property: p, Serializer: ser}
		s.props = append(s.props, cp)
		s.propMap[p.Name] = cp
	}

	for _, c := range def.Computed {
		if !namePattern.MatchString(c.Name) || c.Name == "uuid" {
			return nil, errors.NewValidationError(c.Name, "invalid computed property name")
		}
		if _, dup := s.propMap[c.Name]; dup {
			return nil, errors.NewValidationError(c.Name, "computed property shadows property")
		}
		if _, dup := s.computed[c.Name]; dup {
			return nil, errors.NewValidationError(c.Name, "duplicate computed property")
		}
		if c.Derive == nil {
			return nil, errors.NewValidationError(c.Name, "computed property lacks derivation")
		}
		cc := &CompiledComputed{Computed: c}
		if c.Type != "" {
			ser, err := registry.GetSerializer(c.Type)
			if err != nil {
				return nil, fmt.Errorf("computed property %s: %w", c.Name, err)
			}
			cc.Serializer = ser
		}
		s.computed[c.Name] = cc
	}

	for _, idx := range def.Indices {
		if idx.Type == "" {
			idx.Type = index.KindEq
		}
		b := &Binding{Property: idx.Property, Operator: idx.Type}
		if cc, ok := s.computed[idx.Property]; ok {
			b.Computed = cc
		} else if _, ok := s.propMap[idx.Property]; !ok {
			return nil, errors.NewValidationError(idx.Property, "index on unknown property")
		}
		for _, other := range s.indices {
			if other.Property == b.Property && other.Operator == b.Operator {
				return nil, errors.NewValidationError(idx.Property, "duplicate index")
			}
		}
		handler, err := registry.NewIndex(idx.Type)
		if err != nil {
			return nil, fmt.Errorf("index on %s: %w", idx.Property, err)
		}
		b.Handler = handler
		s.indices = append(s.indices, b)
	}

	return s, nil
}

// Names lists the stored properties in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.props))
	for _, p := range s.props {
		names = append(names, p.Name)
	}
	return names
}

// Property looks up a stored property.
func (s *Schema) Property(name string) (*CompiledProperty, bool) {
	p, ok := s.propMap[name]
	return p, ok
}

// ComputedProperty looks up a computed property.
func (s *Schema) ComputedProperty(name string) (*CompiledComputed, bool) {
	c, ok := s.computed[name]
	return c, ok
}

// ComputedNames lists the computed properties.
func (s *Schema) ComputedNames() []string {
	names := make([]string, 0, len(s.computed))
	for name := range s.computed {
		names = append(names, name)
	}
	return names
}

// Indices returns the index bindings in declaration order.
func (s *Schema) Indices() []*Binding {
	return s.indices
}

// Index returns the binding for property and operator, or nil.
func (s *Schema) Index(property, operator string) *Binding {
	if operator == "" {
		operator = index.KindEq
	}
	for _, b := range s.indices {
		if b.Property == property && b.Operator == operator {
			return b
		}
	}
	return nil
}

// Coerce normalizes value for the named stored property.
func (s *Schema) Coerce(name string, value any) (any, error) {
	p, ok := s.propMap[name]
	if !ok {
		return nil, errors.NewValidationError(name, "unknown property")
	}
	v, err := p.Serializer.Coerce(value)
	if err != nil {
		return nil, errors.NewValidationError(name, err.Error())
	}
	return v, nil
}

// Defaults returns the default value of every stored property.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.props))
	for _, p := range s.props {
		out[p.Name] = p.Default
	}
	return out
}

// Validate checks required properties of r.
func (s *Schema) Validate(r Reader) []error {
	var errs []error
	for _, p := range s.props {
		if !p.Required {
			continue
		}
		if v, _ := r.Get(p.Name); v == nil || v == "" {
			errs = append(errs, errors.NewValidationError(p.Name, "value is required"))
		}
	}
	return errs
}

// Serialize converts the stored properties of values into a record.
func (s *Schema) Serialize(values map[string]any, binary bool) (storagemodels.Record, error) {
	rec := make(storagemodels.Record, len(s.props))
	for _, p := range s.props {
		v, err := p.Serializer.Serialize(values[p.Name], binary)
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", p.Name, err)
		}
		rec[p.Name] = v
	}
	return rec, nil
}

// Deserialize converts a record into in-memory values. Unknown fields are dropped.
func (s *Schema) Deserialize(rec storagemodels.Record) (map[string]any, error) {
	values := make(map[string]any, len(s.props))
	for _, p := range s.props {
		raw, ok := rec[p.Name]
		if !ok {
			values[p.Name] = nil
			continue
		}
		v, err := p.Serializer.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("deserialize %s: %w", p.Name, err)
		}
		values[p.Name] = v
	}
	return values, nil
}

// View is a read-only Reader over deserialized values that also derives
// computed properties.
type View struct {
	schema *Schema
	values map[string]any
}

// NewView wraps values.
func (s *Schema) NewView(values map[string]any) *View {
	return &View{schema: s, values: values}
}

// Get returns a stored or computed property value.
func (v *View) Get(name string) (any, bool) {
	if val, ok := v.values[name]; ok {
		return val, true
	}
	if c, ok := v.schema.computed[name]; ok {
		return c.Derive(v), true
	}
	return nil, false
}
