package graph

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/errs"
)

// ParamSet is an immutable snapshot of a node's typed parameters. Lookups
// never mutate; replacing a node's parameters means building a new set and
// swapping it in.
type ParamSet struct {
	values map[string]cty.Value
	types  map[string]string
}

var emptyParams = &ParamSet{}

// NewParamSet builds a parameter set from loaded parameter specs. Duplicate
// names are a configuration error.
func NewParamSet(node string, specs []*config.ParamSpec) (*ParamSet, error) {
	ps := &ParamSet{
		values: make(map[string]cty.Value, len(specs)),
		types:  make(map[string]string, len(specs)),
	}
	for _, spec := range specs {
		if _, exists := ps.values[spec.Name]; exists {
			return nil, errs.ConfigurationAt(node, "duplicate parameter %q", spec.Name)
		}
		ps.values[spec.Name] = spec.Value
		ps.types[spec.Name] = spec.Type
	}
	return ps, nil
}

// Has reports whether the set contains a parameter of the given name.
func (ps *ParamSet) Has(name string) bool {
	_, ok := ps.values[name]
	return ok
}

// Float returns a float parameter's value. The second return is false when
// the parameter is absent or not numeric.
func (ps *ParamSet) Float(name string) (float64, bool) {
	v, ok := ps.values[name]
	if !ok || v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

// Int returns an int parameter's value.
func (ps *ParamSet) Int(name string) (int, bool) {
	v, ok := ps.values[name]
	if !ok || ps.types[name] != "int" {
		return 0, false
	}
	i, _ := v.AsBigFloat().Int64()
	return int(i), true
}

// String returns a string parameter's value.
func (ps *ParamSet) String(name string) (string, bool) {
	v, ok := ps.values[name]
	if !ok || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

// Bool returns a bool parameter's value.
func (ps *ParamSet) Bool(name string) (bool, bool) {
	v, ok := ps.values[name]
	if !ok || v.Type() != cty.Bool {
		return false, false
	}
	return v.True(), true
}
