package hcl

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/predictgrid/internal/config"
	"github.com/vk/predictgrid/internal/errs"
	"github.com/vk/predictgrid/internal/schema"
)

// paramTypes maps the declared parameter type names to their cty types.
var paramTypes = map[string]cty.Type{
	"string": cty.String,
	"int":    cty.Number,
	"float":  cty.Number,
	"bool":   cty.Bool,
}

// translateNode converts the HCL-specific node schema into the agnostic
// model, evaluating and type-checking every parameter value.
func (l *Loader) translateNode(n *schema.Node) (*config.NodeSpec, error) {
	spec := &config.NodeSpec{
		Name: n.Name,
		Type: n.Type,
	}

	if n.Endpoint != nil {
		spec.Endpoint = &config.EndpointSpec{
			Kind:    n.Endpoint.Kind,
			Address: n.Endpoint.Address,
		}
	}

	for _, p := range n.Parameters {
		ps, err := l.translateParameter(n.Name, p)
		if err != nil {
			return nil, err
		}
		spec.Parameters = append(spec.Parameters, ps)
	}

	for _, c := range n.Children {
		spec.Children = append(spec.Children, &config.ChildSpec{
			Branch: c.Branch,
			Node:   c.Node,
		})
	}

	return spec, nil
}

// translateParameter evaluates a parameter's value expression and converts it
// to the declared type. Type mismatches are configuration errors, not
// runtime ones.
func (l *Loader) translateParameter(node string, p *schema.Parameter) (*config.ParamSpec, error) {
	want, ok := paramTypes[p.Type]
	if !ok {
		return nil, errs.ConfigurationAt(node,
			"parameter %q declares unknown type %q (want string, int, float, or bool)",
			p.Name, p.Type)
	}

	val, diags := p.Value.Value(nil)
	if diags.HasErrors() {
		return nil, errs.ConfigurationAt(node,
			"parameter %q value cannot be evaluated: %s", p.Name, diags.Error())
	}
	if val.IsNull() {
		return nil, errs.ConfigurationAt(node, "parameter %q value is null", p.Name)
	}

	val, err := convert.Convert(val, want)
	if err != nil {
		return nil, errs.ConfigurationAt(node,
			"parameter %q value does not match declared type %q: %s", p.Name, p.Type, err)
	}

	if p.Type == "int" {
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return nil, errs.ConfigurationAt(node,
				"parameter %q declared int but value is not a whole number", p.Name)
		}
	}

	return &config.ParamSpec{Name: p.Name, Type: p.Type, Value: val}, nil
}
