package planfile

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

var integerLiteral = regexp.MustCompile(`^[-+]?(0[xX][0-9a-fA-F_]+|0[oO][0-7_]+|0[bB][01_]+|[0-9][0-9_]*)$`)

// parseParameter converts a YAML node into a plan parameter. Plan parameter
// references ({param: name}) are returned unresolved.
func parseParameter(node *yaml.Node) (domain.Parameter, error) {
	if node.Kind == yaml.AliasNode {
		return parseParameter(node.Alias)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return parseScalar(node)

	case yaml.SequenceNode:
		items := make([]domain.Parameter, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := parseParameter(child)
			if err != nil {
				return domain.Parameter{}, err
			}
			items = append(items, item)
		}
		return domain.Literal(items), nil

	case yaml.MappingNode:
		return parseReference(node)

	default:
		return domain.Parameter{}, fmt.Errorf("unsupported value at line %d", node.Line)
	}
}

func parseScalar(node *yaml.Node) (domain.Parameter, error) {
	tag := node.ShortTag()
	quoted := node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0

	switch {
	case tag == "!!null":
		return domain.Parameter{}, fmt.Errorf("null is not a valid value (line %d)", node.Line)

	case tag == "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return domain.Parameter{}, err
		}
		return domain.Literal(b), nil

	// Integers too large for 64 bits resolve as floats; keep them exact
	case !quoted && (tag == "!!int" || tag == "!!float") && integerLiteral.MatchString(node.Value):
		n, ok := new(big.Int).SetString(strings.TrimPrefix(node.Value, "+"), 0)
		if !ok {
			return domain.Parameter{}, fmt.Errorf("invalid integer %q (line %d)", node.Value, node.Line)
		}
		return domain.Literal(n), nil

	case tag == "!!float":
		return domain.Parameter{}, fmt.Errorf("fractional number %s is not supported; write a string such as \"%s ether\" (line %d)", node.Value, node.Value, node.Line)

	default:
		return domain.Literal(node.Value), nil
	}
}

// parseReference decodes {secret: NAME}, {stepOutput: id, field: f} or {param: name}
func parseReference(node *yaml.Node) (domain.Parameter, error) {
	fields := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return domain.Parameter{}, fmt.Errorf("%s must be a string (line %d)", key.Value, value.Line)
		}
		fields[key.Value] = value.Value
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	shape := strings.Join(keys, ",")

	switch shape {
	case "secret":
		if fields["secret"] == "" {
			return domain.Parameter{}, fmt.Errorf("secret name is empty (line %d)", node.Line)
		}
		return domain.SecretRef(fields["secret"]), nil

	case "stepOutput", "field,stepOutput":
		if fields["stepOutput"] == "" {
			return domain.Parameter{}, fmt.Errorf("stepOutput is empty (line %d)", node.Line)
		}
		field := fields["field"]
		if field == "" {
			field = domain.OutputAddress
		}
		return domain.OutputRef(fields["stepOutput"], field), nil

	case "param":
		if fields["param"] == "" {
			return domain.Parameter{}, fmt.Errorf("param name is empty (line %d)", node.Line)
		}
		return paramRef(fields["param"]), nil

	default:
		return domain.Parameter{}, fmt.Errorf("unsupported mapping {%s} (line %d); expected {secret}, {stepOutput, field} or {param}", shape, node.Line)
	}
}

// planParam marks a not yet substituted {param: name} literal
type planParam string

func paramRef(name string) domain.Parameter {
	return domain.Literal(planParam(name))
}

// parameterSet holds the resolved values of a plan's parameters
type parameterSet struct {
	values map[string]domain.Parameter
	// missing holds declared parameters with neither default nor override
	missing map[string]bool
}

func newParameterSet(planName string, defaults map[string]yaml.Node, overrides map[string]*yaml.Node) (*parameterSet, error) {
	set := &parameterSet{
		values:  make(map[string]domain.Parameter),
		missing: make(map[string]bool),
	}

	for name := range overrides {
		if _, declared := defaults[name]; !declared {
			return nil, &domain.MalformedPlanError{Plan: planName, Reason: fmt.Sprintf("unknown parameter %q", name)}
		}
	}

	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := defaults[name]
		source := &node
		if o, ok := overrides[name]; ok {
			source = o
		}
		if source.Kind == yaml.ScalarNode && source.ShortTag() == "!!null" {
			set.missing[name] = true
			continue
		}

		p, err := parseParameter(source)
		if err != nil {
			return nil, &domain.MalformedPlanError{Plan: planName, Reason: fmt.Sprintf("parameter %s: %v", name, err)}
		}
		if containsParamRef(p) {
			return nil, &domain.MalformedPlanError{Plan: planName, Reason: fmt.Sprintf("parameter %s: parameters cannot reference other parameters", name)}
		}
		set.values[name] = p
	}

	return set, nil
}

// substitute replaces {param: name} references with parameter values
func (s *parameterSet) substitute(p domain.Parameter) (domain.Parameter, error) {
	if p.Kind != domain.ParamLiteral {
		return p, nil
	}

	switch v := p.Literal.(type) {
	case planParam:
		name := string(v)
		if s.missing[name] {
			return p, fmt.Errorf("missing required parameter %q", name)
		}
		value, ok := s.values[name]
		if !ok {
			return p, fmt.Errorf("undeclared parameter %q", name)
		}
		return value, nil

	case []domain.Parameter:
		items := make([]domain.Parameter, len(v))
		for i, item := range v {
			resolved, err := s.substitute(item)
			if err != nil {
				return p, err
			}
			items[i] = resolved
		}
		return domain.Literal(items), nil

	default:
		return p, nil
	}
}

func containsParamRef(p domain.Parameter) bool {
	switch v := p.Literal.(type) {
	case planParam:
		return true
	case []domain.Parameter:
		for _, item := range v {
			if containsParamRef(item) {
				return true
			}
		}
	}
	return false
}

// parseParameterValue parses a command line parameter value written in plan syntax
func parseParameterValue(raw string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		// An empty value is an empty string
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: raw}, nil
	}
	return doc.Content[0], nil
}

// readParametersFile reads a YAML or JSON object of parameter values
func readParametersFile(path string) (map[string]*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	var values map[string]yaml.Node
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, &domain.MalformedPlanError{Plan: planName(path), Reason: fmt.Sprintf("invalid parameters file: %v", err)}
	}

	out := make(map[string]*yaml.Node, len(values))
	for k := range values {
		node := values[k]
		out[k] = &node
	}
	return out, nil
}
