package domain

import (
	"fmt"
	"math/big"
	"time"
)

// StepKind distinguishes contract deployments from function invocations
type StepKind string

const (
	StepKindDeploy StepKind = "deploy"
	StepKindInvoke StepKind = "invoke"
)

// Output fields a step can expose to later steps
const (
	OutputAddress = "address"
	OutputTxID    = "txId"
)

// Plan is a named, ordered collection of steps
type Plan struct {
	Name   string
	Source string // path of the definition file, empty for in-memory plans
	Steps  []*Step
}

// Step is a single deploy or invoke action
type Step struct {
	ID   string
	Kind StepKind

	// Contract is the artifact name for deploys. For invokes it names the ABI
	// used to encode the call and is optional when the target is a deploy step.
	Contract string

	// Target is the contract address an invoke is sent to
	Target *Parameter
	// Function is a method name or a full signature such as mint(address,uint256)
	Function string

	Args      []Parameter
	Value     *Parameter
	DependsOn []string
	Timeout   time.Duration

	// Index is the declaration position within the plan
	Index int
}

// Step returns the step with the given id
func (p *Plan) Step(id string) (*Step, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// StepIDs returns the identifiers in declaration order
func (p *Plan) StepIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID
	}
	return ids
}

// Parameters returns every parameter of the step, including target and value
func (s *Step) Parameters() []Parameter {
	params := make([]Parameter, 0, len(s.Args)+2)
	if s.Target != nil {
		params = append(params, *s.Target)
	}
	params = append(params, s.Args...)
	if s.Value != nil {
		params = append(params, *s.Value)
	}
	return params
}

// References returns the ids of steps this step depends on, without duplicates.
// Data references come first, then explicit dependsOn edges.
func (s *Step) References() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			refs = append(refs, id)
		}
	}
	for _, p := range s.Parameters() {
		for _, ref := range p.StepRefs() {
			add(ref.StepID)
		}
	}
	for _, dep := range s.DependsOn {
		add(dep)
	}
	return refs
}

// Produces reports whether the step kind exposes the given output field
func (k StepKind) Produces(field string) bool {
	switch field {
	case OutputTxID:
		return true
	case OutputAddress:
		return k == StepKindDeploy
	default:
		return false
	}
}

// ParameterKind identifies how a parameter value is obtained
type ParameterKind int

const (
	ParamLiteral ParameterKind = iota
	ParamSecret
	ParamStepOutput
)

func (k ParameterKind) String() string {
	switch k {
	case ParamLiteral:
		return "literal"
	case ParamSecret:
		return "secret"
	case ParamStepOutput:
		return "stepOutput"
	default:
		return "unknown"
	}
}

// Parameter is a literal, a secret reference or a reference to another step's output.
//
// Literal values are one of string, bool, *big.Int or []Parameter (a list whose
// elements may themselves be references).
type Parameter struct {
	Kind    ParameterKind
	Literal any
	Secret  string
	StepRef StepOutputRef
}

// StepOutputRef points at an output field of another step
type StepOutputRef struct {
	StepID string
	Field  string
}

func (r StepOutputRef) String() string {
	return fmt.Sprintf("%s.%s", r.StepID, r.Field)
}

// Literal creates a literal parameter
func Literal(v any) Parameter {
	return Parameter{Kind: ParamLiteral, Literal: v}
}

// SecretRef creates a secret parameter
func SecretRef(name string) Parameter {
	return Parameter{Kind: ParamSecret, Secret: name}
}

// OutputRef creates a step output parameter
func OutputRef(stepID, field string) Parameter {
	return Parameter{Kind: ParamStepOutput, StepRef: StepOutputRef{StepID: stepID, Field: field}}
}

// StepRefs returns all step output references contained in the parameter,
// descending into literal lists.
func (p Parameter) StepRefs() []StepOutputRef {
	switch p.Kind {
	case ParamStepOutput:
		return []StepOutputRef{p.StepRef}
	case ParamLiteral:
		list, ok := p.Literal.([]Parameter)
		if !ok {
			return nil
		}
		var refs []StepOutputRef
		for _, item := range list {
			refs = append(refs, item.StepRefs()...)
		}
		return refs
	default:
		return nil
	}
}

// String renders the parameter for plan listings. Secrets are never expanded.
func (p Parameter) String() string {
	switch p.Kind {
	case ParamSecret:
		return fmt.Sprintf("${%s}", p.Secret)
	case ParamStepOutput:
		return p.StepRef.String()
	default:
		return formatLiteral(p.Literal)
	}
}

func formatLiteral(v any) string {
	switch val := v.(type) {
	case *big.Int:
		return val.String()
	case []Parameter:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + "]"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
