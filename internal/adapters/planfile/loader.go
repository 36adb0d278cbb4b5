package planfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// rawPlan is the on-disk plan definition. JSON plans decode through the same
// YAML decoder since JSON is valid YAML.
type rawPlan struct {
	Name       string               `yaml:"name"`
	Parameters map[string]yaml.Node `yaml:"parameters"`
	Steps      []rawStep            `yaml:"steps"`
}

type rawStep struct {
	ID        string      `yaml:"id"`
	Kind      string      `yaml:"kind"`
	Contract  string      `yaml:"contract"`
	Target    *yaml.Node  `yaml:"target"`
	Function  string      `yaml:"function"`
	Args      []yaml.Node `yaml:"args"`
	DependsOn []string    `yaml:"dependsOn"`
	Value     *yaml.Node  `yaml:"value"`
	Timeout   string      `yaml:"timeout"`
}

// Loader reads plan definitions from YAML or JSON files
type Loader struct{}

// NewLoader creates a new plan file loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads, parses and validates the plan at req.Path
func (l *Loader) Load(ctx context.Context, req usecase.PlanRequest) (*domain.Plan, error) {
	name := planName(req.Path)

	switch strings.ToLower(filepath.Ext(req.Path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, &domain.MalformedPlanError{Plan: name, Reason: fmt.Sprintf("unsupported plan format %q (expected .yaml, .yml or .json)", filepath.Ext(req.Path))}
	}

	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	overrides := make(map[string]*yaml.Node)
	if req.ParametersFile != "" {
		fileOverrides, err := readParametersFile(req.ParametersFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fileOverrides {
			overrides[k] = v
		}
	}
	for k, raw := range req.Parameters {
		node, err := parseParameterValue(raw)
		if err != nil {
			return nil, &domain.MalformedPlanError{Plan: name, Reason: fmt.Sprintf("parameter %s: %v", k, err)}
		}
		overrides[k] = node
	}

	plan, err := Parse(name, data, overrides)
	if err != nil {
		return nil, err
	}
	plan.Source = req.Path
	return plan, nil
}

// Parse decodes and validates a plan definition. Overrides replace the
// defaults of the plan's parameters.
func Parse(name string, data []byte, overrides map[string]*yaml.Node) (*domain.Plan, error) {
	var raw rawPlan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.MalformedPlanError{Plan: name, Reason: "plan is empty"}
		}
		return nil, &domain.MalformedPlanError{Plan: name, Reason: fmt.Sprintf("invalid definition: %v", err)}
	}

	if raw.Name != "" {
		name = raw.Name
	}

	params, err := newParameterSet(name, raw.Parameters, overrides)
	if err != nil {
		return nil, err
	}

	plan := &domain.Plan{Name: name}
	for i, rs := range raw.Steps {
		step, err := convertStep(name, i, rs, params)
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, step)
	}

	if err := Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func convertStep(planName string, index int, rs rawStep, params *parameterSet) (*domain.Step, error) {
	label := rs.ID
	if label == "" {
		label = fmt.Sprintf("#%d", index+1)
	}
	malformed := func(format string, args ...any) error {
		return &domain.MalformedPlanError{Plan: planName, StepID: label, Reason: fmt.Sprintf(format, args...)}
	}

	step := &domain.Step{
		ID:        rs.ID,
		Kind:      domain.StepKind(strings.ToLower(rs.Kind)),
		Contract:  rs.Contract,
		Function:  rs.Function,
		DependsOn: rs.DependsOn,
		Index:     index,
	}

	parse := func(node *yaml.Node, what string) (domain.Parameter, error) {
		p, err := parseParameter(node)
		if err != nil {
			return p, malformed("%s: %v", what, err)
		}
		p, err = params.substitute(p)
		if err != nil {
			return p, malformed("%s: %v", what, err)
		}
		return p, nil
	}

	for i := range rs.Args {
		p, err := parse(&rs.Args[i], fmt.Sprintf("argument %d", i+1))
		if err != nil {
			return nil, err
		}
		step.Args = append(step.Args, p)
	}

	if rs.Target != nil {
		p, err := parse(rs.Target, "target")
		if err != nil {
			return nil, err
		}
		step.Target = &p
	}

	if rs.Value != nil {
		p, err := parse(rs.Value, "value")
		if err != nil {
			return nil, err
		}
		step.Value = &p
	}

	if rs.Timeout != "" {
		d, err := time.ParseDuration(rs.Timeout)
		if err != nil || d <= 0 {
			return nil, malformed("invalid timeout %q", rs.Timeout)
		}
		step.Timeout = d
	}

	return step, nil
}

func planName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
