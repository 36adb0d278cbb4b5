package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// CheckStep resolves what a step would send without a connection: the artifact
// of a deploy, the method of an invoke and every argument already known.
func (c *Client) CheckStep(check domain.StepCheck) error {
	if _, err := toValue(check.Value); err != nil {
		return err
	}

	switch check.Kind {
	case domain.StepKindDeploy:
		art, err := c.artifacts.Find(check.Contract)
		if err != nil {
			return err
		}
		if len(art.Bytecode) == 0 {
			return fmt.Errorf("%s has no bytecode (abstract contract or interface?)", art.Key())
		}
		if err := checkArgs(art.ABI.Constructor.Inputs, check.Args); err != nil {
			return fmt.Errorf("constructor of %s: %w", art.Name, err)
		}
		return nil

	case domain.StepKindInvoke:
		if check.Target != "" && !common.IsHexAddress(check.Target) {
			return fmt.Errorf("%w: %q", domain.ErrInvalidAddress, check.Target)
		}

		var contractABI *abi.ABI
		if check.Contract != "" {
			art, err := c.artifacts.Find(check.Contract)
			if err != nil {
				return err
			}
			contractABI = &art.ABI
		}
		method, err := resolveMethod(contractABI, check.Function, len(check.Args))
		if err != nil {
			return err
		}
		if err := checkArgs(method.Inputs, check.Args); err != nil {
			return fmt.Errorf("%s: %w", method.Sig, err)
		}
		return nil

	default:
		return fmt.Errorf("unknown step kind %q", check.Kind)
	}
}

// checkArgs is coerceArgs for partially known values: arguments that contain
// a nil are skipped.
func checkArgs(inputs abi.Arguments, values []any) error {
	if len(inputs) != len(values) {
		return fmt.Errorf("expected %d arguments, got %d", len(inputs), len(values))
	}
	for i, input := range inputs {
		if !known(values[i]) {
			continue
		}
		if _, err := coerce(input.Type, values[i]); err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
	}
	return nil
}

func known(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case []any:
		for _, item := range v {
			if !known(item) {
				return false
			}
		}
	}
	return true
}
