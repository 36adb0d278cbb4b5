package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sahilm/fuzzy"
)

// resolveMethod finds the method an invoke step calls. A full signature such as
// "mint(address,uint256)" works without an ABI; a bare name is looked up in the
// contract ABI and overloads are told apart by argument count.
func resolveMethod(contractABI *abi.ABI, function string, argc int) (abi.Method, error) {
	if strings.Contains(function, "(") {
		return methodFromSignature(contractABI, function)
	}

	if contractABI == nil {
		return abi.Method{}, fmt.Errorf("no ABI to resolve %s; name the contract or use a full signature", function)
	}

	var named, matching []abi.Method
	for _, m := range contractABI.Methods {
		if m.RawName != function {
			continue
		}
		named = append(named, m)
		if len(m.Inputs) == argc {
			matching = append(matching, m)
		}
	}

	switch len(matching) {
	case 1:
		return matching[0], nil
	case 0:
		if len(named) == 0 {
			names := make([]string, 0, len(contractABI.Methods))
			for _, m := range contractABI.Methods {
				names = append(names, m.RawName)
			}
			sort.Strings(names)
			hint := ""
			if matches := fuzzy.Find(function, names); len(matches) > 0 {
				hint = fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
			}
			return abi.Method{}, fmt.Errorf("contract has no function %s%s", function, hint)
		}
		return abi.Method{}, fmt.Errorf("function %s takes %s, got %d arguments", function, arities(named), argc)
	default:
		sigs := make([]string, len(matching))
		for i, m := range matching {
			sigs[i] = m.Sig
		}
		sort.Strings(sigs)
		return abi.Method{}, fmt.Errorf("function %s is overloaded, use a full signature: %s", function, strings.Join(sigs, ", "))
	}
}

func methodFromSignature(contractABI *abi.ABI, signature string) (abi.Method, error) {
	sel, err := abi.ParseSelector(strings.ReplaceAll(signature, " ", ""))
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid function signature %q: %w", signature, err)
	}

	inputs := make(abi.Arguments, 0, len(sel.Inputs))
	for _, in := range sel.Inputs {
		typ, err := abi.NewType(in.Type, in.InternalType, in.Components)
		if err != nil {
			return abi.Method{}, fmt.Errorf("invalid function signature %q: %w", signature, err)
		}
		inputs = append(inputs, abi.Argument{Name: in.Name, Type: typ})
	}

	method := abi.NewMethod(sel.Name, sel.Name, abi.Function, "nonpayable", false, false, inputs, nil)
	if contractABI != nil {
		for _, m := range contractABI.Methods {
			if m.Sig == method.Sig {
				return m, nil
			}
		}
	}
	return method, nil
}

func arities(methods []abi.Method) string {
	counts := make([]string, 0, len(methods))
	for _, m := range methods {
		counts = append(counts, fmt.Sprintf("%d", len(m.Inputs)))
	}
	sort.Strings(counts)
	return strings.Join(counts, " or ")
}
