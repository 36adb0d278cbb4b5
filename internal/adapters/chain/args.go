package chain

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Denominations accepted in amounts such as "0.5 ether"
var units = map[string]int{
	"wei":    0,
	"kwei":   3,
	"mwei":   6,
	"gwei":   9,
	"szabo":  12,
	"finney": 15,
	"ether":  18,
}

// ParseAmount parses an integer, a 0x quantity or a decimal amount followed by
// a unit. The result must be a whole number of wei.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	number, unit := s, ""
	if fields := strings.Fields(s); len(fields) == 2 {
		number, unit = fields[0], strings.ToLower(fields[1])
	} else if len(fields) > 2 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	number = strings.ReplaceAll(number, "_", "")

	if unit == "" {
		if n, ok := new(big.Int).SetString(number, 0); ok {
			return n, nil
		}
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	decimals, ok := units[unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q in amount %q", unit, s)
	}

	r, ok := new(big.Rat).SetString(number)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// coerceArgs converts resolved plan values to the Go types abi.Arguments.Pack expects
func coerceArgs(inputs abi.Arguments, values []any) ([]any, error) {
	if len(inputs) != len(values) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(values))
	}
	out := make([]any, len(values))
	for i, input := range inputs {
		v, err := coerce(input.Type, values[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(b) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, fmt.Errorf("expected a boolean, got %v", v)

	case abi.StringTy:
		switch s := v.(type) {
		case string:
			return s, nil
		case *big.Int:
			return s.String(), nil
		}
		return nil, fmt.Errorf("expected a string, got %v", v)

	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)

	case abi.BytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex bytes, got %v", v)
		}
		return hexutil.Decode(s)

	case abi.FixedBytesTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected hex bytes, got %v", v)
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit bytes%d", len(b), t.Size)
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list, got %v", v)
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}

		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			elem, err := coerce(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil

	default:
		return nil, fmt.Errorf("unsupported parameter type %s", t.String())
	}
}

func toAddress(v any) (common.Address, error) {
	switch a := v.(type) {
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, fmt.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(a), nil
	case *big.Int:
		if a.Sign() < 0 || a.BitLen() > 160 {
			return common.Address{}, fmt.Errorf("invalid address %s", a)
		}
		return common.BigToAddress(a), nil
	}
	return common.Address{}, fmt.Errorf("expected an address, got %v", v)
}

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case string:
		return ParseAmount(n)
	case nil:
		return nil, fmt.Errorf("missing value")
	}
	return nil, fmt.Errorf("expected a number, got %v", v)
}

// fitInteger checks the range of n and converts it to the native Go type
// go-ethereum uses for integers up to 64 bits
func fitInteger(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for %s", n, t.String())
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
	}

	goType := t.GetType()
	if goType == reflect.TypeOf((*big.Int)(nil)) {
		return new(big.Int).Set(n), nil
	}

	out := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		out.SetUint(n.Uint64())
	} else {
		out.SetInt(n.Int64())
	}
	return out.Interface(), nil
}

// toValue converts a resolved step value to wei
func toValue(v any) (*big.Int, error) {
	if v == nil {
		return nil, nil
	}
	n, err := toBigInt(v)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("value: negative amount %s", n)
	}
	return n, nil
}
