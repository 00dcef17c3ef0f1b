package cel

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// bitwiseFunctions returns CEL function declarations for bitwise operations.
func bitwiseFunctions() cel.EnvOption {
	return cel.Lib(&bitwiseLib{})
}

// performBitwiseOp applies op to two integer operands, promoting to uint64.
func performBitwiseOp(lhs, rhs ref.Val, op func(uint64, uint64) uint64) ref.Val {
	l, lOk := asUint64(lhs)
	r, rOk := asUint64(rhs)
	if !lOk || !rOk {
		return types.NewErr("bitwise arguments must be integers, got %T and %T", lhs.Value(), rhs.Value())
	}

	result := op(l, r)
	// Results that fit keep the Int type so they mix with literals.
	if result <= math.MaxInt64 {
		return types.Int(result)
	}
	return types.Uint(result)
}

func asUint64(v ref.Val) (uint64, bool) {
	switch n := v.(type) {
	case types.Int:
		return uint64(n), true
	case types.Uint:
		return uint64(n), true
	}
	return 0, false
}

type bitwiseLib struct{}

func (*bitwiseLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("bitAnd",
			cel.Overload("bitand_numeric", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a & b })
				}),
			),
		),

		cel.Function("bitOr",
			cel.Overload("bitor_numeric", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a | b })
				}),
			),
		),

		cel.Function("bitXor",
			cel.Overload("bitxor_numeric", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a ^ b })
				}),
			),
		),

		cel.Function("bitShiftLeft",
			cel.Overload("bitshiftleft_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					left, ok1 := lhs.(types.Int)
					right, ok2 := rhs.(types.Int)
					if !ok1 || !ok2 {
						return types.NewErr("arguments to bitShiftLeft must be integers")
					}
					if right < 0 {
						return types.NewErr("shift amount cannot be negative: %v", right)
					}
					return types.Int(left << uint(right))
				}),
			),
		),

		cel.Function("bitShiftRight",
			cel.Overload("bitshiftright_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					left, ok1 := lhs.(types.Int)
					right, ok2 := rhs.(types.Int)
					if !ok1 || !ok2 {
						return types.NewErr("arguments to bitShiftRight must be integers")
					}
					if right < 0 {
						return types.NewErr("shift amount cannot be negative: %v", right)
					}
					return types.Int(left >> uint(right))
				}),
			),
		),
	}
}

func (*bitwiseLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
