package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

func clampFunctions() cel.EnvOption {
	return cel.Lib(&clampLib{})
}

type clampLib struct{}

func (*clampLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("min",
			cel.Overload("min_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					x, ok1 := lhs.(types.Int)
					y, ok2 := rhs.(types.Int)
					if !ok1 || !ok2 {
						return types.NewErr("arguments to min must be integers")
					}
					if x < y {
						return x
					}
					return y
				}),
			),
		),

		cel.Function("max",
			cel.Overload("max_int_int", []*cel.Type{cel.IntType, cel.IntType}, cel.IntType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					x, ok1 := lhs.(types.Int)
					y, ok2 := rhs.(types.Int)
					if !ok1 || !ok2 {
						return types.NewErr("arguments to max must be integers")
					}
					if x > y {
						return x
					}
					return y
				}),
			),
		),
	}
}

func (*clampLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
