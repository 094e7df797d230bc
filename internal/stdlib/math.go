package stdlib

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/vm"
)

func installMath(machine *vm.VM) {
	machine.RegisterNative(config.SqrtFuncName, nativeSqrt)
	machine.RegisterNative(config.PowFuncName, nativePow)
	machine.RegisterNative(config.SinFuncName, nativeSin)
	machine.RegisterNative(config.CosFuncName, nativeCos)
	machine.RegisterNative(config.FloorFuncName, nativeFloor)
	machine.RegisterNative(config.CeilFuncName, nativeCeil)
	machine.RegisterNative(config.RoundFuncName, nativeRound)
	machine.RegisterNative(config.AbsFuncName, nativeAbs)
	machine.RegisterNative(config.MinFuncName, nativeMin)
	machine.RegisterNative(config.MaxFuncName, nativeMax)
	machine.RegisterNative(config.RandomFuncName, nativeRandom)
}

// argNumber widens args[i] to float64, rejecting non-numeric values.
func argNumber(name string, args []Value, i int) (float64, error) {
	v := args[i]
	switch {
	case v.IsInt():
		return float64(v.AsInt()), nil
	case v.IsFloat():
		return v.AsFloat(), nil
	}
	return 0, fmt.Errorf("%s expects a number, got %s", name, v.TypeName())
}

func nativeSqrt(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.SqrtFuncName, "1", len(args))
	}
	x, err := argNumber(config.SqrtFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	if x < 0 {
		return vm.NilVal(), fmt.Errorf("%s of a negative number", config.SqrtFuncName)
	}
	return vm.FloatVal(math.Sqrt(x)), nil
}

func nativePow(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.PowFuncName, "2", len(args))
	}
	x, err := argNumber(config.PowFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	y, err := argNumber(config.PowFuncName, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.FloatVal(math.Pow(x, y)), nil
}

func nativeSin(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.SinFuncName, "1", len(args))
	}
	x, err := argNumber(config.SinFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.FloatVal(math.Sin(x)), nil
}

func nativeCos(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.CosFuncName, "1", len(args))
	}
	x, err := argNumber(config.CosFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.FloatVal(math.Cos(x)), nil
}

// rounders truncate their float result into an Int; an Int argument passes
// through untouched.
func nativeFloor(_ *vm.VM, args []Value) (Value, error) {
	return roundWith(config.FloorFuncName, args, math.Floor)
}

func nativeCeil(_ *vm.VM, args []Value) (Value, error) {
	return roundWith(config.CeilFuncName, args, math.Ceil)
}

func nativeRound(_ *vm.VM, args []Value) (Value, error) {
	return roundWith(config.RoundFuncName, args, math.Round)
}

func roundWith(name string, args []Value, f func(float64) float64) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(name, "1", len(args))
	}
	if args[0].IsInt() {
		return args[0], nil
	}
	x, err := argNumber(name, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.IntVal(int64(f(x))), nil
}

func nativeAbs(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.AbsFuncName, "1", len(args))
	}
	v := args[0]
	switch {
	case v.IsInt():
		if n := v.AsInt(); n < 0 {
			return vm.IntVal(-n), nil
		}
		return v, nil
	case v.IsFloat():
		return vm.FloatVal(math.Abs(v.AsFloat())), nil
	}
	return vm.NilVal(), fmt.Errorf("%s expects a number, got %s", config.AbsFuncName, v.TypeName())
}

func nativeMin(_ *vm.VM, args []Value) (Value, error) {
	return pickExtreme(config.MinFuncName, args, func(candidate, best float64) bool { return candidate < best })
}

func nativeMax(_ *vm.VM, args []Value) (Value, error) {
	return pickExtreme(config.MaxFuncName, args, func(candidate, best float64) bool { return candidate > best })
}

// pickExtreme returns the winning original value, so ints stay ints and
// floats stay floats.
func pickExtreme(name string, args []Value, better func(candidate, best float64) bool) (Value, error) {
	if len(args) < 2 {
		return vm.NilVal(), wrongArgs(name, "at least 2", len(args))
	}
	best, err := argNumber(name, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	winner := args[0]
	for i := 1; i < len(args); i++ {
		x, err := argNumber(name, args, i)
		if err != nil {
			return vm.NilVal(), err
		}
		if better(x, best) {
			best, winner = x, args[i]
		}
	}
	return winner, nil
}

// nativeRandom returns a float in [0, 1) with no arguments, or an int in
// [0, n) with one positive int argument.
func nativeRandom(_ *vm.VM, args []Value) (Value, error) {
	switch len(args) {
	case 0:
		return vm.FloatVal(rand.Float64()), nil
	case 1:
		if !args[0].IsInt() {
			return vm.NilVal(), fmt.Errorf("%s expects an integer bound, got %s", config.RandomFuncName, args[0].TypeName())
		}
		n := args[0].AsInt()
		if n <= 0 {
			return vm.NilVal(), fmt.Errorf("%s bound must be positive, got %d", config.RandomFuncName, n)
		}
		return vm.IntVal(rand.Int63n(n)), nil
	default:
		return vm.NilVal(), wrongArgs(config.RandomFuncName, "0 or 1", len(args))
	}
}
