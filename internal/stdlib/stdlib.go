// Package stdlib installs SEEKEP's native standard library through the
// VM's single registration hook. Every native validates its own arguments
// and reports failures as plain errors; the VM turns those into runtime
// errors with a traceback.
package stdlib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/vm"
)

// Value aliases the VM's value type so native signatures read naturally.
type Value = vm.Value

// Install registers every standard native on machine: the core helpers
// below plus the math, string, and list groups in their own files. It
// must run before machine.Run.
func Install(machine *vm.VM) {
	machine.RegisterNative(config.PrintFuncName, nativePrint)
	machine.RegisterNative(config.LenFuncName, nativeLen)
	machine.RegisterNative(config.TypeOfFuncName, nativeTypeOf)
	machine.RegisterNative(config.StrFuncName, nativeStr)
	machine.RegisterNative(config.IntFuncName, nativeInt)
	machine.RegisterNative(config.FloatFuncName, nativeFloat)
	machine.RegisterNative(config.KeysFuncName, nativeKeys)
	machine.RegisterNative(config.PushFuncName, nativePush)
	machine.RegisterNative(config.RangeFuncName, nativeRange)

	installMath(machine)
	installStrings(machine)
	installLists(machine)
}

func wrongArgs(name string, want string, got int) error {
	return fmt.Errorf("%s expects %s arguments, got %d", name, want, got)
}

// nativePrint writes its arguments separated by spaces, followed by a
// newline, to the VM's output writer.
func nativePrint(machine *vm.VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	fmt.Fprintln(machine.Output(), strings.Join(parts, " "))
	return vm.NilVal(), nil
}

func nativeLen(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.LenFuncName, "1", len(args))
	}
	switch o := args[0].Obj.(type) {
	case *vm.ObjString:
		return vm.IntVal(int64(len(o.Value))), nil
	case *vm.ObjList:
		return vm.IntVal(int64(len(o.Elements))), nil
	case *vm.ObjDict:
		return vm.IntVal(int64(len(o.Keys))), nil
	}
	return vm.NilVal(), fmt.Errorf("%s expects a string, list, or dictionary, got %s", config.LenFuncName, args[0].TypeName())
}

func nativeTypeOf(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.TypeOfFuncName, "1", len(args))
	}
	return vm.ObjVal(&vm.ObjString{Value: args[0].TypeName()}), nil
}

func nativeStr(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.StrFuncName, "1", len(args))
	}
	return vm.ObjVal(&vm.ObjString{Value: args[0].Inspect()}), nil
}

func nativeInt(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.IntFuncName, "1", len(args))
	}
	v := args[0]
	switch {
	case v.IsInt():
		return v, nil
	case v.IsFloat():
		return vm.IntVal(int64(v.AsFloat())), nil
	case v.IsBool():
		if v.AsBool() {
			return vm.IntVal(1), nil
		}
		return vm.IntVal(0), nil
	}
	if s, ok := v.Obj.(*vm.ObjString); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s.Value), 10, 64)
		if err != nil {
			return vm.NilVal(), fmt.Errorf("%s cannot parse %q as an integer", config.IntFuncName, s.Value)
		}
		return vm.IntVal(n), nil
	}
	return vm.NilVal(), fmt.Errorf("%s cannot convert a %s", config.IntFuncName, v.TypeName())
}

func nativeFloat(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.FloatFuncName, "1", len(args))
	}
	v := args[0]
	switch {
	case v.IsFloat():
		return v, nil
	case v.IsInt():
		return vm.FloatVal(float64(v.AsInt())), nil
	}
	if s, ok := v.Obj.(*vm.ObjString); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64)
		if err != nil {
			return vm.NilVal(), fmt.Errorf("%s cannot parse %q as a number", config.FloatFuncName, s.Value)
		}
		return vm.FloatVal(f), nil
	}
	return vm.NilVal(), fmt.Errorf("%s cannot convert a %s", config.FloatFuncName, v.TypeName())
}

// nativeKeys returns a dictionary's keys as a list, in insertion order.
func nativeKeys(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.KeysFuncName, "1", len(args))
	}
	d, ok := args[0].Obj.(*vm.ObjDict)
	if !ok {
		return vm.NilVal(), fmt.Errorf("%s expects a dictionary, got %s", config.KeysFuncName, args[0].TypeName())
	}
	elems := make([]Value, len(d.Keys))
	for i, k := range d.Keys {
		elems[i] = vm.ObjVal(&vm.ObjString{Value: k})
	}
	return vm.ObjVal(&vm.ObjList{Elements: elems}), nil
}

// nativePush appends a value to a list in place and returns the list.
func nativePush(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.PushFuncName, "2", len(args))
	}
	l, ok := args[0].Obj.(*vm.ObjList)
	if !ok {
		return vm.NilVal(), fmt.Errorf("%s expects a list, got %s", config.PushFuncName, args[0].TypeName())
	}
	l.Elements = append(l.Elements, args[1])
	return args[0], nil
}

// nativeRange builds [0..n) from one argument or [start..stop) from two.
func nativeRange(_ *vm.VM, args []Value) (Value, error) {
	var start, stop int64
	switch len(args) {
	case 1:
		if !args[0].IsInt() {
			return vm.NilVal(), fmt.Errorf("%s expects integers", config.RangeFuncName)
		}
		stop = args[0].AsInt()
	case 2:
		if !args[0].IsInt() || !args[1].IsInt() {
			return vm.NilVal(), fmt.Errorf("%s expects integers", config.RangeFuncName)
		}
		start, stop = args[0].AsInt(), args[1].AsInt()
	default:
		return vm.NilVal(), wrongArgs(config.RangeFuncName, "1 or 2", len(args))
	}
	var elems []Value
	for i := start; i < stop; i++ {
		elems = append(elems, vm.IntVal(i))
	}
	return vm.ObjVal(&vm.ObjList{Elements: elems}), nil
}
