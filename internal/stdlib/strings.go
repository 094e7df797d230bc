package stdlib

import (
	"fmt"
	"strings"

	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/vm"
)

func installStrings(machine *vm.VM) {
	machine.RegisterNative(config.SplitFuncName, nativeSplit)
	machine.RegisterNative(config.JoinFuncName, nativeJoin)
	machine.RegisterNative(config.UpperFuncName, nativeUpper)
	machine.RegisterNative(config.LowerFuncName, nativeLower)
	machine.RegisterNative(config.StripFuncName, nativeStrip)
	machine.RegisterNative(config.ReplaceFuncName, nativeReplace)
	machine.RegisterNative(config.FindFuncName, nativeFind)
	machine.RegisterNative(config.StartsWithFuncName, nativeStartsWith)
	machine.RegisterNative(config.EndsWithFuncName, nativeEndsWith)
}

func argString(name string, args []Value, i int) (string, error) {
	if s, ok := args[i].Obj.(*vm.ObjString); ok && args[i].IsObj() {
		return s.Value, nil
	}
	return "", fmt.Errorf("%s expects a string, got %s", name, args[i].TypeName())
}

func stringVal(s string) Value {
	return vm.ObjVal(&vm.ObjString{Value: s})
}

func nativeSplit(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.SplitFuncName, "2", len(args))
	}
	s, err := argString(config.SplitFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	sep, err := argString(config.SplitFuncName, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	parts := strings.Split(s, sep)
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = stringVal(p)
	}
	return vm.ObjVal(&vm.ObjList{Elements: elems}), nil
}

// nativeJoin concatenates a list of strings with a separator; a non-string
// element is an error rather than being silently stringified.
func nativeJoin(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.JoinFuncName, "2", len(args))
	}
	l, ok := args[0].Obj.(*vm.ObjList)
	if !ok {
		return vm.NilVal(), fmt.Errorf("%s expects a list, got %s", config.JoinFuncName, args[0].TypeName())
	}
	sep, err := argString(config.JoinFuncName, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		s, ok := e.Obj.(*vm.ObjString)
		if !e.IsObj() || !ok {
			return vm.NilVal(), fmt.Errorf("%s element %d is a %s, not a string", config.JoinFuncName, i, e.TypeName())
		}
		parts[i] = s.Value
	}
	return stringVal(strings.Join(parts, sep)), nil
}

func nativeUpper(_ *vm.VM, args []Value) (Value, error) {
	return mapString(config.UpperFuncName, args, strings.ToUpper)
}

func nativeLower(_ *vm.VM, args []Value) (Value, error) {
	return mapString(config.LowerFuncName, args, strings.ToLower)
}

func nativeStrip(_ *vm.VM, args []Value) (Value, error) {
	return mapString(config.StripFuncName, args, strings.TrimSpace)
}

func mapString(name string, args []Value, f func(string) string) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(name, "1", len(args))
	}
	s, err := argString(name, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	return stringVal(f(s)), nil
}

func nativeReplace(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 3 {
		return vm.NilVal(), wrongArgs(config.ReplaceFuncName, "3", len(args))
	}
	s, err := argString(config.ReplaceFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	old, err := argString(config.ReplaceFuncName, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	new, err := argString(config.ReplaceFuncName, args, 2)
	if err != nil {
		return vm.NilVal(), err
	}
	return stringVal(strings.ReplaceAll(s, old, new)), nil
}

// nativeFind returns the byte offset of the first occurrence, or -1.
func nativeFind(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.FindFuncName, "2", len(args))
	}
	s, err := argString(config.FindFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	sub, err := argString(config.FindFuncName, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.IntVal(int64(strings.Index(s, sub))), nil
}

func nativeStartsWith(_ *vm.VM, args []Value) (Value, error) {
	return affixTest(config.StartsWithFuncName, args, strings.HasPrefix)
}

func nativeEndsWith(_ *vm.VM, args []Value) (Value, error) {
	return affixTest(config.EndsWithFuncName, args, strings.HasSuffix)
}

func affixTest(name string, args []Value, f func(s, affix string) bool) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(name, "2", len(args))
	}
	s, err := argString(name, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	affix, err := argString(name, args, 1)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.BoolVal(f(s, affix)), nil
}
