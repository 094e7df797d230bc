package stdlib

import (
	"fmt"
	"sort"

	"github.com/droy-go/SEEKEP/internal/config"
	"github.com/droy-go/SEEKEP/internal/vm"
)

func installLists(machine *vm.VM) {
	machine.RegisterNative(config.InsertFuncName, nativeInsert)
	machine.RegisterNative(config.RemoveFuncName, nativeRemove)
	machine.RegisterNative(config.PopFuncName, nativePop)
	machine.RegisterNative(config.SortFuncName, nativeSort)
	machine.RegisterNative(config.ReverseFuncName, nativeReverse)
	machine.RegisterNative(config.CopyFuncName, nativeCopy)
}

func argList(name string, args []Value, i int) (*vm.ObjList, error) {
	if l, ok := args[i].Obj.(*vm.ObjList); ok && args[i].IsObj() {
		return l, nil
	}
	return nil, fmt.Errorf("%s expects a list, got %s", name, args[i].TypeName())
}

// nativeInsert places a value at an index (0..len inclusive), shifting the
// tail right, and returns the list.
func nativeInsert(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 3 {
		return vm.NilVal(), wrongArgs(config.InsertFuncName, "3", len(args))
	}
	l, err := argList(config.InsertFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	if !args[1].IsInt() {
		return vm.NilVal(), fmt.Errorf("%s index must be an integer, got %s", config.InsertFuncName, args[1].TypeName())
	}
	idx := args[1].AsInt()
	if idx < 0 || idx > int64(len(l.Elements)) {
		return vm.NilVal(), fmt.Errorf("%s index out of bounds: %d", config.InsertFuncName, idx)
	}
	l.Elements = append(l.Elements, vm.NilVal())
	copy(l.Elements[idx+1:], l.Elements[idx:])
	l.Elements[idx] = args[2]
	return args[0], nil
}

// nativeRemove deletes the element at an index and returns it.
func nativeRemove(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 2 {
		return vm.NilVal(), wrongArgs(config.RemoveFuncName, "2", len(args))
	}
	l, err := argList(config.RemoveFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	if !args[1].IsInt() {
		return vm.NilVal(), fmt.Errorf("%s index must be an integer, got %s", config.RemoveFuncName, args[1].TypeName())
	}
	idx := args[1].AsInt()
	if idx < 0 || idx >= int64(len(l.Elements)) {
		return vm.NilVal(), fmt.Errorf("%s index out of bounds: %d", config.RemoveFuncName, idx)
	}
	removed := l.Elements[idx]
	l.Elements = append(l.Elements[:idx], l.Elements[idx+1:]...)
	return removed, nil
}

// nativePop removes and returns the last element.
func nativePop(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.PopFuncName, "1", len(args))
	}
	l, err := argList(config.PopFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	if len(l.Elements) == 0 {
		return vm.NilVal(), fmt.Errorf("%s of an empty list", config.PopFuncName)
	}
	last := l.Elements[len(l.Elements)-1]
	l.Elements = l.Elements[:len(l.Elements)-1]
	return last, nil
}

// nativeSort orders the list in place and returns it. All elements must be
// numeric, or all strings; a mixed list is an error.
func nativeSort(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.SortFuncName, "1", len(args))
	}
	l, err := argList(config.SortFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}

	allNumeric, allString := true, true
	for _, e := range l.Elements {
		if !e.IsInt() && !e.IsFloat() {
			allNumeric = false
		}
		if _, ok := e.Obj.(*vm.ObjString); !e.IsObj() || !ok {
			allString = false
		}
	}
	switch {
	case allNumeric:
		sort.SliceStable(l.Elements, func(i, j int) bool {
			return numericOf(l.Elements[i]) < numericOf(l.Elements[j])
		})
	case allString:
		sort.SliceStable(l.Elements, func(i, j int) bool {
			return l.Elements[i].Obj.(*vm.ObjString).Value < l.Elements[j].Obj.(*vm.ObjString).Value
		})
	default:
		return vm.NilVal(), fmt.Errorf("%s needs all numbers or all strings", config.SortFuncName)
	}
	return args[0], nil
}

func numericOf(v Value) float64 {
	if v.IsInt() {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// nativeReverse reverses the list in place and returns it.
func nativeReverse(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.ReverseFuncName, "1", len(args))
	}
	l, err := argList(config.ReverseFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	for i, j := 0, len(l.Elements)-1; i < j; i, j = i+1, j-1 {
		l.Elements[i], l.Elements[j] = l.Elements[j], l.Elements[i]
	}
	return args[0], nil
}

// nativeCopy returns a new list with the same elements (shallow).
func nativeCopy(_ *vm.VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return vm.NilVal(), wrongArgs(config.CopyFuncName, "1", len(args))
	}
	l, err := argList(config.CopyFuncName, args, 0)
	if err != nil {
		return vm.NilVal(), err
	}
	elems := make([]Value, len(l.Elements))
	copy(elems, l.Elements)
	return vm.ObjVal(&vm.ObjList{Elements: elems}), nil
}
