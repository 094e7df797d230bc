package vm

import (
	"math"
	"strings"
)

func floatMod(x, y float64) float64 { return math.Mod(x, y) }
func floatPow(x, y float64) float64 { return math.Pow(x, y) }

// binaryArith implements ADD/SUB/MUL/DIV/MOD/POW: ADD is
// overloaded for string concatenation and list concatenation; otherwise
// both operands must be numeric, with int+int→int and any-float→float
// (int promotes). DIV is the exception and always produces a float.
func (vm *VM) binaryArith(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	if op == OP_ADD {
		if as, ok := a.Obj.(*ObjString); a.IsObj() && ok {
			bs, ok := b.Obj.(*ObjString)
			if !b.IsObj() || !ok {
				return vm.runtimeError("cannot add %s and %s", a.TypeName(), b.TypeName())
			}
			vm.push(ObjVal(&ObjString{Value: as.Value + bs.Value}))
			return nil
		}
		if al, ok := a.Obj.(*ObjList); a.IsObj() && ok {
			bl, ok := b.Obj.(*ObjList)
			if !b.IsObj() || !ok {
				return vm.runtimeError("cannot add %s and %s", a.TypeName(), b.TypeName())
			}
			merged := make([]Value, 0, len(al.Elements)+len(bl.Elements))
			merged = append(merged, al.Elements...)
			merged = append(merged, bl.Elements...)
			vm.push(ObjVal(&ObjList{Elements: merged}))
			return nil
		}
	}

	if !a.isNumeric() || !b.isNumeric() {
		return vm.runtimeError("operator requires numbers, got %s and %s", a.TypeName(), b.TypeName())
	}

	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OP_ADD:
			vm.push(IntVal(x + y))
		case OP_SUB:
			vm.push(IntVal(x - y))
		case OP_MUL:
			vm.push(IntVal(x * y))
		case OP_DIV:
			// Division always yields a float, even for two ints; the other
			// operators keep int+int→int.
			if y == 0 {
				return vm.runtimeError("division by zero")
			}
			vm.push(FloatVal(float64(x) / float64(y)))
		case OP_MOD:
			if y == 0 {
				return vm.runtimeError("division by zero")
			}
			vm.push(IntVal(x % y))
		case OP_POW:
			vm.push(IntVal(intPow(x, y)))
		}
		return nil
	}

	x, y := a.numeric(), b.numeric()
	switch op {
	case OP_ADD:
		vm.push(FloatVal(x + y))
	case OP_SUB:
		vm.push(FloatVal(x - y))
	case OP_MUL:
		vm.push(FloatVal(x * y))
	case OP_DIV:
		if y == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(FloatVal(x / y))
	case OP_MOD:
		if y == 0 {
			return vm.runtimeError("division by zero")
		}
		vm.push(FloatVal(floatMod(x, y)))
	case OP_POW:
		vm.push(FloatVal(floatPow(x, y)))
	}
	return nil
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	var result int64 = 1
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}

func (vm *VM) unaryNeg() error {
	v := vm.pop()
	switch {
	case v.IsInt():
		vm.push(IntVal(-v.AsInt()))
	case v.IsFloat():
		vm.push(FloatVal(-v.AsFloat()))
	default:
		return vm.runtimeError("unary '-' requires a number, got %s", v.TypeName())
	}
	return nil
}

// compare implements EQ/NE (structural, all types; differing
// types compare unequal) and LT/GT/LE/GE (numeric or string only).
func (vm *VM) compare(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	if op == OP_EQ {
		vm.push(BoolVal(a.Equals(b)))
		return nil
	}
	if op == OP_NE {
		vm.push(BoolVal(!a.Equals(b)))
		return nil
	}

	if a.isNumeric() && b.isNumeric() {
		x, y := a.numeric(), b.numeric()
		vm.push(BoolVal(orderedResult(op, compareFloat(x, y))))
		return nil
	}
	as, aok := a.Obj.(*ObjString)
	bs, bok := b.Obj.(*ObjString)
	if a.IsObj() && aok && b.IsObj() && bok {
		vm.push(BoolVal(orderedResult(op, strings.Compare(as.Value, bs.Value))))
		return nil
	}
	return vm.runtimeError("comparison requires two numbers or two strings, got %s and %s", a.TypeName(), b.TypeName())
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func orderedResult(op Opcode, cmp int) bool {
	switch op {
	case OP_LT:
		return cmp < 0
	case OP_GT:
		return cmp > 0
	case OP_LE:
		return cmp <= 0
	case OP_GE:
		return cmp >= 0
	}
	return false
}

// binaryBitwise implements BIT_AND/BIT_OR/BIT_XOR/SHL/SHR;
// all operands coerce to integer.
func (vm *VM) binaryBitwise(op Opcode) error {
	b := vm.pop()
	a := vm.pop()
	if !a.IsInt() || !b.IsInt() {
		return vm.runtimeError("bitwise operator requires integers, got %s and %s", a.TypeName(), b.TypeName())
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case OP_BIT_AND:
		vm.push(IntVal(x & y))
	case OP_BIT_OR:
		vm.push(IntVal(x | y))
	case OP_BIT_XOR:
		vm.push(IntVal(x ^ y))
	case OP_SHL:
		vm.push(IntVal(x << uint(y)))
	case OP_SHR:
		vm.push(IntVal(x >> uint(y)))
	}
	return nil
}

// getField implements field lookup on an instance: probe the
// instance's own fields first, then fall back to the class method table
// wrapped as a BoundMethod.
func (vm *VM) getField(recv Value, name string) (Value, error) {
	inst, ok := recv.Obj.(*ObjInstance)
	if !recv.IsObj() || !ok {
		return Value{}, vm.runtimeError("cannot read field %q on a %s", name, recv.TypeName())
	}
	if v, ok := inst.Fields[name]; ok {
		return v, nil
	}
	if m, ok := inst.Class.Methods[name]; ok {
		return ObjVal(&ObjBoundMethod{Receiver: inst, Method: m}), nil
	}
	return Value{}, vm.runtimeError("undefined field %q on instance of %s", name, inst.Class.Name)
}

// getIndex implements GET_INDEX over List (int index),
// Dict (string key), and String (int index, byte-oriented).
func (vm *VM) getIndex(obj, idx Value) (Value, error) {
	switch o := obj.Obj.(type) {
	case *ObjList:
		if !idx.IsInt() {
			return Value{}, vm.runtimeError("list index must be an integer, got %s", idx.TypeName())
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(o.Elements)) {
			return Value{}, vm.runtimeError("list index out of bounds: %d", i)
		}
		return o.Elements[i], nil
	case *ObjDict:
		ks, ok := idx.Obj.(*ObjString)
		if !idx.IsObj() || !ok {
			return Value{}, vm.runtimeError("dictionary key must be a string, got %s", idx.TypeName())
		}
		v, ok := o.Get(ks.Value)
		if !ok {
			return Value{}, vm.runtimeError("key not found: %q", ks.Value)
		}
		return v, nil
	case *ObjString:
		if !idx.IsInt() {
			return Value{}, vm.runtimeError("string index must be an integer, got %s", idx.TypeName())
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(o.Value)) {
			return Value{}, vm.runtimeError("string index out of bounds: %d", i)
		}
		return ObjVal(&ObjString{Value: string(o.Value[i])}), nil
	}
	return Value{}, vm.runtimeError("cannot index a %s", obj.TypeName())
}

// setIndex implements SET_INDEX over List and Dict.
func (vm *VM) setIndex(obj, idx, val Value) error {
	switch o := obj.Obj.(type) {
	case *ObjList:
		if !idx.IsInt() {
			return vm.runtimeError("list index must be an integer, got %s", idx.TypeName())
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(len(o.Elements)) {
			return vm.runtimeError("list index out of bounds: %d", i)
		}
		o.Elements[i] = val
		return nil
	case *ObjDict:
		ks, ok := idx.Obj.(*ObjString)
		if !idx.IsObj() || !ok {
			return vm.runtimeError("dictionary key must be a string, got %s", idx.TypeName())
		}
		o.Set(ks.Value, val)
		return nil
	}
	return vm.runtimeError("cannot assign into a %s", obj.TypeName())
}

// iterNext implements the foreach iteration protocol: read the iterable
// and running index from the two hidden locals the compiler allocated,
// write the next element into a third hidden local, advance the index,
// and push a single has-more boolean consumed exactly like a while
// condition.
func (vm *VM) iterNext(frame *CallFrame) error {
	iterSlot := vm.readByte(frame)
	idxSlot := vm.readByte(frame)
	elemSlot := vm.readByte(frame)

	iterable := vm.stack[frame.base+int(iterSlot)]
	idx := vm.stack[frame.base+int(idxSlot)].AsInt()

	var length int64
	var elem Value
	switch o := iterable.Obj.(type) {
	case *ObjList:
		length = int64(len(o.Elements))
		if idx < length {
			elem = o.Elements[idx]
		}
	case *ObjDict:
		length = int64(len(o.Keys))
		if idx < length {
			elem = ObjVal(&ObjString{Value: o.Keys[idx]})
		}
	case *ObjString:
		length = int64(len(o.Value))
		if idx < length {
			elem = ObjVal(&ObjString{Value: string(o.Value[idx])})
		}
	default:
		return vm.runtimeError("value is not iterable: %s", iterable.TypeName())
	}

	if idx >= length {
		vm.push(BoolVal(false))
		return nil
	}
	vm.stack[frame.base+int(elemSlot)] = elem
	vm.stack[frame.base+int(idxSlot)] = IntVal(idx + 1)
	vm.push(BoolVal(true))
	return nil
}
