package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/droy-go/SEEKEP/internal/config"
)

// ValueType identifies the variant held by a Value.
type ValueType uint8

const (
	ValNil ValueType = iota
	ValInt
	ValFloat
	ValBool
	ValObj // heap payload: String, List, Dict, Function, Closure, NativeFn, Class, Instance, BoundMethod, UpvalueCell
)

// Value is a stack-allocated tagged union. Numeric/boolean variants avoid a
// heap allocation per arithmetic result; Data stores the int64/float64 bit
// pattern or a 0/1 bool, and Obj carries anything with a heap payload.
type Value struct {
	Type ValueType
	Data uint64
	Obj  Object
}

// Object is implemented by every heap-allocated value variant.
type Object interface {
	Inspect() string
	Hash() uint32
}

func NilVal() Value             { return Value{Type: ValNil} }
func IntVal(v int64) Value      { return Value{Type: ValInt, Data: uint64(v)} }
func FloatVal(v float64) Value  { return Value{Type: ValFloat, Data: math.Float64bits(v)} }
func ObjVal(o Object) Value     { return Value{Type: ValObj, Obj: o} }

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func (v Value) AsInt() int64     { return int64(v.Data) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsBool() bool     { return v.Data == 1 }

func (v Value) IsInt() bool   { return v.Type == ValInt }
func (v Value) IsFloat() bool { return v.Type == ValFloat }
func (v Value) IsBool() bool  { return v.Type == ValBool }
func (v Value) IsNil() bool   { return v.Type == ValNil }
func (v Value) IsObj() bool   { return v.Type == ValObj }

func (v Value) isNumeric() bool { return v.Type == ValInt || v.Type == ValFloat }

// numeric widens an int or float Value to float64, for operators that mix
// the two.
func (v Value) numeric() float64 {
	if v.Type == ValInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Truthy implements the GLOSSARY's truthiness mapping: null, false, 0, 0.0,
// and the empty string are falsy; all else is truthy.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNil:
		return false
	case ValBool:
		return v.AsBool()
	case ValInt:
		return v.AsInt() != 0
	case ValFloat:
		return v.AsFloat() != 0
	case ValObj:
		if s, ok := v.Obj.(*ObjString); ok {
			return s.Value != ""
		}
		return true
	}
	return true
}

// TypeName returns the name نوع() reports, using the Arabic spellings
// diagnostics preserve throughout.
func (v Value) TypeName() string {
	switch v.Type {
	case ValInt:
		return "عدد"
	case ValFloat:
		return "عشري"
	case ValBool:
		return "منطقي"
	case ValNil:
		return config.NullLiteral
	case ValObj:
		switch v.Obj.(type) {
		case *ObjString:
			return "نص"
		case *ObjList:
			return "قائمة"
		case *ObjDict:
			return "قاموس"
		case *CompiledFunction, *ObjClosure, *BuiltinFn:
			return "دالة"
		case *ObjClass:
			return "صنف"
		case *ObjInstance:
			return "كائن"
		case *ObjBoundMethod:
			return "دالة_مرتبطة"
		}
	}
	return "غير_معروف"
}

// Equals implements structural equality. Differing types always compare
// unequal; there is no int/float cross-coercion, so 1 and 1.0 are not
// equal.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValInt, ValBool:
		return v.Data == other.Data
	case ValFloat:
		return v.Data == other.Data
	case ValNil:
		return true
	case ValObj:
		return objectsEqual(v.Obj, other.Obj)
	default:
		return false
	}
}

func objectsEqual(a, b Object) bool {
	switch av := a.(type) {
	case *ObjString:
		bv, ok := b.(*ObjString)
		return ok && av.Value == bv.Value
	case *ObjList:
		bv, ok := b.(*ObjList)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !av.Elements[i].Equals(bv.Elements[i]) {
				return false
			}
		}
		return true
	case *ObjDict:
		bv, ok := b.(*ObjDict)
		if !ok || len(av.Keys) != len(bv.Keys) {
			return false
		}
		for _, k := range av.Keys {
			val, ok := bv.Get(k)
			if !ok || !av.Values[k].Equals(val) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Inspect renders a value for اطبع()/disassembly.
func (v Value) Inspect() string {
	switch v.Type {
	case ValInt:
		return fmt.Sprintf("%d", v.AsInt())
	case ValFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case ValBool:
		if v.AsBool() {
			return config.TrueLiteral
		}
		return config.FalseLiteral
	case ValNil:
		return config.NullLiteral
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Inspect()
		}
		return "<كائن_فارغ>"
	default:
		return "<?>"
	}
}

// Hash returns a hash of the value; objects delegate to their own Hash.
// ObjDict keys its Go map by string and does not use it.
func (v Value) Hash() uint32 {
	switch v.Type {
	case ValInt, ValFloat:
		return uint32(v.Data ^ (v.Data >> 32))
	case ValBool:
		return uint32(v.Data)
	case ValNil:
		return 0
	case ValObj:
		if v.Obj != nil {
			return v.Obj.Hash()
		}
		return 0
	default:
		return 0
	}
}

func joinInspect(vs []Value) string {
	parts := make([]string, len(vs))
	for i, e := range vs {
		parts[i] = e.Inspect()
	}
	return strings.Join(parts, ", ")
}
