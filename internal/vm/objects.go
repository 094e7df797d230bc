package vm

import (
	"fmt"
	"hash/fnv"
	"unsafe"
)

// ObjString is the owned UTF-8 byte sequence variant.
type ObjString struct {
	Value string
}

func (s *ObjString) Inspect() string { return s.Value }
func (s *ObjString) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(s.Value))
	return h.Sum32()
}

// ObjList is the ordered sequence variant.
type ObjList struct {
	Elements []Value
}

func (l *ObjList) Inspect() string { return "[" + joinInspect(l.Elements) + "]" }
func (l *ObjList) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(l))) }

// ObjDict is the insertion-ordered string-keyed mapping variant. Keys is
// the insertion order; Values holds the backing map so lookups stay O(1)
// while Inspect/foreach iterate in declaration order.
type ObjDict struct {
	Keys   []string
	Values map[string]Value
}

func NewDict() *ObjDict {
	return &ObjDict{Values: make(map[string]Value)}
}

func (d *ObjDict) Get(key string) (Value, bool) {
	v, ok := d.Values[key]
	return v, ok
}

func (d *ObjDict) Set(key string, val Value) {
	if _, exists := d.Values[key]; !exists {
		d.Keys = append(d.Keys, key)
	}
	d.Values[key] = val
}

func (d *ObjDict) Inspect() string {
	parts := make([]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		v := d.Values[k]
		parts = append(parts, fmt.Sprintf("%q: %s", k, v.Inspect()))
	}
	s := "{"
	for i, p := range parts {
		if i > 0 {
			s += ", "
		}
		s += p
	}
	return s + "}"
}

func (d *ObjDict) Hash() uint32 { return uint32(uintptr(unsafe.Pointer(d))) }

// CompiledFunction is the Function variant: parameter count, the chunk
// compiled for its body, and the number of upvalue descriptors its
// closures must capture.
type CompiledFunction struct {
	Arity        int
	Chunk        *Chunk
	Name         string
	LocalCount   int
	UpvalueCount int
	IsInit       bool    // a انشئ method; its frames return the receiver
	Params       []Param // names + default-value constant index, for arity errors and defaults
}

// Param describes one declared parameter; DefaultIdx is -1 when the
// parameter has no default.
type Param struct {
	Name       string
	DefaultIdx int
}

func (f *CompiledFunction) Inspect() string { return fmt.Sprintf("<دالة %s>", f.Name) }
func (f *CompiledFunction) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(f))) }

// ObjClosure is a Function paired with its resolved upvalue cells
//.
type ObjClosure struct {
	Function *CompiledFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Inspect() string { return fmt.Sprintf("<دالة %s>", c.Function.Name) }
func (c *ObjClosure) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(c))) }

// ObjUpvalue is the UpvalueCell variant: Open while Location indexes a
// live stack slot, Closed once the owning frame has returned and Closed
// holds the value directly.
type ObjUpvalue struct {
	Location int // >= 0 while open; -1 once closed
	Closed   Value

	// Next links the VM's open-upvalue list, sorted by descending Location.
	Next *ObjUpvalue
}

func (u *ObjUpvalue) Inspect() string { return "<قيمة_مرتفعة>" }
func (u *ObjUpvalue) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(u))) }

func (u *ObjUpvalue) isOpen() bool { return u.Location >= 0 }

// BuiltinFn is the NativeFn variant: a host-supplied callable taking the
// VM and the argument slice.
type BuiltinFn struct {
	Name string
	Fn   func(vm *VM, args []Value) (Value, error)
}

func (b *BuiltinFn) Inspect() string { return fmt.Sprintf("<دالة_أصلية %s>", b.Name) }
func (b *BuiltinFn) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(b.Name))
	return h.Sum32()
}

// ObjClass is the Class variant: a name and a method table mapping
// method-name to Closure.
type ObjClass struct {
	Name    string
	Methods map[string]*ObjClosure
	// MethodOrder preserves declaration order for disassembly/debugging.
	MethodOrder []string
}

func NewClass(name string) *ObjClass {
	return &ObjClass{Name: name, Methods: make(map[string]*ObjClosure)}
}

func (c *ObjClass) SetMethod(name string, closure *ObjClosure) {
	if _, exists := c.Methods[name]; !exists {
		c.MethodOrder = append(c.MethodOrder, name)
	}
	c.Methods[name] = closure
}

func (c *ObjClass) Inspect() string { return fmt.Sprintf("<صنف %s>", c.Name) }
func (c *ObjClass) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(c))) }

// ObjInstance is the Instance variant: a reference to its Class plus a
// per-instance field dictionary.
type ObjInstance struct {
	Class  *ObjClass
	Fields map[string]Value
}

func NewInstance(class *ObjClass) *ObjInstance {
	return &ObjInstance{Class: class, Fields: make(map[string]Value)}
}

func (i *ObjInstance) Inspect() string { return fmt.Sprintf("<كائن %s>", i.Class.Name) }
func (i *ObjInstance) Hash() uint32    { return uint32(uintptr(unsafe.Pointer(i))) }

// ObjBoundMethod pairs a receiver instance with one of its class's
// closures, so a later CALL uses the instance as slot 0.
type ObjBoundMethod struct {
	Receiver *ObjInstance
	Method   *ObjClosure
}

func (b *ObjBoundMethod) Inspect() string {
	return fmt.Sprintf("<دالة_مرتبطة %s.%s>", b.Receiver.Class.Name, b.Method.Function.Name)
}
func (b *ObjBoundMethod) Hash() uint32 { return uint32(uintptr(unsafe.Pointer(b))) }
