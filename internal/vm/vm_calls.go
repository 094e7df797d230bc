package vm

import "github.com/droy-go/SEEKEP/internal/config"

// callValue implements CALL: dispatch on the callee's
// runtime type. argc does not include the callee itself; the callee sits
// at stack slot peek(argc).
func (vm *VM) callValue(callee Value, argc int) error {
	if !callee.IsObj() {
		return vm.runtimeError("value is not callable: %s", callee.TypeName())
	}
	switch fn := callee.Obj.(type) {
	case *ObjClosure:
		return vm.callClosure(fn, argc)
	case *BuiltinFn:
		return vm.callBuiltin(fn, argc)
	case *ObjClass:
		return vm.callClass(fn, argc)
	case *ObjBoundMethod:
		return vm.callBoundMethod(fn, argc)
	default:
		return vm.runtimeError("value is not callable: %s", callee.TypeName())
	}
}

// callClosure pushes a new CallFrame for a user-defined function, checking
// arity and filling missing trailing arguments from parameter defaults.
func (vm *VM) callClosure(closure *ObjClosure, argc int) error {
	fn := closure.Function

	if argc > fn.Arity {
		return vm.runtimeError("%s expected %d arguments, got %d", calleeName(fn.Name), fn.Arity, argc)
	}
	for argc < fn.Arity {
		p := fn.Params[argc]
		if p.DefaultIdx < 0 {
			return vm.runtimeError("%s expected %d arguments, got %d", calleeName(fn.Name), fn.Arity, argc)
		}
		if err := vm.checkStackOverflow(); err != nil {
			return err
		}
		vm.push(fn.Chunk.Constants[p.DefaultIdx])
		argc++
	}

	if vm.frameCount >= config.FramesMax {
		return vm.runtimeError("call stack overflow")
	}

	base := vm.stackTop - argc - 1
	vm.frames[vm.frameCount] = CallFrame{closure: closure, ip: 0, base: base}
	vm.frameCount++
	return nil
}

func calleeName(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}

// callBuiltin invokes a natively registered function synchronously: pop
// its arguments, call it, push the result in place of the callee and its
// arguments.
func (vm *VM) callBuiltin(b *BuiltinFn, argc int) error {
	args := make([]Value, argc)
	copy(args, vm.stack[vm.stackTop-argc:vm.stackTop])
	vm.stackTop -= argc + 1 // drop args and the callee

	result, err := b.Fn(vm, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.push(result)
	return nil
}

// callClass implements calling a class value: construct an ObjInstance
// and place it in the callee slot so it becomes the method frame's slot-0
// receiver. If the class declares a انشئ method it runs for side effects
// only; the instance itself, not the method's return value, is the call's
// result (returnFrom substitutes it).
func (vm *VM) callClass(class *ObjClass, argc int) error {
	instance := NewInstance(class)
	if init, ok := class.Methods[initMethodName]; ok {
		vm.stack[vm.stackTop-argc-1] = ObjVal(instance)
		return vm.callClosure(init, argc)
	}
	if argc != 0 {
		return vm.runtimeError("%s takes no arguments", class.Name)
	}
	vm.stackTop -= argc + 1
	vm.push(ObjVal(instance))
	return nil
}

// callBoundMethod overwrites the callee slot with the bound receiver, so
// the receiver lands in the method frame's slot 0 as هذا, then calls the
// underlying closure with the same argc.
func (vm *VM) callBoundMethod(bm *ObjBoundMethod, argc int) error {
	vm.stack[vm.stackTop-argc-1] = ObjVal(bm.Receiver)
	return vm.callClosure(bm.Method, argc)
}

// returnFrom implements RETURN: close any upvalues still
// pointing into the returning frame, pop the frame, discard its stack
// slots, and push the result. Reports whether the VM has no frames left
// (the top-level script has returned). A frame running a انشئ method
// discards its own result and returns the receiver in slot 0 instead.
func (vm *VM) returnFrom(result Value) bool {
	frame := &vm.frames[vm.frameCount-1]
	if frame.closure.Function.IsInit {
		result = vm.stack[frame.base]
	}
	vm.closeUpvalues(frame.base)
	vm.stackTop = frame.base
	vm.frameCount--
	if vm.frameCount == 0 {
		return true
	}
	vm.push(result)
	return false
}

// makeClosure implements OP_CLOSURE: read the function
// constant and its upvalue-descriptor operands, and for each descriptor
// either capture a local from the *enclosing* frame or share the
// enclosing closure's own upvalue.
func (vm *VM) makeClosure(frame *CallFrame) {
	idx := vm.readByte(frame)
	proto := frame.closure.Function.Chunk.Constants[idx].Obj.(*CompiledFunction)
	upc := int(vm.readByte(frame))

	closure := &ObjClosure{Function: proto, Upvalues: make([]*ObjUpvalue, upc)}
	for i := 0; i < upc; i++ {
		isLocal := vm.readByte(frame)
		index := vm.readByte(frame)
		if isLocal == 1 {
			closure.Upvalues[i] = vm.captureUpvalue(frame.base + int(index))
		} else {
			closure.Upvalues[i] = frame.closure.Upvalues[index]
		}
	}
	vm.push(ObjVal(closure))
}

// captureUpvalue returns the open upvalue already pointing at location, or
// creates and links a new one, keeping vm.openUpvalues sorted by
// descending stack location.
func (vm *VM) captureUpvalue(location int) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Location > location {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.Location == location {
		return cur
	}
	created := &ObjUpvalue{Location: location, Next: cur}
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above minLocation,
// copying the stack value into the upvalue itself so it survives the
// frame's stack slots being reused.
func (vm *VM) closeUpvalues(minLocation int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= minLocation {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.Location = -1
		vm.openUpvalues = uv.Next
	}
}

func (vm *VM) readUpvalue(uv *ObjUpvalue) Value {
	if uv.isOpen() {
		return vm.stack[uv.Location]
	}
	return uv.Closed
}

func (vm *VM) writeUpvalue(uv *ObjUpvalue, v Value) {
	if uv.isOpen() {
		vm.stack[uv.Location] = v
		return
	}
	uv.Closed = v
}
