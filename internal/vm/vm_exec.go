package vm

// run is the dispatch loop: fetch the
// opcode at the current frame's ip, switch on it, update the stack, and
// repeat. CALL and RETURN refresh the cached frame pointer.
func (vm *VM) run() error {
	frame := &vm.frames[vm.frameCount-1]

	for {
		op := Opcode(frame.closure.Function.Chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case OP_CONST_INT, OP_CONST_FLOAT, OP_CONST_STRING:
			idx := vm.readByte(frame)
			vm.push(frame.closure.Function.Chunk.Constants[idx])

		case OP_CONST_TRUE:
			vm.push(BoolVal(true))
		case OP_CONST_FALSE:
			vm.push(BoolVal(false))
		case OP_CONST_NULL:
			vm.push(NilVal())

		case OP_CONST_LIST:
			count := int(vm.readByte(frame))
			elems := make([]Value, count)
			copy(elems, vm.stack[vm.stackTop-count:vm.stackTop])
			vm.stackTop -= count
			vm.push(ObjVal(&ObjList{Elements: elems}))

		case OP_CONST_DICT:
			count := int(vm.readByte(frame))
			dict := NewDict()
			base := vm.stackTop - count*2
			for i := 0; i < count; i++ {
				k := vm.stack[base+i*2]
				v := vm.stack[base+i*2+1]
				ks, ok := k.Obj.(*ObjString)
				if !k.IsObj() || !ok {
					return vm.runtimeError("dictionary key must be a string")
				}
				dict.Set(ks.Value, v)
			}
			vm.stackTop = base
			vm.push(ObjVal(dict))

		case OP_GET_LOCAL:
			slot := vm.readByte(frame)
			vm.push(vm.stack[frame.base+int(slot)])
		case OP_SET_LOCAL:
			slot := vm.readByte(frame)
			vm.stack[frame.base+int(slot)] = vm.peek(0)

		case OP_GET_GLOBAL:
			name := vm.readStringConstant(frame)
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("undefined global: %s", name)
			}
			vm.push(v)
		case OP_SET_GLOBAL:
			name := vm.readStringConstant(frame)
			if !vm.globals.Set(name, vm.peek(0)) {
				return vm.runtimeError("undefined global: %s", name)
			}
		case OP_DEFINE_GLOBAL:
			name := vm.readStringConstant(frame)
			vm.globals.Define(name, vm.pop())

		case OP_GET_UPVALUE:
			slot := vm.readByte(frame)
			vm.push(vm.readUpvalue(frame.closure.Upvalues[slot]))
		case OP_SET_UPVALUE:
			slot := vm.readByte(frame)
			vm.writeUpvalue(frame.closure.Upvalues[slot], vm.peek(0))

		case OP_GET_FIELD:
			name := vm.readStringConstant(frame)
			v, err := vm.getField(vm.pop(), name)
			if err != nil {
				return err
			}
			vm.push(v)
		case OP_SET_FIELD:
			name := vm.readStringConstant(frame)
			val := vm.pop()
			recv := vm.pop()
			inst, ok := recv.Obj.(*ObjInstance)
			if !recv.IsObj() || !ok {
				return vm.runtimeError("cannot set field %q on a %s", name, recv.TypeName())
			}
			inst.Fields[name] = val
			vm.push(val)

		case OP_GET_INDEX:
			idx := vm.pop()
			obj := vm.pop()
			v, err := vm.getIndex(obj, idx)
			if err != nil {
				return err
			}
			vm.push(v)
		case OP_SET_INDEX:
			val := vm.pop()
			idx := vm.pop()
			obj := vm.pop()
			if err := vm.setIndex(obj, idx, val); err != nil {
				return err
			}
			vm.push(val)

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_POW:
			if err := vm.binaryArith(op); err != nil {
				return err
			}
		case OP_NEG:
			if err := vm.unaryNeg(); err != nil {
				return err
			}

		case OP_EQ, OP_NE, OP_LT, OP_GT, OP_LE, OP_GE:
			if err := vm.compare(op); err != nil {
				return err
			}

		case OP_NOT:
			vm.push(BoolVal(!vm.pop().Truthy()))
		case OP_AND:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Truthy() && b.Truthy()))
		case OP_OR:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Truthy() || b.Truthy()))

		case OP_BIT_AND, OP_BIT_OR, OP_BIT_XOR, OP_SHL, OP_SHR:
			if err := vm.binaryBitwise(op); err != nil {
				return err
			}
		case OP_BIT_NOT:
			v := vm.pop()
			if !v.IsInt() {
				return vm.runtimeError("bitwise NOT requires an integer, got %s", v.TypeName())
			}
			vm.push(IntVal(^v.AsInt()))

		case OP_JUMP:
			off := vm.readJump(frame)
			frame.ip += off
		case OP_JUMP_IF_FALSE:
			off := vm.readJump(frame)
			if !vm.peek(0).Truthy() {
				frame.ip += off
			}
		case OP_JUMP_IF_TRUE:
			off := vm.readJump(frame)
			if vm.peek(0).Truthy() {
				frame.ip += off
			}
		case OP_LOOP:
			off := vm.readJump(frame)
			frame.ip -= off

		case OP_CALL:
			argc := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_RETURN:
			result := vm.pop()
			done := vm.returnFrom(result)
			if done {
				return nil
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_RETURN_VOID:
			done := vm.returnFrom(NilVal())
			if done {
				return nil
			}
			frame = &vm.frames[vm.frameCount-1]

		case OP_CLOSURE:
			vm.makeClosure(frame)

		case OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case OP_CLASS:
			name := vm.readStringConstant(frame)
			vm.push(ObjVal(NewClass(name)))
		case OP_METHOD:
			name := vm.readStringConstant(frame)
			closureVal := vm.pop()
			classVal := vm.peek(0)
			class, ok := classVal.Obj.(*ObjClass)
			if !classVal.IsObj() || !ok {
				return vm.runtimeError("METHOD target is not a class")
			}
			closure, ok := closureVal.Obj.(*ObjClosure)
			if !closureVal.IsObj() || !ok {
				return vm.runtimeError("METHOD value is not a function")
			}
			class.SetMethod(name, closure)
		case OP_INHERIT:
			// compileClassDecl pushes the child (OP_CLASS) then the parent
			// (emitGetVariable) before emitting OP_INHERIT, so the parent
			// is on top of the stack.
			parentVal := vm.pop()
			childVal := vm.pop()
			parent, ok := parentVal.Obj.(*ObjClass)
			if !parentVal.IsObj() || !ok {
				return vm.runtimeError("cannot inherit from a non-class value")
			}
			child, ok := childVal.Obj.(*ObjClass)
			if !childVal.IsObj() || !ok {
				return vm.runtimeError("INHERIT target is not a class")
			}
			for _, name := range parent.MethodOrder {
				child.SetMethod(name, parent.Methods[name])
			}
			vm.push(childVal)

		case OP_POP:
			vm.pop()
		case OP_DUP:
			vm.push(vm.peek(0))
		case OP_SWAP:
			a := vm.pop()
			b := vm.pop()
			vm.push(a)
			vm.push(b)

		case OP_IMPORT:
			vm.readByte(frame) // reserved no-op
		case OP_EXPORT:
			vm.readByte(frame) // reserved no-op

		case OP_ITER_NEXT:
			if err := vm.iterNext(frame); err != nil {
				return err
			}

		case OP_TRY_START, OP_CATCH, OP_THROW, OP_FINALLY:
			// Declared but never emitted by this compiler; reserved, so treat as unrecognized.
			return vm.runtimeError("unsupported opcode %s (reserved)", op)

		case OP_HALT:
			return nil

		default:
			return vm.runtimeError("unknown opcode %d", op)
		}

		if err := vm.checkStackOverflow(); err != nil {
			return err
		}
	}
}

func (vm *VM) readByte(frame *CallFrame) byte {
	b := frame.closure.Function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readStringConstant(frame *CallFrame) string {
	idx := vm.readByte(frame)
	v := frame.closure.Function.Chunk.Constants[idx]
	return v.Obj.(*ObjString).Value
}

func (vm *VM) readJump(frame *CallFrame) int {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return int(hi)<<8 | int(lo)
}
