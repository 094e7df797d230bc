package vm

// Local describes one slot in a CompileContext's locals table. Depth -1
// means declared but not yet initialized, which lets the compiler reject
// a declaration reading itself in its own initializer.
type Local struct {
	Name       string
	Depth      int
	Slot       int
	IsCaptured bool
}

// UpvalueDesc is one entry of a CompileContext's upvalue descriptor table
//.
type UpvalueDesc struct {
	Index   uint8
	IsLocal bool
}

// LoopContext tracks one enclosing loop's back-patch state for break/
// continue.
type LoopContext struct {
	LoopStart     int
	BreakJumps    []int
	ContinueJumps []int
	ScopeDepth    int
	LocalCount    int
}

// beginScope opens a new lexical scope.
func (c *CompileContext) beginScope() {
	c.scopeDepth++
}

// endScope closes the current scope, emitting POP (or CLOSE_UPVALUE for
// captured locals) for every local declared inside it, in reverse
// declaration order.
func (c *CompileContext) endScope(line int) {
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		if c.locals[c.localCount-1].IsCaptured {
			c.emit(OP_CLOSE_UPVALUE, line)
		} else {
			c.emit(OP_POP, line)
		}
		c.localCount--
	}
}

// addLocal declares name at the current depth, initially uninitialized
// (Depth -1; the caller marks it initialized once the initializer's value
// has been emitted). Returns false (recording a CompileError) past the
// 256-slot locals limit.
func (cpl *Compiler) addLocal(name string, line int) bool {
	c := cpl.current
	if c.localCount >= maxLocals {
		cpl.error(line, "too many locals")
		return false
	}
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].Depth != -1 && c.locals[i].Depth < c.scopeDepth {
			break
		}
		if c.locals[i].Depth == c.scopeDepth && c.locals[i].Name == name {
			cpl.error(line, "variable %q already declared in this scope", name)
			return false
		}
	}
	c.locals[c.localCount] = Local{Name: name, Depth: -1, Slot: c.localCount}
	c.localCount++
	return true
}

func (c *CompileContext) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].Depth = c.scopeDepth
}

// resolveLocal returns the slot of name in the current context, or -1.
func (c *CompileContext) resolveLocal(name string) int {
	slot, _ := c.resolveLocalIndex(name)
	return slot
}

// resolveLocalIndex returns both the local's stack slot and its index in
// the locals table (the latter needed to check/mark Depth/IsCaptured).
func (c *CompileContext) resolveLocalIndex(name string) (slot int, idx int) {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return c.locals[i].Slot, i
		}
	}
	return -1, -1
}

// resolveUpvalue resolves a free variable: walk outward
// through enclosing contexts, marking captured locals and deduplicating
// descriptors as it goes.
func (cpl *Compiler) resolveUpvalue(c *CompileContext, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if slot := c.enclosing.resolveLocal(name); slot != -1 {
		for i := range c.enclosing.locals[:c.enclosing.localCount] {
			if c.enclosing.locals[i].Slot == slot {
				c.enclosing.locals[i].IsCaptured = true
			}
		}
		return cpl.addUpvalue(c, uint8(slot), true)
	}
	if up := cpl.resolveUpvalue(c.enclosing, name); up != -1 {
		return cpl.addUpvalue(c, uint8(up), false)
	}
	return -1
}

func (cpl *Compiler) addUpvalue(c *CompileContext, index uint8, isLocal bool) int {
	for i := 0; i < c.upvalueCount; i++ {
		if c.upvalues[i].Index == index && c.upvalues[i].IsLocal == isLocal {
			return i
		}
	}
	if c.upvalueCount >= maxUpvalues {
		cpl.error(0, "too many upvalues")
		return 0
	}
	c.upvalues[c.upvalueCount] = UpvalueDesc{Index: index, IsLocal: isLocal}
	c.upvalueCount++
	return c.upvalueCount - 1
}

// ---- emit helpers ----

func (c *CompileContext) emit(op Opcode, line int) {
	c.chunk.WriteOp(op, line, 0)
}

func (c *CompileContext) emitByte(b byte, line int) {
	c.chunk.WriteByte(b, line, 0)
}

func (cpl *Compiler) emitConstant(line int, v Value) {
	idx, err := cpl.current.chunk.AddConstant(v)
	if err != nil {
		cpl.error(line, "%s", err)
		return
	}
	var op Opcode
	switch v.Type {
	case ValInt:
		op = OP_CONST_INT
	case ValFloat:
		op = OP_CONST_FLOAT
	default:
		op = OP_CONST_STRING
	}
	cpl.current.emit(op, line)
	cpl.current.emitByte(byte(idx), line)
}

// emitJump writes op followed by a 16-bit placeholder and returns the
// placeholder's offset for patchJump.
func (c *CompileContext) emitJump(op Opcode, line int) int {
	c.emit(op, line)
	c.emitByte(0xff, line)
	c.emitByte(0xff, line)
	return c.chunk.Len() - 2
}

func (cpl *Compiler) patchJump(offset int) {
	jump := cpl.current.chunk.Len() - offset - 2
	if jump > maxJump {
		cpl.error(0, "jump too far")
		return
	}
	cpl.current.chunk.Patch16(offset, uint16(jump))
}

func (c *CompileContext) emitLoop(loopStart, line int) {
	c.emit(OP_LOOP, line)
	offset := c.chunk.Len() - loopStart + 2
	c.emitByte(byte(offset>>8), line)
	c.emitByte(byte(offset), line)
}
