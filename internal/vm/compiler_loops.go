package vm

import "github.com/droy-go/SEEKEP/internal/ast"

// pushLoop/popLoop/currentLoop manage the enclosing-loop stack
// break/continue patch.
func (cpl *Compiler) pushLoop(loopStart, line int) *LoopContext {
	lc := &LoopContext{LoopStart: loopStart, ScopeDepth: cpl.current.scopeDepth, LocalCount: cpl.current.localCount}
	cpl.current.loopStack = append(cpl.current.loopStack, lc)
	return lc
}

func (cpl *Compiler) popLoop() {
	c := cpl.current
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (cpl *Compiler) currentLoop() *LoopContext {
	c := cpl.current
	if len(c.loopStack) == 0 {
		return nil
	}
	return c.loopStack[len(c.loopStack)-1]
}

// emitLoopUnwind pops (or closes) every local declared since loop entry,
// as bytecode only; the compiler's locals table is left untouched so the
// loop body's own normal scope-close still runs on the fallthrough path.
func (cpl *Compiler) emitLoopUnwind(loop *LoopContext, line int) {
	c := cpl.current
	for i := c.localCount - 1; i >= loop.LocalCount; i-- {
		if c.locals[i].IsCaptured {
			c.emit(OP_CLOSE_UPVALUE, line)
		} else {
			c.emit(OP_POP, line)
		}
	}
}

func (cpl *Compiler) compileBreak(s *ast.Break) {
	line, _ := s.Pos()
	loop := cpl.currentLoop()
	if loop == nil {
		cpl.error(line, "'break' outside a loop")
		return
	}
	cpl.emitLoopUnwind(loop, line)
	jump := cpl.current.emitJump(OP_JUMP, line)
	loop.BreakJumps = append(loop.BreakJumps, jump)
}

func (cpl *Compiler) compileContinue(s *ast.Continue) {
	line, _ := s.Pos()
	loop := cpl.currentLoop()
	if loop == nil {
		cpl.error(line, "'continue' outside a loop")
		return
	}
	cpl.emitLoopUnwind(loop, line)
	jump := cpl.current.emitJump(OP_JUMP, line)
	loop.ContinueJumps = append(loop.ContinueJumps, jump)
}

// compileWhile lowers while: record loop_start; emit cond;
// JUMP_IF_FALSE @exit; POP; body; LOOP loop_start; patch @exit; POP.
func (cpl *Compiler) compileWhile(s *ast.While) {
	line, _ := s.Pos()
	loopStart := cpl.current.chunk.Len()
	loop := cpl.pushLoop(loopStart, line)

	cpl.compileExpression(s.Cond)
	exitJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
	cpl.current.emit(OP_POP, line)
	cpl.compileStatement(s.Body)

	for _, j := range loop.ContinueJumps {
		cpl.patchJump(j)
	}
	cpl.current.emitLoop(loopStart, line)

	cpl.patchJump(exitJump)
	cpl.current.emit(OP_POP, line)
	for _, j := range loop.BreakJumps {
		cpl.patchJump(j)
	}
	cpl.popLoop()
}

// compileFor lowers a C-style for: a scope wrapping init,
// loop_start before cond, body, then inc, then LOOP back to loop_start.
// continue targets the inc step (patched right before it is emitted), not
// loop_start itself, so `continue` still runs the increment.
func (cpl *Compiler) compileFor(s *ast.For) {
	line, _ := s.Pos()
	cpl.current.beginScope()

	if s.InitVar != nil {
		cpl.compileVarDecl(s.InitVar)
	} else if s.InitExpr != nil {
		cpl.compileExpression(s.InitExpr)
		cpl.current.emit(OP_POP, line)
	}

	loopStart := cpl.current.chunk.Len()
	loop := cpl.pushLoop(loopStart, line)

	var exitJump int
	hasExit := s.Cond != nil
	if hasExit {
		cpl.compileExpression(s.Cond)
		exitJump = cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
		cpl.current.emit(OP_POP, line)
	}

	cpl.compileStatement(s.Body)

	for _, j := range loop.ContinueJumps {
		cpl.patchJump(j)
	}
	if s.Inc != nil {
		cpl.compileExpression(s.Inc)
		cpl.current.emit(OP_POP, line)
	}
	cpl.current.emitLoop(loopStart, line)

	if hasExit {
		cpl.patchJump(exitJump)
		cpl.current.emit(OP_POP, line)
	}
	for _, j := range loop.BreakJumps {
		cpl.patchJump(j)
	}
	cpl.popLoop()
	cpl.current.endScope(line)
}

// compileForeach lowers `for (v in iter) B` using the dedicated-opcode
// iteration protocol):
// the iterable and a running index live in hidden locals, and OP_ITER_NEXT
// advances the index and writes the next element into a third hidden
// local, pushing a single has-more boolean consumed exactly like a while
// condition.
func (cpl *Compiler) compileForeach(s *ast.Foreach) {
	line, _ := s.Pos()
	cpl.current.beginScope()

	cpl.compileExpression(s.Iterable)
	cpl.addLocal(hiddenLocalName("iter"), line)
	cpl.current.markInitialized()
	iterSlot := byte(cpl.current.localCount - 1)

	cpl.emitConstant(line, IntVal(0))
	cpl.addLocal(hiddenLocalName("idx"), line)
	cpl.current.markInitialized()
	idxSlot := byte(cpl.current.localCount - 1)

	cpl.current.emit(OP_CONST_NULL, line)
	cpl.addLocal(hiddenLocalName("elem"), line)
	cpl.current.markInitialized()
	elemSlot := byte(cpl.current.localCount - 1)

	cpl.declareVariable(s.Var, line)
	cpl.current.emit(OP_CONST_NULL, line)
	cpl.defineVariable(s.Var, line)
	loopVarSlot := byte(cpl.current.localCount - 1)

	loopStart := cpl.current.chunk.Len()
	loop := cpl.pushLoop(loopStart, line)

	cpl.current.emit(OP_ITER_NEXT, line)
	cpl.current.emitByte(iterSlot, line)
	cpl.current.emitByte(idxSlot, line)
	cpl.current.emitByte(elemSlot, line)
	exitJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
	cpl.current.emit(OP_POP, line)

	cpl.current.emit(OP_GET_LOCAL, line)
	cpl.current.emitByte(elemSlot, line)
	cpl.current.emit(OP_SET_LOCAL, line)
	cpl.current.emitByte(loopVarSlot, line)
	cpl.current.emit(OP_POP, line)

	cpl.compileStatement(s.Body)

	for _, j := range loop.ContinueJumps {
		cpl.patchJump(j)
	}
	cpl.current.emitLoop(loopStart, line)

	cpl.patchJump(exitJump)
	cpl.current.emit(OP_POP, line)
	for _, j := range loop.BreakJumps {
		cpl.patchJump(j)
	}
	cpl.popLoop()
	cpl.current.endScope(line)
}

var hiddenLocalCounter int

// hiddenLocalName produces a name no source identifier can spell (reserved
// words and identifiers are Arabic letters; "<...>" never lexes as one),
// so hidden loop-protocol locals can never collide with user variables.
func hiddenLocalName(tag string) string {
	hiddenLocalCounter++
	return "<" + tag + string(rune('0'+hiddenLocalCounter%10)) + ">"
}
