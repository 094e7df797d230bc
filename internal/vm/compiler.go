package vm

import (
	"fmt"

	"github.com/droy-go/SEEKEP/internal/ast"
	"github.com/droy-go/SEEKEP/internal/config"
)

const (
	maxLocals   = config.MaxLocals
	maxUpvalues = config.MaxUpvalues
	maxJump     = config.MaxJump
)

// CompileError is a recognized-during-compilation failure:
// too many constants/locals/upvalues, too large a jump, redeclaration,
// invalid assignment target, reading a declared-but-uninitialized local.
type CompileError struct {
	Message string
	Line    int
}

func (e *CompileError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// CompileContext is one nested function's compilation state:
// the chunk being emitted, its locals/upvalue tables, current scope depth,
// and a pointer to the enclosing context. The top-level script is the base
// context with enclosing == nil.
type CompileContext struct {
	enclosing *CompileContext

	chunk *Chunk

	locals     [256]Local
	localCount int

	upvalues     [256]UpvalueDesc
	upvalueCount int

	scopeDepth int
	loopStack  []*LoopContext
}

func newContext(enclosing *CompileContext, slot0Name string) *CompileContext {
	c := &CompileContext{enclosing: enclosing, chunk: NewChunk()}
	// Slot 0 is reserved: for the callee itself in plain functions, for the
	// receiver in methods.
	c.locals[0] = Local{Name: slot0Name, Depth: 0, Slot: 0}
	c.localCount = 1
	return c
}

// Compiler walks an AST and emits a top-level Chunk plus a tree of
// FunctionProto chunks reachable through its constant pool. It is
// tree-walking, single-pass, and never rewrites emitted bytes except to
// back-patch jump offsets (patchJump).
type Compiler struct {
	current *CompileContext
	errors  []*CompileError
}

func NewCompiler() *Compiler {
	return &Compiler{current: newContext(nil, "")}
}

func (cpl *Compiler) Errors() []*CompileError { return cpl.errors }

func (cpl *Compiler) error(line int, format string, args ...interface{}) {
	cpl.errors = append(cpl.errors, &CompileError{Message: fmt.Sprintf(format, args...), Line: line})
}

// Compile lowers a parsed program to its top-level Chunk. A non-nil err is
// returned (wrapping every recorded CompileError) if compilation failed;
// the partially-emitted chunk is still returned for diagnostics.
func Compile(prog *ast.Program) (*Chunk, error) {
	cpl := NewCompiler()
	for _, stmt := range prog.Statements {
		cpl.compileStatement(stmt)
	}
	cpl.current.emit(OP_HALT, lastLine(prog))
	if len(cpl.errors) > 0 {
		return cpl.current.chunk, &CompileErrors{Errors: cpl.errors}
	}
	return cpl.current.chunk, nil
}

func lastLine(prog *ast.Program) int {
	if len(prog.Statements) == 0 {
		return 0
	}
	line, _ := prog.Statements[len(prog.Statements)-1].Pos()
	return line
}

// CompileErrors aggregates every CompileError recorded in one run.
type CompileErrors struct {
	Errors []*CompileError
}

func (e *CompileErrors) Error() string {
	s := fmt.Sprintf("%d compile error(s):", len(e.Errors))
	for _, ce := range e.Errors {
		s += "\n  " + ce.Error()
	}
	return s
}

// nameConstant interns name as a string constant, used by every opcode
// that addresses a name by constant-pool index (GET/SET/DEFINE_GLOBAL,
// GET/SET_FIELD, CLASS, METHOD, IMPORT, EXPORT).
func (cpl *Compiler) nameConstant(name string, line int) int {
	idx, err := cpl.current.chunk.AddConstant(ObjVal(&ObjString{Value: name}))
	if err != nil {
		cpl.error(line, "%s", err)
		return 0
	}
	return idx
}

// ---- variable read/write ----

func (cpl *Compiler) emitGetVariable(name string, line int) {
	c := cpl.current
	if slot, idx := c.resolveLocalIndex(name); slot != -1 {
		if c.locals[idx].Depth == -1 {
			cpl.error(line, "cannot read local %q in its own initializer", name)
			return
		}
		c.emit(OP_GET_LOCAL, line)
		c.emitByte(byte(slot), line)
		return
	}
	if up := cpl.resolveUpvalue(c, name); up != -1 {
		c.emit(OP_GET_UPVALUE, line)
		c.emitByte(byte(up), line)
		return
	}
	idx := cpl.nameConstant(name, line)
	c.emit(OP_GET_GLOBAL, line)
	c.emitByte(byte(idx), line)
}

func (cpl *Compiler) emitSetVariable(name string, line int) {
	c := cpl.current
	if slot, _ := c.resolveLocalIndex(name); slot != -1 {
		c.emit(OP_SET_LOCAL, line)
		c.emitByte(byte(slot), line)
		return
	}
	if up := cpl.resolveUpvalue(c, name); up != -1 {
		c.emit(OP_SET_UPVALUE, line)
		c.emitByte(byte(up), line)
		return
	}
	idx := cpl.nameConstant(name, line)
	c.emit(OP_SET_GLOBAL, line)
	c.emitByte(byte(idx), line)
}

// declareVariable binds name at the current scope: a global at depth 0, or
// a local otherwise.
func (cpl *Compiler) declareVariable(name string, line int) {
	if cpl.current.scopeDepth == 0 {
		return
	}
	cpl.addLocal(name, line)
}

// defineVariable completes a declaration after its initializer has been
// emitted: DEFINE_GLOBAL at depth 0, or mark-initialized for a local.
func (cpl *Compiler) defineVariable(name string, line int) {
	if cpl.current.scopeDepth == 0 {
		idx := cpl.nameConstant(name, line)
		cpl.current.emit(OP_DEFINE_GLOBAL, line)
		cpl.current.emitByte(byte(idx), line)
		return
	}
	cpl.current.markInitialized()
}

// ---- function/method compilation ----

// compileFunctionBody pushes a new context, declares params as locals at
// depth 1, compiles body, and emits the implicit trailing RETURN_VOID
// (harmless if the body already returned). It returns the CompiledFunction
// and the context's resolved upvalue descriptors.
func (cpl *Compiler) compileFunctionBody(name string, params []ast.Param, body *ast.Block, slot0Name string, line int) (*CompiledFunction, []UpvalueDesc) {
	parent := cpl.current
	ctx := newContext(parent, slot0Name)
	cpl.current = ctx
	ctx.beginScope()

	fn := &CompiledFunction{Name: name, Arity: len(params)}
	for _, p := range params {
		if !cpl.addLocal(p.Name, line) {
			continue
		}
		ctx.markInitialized()
		defIdx := -1
		if p.Default != nil {
			if v, ok := literalToValue(p.Default); ok {
				idx, err := ctx.chunk.AddConstant(v)
				if err != nil {
					cpl.error(line, "%s", err)
				} else {
					defIdx = idx
				}
			} else {
				cpl.error(line, "default value for parameter %q must be a literal", p.Name)
			}
		}
		fn.Params = append(fn.Params, Param{Name: p.Name, DefaultIdx: defIdx})
	}

	if body != nil {
		for _, stmt := range body.Statements {
			cpl.compileStatement(stmt)
		}
	}
	ctx.emit(OP_RETURN_VOID, line)

	fn.Chunk = ctx.chunk
	fn.LocalCount = ctx.localCount
	fn.UpvalueCount = ctx.upvalueCount
	upvalues := append([]UpvalueDesc(nil), ctx.upvalues[:ctx.upvalueCount]...)

	cpl.current = parent
	return fn, upvalues
}

// emitClosureFor installs fn as a FunctionProto constant, then emits
// CLOSURE followed by its upvalue-descriptor pairs.
func (cpl *Compiler) emitClosureFor(fn *CompiledFunction, upvalues []UpvalueDesc, line int) {
	idx, err := cpl.current.chunk.AddConstant(ObjVal(fn))
	if err != nil {
		cpl.error(line, "%s", err)
		return
	}
	cpl.current.emit(OP_CLOSURE, line)
	cpl.current.emitByte(byte(idx), line)
	cpl.current.emitByte(byte(len(upvalues)), line)
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		cpl.current.emitByte(isLocal, line)
		cpl.current.emitByte(uv.Index, line)
	}
}

func (cpl *Compiler) compileFuncDecl(d *ast.FuncDecl) {
	line, _ := d.Pos()
	cpl.declareVariable(d.Name, line)
	if cpl.current.scopeDepth > 0 {
		cpl.current.markInitialized()
	}
	fn, upvalues := cpl.compileFunctionBody(d.Name, d.Params, d.Body, "", line)
	cpl.emitClosureFor(fn, upvalues, line)
	cpl.defineVariable(d.Name, line)
}
