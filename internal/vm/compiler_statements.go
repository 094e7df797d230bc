package vm

import (
	"github.com/droy-go/SEEKEP/internal/ast"
	"github.com/droy-go/SEEKEP/internal/config"
)

// receiverSlotName is the name bound to slot 0 of every method context,
// the host language's keyword for "this".
const receiverSlotName = config.ReceiverName

// initMethodName is the constructor method a class call dispatches to.
const initMethodName = config.InitFuncName

// compileStatement lowers one statement, leaving the stack net-zero.
func (cpl *Compiler) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		cpl.compileVarDecl(s)
	case *ast.FuncDecl:
		cpl.compileFuncDecl(s)
	case *ast.ClassDecl:
		cpl.compileClassDecl(s)
	case *ast.If:
		cpl.compileIf(s)
	case *ast.While:
		cpl.compileWhile(s)
	case *ast.For:
		cpl.compileFor(s)
	case *ast.Foreach:
		cpl.compileForeach(s)
	case *ast.Return:
		cpl.compileReturn(s)
	case *ast.Break:
		cpl.compileBreak(s)
	case *ast.Continue:
		cpl.compileContinue(s)
	case *ast.Block:
		cpl.current.beginScope()
		for _, st := range s.Statements {
			cpl.compileStatement(st)
		}
		line, _ := s.Pos()
		cpl.current.endScope(line)
	case *ast.ExpressionStmt:
		line, _ := s.Pos()
		cpl.compileExpression(s.Expression)
		cpl.current.emit(OP_POP, line)
	case *ast.Import:
		cpl.compileImport(s)
	case *ast.Export:
		cpl.compileExport(s)
	default:
		line, _ := stmt.Pos()
		cpl.error(line, "unsupported statement node %T", stmt)
	}
}

// compileVarDecl declares name at the current scope. Redeclaring a name
// is permitted at global scope (it reassigns the global) but is a
// CompileError inside a block; addLocal rejects the same-scope collision.
func (cpl *Compiler) compileVarDecl(d *ast.VarDecl) {
	line, _ := d.Pos()
	cpl.declareVariable(d.Name, line)
	if d.Initializer != nil {
		cpl.compileExpression(d.Initializer)
	} else {
		cpl.current.emit(OP_CONST_NULL, line)
	}
	cpl.defineVariable(d.Name, line)
}

// compileClassDecl lowers a class declaration: CLASS, optional INHERIT
// *before* any METHOD so a child method is never silently overwritten by
// a later parent-copy, then one METHOD per member, finally declare the
// class name and drop the class value.
func (cpl *Compiler) compileClassDecl(d *ast.ClassDecl) {
	line, _ := d.Pos()
	nameIdx := cpl.nameConstant(d.Name, line)
	cpl.current.emit(OP_CLASS, line)
	cpl.current.emitByte(byte(nameIdx), line)

	if d.Parent != "" {
		cpl.emitGetVariable(d.Parent, line)
		cpl.current.emit(OP_INHERIT, line)
	}

	for _, m := range d.Methods {
		fn, upvalues := cpl.compileFunctionBody(m.Name, m.Params, m.Body, receiverSlotName, line)
		fn.IsInit = m.Name == initMethodName
		cpl.emitClosureFor(fn, upvalues, line)
		methodIdx := cpl.nameConstant(m.Name, line)
		cpl.current.emit(OP_METHOD, line)
		cpl.current.emitByte(byte(methodIdx), line)
	}

	cpl.declareVariable(d.Name, line)
	cpl.defineVariable(d.Name, line)
}

// compileIf lowers if/else: JUMP_IF_FALSE peeks the
// condition, so both branches must emit their own explicit POP.
func (cpl *Compiler) compileIf(s *ast.If) {
	line, _ := s.Pos()
	cpl.compileExpression(s.Cond)
	elseJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
	cpl.current.emit(OP_POP, line)
	cpl.compileStatement(s.Then)
	endJump := cpl.current.emitJump(OP_JUMP, line)
	cpl.patchJump(elseJump)
	cpl.current.emit(OP_POP, line)
	if s.Else != nil {
		cpl.compileStatement(s.Else)
	}
	cpl.patchJump(endJump)
}

func (cpl *Compiler) compileReturn(s *ast.Return) {
	line, _ := s.Pos()
	if s.Value != nil {
		cpl.compileExpression(s.Value)
		cpl.current.emit(OP_RETURN, line)
	} else {
		cpl.current.emit(OP_RETURN_VOID, line)
	}
}

// compileImport/compileExport emit the reserved, currently no-op
// IMPORT/EXPORT opcodes.
func (cpl *Compiler) compileImport(s *ast.Import) {
	line, _ := s.Pos()
	idx := cpl.nameConstant(s.Module, line)
	cpl.current.emit(OP_IMPORT, line)
	cpl.current.emitByte(byte(idx), line)
}

func (cpl *Compiler) compileExport(s *ast.Export) {
	line, _ := s.Pos()
	for _, name := range s.Names {
		idx := cpl.nameConstant(name, line)
		cpl.current.emit(OP_EXPORT, line)
		cpl.current.emitByte(byte(idx), line)
	}
}
