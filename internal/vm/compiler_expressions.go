package vm

import (
	"strconv"
	"strings"

	"github.com/droy-go/SEEKEP/internal/ast"
)

// compileExpression lowers one expression node, leaving exactly one value
// on the stack.
func (cpl *Compiler) compileExpression(expr ast.Expression) {
	line, _ := expr.Pos()
	switch e := expr.(type) {
	case *ast.Number:
		cpl.compileNumber(e, line)
	case *ast.String:
		cpl.emitConstant(line, ObjVal(&ObjString{Value: e.Text}))
	case *ast.Boolean:
		if e.Value {
			cpl.current.emit(OP_CONST_TRUE, line)
		} else {
			cpl.current.emit(OP_CONST_FALSE, line)
		}
	case *ast.Null:
		cpl.current.emit(OP_CONST_NULL, line)
	case *ast.Identifier:
		cpl.emitGetVariable(e.Name, line)
	case *ast.BinaryOp:
		cpl.compileBinaryOp(e, line)
	case *ast.UnaryOp:
		cpl.compileUnaryOp(e, line)
	case *ast.IncDec:
		cpl.compileIncDec(e, line)
	case *ast.Assignment:
		cpl.compileAssignment(e, line)
	case *ast.Call:
		cpl.compileCall(e, line)
	case *ast.MemberAccess:
		cpl.compileExpression(e.Object)
		idx := cpl.nameConstant(e.Name, line)
		cpl.current.emit(OP_GET_FIELD, line)
		cpl.current.emitByte(byte(idx), line)
	case *ast.IndexAccess:
		cpl.compileExpression(e.Object)
		cpl.compileExpression(e.Index)
		cpl.current.emit(OP_GET_INDEX, line)
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			cpl.compileExpression(el)
		}
		cpl.current.emit(OP_CONST_LIST, line)
		cpl.current.emitByte(byte(len(e.Elements)), line)
	case *ast.DictLiteral:
		for _, pair := range e.Pairs {
			cpl.compileExpression(pair.Key)
			cpl.compileExpression(pair.Value)
		}
		cpl.current.emit(OP_CONST_DICT, line)
		cpl.current.emitByte(byte(len(e.Pairs)), line)
	case *ast.Lambda:
		params := make([]ast.Param, len(e.Params))
		for i, name := range e.Params {
			params[i] = ast.Param{Name: name}
		}
		fn, upvalues := cpl.compileFunctionBody("<دالة_مجهولة>", params, e.Body, "", line)
		cpl.emitClosureFor(fn, upvalues, line)
	case *ast.Ternary:
		cpl.compileExpression(e.Cond)
		elseJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
		cpl.current.emit(OP_POP, line)
		cpl.compileExpression(e.Then)
		endJump := cpl.current.emitJump(OP_JUMP, line)
		cpl.patchJump(elseJump)
		cpl.current.emit(OP_POP, line)
		cpl.compileExpression(e.Else)
		cpl.patchJump(endJump)
	default:
		cpl.error(line, "unsupported expression node %T", expr)
	}
}

func (cpl *Compiler) compileNumber(n *ast.Number, line int) {
	if v, ok := literalNumberToValue(n.Text); ok {
		cpl.emitConstant(line, v)
		return
	}
	cpl.error(line, "invalid numeric literal %q", n.Text)
}

// literalNumberToValue classifies a numeric literal's text by the presence
// of '.'/'e'/'E'.
func literalNumberToValue(text string) (Value, bool) {
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, false
		}
		return FloatVal(f), true
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Value{}, false
	}
	return IntVal(i), true
}

// literalToValue evaluates a constant-foldable expression, used for default
// parameter values since those are installed directly in the constant pool
// rather than compiled as code.
func literalToValue(expr ast.Expression) (Value, bool) {
	switch e := expr.(type) {
	case *ast.Number:
		return literalNumberToValue(e.Text)
	case *ast.String:
		return ObjVal(&ObjString{Value: e.Text}), true
	case *ast.Boolean:
		return BoolVal(e.Value), true
	case *ast.Null:
		return NilVal(), true
	}
	return Value{}, false
}

var binaryOps = map[string]Opcode{
	"+": OP_ADD, "-": OP_SUB, "*": OP_MUL, "/": OP_DIV, "%": OP_MOD, "**": OP_POW,
	"==": OP_EQ, "!=": OP_NE, "<": OP_LT, ">": OP_GT, "<=": OP_LE, ">=": OP_GE,
	"&": OP_BIT_AND, "|": OP_BIT_OR, "^": OP_BIT_XOR, "<<": OP_SHL, ">>": OP_SHR,
}

// compileBinaryOp lowers &&/|| to conditional-jump sequences for correct
// short-circuit semantics; every other operator emits its
// direct opcode.
func (cpl *Compiler) compileBinaryOp(e *ast.BinaryOp, line int) {
	switch e.Op {
	case "&&":
		cpl.compileExpression(e.Lhs)
		endJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
		cpl.current.emit(OP_POP, line)
		cpl.compileExpression(e.Rhs)
		cpl.patchJump(endJump)
		return
	case "||":
		cpl.compileExpression(e.Lhs)
		elseJump := cpl.current.emitJump(OP_JUMP_IF_FALSE, line)
		endJump := cpl.current.emitJump(OP_JUMP, line)
		cpl.patchJump(elseJump)
		cpl.current.emit(OP_POP, line)
		cpl.compileExpression(e.Rhs)
		cpl.patchJump(endJump)
		return
	}

	cpl.compileExpression(e.Lhs)
	cpl.compileExpression(e.Rhs)
	op, ok := binaryOps[e.Op]
	if !ok {
		cpl.error(line, "unknown binary operator %q", e.Op)
		return
	}
	cpl.current.emit(op, line)
}

func (cpl *Compiler) compileUnaryOp(e *ast.UnaryOp, line int) {
	cpl.compileExpression(e.Operand)
	switch e.Op {
	case "-":
		cpl.current.emit(OP_NEG, line)
	case "!":
		cpl.current.emit(OP_NOT, line)
	case "~":
		cpl.current.emit(OP_BIT_NOT, line)
	default:
		cpl.error(line, "unknown unary operator %q", e.Op)
	}
}

// compileIncDec lowers ++x/x++/--x/x-- to an explicit read-modify-write:
// prefix leaves the updated value on the stack, postfix leaves the value
// read before the update. For a plain identifier this reads the
// local/upvalue/global once and writes it back in place. For a member or
// index target, the synthesized rewrite below (`operand = operand + delta`)
// re-evaluates the target's object/index sub-expressions once to read and
// once to write, and the postfix form evaluates them once more beforehand
// for its result; path expressions are expected to be side-effect free.
func (cpl *Compiler) compileIncDec(e *ast.IncDec, line int) {
	delta := int64(1)
	if e.Op == "--" {
		delta = -1
	}

	if ident, ok := e.Operand.(*ast.Identifier); ok {
		cpl.emitGetVariable(ident.Name, line)
		if e.IsPostfix {
			cpl.current.emit(OP_DUP, line)
		}
		cpl.emitConstant(line, IntVal(delta))
		cpl.current.emit(OP_ADD, line)
		cpl.emitSetVariable(ident.Name, line)
		if e.IsPostfix {
			cpl.current.emit(OP_POP, line)
		}
		return
	}

	if e.IsPostfix {
		cpl.compileExpression(e.Operand)
	}
	assign := &ast.Assignment{
		Target: e.Operand,
		Value: &ast.BinaryOp{
			Op:  "+",
			Lhs: e.Operand,
			Rhs: &ast.Number{Text: strconv.FormatInt(delta, 10)},
		},
	}
	cpl.compileAssignment(assign, line)
	if e.IsPostfix {
		cpl.current.emit(OP_POP, line)
	}
}

func (cpl *Compiler) compileAssignment(e *ast.Assignment, line int) {
	switch t := e.Target.(type) {
	case *ast.Identifier:
		cpl.compileExpression(e.Value)
		cpl.emitSetVariable(t.Name, line)
	case *ast.MemberAccess:
		cpl.compileExpression(t.Object)
		cpl.compileExpression(e.Value)
		idx := cpl.nameConstant(t.Name, line)
		cpl.current.emit(OP_SET_FIELD, line)
		cpl.current.emitByte(byte(idx), line)
	case *ast.IndexAccess:
		cpl.compileExpression(t.Object)
		cpl.compileExpression(t.Index)
		cpl.compileExpression(e.Value)
		cpl.current.emit(OP_SET_INDEX, line)
	default:
		cpl.error(line, "invalid assignment target")
	}
}

func (cpl *Compiler) compileCall(e *ast.Call, line int) {
	cpl.compileExpression(e.Callee)
	for _, arg := range e.Args {
		cpl.compileExpression(arg)
	}
	cpl.current.emit(OP_CALL, line)
	cpl.current.emitByte(byte(len(e.Args)), line)
}
