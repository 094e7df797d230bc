package vm

import (
	"fmt"
	"strings"
)

// Instruction is one decoded instruction: its opcode, raw operand bytes,
// and the offset of the next instruction. The tests' stack-effect checker
// and reassembly check walk chunks through this decoder; Disassemble steps
// over the same operand widths with its own per-opcode helpers.
type Instruction struct {
	Op       Opcode
	Operands []byte
	Next     int
}

// operandWidth returns the number of operand bytes following op. CLOSURE
// is variable-length (proto-idx, upvalue count, then a pair per upvalue)
// and is handled by DecodeInstruction directly.
func operandWidth(op Opcode) int {
	switch op {
	case OP_CONST_INT, OP_CONST_FLOAT, OP_CONST_STRING,
		OP_CONST_LIST, OP_CONST_DICT,
		OP_GET_LOCAL, OP_SET_LOCAL,
		OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL,
		OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_GET_FIELD, OP_SET_FIELD,
		OP_CLASS, OP_METHOD,
		OP_IMPORT, OP_EXPORT,
		OP_CALL:
		return 1
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_LOOP:
		return 2
	case OP_ITER_NEXT:
		return 3
	default:
		return 0
	}
}

// DecodeInstruction decodes the instruction starting at offset.
func DecodeInstruction(chunk *Chunk, offset int) Instruction {
	op := Opcode(chunk.Code[offset])
	width := operandWidth(op)
	if op == OP_CLOSURE {
		upc := int(chunk.Code[offset+2])
		width = 2 + 2*upc
	}
	end := offset + 1 + width
	if end > len(chunk.Code) {
		end = len(chunk.Code)
	}
	return Instruction{Op: op, Operands: chunk.Code[offset+1 : end], Next: end}
}

// Disassemble renders a chunk one instruction per line as
// "offset | line | opcode | operands", recursing into nested function
// protos referenced by CLOSURE.
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("== %s ==\n", name))
	for offset := 0; offset < len(chunk.Code); {
		offset = disassembleInstruction(&sb, chunk, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	switch op {
	case OP_CONST_INT, OP_CONST_FLOAT, OP_CONST_STRING,
		OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL,
		OP_GET_FIELD, OP_SET_FIELD,
		OP_CLASS, OP_METHOD, OP_IMPORT, OP_EXPORT:
		return constantInstruction(sb, op.String(), chunk, offset)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_CONST_LIST, OP_CONST_DICT, OP_CALL:
		return byteInstruction(sb, op.String(), chunk, offset)

	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE:
		return jumpInstruction(sb, op.String(), 1, chunk, offset)
	case OP_LOOP:
		return jumpInstruction(sb, op.String(), -1, chunk, offset)

	case OP_ITER_NEXT:
		iter := chunk.Code[offset+1]
		idx := chunk.Code[offset+2]
		elem := chunk.Code[offset+3]
		sb.WriteString(fmt.Sprintf("%-16s %4d %4d %4d\n", op.String(), iter, idx, elem))
		return offset + 4

	case OP_CLOSURE:
		return closureInstruction(sb, chunk, offset)

	default:
		if _, known := OpcodeNames[op]; known {
			sb.WriteString(op.String() + "\n")
			return offset + 1
		}
		sb.WriteString(fmt.Sprintf("UNKNOWN %d\n", op))
		return offset + 1
	}
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])
	if idx < len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, chunk.Constants[idx].Inspect()))
	} else {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", name, idx))
	}
	return offset + 2
}

func byteInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, chunk.Code[offset+1]))
	return offset + 2
}

func jumpInstruction(sb *strings.Builder, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.Read16(offset + 1))
	target := offset + 3 + sign*jump
	sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, jump, target))
	return offset + 3
}

func closureInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])
	upc := int(chunk.Code[offset+2])
	offset += 3

	if idx >= len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", "CLOSURE", idx))
		return offset
	}
	fn, ok := chunk.Constants[idx].Obj.(*CompiledFunction)
	if !ok {
		sb.WriteString(fmt.Sprintf("%-16s %4d (not a function)\n", "CLOSURE", idx))
		return offset
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d %s\n", "CLOSURE", idx, fn.Inspect()))

	for i := 0; i < upc; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		sb.WriteString(fmt.Sprintf("%04d    |                     %s %d\n", offset, kind, index))
		offset += 2
	}

	nested := Disassemble(fn.Chunk, calleeName(fn.Name))
	for _, l := range strings.Split(strings.TrimRight(nested, "\n"), "\n") {
		sb.WriteString("    | " + l + "\n")
	}
	return offset
}
