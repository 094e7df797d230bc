package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/droy-go/SEEKEP/internal/ast"
	"github.com/droy-go/SEEKEP/internal/lexer"
	"github.com/droy-go/SEEKEP/internal/parser"
)

func parse(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := parser.New(lexer.New(input))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		for _, e := range p.Errors() {
			t.Errorf("parse error: %s", e)
		}
		t.FailNow()
	}
	return prog
}

func compileSource(t *testing.T, input string) *Chunk {
	t.Helper()
	chunk, err := Compile(parse(t, input))
	if err != nil {
		t.Fatalf("compile error: %s", err)
	}
	return chunk
}

func compileExpectError(t *testing.T, input, wantSubstr string) {
	t.Helper()
	_, err := Compile(parse(t, input))
	if err == nil {
		t.Fatalf("expected a compile error containing %q", wantSubstr)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Fatalf("error %q should contain %q", err.Error(), wantSubstr)
	}
}

// allChunks collects a chunk and every function proto reachable through
// its constant pool.
func allChunks(c *Chunk) []*Chunk {
	out := []*Chunk{c}
	for _, v := range c.Constants {
		if fn, ok := v.Obj.(*CompiledFunction); ok && v.IsObj() {
			out = append(out, allChunks(fn.Chunk)...)
		}
	}
	return out
}

func TestTopLevelChunkEndsWithHalt(t *testing.T) {
	inputs := []string{
		``,
		`دع س = 1;`,
		`اذا (صحيح) { دع س = 1; } والا { دع ص = 2; }`,
		`دالة ف() { ارجع 1; } ف();`,
	}
	for _, input := range inputs {
		chunk := compileSource(t, input)
		var last Opcode
		for offset := 0; offset < len(chunk.Code); {
			ins := DecodeInstruction(chunk, offset)
			last = ins.Op
			offset = ins.Next
		}
		if last != OP_HALT {
			t.Errorf("program %q: want trailing HALT, got %s", input, last)
		}
	}
}

func TestJumpOperandsStayInBounds(t *testing.T) {
	chunk := compileSource(t, `
دع س = 0;
طالما (س < 10) {
	اذا (س == 3) { استمر; }
	اذا (س == 7) { توقف; }
	س = س + 1;
}
لكل (دع ي = 0; ي < 3; ي++) { اطبع(ي); }
`)
	for _, c := range allChunks(chunk) {
		for offset := 0; offset < len(c.Code); {
			ins := DecodeInstruction(c, offset)
			switch ins.Op {
			case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE:
				off := int(c.Read16(offset + 1))
				if target := offset + 3 + off; target < 0 || target > len(c.Code) {
					t.Errorf("forward jump at %d lands at %d (code length %d)", offset, target, len(c.Code))
				}
			case OP_LOOP:
				off := int(c.Read16(offset + 1))
				if target := offset + 3 - off; target < 0 {
					t.Errorf("loop at %d lands at %d", offset, target)
				}
			}
			offset = ins.Next
		}
	}
}

// simulateStackDepth walks every execution path of a chunk tracking stack
// depth, failing on inconsistent depths at join points or on underflow.
// It returns the depth reaching HALT (or -1 if HALT is unreachable).
func simulateStackDepth(t *testing.T, c *Chunk) int {
	t.Helper()

	seen := map[int]int{} // offset -> depth on entry
	haltDepth := -1

	var walk func(offset, depth int)
	walk = func(offset, depth int) {
		for offset < len(c.Code) {
			if prev, ok := seen[offset]; ok {
				if prev != depth {
					t.Errorf("offset %d reached with depths %d and %d", offset, prev, depth)
				}
				return
			}
			seen[offset] = depth

			ins := DecodeInstruction(c, offset)
			switch ins.Op {
			case OP_CONST_INT, OP_CONST_FLOAT, OP_CONST_STRING,
				OP_CONST_TRUE, OP_CONST_FALSE, OP_CONST_NULL,
				OP_GET_LOCAL, OP_GET_GLOBAL, OP_GET_UPVALUE,
				OP_CLOSURE, OP_CLASS, OP_DUP, OP_ITER_NEXT:
				depth++
			case OP_CONST_LIST:
				depth -= int(ins.Operands[0]) - 1
			case OP_CONST_DICT:
				depth -= 2*int(ins.Operands[0]) - 1
			case OP_POP, OP_CLOSE_UPVALUE, OP_DEFINE_GLOBAL, OP_METHOD,
				OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_POW,
				OP_EQ, OP_NE, OP_LT, OP_GT, OP_LE, OP_GE,
				OP_AND, OP_OR,
				OP_BIT_AND, OP_BIT_OR, OP_BIT_XOR, OP_SHL, OP_SHR:
				depth--
			case OP_GET_FIELD, OP_NEG, OP_NOT, OP_BIT_NOT,
				OP_SET_LOCAL, OP_SET_GLOBAL, OP_SET_UPVALUE,
				OP_SWAP, OP_IMPORT, OP_EXPORT:
				// net zero
			case OP_SET_FIELD, OP_GET_INDEX, OP_INHERIT:
				depth--
			case OP_SET_INDEX:
				depth -= 2
			case OP_CALL:
				depth -= int(ins.Operands[0])
			case OP_JUMP:
				walk(ins.Next+int(c.Read16(offset+1)), depth)
				return
			case OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE:
				walk(ins.Next+int(c.Read16(offset+1)), depth)
			case OP_LOOP:
				walk(ins.Next-int(c.Read16(offset+1)), depth)
				return
			case OP_RETURN:
				return
			case OP_RETURN_VOID:
				return
			case OP_HALT:
				if haltDepth >= 0 && haltDepth != depth {
					t.Errorf("HALT reached with depths %d and %d", haltDepth, depth)
				}
				haltDepth = depth
				return
			default:
				t.Fatalf("simulator does not model %s", ins.Op)
			}
			if depth < 0 {
				t.Fatalf("stack underflow at offset %d", offset)
			}
			offset = ins.Next
		}
	}
	walk(0, 0)
	return haltDepth
}

// Every statement nets zero stack change, so depth at HALT must be zero
// for any whole program (locals are themselves popped by scope close).
func TestStatementsNetZeroStackEffect(t *testing.T) {
	programs := []string{
		`دع س = 1 + 2 * 3;`,
		`اطبع(1);`,
		`{ دع س = 1; دع ص = س + 1; اطبع(ص); }`,
		`اذا (1 < 2) { اطبع(1); } والا { اطبع(2); }`,
		`دع س = 0; طالما (س < 3) { س = س + 1; }`,
		`لكل (دع ي = 0; ي < 3; ي++) { اطبع(ي); }`,
		`لكل (ع في [1, 2, 3]) { اطبع(ع); }`,
		`دع ل = [1, 2]; ل[0] = 5; دع د = {"أ": 1}; د["ب"] = 2;`,
		`دالة ف(أ, ب) { ارجع أ + ب; } اطبع(ف(1, 2));`,
		`صنف ح { انشئ(اسم) { هذا.اسم = اسم; } قل() { ارجع هذا.اسم; } }`,
		`دع خ = صحيح && خطأ || 1 < 2;`,
		`دع م = صحيح ? 1 : 2;`,
		`دع س = 1; س++; --س;`,
	}
	for _, input := range programs {
		chunk := compileSource(t, input)
		if depth := simulateStackDepth(t, chunk); depth != 0 {
			t.Errorf("program %q: stack depth %d at HALT, want 0", input, depth)
		}
	}
}

// Function bodies keep the same discipline: each nested proto's simulated
// paths never underflow and every jump target is reached with one
// consistent stack depth.
func TestFunctionChunksSimulateCleanly(t *testing.T) {
	chunk := compileSource(t, `
دالة فيب(ن) {
	اذا (ن < 2) { ارجع ن; }
	ارجع فيب(ن - 1) + فيب(ن - 2);
}
دالة صانع() {
	دع عداد = 0;
	ارجع دالة() { عداد = عداد + 1; ارجع عداد; };
}
`)
	for _, c := range allChunks(chunk)[1:] {
		simulateStackDepth(t, c)
	}
}

func TestCapturingSameLocalTwiceDeduplicates(t *testing.T) {
	chunk := compileSource(t, `
دالة خارج() {
	دع س = 1;
	ارجع دالة() { ارجع س + س; };
}
`)
	outer := findFunction(t, chunk, "خارج")
	inner := findAnonymousFunction(t, outer.Chunk)
	if inner.UpvalueCount != 1 {
		t.Fatalf("want one deduplicated upvalue, got %d", inner.UpvalueCount)
	}
}

func TestUpvalueChainsThroughIntermediateFunction(t *testing.T) {
	chunk := compileSource(t, `
دالة أ() {
	دع س = 7;
	ارجع دالة() { ارجع دالة() { ارجع س; }; };
}
`)
	fnA := findFunction(t, chunk, "أ")
	middle := findAnonymousFunction(t, fnA.Chunk)
	innermost := findAnonymousFunction(t, middle.Chunk)
	if middle.UpvalueCount != 1 || innermost.UpvalueCount != 1 {
		t.Fatalf("want 1 upvalue at each level, got %d and %d", middle.UpvalueCount, innermost.UpvalueCount)
	}

	// The middle function captures a local of أ; the innermost captures the
	// middle function's upvalue, not a local.
	descs := closureDescriptors(t, middle.Chunk)
	if len(descs) != 1 || descs[0].IsLocal {
		t.Fatalf("innermost closure should capture through an upvalue descriptor, got %+v", descs)
	}
}

func findFunction(t *testing.T, c *Chunk, name string) *CompiledFunction {
	t.Helper()
	for _, v := range c.Constants {
		if fn, ok := v.Obj.(*CompiledFunction); ok && fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not found in constant pool", name)
	return nil
}

func findAnonymousFunction(t *testing.T, c *Chunk) *CompiledFunction {
	t.Helper()
	for _, v := range c.Constants {
		if fn, ok := v.Obj.(*CompiledFunction); ok && fn.Name != "" && strings.HasPrefix(fn.Name, "<") {
			return fn
		}
	}
	t.Fatalf("no lambda found in constant pool")
	return nil
}

// closureDescriptors decodes the (is_local, index) pairs of the first
// CLOSURE instruction in c.
func closureDescriptors(t *testing.T, c *Chunk) []UpvalueDesc {
	t.Helper()
	for offset := 0; offset < len(c.Code); {
		ins := DecodeInstruction(c, offset)
		if ins.Op == OP_CLOSURE {
			upc := int(ins.Operands[1])
			descs := make([]UpvalueDesc, upc)
			for i := 0; i < upc; i++ {
				descs[i] = UpvalueDesc{
					IsLocal: ins.Operands[2+2*i] == 1,
					Index:   ins.Operands[3+2*i],
				}
			}
			return descs
		}
		offset = ins.Next
	}
	t.Fatalf("no CLOSURE instruction found")
	return nil
}

func TestTooManyLocalsIsCompileError(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("دالة ض() {\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "دع م%d = %d;\n", i, i)
	}
	sb.WriteString("}\n")
	compileExpectError(t, sb.String(), "too many locals")
}

func TestTooManyConstantsIsCompileError(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("دالة ض() {\nدع س = 0;\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "س = %d;\n", i+1000)
	}
	sb.WriteString("}\n")
	compileExpectError(t, sb.String(), "too many constants")
}

func TestRedeclarationInBlockIsCompileError(t *testing.T) {
	compileExpectError(t, `{ دع س = 1; دع س = 2; }`, "already declared")
}

func TestRedeclarationAtGlobalScopeIsPermitted(t *testing.T) {
	compileSource(t, `دع س = 1; دع س = 2;`)
}

func TestReadingLocalInItsOwnInitializer(t *testing.T) {
	compileExpectError(t, `{ دع س = س; }`, "its own initializer")
}

func TestInvalidAssignmentTarget(t *testing.T) {
	compileExpectError(t, `1 = 2;`, "invalid assignment target")
}

func TestBreakOutsideLoop(t *testing.T) {
	compileExpectError(t, `توقف;`, "outside a loop")
}

func TestContinueOutsideLoop(t *testing.T) {
	compileExpectError(t, `استمر;`, "outside a loop")
}

func TestInheritEmittedBeforeMethods(t *testing.T) {
	chunk := compileSource(t, `
صنف أ { قل() { ارجع 1; } }
صنف ب يرث أ { قل() { ارجع 2; } }
`)
	sawInherit := false
	for offset := 0; offset < len(chunk.Code); {
		ins := DecodeInstruction(chunk, offset)
		switch ins.Op {
		case OP_INHERIT:
			sawInherit = true
		case OP_METHOD:
			name := chunk.Constants[ins.Operands[0]].Obj.(*ObjString).Value
			// ب's method must come after its INHERIT so the override is
			// not clobbered by the parent copy.
			if name == "قل" && sawInherit {
				return
			}
		}
		offset = ins.Next
	}
	if !sawInherit {
		t.Fatalf("no INHERIT instruction emitted")
	}
	t.Fatalf("no METHOD after INHERIT for the subclass")
}

func TestMultipleErrorsReportedInOneRun(t *testing.T) {
	_, err := Compile(parse(t, `{ دع س = 1; دع س = 2; }
توقف;`))
	if err == nil {
		t.Fatalf("expected compile errors")
	}
	ce, ok := err.(*CompileErrors)
	if !ok {
		t.Fatalf("want *CompileErrors, got %T", err)
	}
	if len(ce.Errors) < 2 {
		t.Fatalf("want both errors surfaced in one run, got %d: %s", len(ce.Errors), err)
	}
}
