package vm

import (
	"strings"
	"testing"
)

func runExpectError(t *testing.T, input string) *RuntimeError {
	t.Helper()
	chunk := compileSource(t, input)
	machine, _ := newTestVM()
	err := machine.Run(chunk)
	if err == nil {
		t.Fatalf("expected a runtime error, program succeeded: %s", input)
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("want *RuntimeError, got %T: %s", err, err)
	}
	return re
}

func runExpectErrorContains(t *testing.T, input, wantSubstr string) {
	t.Helper()
	re := runExpectError(t, input)
	if !strings.Contains(re.Message, wantSubstr) {
		t.Fatalf("error %q should contain %q", re.Message, wantSubstr)
	}
}

func TestUndefinedGlobalRead(t *testing.T) {
	runExpectErrorContains(t, `اطبع(مجهول);`, "undefined global: مجهول")
}

func TestUndefinedGlobalWrite(t *testing.T) {
	runExpectErrorContains(t, `مجهول = 1;`, "undefined global: مجهول")
}

func TestDivisionByZero(t *testing.T) {
	runExpectErrorContains(t, `دع س = 1 / 0;`, "division by zero")
	runExpectErrorContains(t, `دع س = 1 % 0;`, "division by zero")
	runExpectErrorContains(t, `دع س = 1.5 / 0.0;`, "division by zero")
}

func TestMixedStringNumberAddition(t *testing.T) {
	runExpectErrorContains(t, `دع س = "أ" + 1;`, "cannot add")
	runExpectErrorContains(t, `دع س = 1 + "أ";`, "requires numbers")
	runExpectErrorContains(t, `دع س = [1] + 1;`, "cannot add")
}

func TestOrderedComparisonTypeMismatch(t *testing.T) {
	runExpectErrorContains(t, `دع س = 1 < "أ";`, "two numbers or two strings")
	runExpectErrorContains(t, `دع س = [1] < [2];`, "two numbers or two strings")
}

func TestCallingNonCallable(t *testing.T) {
	runExpectErrorContains(t, `دع س = 5; س();`, "not callable")
	runExpectErrorContains(t, `"نص"();`, "not callable")
}

func TestArityMismatch(t *testing.T) {
	runExpectErrorContains(t, `دالة ف(أ) { ارجع أ; } ف();`, "expected 1 arguments, got 0")
	runExpectErrorContains(t, `دالة ف(أ) { ارجع أ; } ف(1, 2);`, "expected 1 arguments, got 2")
}

func TestListIndexErrors(t *testing.T) {
	runExpectErrorContains(t, `دع ق = [1, 2]; اطبع(ق[5]);`, "out of bounds")
	runExpectErrorContains(t, `دع ق = [1, 2]; اطبع(ق[-1]);`, "out of bounds")
	runExpectErrorContains(t, `دع ق = [1, 2]; اطبع(ق["أ"]);`, "must be an integer")
}

func TestDictErrors(t *testing.T) {
	runExpectErrorContains(t, `دع د = {"أ": 1}; اطبع(د["ب"]);`, "key not found")
	runExpectErrorContains(t, `دع د = {"أ": 1}; اطبع(د[0]);`, "must be a string")
	runExpectErrorContains(t, `دع د = {1: 2};`, "must be a string")
}

func TestIndexingNonIndexable(t *testing.T) {
	runExpectErrorContains(t, `اطبع(1[0]);`, "cannot index")
}

func TestFieldAccessErrors(t *testing.T) {
	runExpectErrorContains(t, `اطبع(1.حقل);`, "cannot read field")
	runExpectErrorContains(t, `دع س = 1; س.حقل = 2;`, "cannot set field")
	runExpectErrorContains(t, `صنف ص {} (جديد ص()).غائب;`, "undefined field")
}

func TestConstructorArityWithoutInit(t *testing.T) {
	runExpectErrorContains(t, `صنف ص {} جديد ص(1);`, "takes no arguments")
}

func TestInheritFromNonClass(t *testing.T) {
	runExpectErrorContains(t, `دع أ = 1; صنف ب يرث أ {}`, "non-class")
}

func TestNonIterableForeach(t *testing.T) {
	runExpectErrorContains(t, `لكل (ع في 42) { اطبع(ع); }`, "not iterable")
}

func TestNumericOperandErrors(t *testing.T) {
	runExpectErrorContains(t, `دع س = -"أ";`, "requires a number")
	runExpectErrorContains(t, `دع س = "أ" * 2;`, "requires numbers")
	runExpectErrorContains(t, `دع س = 1.5 & 2;`, "requires integers")
	runExpectErrorContains(t, `دع س = ~"أ";`, "requires an integer")
}

func TestUnboundedRecursionOverflowsFrames(t *testing.T) {
	runExpectErrorContains(t, `دالة ف() { ارجع ف(); } ف();`, "call stack overflow")
}

func TestRuntimeErrorCarriesTraceback(t *testing.T) {
	chunk := compileSource(t, `
دالة داخل() { ارجع مجهول; }
دالة خارج() { ارجع داخل(); }
خارج();
`)
	machine, _ := newTestVM()
	err := machine.Run(chunk)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("want *RuntimeError, got %T", err)
	}
	if len(re.Trace) != 3 {
		t.Fatalf("want 3 traceback frames (داخل, خارج, script), got %d: %v", len(re.Trace), re.Trace)
	}
	if !strings.Contains(re.Trace[0], "داخل") {
		t.Fatalf("innermost frame should name داخل: %v", re.Trace)
	}
	if !strings.Contains(re.Trace[2], "<script>") {
		t.Fatalf("outermost frame should be the script: %v", re.Trace)
	}
	for _, line := range re.Trace {
		if !strings.Contains(line, "[line ") {
			t.Fatalf("trace line %q should carry a source line", line)
		}
	}
}

func TestReservedOpcodesAreRuntimeErrors(t *testing.T) {
	for _, op := range []Opcode{OP_TRY_START, OP_CATCH, OP_THROW, OP_FINALLY} {
		chunk := NewChunk()
		chunk.WriteOp(op, 1, 0)
		chunk.WriteOp(OP_HALT, 1, 0)
		machine, _ := newTestVM()
		err := machine.Run(chunk)
		if err == nil || !strings.Contains(err.Error(), "unsupported opcode") {
			t.Fatalf("opcode %s: want unsupported-opcode error, got %v", op, err)
		}
	}
}

func TestStrictAndOrOpcodes(t *testing.T) {
	// The compiler never emits OP_AND/OP_OR; they remain executable for
	// directly constructed chunks.
	chunk := NewChunk()
	chunk.WriteOp(OP_CONST_TRUE, 1, 0)
	chunk.WriteOp(OP_CONST_FALSE, 1, 0)
	chunk.WriteOp(OP_AND, 1, 0)
	chunk.WriteOp(OP_POP, 1, 0)
	chunk.WriteOp(OP_HALT, 1, 0)
	machine, _ := newTestVM()
	if err := machine.Run(chunk); err != nil {
		t.Fatalf("strict AND should execute: %s", err)
	}
}
