package vm

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// newTestVM builds a VM with a print native targeting a buffer, so tests
// observe program output without the full standard library.
func newTestVM() (*VM, *bytes.Buffer) {
	machine := New()
	var buf bytes.Buffer
	machine.SetOutput(&buf)
	machine.RegisterNative("اطبع", func(m *VM, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Inspect()
		}
		fmt.Fprintln(m.Output(), strings.Join(parts, " "))
		return NilVal(), nil
	})
	return machine, &buf
}

func runSource(t *testing.T, input string) string {
	t.Helper()
	chunk := compileSource(t, input)
	machine, buf := newTestVM()
	if err := machine.Run(chunk); err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return buf.String()
}

func expectOutput(t *testing.T, input string, wantLines ...string) {
	t.Helper()
	got := runSource(t, input)
	want := strings.Join(wantLines, "\n") + "\n"
	if len(wantLines) == 0 {
		want = ""
	}
	if got != want {
		t.Fatalf("output mismatch:\nsource: %s\n got: %q\nwant: %q", input, got, want)
	}
}

func TestArithmeticPrecedence(t *testing.T) {
	expectOutput(t, `دع س = 1 + 2 * 3; اطبع(س);`, "7")
}

func TestIntFloatPromotion(t *testing.T) {
	expectOutput(t, `اطبع(1 + 2.5); اطبع(7 / 2); اطبع(8 / 2); اطبع(2 ** 10); اطبع(7 % 3);`,
		"3.5", "3.5", "4", "1024", "1")
}

func TestRecursiveFibonacci(t *testing.T) {
	expectOutput(t, `
دالة فيب(ن) {
	اذا (ن < 2) { ارجع ن; }
	ارجع فيب(ن - 1) + فيب(ن - 2);
}
اطبع(فيب(10));
`, "55")
}

func TestClosureCounter(t *testing.T) {
	expectOutput(t, `
دالة صانع() {
	دع عداد = 0;
	ارجع دالة() { عداد = عداد + 1; ارجع عداد; };
}
دع عد = صانع();
اطبع(عد());
اطبع(عد());
اطبع(عد());
`, "1", "2", "3")
}

func TestTwoClosuresShareOneUpvalue(t *testing.T) {
	expectOutput(t, `
دالة زوج() {
	دع قيمة = 0;
	دع ضع = دالة(ج) { قيمة = ج; };
	دع خذ = دالة() { ارجع قيمة; };
	ضع(41);
	اطبع(خذ());
	ارجع [ضع, خذ];
}
دع ثنائي = زوج();
ثنائي[0](99);
اطبع(ثنائي[1]());
`, "41", "99")
}

func TestClosedUpvalueSurvivesFrameReuse(t *testing.T) {
	expectOutput(t, `
دالة احفظ(س) {
	ارجع دالة() { ارجع س; };
}
دع أ = احفظ(10);
دع ب = احفظ(20);
اطبع(أ());
اطبع(ب());
اطبع(أ());
`, "10", "20", "10")
}

func TestListIndexing(t *testing.T) {
	expectOutput(t, `دع ق = [3, 1, 2]; اطبع(ق[0] + ق[1] + ق[2]);`, "6")
}

func TestListAndDictAssignment(t *testing.T) {
	expectOutput(t, `
دع ق = [1, 2, 3];
ق[1] = 20;
اطبع(ق[1]);
دع د = {"أ": 1};
د["ب"] = 2;
اطبع(د["أ"] + د["ب"]);
`, "20", "3")
}

func TestWhileLoop(t *testing.T) {
	expectOutput(t, `دع ع = 0; طالما (ع < 3) { اطبع(ع); ع = ع + 1; }`, "0", "1", "2")
}

func TestForLoopWithBreakContinue(t *testing.T) {
	expectOutput(t, `
لكل (دع ي = 0; ي < 10; ي++) {
	اذا (ي % 2 == 0) { استمر; }
	اذا (ي > 6) { توقف; }
	اطبع(ي);
}
`, "1", "3", "5")
}

func TestForeachOverListAndDict(t *testing.T) {
	expectOutput(t, `
لكل (ع في [10, 20]) { اطبع(ع); }
لكل (م في {"أ": 1, "ب": 2}) { اطبع(م); }
`, "10", "20", "أ", "ب")
}

func TestClassFieldsAndMethods(t *testing.T) {
	expectOutput(t, `
صنف حيوان {
	انشئ(اسم) { هذا.اسم = اسم; }
	قدم() { ارجع "انا " + هذا.اسم; }
}
دع قط = جديد حيوان("قط");
اطبع(قط.قدم());
قط.اسم = "هر";
اطبع(قط.قدم());
`, "انا قط", "انا هر")
}

func TestInheritedMethodDispatch(t *testing.T) {
	expectOutput(t, `
صنف أ { تحية() { اطبع("أ"); } }
صنف ب يرث أ {}
(جديد ب()).تحية();
`, "أ")
}

func TestChildMethodOverridesParent(t *testing.T) {
	expectOutput(t, `
صنف أ { تحية() { ارجع "أ"; } }
صنف ب يرث أ { تحية() { ارجع "ب"; } }
اطبع((جديد أ()).تحية());
اطبع((جديد ب()).تحية());
`, "أ", "ب")
}

func TestConstructorReturnsInstanceNotInitResult(t *testing.T) {
	expectOutput(t, `
صنف ن {
	انشئ() { هذا.قيمة = 5; ارجع 0; }
}
دع م = جديد ن();
اطبع(م.قيمة);
`, "5")
}

func TestBoundMethodExtractedAndCalledLater(t *testing.T) {
	expectOutput(t, `
صنف عداد {
	انشئ() { هذا.عدد = 0; }
	زد() { هذا.عدد = هذا.عدد + 1; ارجع هذا.عدد; }
}
دع ع = جديد عداد();
دع زد = ع.زد;
زد();
زد();
اطبع(ع.عدد);
`, "2")
}

func TestDefaultParameterValues(t *testing.T) {
	expectOutput(t, `
دالة رحب(اسم, تحية = "اهلا") { ارجع تحية + " " + اسم; }
اطبع(رحب("سالم"));
اطبع(رحب("سالم", "مرحبا"));
`, "اهلا سالم", "مرحبا سالم")
}

func TestStringAndListConcat(t *testing.T) {
	expectOutput(t, `
اطبع("اب" + "جد");
دع ق = [1] + [2, 3];
اطبع(ق[0] + ق[1] + ق[2]);
`, "ابجد", "6")
}

func TestComparisonsAndEquality(t *testing.T) {
	expectOutput(t, `
اطبع(1 < 2);
اطبع("اب" < "اج");
اطبع([1, 2] == [1, 2]);
اطبع({"أ": 1} == {"أ": 1});
اطبع(1 == 1.0);
اطبع(1 == "1");
اطبع(فارغ == فارغ);
`, "صحيح", "صحيح", "صحيح", "صحيح", "خطأ", "خطأ", "صحيح")
}

func TestEqNeAreComplements(t *testing.T) {
	pairs := []string{`1, 1`, `1, 2`, `"أ", "أ"`, `[1], [2]`, `فارغ, خطأ`, `1.5, 1.5`}
	for _, p := range pairs {
		src := fmt.Sprintf(`دالة ف(أ, ب) { ارجع (أ == ب) != (أ != ب); } اطبع(ف(%s));`, p)
		expectOutput(t, src, "صحيح")
	}
}

func TestDoubleNotPreservesTruthiness(t *testing.T) {
	expectOutput(t, `
اطبع(!!0 == !0 == خطأ);
اطبع(!!"");
اطبع(!!"نص");
اطبع(!!فارغ);
اطبع(!!3.5);
`, "صحيح", "خطأ", "صحيح", "خطأ", "صحيح")
}

func TestBitwiseOperators(t *testing.T) {
	expectOutput(t, `اطبع(6 & 3); اطبع(6 | 3); اطبع(6 ^ 3); اطبع(~0); اطبع(1 << 4); اطبع(32 >> 2);`,
		"2", "7", "5", "-1", "16", "8")
}

func TestShortCircuitSkipsRightSide(t *testing.T) {
	// The right operand references an undefined global; short-circuit
	// lowering must never evaluate it.
	expectOutput(t, `
اطبع(خطأ && غير_معروف());
اطبع(صحيح || غير_معروف());
`, "خطأ", "صحيح")
}

func TestTernary(t *testing.T) {
	expectOutput(t, `اطبع(2 > 1 ? "نعم" : "لا"); اطبع(2 < 1 ? "نعم" : "لا");`, "نعم", "لا")
}

func TestIncDecSemantics(t *testing.T) {
	expectOutput(t, `
دع س = 5;
اطبع(س++);
اطبع(س);
اطبع(++س);
اطبع(--س);
اطبع(س--);
اطبع(س);
`, "5", "6", "7", "6", "6", "5")
}

func TestIncDecOnMemberAndIndexTargets(t *testing.T) {
	expectOutput(t, `
دع ق = [10];
ق[0]++;
اطبع(ق[0]);
صنف ص { انشئ() { هذا.ن = 1; } }
دع م = جديد ص();
++م.ن;
اطبع(م.ن);
`, "11", "2")
}

func TestNestedCallsRestoreStack(t *testing.T) {
	expectOutput(t, `
دالة جمع(أ, ب) { ارجع أ + ب; }
اطبع(جمع(جمع(1, 2), جمع(3, 4)));
اطبع(جمع(1, جمع(2, جمع(3, 4))));
`, "10", "10")
}

func TestBareReturnYieldsNull(t *testing.T) {
	expectOutput(t, `
دالة لاشيء() { ارجع; }
اطبع(لاشيء());
`, "فارغ")
}

func TestGlobalReassignmentAcrossStatements(t *testing.T) {
	expectOutput(t, `دع س = 1; دع س = س + 1; اطبع(س);`, "2")
}

func TestLambdaPassedAsArgument(t *testing.T) {
	expectOutput(t, `
دالة طبق(ف, س) { ارجع ف(س); }
اطبع(طبق(دالة(ن) { ارجع ن * ن; }, 9));
`, "81")
}

func TestImportExportAreNoOps(t *testing.T) {
	expectOutput(t, `استورد "رياضيات"; صدّر س; دع س = 1; اطبع(س);`, "1")
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	machine, buf := newTestVM()
	first := compileSource(t, `دع س = 40;`)
	if err := machine.Run(first); err != nil {
		t.Fatalf("first run: %s", err)
	}
	second := compileSource(t, `اطبع(س + 2);`)
	if err := machine.Run(second); err != nil {
		t.Fatalf("second run: %s", err)
	}
	if got := buf.String(); got != "42\n" {
		t.Fatalf("want 42, got %q", got)
	}
}
