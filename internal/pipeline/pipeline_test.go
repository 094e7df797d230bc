package pipeline

import (
	"strings"
	"testing"
)

func TestCompileSourceProducesRunnableChunk(t *testing.T) {
	chunk, err := CompileSource("ok.سكب", `دع س = 1 + 2;`)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if chunk == nil || chunk.Len() == 0 {
		t.Fatalf("expected a non-empty chunk")
	}
}

func TestCompileSourceAggregatesSyntaxErrors(t *testing.T) {
	_, err := CompileSource("bad.سكب", `دع ; دع = ;`)
	if err == nil {
		t.Fatalf("expected syntax errors")
	}
	if !strings.Contains(err.Error(), "bad.سكب") {
		t.Fatalf("error should carry the file name: %s", err)
	}
	if !strings.Contains(err.Error(), "syntax error") {
		t.Fatalf("error should be reported as syntax errors: %s", err)
	}
}

func TestCompileSourceSurfacesCompileErrors(t *testing.T) {
	_, err := CompileSource("scope.سكب", `{ دع س = 1; دع س = 2; }`)
	if err == nil {
		t.Fatalf("expected a compile error")
	}
	if !strings.Contains(err.Error(), "already declared") {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestPipelineCollectsDiagnosticsAcrossStages(t *testing.T) {
	ctx := New(ParseProcessor{}, CompileProcessor{}).Run(&Context{
		File:   "multi.سكب",
		Source: `توقف;`,
	})
	if !ctx.Failed() {
		t.Fatalf("break outside a loop should fail compilation")
	}
	if len(ctx.ParseErrors) != 0 {
		t.Fatalf("no parse errors expected, got %v", ctx.ParseErrors)
	}
	if ctx.CompileErr == nil {
		t.Fatalf("compile stage should have recorded the error")
	}
}
