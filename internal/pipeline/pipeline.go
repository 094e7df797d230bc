// Package pipeline chains the front-end stages that turn source text into
// an executable chunk: parsing and compilation, each a Processor over a
// shared Context.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/droy-go/SEEKEP/internal/ast"
	"github.com/droy-go/SEEKEP/internal/lexer"
	"github.com/droy-go/SEEKEP/internal/parser"
	"github.com/droy-go/SEEKEP/internal/vm"
)

// Context carries one compilation's inputs, intermediate results, and
// collected diagnostics through the stages.
type Context struct {
	File   string
	Source string

	Program *ast.Program
	Chunk   *vm.Chunk

	ParseErrors []*parser.ParseError
	CompileErr  error
}

// Failed reports whether any stage recorded an error.
func (c *Context) Failed() bool {
	return len(c.ParseErrors) > 0 || c.CompileErr != nil
}

// Err flattens the collected diagnostics (syntax errors first, then any
// compile error) into a single error, or nil.
func (c *Context) Err() error {
	if len(c.ParseErrors) > 0 {
		msgs := make([]string, len(c.ParseErrors))
		for i, e := range c.ParseErrors {
			msgs[i] = e.Error()
		}
		if c.CompileErr != nil {
			return fmt.Errorf("%s: %d syntax error(s):\n  %s\n%s: %w", c.File, len(c.ParseErrors), strings.Join(msgs, "\n  "), c.File, c.CompileErr)
		}
		return fmt.Errorf("%s: %d syntax error(s):\n  %s", c.File, len(c.ParseErrors), strings.Join(msgs, "\n  "))
	}
	if c.CompileErr != nil {
		return fmt.Errorf("%s: %w", c.File, c.CompileErr)
	}
	return nil
}

// Processor is a single pipeline stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. Stages keep running after an error so that
// diagnostics from every stage are collected in one pass.
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}

// ParseProcessor lexes and parses the source into ctx.Program.
type ParseProcessor struct{}

func (ParseProcessor) Process(ctx *Context) *Context {
	p := parser.New(lexer.New(ctx.Source))
	ctx.Program = p.ParseProgram()
	ctx.ParseErrors = p.Errors()
	return ctx
}

// CompileProcessor lowers ctx.Program to bytecode. It still runs on a
// program with recovered syntax errors so compile diagnostics surface
// alongside them in the same pass.
type CompileProcessor struct{}

func (CompileProcessor) Process(ctx *Context) *Context {
	if ctx.Program == nil {
		return ctx
	}
	ctx.Chunk, ctx.CompileErr = vm.Compile(ctx.Program)
	return ctx
}

// CompileSource runs the standard two-stage pipeline over source and
// returns the executable chunk, or the flattened diagnostics.
func CompileSource(file, source string) (*vm.Chunk, error) {
	ctx := New(ParseProcessor{}, CompileProcessor{}).Run(&Context{File: file, Source: source})
	if ctx.Failed() {
		return nil, ctx.Err()
	}
	return ctx.Chunk, nil
}
