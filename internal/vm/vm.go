// Package vm implements SEEKEP's compiler and bytecode virtual machine:
// a tree-walking compiler that lowers an AST to bytecode, and a
// stack-based VM that executes it.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/droy-go/SEEKEP/internal/config"
)

// CallFrame is a single active function invocation: its closure, its
// instruction pointer, and its base slot on the value stack.
type CallFrame struct {
	closure *ObjClosure
	ip      int
	base    int
}

// VM holds the value stack, the call-frame stack, the globals map, the
// open-upvalue list, and the bytecode dispatch loop. One VM instance owns
// its stack and frames exclusively; it is strictly single-threaded.
type VM struct {
	stack    []Value
	stackTop int

	frames     []CallFrame
	frameCount int

	globals *Globals

	openUpvalues *ObjUpvalue

	out io.Writer
}

// New creates a VM with empty globals and no native functions registered.
// Call RegisterNative before Run.
func New() *VM {
	return &VM{
		stack:   make([]Value, config.StackMax),
		frames:  make([]CallFrame, config.FramesMax),
		globals: NewGlobals(),
		out:     os.Stdout,
	}
}

// SetOutput redirects the output of the print native and future native
// functions that write to stdout; tests use this to capture output.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// RuntimeError is a failure detected during execution: type
// mismatch, division by zero, undefined global, non-callable CALL, and so
// on. Trace holds one formatted line per call frame active at the point
// of failure, innermost first.
type RuntimeError struct {
	Message string
	Trace   []string
}

func (e *RuntimeError) Error() string {
	s := "runtime error: " + e.Message
	for _, t := range e.Trace {
		s += "\n  " + t
	}
	return s
}

// runtimeError builds a RuntimeError carrying a traceback derived from
// every active frame's chunk.LineFor(ip-1).
func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	err := &RuntimeError{Message: fmt.Sprintf(format, args...)}
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		line := f.closure.Function.Chunk.LineFor(f.ip - 1)
		name := f.closure.Function.Name
		if name == "" {
			name = "<script>"
		}
		err.Trace = append(err.Trace, fmt.Sprintf("[line %d] in %s", line, name))
	}
	return err
}

// Run loads chunk as frame 0 (wrapped in an implicit top-level function,
// mirroring how every other callable is a Closure) and executes it to
// completion or until a RuntimeError/HALT.
func (vm *VM) Run(chunk *Chunk) error {
	script := &CompiledFunction{Name: "", Chunk: chunk, Arity: 0}
	closure := &ObjClosure{Function: script}

	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil

	vm.push(ObjVal(closure))
	vm.frames[0] = CallFrame{closure: closure, ip: 0, base: 0}
	vm.frameCount = 1

	return vm.run()
}

// push/pop/peek implement the fixed-capacity value stack.
func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

// checkStackOverflow reports a RuntimeError once the value stack would
// exceed config.StackMax.
func (vm *VM) checkStackOverflow() error {
	if vm.stackTop >= len(vm.stack) {
		return vm.runtimeError("stack overflow")
	}
	return nil
}
