package vm

import (
	"errors"

	"github.com/droy-go/SEEKEP/internal/config"
)

// ErrTooManyConstants is raised when a chunk would exceed the single-byte
// constant-index limit.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// Chunk is the compilation unit: instruction bytes, a parallel per-byte
// source-line table, and a constant pool.
type Chunk struct {
	Code      []byte
	Constants []Value
	Lines     []int
	Columns   []int
	File      string
}

func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 256),
		Constants: make([]Value, 0, 16),
		Lines:     make([]int, 0, 256),
		Columns:   make([]int, 0, 256),
	}
}

// WriteByte appends a raw byte with its source position.
func (c *Chunk) WriteByte(b byte, line, col int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, col)
}

func (c *Chunk) WriteOp(op Opcode, line, col int) {
	c.WriteByte(byte(op), line, col)
}

// AddConstant appends value to the pool and returns its index, or an error
// if doing so would exceed config.MaxConstants.
func (c *Chunk) AddConstant(value Value) (int, error) {
	if len(c.Constants) >= config.MaxConstants {
		return 0, ErrTooManyConstants
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1, nil
}

// Patch16 writes a big-endian 16-bit value at offset,offset+1, used to
// back-patch JUMP*/LOOP operands once their target is known.
func (c *Chunk) Patch16(offset int, value uint16) {
	c.Code[offset] = byte(value >> 8)
	c.Code[offset+1] = byte(value)
}

func (c *Chunk) Read16(offset int) uint16 {
	return uint16(c.Code[offset])<<8 | uint16(c.Code[offset+1])
}

func (c *Chunk) Len() int { return len(c.Code) }

// LineFor returns the source line recorded for the byte at offset, used by
// the VM's traceback printer.
func (c *Chunk) LineFor(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		if len(c.Lines) == 0 {
			return 0
		}
		return c.Lines[len(c.Lines)-1]
	}
	return c.Lines[offset]
}
