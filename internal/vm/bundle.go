package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
)

// Bundle is a compiled program in its on-disk form: the top-level chunk
// (nested function protos travel inside its constant pool) stamped with a
// random build ID. The build ID tags cache entries and --stats traces; it
// is regenerated on every compile, so an unchanged source file is
// identified by its content hash, not by the ID.
type Bundle struct {
	BuildID uuid.UUID
	Main    *Chunk
}

// bundleMagic and bundleVersion open every serialized bundle.
var (
	bundleMagic   = [4]byte{'S', 'K', 'P', 'B'}
	bundleVersion = [3]byte{1, 0, 0}
)

// Constant-pool entry tags.
const (
	constTagInt      = 0x01
	constTagFloat    = 0x02
	constTagString   = 0x03
	constTagFunction = 0x04
)

// NewBundle wraps a freshly compiled chunk with a new build ID.
func NewBundle(main *Chunk) *Bundle {
	return &Bundle{BuildID: uuid.New(), Main: main}
}

// Encode serializes the bundle: magic, version, build ID, then the
// top-level chunk (code byte count and bytes, constant count and tagged
// constants, then the per-byte line table). All integers are
// little-endian; counts are 8 bytes.
func (b *Bundle) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(bundleMagic[:])
	buf.Write(bundleVersion[:])
	buf.Write(b.BuildID[:])
	if err := encodeChunk(&buf, b.Main); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeChunk(buf *bytes.Buffer, c *Chunk) error {
	writeU64(buf, uint64(len(c.Code)))
	buf.Write(c.Code)

	writeU64(buf, uint64(len(c.Constants)))
	for _, v := range c.Constants {
		if err := encodeConstant(buf, v); err != nil {
			return err
		}
	}

	for _, line := range c.Lines {
		writeU32(buf, uint32(line))
	}
	return nil
}

func encodeConstant(buf *bytes.Buffer, v Value) error {
	switch v.Type {
	case ValInt:
		buf.WriteByte(constTagInt)
		writeU64(buf, uint64(v.AsInt()))
		return nil
	case ValFloat:
		buf.WriteByte(constTagFloat)
		writeU64(buf, math.Float64bits(v.AsFloat()))
		return nil
	case ValObj:
		switch o := v.Obj.(type) {
		case *ObjString:
			buf.WriteByte(constTagString)
			writeU64(buf, uint64(len(o.Value)))
			buf.WriteString(o.Value)
			return nil
		case *CompiledFunction:
			buf.WriteByte(constTagFunction)
			buf.WriteByte(byte(o.Arity))
			buf.WriteByte(byte(o.UpvalueCount))
			buf.WriteByte(byte(o.LocalCount))
			if o.IsInit {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			writeU64(buf, uint64(len(o.Name)))
			buf.WriteString(o.Name)
			buf.WriteByte(byte(len(o.Params)))
			for _, p := range o.Params {
				writeU64(buf, uint64(len(p.Name)))
				buf.WriteString(p.Name)
				writeU64(buf, uint64(int64(p.DefaultIdx)))
			}
			return encodeChunk(buf, o.Chunk)
		}
	}
	return fmt.Errorf("constant of type %s cannot be serialized", v.TypeName())
}

// DecodeBundle parses data produced by Encode, validating the magic and
// version before touching the payload.
func DecodeBundle(data []byte) (*Bundle, error) {
	r := &bundleReader{data: data}

	magic, err := r.bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, bundleMagic[:]) {
		return nil, fmt.Errorf("not a bundle: bad magic %q", magic)
	}
	ver, err := r.bytes(3)
	if err != nil {
		return nil, err
	}
	if ver[0] != bundleVersion[0] {
		return nil, fmt.Errorf("unsupported bundle version %d.%d.%d", ver[0], ver[1], ver[2])
	}

	b := &Bundle{}
	idBytes, err := r.bytes(16)
	if err != nil {
		return nil, err
	}
	copy(b.BuildID[:], idBytes)

	b.Main, err = decodeChunk(r)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WriteFile encodes the bundle to path.
func (b *Bundle) WriteFile(path string) error {
	data, err := b.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBundleFile loads and decodes a bundle from path.
func ReadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeBundle(data)
}

type bundleReader struct {
	data []byte
	pos  int
}

func (r *bundleReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("truncated bundle at byte %d", r.pos)
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *bundleReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *bundleReader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *bundleReader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func decodeChunk(r *bundleReader) (*Chunk, error) {
	codeLen, err := r.u64()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}

	c := NewChunk()
	c.Code = append(c.Code, code...)

	constCount, err := r.u64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < constCount; i++ {
		v, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, v)
	}

	for i := uint64(0); i < codeLen; i++ {
		line, err := r.u32()
		if err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, int(line))
		c.Columns = append(c.Columns, 0)
	}
	return c, nil
}

func decodeConstant(r *bundleReader) (Value, error) {
	tag, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case constTagInt:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return IntVal(int64(n)), nil
	case constTagFloat:
		bits, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return FloatVal(math.Float64frombits(bits)), nil
	case constTagString:
		n, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		s, err := r.bytes(int(n))
		if err != nil {
			return Value{}, err
		}
		return ObjVal(&ObjString{Value: string(s)}), nil
	case constTagFunction:
		return decodeFunction(r)
	default:
		return Value{}, fmt.Errorf("unknown constant tag 0x%02x", tag)
	}
}

func decodeFunction(r *bundleReader) (Value, error) {
	arity, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	upc, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	localCount, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	isInit, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	nameLen, err := r.u64()
	if err != nil {
		return Value{}, err
	}
	name, err := r.bytes(int(nameLen))
	if err != nil {
		return Value{}, err
	}

	fn := &CompiledFunction{
		Arity:        int(arity),
		UpvalueCount: int(upc),
		LocalCount:   int(localCount),
		IsInit:       isInit == 1,
		Name:         string(name),
	}

	paramCount, err := r.byte()
	if err != nil {
		return Value{}, err
	}
	for i := 0; i < int(paramCount); i++ {
		pnLen, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		pn, err := r.bytes(int(pnLen))
		if err != nil {
			return Value{}, err
		}
		defIdx, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		fn.Params = append(fn.Params, Param{Name: string(pn), DefaultIdx: int(int64(defIdx))})
	}

	fn.Chunk, err = decodeChunk(r)
	if err != nil {
		return Value{}, err
	}
	return ObjVal(fn), nil
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
