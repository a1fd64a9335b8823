package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// ErrMalformed wraps any failure to parse a .class file's binary format.
// Classes that fail to decode are skipped by the corpus scan (spec.md §4.2,
// §7); they are never fatal to the whole run.
type ErrMalformed struct {
	Source string
	Err    error
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed class %s: %v", e.Source, e.Err)
}

func (e *ErrMalformed) Unwrap() error { return e.Err }

const magic = 0xCAFEBABE

// reader is a small big-endian cursor over class file bytes. The JVM class
// file format is entirely big-endian, fixed-width, length-prefixed data —
// no separate decoding library is warranted for it.
type reader struct {
	r   io.Reader
	err error
}

func (cr *reader) u1() uint8 {
	var b [1]byte
	cr.read(b[:])
	return b[0]
}

func (cr *reader) u2() uint16 {
	var b [2]byte
	cr.read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

func (cr *reader) u4() uint32 {
	var b [4]byte
	cr.read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (cr *reader) bytes(n int) []byte {
	b := make([]byte, n)
	cr.read(b)
	return b
}

func (cr *reader) read(b []byte) {
	if cr.err != nil {
		return
	}
	if _, err := io.ReadFull(cr.r, b); err != nil {
		cr.err = err
	}
}

// Read parses a .class file from r. source is used only in error messages.
func Read(r io.Reader, source string) (*Class, error) {
	cr := &reader{r: r}

	if got := cr.u4(); cr.err == nil && got != magic {
		return nil, &ErrMalformed{Source: source, Err: fmt.Errorf("bad magic 0x%08X", got)}
	}
	_ = cr.u2() // minor version
	_ = cr.u2() // major version

	pool, err := readConstantPool(cr)
	if err != nil {
		return nil, &ErrMalformed{Source: source, Err: err}
	}

	_ = cr.u2() // access flags
	thisClassIdx := cr.u2()
	_ = cr.u2() // super class

	interfaceCount := cr.u2()
	for i := 0; i < int(interfaceCount); i++ {
		_ = cr.u2()
	}

	fieldCount := cr.u2()
	for i := 0; i < int(fieldCount); i++ {
		if err := skipFieldOrMethod(cr); err != nil {
			return nil, &ErrMalformed{Source: source, Err: err}
		}
	}

	methodCount := cr.u2()
	methods := make([]Method, 0, methodCount)
	for i := 0; i < int(methodCount); i++ {
		m, err := readMethod(cr, pool)
		if err != nil {
			return nil, &ErrMalformed{Source: source, Err: err}
		}
		methods = append(methods, m)
	}

	sourceFile := ""
	attrCount := cr.u2()
	for i := 0; i < int(attrCount); i++ {
		name, data, err := readAttribute(cr, pool)
		if err != nil {
			return nil, &ErrMalformed{Source: source, Err: err}
		}
		if name == "SourceFile" && len(data) >= 2 {
			idx := binary.BigEndian.Uint16(data)
			sourceFile, _ = utf8At(pool, idx)
		}
	}

	if cr.err != nil {
		return nil, &ErrMalformed{Source: source, Err: cr.err}
	}

	className, err := classNameAt(pool, thisClassIdx)
	if err != nil {
		return nil, &ErrMalformed{Source: source, Err: err}
	}

	return &Class{Name: className, SourceFile: sourceFile, Methods: methods}, nil
}

func readConstantPool(cr *reader) ([]ConstantPoolEntry, error) {
	count := cr.u2()
	// Index 0 is unused; entries are 1-indexed. Long/Double occupy two
	// slots, so the pool slice has holes (nil) after such an entry.
	pool := make([]ConstantPoolEntry, count)
	for i := 1; i < int(count); i++ {
		tag := cr.u1()
		switch tag {
		case TagUtf8:
			n := cr.u2()
			pool[i] = &ConstantUtf8{Value: string(cr.bytes(int(n)))}
		case TagInteger:
			pool[i] = &ConstantInteger{Value: int32(cr.u4())}
		case TagFloat:
			pool[i] = &ConstantFloat{Value: math.Float32frombits(cr.u4())}
		case TagLong:
			hi, lo := cr.u4(), cr.u4()
			pool[i] = &ConstantLong{Value: int64(hi)<<32 | int64(lo)}
			i++ // occupies two entries
		case TagDouble:
			hi, lo := cr.u4(), cr.u4()
			pool[i] = &ConstantDouble{Value: math.Float64frombits(uint64(hi)<<32 | uint64(lo))}
			i++
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: cr.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: cr.u2()}
		case TagFieldref:
			pool[i] = &ConstantFieldref{ClassIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagMethodref:
			pool[i] = &ConstantMethodref{ClassIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagInterfaceMethodref:
			pool[i] = &ConstantInterfaceMethodref{ClassIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: cr.u2(), DescriptorIndex: cr.u2()}
		case TagMethodHandle:
			pool[i] = &ConstantMethodHandle{ReferenceKind: cr.u1(), ReferenceIndex: cr.u2()}
		case TagMethodType:
			pool[i] = &ConstantMethodType{DescriptorIndex: cr.u2()}
		case TagDynamic:
			pool[i] = &ConstantDynamic{BootstrapMethodAttrIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagInvokeDynamic:
			pool[i] = &ConstantInvokeDynamic{BootstrapMethodAttrIndex: cr.u2(), NameAndTypeIndex: cr.u2()}
		case TagModule:
			pool[i] = &ConstantModule{NameIndex: cr.u2()}
		case TagPackage:
			pool[i] = &ConstantPackage{NameIndex: cr.u2()}
		default:
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if cr.err != nil {
			return nil, cr.err
		}
	}
	return pool, nil
}

// skipFieldOrMethod consumes a field_info/method_info structure without
// retaining it (used for the fields table, which this module never needs).
func skipFieldOrMethod(cr *reader) error {
	_ = cr.u2() // access_flags
	_ = cr.u2() // name_index
	_ = cr.u2() // descriptor_index
	attrCount := cr.u2()
	for i := 0; i < int(attrCount); i++ {
		_ = cr.u2() // attribute_name_index
		length := cr.u4()
		cr.bytes(int(length))
	}
	return cr.err
}

func readMethod(cr *reader, pool []ConstantPoolEntry) (Method, error) {
	accessFlags := cr.u2()
	nameIdx := cr.u2()
	descIdx := cr.u2()

	name, _ := utf8At(pool, nameIdx)
	descriptor, _ := utf8At(pool, descIdx)
	argCount, returnsVoid := parseMethodDescriptor(descriptor)

	m := Method{
		Name:        name,
		Descriptor:  descriptor,
		AccessFlags: accessFlags,
		ArgCount:    argCount,
		ReturnsVoid: returnsVoid,
	}

	attrCount := cr.u2()
	for i := 0; i < int(attrCount); i++ {
		attrName, data, err := readAttribute(cr, pool)
		if err != nil {
			return Method{}, err
		}
		if attrName == "Code" {
			instrs, err := decodeCodeAttribute(data, pool)
			if err != nil {
				return Method{}, err
			}
			m.HasBody = true
			m.Instructions = instrs
		}
	}
	if cr.err != nil {
		return Method{}, cr.err
	}
	return m, nil
}

// readAttribute reads one generic attribute_info, returning its name (via
// the constant pool) and raw payload bytes.
func readAttribute(cr *reader, pool []ConstantPoolEntry) (name string, data []byte, err error) {
	nameIdx := cr.u2()
	length := cr.u4()
	data = cr.bytes(int(length))
	if cr.err != nil {
		return "", nil, cr.err
	}
	name, _ = utf8At(pool, nameIdx)
	return name, data, nil
}

func utf8At(pool []ConstantPoolEntry, idx uint16) (string, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return "", fmt.Errorf("invalid UTF8 constant index %d", idx)
	}
	u, ok := pool[idx].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8", idx)
	}
	return u.Value, nil
}

func classNameAt(pool []ConstantPoolEntry, idx uint16) (string, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return "", fmt.Errorf("invalid class constant index %d", idx)
	}
	c, ok := pool[idx].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", idx)
	}
	name, err := utf8At(pool, c.NameIndex)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(name, "/", "."), nil
}
