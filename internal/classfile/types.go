// Package classfile parses compiled JVM class files into the minimal
// intermediate form spec.md §4.2 needs: class identity, methods, their
// instruction streams, and line-number tables. It intentionally does not
// model fields, most attributes, or verification data — those are parsed
// only far enough to skip over them correctly.
package classfile

// Constant pool tags, grounded on the constant-pool layout shown in
// _examples/other_examples/daimatz-gojvm__types.go, extended here with the
// tags that reference file's minimal interpreter didn't need (MethodHandle,
// MethodType, Dynamic, InvokeDynamic, Module, Package) so a modern class
// file's pool indices stay aligned even though this module never
// dereferences those entries.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// ConstantPoolEntry is implemented by every constant pool entry kind this
// module recognizes.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct{ Value string }

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct{ Value int32 }

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct{ Value float32 }

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct{ Value int64 }

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct{ Value float64 }

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct{ NameIndex uint16 }

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct{ StringIndex uint16 }

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// Opaque entries: parsed only enough to stay aligned; this module never
// inspects their fields.
type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

func (c *ConstantMethodHandle) Tag() uint8 { return TagMethodHandle }

type ConstantMethodType struct{ DescriptorIndex uint16 }

func (c *ConstantMethodType) Tag() uint8 { return TagMethodType }

type ConstantDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantDynamic) Tag() uint8 { return TagDynamic }

type ConstantInvokeDynamic struct {
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

func (c *ConstantInvokeDynamic) Tag() uint8 { return TagInvokeDynamic }

type ConstantModule struct{ NameIndex uint16 }

func (c *ConstantModule) Tag() uint8 { return TagModule }

type ConstantPackage struct{ NameIndex uint16 }

func (c *ConstantPackage) Tag() uint8 { return TagPackage }

// MethodRef is a resolved reference to an invoked method: its declaring
// class in dotted form and its name, plus the raw descriptor for argument
// counting.
type MethodRef struct {
	DeclaringClass string // dotted, e.g. "java.security.MessageDigest"
	MethodName     string
	Descriptor     string // raw JVM method descriptor, e.g. "(Ljava/lang/String;)V"
}

// InstructionKind classifies an instruction into the families spec.md §4.2
// says the value tracker needs; everything else is Other. KindBranch,
// KindGoto, and KindSwitch exist so the tracker can build a control-flow
// graph and merge conservatively at join points (spec.md §4.3) instead of
// assuming a method never branches.
type InstructionKind int

const (
	KindOther InstructionKind = iota
	KindConstString
	KindLocalLoad
	KindLocalStore
	KindInvoke
	KindBranch // conditional: falls through to the next instruction or jumps to Target
	KindGoto   // unconditional jump to Target, never falls through
	KindSwitch // tableswitch/lookupswitch: jumps to one of Targets, never falls through
)

// InvokeForm distinguishes the four JVM invocation instructions; only
// InvokeStatic omits a receiver.
type InvokeForm int

const (
	InvokeVirtual InvokeForm = iota
	InvokeSpecial
	InvokeStatic
	InvokeInterface
)

// Instruction is one decoded bytecode instruction, reduced to what the
// tracker and scanner need.
type Instruction struct {
	Opcode byte
	Kind   InstructionKind

	StringConst string     // KindConstString
	LocalSlot   int        // KindLocalLoad / KindLocalStore
	Invoke      *MethodRef // KindInvoke
	InvokeForm  InvokeForm // KindInvoke

	// StackPop/StackPush approximate this instruction's net effect on the
	// operand stack for instructions the tracker does not special-case
	// (KindOther). KindInvoke's pop count is derived from the descriptor by
	// the tracker instead of from these fields. For KindBranch/KindSwitch,
	// StackPop is the number of comparison/key operands popped before the
	// branch decision; neither ever pushes.
	StackPop  int
	StackPush int

	// PC is this instruction's byte offset within the method's code array.
	// Target/Targets are absolute PCs, decoded from the branch offsets the
	// class file stores relative to this instruction's own PC. Both are
	// only meaningful for KindBranch (one Target, implicit fallthrough),
	// KindGoto (one Target, no fallthrough), and KindSwitch (Targets holds
	// the default offset plus every case, no fallthrough).
	PC      int
	Target  int
	Targets []int

	Line int // source line, or -1 if unknown
}

// Method is a decoded method: its identity, whether it has a body, and (if
// so) its linear instruction stream, each instruction carrying its source
// line.
type Method struct {
	Name        string
	Descriptor  string
	AccessFlags uint16
	HasBody     bool // false for abstract/native methods
	ArgCount    int  // descriptor argument count, receiver excluded
	ReturnsVoid bool

	Instructions []Instruction
}

// HasCodeAttribute reports whether this method declared a Code attribute.
func (m *Method) HasCodeAttribute() bool { return m.HasBody }

const (
	AccStatic   = 0x0008
	AccAbstract = 0x0400
	AccNative   = 0x0100
)

// IsStatic reports whether the method has the static access flag, which
// determines whether an invokestatic on it is receiver-less.
func (m *Method) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// SubSignature renders "returnType name(paramTypes)" the way spec.md §4.4
// requires, using dotted type names.
func (m *Method) SubSignature() string {
	ret, params := describeDescriptor(m.Descriptor)
	return ret + " " + m.Name + "(" + params + ")"
}

// Class is the decoded intermediate form of one .class file.
type Class struct {
	Name       string // dotted fully-qualified name
	SourceFile string // "" if no SourceFile attribute was present
	Methods    []Method
}
