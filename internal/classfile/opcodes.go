package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes this module special-cases. Everything else falls through to
// opcodeOperandSize/opcodeStackEffect, a generic table covering every
// other JVM instruction just well enough to keep the byte offset aligned.
const (
	opAload     = 0x19
	opAload0    = 0x2a
	opAload1    = 0x2b
	opAload2    = 0x2c
	opAload3    = 0x2d
	opAstore    = 0x3a
	opAstore0   = 0x4b
	opAstore1   = 0x4c
	opAstore2   = 0x4d
	opAstore3   = 0x4e
	opLdc       = 0x12
	opLdcW      = 0x13
	opLdc2W     = 0x14
	opInvokeV   = 0xb6
	opInvokeSp  = 0xb7
	opInvokeSt  = 0xb8
	opInvokeIf  = 0xb9
	opInvokeDyn = 0xba
	opWide      = 0xc4
	opTableSwtc = 0xaa
	opLookupSwc = 0xab

	opIfeq      = 0x99 // first of the single-operand if* family
	opIfACmpNe  = 0xa6 // last of the if_icmp*/if_acmp* two-operand family
	opGoto      = 0xa7
	opJsr       = 0xa8
	opIfNull    = 0xc6
	opIfNonNull = 0xc7
	opGotoW     = 0xc8
	opJsrW      = 0xc9
)

// decodeCodeAttribute parses a method's raw Code attribute payload into a
// linear instruction stream, resolving constant-pool references for
// string loads and method invocations. Only the instructions the tracker
// and scanner consult (spec.md §4.2/§4.3) are interpreted in detail; the
// rest are decoded only far enough to keep the byte offset correct.
func decodeCodeAttribute(data []byte, pool []ConstantPoolEntry) ([]Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated Code attribute")
	}
	codeLength := binary.BigEndian.Uint32(data[4:8])
	codeStart := 8
	codeEnd := codeStart + int(codeLength)
	if codeEnd > len(data) {
		return nil, fmt.Errorf("Code attribute length exceeds payload")
	}
	code := data[codeStart:codeEnd]

	lineTable := parseLineNumberTable(data[codeEnd:], pool)

	var instrs []Instruction
	pc := 0
	for pc < len(code) {
		startPC := pc
		opcode := code[pc]
		pc++

		instr := Instruction{
			Opcode: opcode,
			Kind:   KindOther,
			PC:     startPC,
			Line:   lineAt(lineTable, startPC),
		}

		switch opcode {
		case opAload0, opAload1, opAload2, opAload3:
			instr.Kind = KindLocalLoad
			instr.LocalSlot = int(opcode - opAload0)
		case opAload:
			instr.Kind = KindLocalLoad
			instr.LocalSlot = int(code[pc])
			pc++
		case opAstore0, opAstore1, opAstore2, opAstore3:
			instr.Kind = KindLocalStore
			instr.LocalSlot = int(opcode - opAstore0)
		case opAstore:
			instr.Kind = KindLocalStore
			instr.LocalSlot = int(code[pc])
			pc++
		case opLdc:
			idx := uint16(code[pc])
			pc++
			instr.StackPush = 1
			if s, ok := stringConstAt(pool, idx); ok {
				instr.Kind = KindConstString
				instr.StringConst = s
			}
		case opLdcW, opLdc2W:
			idx := binary.BigEndian.Uint16(code[pc : pc+2])
			pc += 2
			instr.StackPush = 1
			if opcode == opLdcW {
				if s, ok := stringConstAt(pool, idx); ok {
					instr.Kind = KindConstString
					instr.StringConst = s
				}
			}
		case opInvokeV, opInvokeSp, opInvokeSt:
			idx := binary.BigEndian.Uint16(code[pc : pc+2])
			pc += 2
			ref, err := resolveMethodref(pool, idx)
			if err == nil {
				instr.Kind = KindInvoke
				instr.Invoke = ref
				instr.InvokeForm = invokeFormOf(opcode)
			}
		case opInvokeIf:
			idx := binary.BigEndian.Uint16(code[pc : pc+2])
			pc += 4 // methodref index (2) + count (1) + reserved (1)
			ref, err := resolveMethodref(pool, idx)
			if err == nil {
				instr.Kind = KindInvoke
				instr.Invoke = ref
				instr.InvokeForm = InvokeInterface
			}
		case opInvokeDyn:
			pc += 4 // index (2) + reserved (2)
		case opWide:
			modified := code[pc]
			pc++
			pc += wideOperandSize(modified)
		case opTableSwtc:
			var targets []int
			targets, pc = decodeTableSwitch(code, startPC, pc)
			instr.Kind = KindSwitch
			instr.Targets = targets
			instr.StackPop = 1
		case opLookupSwc:
			var targets []int
			targets, pc = decodeLookupSwitch(code, startPC, pc)
			instr.Kind = KindSwitch
			instr.Targets = targets
			instr.StackPop = 1
		case opGoto, opJsr:
			offset := int16(binary.BigEndian.Uint16(code[pc : pc+2]))
			pc += 2
			instr.Kind = KindGoto
			instr.Target = startPC + int(offset)
		case opGotoW, opJsrW:
			offset := int32(binary.BigEndian.Uint32(code[pc : pc+4]))
			pc += 4
			instr.Kind = KindGoto
			instr.Target = startPC + int(offset)
		case opIfNull, opIfNonNull:
			offset := int16(binary.BigEndian.Uint16(code[pc : pc+2]))
			pc += 2
			instr.Kind = KindBranch
			instr.Target = startPC + int(offset)
			instr.StackPop = 1
		default:
			if opcode >= opIfeq && opcode <= opIfACmpNe {
				offset := int16(binary.BigEndian.Uint16(code[pc : pc+2]))
				pc += 2
				instr.Kind = KindBranch
				instr.Target = startPC + int(offset)
				if opcode <= 0x9e { // ifeq..ifle: single operand compared against zero
					instr.StackPop = 1
				} else { // if_icmp*, if_acmp*: two operands compared to each other
					instr.StackPop = 2
				}
				break
			}
			pc += opcodeOperandSize(opcode)
			instr.StackPop, instr.StackPush = opcodeStackEffect(opcode)
		}

		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func invokeFormOf(opcode byte) InvokeForm {
	switch opcode {
	case opInvokeSp:
		return InvokeSpecial
	case opInvokeSt:
		return InvokeStatic
	default:
		return InvokeVirtual
	}
}

func stringConstAt(pool []ConstantPoolEntry, idx uint16) (string, bool) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return "", false
	}
	s, ok := pool[idx].(*ConstantString)
	if !ok {
		return "", false
	}
	val, err := utf8At(pool, s.StringIndex)
	if err != nil {
		return "", false
	}
	return val, true
}

func resolveMethodref(pool []ConstantPoolEntry, idx uint16) (*MethodRef, error) {
	if int(idx) >= len(pool) || pool[idx] == nil {
		return nil, fmt.Errorf("invalid methodref index %d", idx)
	}
	var classIdx, natIdx uint16
	switch m := pool[idx].(type) {
	case *ConstantMethodref:
		classIdx, natIdx = m.ClassIndex, m.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIdx, natIdx = m.ClassIndex, m.NameAndTypeIndex
	default:
		return nil, fmt.Errorf("constant pool index %d is not a methodref", idx)
	}

	className, err := classNameAt(pool, classIdx)
	if err != nil {
		return nil, err
	}
	if int(natIdx) >= len(pool) || pool[natIdx] == nil {
		return nil, fmt.Errorf("invalid NameAndType index %d", natIdx)
	}
	nat, ok := pool[natIdx].(*ConstantNameAndType)
	if !ok {
		return nil, fmt.Errorf("constant pool index %d is not NameAndType", natIdx)
	}
	name, err := utf8At(pool, nat.NameIndex)
	if err != nil {
		return nil, err
	}
	descriptor, err := utf8At(pool, nat.DescriptorIndex)
	if err != nil {
		return nil, err
	}
	return &MethodRef{
		DeclaringClass: className,
		MethodName:     name,
		Descriptor:     descriptor,
	}, nil
}

type lineEntry struct {
	startPC int
	line    int
}

// parseLineNumberTable scans the attribute list that follows a method's
// Code body for LineNumberTable attributes. rest holds the raw bytes that
// follow the code array: the exception table (skipped), then the
// sub-attribute list (attribute_name_index/length-prefixed entries).
// Sub-attributes are identified by name through pool; any other kind is
// skipped.
func parseLineNumberTable(rest []byte, pool []ConstantPoolEntry) []lineEntry {
	if len(rest) < 2 {
		return nil
	}
	attrStart := 2 + 8*int(binary.BigEndian.Uint16(rest[0:2])) // exception_table_length + entries
	if attrStart+2 > len(rest) {
		return nil
	}
	attrs := rest[attrStart:]
	count := binary.BigEndian.Uint16(attrs[0:2])
	pos := 2
	var table []lineEntry
	for i := 0; i < int(count) && pos+6 <= len(attrs); i++ {
		nameIdx := binary.BigEndian.Uint16(attrs[pos : pos+2])
		pos += 2
		length := binary.BigEndian.Uint32(attrs[pos : pos+4])
		pos += 4
		if pos+int(length) > len(attrs) {
			break
		}
		body := attrs[pos : pos+int(length)]
		pos += int(length)
		if name, err := utf8At(pool, nameIdx); err == nil && name == "LineNumberTable" {
			table = append(table, decodeLineNumberBody(body)...)
		}
	}
	return table
}

func decodeLineNumberBody(body []byte) []lineEntry {
	if len(body) < 2 {
		return nil
	}
	count := binary.BigEndian.Uint16(body[0:2])
	var table []lineEntry
	pos := 2
	for i := 0; i < int(count) && pos+4 <= len(body); i++ {
		startPC := binary.BigEndian.Uint16(body[pos : pos+2])
		line := binary.BigEndian.Uint16(body[pos+2 : pos+4])
		table = append(table, lineEntry{startPC: int(startPC), line: int(line)})
		pos += 4
	}
	return table
}

// lineAt finds the line number in effect at pc: the entry with the
// largest startPC not exceeding pc. LineNumberTable entries are encoded
// in increasing startPC order in every class file this module has seen.
func lineAt(table []lineEntry, pc int) int {
	line := -1
	for _, e := range table {
		if e.startPC <= pc {
			line = e.line
		} else {
			break
		}
	}
	return line
}

func wideOperandSize(modifiedOpcode byte) int {
	if modifiedOpcode == 0x84 { // iinc
		return 4
	}
	return 2
}

// decodeTableSwitch consumes a tableswitch instruction's operands,
// returning its decoded jump targets (default offset first, then every
// case in table order) and the pc immediately after it. pc is positioned
// right after the opcode byte; padding aligns the default/low/high/offsets
// block to a 4-byte boundary measured from instrStart, the opcode's own
// position, which every offset in the block is relative to.
func decodeTableSwitch(code []byte, instrStart, pc int) ([]int, int) {
	pad := (4 - ((instrStart + 1) % 4)) % 4
	pos := pc + pad
	defaultOffset := int32(binary.BigEndian.Uint32(code[pos : pos+4]))
	low := int32(binary.BigEndian.Uint32(code[pos+4 : pos+8]))
	high := int32(binary.BigEndian.Uint32(code[pos+8 : pos+12]))
	pos += 12

	targets := []int{instrStart + int(defaultOffset)}
	n := int(high-low) + 1
	for i := 0; i < n; i++ {
		offset := int32(binary.BigEndian.Uint32(code[pos : pos+4]))
		targets = append(targets, instrStart+int(offset))
		pos += 4
	}
	return targets, pos
}

// decodeLookupSwitch is tableswitch's sparse sibling: a default offset
// plus explicit (match, offset) pairs instead of a dense jump table.
func decodeLookupSwitch(code []byte, instrStart, pc int) ([]int, int) {
	pad := (4 - ((instrStart + 1) % 4)) % 4
	pos := pc + pad
	defaultOffset := int32(binary.BigEndian.Uint32(code[pos : pos+4]))
	npairs := int(binary.BigEndian.Uint32(code[pos+4 : pos+8]))
	pos += 8

	targets := []int{instrStart + int(defaultOffset)}
	for i := 0; i < npairs; i++ {
		offset := int32(binary.BigEndian.Uint32(code[pos+4 : pos+8]))
		targets = append(targets, instrStart+int(offset))
		pos += 8
	}
	return targets, pos
}

// opcodeOperandSize returns the number of operand bytes following opcode
// for every JVM instruction not already special-cased in
// decodeCodeAttribute. Instructions this module never meaningfully tracks
// still need their width right to keep pc aligned.
func opcodeOperandSize(opcode byte) int {
	switch opcode {
	case 0x10, 0x15, 0x16, 0x17, 0x18, 0x36, 0x37, 0x38, 0x39, 0xbc, 0xa9:
		return 1 // bipush, *load/*store with explicit index, newarray, ret
	case 0x11, 0x84, 0xb2, 0xb3, 0xb4, 0xb5, 0xbb, 0xbd, 0xc0, 0xc1:
		return 2 // sipush, iinc, getstatic/putstatic/getfield/putfield, new, anewarray, checkcast, instanceof
	case 0xc5: // multianewarray
		return 3
	default:
		return 0
	}
}

// opcodeStackEffect approximates a generic opcode's net effect on the
// operand stack. Used only by instructions the tracker does not
// special-case, so the value-propagation lattice never depends on it.
func opcodeStackEffect(opcode byte) (pop, push int) {
	switch {
	case opcode >= 0x02 && opcode <= 0x14: // iconst/lconst/fconst/dconst/bipush/sipush/ldc*
		return 0, 1
	case opcode == 0x59: // dup
		return 0, 1
	case opcode >= 0x5a && opcode <= 0x5f: // dup_x1/dup_x2/dup2/dup2_x1/dup2_x2/swap
		return 0, 1
	case opcode == 0x57: // pop
		return 1, 0
	case opcode == 0x58: // pop2
		return 2, 0
	case opcode >= 0x60 && opcode <= 0x83: // arithmetic / conversions
		return 2, 1
	case opcode == 0xac || opcode == 0xad || opcode == 0xae || opcode == 0xaf || opcode == 0xb0: // *return
		return 1, 0
	case opcode == 0xb1: // return
		return 0, 0
	default:
		return 0, 0
	}
}
