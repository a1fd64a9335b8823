package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codeAttributePayload assembles the info section of a Code attribute
// (max_stack, max_locals, code_length, code, an empty exception table, and
// no sub-attributes) so decodeCodeAttribute can be exercised directly
// against real encoded bytecode rather than through a whole class file.
func codeAttributePayload(code []byte) []byte {
	var b classBuilder
	b.u2(4)                    // max_stack
	b.u2(4)                    // max_locals
	b.u4(uint32(len(code)))    // code_length
	b.raw(code)
	b.u2(0) // exception_table_length
	b.u2(0) // attributes_count
	return b.buf.Bytes()
}

// TestDecodeCodeAttribute_BranchTargetsAreDecoded builds:
//
//	0: ifeq  -> 6      (conditional branch, pops 1, falls through to pc 3)
//	3: nop
//	4: goto  -> 9
//	7: nop
//	8: nop
//	9: return
//
// and checks the decoder retains the absolute jump targets instead of
// merely skipping the operand bytes, which is what tracker.Run's
// control-flow graph is built from.
func TestDecodeCodeAttribute_BranchTargetsAreDecoded(t *testing.T) {
	code := []byte{
		0x99, 0x00, 0x06, // ifeq +6 -> pc 6
		0x00,             // nop
		0xa7, 0x00, 0x05, // goto +5 -> pc 9
		0x00, // nop
		0x00, // nop
		0xb1, // return
	}
	data := codeAttributePayload(code)

	instrs, err := decodeCodeAttribute(data, nil)
	require.NoError(t, err)
	require.Len(t, instrs, 6)

	assert.Equal(t, KindBranch, instrs[0].Kind)
	assert.Equal(t, 0, instrs[0].PC)
	assert.Equal(t, 6, instrs[0].Target)
	assert.Equal(t, 1, instrs[0].StackPop)

	assert.Equal(t, 3, instrs[1].PC)

	assert.Equal(t, KindGoto, instrs[2].Kind)
	assert.Equal(t, 4, instrs[2].PC)
	assert.Equal(t, 9, instrs[2].Target)
}

// TestDecodeCodeAttribute_TableSwitchTargetsAreDecoded builds a
// tableswitch over two cases and checks every jump target, including the
// default, is decoded relative to the switch instruction's own pc.
func TestDecodeCodeAttribute_TableSwitchTargetsAreDecoded(t *testing.T) {
	// tableswitch at pc 0: opcode(1) + pad(3) + default(4) + low(4) +
	// high(4) + 2 case offsets(4 each) = 24 bytes total.
	code := []byte{
		0xaa,                   // tableswitch
		0x00, 0x00, 0x00,       // padding to 4-byte alignment
		0x00, 0x00, 0x00, 0x14, // default offset = 20
		0x00, 0x00, 0x00, 0x00, // low = 0
		0x00, 0x00, 0x00, 0x01, // high = 1
		0x00, 0x00, 0x00, 0x10, // case 0 offset = 16
		0x00, 0x00, 0x00, 0x12, // case 1 offset = 18
	}
	data := codeAttributePayload(code)

	instrs, err := decodeCodeAttribute(data, nil)
	require.NoError(t, err)
	require.Len(t, instrs, 1)

	assert.Equal(t, KindSwitch, instrs[0].Kind)
	assert.Equal(t, []int{20, 16, 18}, instrs[0].Targets)
	assert.Equal(t, 1, instrs[0].StackPop)
}
