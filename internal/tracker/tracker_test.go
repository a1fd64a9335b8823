package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoaudit/internal/classfile"
)

func TestMerge(t *testing.T) {
	assert.Equal(t, Const("MD5"), Merge(Const("MD5"), Const("MD5")))

	top := Merge(Const("MD5"), Const("SHA-256"))
	_, ok := top.IsConst()
	assert.False(t, ok)

	top = Merge(Const("MD5"), Top)
	_, ok = top.IsConst()
	assert.False(t, ok)
}

func constInstr(s string) classfile.Instruction {
	return classfile.Instruction{Kind: classfile.KindConstString, StringConst: s}
}

func localStore(slot int) classfile.Instruction {
	return classfile.Instruction{Kind: classfile.KindLocalStore, LocalSlot: slot}
}

func localLoad(slot int) classfile.Instruction {
	return classfile.Instruction{Kind: classfile.KindLocalLoad, LocalSlot: slot}
}

func invokeStatic(descriptor string) classfile.Instruction {
	return classfile.Instruction{
		Kind:       classfile.KindInvoke,
		InvokeForm: classfile.InvokeStatic,
		Invoke:     &classfile.MethodRef{DeclaringClass: "java.security.MessageDigest", MethodName: "getInstance", Descriptor: descriptor},
	}
}

func TestRun_DirectLiteralArgument(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		constInstr("MD5"),
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)
	require.Len(t, sites[0].Args, 1)

	val, ok := sites[0].Args[0].IsConst()
	assert.True(t, ok)
	assert.Equal(t, "MD5", val)
}

func TestRun_LiteralRoundTripsThroughLocalVariable(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		constInstr("SHA-256"),
		localStore(1),
		localLoad(1),
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)

	val, ok := sites[0].Args[0].IsConst()
	assert.True(t, ok)
	assert.Equal(t, "SHA-256", val)
}

func TestRun_UnknownLocalProducesTop(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		localLoad(7), // never stored -> unknown
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)

	_, ok := sites[0].Args[0].IsConst()
	assert.False(t, ok)
}

func TestRun_GenericInstructionProducesTopThroughStackEffect(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		{Kind: classfile.KindOther, StackPop: 0, StackPush: 1}, // e.g. some computed value
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)

	_, ok := sites[0].Args[0].IsConst()
	assert.False(t, ok)
}

func TestRun_ReceiverIsPoppedForVirtualInvoke(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		{Kind: classfile.KindOther, StackPop: 0, StackPush: 1}, // pushes the receiver
		constInstr("AES/GCM/NoPadding"),
		{
			Kind:       classfile.KindInvoke,
			InvokeForm: classfile.InvokeVirtual,
			Invoke:     &classfile.MethodRef{DeclaringClass: "javax.crypto.Cipher", MethodName: "init", Descriptor: "(Ljava/lang/String;)V"},
		},
	}}

	sites := Run(m)
	require.Len(t, sites, 1)
	require.Len(t, sites[0].Args, 1)

	val, ok := sites[0].Args[0].IsConst()
	assert.True(t, ok)
	assert.Equal(t, "AES/GCM/NoPadding", val)
}

func TestRun_MultipleCallSitesInOrder(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		constInstr("MD5"),
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
		constInstr("SHA-256"),
		invokeStatic("(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 2)

	first, _ := sites[0].Args[0].IsConst()
	second, _ := sites[1].Args[0].IsConst()
	assert.Equal(t, "MD5", first)
	assert.Equal(t, "SHA-256", second)
}

func constInstrAt(pc int, s string) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindConstString, StringConst: s}
}

func localStoreAt(pc, slot int) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindLocalStore, LocalSlot: slot}
}

func localLoadAt(pc, slot int) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindLocalLoad, LocalSlot: slot}
}

func invokeStaticAt(pc int, descriptor string) classfile.Instruction {
	return classfile.Instruction{
		PC:         pc,
		Kind:       classfile.KindInvoke,
		InvokeForm: classfile.InvokeStatic,
		Invoke:     &classfile.MethodRef{DeclaringClass: "java.security.MessageDigest", MethodName: "getInstance", Descriptor: descriptor},
	}
}

func pushUnknownAt(pc int) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindOther, StackPop: 0, StackPush: 1}
}

func branchAt(pc, target int) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindBranch, StackPop: 1, Target: target}
}

func gotoAt(pc, target int) classfile.Instruction {
	return classfile.Instruction{PC: pc, Kind: classfile.KindGoto, Target: target}
}

// TestRun_BranchMergeProducesTopWhenPredecessorsDisagree builds
//
//	if (cond) { algo = "MD5" } else { algo = "SHA-256" }
//	MessageDigest.getInstance(algo)
//
// and checks the merge at the join point resolves to an unknown value
// instead of silently picking whichever branch's store happened to be
// decoded last.
func TestRun_BranchMergeProducesTopWhenPredecessorsDisagree(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		pushUnknownAt(0),   // cond
		branchAt(1, 5),     // ifeq -> else at pc 5, else falls through to pc 2
		constInstrAt(2, "MD5"),
		localStoreAt(3, 1),
		gotoAt(4, 7), // skip the else branch
		constInstrAt(5, "SHA-256"),
		localStoreAt(6, 1),
		localLoadAt(7, 1),
		invokeStaticAt(8, "(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)
	require.Len(t, sites[0].Args, 1)

	_, ok := sites[0].Args[0].IsConst()
	assert.False(t, ok, "disagreeing branches must merge to Top, not a concrete literal")
}

// TestRun_BranchMergeKeepsLiteralWhenPredecessorsAgree is the same shape as
// the disagreement case above, except both branches write the same
// literal, which the merge must preserve.
func TestRun_BranchMergeKeepsLiteralWhenPredecessorsAgree(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		pushUnknownAt(0),
		branchAt(1, 5),
		constInstrAt(2, "SHA-256"),
		localStoreAt(3, 1),
		gotoAt(4, 7),
		constInstrAt(5, "SHA-256"),
		localStoreAt(6, 1),
		localLoadAt(7, 1),
		invokeStaticAt(8, "(Ljava/lang/String;)Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)
	require.Len(t, sites[0].Args, 1)

	val, ok := sites[0].Args[0].IsConst()
	assert.True(t, ok)
	assert.Equal(t, "SHA-256", val)
}

func TestRun_NoArgMethodProducesEmptyArgs(t *testing.T) {
	m := &classfile.Method{Instructions: []classfile.Instruction{
		invokeStatic("()Ljava/security/MessageDigest;"),
	}}

	sites := Run(m)
	require.Len(t, sites, 1)
	assert.Empty(t, sites[0].Args)
}
