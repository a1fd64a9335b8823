package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgCount(t *testing.T) {
	testCases := []struct {
		name           string
		descriptor     string
		wantArgCount   int
		wantReturnVoid bool
	}{
		{"no args void return", "()V", 0, true},
		{"one string arg", "(Ljava/lang/String;)V", 1, true},
		{"string and int", "(Ljava/lang/String;I)V", 2, true},
		{"returns object", "(Ljava/lang/String;)Ljava/security/MessageDigest;", 1, false},
		{"array arg counts once", "([Ljava/lang/String;)V", 1, true},
		{"primitive array arg counts once", "([BI)V", 2, true},
		{"long and double count as one slot each", "(JD)V", 2, true},
		{"malformed descriptor", "garbage", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			argCount, returnsVoid := ArgCount(tc.descriptor)
			assert.Equal(t, tc.wantArgCount, argCount)
			assert.Equal(t, tc.wantReturnVoid, returnsVoid)
		})
	}
}

func TestSubSignature(t *testing.T) {
	m := &Method{Name: "getInstance", Descriptor: "(Ljava/lang/String;)Ljava/security/MessageDigest;"}
	assert.Equal(t, "java.security.MessageDigest getInstance(java.lang.String)", m.SubSignature())
}

func TestSubSignature_VoidNoArgs(t *testing.T) {
	m := &Method{Name: "<init>", Descriptor: "()V"}
	assert.Equal(t, "void <init>()", m.SubSignature())
}

func TestSubSignature_PrimitiveAndArrayParams(t *testing.T) {
	m := &Method{Name: "update", Descriptor: "([BII)V"}
	assert.Equal(t, "void update(byte[], int, int)", m.SubSignature())
}
