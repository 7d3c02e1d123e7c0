package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationType_Valid(t *testing.T) {
	tests := []struct {
		op    OperationType
		valid bool
	}{
		{op: OpNone, valid: false},
		{op: OpPut, valid: true},
		{op: OpDelete, valid: true},
		{op: OpPartialPut, valid: true},
		{op: OperationType(9), valid: false},
		{op: OperationType(-1), valid: false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.valid, tt.op.Valid(), tt.op.String())
	}
}

func TestNew(t *testing.T) {
	m := NewPut([]byte("v"))
	require.Equal(t, DefaultMagicByte, m.MagicByte)
	require.Equal(t, DefaultSchemaVersion, m.SchemaVersion)
	require.Equal(t, OpPut, m.Operation)
	require.Nil(t, NewDelete().Payload)
}
