package message

import "fmt"

// OperationType is the mutation a message asks the storage node to perform.
type OperationType int8

const (
	// OpNone is the zero value and marks a message whose operation could not be determined.
	OpNone OperationType = iota
	OpPut
	OpDelete
	// OpPartialPut is reserved; nothing applies it yet.
	OpPartialPut
)

func (o OperationType) String() string {
	switch o {
	case OpNone:
		return "NONE"
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	case OpPartialPut:
		return "PARTIAL_PUT"
	default:
		return fmt.Sprintf("OperationType(%d)", int8(o))
	}
}

// Valid reports whether o is a known operation.
func (o OperationType) Valid() bool {
	return o >= OpPut && o <= OpPartialPut
}

const (
	// DefaultMagicByte frames every envelope written by this package's callers.
	DefaultMagicByte byte = 1
	// DefaultSchemaVersion is the payload schema version written today.
	DefaultSchemaVersion byte = 1
)

// Message is the decoded unit carried in a record value.
type Message struct {
	MagicByte     byte
	Operation     OperationType
	SchemaVersion byte
	Payload       []byte
}

// New returns a message with the default magic byte and schema version.
func New(op OperationType, payload []byte) *Message {
	return &Message{
		MagicByte:     DefaultMagicByte,
		Operation:     op,
		SchemaVersion: DefaultSchemaVersion,
		Payload:       payload,
	}
}

// NewPut is a convenience for New(OpPut, payload).
func NewPut(payload []byte) *Message {
	return New(OpPut, payload)
}

// NewDelete returns a delete message, which carries no payload.
func NewDelete() *Message {
	return New(OpDelete, nil)
}

func (m *Message) String() string {
	return fmt.Sprintf("message{magic=%d op=%s schema=%d payload=%dB}", m.MagicByte, m.Operation, m.SchemaVersion, len(m.Payload))
}
