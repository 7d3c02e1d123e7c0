package serialization

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/bodaay/venice/log"
	"github.com/bodaay/venice/message"
)

// HeaderLength is the size of the fixed envelope header: magic byte, operation code and schema version.
const HeaderLength = 3

// Wire codes for message.OperationType.
const (
	opCodeNone   byte = 0
	opCodePut    byte = 1
	opCodeDelete byte = 2
)

var (
	ErrDecode     = errors.New("serialization: truncated envelope header")
	ErrNilMessage = errors.New("serialization: nil message")
)

// Serializer converts messages to and from the envelope written into record values:
//
//	[magic:1][op:1][schemaVersion:1][payload:N]
//
// The payload has no length prefix; it is every byte after the header.
// A Serializer holds no state and each consumer owns its own.
type Serializer struct{}

// NewSerializer returns a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Encode writes m as an envelope. Operations without a wire code are logged and written as 0,
// which decodes back to message.OpNone.
func (s *Serializer) Encode(m *message.Message) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}
	buf := bytes.NewBuffer(make([]byte, 0, HeaderLength+len(m.Payload)))
	buf.WriteByte(m.MagicByte)
	buf.WriteByte(encodeOperation(m.Operation))
	buf.WriteByte(m.SchemaVersion)
	buf.Write(m.Payload)
	return buf.Bytes(), nil
}

// Decode reads an envelope. An unknown operation code does not fail the decode: the returned
// message has Operation set to message.OpNone and callers must check it before applying it.
func (s *Serializer) Decode(b []byte) (*message.Message, error) {
	r := bytes.NewReader(b)
	var header [HeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.Wrapf(ErrDecode, "got %d bytes", len(b))
	}
	m := &message.Message{
		MagicByte:     header[0],
		Operation:     decodeOperation(header[1]),
		SchemaVersion: header[2],
		Payload:       make([]byte, r.Len()),
	}
	if _, err := io.ReadFull(r, m.Payload); err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	return m, nil
}

func encodeOperation(op message.OperationType) byte {
	switch op {
	case message.OpPut:
		return opCodePut
	case message.OpDelete:
		return opCodeDelete
	default:
		log.Warn.Printf("serialization: operation type not recognized: %s", op)
		return opCodeNone
	}
}

func decodeOperation(code byte) message.OperationType {
	switch code {
	case opCodePut:
		return message.OpPut
	case opCodeDelete:
		return message.OpDelete
	default:
		log.Warn.Printf("serialization: illegal serialized operation type found: %d", code)
		return message.OpNone
	}
}
