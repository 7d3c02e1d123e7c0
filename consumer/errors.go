package consumer

import (
	"github.com/pkg/errors"

	"github.com/bodaay/venice/serialization"
)

var (
	ErrLeaderNotFound       = errors.New("consumer: leader not found")
	ErrOffsetLookup         = errors.New("consumer: offset lookup failed")
	ErrInvalidMessage       = errors.New("consumer: invalid message")
	ErrUnsupportedOperation = errors.New("consumer: unsupported operation")
	ErrTransport            = errors.New("consumer: transport error")
)

// recordFault reports whether err only concerns the record being applied, so the record can be
// skipped and consumption continue.
func recordFault(err error, failOnUnsupported bool) bool {
	switch errors.Cause(err) {
	case serialization.ErrDecode, ErrInvalidMessage:
		return true
	case ErrUnsupportedOperation:
		return !failOnUnsupported
	}
	return false
}
