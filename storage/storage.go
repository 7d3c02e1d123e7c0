package storage

import "github.com/pkg/errors"

var (
	// ErrCorrupt means stored data failed verification. Consumers must stop writing to the node.
	ErrCorrupt = errors.New("storage: corrupt entry")
	// ErrFull means the node cannot accept more entries.
	ErrFull = errors.New("storage: node full")

	ErrUnknownPartition = errors.New("storage: partition not hosted by node")
	ErrEmptyKey         = errors.New("storage: empty key")
	ErrClosed           = errors.New("storage: node closed")
)

// Node is a partition aware key-value store. Implementations must be safe for concurrent use:
// every consumed partition calls Put and Delete from its own goroutine.
type Node interface {
	NodeID() string
	Put(partition int32, key string, payload []byte) error
	Delete(partition int32, key string) error
}
