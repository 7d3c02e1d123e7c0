package mock

import (
	"sync"

	"github.com/bodaay/venice/storage"
)

// Op is one call received by Node.
type Op struct {
	Delete    bool
	Partition int32
	Key       string
	Payload   []byte
}

// Node records puts and deletes. PutFunc and DeleteFunc, when set, decide the returned error.
type Node struct {
	PutFunc    func(partition int32, key string, payload []byte) error
	DeleteFunc func(partition int32, key string) error

	mu  sync.Mutex
	ops []Op
}

func (n *Node) NodeID() string {
	return "mock"
}

func (n *Node) Put(partition int32, key string, payload []byte) error {
	if n.PutFunc != nil {
		if err := n.PutFunc(partition, key, payload); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.ops = append(n.ops, Op{Partition: partition, Key: key, Payload: append([]byte(nil), payload...)})
	n.mu.Unlock()
	return nil
}

func (n *Node) Delete(partition int32, key string) error {
	if n.DeleteFunc != nil {
		if err := n.DeleteFunc(partition, key); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.ops = append(n.ops, Op{Delete: true, Partition: partition, Key: key})
	n.mu.Unlock()
	return nil
}

// Ops returns the successful calls in the order they arrived.
func (n *Node) Ops() []Op {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Op(nil), n.ops...)
}

var _ storage.Node = (*Node)(nil)
