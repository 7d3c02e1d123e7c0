package storage

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/bodaay/venice/log"
)

const (
	entriesTable   = "entries"
	idIndex        = "id"
	partitionIndex = "partition"
)

type entry struct {
	Partition int32
	Key       string
	Payload   []byte
	Checksum  uint64
}

func (e *entry) verify() error {
	if xxhash.Sum64(e.Payload) != e.Checksum {
		return errors.Wrapf(ErrCorrupt, "partition %d key %q", e.Partition, e.Key)
	}
	return nil
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		entriesTable: {
			Name: entriesTable,
			Indexes: map[string]*memdb.IndexSchema{
				idIndex: {
					Name:   idIndex,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.IntFieldIndex{Field: "Partition"},
							&memdb.StringFieldIndex{Field: "Key"},
						},
					},
				},
				partitionIndex: {
					Name:    partitionIndex,
					Indexer: &memdb.IntFieldIndex{Field: "Partition"},
				},
			},
		},
	},
}

// MemNodeConfig configures a MemNode.
type MemNodeConfig struct {
	// NodeID defaults to a random uuid.
	NodeID string
	// MaxEntries caps the number of stored keys across partitions. Zero means no cap.
	MaxEntries int
	// Partitions are hosted from the start.
	Partitions []int32
}

// MemNode is an in-memory Node backed by go-memdb. Every payload is stored with its xxhash
// checksum, verified whenever the entry is read or replaced.
type MemNode struct {
	id         string
	maxEntries int
	db         *memdb.MemDB
	count      int64

	mu         sync.RWMutex
	partitions map[int32]struct{}
	closed     bool
}

// NewMemNode returns an empty node.
func NewMemNode(config MemNodeConfig) (*MemNode, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, errors.Wrap(err, "storage: create memdb")
	}
	if config.NodeID == "" {
		config.NodeID = uuid.New().String()
	}
	n := &MemNode{
		id:         config.NodeID,
		maxEntries: config.MaxEntries,
		db:         db,
		partitions: make(map[int32]struct{}),
	}
	for _, p := range config.Partitions {
		n.partitions[p] = struct{}{}
	}
	return n, nil
}

// NodeID returns the node's id.
func (n *MemNode) NodeID() string {
	return n.id
}

// AddPartition makes the node accept writes for p.
func (n *MemNode) AddPartition(p int32) {
	n.mu.Lock()
	n.partitions[p] = struct{}{}
	n.mu.Unlock()
}

// RemovePartition stops hosting p and drops its entries.
func (n *MemNode) RemovePartition(p int32) error {
	n.mu.Lock()
	delete(n.partitions, p)
	n.mu.Unlock()

	txn := n.db.Txn(true)
	defer txn.Abort()
	removed, err := txn.DeleteAll(entriesTable, partitionIndex, p)
	if err != nil {
		return errors.Wrapf(err, "storage: drop partition %d", p)
	}
	atomic.AddInt64(&n.count, -int64(removed))
	txn.Commit()
	return nil
}

// Partitions returns the hosted partitions in ascending order.
func (n *MemNode) Partitions() []int32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ps := make([]int32, 0, len(n.partitions))
	for p := range n.partitions {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// Len returns the number of stored keys.
func (n *MemNode) Len() int {
	return int(atomic.LoadInt64(&n.count))
}

func (n *MemNode) check(partition int32, key string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	if _, ok := n.partitions[partition]; !ok {
		return errors.Wrapf(ErrUnknownPartition, "node %s partition %d", n.id, partition)
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func lookup(txn *memdb.Txn, partition int32, key string) (*entry, error) {
	raw, err := txn.First(entriesTable, idIndex, partition, key)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: lookup partition %d key %q", partition, key)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*entry), nil
}

// Put stores payload under key in partition, replacing any previous value.
func (n *MemNode) Put(partition int32, key string, payload []byte) error {
	if err := n.check(partition, key); err != nil {
		return err
	}
	txn := n.db.Txn(true)
	defer txn.Abort()

	old, err := lookup(txn, partition, key)
	if err != nil {
		return err
	}
	if old != nil {
		if err := old.verify(); err != nil {
			log.Error.Printf("storage/%s: %s", n.id, err)
			return err
		}
	} else if n.maxEntries > 0 && atomic.LoadInt64(&n.count) >= int64(n.maxEntries) {
		return errors.Wrapf(ErrFull, "node %s holds %d entries", n.id, n.maxEntries)
	}

	value := make([]byte, len(payload))
	copy(value, payload)
	e := &entry{
		Partition: partition,
		Key:       key,
		Payload:   value,
		Checksum:  xxhash.Sum64(value),
	}
	if err := txn.Insert(entriesTable, e); err != nil {
		return errors.Wrapf(err, "storage: insert partition %d key %q", partition, key)
	}
	if old == nil {
		atomic.AddInt64(&n.count, 1)
	}
	txn.Commit()
	return nil
}

// Delete removes key from partition. Deleting a missing key is not an error.
func (n *MemNode) Delete(partition int32, key string) error {
	if err := n.check(partition, key); err != nil {
		return err
	}
	txn := n.db.Txn(true)
	defer txn.Abort()

	old, err := lookup(txn, partition, key)
	if err != nil || old == nil {
		return err
	}
	if err := old.verify(); err != nil {
		log.Error.Printf("storage/%s: %s", n.id, err)
		return err
	}
	if err := txn.Delete(entriesTable, old); err != nil {
		return errors.Wrapf(err, "storage: delete partition %d key %q", partition, key)
	}
	atomic.AddInt64(&n.count, -1)
	txn.Commit()
	return nil
}

// Get returns a copy of the payload stored under key, and whether it exists.
func (n *MemNode) Get(partition int32, key string) ([]byte, bool, error) {
	if err := n.check(partition, key); err != nil {
		return nil, false, err
	}
	txn := n.db.Txn(false)
	defer txn.Abort()

	e, err := lookup(txn, partition, key)
	if err != nil || e == nil {
		return nil, false, err
	}
	if err := e.verify(); err != nil {
		return nil, false, err
	}
	value := make([]byte, len(e.Payload))
	copy(value, e.Payload)
	return value, true, nil
}

// Keys returns the keys stored in partition in index order.
func (n *MemNode) Keys(partition int32) ([]string, error) {
	txn := n.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(entriesTable, partitionIndex, partition)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: scan partition %d", partition)
	}
	var keys []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		keys = append(keys, raw.(*entry).Key)
	}
	return keys, nil
}

// Close rejects further reads and writes.
func (n *MemNode) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

var _ Node = (*MemNode)(nil)
