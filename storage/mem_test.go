package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, config MemNodeConfig) *MemNode {
	t.Helper()
	n, err := NewMemNode(config)
	require.NoError(t, err)
	return n
}

func TestMemNode_PutGetDelete(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{NodeID: "node-1", Partitions: []int32{0, 1}})
	require.Equal(t, "node-1", n.NodeID())

	require.NoError(t, n.Put(0, "k1", []byte("v1")))
	require.NoError(t, n.Put(1, "k1", []byte("other")))
	require.Equal(t, 2, n.Len())

	v, ok, err := n.Get(0, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, n.Put(0, "k1", []byte("v2")))
	require.Equal(t, 2, n.Len())
	v, _, err = n.Get(0, "k1")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)

	require.NoError(t, n.Delete(0, "k1"))
	_, ok, err = n.Get(0, "k1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, n.Len())

	// deleting again is a no-op
	require.NoError(t, n.Delete(0, "k1"))
}

func TestMemNode_PutCopiesPayload(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	payload := []byte("abc")
	require.NoError(t, n.Put(0, "k", payload))
	payload[0] = 'z'
	v, _, err := n.Get(0, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
}

func TestMemNode_UnknownPartition(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	err := n.Put(3, "k", []byte("v"))
	require.Equal(t, ErrUnknownPartition, errors.Cause(err))

	n.AddPartition(3)
	require.NoError(t, n.Put(3, "k", []byte("v")))
	require.Equal(t, []int32{0, 3}, n.Partitions())
}

func TestMemNode_RemovePartition(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0, 1}})
	require.NoError(t, n.Put(0, "a", []byte("1")))
	require.NoError(t, n.Put(0, "b", []byte("2")))
	require.NoError(t, n.Put(1, "c", []byte("3")))

	require.NoError(t, n.RemovePartition(0))
	require.Equal(t, 1, n.Len())
	require.Equal(t, []int32{1}, n.Partitions())
	keys, err := n.Keys(0)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestMemNode_Keys(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, n.Put(0, k, []byte(k)))
	}
	keys, err := n.Keys(0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMemNode_EmptyKey(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	require.Equal(t, ErrEmptyKey, n.Put(0, "", []byte("v")))
	require.Equal(t, ErrEmptyKey, n.Delete(0, ""))
}

func TestMemNode_Full(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}, MaxEntries: 2})
	require.NoError(t, n.Put(0, "a", []byte("1")))
	require.NoError(t, n.Put(0, "b", []byte("2")))

	err := n.Put(0, "c", []byte("3"))
	require.Equal(t, ErrFull, errors.Cause(err))

	// replacing an existing key does not grow the node
	require.NoError(t, n.Put(0, "a", []byte("11")))

	require.NoError(t, n.Delete(0, "b"))
	require.NoError(t, n.Put(0, "c", []byte("3")))
}

func TestMemNode_Corrupt(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	require.NoError(t, n.Put(0, "k", []byte("value")))

	// flip stored bytes behind the checksum's back
	txn := n.db.Txn(false)
	e, err := lookup(txn, 0, "k")
	txn.Abort()
	require.NoError(t, err)
	e.Payload[0] = 'V'

	_, _, err = n.Get(0, "k")
	require.Equal(t, ErrCorrupt, errors.Cause(err))
	require.Equal(t, ErrCorrupt, errors.Cause(n.Put(0, "k", []byte("new"))))
	require.Equal(t, ErrCorrupt, errors.Cause(n.Delete(0, "k")))
}

func TestMemNode_Closed(t *testing.T) {
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0}})
	require.NoError(t, n.Close())
	require.Equal(t, ErrClosed, n.Put(0, "k", []byte("v")))
}

func TestMemNode_ConcurrentPartitions(t *testing.T) {
	const partitions, keys = 4, 50
	n := newTestNode(t, MemNodeConfig{Partitions: []int32{0, 1, 2, 3}})

	var wg sync.WaitGroup
	for p := int32(0); p < partitions; p++ {
		wg.Add(1)
		go func(p int32) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				require.NoError(t, n.Put(p, fmt.Sprintf("key-%d", i), []byte("v")))
			}
		}(p)
	}
	wg.Wait()
	require.Equal(t, partitions*keys, n.Len())
}
