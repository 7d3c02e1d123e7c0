package consumer_test

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/bodaay/venice/consumer"
	"github.com/bodaay/venice/message"
	"github.com/bodaay/venice/protocol"
	"github.com/bodaay/venice/storage"
)

// newTestCluster starts a single mock broker leading partition 0 of topic, with its latest
// offset at 100 and records for keys k0..k2 at offsets 100..102.
func newTestCluster(t *testing.T) *sarama.MockBroker {
	mb := consumer.NewTestBroker(t, 1)

	fr := &sarama.FetchResponse{Version: 4}
	for i, v := range []string{"v0", "v1", "v2"} {
		value := encode(t, message.NewPut([]byte(v)))
		fr.AddRecord(topic, 0, sarama.StringEncoder([]string{"k0", "k1", "k2"}[i]), sarama.ByteEncoder(value), int64(100+i))
	}

	mb.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(mb.Addr(), mb.BrokerID()).
			SetLeader(topic, 0, mb.BrokerID()),
		"OffsetRequest": sarama.NewMockOffsetResponse(t).
			SetOffset(topic, 0, sarama.OffsetNewest, 100),
		"FetchRequest": sarama.NewMockWrapper(fr),
	})
	return mb
}

func TestDialer_Broker(t *testing.T) {
	mb := newTestCluster(t)
	defer mb.Close()

	cfg := consumer.TestConfig(mb.Addr())
	conn, err := consumer.NewTestDialer(cfg).Dial(context.Background(), "test", mb.Addr())
	require.NoError(t, err)
	defer conn.Close()

	md, err := conn.MetadataContext(context.Background(), &protocol.MetadataRequest{Topics: []string{topic}})
	require.NoError(t, err)
	addr, ok := md.BrokerAddr(mb.BrokerID())
	require.True(t, ok)
	require.Equal(t, mb.Addr(), addr)
	require.Len(t, md.Topics, 1)
	require.Equal(t, topic, md.Topics[0].Topic)
	require.Equal(t, mb.BrokerID(), md.Topics[0].Partitions[0].Leader)

	offset, err := consumer.ResolveOffset(context.Background(), conn, topic, 0, protocol.OffsetLatest)
	require.NoError(t, err)
	require.Equal(t, int64(100), offset)

	res, err := conn.FetchContext(context.Background(), &protocol.FetchRequest{
		Topic:       topic,
		Partition:   0,
		FetchOffset: 100,
		MaxBytes:    cfg.FetchBufferSize,
		MinBytes:    cfg.FetchMinBytes,
		MaxWaitTime: cfg.FetchMaxWait,
	})
	require.NoError(t, err)
	require.Equal(t, protocol.ErrNone.Code(), res.ErrorCode)
	require.Len(t, res.Records, 3)
	for i, rec := range res.Records {
		require.Equal(t, int64(100+i), rec.Offset)
		require.Equal(t, rec.Offset+1, rec.NextOffset)
		require.Equal(t, []string{"k0", "k1", "k2"}[i], string(rec.Key))
	}
}

func TestDialer_Unreachable(t *testing.T) {
	cfg := consumer.TestConfig()
	_, err := consumer.NewTestDialer(cfg).Dial(context.Background(), "test", consumer.UnusedAddr())
	require.Error(t, err)
}

func TestDialer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := consumer.NewTestDialer(consumer.TestConfig()).Dial(ctx, "test", consumer.UnusedAddr())
	require.Equal(t, context.Canceled, err)
}

func TestLocator_Broker(t *testing.T) {
	mb := newTestCluster(t)
	defer mb.Close()

	l := consumer.NewLocator(consumer.NewTestDialer(consumer.TestConfig()), 9092, nil)
	leadership, err := l.Locate(context.Background(), []string{consumer.UnusedAddr(), mb.Addr()}, topic, 0)
	require.NoError(t, err)
	require.Equal(t, mb.Addr(), leadership.Leader)
	require.Contains(t, leadership.Replicas, mb.Addr())
}

func TestTask_ConsumesFromBroker(t *testing.T) {
	mb := newTestCluster(t)
	defer mb.Close()

	node, err := storage.NewMemNode(storage.MemNodeConfig{Partitions: []int32{0}})
	require.NoError(t, err)

	cfg := consumer.TestConfig(mb.Addr())
	task := consumer.NewTask(cfg, node, topic, 0, 9092, consumer.WithDialer(consumer.NewTestDialer(cfg)))
	stop, _ := start(task)
	waitFor(t, func() bool { return node.Len() == 3 })
	require.NoError(t, stop())

	for i, k := range []string{"k0", "k1", "k2"} {
		v, ok, err := node.Get(0, k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []string{"v0", "v1", "v2"}[i], string(v))
	}
	require.Equal(t, int64(103), task.Lease().Offset)
	require.Equal(t, mb.Addr(), task.Lease().Leader)
}
