package consumer_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/bodaay/venice/consumer"
	"github.com/bodaay/venice/mock"
	"github.com/bodaay/venice/protocol"
)

const lookupID = "leaderLookup"

func TestLocator_ShortCircuits(t *testing.T) {
	const n, k = 5, 2
	dialer := mock.NewDialer()
	var candidates []string
	for i := 0; i < n; i++ {
		addr := fmt.Sprintf("broker-%d:9092", i)
		candidates = append(candidates, addr)
		conn := &mock.Conn{MetadataFunc: mock.Metadata(nil, mock.Partition{Topic: "other", ID: 0, Leader: 1})}
		if i == k {
			conn.MetadataFunc = mock.Metadata(
				map[int32]string{7: "leader:9092", 8: "replica:9092"},
				mock.Partition{Topic: topic, ID: 1, Leader: 8, Replicas: []int32{8}},
				mock.Partition{Topic: topic, ID: 0, Leader: 7, Replicas: []int32{7, 8}},
			)
		}
		if i > k {
			conn.MetadataFunc = func(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
				t.Fatalf("candidate %s queried after a match", addr)
				return nil, nil
			}
		}
		dialer.Set(addr, conn)
	}

	l := consumer.NewLocator(dialer, 9092, nil)
	leadership, err := l.Locate(context.Background(), candidates, topic, 0)
	require.NoError(t, err)
	require.Equal(t, "leader:9092", leadership.Leader)
	require.Equal(t, []string{"leader:9092", "replica:9092"}, leadership.Replicas)
	require.Len(t, dialer.Dials(), k+1)
	for _, d := range dialer.Dials() {
		require.Equal(t, lookupID, d.ClientID)
	}
}

func TestLocator_NotFound(t *testing.T) {
	dialer := mock.NewDialer()
	dialer.Set("a:9092", &mock.Conn{MetadataFunc: mock.Metadata(map[int32]string{1: "a:9092"})})
	dialer.Set("b:9092", &mock.Conn{MetadataFunc: mock.Metadata(map[int32]string{1: "a:9092"}, mock.Partition{Topic: topic, ID: 5, Leader: 1})})

	l := consumer.NewLocator(dialer, 9092, nil)
	leadership, err := l.Locate(context.Background(), []string{"a", "b"}, topic, 0)
	require.Nil(t, leadership)
	require.Equal(t, consumer.ErrLeaderNotFound, errors.Cause(err))

	_, err = l.Locate(context.Background(), nil, topic, 0)
	require.Equal(t, consumer.ErrLeaderNotFound, errors.Cause(err))
}

func TestLocator_SkipsUnreachableCandidates(t *testing.T) {
	good := &mock.Conn{MetadataFunc: mock.Metadata(map[int32]string{1: "good:9092"}, mock.Partition{Topic: topic, ID: 0, Leader: 1, Replicas: []int32{1}})}
	failing := &mock.Conn{MetadataFunc: func(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
		return nil, errors.New("i/o timeout")
	}}
	dialer := mock.NewDialer()
	dialer.Set("failing:9092", failing)
	dialer.Set("good:9092", good)

	l := consumer.NewLocator(dialer, 9092, nil)
	leadership, err := l.Locate(context.Background(), []string{"down", "failing", "good"}, topic, 0)
	require.NoError(t, err)
	require.Equal(t, "good:9092", leadership.Leader)
	require.Equal(t, []string{"down:9092", "failing:9092", "good:9092"}, dialAddrs(dialer))
	// metadata connections are always closed
	require.Equal(t, 1, failing.Closed())
	require.Equal(t, 1, good.Closed())
}

func TestLocator_NoLeaderElected(t *testing.T) {
	dialer := mock.NewDialer()
	dialer.Set("a:9092", &mock.Conn{MetadataFunc: mock.Metadata(
		map[int32]string{1: "a:9092", 2: "b:9092"},
		mock.Partition{Topic: topic, ID: 0, Leader: -1, Replicas: []int32{1, 2, 3}},
	)})

	l := consumer.NewLocator(dialer, 9092, nil)
	leadership, err := l.Locate(context.Background(), []string{"a:9092"}, topic, 0)
	require.NoError(t, err)
	require.Equal(t, "", leadership.Leader)
	// broker 3 is not advertised and is left out
	require.Equal(t, []string{"a:9092", "b:9092"}, leadership.Replicas)
}

func TestLocator_Tracing(t *testing.T) {
	tracer := mocktracer.New()
	dialer := mock.NewDialer()
	dialer.Set("a:9092", &mock.Conn{MetadataFunc: mock.Metadata(map[int32]string{1: "a:9092"}, mock.Partition{Topic: topic, ID: 0, Leader: 1})})

	_, err := consumer.NewLocator(dialer, 9092, tracer).Locate(context.Background(), []string{"a"}, topic, 0)
	require.NoError(t, err)
	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "consumer: locate leader", spans[0].OperationName)
	require.Equal(t, topic, spans[0].Tag("topic"))
}

func dialAddrs(d *mock.Dialer) []string {
	var addrs []string
	for _, dial := range d.Dials() {
		addrs = append(addrs, dial.Addr)
	}
	return addrs
}
