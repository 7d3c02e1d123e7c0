package mock

import (
	"context"

	"github.com/bodaay/venice/protocol"
)

// Partition describes one partition for Metadata. Leader -1 means no leader is elected.
type Partition struct {
	Topic    string
	ID       int32
	Leader   int32
	Replicas []int32
}

// Metadata returns a MetadataFunc answering with the given brokers, keyed by id, and partitions.
func Metadata(brokers map[int32]string, partitions ...Partition) func(context.Context, *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
	return func(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
		res := &protocol.MetadataResponse{}
		for id, addr := range brokers {
			res.Brokers = append(res.Brokers, &protocol.Broker{ID: id, Addr: addr})
		}
		topics := make(map[string]*protocol.TopicMetadata)
		for _, p := range partitions {
			t, ok := topics[p.Topic]
			if !ok {
				t = &protocol.TopicMetadata{Topic: p.Topic}
				topics[p.Topic] = t
				res.Topics = append(res.Topics, t)
			}
			t.Partitions = append(t.Partitions, &protocol.PartitionMetadata{
				ID:       p.ID,
				Leader:   p.Leader,
				Replicas: p.Replicas,
				ISR:      p.Replicas,
			})
		}
		return res, nil
	}
}

// Records builds a fetch response for topic/partition holding the given records.
func Records(topic string, partition int32, records ...*protocol.Record) *protocol.FetchResponse {
	return &protocol.FetchResponse{Topic: topic, Partition: partition, Records: records}
}

// Record returns a record at offset with the given key and value.
func Record(offset int64, key string, value []byte) *protocol.Record {
	return &protocol.Record{Offset: offset, NextOffset: offset + 1, Key: []byte(key), Value: value}
}
