package protocol

// MetadataRequest asks a broker for the partitions of the given topics.
type MetadataRequest struct {
	Topics []string
}

// Broker is a cluster member as advertised in metadata.
type Broker struct {
	ID   int32
	Addr string
}

// PartitionMetadata describes one partition. Leader is -1 while no leader is elected.
type PartitionMetadata struct {
	ErrorCode int16
	ID        int32
	Leader    int32
	Replicas  []int32
	ISR       []int32
}

// TopicMetadata describes one topic.
type TopicMetadata struct {
	ErrorCode  int16
	Topic      string
	Partitions []*PartitionMetadata
}

// MetadataResponse lists brokers and topic metadata.
type MetadataResponse struct {
	Brokers []*Broker
	Topics  []*TopicMetadata
}

// BrokerAddr returns the advertised address of the broker with the given id.
func (r *MetadataResponse) BrokerAddr(id int32) (string, bool) {
	for _, b := range r.Brokers {
		if b.ID == id {
			return b.Addr, true
		}
	}
	return "", false
}
