package consumer

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	"github.com/bodaay/venice/consumer/config"
	"github.com/bodaay/venice/protocol"
)

// requestVersions are the API versions a connection speaks for each request it sends.
type requestVersions struct {
	fetch    int16
	metadata int16
	offsets  int16
}

func versionsFor(v sarama.KafkaVersion) requestVersions {
	switch {
	case v.IsAtLeast(sarama.V0_11_0_0):
		return requestVersions{fetch: 4, metadata: 4, offsets: 1}
	case v.IsAtLeast(sarama.V0_10_1_0):
		return requestVersions{fetch: 3, metadata: 2, offsets: 1}
	case v.IsAtLeast(sarama.V0_10_0_0):
		return requestVersions{fetch: 2, metadata: 1, offsets: 0}
	default:
		return requestVersions{}
	}
}

// Dialer opens sarama broker connections.
type Dialer struct {
	config      *config.Config
	apiVersions bool
}

// NewDialer returns a dialer using cfg's socket timeout and kafka version.
func NewDialer(cfg *config.Config) *Dialer {
	return &Dialer{config: cfg, apiVersions: true}
}

func (d *Dialer) saramaConfig(clientID string) *sarama.Config {
	conf := sarama.NewConfig()
	conf.ClientID = clientID
	conf.Version = d.config.KafkaVersion
	conf.ApiVersionsRequest = d.apiVersions
	conf.Net.DialTimeout = d.config.SocketTimeout
	conf.Net.WriteTimeout = d.config.SocketTimeout
	// a fetch may be parked by the broker for up to the max wait time
	conf.Net.ReadTimeout = d.config.SocketTimeout + d.config.FetchMaxWait
	return conf
}

// Dial connects to the broker at addr and waits for the connection to be established.
func (d *Dialer) Dial(ctx context.Context, clientID, addr string) (protocol.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := sarama.NewBroker(addr)
	if err := b.Open(d.saramaConfig(clientID)); err != nil {
		return nil, errors.Wrapf(err, "open broker %s", addr)
	}
	// Open dials in the background, Connected waits for it to finish.
	if ok, err := b.Connected(); !ok {
		b.Close()
		if err == nil {
			err = sarama.ErrNotConnected
		}
		return nil, errors.Wrapf(err, "connect broker %s", addr)
	}
	return &saramaConn{
		broker:   b,
		versions: versionsFor(d.config.KafkaVersion),
	}, nil
}

type saramaConn struct {
	broker   *sarama.Broker
	versions requestVersions
}

func (c *saramaConn) FetchContext(ctx context.Context, req *protocol.FetchRequest) (*protocol.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fr := &sarama.FetchRequest{
		Version:     c.versions.fetch,
		MaxWaitTime: int32(req.MaxWaitTime / time.Millisecond),
		MinBytes:    req.MinBytes,
	}
	if fr.Version >= 3 {
		fr.MaxBytes = req.MaxBytes
	}
	fr.AddBlock(req.Topic, req.Partition, req.FetchOffset, req.MaxBytes, -1)

	resp, err := c.broker.Fetch(fr)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch from %s", c.broker.Addr())
	}
	block := resp.GetBlock(req.Topic, req.Partition)
	if block == nil {
		return nil, errors.Errorf("fetch from %s: no data for %s/%d", c.broker.Addr(), req.Topic, req.Partition)
	}
	res := &protocol.FetchResponse{
		Topic:         req.Topic,
		Partition:     req.Partition,
		ErrorCode:     int16(block.Err),
		HighWatermark: block.HighWaterMarkOffset,
	}
	if block.Err != sarama.ErrNoError {
		return res, nil
	}
	res.Records = blockRecords(block)
	return res, nil
}

// blockRecords flattens legacy message sets and record batches into log order. Control batches
// become a single control record so the read offset moves past transaction markers.
func blockRecords(block *sarama.FetchResponseBlock) []*protocol.Record {
	var records []*protocol.Record
	add := func(offset int64, key, value []byte) {
		records = append(records, &protocol.Record{
			Offset:     offset,
			NextOffset: offset + 1,
			Key:        key,
			Value:      value,
		})
	}
	for _, set := range block.RecordsSet {
		if set == nil {
			continue
		}
		if set.MsgSet != nil {
			for _, mb := range set.MsgSet.Messages {
				if mb.Msg == nil {
					continue
				}
				msgs := mb.Messages()
				// inner offsets of a v1 compressed wrapper are relative, the wrapper holds the last one's
				var base int64
				if mb.Msg.Set != nil && mb.Msg.Version >= 1 && len(msgs) > 0 {
					base = mb.Offset - msgs[len(msgs)-1].Offset
				}
				for _, m := range msgs {
					if m.Msg == nil {
						continue
					}
					add(base+m.Offset, m.Msg.Key, m.Msg.Value)
				}
			}
		}
		batch := set.RecordBatch
		if batch == nil {
			continue
		}
		if batch.Control {
			records = append(records, &protocol.Record{
				Offset:     batch.FirstOffset,
				NextOffset: batch.FirstOffset + int64(batch.LastOffsetDelta) + 1,
				Control:    true,
			})
			continue
		}
		for _, r := range batch.Records {
			add(batch.FirstOffset+r.OffsetDelta, r.Key, r.Value)
		}
	}
	return records
}

func (c *saramaConn) MetadataContext(ctx context.Context, req *protocol.MetadataRequest) (*protocol.MetadataResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := c.broker.GetMetadata(&sarama.MetadataRequest{
		Version: c.versions.metadata,
		Topics:  req.Topics,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "metadata from %s", c.broker.Addr())
	}
	res := &protocol.MetadataResponse{
		Brokers: make([]*protocol.Broker, 0, len(resp.Brokers)),
		Topics:  make([]*protocol.TopicMetadata, 0, len(resp.Topics)),
	}
	for _, b := range resp.Brokers {
		res.Brokers = append(res.Brokers, &protocol.Broker{ID: b.ID(), Addr: b.Addr()})
	}
	for _, t := range resp.Topics {
		tm := &protocol.TopicMetadata{
			ErrorCode:  int16(t.Err),
			Topic:      t.Name,
			Partitions: make([]*protocol.PartitionMetadata, 0, len(t.Partitions)),
		}
		for _, p := range t.Partitions {
			tm.Partitions = append(tm.Partitions, &protocol.PartitionMetadata{
				ErrorCode: int16(p.Err),
				ID:        p.ID,
				Leader:    p.Leader,
				Replicas:  p.Replicas,
				ISR:       p.Isr,
			})
		}
		res.Topics = append(res.Topics, tm)
	}
	return res, nil
}

func (c *saramaConn) OffsetsContext(ctx context.Context, req *protocol.OffsetsRequest) (*protocol.OffsetsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	or := &sarama.OffsetRequest{Version: c.versions.offsets}
	or.AddBlock(req.Topic, req.Partition, req.Timestamp, req.MaxOffsets)

	resp, err := c.broker.GetAvailableOffsets(or)
	if err != nil {
		return nil, errors.Wrapf(err, "offsets from %s", c.broker.Addr())
	}
	block := resp.GetBlock(req.Topic, req.Partition)
	if block == nil {
		return nil, errors.Errorf("offsets from %s: no data for %s/%d", c.broker.Addr(), req.Topic, req.Partition)
	}
	res := &protocol.OffsetsResponse{ErrorCode: int16(block.Err), Offsets: block.Offsets}
	if len(res.Offsets) == 0 && block.Err == sarama.ErrNoError && or.Version >= 1 {
		res.Offsets = []int64{block.Offset}
	}
	return res, nil
}

func (c *saramaConn) Close() error {
	return c.broker.Close()
}

var _ protocol.Dialer = (*Dialer)(nil)
