package consumer

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/bodaay/venice/log"
	"github.com/bodaay/venice/protocol"
)

const leaderLookupClientID = "leaderLookup"

var dump = spew.ConfigState{Indent: "", DisablePointerAddresses: true, SortKeys: true}

// Leadership is a snapshot of who leads a partition and which brokers replicate it.
// Leader is empty when the partition exists but has no elected leader.
type Leadership struct {
	Leader   string
	Replicas []string
}

// Locator finds partition leaders by asking candidate brokers for topic metadata.
type Locator struct {
	dialer protocol.Dialer
	port   int
	tracer opentracing.Tracer
}

// NewLocator returns a locator. Candidates without a port are dialed on port.
func NewLocator(dialer protocol.Dialer, port int, tracer opentracing.Tracer) *Locator {
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return &Locator{dialer: dialer, port: port, tracer: tracer}
}

// Locate asks each candidate in order and returns on the first one that knows the partition.
// Candidates that can't be reached are logged and skipped. ErrLeaderNotFound is returned when
// no candidate knows the partition.
func (l *Locator) Locate(ctx context.Context, candidates []string, topic string, partition int32) (*Leadership, error) {
	sp, ctx := span(ctx, l.tracer, "locate leader")
	defer sp.Finish()
	sp.SetTag("topic", topic)
	sp.SetTag("partition", partition)

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		addr := brokerAddr(candidate, l.port)
		leadership, err := l.ask(ctx, addr, topic, partition)
		if err != nil {
			log.Error.Printf("consumer: error communicating with %s to find %s/%d: %s", addr, topic, partition, err)
			continue
		}
		if leadership != nil {
			sp.LogKV("candidate", addr, "queried", i+1, "leader", leadership.Leader)
			return leadership, nil
		}
	}
	sp.SetTag("error", true)
	return nil, errors.Wrapf(ErrLeaderNotFound, "topic %s partition %d, %d candidates", topic, partition, len(candidates))
}

func (l *Locator) ask(ctx context.Context, addr, topic string, partition int32) (*Leadership, error) {
	conn, err := l.dialer.Dial(ctx, leaderLookupClientID, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := conn.MetadataContext(ctx, &protocol.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return nil, err
	}
	if log.Enabled(log.DebugLevel) {
		log.Debug.Printf("consumer: metadata from %s: %s", addr, dump.Sprintf("%+v", res))
	}
	for _, t := range res.Topics {
		if t.Topic != topic {
			continue
		}
		for _, p := range t.Partitions {
			if p.ID == partition {
				return leadershipOf(res, p), nil
			}
		}
	}
	return nil, nil
}

func leadershipOf(res *protocol.MetadataResponse, p *protocol.PartitionMetadata) *Leadership {
	l := &Leadership{Replicas: make([]string, 0, len(p.Replicas))}
	if p.Leader >= 0 {
		l.Leader, _ = res.BrokerAddr(p.Leader)
	}
	for _, id := range p.Replicas {
		if addr, ok := res.BrokerAddr(id); ok {
			l.Replicas = append(l.Replicas, addr)
		}
	}
	return l
}
