package consumer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/bodaay/venice/consumer/config"
	"github.com/bodaay/venice/log"
	"github.com/bodaay/venice/message"
	"github.com/bodaay/venice/protocol"
	"github.com/bodaay/venice/serialization"
	"github.com/bodaay/venice/storage"
)

// Lease binds a topic-partition to its current leader, read offset and replica set.
type Lease struct {
	Topic     string
	Partition int32
	Leader    string
	Offset    int64
	Replicas  []string
}

// Option configures a Task.
type Option func(*Task)

// WithDialer replaces the sarama dialer.
func WithDialer(d protocol.Dialer) Option {
	return func(t *Task) { t.dialer = d }
}

// WithTracer sets the tracer spans are started on.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(t *Task) { t.tracer = tracer }
}

// WithMetrics sets where the task's counters go.
func WithMetrics(m *Metrics) Option {
	return func(t *Task) { t.metrics = m }
}

// Task consumes one topic-partition and applies every message to a storage node.
// Each Task owns its connection, lease and serializer; run one per assigned partition.
type Task struct {
	id        string
	config    *config.Config
	node      storage.Node
	topic     string
	partition int32
	port      int
	clientID  string
	prefix    string

	dialer     protocol.Dialer
	locator    *Locator
	serializer *serialization.Serializer
	tracer     opentracing.Tracer
	metrics    *Metrics
	idle       backoff.BackOff
	retry      backoff.BackOff

	conn protocol.Conn

	mu    sync.RWMutex
	lease Lease
}

// NewTask returns a task consuming topic/partition into node. Seed brokers without a port are
// dialed on port.
func NewTask(cfg *config.Config, node storage.Node, topic string, partition int32, port int, opts ...Option) *Task {
	t := &Task{
		id:         uuid.New().String(),
		config:     cfg,
		node:       node,
		topic:      topic,
		partition:  partition,
		port:       port,
		clientID:   fmt.Sprintf("Client_%s_%d", topic, partition),
		prefix:     fmt.Sprintf("consumer/%s-%d", topic, partition),
		serializer: serialization.NewSerializer(),
		tracer:     opentracing.NoopTracer{},
		metrics:    NopMetrics(),
		idle:       backoff.NewConstantBackOff(cfg.IdleBackoff),
		retry:      backoff.NewConstantBackOff(cfg.MetadataRefreshBackoff),
		lease:      Lease{Topic: topic, Partition: partition},
	}
	for _, o := range opts {
		o(t)
	}
	if t.dialer == nil {
		t.dialer = NewDialer(cfg)
	}
	t.locator = NewLocator(t.dialer, port, t.tracer)
	return t
}

// ID identifies this task instance in logs and traces.
func (t *Task) ID() string {
	return t.id
}

// Lease returns a copy of the task's current lease.
func (t *Task) Lease() Lease {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l := t.lease
	l.Replicas = append([]string(nil), t.lease.Replicas...)
	return l
}

func (t *Task) offset() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lease.Offset
}

func (t *Task) setOffset(offset int64) {
	t.mu.Lock()
	t.lease.Offset = offset
	t.mu.Unlock()
	t.metrics.Offset.Set(float64(offset))
}

// setLeadership replaces the leader and replica set, dropping stale replicas.
func (t *Task) setLeadership(l *Leadership) {
	t.mu.Lock()
	t.lease.Leader = l.Leader
	t.lease.Replicas = append([]string(nil), l.Replicas...)
	t.mu.Unlock()
}

// Run consumes until ctx is done or a fatal error occurs. It returns nil when stopped through
// ctx and the fatal error otherwise. The connection is closed before returning.
func (t *Task) Run(ctx context.Context) (err error) {
	sp, ctx := span(ctx, t.tracer, "run")
	sp.SetTag("task", t.id)
	sp.SetTag("topic", t.topic)
	sp.SetTag("partition", t.partition)
	defer func() {
		t.closeConn()
		if err != nil {
			sp.SetTag("error", true)
			sp.LogKV("error", err.Error())
			log.Error.Printf("%s: stopped: %s", t.prefix, err)
		} else {
			log.Info.Printf("%s: stopped at offset %d", t.prefix, t.offset())
		}
		sp.Finish()
	}()

	log.Info.Printf("%s: starting task %s", t.prefix, t.id)
	if err := t.start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res, err := t.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error.Printf("%s: fetch at offset %d failed: %s", t.prefix, t.offset(), err)
			t.metrics.FetchErrors.Add(1)
			t.closeConn()
			if err := t.failover(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			continue
		}

		advanced, err := t.process(res.Records)
		if err != nil {
			return err
		}
		if advanced == 0 {
			t.metrics.Idle.Add(1)
			if !sleep(ctx, t.idle.NextBackOff()) {
				return nil
			}
		}
	}
}

// start finds the partition leader among the seed brokers, connects to it and resolves the
// offset to read from.
func (t *Task) start(ctx context.Context) error {
	leadership, err := t.locator.Locate(ctx, t.config.SeedBrokers, t.topic, t.partition)
	if err != nil {
		return err
	}
	if leadership.Leader == "" {
		return errors.Wrapf(ErrLeaderNotFound, "no leader elected for %s/%d", t.topic, t.partition)
	}
	t.setLeadership(leadership)

	conn, err := t.dialer.Dial(ctx, t.clientID, leadership.Leader)
	if err != nil {
		return errors.Wrapf(err, "connect to leader %s", leadership.Leader)
	}
	t.conn = conn

	sp, ctx := span(ctx, t.tracer, "resolve offset")
	offset, err := ResolveOffset(ctx, conn, t.topic, t.partition, t.config.StartOffset)
	sp.Finish()
	if err != nil {
		return err
	}
	t.setOffset(offset)
	log.Info.Printf("%s: leader %s, starting at offset %d", t.prefix, leadership.Leader, offset)
	return nil
}

func (t *Task) fetch(ctx context.Context) (*protocol.FetchResponse, error) {
	sp, ctx := span(ctx, t.tracer, "fetch")
	defer sp.Finish()
	offset := t.offset()
	sp.SetTag("offset", offset)

	if t.conn == nil {
		return nil, errors.Wrap(ErrTransport, "not connected")
	}
	res, err := t.conn.FetchContext(ctx, &protocol.FetchRequest{
		Topic:       t.topic,
		Partition:   t.partition,
		FetchOffset: offset,
		MaxBytes:    t.config.FetchBufferSize,
		MinBytes:    t.config.FetchMinBytes,
		MaxWaitTime: t.config.FetchMaxWait,
	})
	if err != nil {
		sp.SetTag("error", true)
		return nil, errors.Wrap(ErrTransport, err.Error())
	}
	if res.ErrorCode != protocol.ErrNone.Code() {
		sp.SetTag("error", true)
		return nil, errors.Wrap(ErrTransport, res.Err().Error())
	}
	sp.SetTag("records", len(res.Records))
	return res, nil
}

// process applies records in order and returns how many of them moved the read offset.
// Records below the read offset are skipped. Record faults are logged and skipped; any
// other error is returned and stops the task.
func (t *Task) process(records []*protocol.Record) (int, error) {
	advanced := 0
	for _, rec := range records {
		expected := t.offset()
		if rec.Offset < expected {
			log.Warn.Printf("%s: found an old offset %d, expecting %d", t.prefix, rec.Offset, expected)
			t.metrics.Stale.Add(1)
			continue
		}
		t.setOffset(rec.NextOffset)
		advanced++
		if rec.Control {
			continue
		}

		if err := t.apply(rec); err != nil {
			if !recordFault(err, t.config.FailOnUnsupported) {
				if errors.Cause(err) == storage.ErrCorrupt {
					log.Error.Printf("%s: storage node %s has been corrupted", t.prefix, t.node.NodeID())
				}
				return advanced, errors.Wrapf(err, "offset %d", rec.Offset)
			}
			log.Error.Printf("%s: skipping record at offset %d: %s", t.prefix, rec.Offset, err)
			t.metrics.Skipped.Add(1)
			continue
		}
		t.metrics.Applied.Add(1)
	}
	return advanced, nil
}

func (t *Task) apply(rec *protocol.Record) error {
	if len(rec.Key) == 0 {
		return errors.Wrap(ErrInvalidMessage, "record has no key")
	}
	if rec.Value == nil {
		return errors.Wrap(ErrInvalidMessage, "record has no value")
	}
	msg, err := t.serializer.Decode(rec.Value)
	if err != nil {
		return err
	}
	return t.dispatch(string(rec.Key), msg)
}

// dispatch performs msg's operation on the storage node.
func (t *Task) dispatch(key string, msg *message.Message) error {
	if msg == nil {
		return errors.Wrap(ErrInvalidMessage, "nil message")
	}
	if !msg.Operation.Valid() {
		return errors.Wrapf(ErrInvalidMessage, "invalid operation type %s", msg.Operation)
	}
	switch msg.Operation {
	case message.OpPut:
		log.Debug.Printf("%s: putting %s (%d bytes)", t.prefix, key, len(msg.Payload))
		return t.node.Put(t.partition, key, msg.Payload)
	case message.OpDelete:
		log.Debug.Printf("%s: deleting %s", t.prefix, key)
		return t.node.Delete(t.partition, key)
	default:
		return errors.Wrapf(ErrUnsupportedOperation, "%s is not implemented", msg.Operation)
	}
}

// failover looks for a new partition leader among the last known replicas and connects to it.
// The read offset is left as is.
func (t *Task) failover(ctx context.Context) error {
	sp, ctx := span(ctx, t.tracer, "failover")
	defer sp.Finish()
	t.metrics.Failovers.Add(1)

	old := t.Lease().Leader
	attempts := t.config.NumMetadataRefreshRetries
	t.retry.Reset()
	for i := 0; i < attempts; i++ {
		candidates := t.Lease().Replicas
		if len(candidates) == 0 {
			candidates = t.config.SeedBrokers
		}
		leadership, err := t.locator.Locate(ctx, candidates, t.topic, t.partition)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn.Printf("%s: failover attempt %d/%d: %s", t.prefix, i+1, attempts, err)
		case leadership.Leader == "":
			t.setLeadership(leadership)
			log.Warn.Printf("%s: failover attempt %d/%d: no leader elected", t.prefix, i+1, attempts)
		case i == 0 && strings.EqualFold(leadership.Leader, old):
			// the old leader may still be settling or the error was not a broker failure
			t.setLeadership(leadership)
			log.Info.Printf("%s: leader %s unchanged, waiting before reconnecting", t.prefix, old)
		default:
			t.setLeadership(leadership)
			conn, err := t.dialer.Dial(ctx, t.clientID, leadership.Leader)
			if err == nil {
				t.conn = conn
				sp.LogKV("leader", leadership.Leader, "attempts", i+1)
				log.Info.Printf("%s: failed over from %s to %s, resuming at offset %d", t.prefix, old, leadership.Leader, t.offset())
				return nil
			}
			log.Warn.Printf("%s: failover attempt %d/%d: connect to %s: %s", t.prefix, i+1, attempts, leadership.Leader, err)
		}
		if i+1 < attempts && !sleep(ctx, t.retry.NextBackOff()) {
			return ctx.Err()
		}
	}
	sp.SetTag("error", true)
	return errors.Wrapf(ErrLeaderNotFound, "unable to find new leader for %s/%d after %d attempts", t.topic, t.partition, attempts)
}

func (t *Task) closeConn() {
	if t.conn == nil {
		return
	}
	if err := t.conn.Close(); err != nil {
		log.Debug.Printf("%s: close connection: %s", t.prefix, err)
	}
	t.conn = nil
}

// sleep waits for d and reports false if ctx was done first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
