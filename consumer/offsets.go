package consumer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/bodaay/venice/protocol"
)

// ResolveOffset asks the partition leader behind conn for the offset at timestamp, which is
// protocol.OffsetLatest or protocol.OffsetEarliest. Callers do not retry a failed lookup.
func ResolveOffset(ctx context.Context, conn protocol.Conn, topic string, partition int32, timestamp int64) (int64, error) {
	res, err := conn.OffsetsContext(ctx, &protocol.OffsetsRequest{
		Topic:      topic,
		Partition:  partition,
		Timestamp:  timestamp,
		MaxOffsets: 1,
	})
	if err != nil {
		return 0, errors.Wrapf(ErrOffsetLookup, "topic %s partition %d: %v", topic, partition, err)
	}
	if res.ErrorCode != protocol.ErrNone.Code() {
		return 0, errors.Wrapf(ErrOffsetLookup, "topic %s partition %d: %s", topic, partition, res.Err())
	}
	if len(res.Offsets) == 0 {
		return 0, errors.Wrapf(ErrOffsetLookup, "topic %s partition %d: no offsets returned", topic, partition)
	}
	return res.Offsets[0], nil
}
