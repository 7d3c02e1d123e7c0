package protocol

// Special timestamps for offsets requests.
const (
	OffsetLatest   int64 = -1
	OffsetEarliest int64 = -2
)

// OffsetsRequest asks a partition leader for the offsets before Timestamp.
type OffsetsRequest struct {
	Topic      string
	Partition  int32
	Timestamp  int64
	MaxOffsets int32
}

// OffsetsResponse carries the offsets found for the requested partition.
type OffsetsResponse struct {
	ErrorCode int16
	Offsets   []int64
}

// Err returns the response's error code as an Error.
func (r *OffsetsResponse) Err() Error {
	return ErrorFromCode(r.ErrorCode)
}
