package protocol

import "time"

// FetchRequest asks a partition leader for records starting at FetchOffset.
type FetchRequest struct {
	Topic       string
	Partition   int32
	FetchOffset int64
	// MaxBytes bounds the records returned for the partition.
	MaxBytes    int32
	MinBytes    int32
	MaxWaitTime time.Duration
}

// Record is one log entry. The key travels outside the value.
type Record struct {
	Offset     int64
	NextOffset int64
	Key        []byte
	Value      []byte
	// Control marks a transaction marker. It moves the read offset and is never applied.
	Control    bool
}

// FetchResponse carries the records for the fetched partition in log order.
type FetchResponse struct {
	Topic         string
	Partition     int32
	ErrorCode     int16
	HighWatermark int64
	Records       []*Record
}

// Err returns the response's error code as an Error.
func (r *FetchResponse) Err() Error {
	return ErrorFromCode(r.ErrorCode)
}
