package protocol

import "fmt"

// Error is a broker error code with an optional cause attached.
type Error struct {
	code int16
	msg  string
	err  error
}

// Error codes a partition consumer can see from fetch, metadata and offsets responses.
var (
	ErrUnknown                 = Error{code: -1, msg: "unknown"}
	ErrNone                    = Error{code: 0, msg: "none"}
	ErrOffsetOutOfRange        = Error{code: 1, msg: "offset out of range"}
	ErrCorruptMessage          = Error{code: 2, msg: "corrupt message"}
	ErrUnknownTopicOrPartition = Error{code: 3, msg: "unknown topic or partition"}
	ErrLeaderNotAvailable      = Error{code: 5, msg: "leader not available"}
	ErrNotLeaderForPartition   = Error{code: 6, msg: "not leader for partition"}
	ErrRequestTimedOut         = Error{code: 7, msg: "request timed out"}
	ErrBrokerNotAvailable      = Error{code: 8, msg: "broker not available"}
	ErrReplicaNotAvailable     = Error{code: 9, msg: "replica not available"}
	ErrNetworkException        = Error{code: 13, msg: "network exception"}
	ErrNotEnoughReplicas       = Error{code: 19, msg: "not enough replicas"}
	ErrFencedLeaderEpoch       = Error{code: 74, msg: "fenced leader epoch"}
	ErrUnknownLeaderEpoch      = Error{code: 75, msg: "unknown leader epoch"}

	errs = []Error{
		ErrUnknown,
		ErrNone,
		ErrOffsetOutOfRange,
		ErrCorruptMessage,
		ErrUnknownTopicOrPartition,
		ErrLeaderNotAvailable,
		ErrNotLeaderForPartition,
		ErrRequestTimedOut,
		ErrBrokerNotAvailable,
		ErrReplicaNotAvailable,
		ErrNetworkException,
		ErrNotEnoughReplicas,
		ErrFencedLeaderEpoch,
		ErrUnknownLeaderEpoch,
	}
)

// ErrorFromCode returns the Error for a wire code. Codes this package does not name keep their
// value and read as "error code N".
func ErrorFromCode(code int16) Error {
	for _, e := range errs {
		if e.code == code {
			return e
		}
	}
	return Error{code: code, msg: fmt.Sprintf("error code %d", code)}
}

// Code returns the wire code.
func (e Error) Code() int16 {
	return e.code
}

// Unwrap returns the attached cause, if any.
func (e Error) Unwrap() error {
	return e.err
}

// WithErr returns a copy of e with err as its cause.
func (e Error) WithErr(err error) Error {
	return Error{code: e.code, msg: e.msg, err: err}
}

func (e Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s (%d): %v", e.msg, e.code, e.err)
	}
	return fmt.Sprintf("%s (%d)", e.msg, e.code)
}
