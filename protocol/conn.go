package protocol

import "context"

// Conn is a connection to one broker. Calls on a connection are synchronous.
type Conn interface {
	FetchContext(ctx context.Context, req *FetchRequest) (*FetchResponse, error)
	MetadataContext(ctx context.Context, req *MetadataRequest) (*MetadataResponse, error)
	OffsetsContext(ctx context.Context, req *OffsetsRequest) (*OffsetsResponse, error)
	Close() error
}

// Dialer opens connections to brokers by address.
type Dialer interface {
	Dial(ctx context.Context, clientID, addr string) (Conn, error)
}
