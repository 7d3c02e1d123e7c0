package config

import (
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"

	"github.com/bodaay/venice/protocol"
)

// Config holds the configuration of a partition consumer.
type Config struct {
	// SeedBrokers are used to find the partition leader on start. Entries without a port use the
	// port the consumer was started with.
	SeedBrokers []string
	// FetchBufferSize bounds the bytes returned by a single fetch.
	FetchBufferSize int32
	FetchMinBytes   int32
	FetchMaxWait    time.Duration
	// SocketTimeout bounds dialing and every request on a connection.
	SocketTimeout time.Duration
	// NumMetadataRefreshRetries is how many times a new leader is looked up after a fetch error.
	NumMetadataRefreshRetries int
	MetadataRefreshBackoff    time.Duration
	// IdleBackoff is slept after a fetch that returned nothing new.
	IdleBackoff time.Duration
	// StartOffset is protocol.OffsetLatest or protocol.OffsetEarliest.
	StartOffset  int64
	KafkaVersion sarama.KafkaVersion
	// FailOnUnsupported stops the consumer on a partial put instead of skipping the record.
	FailOnUnsupported bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FetchBufferSize:           64 * 1024,
		FetchMinBytes:             1,
		FetchMaxWait:              250 * time.Millisecond,
		SocketTimeout:             100 * time.Second,
		NumMetadataRefreshRetries: 3,
		MetadataRefreshBackoff:    time.Second,
		IdleBackoff:               time.Second,
		StartOffset:               protocol.OffsetLatest,
		KafkaVersion:              sarama.V1_0_0_0,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case len(c.SeedBrokers) == 0:
		return errors.New("config: no seed brokers")
	case c.FetchBufferSize <= 0:
		return errors.New("config: fetch buffer size must be positive")
	case c.SocketTimeout <= 0:
		return errors.New("config: socket timeout must be positive")
	case c.NumMetadataRefreshRetries <= 0:
		return errors.New("config: metadata refresh retries must be positive")
	case c.MetadataRefreshBackoff < 0 || c.IdleBackoff < 0:
		return errors.New("config: backoff must not be negative")
	case c.StartOffset != protocol.OffsetLatest && c.StartOffset != protocol.OffsetEarliest:
		return errors.Errorf("config: invalid start offset %d", c.StartOffset)
	}
	for _, b := range c.SeedBrokers {
		if strings.TrimSpace(b) == "" {
			return errors.New("config: empty seed broker")
		}
	}
	return nil
}

// File is the on-disk form of Config. Durations are in milliseconds.
type File struct {
	SeedBrokers               []string `codec:"seed_brokers"`
	FetchBufferSize           int32    `codec:"fetch_buffer_size"`
	FetchMinBytes             int32    `codec:"fetch_min_bytes"`
	FetchMaxWaitMs            int64    `codec:"fetch_max_wait_ms"`
	SocketTimeoutMs           int64    `codec:"socket_timeout_ms"`
	NumMetadataRefreshRetries int      `codec:"num_metadata_refresh_retries"`
	MetadataRefreshBackoffMs  int64    `codec:"metadata_refresh_backoff_ms"`
	IdleBackoffMs             int64    `codec:"idle_backoff_ms"`
	StartOffset               string   `codec:"start_offset"`
	KafkaVersion              string   `codec:"kafka_version"`
	FailOnUnsupported         bool     `codec:"fail_on_unsupported"`
}

// Load reads a JSON config file and applies it over DefaultConfig. Fields missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(b)
}

// Parse decodes a JSON config document and applies it over DefaultConfig.
func Parse(b []byte) (*Config, error) {
	var f File
	if err := codec.NewDecoderBytes(b, new(codec.JsonHandle)).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	return f.Apply(DefaultConfig())
}

// Apply copies the fields set in f onto c.
func (f *File) Apply(c *Config) (*Config, error) {
	if len(f.SeedBrokers) > 0 {
		c.SeedBrokers = f.SeedBrokers
	}
	if f.FetchBufferSize != 0 {
		c.FetchBufferSize = f.FetchBufferSize
	}
	if f.FetchMinBytes != 0 {
		c.FetchMinBytes = f.FetchMinBytes
	}
	if f.FetchMaxWaitMs != 0 {
		c.FetchMaxWait = millis(f.FetchMaxWaitMs)
	}
	if f.SocketTimeoutMs != 0 {
		c.SocketTimeout = millis(f.SocketTimeoutMs)
	}
	if f.NumMetadataRefreshRetries != 0 {
		c.NumMetadataRefreshRetries = f.NumMetadataRefreshRetries
	}
	if f.MetadataRefreshBackoffMs != 0 {
		c.MetadataRefreshBackoff = millis(f.MetadataRefreshBackoffMs)
	}
	if f.IdleBackoffMs != 0 {
		c.IdleBackoff = millis(f.IdleBackoffMs)
	}
	if f.StartOffset != "" {
		offset, err := ParseStartOffset(f.StartOffset)
		if err != nil {
			return nil, err
		}
		c.StartOffset = offset
	}
	if f.KafkaVersion != "" {
		v, err := sarama.ParseKafkaVersion(f.KafkaVersion)
		if err != nil {
			return nil, errors.Wrap(err, "config: kafka version")
		}
		c.KafkaVersion = v
	}
	c.FailOnUnsupported = c.FailOnUnsupported || f.FailOnUnsupported
	return c, nil
}

// ParseStartOffset maps "latest" and "earliest" to their offsets request timestamps.
func ParseStartOffset(s string) (int64, error) {
	switch strings.ToLower(s) {
	case "latest", "newest":
		return protocol.OffsetLatest, nil
	case "earliest", "oldest":
		return protocol.OffsetEarliest, nil
	}
	return 0, errors.Errorf("config: invalid start offset %q", s)
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
