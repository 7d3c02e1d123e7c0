package consumer

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	dynaport "github.com/travisjeffery/go-dynaport"

	"github.com/bodaay/venice/consumer/config"
)

// NewTestBroker starts a sarama mock broker listening on a free local port.
func NewTestBroker(t sarama.TestReporter, id int32) *sarama.MockBroker {
	port := dynaport.Get(1)[0]
	return sarama.NewMockBrokerAddr(t, id, fmt.Sprintf("127.0.0.1:%d", port))
}

// NewTestDialer returns a dialer that skips the api versions handshake, which mock brokers
// don't answer unless told to.
func NewTestDialer(cfg *config.Config) *Dialer {
	d := NewDialer(cfg)
	d.apiVersions = false
	return d
}

// TestConfig returns a config seeded with brokers and with backoffs short enough for tests.
func TestConfig(brokers ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SeedBrokers = brokers
	cfg.SocketTimeout = 5 * time.Second
	cfg.FetchMaxWait = 10 * time.Millisecond
	cfg.IdleBackoff = time.Millisecond
	cfg.MetadataRefreshBackoff = time.Millisecond
	return cfg
}

// UnusedAddr returns a local address nothing listens on.
func UnusedAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", dynaport.Get(1)[0])
}
