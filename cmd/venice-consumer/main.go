package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"
	gracefully "github.com/tj/go-gracefully"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/bodaay/venice/consumer"
	"github.com/bodaay/venice/consumer/config"
	"github.com/bodaay/venice/log"
	"github.com/bodaay/venice/storage"
)

var (
	cli = &cobra.Command{
		Use:   "venice-consumer",
		Short: "Replicates Kafka partitions into a Venice storage node",
	}

	consumeCfg = struct {
		ConfigPath string
		Topic      string
		Port       int
		Partitions []int
		NodeID     string
		MaxEntries int
		LogLevel   string
		Tracing    bool
		Overrides  config.File
	}{}
)

func init() {
	consumeCmd := &cobra.Command{Use: "consume", Short: "Consume partitions of a store's topic", RunE: run}
	f := consumeCmd.Flags()
	f.StringVar(&consumeCfg.ConfigPath, "config", "", "JSON config file")
	f.StringVar(&consumeCfg.Topic, "topic", "", "Kafka topic backing the store")
	f.IntVar(&consumeCfg.Port, "port", 9092, "Port used for brokers given without one")
	f.IntSliceVar(&consumeCfg.Partitions, "partitions", []int{0}, "Partitions hosted by this node")
	f.StringVar(&consumeCfg.NodeID, "node-id", "", "Storage node ID (random if empty)")
	f.IntVar(&consumeCfg.MaxEntries, "max-entries", 0, "Max entries held by the node, 0 for no limit")
	f.StringVar(&consumeCfg.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.BoolVar(&consumeCfg.Tracing, "tracing", false, "Report spans to a local jaeger agent")
	f.StringSliceVar(&consumeCfg.Overrides.SeedBrokers, "brokers", nil, "Seed brokers")
	f.StringVar(&consumeCfg.Overrides.StartOffset, "start-offset", "", "Where to start without a stored offset: latest or earliest")
	f.StringVar(&consumeCfg.Overrides.KafkaVersion, "kafka-version", "", "Kafka version of the cluster")
	f.Int32Var(&consumeCfg.Overrides.FetchBufferSize, "fetch-buffer-size", 0, "Max bytes per fetch")
	f.IntVar(&consumeCfg.Overrides.NumMetadataRefreshRetries, "metadata-refresh-retries", 0, "Leader lookups per failover")
	f.BoolVar(&consumeCfg.Overrides.FailOnUnsupported, "fail-on-unsupported", false, "Stop on operations this node can't apply")
	consumeCmd.MarkFlagRequired("topic")

	cli.AddCommand(consumeCmd)
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if consumeCfg.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(consumeCfg.ConfigPath); err != nil {
			return nil, err
		}
	}
	cfg, err := consumeCfg.Overrides.Apply(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func run(cmd *cobra.Command, args []string) error {
	log.SetLevel(consumeCfg.LogLevel)
	sarama.Logger = log.NewStdLogger(log.DebugLevel, "sarama: ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	partitions := make([]int32, 0, len(consumeCfg.Partitions))
	for _, p := range consumeCfg.Partitions {
		partitions = append(partitions, int32(p))
	}
	node, err := storage.NewMemNode(storage.MemNodeConfig{
		NodeID:     consumeCfg.NodeID,
		MaxEntries: consumeCfg.MaxEntries,
		Partitions: partitions,
	})
	if err != nil {
		return err
	}
	defer node.Close()

	opts := []consumer.Option{consumer.WithMetrics(consumer.NewMetrics())}
	if consumeCfg.Tracing {
		tracer, closer, err := jaegercfg.Configuration{
			ServiceName: "venice-consumer",
			Sampler: &jaegercfg.SamplerConfig{
				Type:  jaeger.SamplerTypeConst,
				Param: 1,
			},
		}.NewTracer(jaegercfg.Metrics(metrics.NullFactory))
		if err != nil {
			return fmt.Errorf("error starting tracer: %v", err)
		}
		defer closer.Close()
		opts = append(opts, consumer.WithTracer(tracer))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g errgroup.Group
	for _, p := range partitions {
		task := consumer.NewTask(cfg, node, consumeCfg.Topic, p, consumeCfg.Port, opts...)
		log.Info.Printf("venice-consumer: node %s consuming %s/%d as task %s", node.NodeID(), consumeCfg.Topic, p, task.ID())
		g.Go(func() error {
			return task.Run(ctx)
		})
	}

	go func() {
		gracefully.Timeout = 10 * time.Second
		gracefully.Shutdown()
		log.Info.Printf("venice-consumer: shutting down node %s", node.NodeID())
		cancel()
	}()

	if err := g.Wait(); err != nil {
		return fmt.Errorf("consumer stopped: %v", err)
	}
	return nil
}
