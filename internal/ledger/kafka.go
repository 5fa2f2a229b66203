package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaGateway publishes settlement requests to a Kafka topic consumed by the
// on-chain execution service. Requests are keyed by dispute ID so retries for
// the same dispute stay ordered on one partition.
type KafkaGateway struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type KafkaOption func(*KafkaGateway)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(g *KafkaGateway) {
		g.logger = logger
	}
}

func NewKafkaGateway(brokers []string, topic string, opts ...KafkaOption) (*KafkaGateway, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("settlement topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	g := &KafkaGateway{
		client: client,
		topic:  topic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// EnsureTopic creates the settlement topic if it does not already exist.
func (g *KafkaGateway) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(g.client)
	_, err := adm.CreateTopic(ctx, partitions, replication, nil, g.topic)
	if err != nil && !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
		return fmt.Errorf("create topic %s: %w", g.topic, err)
	}
	return nil
}

func (g *KafkaGateway) RequestSettlement(ctx context.Context, req SettlementRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal settlement request: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(req.DisputeID.String()),
		Value: payload,
	}
	if err := g.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish settlement request for dispute %s: %w", req.DisputeID, err)
	}

	g.logger.InfoContext(ctx, "settlement request published",
		"dispute_id", req.DisputeID,
		"payee", req.Payee,
		"amount", req.Amount,
	)
	return nil
}

func (g *KafkaGateway) Close() {
	g.client.Close()
}
