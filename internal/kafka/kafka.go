package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultBroker = "kafka-broker:9092"
	DefaultTopic  = "metaodds.markets"
	DefaultGroup  = "metaodds-catalog-mirror"

	defaultPartitions = 3
	dialTimeout       = 5 * time.Second
	brokerPoll        = time.Second
)

// ErrNoBrokers is returned when the broker list is empty.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// Brokers splits a comma-separated broker list, falling back to DefaultBroker.
func Brokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBroker
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// dialAny returns a connection to the first broker in the list that answers.
func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	dialer := &kafka.Dialer{Timeout: dialTimeout}
	var errs []error
	for _, b := range brokers {
		conn, err := dialer.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", b, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// WaitForBroker blocks until any broker accepts a connection or ctx ends.
func WaitForBroker(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	for {
		conn, err := dialAny(ctx, brokers)
		if err == nil {
			return conn.Close()
		}

		t := time.NewTimer(brokerPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("kafka: broker not reachable: %w (last: %v)", ctx.Err(), err)
		case <-t.C:
		}
	}
}

// EnsureTopic creates the snapshot topic on the cluster controller. A topic
// that already exists is not an error; its partition count is left alone.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) error {
	if partitions <= 0 {
		partitions = defaultPartitions
	}
	conn, err := dialAny(ctx, brokers)
	if err != nil {
		return fmt.Errorf("kafka: dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: lookup controller: %w", err)
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrl, err := (&kafka.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("kafka: dial controller %s: %w", addr, err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", topic, err)
	}
	return nil
}

// NewWriter hashes message keys to partitions so every update of one market
// lands on the same partition, in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewReader joins group on topic. A new group starts from the oldest retained
// snapshot so a fresh replica catches up on the backlog.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(readerConfig(brokers, topic, group))
}

func readerConfig(brokers []string, topic, group string) kafka.ReaderConfig {
	if group == "" {
		group = DefaultGroup
	}
	return kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        group,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	}
}
