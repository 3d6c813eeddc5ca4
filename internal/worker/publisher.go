package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/andrej220/sshop/pkg/lg"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Publisher writes task results. Writes go through a circuit breaker so a
// broker outage fails fast instead of stalling every task.
type Publisher struct {
	writer messageWriter
	cb     *gobreaker.CircuitBreaker
	lg     lg.Logger
}

func breakerSettings(logger lg.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "result-publisher",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				lg.String("breaker", name),
				lg.String("from", from.String()),
				lg.String("to", to.String()))
		},
	}
}

func NewPublisher(brokers []string, topic string, logger lg.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		Async:                  false,
		AllowAutoTopicCreation: true,
	}, logger)
}

func newPublisher(w messageWriter, logger lg.Logger) *Publisher {
	if logger == nil {
		logger = lg.Discard
	}
	return &Publisher{
		writer: w,
		cb:     gobreaker.NewCircuitBreaker(breakerSettings(logger)),
		lg:     logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, res ResultMessage) error {
	value, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = p.cb.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{
			Key:   res.ID[:],
			Value: value,
			Time:  time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("publish result %s: %w", res.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
