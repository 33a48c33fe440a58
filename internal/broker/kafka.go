package broker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"notifier/internal/config"
	"notifier/internal/constants"
	"notifier/internal/logger"
	"notifier/pkg/errors"
	"notifier/pkg/logging"
	"notifier/pkg/metrics"
	"notifier/pkg/retry"
)

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	mu          sync.Mutex
	readers     []*kafka.Reader
	logger      logger.Logger
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume starts one reader per topic and cfg.Workers fetch loops per
// reader. Each record is processed to completion (with bounded retry)
// before its offset is committed; records that still fail are logged and
// dropped so the partition never stalls.
func (c *KafkaConsumer) Consume(ctx context.Context, topics []string, handler HandlerFunc) error {
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	for _, topic := range topics {
		c.logger.Infow("Creating Kafka reader",
			"topic", topic,
			"brokers", c.cfg.Brokers,
			"group_id", c.cfg.GroupID,
			"workers", workers,
			"service_name", c.serviceName,
		)

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: constants.KafkaMinBytes,
			MaxBytes: constants.KafkaMaxBytes,
		})

		c.mu.Lock()
		c.readers = append(c.readers, reader)
		c.mu.Unlock()

		for i := 0; i < workers; i++ {
			c.wg.Add(1)
			go c.consumeLoop(ctx, reader, topic, handler)
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

func (c *KafkaConsumer) consumeLoop(ctx context.Context, reader *kafka.Reader, topic string, handler HandlerFunc) {
	defer c.wg.Done()

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming",
		"topic", topic,
	)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"topic", topic,
					"reason", "context canceled",
				)
				return
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
				"error", err,
				"topic", topic,
			)
			time.Sleep(constants.KafkaFetchBackoff)
			continue
		}

		rec := Record{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Time:      m.Time,
		}

		if err := c.processWithRetry(consumeCtx, rec, handler); err != nil {
			// Persistence-side failure that survived the bounded
			// retry. The record is dropped, not redelivered.
			metrics.DroppedRecordsTotal.WithLabelValues(topic).Inc()
			metrics.EventsConsumedTotal.WithLabelValues(topic, "dropped").Inc()
			c.logger.ErrorwCtx(consumeCtx, "Failed to process record after retries, dropping",
				"error", err,
				"topic", rec.Topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
			)
		} else {
			metrics.EventsConsumedTotal.WithLabelValues(topic, "processed").Inc()
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
				"error", err,
				"topic", topic,
				"partition", rec.Partition,
				"offset", rec.Offset,
			)
		}
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, rec Record, handler HandlerFunc) error {
	policy := retry.DefaultPolicy()

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during record processing",
					"error", err,
					"topic", rec.Topic,
					"partition", rec.Partition,
					"offset", rec.Offset,
				)
			}
		}()
		return handler(ctx, rec)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(rec.Topic).Inc()
		c.logger.WarnwCtx(ctx, "Retrying record processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", rec.Topic,
			"partition", rec.Partition,
			"offset", rec.Offset,
		)
	})
}

func (c *KafkaConsumer) Close() error {
	var err error
	c.mu.Lock()
	for _, reader := range c.readers {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
	return err
}
