package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// MatchEvaluator scores a submitted match
type MatchEvaluator interface {
	Evaluate(ctx context.Context, matchID string) (*domain.MatchEvaluation, error)
}

// Consumer evaluates matches announced on the match topic
type Consumer struct {
	config        *config.KafkaConfig
	evaluator     MatchEvaluator
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
	evalTimeout   time.Duration
}

// NewConsumer creates a new Kafka consumer. evalTimeout bounds a single
// evaluation, model call included.
func NewConsumer(cfg *config.KafkaConfig, evaluator MatchEvaluator, evalTimeout time.Duration, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return newConsumer(cfg, evaluator, consumerGroup, evalTimeout, logger), nil
}

func newConsumer(cfg *config.KafkaConfig, evaluator MatchEvaluator, group sarama.ConsumerGroup, evalTimeout time.Duration, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		evaluator:     evaluator,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
		evalTimeout:   evalTimeout,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
		c.logger.Info("kafka consumer ready")
	case <-c.ctx.Done():
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// evaluateBatch scores each distinct match once. Evaluation is idempotent,
// so redelivered ids cost a read.
func (c *Consumer) evaluateBatch(ids []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c.evaluateWithRetry(id)
	}
}

func (c *Consumer) evaluateWithRetry(matchID string) {
	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(c.ctx, c.evalTimeout)
		_, err := c.evaluator.Evaluate(ctx, matchID)
		cancel()

		switch {
		case err == nil:
			c.logger.Debug("match evaluated from queue", "match_id", matchID)
			return
		case errors.Is(err, domain.ErrEvaluationInProgress):
			// someone else has it
			return
		case domain.IsNotFoundError(err), errors.Is(err, domain.ErrModelNotConfigured):
			c.logger.Warn("skipping match", "match_id", matchID, "error", err)
			return
		}

		c.logger.Error("failed to evaluate match",
			"match_id", matchID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < attempts {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.config.RetryDelay):
			}
		}
	}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim collects match ids into batches. Offsets are marked after the
// batch is processed.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]string, 0, cfg.BatchSize)
	pending := make([]*sarama.ConsumerMessage, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(pending) == 0 {
			return
		}
		if len(batch) > 0 {
			h.consumer.evaluateBatch(batch)
			h.consumer.logger.Debug("processed batch", "batch_size", len(batch))
		}
		for _, m := range pending {
			session.MarkMessage(m, "")
		}
		batch = batch[:0]
		pending = pending[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}
			pending = append(pending, message)

			var event domain.MatchEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.consumer.logger.Warn("failed to unmarshal message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				continue
			}
			if event.EventType != domain.EventMatchSubmitted || event.MatchID == "" {
				continue
			}

			batch = append(batch, event.MatchID)
			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
