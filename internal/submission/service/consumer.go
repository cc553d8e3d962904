package service

import (
	"context"
	"fmt"

	"codoleet/internal/common/mq"
)

const (
	defaultConsumerGroup = "codoleet-evaluation"
	defaultWorkers       = 4
)

// ConsumerConfig controls the evaluation task consumer.
type ConsumerConfig struct {
	Topic      string `yaml:"topic"`
	Group      string `yaml:"group"`
	Workers    int    `yaml:"workers"`
	MaxRetries int    `yaml:"max_retries"`
}

// Consumer pulls evaluation tasks off the queue and runs them through a
// bounded worker pool. The pool bound is the backpressure: no new task is
// fetched until a worker frees up.
type Consumer struct {
	queue   mq.MessageQueue
	service *SubmissionService
	cfg     ConsumerConfig
}

func NewConsumer(queue mq.MessageQueue, svc *SubmissionService, cfg ConsumerConfig) (*Consumer, error) {
	if queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if svc == nil {
		return nil, fmt.Errorf("submission service is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if cfg.Group == "" {
		cfg.Group = defaultConsumerGroup
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Consumer{queue: queue, service: svc, cfg: cfg}, nil
}

// Start subscribes and blocks until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	opts := &mq.SubscribeOptions{
		ConsumerGroup: c.cfg.Group,
		Concurrency:   c.cfg.Workers,
		MaxRetries:    c.cfg.MaxRetries,
	}
	limiter := mq.NewTokenLimiter(c.cfg.Workers)
	return c.queue.SubscribeLimited(ctx, c.cfg.Topic, c.service.HandleEvaluationTask, opts, limiter)
}
