package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RetryBudget bounds how long a worker re-runs a failing handler. When it is
// spent the consumer stops without committing the message, so the group
// resumes from it on the next start.
const RetryBudget = 30 * time.Second

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages out to workers by partition. Each partition is owned
// by one worker, which handles and commits its messages in offset order.
type Consumer struct {
	r       reader
	workers int
	budget  time.Duration
	logger  *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, logger)
}

func newConsumer(r reader, workers int, logger *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, budget: RetryBudget, logger: logger}
}

// Start blocks until ctx is done, the reader fails, or a message exhausts its
// retry budget. Only the last two return an error.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	runCtx, cancel := context.WithCancel(ctx)
	failed := make(chan error, 1)
	lanes := make([]chan kafka.Message, c.workers)

	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if runCtx.Err() != nil {
					return
				}
				if err := c.handle(runCtx, id, h, m); err != nil {
					if runCtx.Err() != nil {
						return
					}
					c.logger.Error("handler gave up, stopping consumer",
						zap.Int("worker", id), zap.Int("partition", m.Partition),
						zap.Int64("offset", m.Offset), zap.Error(err))
					select {
					case failed <- fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err):
					default:
					}
					cancel()
					return
				}
				if err := c.r.CommitMessages(runCtx, m); err != nil && runCtx.Err() == nil {
					c.logger.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, lanes[i])
	}
	defer func() {
		cancel()
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(runCtx)
		if err != nil {
			return exitErr(ctx, failed, err)
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-runCtx.Done():
			return exitErr(ctx, failed, nil)
		}
	}
}

func exitErr(ctx context.Context, failed <-chan error, err error) error {
	select {
	case ferr := <-failed:
		return ferr
	default:
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.budget

	return backoff.RetryNotify(func() error {
		return h(ctx, m)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.logger.Warn("handler failed, retrying",
			zap.Int("worker", worker), zap.Int64("offset", m.Offset),
			zap.Duration("wait", wait), zap.Error(err))
	})
}
