// Package worker runs ssh tasks received from Kafka, one at a time, and
// publishes one result per task.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/andrej220/sshop/internal/operator"
	"github.com/andrej220/sshop/pkg/config"
	"github.com/andrej220/sshop/pkg/consumer"
	"github.com/andrej220/sshop/pkg/lg"
	"github.com/andrej220/sshop/pkg/secrets"
)

const readRetryWait = time.Second

type taskReader interface {
	Read(ctx context.Context) (TaskMessage, error)
}

type resultPublisher interface {
	Publish(ctx context.Context, res ResultMessage) error
}

type Worker struct {
	tasks   taskReader
	results resultPublisher
	factory *operator.Factory
	secrets *secrets.Store
	logger  lg.Logger
}

func New(tasks taskReader, results resultPublisher, factory *operator.Factory, store *secrets.Store, logger lg.Logger) *Worker {
	if logger == nil {
		logger = lg.Discard
	}
	return &Worker{tasks: tasks, results: results, factory: factory, secrets: store, logger: logger}
}

// Run consumes tasks until ctx is cancelled. Cancellation is not an error.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	queue := make(chan TaskMessage)

	g.Go(func() error {
		defer close(queue)
		return w.fetch(ctx, queue)
	})
	g.Go(func() error {
		for msg := range queue {
			w.handle(ctx, msg)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, queue chan<- TaskMessage) error {
	for {
		msg, err := w.tasks.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var decodeErr *consumer.DecodeError
			if errors.As(err, &decodeErr) {
				w.logger.Warn("skipping malformed task message", lg.Err(err))
				continue
			}
			w.logger.Error("failed to read task", lg.Err(err))
			select {
			case <-time.After(readRetryWait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case queue <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg TaskMessage) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	op := w.factory.NewOperator(operator.TaskContext{
		ID:      msg.ID,
		Config:  config.NewParams(msg.Config),
		Secrets: w.secrets,
	})
	_, err := op.Run(ctx)

	res := resultFor(msg.ID, err)
	w.logger.Info("task finished", lg.String("id", msg.ID.String()), lg.String("status", res.Status), lg.String("kind", res.Kind))
	if err := w.results.Publish(ctx, res); err != nil {
		w.logger.Error("failed to publish result", lg.String("id", msg.ID.String()), lg.Err(err))
	}
}
