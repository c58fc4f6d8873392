/*
uow.go - Unit-of-work coordinator

PURPOSE:
  Wraps every stock-changing operation in one atomic scope on one pooled
  connection.

GUARANTEES:
  - Admission is bounded: at most MaxConcurrent units run at once. A caller
    waits up to AcquireTimeout for a slot, then gets ErrBusy.
  - The scope is opened before the operation runs and committed only when
    it returns nil. Any error, panic or context cancellation rolls back.
  - Business errors come back unchanged. Anything else is storage trouble
    and is returned as a PersistenceError with a diagnostic code; the
    driver text goes to the log, not the caller.
  - The slot and the connection are released on every exit path.

NO RETRIES:
  Nothing is retried here. Retryable errors are classified so the caller
  can decide to resubmit.
*/
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Observer receives one call per finished unit of work.
type Observer interface {
	ObserveUnit(op string, err error, elapsed time.Duration)
}

// CoordinatorConfig bounds how many units of work run concurrently.
type CoordinatorConfig struct {
	MaxConcurrent  int64
	AcquireTimeout time.Duration
}

// DefaultCoordinatorConfig matches the default connection pool size.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{MaxConcurrent: 10, AcquireTimeout: 5 * time.Second}
}

type Coordinator struct {
	store    TxStore
	slots    *semaphore.Weighted
	timeout  time.Duration
	logger   logrus.FieldLogger
	observer Observer
}

func NewCoordinator(store TxStore, cfg CoordinatorConfig, logger logrus.FieldLogger, observer Observer) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultCoordinatorConfig().MaxConcurrent
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Coordinator{
		store:    store,
		slots:    semaphore.NewWeighted(cfg.MaxConcurrent),
		timeout:  cfg.AcquireTimeout,
		logger:   logger,
		observer: observer,
	}
}

// Run executes fn as one unit of work named op and returns its result.
func Run[T any](ctx context.Context, c *Coordinator, op string, fn func(ctx context.Context, store Store) (T, error)) (T, error) {
	var result T
	start := time.Now()

	err := c.acquire(ctx)
	if err == nil {
		defer c.slots.Release(1)
		err = c.store.WithTx(ctx, func(store Store) error {
			var opErr error
			result, opErr = fn(ctx, store)
			return opErr
		})
	}

	if err != nil {
		var zero T
		result = zero
		err = c.classify(op, err)
	}
	if c.observer != nil {
		c.observer.ObserveUnit(op, err, time.Since(start))
	}
	return result, err
}

func (c *Coordinator) acquire(ctx context.Context) error {
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
	return nil
}

// classify keeps business errors as they are and wraps the rest.
func (c *Coordinator) classify(op string, err error) error {
	log := c.logger.WithFields(logrus.Fields{"op": op, "outcome": Classify(err)})

	var perr *PersistenceError
	switch {
	case errors.As(err, &perr):
		log.WithField("failure_code", perr.Code).WithError(perr.Err).Error("unit of work rolled back")
		return err
	case IsClientError(err):
		log.WithError(err).Info("unit of work rejected")
		return err
	case errors.Is(err, ErrBusy):
		log.Warn("unit of work not admitted")
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).Warn("unit of work canceled")
		return err
	}

	wrapped := &PersistenceError{Op: op, Code: uuid.NewString(), Err: err}
	log.WithField("failure_code", wrapped.Code).WithError(err).Error("unit of work rolled back")
	return wrapped
}
