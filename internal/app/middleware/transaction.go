package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"habita/internal/app/commands"
	"habita/internal/app/uow"
	"habita/internal/domain/shared/fault"
)

var (
	ErrUnitOfWorkMissing = errors.New("middleware: unit of work not found")
	ErrRetriesExhausted  = errors.New("concurrent update, please retry")
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// RetryPolicy bounds how often a command is re-run after a transient commit failure.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay grows linearly with the attempt number plus up to one Backoff of jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	return p.Backoff*time.Duration(attempt) + rand.N(p.Backoff)
}

// Transaction runs each command in its own unit of work. Transient commit failures re-run the
// whole command in a fresh unit; once attempts run out the caller sees a conflict.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, policy RetryPolicy) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var lastErr error
			for attempt := 1; attempt <= policy.attempts(); attempt++ {
				res, err := runInUnit(ctx, factory, opts, cmd, nextFn)
				if err == nil {
					return res, nil
				}
				if !uow.IsTransient(err) {
					return nil, err
				}
				lastErr = err
				if policy.Logger != nil {
					policy.Logger.Debug("transient commit failure", "command", cmd.Key(), "attempt", attempt, "error", err)
				}
				if attempt == policy.attempts() {
					break
				}
				if err := sleep(ctx, policy.delay(attempt)); err != nil {
					return nil, err
				}
			}
			return nil, fault.Conflict("", fmt.Errorf("%w (%v)", ErrRetriesExhausted, lastErr))
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, cmd commands.Command, nextFn commandFunc) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := uow.Attach(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := nextFn(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
