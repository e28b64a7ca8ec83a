package middleware

import (
	"context"
	"log/slog"

	"habita/internal/app/commands"
	"habita/internal/app/outbox"
)

// OutboxFlush relays committed events once the command has succeeded. It must wrap the
// Transaction middleware so that nothing is relayed before commit. A failed flush is only
// logged: the write already happened and the relay picks the records up later.
func OutboxFlush(box outbox.Flusher, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
