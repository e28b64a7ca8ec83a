package middleware

import (
	"context"
	"errors"

	"habita/internal/app/commands"
	"habita/internal/app/queries"
	"habita/internal/domain/shared/fault"
	"habita/internal/domain/user"
)

var ErrAnonymous = errors.New("an authenticated user is required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorCarrier is implemented by messages that act on behalf of a user.
type ActorCarrier interface {
	ActingUser() user.Actor
}

// RequireActor rejects messages that carry an empty actor. Messages without an actor pass;
// record-level rules are enforced by the handlers once the reservation is loaded.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	carrier, ok := message.(ActorCarrier)
	if !ok {
		return nil
	}
	if err := carrier.ActingUser().Validate(); err != nil {
		return fault.Permission("actor", ErrAnonymous)
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
