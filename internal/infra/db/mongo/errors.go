package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"habita/internal/app/uow"
)

// ErrConcurrentUpdate reports a version filter that matched nothing. It is transient:
// the transaction middleware re-runs the command against fresh state.
var ErrConcurrentUpdate = fmt.Errorf("%w: mongo concurrent update detected", uow.ErrTransient)

const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// classify tags write conflicts and duplicate keys as transient, leaving other errors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, uow.ErrTransient) {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorLabel(labelTransientTransaction) || serverErr.HasErrorLabel(labelUnknownCommitResult) {
			return fmt.Errorf("%w: %v", uow.ErrTransient, err)
		}
	}
	return err
}

// isNamespaceExists matches the NamespaceExists server error returned for existing collections.
func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == 48
}
