package push

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Notifier fans a message out to every device of a user.
type Notifier struct {
	store  *Store
	sender Sender
	log    *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(store *Store, sender Sender, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{store: store, sender: sender, log: log.Named("push")}
}

// Notify sends msg to all of userID's devices and returns how many
// accepted it. Unregistered tokens are pruned and do not count as
// failures. The first other send error is returned after every device
// has been tried.
func (n *Notifier) Notify(ctx context.Context, userID string, msg Message) (int, error) {
	tokens, err := n.store.TokensForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var (
		sent     int
		firstErr error
	)
	for _, token := range tokens {
		err := n.sender.Send(ctx, token, msg)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrUnregistered):
			n.log.Info("pruning unregistered device", zap.String("user_id", userID))
			if rmErr := n.store.Remove(ctx, token); rmErr != nil {
				n.log.Warn("pruning device failed", zap.Error(rmErr))
			}
		default:
			if firstErr == nil {
				firstErr = fmt.Errorf("notifying user %s: %w", userID, err)
			}
		}
	}
	return sent, firstErr
}
