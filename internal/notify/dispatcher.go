package notify

import (
	"context"
	"errors"
)

// ErrUnreachable marks a recipient that can never receive messages (blocked
// the bot, deleted the account). Callers treat it as terminal and stop
// retrying; any other delivery error is transient.
var ErrUnreachable = errors.New("recipient unreachable")

// Dispatcher delivers a rendered message to one chat. The core decides when
// to send and what appointment it concerns; how delivery happens lives
// behind this boundary.
type Dispatcher interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// NoopDispatcher swallows every delivery. Used in dev environments without
// bot credentials.
type NoopDispatcher struct{}

func (NoopDispatcher) Deliver(context.Context, int64, string) error {
	return nil
}
