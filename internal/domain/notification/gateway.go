package notification

import "context"

// Gateway delivers a text message to an address on one channel.
// Callers treat it as unreliable and wrap it with retries.
type Gateway interface {
	Channel() Channel
	Deliver(ctx context.Context, address, text string) error
}
