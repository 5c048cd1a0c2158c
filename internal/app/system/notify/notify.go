// Package notify defines the port the message use cases push real-time
// events through. Implementations must return promptly: delivery is
// fire-and-forget and a missing recipient is not an error.
package notify

import "context"

// EventReceiveMessage is emitted to the receiver when a message is persisted.
const EventReceiveMessage = "receive_message"

// Notifier delivers event with payload to whatever live connections are
// registered under routingKey.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any, routingKey string)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, event string, payload any, routingKey string)

// Notify calls f.
func (f Func) Notify(ctx context.Context, event string, payload any, routingKey string) {
	f(ctx, event, payload, routingKey)
}

// Nop discards every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, string, any, string) {}

// Multi fans one event out to several notifiers in order.
type Multi []Notifier

// Notify forwards to every notifier.
func (m Multi) Notify(ctx context.Context, event string, payload any, routingKey string) {
	for _, n := range m {
		n.Notify(ctx, event, payload, routingKey)
	}
}
