package service

import "context"

// Notifier receives domain notifications. Delivery is fire-and-forget: a
// notification must never fail or block the operation that raised it.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, interface{}) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
