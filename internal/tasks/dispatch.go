package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/plwatch/internal/services"
	"github.com/desertthunder/plwatch/internal/shared"
	"golang.org/x/time/rate"
)

// Dispatcher paces notifications through a [services.Messenger].
type Dispatcher struct {
	messenger services.Messenger
	limiter   *rate.Limiter
}

// NewDispatcher creates a dispatcher sending at most perSecond messages per second.
// A non-positive rate disables pacing.
func NewDispatcher(m services.Messenger, perSecond float64) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{messenger: m, limiter: rate.NewLimiter(limit, 1)}
}

// Dispatch sends one notification and returns the provider's message id.
//
// Every failure wraps [shared.ErrNotificationDelivery]; the caller decides whether to continue.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (string, error) {
	if d == nil || d.messenger == nil {
		return "", fmt.Errorf("%w: no messenger configured", shared.ErrNotificationDelivery)
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrNotificationDelivery, err)
	}

	id, err := d.messenger.Send(ctx, n.Recipient, n.Body)
	if err != nil {
		if errors.Is(err, shared.ErrNotificationDelivery) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", shared.ErrNotificationDelivery, err)
	}
	return id, nil
}
