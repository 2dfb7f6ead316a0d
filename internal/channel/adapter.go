// Package channel delivers finished assistant replies back to the surface
// the inbound message arrived on.
package channel

import (
	"context"
	"errors"

	"aimessage/internal/models"
)

// ErrNotImplemented marks channels that accept messages but have no
// outbound delivery path yet.
var ErrNotImplemented = errors.New("channel: delivery not implemented")

// Adapter sends one reply over a concrete delivery surface. Delivery failure
// never unwinds persistence: the reply row is already stored when Send runs.
type Adapter interface {
	Send(ctx context.Context, dispatch models.DispatchContext, body string) error
}

// Resolver maps a channel to its adapter.
type Resolver struct {
	adapters map[models.Channel]Adapter
}

func NewResolver() *Resolver {
	return &Resolver{adapters: make(map[models.Channel]Adapter)}
}

// Register binds an adapter to a channel, replacing any previous binding.
func (r *Resolver) Register(ch models.Channel, adapter Adapter) {
	r.adapters[ch] = adapter
}

// Resolve returns the adapter for the channel, or nil when none is bound.
func (r *Resolver) Resolve(ch models.Channel) Adapter {
	return r.adapters[ch]
}
