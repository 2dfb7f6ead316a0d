package channel

import (
	"context"

	"aimessage/internal/models"
)

// WebAdapter covers the web channel, where clients poll the conversation
// endpoint for new rows instead of receiving a push. Delivery is therefore
// complete once the reply is persisted.
type WebAdapter struct{}

func NewWebAdapter() *WebAdapter {
	return &WebAdapter{}
}

func (w *WebAdapter) Send(ctx context.Context, _ models.DispatchContext, _ string) error {
	return nil
}
