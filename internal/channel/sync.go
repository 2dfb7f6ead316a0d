package channel

import (
	"context"

	"aimessage/internal/models"
)

// SyncAdapter hands the reply to the request goroutine still blocked on the
// originating HTTP call. Built per job because the reply channel belongs to
// that one request.
type SyncAdapter struct {
	replyCh chan<- string
}

func NewSyncAdapter(replyCh chan<- string) *SyncAdapter {
	return &SyncAdapter{replyCh: replyCh}
}

func (s *SyncAdapter) Send(ctx context.Context, _ models.DispatchContext, body string) error {
	select {
	case s.replyCh <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
