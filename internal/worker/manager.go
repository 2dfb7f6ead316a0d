package worker

import (
	"context"
	"log"

	"aimessage/internal/channel"
	"aimessage/internal/models"
)

// Replier produces the assistant reply for one inbound message. It never
// fails; degraded paths return fallback text.
type Replier interface {
	Process(ctx context.Context, userID int64, text string) string
}

// ReplyStore persists outbound replies.
type ReplyStore interface {
	SaveReply(ctx context.Context, botID, userID int64, conversationID string, ch models.Channel, content string) (*models.Message, error)
}

// Manager executes dispatch tasks on worker goroutines: orchestrate the
// reply, persist it, then deliver it over the originating channel.
type Manager struct {
	replier   Replier
	messages  ReplyStore
	resolver  *channel.Resolver
	guard     *Guard
	botUserID int64
}

func NewManager(replier Replier, messages ReplyStore, resolver *channel.Resolver, guard *Guard, botUserID int64) *Manager {
	return &Manager{
		replier:   replier,
		messages:  messages,
		resolver:  resolver,
		guard:     guard,
		botUserID: botUserID,
	}
}

func (m *Manager) handleDispatch(task *DispatchTask) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	userID := task.Msg.SenderID

	reply := m.replier.Process(ctx, userID, task.Msg.Content)

	// The reply row is written before delivery so the conversation record
	// stays complete even when the provider rejects the send.
	saved, err := m.messages.SaveReply(ctx, m.botUserID, userID, task.Msg.ConversationID, task.Dispatch.Channel, reply)
	if err != nil {
		log.Printf("[manager] save reply for user %d failed: %v", userID, err)
	} else {
		debugLog("[manager] reply %d saved for user %d on %s", saved.ID, userID, task.Dispatch.Channel)
	}

	var adapter channel.Adapter
	if task.Dispatch.Channel == models.ChannelSync {
		adapter = channel.NewSyncAdapter(task.ReplyCh)
	} else {
		adapter = m.resolver.Resolve(task.Dispatch.Channel)
	}
	if adapter == nil {
		log.Printf("[manager] no adapter for channel %s, user %d", task.Dispatch.Channel, userID)
		m.guard.RecordDeliveryFailure(ctx, userID, task.Dispatch.Channel, channel.ErrNotImplemented.Error())
		return
	}

	if err := adapter.Send(ctx, task.Dispatch, reply); err != nil {
		log.Printf("[manager] deliver to user %d over %s failed: %v", userID, task.Dispatch.Channel, err)
		m.guard.RecordDeliveryFailure(ctx, userID, task.Dispatch.Channel, err.Error())
	}
}
