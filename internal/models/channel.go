package models

// Channel identifies the transport an inbound message arrived on and through
// which its reply must be delivered.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelSync    Channel = "sync"
	ChannelWeb     Channel = "web"
)

// DispatchContext travels with one inbound message through the pipeline and
// is discarded after dispatch. Never persisted.
type DispatchContext struct {
	UserID         int64
	ConversationID string
	Channel        Channel
	OriginalFrom   string
	IsWhatsApp     bool
}
