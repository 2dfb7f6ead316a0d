package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"aimessage/internal/models"
	"aimessage/internal/redis"
)

const (
	dedupeTTL        = 24 * time.Hour
	deliveryAuditTTL = 7 * 24 * time.Hour
)

// Guard keeps cross-instance pipeline state in redis: webhook dedupe keys
// and delivery failure audit records. A nil client degrades to no-ops so the
// pipeline keeps working without redis.
type Guard struct {
	rdb *redis.Client
}

func NewGuard(rdb *redis.Client) *Guard {
	return &Guard{rdb: rdb}
}

// Seen reports whether this provider message id was already accepted.
// The first caller claims the key; retries of the same webhook see true.
func (g *Guard) Seen(ctx context.Context, messageSID string) bool {
	if g == nil || g.rdb == nil || messageSID == "" {
		return false
	}
	claimed, err := g.rdb.SetNX(ctx, "dedupe:sms:"+messageSID, time.Now().Unix(), dedupeTTL)
	if err != nil {
		// fail open: better a rare duplicate reply than a dropped message
		log.Printf("[guard] dedupe check for %s failed: %v", messageSID, err)
		return false
	}
	return !claimed
}

// RecordDeliveryFailure leaves an audit record for operators.
func (g *Guard) RecordDeliveryFailure(ctx context.Context, userID int64, ch models.Channel, reason string) {
	if g == nil || g.rdb == nil {
		return
	}
	key := fmt.Sprintf("delivery:failed:%d:%d", userID, time.Now().UnixNano())
	value := fmt.Sprintf("channel=%s reason=%s", ch, reason)
	if err := g.rdb.Set(ctx, key, value, deliveryAuditTTL); err != nil {
		log.Printf("[guard] record delivery failure for user %d: %v", userID, err)
	}
}
