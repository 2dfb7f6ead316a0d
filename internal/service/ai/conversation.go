package ai

import (
	"sync"

	"aimessage/internal/models"
)

// ConversationStore keeps one bounded context window per user id. Histories
// live in process memory only and are lost on restart; the message table
// remains the durable record.
//
// A store-level mutex guards the user map; each history carries its own
// mutex, so operations for distinct users proceed in parallel while
// operations for the same user are serialized.
type ConversationStore struct {
	mu         sync.RWMutex
	maxHistory int
	histories  map[int64]*userHistory
}

type userHistory struct {
	mu    sync.Mutex
	turns []models.Turn
}

func NewConversationStore(maxHistory int) *ConversationStore {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &ConversationStore{
		maxHistory: maxHistory,
		histories:  make(map[int64]*userHistory),
	}
}

func (s *ConversationStore) history(userID int64) *userHistory {
	s.mu.RLock()
	h, ok := s.histories[userID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.histories[userID]; ok {
		return h
	}
	h = &userHistory{}
	s.histories[userID] = h
	return h
}

// Append adds one turn to the user's history, evicting the oldest turns
// first when the cap would be exceeded.
func (s *ConversationStore) Append(userID int64, turn models.Turn) {
	h := s.history(userID)
	h.mu.Lock()
	h.turns = appendCapped(h.turns, s.maxHistory, turn)
	h.mu.Unlock()
}

// AppendExchange adds an inbound turn and its reply as a single update, so a
// concurrent snapshot never observes the user turn without its reply.
func (s *ConversationStore) AppendExchange(userID int64, userTurn, assistantTurn models.Turn) {
	h := s.history(userID)
	h.mu.Lock()
	h.turns = appendCapped(h.turns, s.maxHistory, userTurn, assistantTurn)
	h.mu.Unlock()
}

// Snapshot returns an independent copy of the user's history. Later store
// mutations do not affect the returned slice.
func (s *ConversationStore) Snapshot(userID int64) []models.Turn {
	h := s.history(userID)
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Clear drops all history for the user. Unknown users are a no-op.
func (s *ConversationStore) Clear(userID int64) {
	s.mu.RLock()
	h, ok := s.histories[userID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}

// Len reports the current history length for the user.
func (s *ConversationStore) Len(userID int64) int {
	s.mu.RLock()
	h, ok := s.histories[userID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func appendCapped(turns []models.Turn, max int, added ...models.Turn) []models.Turn {
	turns = append(turns, added...)
	if len(turns) > max {
		excess := len(turns) - max
		turns = append(turns[:0], turns[excess:]...)
	}
	return turns
}
