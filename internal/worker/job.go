package worker

import (
	"context"

	"aimessage/internal/models"
)

type JobType int

const (
	Stop JobType = iota
	TaskDispatch
)

// Job is the unit moved between the dispatcher and workers.
type Job struct {
	Type JobType
	Task *DispatchTask

	// set by the dispatcher so the user's next job can be released once
	// this one finishes
	done func()
}

// DispatchTask carries one persisted inbound message through orchestration
// and delivery. ReplyCh is set only for the sync channel, where the
// originating HTTP request is still waiting for the reply text.
type DispatchTask struct {
	Ctx      context.Context
	Msg      *models.Message
	Dispatch models.DispatchContext
	ReplyCh  chan string
}

func (t *DispatchTask) userID() int64 {
	if t == nil || t.Msg == nil {
		return 0
	}
	return t.Msg.SenderID
}
