package activity

import (
	"time"

	"github.com/google/uuid"
)

// Action names a mutating operation performed through the bridge.
type Action string

const (
	ActionFollow   Action = "follow"
	ActionUnfollow Action = "unfollow"
	ActionLike     Action = "like"
	ActionComment  Action = "comment"
)

// Event is one successful mutation performed on behalf of an account.
type Event struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"account_id" db:"account_id"`
	Action     Action    `json:"action" db:"action"`
	TargetID   string    `json:"target_id" db:"target_id"`
	Text       string    `json:"text,omitempty" db:"text"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// NewEvent stamps a new event with a fresh id and the current time.
func NewEvent(accountID string, action Action, targetID, text string) Event {
	return Event{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		Action:     action,
		TargetID:   targetID,
		Text:       text,
		OccurredAt: time.Now().UTC(),
	}
}
