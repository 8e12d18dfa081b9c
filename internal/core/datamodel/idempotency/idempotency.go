package idempotency

import "time"

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is unique per (actor, scope, key). ActorID zero means anonymous.
// A record transitions in_progress -> completed|failed exactly once; failed
// is terminal and clients must pick a new key to retry the operation.
type Record struct {
	ID           int64     `gorm:"primaryKey"`
	ActorID      int64     `gorm:"column:actor_id;not null;default:0;uniqueIndex:idx_actor_scope_key"`
	Scope        string    `gorm:"column:scope;not null;uniqueIndex:idx_actor_scope_key"`
	Key          string    `gorm:"column:idempotency_key;not null;uniqueIndex:idx_actor_scope_key"`
	RequestHash  string    `gorm:"column:request_hash;not null"`
	Status       Status    `gorm:"column:status;not null;default:'in_progress'"`
	ResponseCode int       `gorm:"column:response_code"`
	ResponseBody string    `gorm:"column:response_body"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (Record) TableName() string {
	return "idempotency_records"
}

// Snapshot is the replayable response payload persisted on completion. The
// three fields are the full replay contract: JSON endpoints use Data, flows
// that end in a redirect use RedirectTo plus a flash Message.
type Snapshot struct {
	Message    string `json:"message,omitempty"`
	Data       string `json:"data,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}
