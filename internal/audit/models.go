// Package audit keeps an optional PostgreSQL log of operator actions: bulk
// uploads, role changes and relayed reading batches.
package audit

import (
	"time"
)

// Action is the kind of event an Entry records.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionRoleChange Action = "role_change"
	ActionRelayBatch Action = "relay_batch"
)

// Entry is one audited action.
type Entry struct {
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_action_created"`
	Action    Action    `gorm:"type:varchar(32);not null;index:idx_action_created"`
	Actor     string    `gorm:"type:varchar(255)"`
	Kind      string    `gorm:"type:varchar(32)"`
	Target    string    `gorm:"type:varchar(255)"`
	Outcome   string    `gorm:"type:varchar(32);not null"`
	Message   string    `gorm:"type:text"`
	Created   int       `gorm:"not null;default:0"`
	ID        uint      `gorm:"primaryKey"`
	Demo      bool      `gorm:"not null;default:false"`
}

// TableName specifies the table name for Entry.
func (Entry) TableName() string {
	return "audit_entries"
}
