package model

import (
	"time"

	"gorm.io/datatypes"
)

// History actions
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionImported = "imported"
)

// FieldChange records the old and new value of a single field. From is
// omitted for created/imported entries, which snapshot the initial values.
type FieldChange struct {
	From interface{} `json:"from,omitempty"`
	To   interface{} `json:"to"`
}

// ChangeSet maps a buyer field name to its change. Keys come from the fixed
// field list in the lead package, never from caller input.
type ChangeSet map[string]FieldChange

// BuyerDiff is the payload persisted with each history entry
type BuyerDiff struct {
	Action  string    `json:"action"`
	Changes ChangeSet `json:"changes"`
}

// BuyerHistory is an append-only audit entry for a buyer mutation. There is
// deliberately no foreign key constraint to buyers: history survives a hard
// delete of the record it describes.
type BuyerHistory struct {
	ID        uint                           `json:"id" gorm:"primaryKey"`
	BuyerID   string                         `json:"buyerId" gorm:"type:uuid;not null;index"`
	ChangedBy string                         `json:"changedBy" gorm:"type:uuid;not null"`
	User      *User                          `json:"user,omitempty" gorm:"foreignKey:ChangedBy"`
	Diff      datatypes.JSONType[BuyerDiff]  `json:"diff" gorm:"type:jsonb"`
	ChangedAt time.Time                      `json:"changedAt" gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for BuyerHistory
func (BuyerHistory) TableName() string {
	return "buyer_history"
}
