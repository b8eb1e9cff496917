package model

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityKind string

const (
	ActivityDiscover   ActivityKind = "discover"
	ActivitySwap       ActivityKind = "swap"
	ActivityCreate     ActivityKind = "create"
	ActivityRemove     ActivityKind = "remove"
	ActivityExhaustion ActivityKind = "exhaustion"
)

// Activity is one journal row. It is audit data only and never read back into keeper state.
type Activity struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TickID     string         `gorm:"column:tick_id;size:36;index" json:"tickId"`
	Kind       ActivityKind   `gorm:"column:kind;size:16" json:"kind"`
	PositionID string         `gorm:"column:position_id;size:78" json:"positionId,omitempty"`
	TxHash     string         `gorm:"column:tx_hash;size:66" json:"txHash,omitempty"`
	Detail     datatypes.JSON `gorm:"column:detail" json:"detail,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
}

func (Activity) TableName() string {
	return "activities"
}
