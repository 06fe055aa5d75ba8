package bounty

import "time"

// registryRow stores the encoded registry singleton.
type registryRow struct {
	Address []byte `gorm:"primaryKey"`
	Record  []byte `gorm:"not null"`
}

func (registryRow) TableName() string { return "bounty_registry" }

// recordRow stores an encoded bounty plus the columns list queries filter on.
type recordRow struct {
	Address   []byte `gorm:"primaryKey"`
	BountyID  int64  `gorm:"uniqueIndex;not null"`
	Sponsor   []byte `gorm:"index;not null"`
	Worker    []byte `gorm:"index;not null"`
	Status    int16  `gorm:"index;not null"`
	TaskHash  []byte `gorm:"index;not null"`
	Record    []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (recordRow) TableName() string { return "bounty_records" }

type accountRow struct {
	Address []byte `gorm:"primaryKey"`
	Balance int64  `gorm:"not null;default:0"`
	IsVault bool   `gorm:"not null;default:false"`
}

func (accountRow) TableName() string { return "bounty_accounts" }

type eventRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	BountyID  int64  `gorm:"index;not null"`
	Kind      string `gorm:"not null"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (eventRow) TableName() string { return "bounty_events" }
