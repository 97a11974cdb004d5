package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ResolutionStrategy string

const (
	StrategyLastWriteWins ResolutionStrategy = "last_write_wins"
	StrategyMerge         ResolutionStrategy = "merge"
	StrategyManual        ResolutionStrategy = "manual"
)

func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyLastWriteWins, StrategyMerge, StrategyManual:
		return true
	}
	return false
}

type ChangeSource string

const (
	SourceUser   ChangeSource = "user"
	SourceSystem ChangeSource = "system"
	SourceMerge  ChangeSource = "merge"
)

// StateEntry is the versioned value of one shared state key. Version starts
// at 1 and increases by exactly 1 per accepted write.
type StateEntry struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	Key            string
	Value          json.RawMessage
	Version        int64
	StateHash      string
	LastModifiedBy uuid.UUID
	LastModifiedAt time.Time
	Strategy       ResolutionStrategy
	ChangeSource   ChangeSource
	PreviousValue  json.RawMessage
	Blocked        bool // set while a manual conflict on this key is pending
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
