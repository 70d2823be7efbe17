package message

import (
	"time"

	"ACDB/internal/domain"

	"github.com/google/uuid"
)

type DeltaSavedMessage struct {
	Id            string `json:"id"`
	DatabaseIndex int    `json:"database_index"`
	Path          string `json:"path"`
	MapCount      uint32 `json:"map_count"`
	DataSize      uint32 `json:"data_size"`
	Timestamp     int64  `json:"timestamp"`
	VmID          uint32 `json:"vm_id,omitempty"`
}

func DeltaSavedMessageFrom(event domain.DeltaSavedEvent, vmID uint32) DeltaSavedMessage {
	return DeltaSavedMessage{
		Id:            uuid.NewString(),
		DatabaseIndex: event.DatabaseIndex,
		Path:          event.Path,
		MapCount:      event.MapCount,
		DataSize:      event.DataSize,
		Timestamp:     event.SavedAt.UnixMilli(),
		VmID:          vmID,
	}
}

func (m *DeltaSavedMessage) ToEvent() domain.DeltaSavedEvent {
	return domain.DeltaSavedEvent{
		DatabaseIndex: m.DatabaseIndex,
		Path:          m.Path,
		MapCount:      m.MapCount,
		DataSize:      m.DataSize,
		SavedAt:       time.UnixMilli(m.Timestamp),
	}
}
