package domain

import "time"

type DeltaSavedEvent struct {
	DatabaseIndex int
	Path          string
	MapCount      uint32
	DataSize      uint32
	SavedAt       time.Time
}

type DeltaSaveNotifier interface {
	NotifyDeltaSaved(event DeltaSavedEvent) error
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) NotifyDeltaSaved(DeltaSavedEvent) error {
	return nil
}
