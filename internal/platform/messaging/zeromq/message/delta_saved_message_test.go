package message

import (
	"testing"
	"time"

	"ACDB/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaSavedMessageFrom(t *testing.T) {
	savedAt := time.UnixMilli(1700000000123)
	event := domain.DeltaSavedEvent{
		DatabaseIndex: 2,
		Path:          "/data/persist/a.acdbdelta",
		MapCount:      3,
		DataSize:      120,
		SavedAt:       savedAt,
	}

	msg := DeltaSavedMessageFrom(event, 7)

	_, err := uuid.Parse(msg.Id)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), msg.VmID)
	assert.Equal(t, int64(1700000000123), msg.Timestamp)
	assert.Equal(t, event, msg.ToEvent())
	assert.NotEqual(t, msg.Id, DeltaSavedMessageFrom(event, 7).Id)
}
