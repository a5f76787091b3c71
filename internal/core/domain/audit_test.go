package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditLog(t *testing.T) {
	entry, err := NewAuditLog(ActorCLI, ActionIngest, "feed.json", "stored=2", "")
	require.NoError(t, err)
	assert.Equal(t, ActionIngest, entry.Action)
	assert.False(t, entry.Timestamp.IsZero())

	_, err = NewAuditLog("", ActionIngest, "", "", "")
	assert.ErrorIs(t, err, ErrMissingActor)

	_, err = NewAuditLog(ActorCLI, AuditAction("DROP_TABLES"), "", "", "")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
