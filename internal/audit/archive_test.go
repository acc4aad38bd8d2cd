package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finstream/finstream/pkg/models"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func TestArchiveAppend(t *testing.T) {
	archive := openTestArchive(t)

	err := archive.Append(models.AuditEvent{
		EventID:   "evt-1",
		EventType: models.EventPaymentProcessed,
		Service:   "payments-service",
		UserID:    "user-1",
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"amount": float64(50)},
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, archive.db.Model(&Record{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestArchiveAppendIgnoresDuplicateEventID(t *testing.T) {
	archive := openTestArchive(t)

	e := models.AuditEvent{
		EventID:   "evt-1",
		EventType: models.EventPaymentProcessed,
		Service:   "payments-service",
		Timestamp: time.Now(),
		Data:      map[string]interface{}{},
	}
	require.NoError(t, archive.Append(e))
	require.NoError(t, archive.Append(e))

	var count int64
	require.NoError(t, archive.db.Model(&Record{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
