package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"groomly/internal/config"
	"groomly/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupWritesSnapshot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.RunTransaction(ctx, func(ctx context.Context, txn *Txn) error {
		txn.CreateAppointment(testAppointment("downtown", "a1", 600, 60))
		return nil
	}))

	backupDir := t.TempDir()
	logger := zerolog.Nop()
	svc := NewBackupService(st.path, config.BackupConfig{
		Enabled:     true,
		StoragePath: backupDir,
	}, &logger)

	require.NoError(t, svc.Backup())

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// The snapshot must be a usable database with the data intact.
	restored, err := NewStore(filepath.Join(backupDir, entries[0].Name()), TxnOptions{}, &logger)
	require.NoError(t, err)
	defer restored.Close()

	got, err := restored.GetAppointment(ctx, "downtown", "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestBackupSweepKeepsRecentFiles(t *testing.T) {
	backupDir := t.TempDir()
	oldFile := filepath.Join(backupDir, "store_old.db")
	newFile := filepath.Join(backupDir, "store_new.db")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o644))

	stale := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, stale, stale))

	logger := zerolog.Nop()
	svc := NewBackupService("unused.db", config.BackupConfig{
		Enabled:       true,
		RetentionDays: 7,
		StoragePath:   backupDir,
	}, &logger)
	svc.sweep()

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err), "stale backup should be removed")
	_, err = os.Stat(newFile)
	assert.NoError(t, err, "recent backup should survive")
}
