package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/domain/entities/backup"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/blob"
	"github.com/iota-uz/classbook/pkg/itf"
)

func seededBackups(t *testing.T, store blob.Store) (*BackupService, *auditlog.Memory, string) {
	t.Helper()
	repo := itf.NewSQLiteStore(t)
	_, err := NewExecutor(repo, itf.Owner(), nil, nil).Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	audit := &auditlog.Memory{}
	svc := NewBackupService(repo, store, testPrefix, audit, nil)
	id, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)
	return svc, audit, id
}

func TestBackupService_CreateAndLoad(t *testing.T) {
	svc, audit, id := seededBackups(t, blob.NewMemory())

	artifact, err := svc.LoadBackup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, artifact.ID)
	assert.Equal(t, backup.ChecksumFormat, artifact.ChecksumFormat)
	assert.Equal(t, backup.Checksum(artifact.Payload), artifact.Checksum)

	snap, err := svc.LoadSnapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, snap.Students, 3)
	assert.Len(t, snap.Users, 1)
	assert.Len(t, snap.AttendanceRecords[0].Entries, 2)

	require.Len(t, audit.Lines(), 1)
	assert.Contains(t, audit.Lines()[0], "backup created id="+id)
}

func TestBackupService_PayloadIsCompactSnapshot(t *testing.T) {
	svc, _, id := seededBackups(t, blob.NewMemory())

	artifact, err := svc.LoadBackup(context.Background(), id)
	require.NoError(t, err)
	snap, err := svc.repo.Snapshot(context.Background())
	require.NoError(t, err)
	want, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(artifact.Payload))
}

func TestBackupService_TamperedPayloadIsRejected(t *testing.T) {
	store := blob.NewMemory()
	svc, _, id := seededBackups(t, store)

	// one byte inside the payload, keeping the document valid JSON
	tampered := NewBackupService(svc.repo, tamperingBlobs{
		Store: store,
		from:  []byte("Lovelace"),
		to:    []byte("Lovelacf"),
	}, testPrefix, nil, nil)

	_, err := tampered.LoadBackup(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backup.ErrChecksumMismatch))

	_, err = tampered.VerifyBackup(context.Background(), id)
	assert.True(t, errors.Is(err, backup.ErrChecksumMismatch))

	_, err = svc.LoadBackup(context.Background(), id)
	require.NoError(t, err)
}

func TestBackupService_NotFound(t *testing.T) {
	svc, _, _ := seededBackups(t, blob.NewMemory())

	_, err := svc.LoadBackup(context.Background(), "20000101T000000.000000000Z-deadbeef")
	assert.True(t, errors.Is(err, backup.ErrNotFound))

	_, err = svc.LoadBackup(context.Background(), "")
	assert.True(t, errors.Is(err, backup.ErrNotFound))
}

func TestBackupService_ListNewestFirst(t *testing.T) {
	svc, _, first := seededBackups(t, blob.NewMemory())
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, err := svc.CreateBackup(context.Background())
	require.NoError(t, err)

	list, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, first, list[1].ID)
	assert.NotEmpty(t, list[0].Checksum)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestBackupService_VerifyOnFilesystem(t *testing.T) {
	fs, err := blob.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	svc, _, id := seededBackups(t, fs)

	info, err := svc.VerifyBackup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Positive(t, info.Size)
}

func TestBackupService_StoreUnavailable(t *testing.T) {
	repo := itf.NewSQLiteStore(t)
	svc := NewBackupService(repo, failingBlobs{Store: blob.NewMemory()}, testPrefix, nil, nil)

	_, err := svc.CreateBackup(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackupFailed))
}
