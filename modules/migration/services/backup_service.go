package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entities/backup"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/blob"
)

const backupIDLayout = "20060102T150405.000000000Z"

// BackupInfo describes a stored artifact without loading its payload.
type BackupInfo struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Size      int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService snapshots the whole store into write-once checksummed
// artifacts and reads them back.
type BackupService struct {
	repo   dataset.Repository
	store  blob.Store
	prefix string
	audit  auditor
	logger *logrus.Entry
	now    func() time.Time
}

func NewBackupService(repo dataset.Repository, store blob.Store, prefix string, sink auditlog.Sink, logger *logrus.Entry) *BackupService {
	return &BackupService{
		repo:   repo,
		store:  store,
		prefix: prefix,
		audit:  newAuditor(sink, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *BackupService) key(id string) string {
	return s.prefix + id + ".json"
}

func (s *BackupService) idFromKey(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), ".json")
}

// CreateBackup reads every table, stores the artifact and returns its id.
// Failures wrap ErrBackupFailed.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	started := time.Now()
	logger := loggerFor(ctx, s.logger, "backup")

	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		recordBackup("failed")
		return "", fmt.Errorf("%w: read store: %w", ErrBackupFailed, err)
	}
	payload, err := backup.Marshal(snap)
	if err != nil {
		recordBackup("failed")
		return "", fmt.Errorf("%w: encode snapshot: %w", ErrBackupFailed, err)
	}

	at := s.now().UTC()
	id := at.Format(backupIDLayout) + "-" + uuid.NewString()[:8]
	artifact := backup.New(id, at, payload)
	raw, err := artifact.Encode()
	if err != nil {
		recordBackup("failed")
		return "", fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	info, err := s.store.Put(ctx, s.key(id), bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"checksum":        artifact.Checksum,
			"checksum-format": artifact.ChecksumFormat,
		},
	})
	if err != nil {
		recordBackup("failed")
		return "", fmt.Errorf("%w: store artifact: %w", ErrBackupFailed, err)
	}

	recordBackup("created")
	observePhase("backup", started)
	counts := snap.Counts()
	logger.WithFields(logrus.Fields{
		"backup_id": id,
		"key":       info.Key,
		"rows":      counts.Total(),
		"checksum":  artifact.Checksum,
	}).Info("backup created")
	s.audit.record(ctx, "backup created id=%s rows=%d checksum=%s", id, counts.Total(), artifact.Checksum)
	return id, nil
}

// LoadBackup fetches an artifact and verifies its checksum before returning
// it. A missing artifact is backup.ErrNotFound and a modified one
// backup.ErrChecksumMismatch.
func (s *BackupService) LoadBackup(ctx context.Context, id string) (*backup.Artifact, error) {
	if id == "" {
		return nil, errors.Wrap(backup.ErrNotFound, "empty backup id")
	}
	_, body, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, errors.Wrapf(backup.ErrNotFound, "backup %s", id)
		}
		return nil, errors.Wrapf(err, "get backup %s", id)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(err, "read backup %s", id)
	}
	artifact, err := backup.Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "backup %s", id)
	}
	if artifact.ID != id {
		return nil, errors.Wrapf(backup.ErrMalformed, "artifact under %s claims id %s", id, artifact.ID)
	}
	if err := artifact.Verify(); err != nil {
		recordBackup("checksum_mismatch")
		return nil, err
	}
	return artifact, nil
}

// LoadSnapshot loads and verifies an artifact and decodes its payload.
func (s *BackupService) LoadSnapshot(ctx context.Context, id string) (*dataset.Snapshot, error) {
	artifact, err := s.LoadBackup(ctx, id)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(artifact.Payload))
	dec.DisallowUnknownFields()
	var snap dataset.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, errors.Wrapf(backup.ErrMalformed, "decode payload of %s: %v", id, err)
	}
	return &snap, nil
}

// VerifyBackup checks that an artifact exists and its checksum holds.
func (s *BackupService) VerifyBackup(ctx context.Context, id string) (BackupInfo, error) {
	artifact, err := s.LoadBackup(ctx, id)
	if err != nil {
		return BackupInfo{}, err
	}
	info, err := s.store.Head(ctx, s.key(id))
	if err != nil {
		return BackupInfo{}, errors.Wrapf(err, "head backup %s", id)
	}
	return BackupInfo{
		ID:        artifact.ID,
		Key:       info.Key,
		Size:      info.Size,
		Checksum:  artifact.Checksum,
		CreatedAt: artifact.Timestamp,
	}, nil
}

// ListBackups returns stored artifacts, newest first.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	infos, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, errors.Wrap(err, "list backups")
	}
	out := make([]BackupInfo, 0, len(infos))
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		id := s.idFromKey(info.Key)
		createdAt := info.LastModified
		if ts, _, ok := strings.Cut(id, "-"); ok {
			if parsed, err := time.Parse(backupIDLayout, ts); err == nil {
				createdAt = parsed
			}
		}
		out = append(out, BackupInfo{
			ID:        id,
			Key:       info.Key,
			Size:      info.Size,
			Checksum:  info.Metadata["checksum"],
			CreatedAt: createdAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
