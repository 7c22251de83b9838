package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/pkg/auditlog"
)

// RollbackService restores the store from a backup artifact.
type RollbackService struct {
	repo    dataset.Repository
	backups *BackupService
	audit   auditor
	logger  *logrus.Entry
}

func NewRollbackService(repo dataset.Repository, backups *BackupService, sink auditlog.Sink, logger *logrus.Entry) *RollbackService {
	return &RollbackService{repo: repo, backups: backups, audit: newAuditor(sink, logger), logger: logger}
}

// Rollback verifies the artifact, then clears every table and re-inserts the
// backed up rows in one transaction. Nothing is written when the artifact is
// missing or its checksum does not hold. Every failure wraps ErrRollbackFailed.
func (s *RollbackService) Rollback(ctx context.Context, backupID string) error {
	started := time.Now()
	logger := loggerFor(ctx, s.logger, "rollback").WithField("backup_id", backupID)

	snap, err := s.backups.LoadSnapshot(ctx, backupID)
	if err != nil {
		return s.fail(ctx, logger, backupID, err)
	}

	err = s.repo.InTx(ctx, func(ctx context.Context, tx dataset.Tx) error {
		if _, err := clearAll(ctx, tx); err != nil {
			return err
		}
		return writeSnapshot(ctx, tx, snap, nil)
	})
	if err != nil {
		return s.fail(ctx, logger, backupID, err)
	}

	recordRollback(true)
	observePhase("rollback", started)
	counts := snap.Counts()
	logger.WithField("rows", counts.Total()).Warn("store restored from backup")
	s.audit.record(ctx, "rollback restored backup %s (%d rows)", backupID, counts.Total())
	return nil
}

func (s *RollbackService) fail(ctx context.Context, logger *logrus.Entry, backupID string, err error) error {
	recordRollback(false)
	logger.WithError(err).Error("rollback failed")
	s.audit.record(ctx, "rollback of backup %s FAILED: %v", backupID, err)
	return fmt.Errorf("%w: backup %s: %w", ErrRollbackFailed, backupID, err)
}
