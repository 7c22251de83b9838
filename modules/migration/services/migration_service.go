package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/blob"
	"github.com/iota-uz/classbook/pkg/composables"
	"github.com/iota-uz/classbook/pkg/logging"
)

// MigrationResult is the outcome of one Migrate call.
type MigrationResult struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	Errors           []string         `json:"errors,omitempty"`
	Counts           dataset.Counts   `json:"counts,omitempty"`
	BackupID         string           `json:"backup_id,omitempty"`
	Phase            Phase            `json:"phase"`
	RolledBack       bool             `json:"rolled_back"`
	ValidationErrors ValidationErrors `json:"validation_errors,omitempty"`
	DurationMS       int64            `json:"duration_ms"`
}

type Options struct {
	Owner        dataset.User
	BackupPrefix string
	TxTimeout    time.Duration
	Audit        auditlog.Sink
	Logger       *logrus.Entry
}

// MigrationService runs the whole pipeline: validate, back up, execute,
// verify, and roll back when anything after the backup fails.
type MigrationService struct {
	validator *Validator
	backups   *BackupService
	executor  *Executor
	verifier  *Verifier
	rollbacks *RollbackService
	audit     auditor
	logger    *logrus.Entry
}

func NewMigrationService(repo dataset.Repository, store blob.Store, opts Options) *MigrationService {
	logger := logging.OrNop(opts.Logger)
	sink := opts.Audit
	if sink == nil {
		sink = auditlog.Nop()
	}
	backups := NewBackupService(repo, store, opts.BackupPrefix, sink, logger)
	return &MigrationService{
		validator: NewValidator(),
		backups:   backups,
		executor:  NewExecutor(repo, opts.Owner, sink, logger).WithTxTimeout(opts.TxTimeout),
		verifier:  NewVerifier(repo, sink, logger),
		rollbacks: NewRollbackService(repo, backups, sink, logger),
		audit:     newAuditor(sink, logger),
		logger:    logger,
	}
}

func (s *MigrationService) Validator() *Validator       { return s.validator }
func (s *MigrationService) Backups() *BackupService     { return s.backups }
func (s *MigrationService) Executor() *Executor         { return s.executor }
func (s *MigrationService) Verifier() *Verifier         { return s.verifier }
func (s *MigrationService) Rollbacks() *RollbackService { return s.rollbacks }

// Migrate replaces the store content with ds. Every failure is reported in
// the result; the returned error is non-nil only when the store could not be
// restored after a failure, and then wraps ErrRollbackFailed.
func (s *MigrationService) Migrate(ctx context.Context, ds *dataset.Dataset) (*MigrationResult, error) {
	started := time.Now()
	if _, ok := composables.UseRunID(ctx); !ok {
		ctx = composables.WithRunID(ctx, uuid.New())
	}
	logger := loggerFor(ctx, s.logger, "migration")
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	result := &MigrationResult{Phase: PhaseIdle}
	finish := func(o outcome) *MigrationResult {
		recordRun(o)
		result.DurationMS = time.Since(started).Milliseconds()
		return result
	}

	logger.WithField("label", ds.Label).Info("migration started")
	s.audit.record(ctx, "migration started label=%q", ds.Label)

	if errs := s.validator.Validate(ds); len(errs) > 0 {
		result.Message = "dataset validation failed"
		result.Errors = errs.Strings()
		result.ValidationErrors = errs
		logger.WithField("errors", len(errs)).Warn("dataset rejected")
		s.audit.record(ctx, "validation failed with %d errors", len(errs))
		return finish(outcomeValidationFailed), nil
	}

	backupID, err := s.backups.CreateBackup(ctx)
	if err != nil {
		result.Message = "backup failed, store left untouched"
		result.Errors = []string{err.Error()}
		logger.WithError(err).Error("backup failed")
		s.audit.record(ctx, "backup failed: %v", err)
		return finish(outcomeBackupFailed), nil
	}
	result.BackupID = backupID
	logger = logger.WithField("backup_id", backupID)

	counts, err := s.executor.Execute(ctx, ds)
	result.Phase = s.executor.Phase()
	if err != nil {
		result.Message = "migration failed and was rolled back"
		result.Errors = []string{err.Error()}
		return s.rollback(ctx, logger, result, outcomeExecutionFailed, finish)
	}

	report, err := s.verifier.Verify(ctx, counts)
	if err != nil {
		result.Message = "verification failed and the migration was rolled back"
		if report != nil {
			result.Errors = append(result.Errors, report.Failures...)
		} else {
			result.Errors = []string{err.Error()}
		}
		return s.rollback(ctx, logger, result, outcomeVerificationFailed, finish)
	}

	result.Success = true
	result.Message = "migration completed"
	result.Counts = counts
	logger.WithField("rows", counts.Total()).Info("migration completed")
	s.audit.record(ctx, "migration completed rows=%d", counts.Total())
	return finish(outcomeSuccess), nil
}

// rollback restores the backup after a failed attempt. It ignores ctx
// cancellation so an interrupted run still gets restored.
func (s *MigrationService) rollback(ctx context.Context, logger *logrus.Entry, result *MigrationResult, o outcome, finish func(outcome) *MigrationResult) (*MigrationResult, error) {
	logger.WithField("errors", result.Errors).Warn("rolling back")
	if err := s.rollbacks.Rollback(context.WithoutCancel(ctx), result.BackupID); err != nil {
		result.Message = "migration failed and rollback failed; store needs manual recovery"
		result.Errors = append(result.Errors, err.Error())
		return finish(outcomeRollbackFailed), err
	}
	result.RolledBack = true
	return finish(o), nil
}
