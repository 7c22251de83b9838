package services

import "github.com/go-faster/errors"

var (
	ErrValidation         = errors.New("dataset validation failed")
	ErrBackupFailed       = errors.New("backup failed")
	ErrExecutionFailed    = errors.New("migration execution failed")
	ErrVerificationFailed = errors.New("post-migration verification failed")
	// ErrRollbackFailed is terminal: the store may be left partially
	// restored and needs an operator.
	ErrRollbackFailed = errors.New("rollback failed")
)
