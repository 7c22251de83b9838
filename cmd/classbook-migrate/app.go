package main

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/infrastructure/persistence"
	"github.com/iota-uz/classbook/modules/migration/services"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/blob"
	"github.com/iota-uz/classbook/pkg/configuration"
	"github.com/iota-uz/classbook/pkg/logging"
	"github.com/iota-uz/classbook/pkg/metrics"
)

// app wires configuration, store, backup storage and services for one
// command invocation.
type app struct {
	conf    *configuration.Configuration
	logger  *logrus.Entry
	store   *persistence.SQLStore
	blobs   blob.Store
	svc     *services.MigrationService
	applied []*goose.MigrationResult
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	conf, err := configuration.Load(opts.envFiles)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
	}
	base := conf.Logger()
	if opts.verbose {
		base = logging.ConsoleLogger(logrus.DebugLevel)
	}
	logger := logrus.NewEntry(base).WithField("app", "classbook-migrate")

	store, err := persistence.Open(ctx, conf.Database)
	if err != nil {
		conf.Unload()
		return nil, withCode(exitDB, err)
	}
	a := &app{conf: conf, logger: logger, store: store}

	if a.applied, err = store.Migrate(ctx); err != nil {
		a.close()
		return nil, withCode(exitDB, err)
	}

	if a.blobs, err = openBlobs(ctx, conf.Backup); err != nil {
		a.close()
		return nil, withCode(exitUsage, err)
	}
	if a.blobs.Driver() == blob.DriverMemory {
		logger.Warn("BACKUP_DRIVER=memory keeps backups only for the lifetime of this process")
	}

	audit := auditlog.Multi(auditlog.NewFile(conf.Migration.AuditLogPath), auditlog.NewLogrus(logger))
	a.svc = services.NewMigrationService(store, a.blobs, services.Options{
		Owner: dataset.User{
			ID:    conf.Owner.ID,
			Name:  conf.Owner.Name,
			Email: conf.Owner.Email,
		},
		BackupPrefix: conf.Backup.Prefix,
		TxTimeout:    conf.Migration.TxTimeout,
		Audit:        audit,
		Logger:       logger,
	})
	return a, nil
}

func openBlobs(ctx context.Context, opts configuration.BackupOptions) (blob.Store, error) {
	switch blob.Driver(opts.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(opts.Root)
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:          opts.S3.Bucket,
			Region:          opts.S3.Region,
			Endpoint:        opts.S3.Endpoint,
			PathStyle:       opts.S3.PathStyle,
			AccessKeyID:     opts.S3.AccessKeyID,
			SecretAccessKey: opts.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unsupported backup driver %q", opts.Driver)
	}
}

// close flushes metrics and releases the store and log file.
func (a *app) close() {
	if err := metrics.WriteTextfile(a.conf.Migration.MetricsTextfile, nil); err != nil {
		a.logger.WithError(err).Warn("write metrics textfile")
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("close store")
	}
	a.conf.Unload()
}
