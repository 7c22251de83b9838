package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/pkg/auditlog"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseClearing  Phase = "CLEARING"
	PhaseSeeding   Phase = "SEEDING"
	PhaseCommitted Phase = "COMMITTED"
	PhaseAborted   Phase = "ABORTED"
)

const DefaultTxTimeout = 30 * time.Minute

// Executor replaces the whole content of the store with a dataset inside one
// transaction: every table is cleared in reverse dependency order, then the
// dataset is seeded in forward order. Any error discards the transaction.
type Executor struct {
	repo      dataset.Repository
	owner     dataset.User
	txTimeout time.Duration
	audit     auditor
	logger    *logrus.Entry

	mu    sync.Mutex
	phase Phase
}

func NewExecutor(repo dataset.Repository, owner dataset.User, sink auditlog.Sink, logger *logrus.Entry) *Executor {
	return &Executor{
		repo:      repo,
		owner:     owner,
		txTimeout: DefaultTxTimeout,
		audit:     newAuditor(sink, logger),
		logger:    logger,
		phase:     PhaseIdle,
	}
}

// WithTxTimeout bounds the transaction; zero or negative keeps the default.
func (e *Executor) WithTxTimeout(d time.Duration) *Executor {
	if d > 0 {
		e.txTimeout = d
	}
	return e
}

// Phase is the state the last Execute call reached.
func (e *Executor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Executor) enter(ctx context.Context, logger *logrus.Entry, p Phase) {
	e.mu.Lock()
	from := e.phase
	e.phase = p
	e.mu.Unlock()
	logger.WithFields(logrus.Fields{"from": from, "phase": p}).Debug("executor phase")
	e.audit.record(ctx, "executor %s -> %s", from, p)
}

// Plan returns the rows Execute would write for ds, per collection.
func (e *Executor) Plan(ds *dataset.Dataset) dataset.Counts {
	return ds.Snapshot(e.owner).Counts()
}

// Execute runs the migration and returns the seeded row counts. Errors wrap
// ErrExecutionFailed and leave the store as it was.
func (e *Executor) Execute(ctx context.Context, ds *dataset.Dataset) (dataset.Counts, error) {
	logger := loggerFor(ctx, e.logger, "executor")
	e.mu.Lock()
	e.phase = PhaseIdle
	e.mu.Unlock()

	if ds == nil {
		ds = &dataset.Dataset{}
	}
	snap := ds.Snapshot(e.owner)
	seeded := dataset.Counts{}

	ctx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	started := time.Now()
	err := e.repo.InTx(ctx, func(ctx context.Context, tx dataset.Tx) error {
		e.enter(ctx, logger, PhaseClearing)
		clearStarted := time.Now()
		cleared, err := clearAll(ctx, tx)
		if err != nil {
			return err
		}
		observePhase("clearing", clearStarted)
		logger.WithField("rows", cleared.Total()).Info("store cleared")

		e.enter(ctx, logger, PhaseSeeding)
		seedStarted := time.Now()
		err = writeSnapshot(ctx, tx, snap, func(c entitygraph.Collection, n int) {
			seeded[c] = n
			logger.WithFields(logrus.Fields{"collection": c, "rows": n}).Debug("collection seeded")
		})
		if err != nil {
			return err
		}
		observePhase("seeding", seedStarted)
		return nil
	})
	if err != nil {
		e.enter(ctx, logger, PhaseAborted)
		logger.WithError(err).Error("migration aborted")
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	e.enter(ctx, logger, PhaseCommitted)
	observePhase("execute", started)
	recordRows(seeded)
	for _, c := range entitygraph.SeedOrder() {
		e.audit.record(ctx, "migrated %s: %d", c, seeded[c])
	}
	logger.WithField("rows", seeded.Total()).Info("migration committed")
	return seeded, nil
}
