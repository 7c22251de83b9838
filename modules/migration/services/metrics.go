package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
)

var (
	migrationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classbook",
		Subsystem: "migration",
		Name:      "runs_total",
		Help:      "Total number of migration runs broken down by outcome.",
	}, []string{"outcome"})

	migrationPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "classbook",
		Subsystem: "migration",
		Name:      "phase_duration_seconds",
		Help:      "Duration of each migration phase.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
	}, []string{"phase"})

	migrationRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classbook",
		Subsystem: "migration",
		Name:      "rows_total",
		Help:      "Total number of rows seeded broken down by collection.",
	}, []string{"collection"})

	backupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classbook",
		Name:      "backups_total",
		Help:      "Total number of backup operations broken down by result.",
	}, []string{"result"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classbook",
		Name:      "rollbacks_total",
		Help:      "Total number of rollbacks broken down by result.",
	}, []string{"result"})
)

type outcome string

const (
	outcomeSuccess            outcome = "success"
	outcomeValidationFailed   outcome = "validation_failed"
	outcomeBackupFailed       outcome = "backup_failed"
	outcomeExecutionFailed    outcome = "execution_failed"
	outcomeVerificationFailed outcome = "verification_failed"
	outcomeRollbackFailed     outcome = "rollback_failed"
)

func recordRun(o outcome) {
	migrationRuns.WithLabelValues(string(o)).Inc()
}

func observePhase(phase string, started time.Time) {
	migrationPhaseDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
}

func recordRows(counts dataset.Counts) {
	for c, n := range counts {
		migrationRows.WithLabelValues(string(c)).Add(float64(n))
	}
}

func recordBackup(result string) {
	backupsTotal.WithLabelValues(result).Inc()
}

func recordRollback(ok bool) {
	result := "failed"
	if ok {
		result = "restored"
	}
	rollbacksTotal.WithLabelValues(result).Inc()
}
