package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/pkg/auditlog"
)

// Report is the outcome of one verification scan.
type Report struct {
	Passed   bool               `json:"passed"`
	Counts   dataset.Counts     `json:"counts"`
	Dangling []dataset.Dangling `json:"dangling,omitempty"`
	Failures []string           `json:"failures,omitempty"`
}

// Verifier inspects the committed store with read-only queries.
type Verifier struct {
	repo   dataset.Repository
	audit  auditor
	logger *logrus.Entry
}

func NewVerifier(repo dataset.Repository, sink auditlog.Sink, logger *logrus.Entry) *Verifier {
	return &Verifier{repo: repo, audit: newAuditor(sink, logger), logger: logger}
}

// Verify checks that students and classes are present whenever expected
// reports rows for them, that each collection holds exactly the expected rows
// and that no foreign key dangles. A nil expected runs the integrity scan only.
// A failed check returns the report together with an error wrapping
// ErrVerificationFailed.
func (v *Verifier) Verify(ctx context.Context, expected dataset.Counts) (*Report, error) {
	started := time.Now()
	logger := loggerFor(ctx, v.logger, "verifier")

	counts, err := v.repo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count rows: %w", ErrVerificationFailed, err)
	}
	report := &Report{Counts: counts}

	empty := map[entitygraph.Collection]bool{}
	for _, c := range []entitygraph.Collection{entitygraph.Students, entitygraph.Classes} {
		if expected[c] > 0 && counts[c] == 0 {
			empty[c] = true
			report.Failures = append(report.Failures, fmt.Sprintf("%s is empty, expected %d rows", c, expected[c]))
		}
	}

	if expected != nil {
		for _, c := range entitygraph.SeedOrder() {
			if !empty[c] && counts[c] != expected[c] {
				report.Failures = append(report.Failures,
					fmt.Sprintf("%s has %d rows, expected %d", c, counts[c], expected[c]))
			}
		}
	}

	dangling, err := v.repo.DanglingReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: integrity scan: %w", ErrVerificationFailed, err)
	}
	for _, d := range dangling {
		if d.Count == 0 {
			continue
		}
		report.Dangling = append(report.Dangling, d)
		report.Failures = append(report.Failures, fmt.Sprintf("%d dangling %s", d.Count, d.Edge))
	}

	observePhase("verify", started)
	report.Passed = len(report.Failures) == 0
	if report.Passed {
		logger.WithField("rows", counts.Total()).Info("verification passed")
		return report, nil
	}

	logger.WithField("failures", report.Failures).Error("verification failed")
	v.audit.record(ctx, "verification failed: %s", strings.Join(report.Failures, "; "))
	return report, fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(report.Failures, "; "))
}
