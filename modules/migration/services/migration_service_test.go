package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/pkg/composables"
	"github.com/iota-uz/classbook/pkg/itf"
)

func TestMigrate_EmptyDataset(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)

	res, err := f.svc.Migrate(context.Background(), &dataset.Dataset{})
	require.NoError(t, err)
	require.True(t, res.Success, "%v", res.Errors)
	assert.Equal(t, PhaseCommitted, res.Phase)
	assert.NotEmpty(t, res.BackupID)

	counts := f.counts(t)
	for _, c := range entitygraph.SeedOrder() {
		if c == entitygraph.Users {
			continue
		}
		assert.Zero(t, counts[c], c)
	}

	report, err := f.svc.Verifier().Verify(context.Background(), res.Counts)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

func TestMigrate_InvalidStudentLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)
	before := f.snapshotJSON(t)
	backupsBefore, err := f.svc.Backups().ListBackups(context.Background())
	require.NoError(t, err)

	ds := itf.SampleDataset()
	ds.Students[2].Email = "grace-at-example"

	res, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, PhaseIdle, res.Phase)
	require.Len(t, res.ValidationErrors, 1)
	assert.Equal(t, "students", res.ValidationErrors[0].Entity)
	assert.Equal(t, "s3", res.ValidationErrors[0].ID)
	assert.Equal(t, "email", res.ValidationErrors[0].Field)
	assert.Len(t, res.Errors, 1)
	assert.Empty(t, res.BackupID)

	assert.Equal(t, before, f.snapshotJSON(t))
	backupsAfter, err := f.svc.Backups().ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backupsAfter, len(backupsBefore))
}

func TestMigrate_BlankStudentLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)
	before := f.snapshotJSON(t)
	backupsBefore, err := f.svc.Backups().ListBackups(context.Background())
	require.NoError(t, err)

	ds := &dataset.Dataset{Students: []dataset.Student{{ID: "", Name: "", Email: "invalid-email"}}}

	res, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, PhaseIdle, res.Phase)
	require.Len(t, res.ValidationErrors, 3)
	fields := []string{}
	for _, e := range res.ValidationErrors {
		assert.Equal(t, "students", e.Entity)
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"id", "name", "email"}, fields)
	assert.Empty(t, res.BackupID)

	assert.Equal(t, before, f.snapshotJSON(t))
	backupsAfter, err := f.svc.Backups().ListBackups(context.Background())
	require.NoError(t, err)
	assert.Len(t, backupsAfter, len(backupsBefore))
}

func TestMigrate_MissingClassReferenceRejectedBeforeExecution(t *testing.T) {
	f := newFixture(t)

	ds := itf.SampleDataset()
	ds.Schedules[0].ClassID = "nope"

	res, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, PhaseIdle, f.svc.Executor().Phase())
	require.Len(t, res.ValidationErrors, 1)
	assert.Equal(t, "class_id", res.ValidationErrors[0].Field)
	assert.Zero(t, f.counts(t).Total())
}

func TestMigrate_DuplicateIDRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)
	before := f.counts(t)
	beforeJSON := f.snapshotJSON(t)

	ds := itf.SampleDataset()
	ds.Students[0].Name = "Renamed"
	ds.Meetings = append(ds.Meetings, dataset.Meeting{
		ID: "m1", ClassID: "c2", Title: "Clash", ScheduledAt: "2024-04-01T10:00:00Z",
	})

	res, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RolledBack)
	assert.Equal(t, PhaseAborted, res.Phase)
	assert.NotEmpty(t, res.Errors)
	assert.Nil(t, res.Counts)

	assert.Equal(t, before, f.counts(t))
	assert.Equal(t, beforeJSON, f.snapshotJSON(t))
}

func TestMigrate_VerificationFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)
	before := f.snapshotJSON(t)

	// a store that reports an extra student makes the count check fail
	repo := inflatedCounts{Repository: f.store}
	svc := NewMigrationService(repo, f.blobs, Options{Owner: itf.Owner(), BackupPrefix: testPrefix, Audit: f.audit})

	ds := itf.SampleDataset()
	ds.Students[0].Name = "Renamed"
	res, err := svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RolledBack)
	assert.Equal(t, PhaseCommitted, res.Phase)
	assert.Contains(t, res.Errors, "students has 4 rows, expected 3")
	assert.Equal(t, before, f.snapshotJSON(t))

	lines := f.audit.Lines()
	assert.Contains(t, lines[len(lines)-1], "rollback restored backup "+res.BackupID)
}

func TestMigrate_BackupFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)
	before := f.snapshotJSON(t)

	svc := NewMigrationService(f.store, failingBlobs{Store: f.blobs}, Options{Owner: itf.Owner(), BackupPrefix: testPrefix})
	res, err := svc.Migrate(context.Background(), &dataset.Dataset{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.RolledBack)
	assert.Empty(t, res.BackupID)
	assert.Equal(t, PhaseIdle, res.Phase)
	assert.Equal(t, before, f.snapshotJSON(t))
}

func TestMigrate_RollbackFailureEscalates(t *testing.T) {
	f := newFixture(t)
	f.seedSample(t)

	repo := failingTxRepo{Repository: f.store, err: errors.New("database is locked")}
	svc := NewMigrationService(repo, f.blobs, Options{Owner: itf.Owner(), BackupPrefix: testPrefix})

	res, err := svc.Migrate(context.Background(), itf.SampleDataset())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollbackFailed))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.False(t, res.RolledBack)
	assert.Len(t, res.Errors, 2)
}

func TestMigrate_EnrollmentsAndNoOrphans(t *testing.T) {
	f := newFixture(t)
	ds := &dataset.Dataset{
		Students: []dataset.Student{
			{ID: "a", Name: "A", Email: "a@example.com"},
			{ID: "b", Name: "B", Email: "b@example.com"},
		},
		Classes: []dataset.Class{{ID: "C", Name: "Chemistry", Subject: "science", Capacity: 10, StudentIDs: []string{"a", "b"}}},
	}

	res, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)
	require.True(t, res.Success, "%v", res.Errors)
	assert.Equal(t, 2, res.Counts[entitygraph.Enrollments])
	assert.Equal(t, 2, f.counts(t)[entitygraph.Enrollments])

	// replacing a populated store clears children before parents
	res, err = f.svc.Migrate(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	require.True(t, res.Success, "%v", res.Errors)
	dangling, err := f.store.DanglingReferences(context.Background())
	require.NoError(t, err)
	for _, d := range dangling {
		assert.Zero(t, d.Count, d.Edge.String())
	}
}

func TestMigrate_PartialDatasets(t *testing.T) {
	cases := map[string]*dataset.Dataset{
		"students only": {
			Students: []dataset.Student{{ID: "s1", Name: "Ada", Email: "ada@example.com"}},
		},
		"class without members": {
			Classes: []dataset.Class{{ID: "c1", Name: "Algebra", Subject: "math", Capacity: 30}},
		},
	}
	for name, ds := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.seedSample(t)

			res, err := f.svc.Migrate(context.Background(), ds)
			require.NoError(t, err)
			require.True(t, res.Success, "%v", res.Errors)
			assert.False(t, res.RolledBack)
			assert.Equal(t, PhaseCommitted, res.Phase)
			assert.True(t, res.Counts.Equal(f.counts(t)))
		})
	}
}

func TestMigrate_AuditFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	svc := NewMigrationService(f.store, f.blobs, Options{Owner: itf.Owner(), BackupPrefix: testPrefix, Audit: failingSink{}})

	res, err := svc.Migrate(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	assert.True(t, res.Success, "%v", res.Errors)
}

func TestMigrate_AuditTrail(t *testing.T) {
	f := newFixture(t)
	runID := uuid.New()
	ctx := composables.WithRunID(context.Background(), runID)

	res, err := f.svc.Migrate(ctx, itf.SampleDataset())
	require.NoError(t, err)
	require.True(t, res.Success)

	lines := f.audit.Lines()
	require.NotEmpty(t, lines)
	for _, l := range lines {
		ts, msg, ok := strings.Cut(l, " ")
		require.True(t, ok, l)
		_, err := time.Parse(time.RFC3339Nano, ts)
		assert.NoError(t, err, l)
		assert.True(t, strings.HasPrefix(msg, "["+runID.String()+"] "), l)
	}
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "backup created id="+res.BackupID)
	assert.Contains(t, joined, "migrated students: 3")
	assert.Contains(t, joined, "migration completed")
}

func TestMigrate_Metrics(t *testing.T) {
	f := newFixture(t)
	success := counterValue(t, "classbook_migration_runs_total", map[string]string{"outcome": "success"})
	rejected := counterValue(t, "classbook_migration_runs_total", map[string]string{"outcome": "validation_failed"})
	students := counterValue(t, "classbook_migration_rows_total", map[string]string{"collection": "students"})

	f.seedSample(t)
	ds := itf.SampleDataset()
	ds.Students[0].ID = ""
	_, err := f.svc.Migrate(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, success+1, counterValue(t, "classbook_migration_runs_total", map[string]string{"outcome": "success"}))
	assert.Equal(t, rejected+1, counterValue(t, "classbook_migration_runs_total", map[string]string{"outcome": "validation_failed"}))
	assert.Equal(t, students+3, counterValue(t, "classbook_migration_rows_total", map[string]string{"collection": "students"}))
}

// inflatedCounts reports one more student than the store holds.
type inflatedCounts struct {
	dataset.Repository
}

func (r inflatedCounts) Counts(ctx context.Context) (dataset.Counts, error) {
	counts, err := r.Repository.Counts(ctx)
	if err != nil {
		return nil, err
	}
	counts[entitygraph.Students]++
	return counts, nil
}
