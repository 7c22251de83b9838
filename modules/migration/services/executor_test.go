package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/modules/migration/infrastructure/persistence"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/itf"
)

func TestExecutor_SeedsEveryCollection(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	audit := &auditlog.Memory{}
	ex := NewExecutor(store, itf.Owner(), audit, nil)
	require.Equal(t, PhaseIdle, ex.Phase())

	counts, err := ex.Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, ex.Phase())

	stored, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.True(t, counts.Equal(stored), "reported %v stored %v", counts, stored)
	assert.Equal(t, 1, counts[entitygraph.Users])
	assert.Equal(t, 3, counts[entitygraph.Enrollments])
	assert.Equal(t, 2, counts[entitygraph.AttendanceEntries])
	assert.Equal(t, ex.Plan(itf.SampleDataset()), counts)

	lines := audit.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "executor IDLE -> CLEARING")
	assert.Contains(t, lines[len(lines)-1], "migrated meetings: 2")
}

func TestExecutor_ReplacesPreviousContent(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	ex := NewExecutor(store, itf.Owner(), nil, nil)
	_, err := ex.Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)

	small := &dataset.Dataset{
		Students: []dataset.Student{{ID: "x1", Name: "Only One", Email: "one@example.com"}},
	}
	counts, err := ex.Execute(context.Background(), small)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Total())

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Students, 1)
	assert.Equal(t, "x1", snap.Students[0].ID)
	assert.Empty(t, snap.Classes)
}

func TestExecutor_AbortLeavesStoreUnchanged(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	ex := NewExecutor(store, itf.Owner(), nil, nil)
	_, err := ex.Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	before, err := store.Counts(context.Background())
	require.NoError(t, err)

	ds := itf.SampleDataset()
	ds.HomeworkAssignments = append(ds.HomeworkAssignments, ds.HomeworkAssignments[0])

	_, err = ex.Execute(context.Background(), ds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.Equal(t, PhaseAborted, ex.Phase())

	after, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestExecutor_HonoursCancellation(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	ex := NewExecutor(store, itf.Owner(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.Execute(ctx, itf.SampleDataset())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExecutionFailed))
	assert.True(t, errors.Is(err, context.Canceled))

	n, err := store.Count(context.Background(), entitygraph.Students)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecutor_ClearFailureRollsBackTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM homework_submissions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM homework_assignments").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	ex := NewExecutor(persistence.New(db, persistence.DialectPostgres), itf.Owner(), nil, nil)
	_, err = ex.Execute(context.Background(), itf.SampleDataset())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear homework_assignments")
	assert.Equal(t, PhaseAborted, ex.Phase())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_EnrollmentsDerivedFromMembers(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	ds := &dataset.Dataset{
		Students: []dataset.Student{
			{ID: "a", Name: "A", Email: "a@example.com"},
			{ID: "b", Name: "B", Email: "b@example.com"},
		},
		Classes: []dataset.Class{{ID: "C", Name: "C", Subject: "art", Capacity: 5, StudentIDs: []string{"a", "b"}}},
	}
	_, err := NewExecutor(store, itf.Owner(), nil, nil).Execute(context.Background(), ds)
	require.NoError(t, err)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dataset.Enrollment{{ClassID: "C", StudentID: "a"}, {ClassID: "C", StudentID: "b"}}, snap.Enrollments)
}
