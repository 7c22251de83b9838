package services

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/itf"
)

func TestVerifier_PassesAfterExecute(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	counts, err := NewExecutor(store, itf.Owner(), nil, nil).Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)

	report, err := NewVerifier(store, nil, nil).Verify(context.Background(), counts)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Failures)
	assert.True(t, counts.Equal(report.Counts))
}

func TestVerifier_EmptyStoreWithEmptyInput(t *testing.T) {
	store := itf.NewSQLiteStore(t)

	report, err := NewVerifier(store, nil, nil).Verify(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

func TestVerifier_FailsOnMissingCoreCollections(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	audit := &auditlog.Memory{}

	expected := dataset.Counts{entitygraph.Students: 3, entitygraph.Classes: 2}
	report, err := NewVerifier(store, audit, nil).Verify(context.Background(), expected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVerificationFailed))
	require.NotNil(t, report)
	assert.False(t, report.Passed)
	assert.Equal(t, []string{
		"students is empty, expected 3 rows",
		"classes is empty, expected 2 rows",
	}, report.Failures)
	require.Len(t, audit.Lines(), 1)
	assert.Contains(t, audit.Lines()[0], "verification failed")
}

func TestVerifier_StudentsOnlyStorePasses(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	ds := &dataset.Dataset{Students: []dataset.Student{{ID: "s1", Name: "Ada", Email: "ada@example.com"}}}
	counts, err := NewExecutor(store, itf.Owner(), nil, nil).Execute(context.Background(), ds)
	require.NoError(t, err)
	require.Zero(t, counts[entitygraph.Classes])

	report, err := NewVerifier(store, nil, nil).Verify(context.Background(), counts)
	require.NoError(t, err)
	assert.True(t, report.Passed)
}

func TestVerifier_FailsOnCountMismatch(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	counts, err := NewExecutor(store, itf.Owner(), nil, nil).Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	counts[entitygraph.Tests]++

	report, err := NewVerifier(store, nil, nil).Verify(context.Background(), counts)
	require.Error(t, err)
	assert.Equal(t, []string{"tests has 1 rows, expected 2"}, report.Failures)
}

func TestVerifier_FailsOnDanglingReference(t *testing.T) {
	store := itf.NewSQLiteStore(t)
	_, err := NewExecutor(store, itf.Owner(), nil, nil).Execute(context.Background(), itf.SampleDataset())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.DB().ExecContext(ctx, "PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx, "DELETE FROM students WHERE id = 's3'")
	require.NoError(t, err)

	report, err := NewVerifier(store, nil, nil).Verify(ctx, nil)
	require.Error(t, err)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, entitygraph.Enrollments, report.Dangling[0].Edge.Child)
	assert.Equal(t, "student_id", report.Dangling[0].Edge.Column)
	assert.Equal(t, 1, report.Dangling[0].Count)
}
