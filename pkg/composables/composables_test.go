package composables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestUseLogger(t *testing.T) {
	require.NotNil(t, UseLogger(context.Background()))

	entry := logrus.NewEntry(logrus.New()).WithField("component", "test")
	ctx := WithLogger(context.Background(), entry)
	require.Same(t, entry, UseLogger(ctx))

	got, ok := LoggerFromContext(ctx)
	require.True(t, ok)
	require.Same(t, entry, got)

	_, ok = LoggerFromContext(context.Background())
	require.False(t, ok)
}

func TestUseRunID(t *testing.T) {
	_, ok := UseRunID(context.Background())
	require.False(t, ok)

	id := uuid.New()
	got, ok := UseRunID(WithRunID(context.Background(), id))
	require.True(t, ok)
	require.Equal(t, id, got)
}
