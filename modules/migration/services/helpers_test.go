package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/infrastructure/persistence"
	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/blob"
	"github.com/iota-uz/classbook/pkg/itf"
)

const testPrefix = "backups/"

type fixture struct {
	store *persistence.SQLStore
	blobs *blob.Memory
	audit *auditlog.Memory
	svc   *MigrationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: itf.NewSQLiteStore(t),
		blobs: blob.NewMemory(),
		audit: &auditlog.Memory{},
	}
	f.svc = NewMigrationService(f.store, f.blobs, Options{
		Owner:        itf.Owner(),
		BackupPrefix: testPrefix,
		TxTimeout:    time.Minute,
		Audit:        f.audit,
	})
	return f
}

// seedSample migrates the sample dataset and fails the test if it does not
// succeed.
func (f *fixture) seedSample(t *testing.T) {
	t.Helper()
	res, err := f.svc.Migrate(context.Background(), itf.SampleDataset())
	require.NoError(t, err)
	require.True(t, res.Success, "%v", res.Errors)
}

func (f *fixture) counts(t *testing.T) dataset.Counts {
	t.Helper()
	counts, err := f.store.Counts(context.Background())
	require.NoError(t, err)
	return counts
}

// snapshotJSON is the compact serialization of the whole store.
func (f *fixture) snapshotJSON(t *testing.T) string {
	t.Helper()
	snap, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	return string(raw)
}

// failingTxRepo refuses every transaction while reads keep working.
type failingTxRepo struct {
	dataset.Repository
	err error
}

func (r failingTxRepo) InTx(context.Context, func(context.Context, dataset.Tx) error) error {
	return r.err
}

// failingBlobs rejects writes.
type failingBlobs struct {
	blob.Store
}

func (failingBlobs) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("bucket unavailable")
}

// tamperingBlobs serves stored blobs with the first occurrence of from
// replaced by to, the way a corrupted artifact would read back.
type tamperingBlobs struct {
	blob.Store
	from, to []byte
}

func (b tamperingBlobs) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	info, body, err := b.Store.Get(ctx, key)
	if err != nil {
		return info, nil, err
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return info, nil, err
	}
	return info, io.NopCloser(bytes.NewReader(bytes.Replace(raw, b.from, b.to, 1))), nil
}

type failingSink struct{}

func (failingSink) Record(time.Time, string) error { return errors.New("disk full") }

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
