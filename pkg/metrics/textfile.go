// Package metrics exports collected Prometheus metrics for short-lived
// commands that never serve /metrics themselves.
package metrics

import (
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes every metric of g to path in the node_exporter
// textfile format. An empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return errors.Wrap(err, "write metrics textfile")
	}
	return nil
}
