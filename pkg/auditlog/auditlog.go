// Package auditlog is an append-only sink of timestamped lines describing what
// a migration run did.
package auditlog

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Sink accepts one line per event. Callers treat write failures as non-fatal.
type Sink interface {
	Record(at time.Time, line string) error
}

// Line formats at and msg the way every sink stores them.
func Line(at time.Time, msg string) string {
	return fmt.Sprintf("%s %s", at.UTC().Format(time.RFC3339Nano), strings.TrimRight(msg, "\n"))
}

// File appends lines to a file, creating it and its directory on first use.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Record(at time.Time, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(f.path))
	}
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", f.path)
	}
	if _, err := fh.WriteString(Line(at, line) + "\n"); err != nil {
		_ = fh.Close()
		return errors.Wrapf(err, "append %s", f.path)
	}
	if err := fh.Close(); err != nil {
		return errors.Wrap(err, "close audit log")
	}
	return nil
}

// Logrus forwards lines to a logger at info level.
type Logrus struct {
	entry *logrus.Entry
}

func NewLogrus(entry *logrus.Entry) *Logrus {
	return &Logrus{entry: entry.WithField("component", "audit")}
}

func (l *Logrus) Record(at time.Time, line string) error {
	l.entry.WithTime(at).Info(line)
	return nil
}

// Memory keeps lines in memory.
type Memory struct {
	mu    sync.Mutex
	lines []string
}

func (m *Memory) Record(at time.Time, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, Line(at, line))
	return nil
}

func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

type nop struct{}

func (nop) Record(time.Time, string) error { return nil }

func Nop() Sink { return nop{} }

// Multi writes to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Record(at time.Time, line string) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(at, line); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
