package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/classbook/pkg/auditlog"
	"github.com/iota-uz/classbook/pkg/composables"
	"github.com/iota-uz/classbook/pkg/logging"
)

// loggerFor prefers the logger carried by ctx and falls back to base.
func loggerFor(ctx context.Context, base *logrus.Entry, component string) *logrus.Entry {
	logger, ok := composables.LoggerFromContext(ctx)
	if !ok {
		logger = logging.OrNop(base)
	}
	fields := logrus.Fields{"component": component}
	if runID, ok := composables.UseRunID(ctx); ok {
		fields["run_id"] = runID.String()
	}
	return logger.WithFields(fields)
}

// auditor writes audit lines. A failing sink never fails the caller; the
// error is logged and dropped.
type auditor struct {
	sink   auditlog.Sink
	logger *logrus.Entry
	now    func() time.Time
}

func newAuditor(sink auditlog.Sink, logger *logrus.Entry) auditor {
	if sink == nil {
		sink = auditlog.Nop()
	}
	return auditor{sink: sink, logger: logging.OrNop(logger), now: time.Now}
}

func (a auditor) record(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if runID, ok := composables.UseRunID(ctx); ok {
		msg = fmt.Sprintf("[%s] %s", runID, msg)
	}
	if err := a.sink.Record(a.now(), msg); err != nil {
		a.logger.WithError(err).WithField("audit_line", msg).Warn("audit log write failed")
	}
}
