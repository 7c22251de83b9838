package dataset

import (
	"context"

	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
)

// Dangling is the number of rows whose Edge column points at a missing parent.
type Dangling struct {
	Edge  entitygraph.Edge `json:"edge"`
	Count int              `json:"count"`
}

// Tx is the write side of a store, only valid inside Repository.InTx.
type Tx interface {
	Clear(ctx context.Context, c entitygraph.Collection) (int64, error)

	InsertUser(ctx context.Context, u User) error
	InsertStudent(ctx context.Context, s Student) error
	InsertClass(ctx context.Context, c Class) error
	InsertEnrollment(ctx context.Context, e Enrollment) error
	InsertSchedule(ctx context.Context, s Schedule) error
	InsertScheduleException(ctx context.Context, e ScheduleException) error
	InsertTest(ctx context.Context, t Test) error
	InsertTestResult(ctx context.Context, r TestResult) error
	InsertHomeworkAssignment(ctx context.Context, a HomeworkAssignment) error
	InsertHomeworkSubmission(ctx context.Context, s HomeworkSubmission) error
	InsertAttendanceRecord(ctx context.Context, r AttendanceRecord) error
	InsertAttendanceEntry(ctx context.Context, recordID string, e AttendanceEntry) error
	InsertClassNote(ctx context.Context, n ClassNote) error
	InsertMeeting(ctx context.Context, m Meeting) error
}

// Repository is the relational store the migration engine works against.
type Repository interface {
	// InTx runs fn in one transaction; any error returned by fn discards it.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Count(ctx context.Context, c entitygraph.Collection) (int, error)
	Counts(ctx context.Context) (Counts, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
	DanglingReferences(ctx context.Context) ([]Dangling, error)
}
