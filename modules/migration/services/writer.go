package services

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
)

// clearAll deletes every table in clear order and returns the deleted rows.
func clearAll(ctx context.Context, tx dataset.Tx) (dataset.Counts, error) {
	out := dataset.Counts{}
	for _, c := range entitygraph.ClearOrder() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		n, err := tx.Clear(ctx, c)
		if err != nil {
			return out, errors.Wrapf(err, "clear %s", c)
		}
		out[c] = int(n)
	}
	return out, nil
}

// writeSnapshot inserts s in seed order. Attendance entries follow their
// record. seeded is called once per collection after its last row.
func writeSnapshot(ctx context.Context, tx dataset.Tx, s *dataset.Snapshot, seeded func(entitygraph.Collection, int)) error {
	if seeded == nil {
		seeded = func(entitygraph.Collection, int) {}
	}
	counts := s.Counts()
	for _, c := range entitygraph.SeedOrder() {
		if err := writeCollection(ctx, tx, s, c); err != nil {
			return errors.Wrapf(err, "seed %s", c)
		}
		seeded(c, counts[c])
	}
	return nil
}

func writeCollection(ctx context.Context, tx dataset.Tx, s *dataset.Snapshot, c entitygraph.Collection) error {
	switch c {
	case entitygraph.Users:
		return each(ctx, s.Users, tx.InsertUser)
	case entitygraph.Students:
		return each(ctx, s.Students, tx.InsertStudent)
	case entitygraph.Classes:
		return each(ctx, s.Classes, tx.InsertClass)
	case entitygraph.Enrollments:
		return each(ctx, s.Enrollments, tx.InsertEnrollment)
	case entitygraph.Schedules:
		return each(ctx, s.Schedules, tx.InsertSchedule)
	case entitygraph.ScheduleExceptions:
		return each(ctx, s.ScheduleExceptions, tx.InsertScheduleException)
	case entitygraph.Tests:
		return each(ctx, s.Tests, tx.InsertTest)
	case entitygraph.TestResults:
		return each(ctx, s.TestResults, tx.InsertTestResult)
	case entitygraph.HomeworkAssignments:
		return each(ctx, s.HomeworkAssignments, tx.InsertHomeworkAssignment)
	case entitygraph.HomeworkSubmissions:
		return each(ctx, s.HomeworkSubmissions, tx.InsertHomeworkSubmission)
	case entitygraph.AttendanceRecords:
		return each(ctx, s.AttendanceRecords, func(ctx context.Context, r dataset.AttendanceRecord) error {
			if err := tx.InsertAttendanceRecord(ctx, r); err != nil {
				return err
			}
			for _, e := range r.Entries {
				if err := tx.InsertAttendanceEntry(ctx, r.ID, e); err != nil {
					return err
				}
			}
			return nil
		})
	case entitygraph.AttendanceEntries:
		// written together with their records
		return nil
	case entitygraph.ClassNotes:
		return each(ctx, s.ClassNotes, tx.InsertClassNote)
	case entitygraph.Meetings:
		return each(ctx, s.Meetings, tx.InsertMeeting)
	default:
		return errors.Errorf("no writer for collection %q", c)
	}
}

// each inserts rows one by one and stops early when ctx is done.
func each[T any](ctx context.Context, rows []T, insert func(context.Context, T) error) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := insert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
