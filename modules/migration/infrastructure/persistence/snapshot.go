package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
)

const (
	selectUsersQuery               = `SELECT id, name, email FROM users ORDER BY id`
	selectStudentsQuery            = `SELECT id, name, email, grade_level, phone FROM students ORDER BY id`
	selectClassesQuery             = `SELECT id, name, subject, capacity, room, owner_id FROM classes ORDER BY id`
	selectEnrollmentsQuery         = `SELECT class_id, student_id FROM enrollments ORDER BY class_id, student_id`
	selectSchedulesQuery           = `SELECT id, class_id, day_of_week, start_time, end_time, room FROM schedules ORDER BY id`
	selectScheduleExceptionsQuery  = `SELECT id, schedule_id, date, reason, cancelled, start_time, end_time FROM schedule_exceptions ORDER BY id`
	selectTestsQuery               = `SELECT id, class_id, title, date, max_score FROM tests ORDER BY id`
	selectTestResultsQuery         = `SELECT id, test_id, student_id, score FROM test_results ORDER BY id`
	selectHomeworkAssignmentsQuery = `SELECT id, class_id, title, description, due_date FROM homework_assignments ORDER BY id`
	selectHomeworkSubmissionsQuery = `SELECT id, assignment_id, student_id, submitted_at, content, grade FROM homework_submissions ORDER BY id`
	selectAttendanceRecordsQuery   = `SELECT id, class_id, date FROM attendance_records ORDER BY id`
	selectAttendanceEntriesQuery   = `SELECT record_id, student_id, status, note FROM attendance_entries ORDER BY record_id, student_id`
	selectClassNotesQuery          = `SELECT id, class_id, content, created_at FROM class_notes ORDER BY id`
	selectMeetingsQuery            = `SELECT id, class_id, student_id, title, scheduled_at, notes FROM meetings ORDER BY id`
)

// queryAll never returns a nil slice so empty tables serialize as [].
func queryAll[T any](ctx context.Context, q querier, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

func readSnapshot(ctx context.Context, q querier) (*dataset.Snapshot, error) {
	var (
		s   dataset.Snapshot
		err error
	)

	if s.Users, err = queryAll(ctx, q, selectUsersQuery, func(r *sql.Rows) (dataset.User, error) {
		var u dataset.User
		err := r.Scan(&u.ID, &u.Name, &u.Email)
		return u, err
	}); err != nil {
		return nil, errors.Wrap(err, "read users")
	}

	if s.Students, err = queryAll(ctx, q, selectStudentsQuery, func(r *sql.Rows) (dataset.Student, error) {
		var v dataset.Student
		err := r.Scan(&v.ID, &v.Name, &v.Email, &v.GradeLevel, &v.Phone)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read students")
	}

	if s.Classes, err = queryAll(ctx, q, selectClassesQuery, func(r *sql.Rows) (dataset.Class, error) {
		var v dataset.Class
		err := r.Scan(&v.ID, &v.Name, &v.Subject, &v.Capacity, &v.Room, &v.OwnerID)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read classes")
	}

	if s.Enrollments, err = queryAll(ctx, q, selectEnrollmentsQuery, func(r *sql.Rows) (dataset.Enrollment, error) {
		var v dataset.Enrollment
		err := r.Scan(&v.ClassID, &v.StudentID)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read enrollments")
	}

	if s.Schedules, err = queryAll(ctx, q, selectSchedulesQuery, func(r *sql.Rows) (dataset.Schedule, error) {
		var v dataset.Schedule
		err := r.Scan(&v.ID, &v.ClassID, &v.DayOfWeek, &v.StartTime, &v.EndTime, &v.Room)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read schedules")
	}

	if s.ScheduleExceptions, err = queryAll(ctx, q, selectScheduleExceptionsQuery, func(r *sql.Rows) (dataset.ScheduleException, error) {
		var v dataset.ScheduleException
		err := r.Scan(&v.ID, &v.ScheduleID, &v.Date, &v.Reason, &v.Cancelled, &v.StartTime, &v.EndTime)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read schedule exceptions")
	}

	if s.Tests, err = queryAll(ctx, q, selectTestsQuery, func(r *sql.Rows) (dataset.Test, error) {
		var v dataset.Test
		err := r.Scan(&v.ID, &v.ClassID, &v.Title, &v.Date, &v.MaxScore)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read tests")
	}

	if s.TestResults, err = queryAll(ctx, q, selectTestResultsQuery, func(r *sql.Rows) (dataset.TestResult, error) {
		var v dataset.TestResult
		err := r.Scan(&v.ID, &v.TestID, &v.StudentID, &v.Score)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read test results")
	}

	if s.HomeworkAssignments, err = queryAll(ctx, q, selectHomeworkAssignmentsQuery, func(r *sql.Rows) (dataset.HomeworkAssignment, error) {
		var v dataset.HomeworkAssignment
		err := r.Scan(&v.ID, &v.ClassID, &v.Title, &v.Description, &v.DueDate)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read homework assignments")
	}

	if s.HomeworkSubmissions, err = queryAll(ctx, q, selectHomeworkSubmissionsQuery, func(r *sql.Rows) (dataset.HomeworkSubmission, error) {
		var v dataset.HomeworkSubmission
		err := r.Scan(&v.ID, &v.AssignmentID, &v.StudentID, &v.SubmittedAt, &v.Content, &v.Grade)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read homework submissions")
	}

	if s.AttendanceRecords, err = readAttendance(ctx, q); err != nil {
		return nil, err
	}

	if s.ClassNotes, err = queryAll(ctx, q, selectClassNotesQuery, func(r *sql.Rows) (dataset.ClassNote, error) {
		var v dataset.ClassNote
		err := r.Scan(&v.ID, &v.ClassID, &v.Content, &v.CreatedAt)
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read class notes")
	}

	if s.Meetings, err = queryAll(ctx, q, selectMeetingsQuery, func(r *sql.Rows) (dataset.Meeting, error) {
		var v dataset.Meeting
		var studentID sql.NullString
		err := r.Scan(&v.ID, &v.ClassID, &studentID, &v.Title, &v.ScheduledAt, &v.Notes)
		v.StudentID = studentID.String
		return v, err
	}); err != nil {
		return nil, errors.Wrap(err, "read meetings")
	}

	return &s, nil
}

type entryRow struct {
	recordID string
	entry    dataset.AttendanceEntry
}

func readAttendance(ctx context.Context, q querier) ([]dataset.AttendanceRecord, error) {
	records, err := queryAll(ctx, q, selectAttendanceRecordsQuery, func(r *sql.Rows) (dataset.AttendanceRecord, error) {
		v := dataset.AttendanceRecord{Entries: []dataset.AttendanceEntry{}}
		err := r.Scan(&v.ID, &v.ClassID, &v.Date)
		return v, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "read attendance records")
	}

	entries, err := queryAll(ctx, q, selectAttendanceEntriesQuery, func(r *sql.Rows) (entryRow, error) {
		var v entryRow
		var status string
		err := r.Scan(&v.recordID, &v.entry.StudentID, &status, &v.entry.Note)
		v.entry.Status = dataset.AttendanceStatus(status)
		return v, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "read attendance entries")
	}

	byID := make(map[string]int, len(records))
	for i, r := range records {
		byID[r.ID] = i
	}
	for _, e := range entries {
		i, ok := byID[e.recordID]
		if !ok {
			// an orphaned entry; the integrity scan reports it
			continue
		}
		records[i].Entries = append(records[i].Entries, e.entry)
	}
	return records, nil
}
