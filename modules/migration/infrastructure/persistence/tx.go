package persistence

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
)

const (
	insertUserQuery               = `INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`
	insertStudentQuery            = `INSERT INTO students (id, name, email, grade_level, phone) VALUES ($1, $2, $3, $4, $5)`
	insertClassQuery              = `INSERT INTO classes (id, name, subject, capacity, room, owner_id) VALUES ($1, $2, $3, $4, $5, $6)`
	insertEnrollmentQuery         = `INSERT INTO enrollments (class_id, student_id) VALUES ($1, $2)`
	insertScheduleQuery           = `INSERT INTO schedules (id, class_id, day_of_week, start_time, end_time, room) VALUES ($1, $2, $3, $4, $5, $6)`
	insertScheduleExceptionQuery  = `INSERT INTO schedule_exceptions (id, schedule_id, date, reason, cancelled, start_time, end_time) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	insertTestQuery               = `INSERT INTO tests (id, class_id, title, date, max_score) VALUES ($1, $2, $3, $4, $5)`
	insertTestResultQuery         = `INSERT INTO test_results (id, test_id, student_id, score) VALUES ($1, $2, $3, $4)`
	insertHomeworkAssignmentQuery = `INSERT INTO homework_assignments (id, class_id, title, description, due_date) VALUES ($1, $2, $3, $4, $5)`
	insertHomeworkSubmissionQuery = `INSERT INTO homework_submissions (id, assignment_id, student_id, submitted_at, content, grade) VALUES ($1, $2, $3, $4, $5, $6)`
	insertAttendanceRecordQuery   = `INSERT INTO attendance_records (id, class_id, date) VALUES ($1, $2, $3)`
	insertAttendanceEntryQuery    = `INSERT INTO attendance_entries (record_id, student_id, status, note) VALUES ($1, $2, $3, $4)`
	insertClassNoteQuery          = `INSERT INTO class_notes (id, class_id, content, created_at) VALUES ($1, $2, $3, $4)`
	insertMeetingQuery            = `INSERT INTO meetings (id, class_id, student_id, title, scheduled_at, notes) VALUES ($1, $2, $3, $4, $5, $6)`
)

type sqlTx struct {
	q querier
}

var _ dataset.Tx = (*sqlTx)(nil)

func (t *sqlTx) Clear(ctx context.Context, c entitygraph.Collection) (int64, error) {
	table, err := tableName(c)
	if err != nil {
		return 0, err
	}
	res, err := t.q.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "rows affected %s", table)
	}
	return n, nil
}

func (t *sqlTx) exec(ctx context.Context, what, id, query string, args ...any) error {
	if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "insert %s %q", what, id)
	}
	return nil
}

func (t *sqlTx) InsertUser(ctx context.Context, u dataset.User) error {
	return t.exec(ctx, "user", u.ID, insertUserQuery, u.ID, u.Name, u.Email)
}

func (t *sqlTx) InsertStudent(ctx context.Context, s dataset.Student) error {
	return t.exec(ctx, "student", s.ID, insertStudentQuery, s.ID, s.Name, s.Email, s.GradeLevel, s.Phone)
}

func (t *sqlTx) InsertClass(ctx context.Context, c dataset.Class) error {
	return t.exec(ctx, "class", c.ID, insertClassQuery, c.ID, c.Name, c.Subject, c.Capacity, c.Room, c.OwnerID)
}

func (t *sqlTx) InsertEnrollment(ctx context.Context, e dataset.Enrollment) error {
	return t.exec(ctx, "enrollment", e.ClassID+"/"+e.StudentID, insertEnrollmentQuery, e.ClassID, e.StudentID)
}

func (t *sqlTx) InsertSchedule(ctx context.Context, s dataset.Schedule) error {
	return t.exec(ctx, "schedule", s.ID, insertScheduleQuery, s.ID, s.ClassID, s.DayOfWeek, s.StartTime, s.EndTime, s.Room)
}

func (t *sqlTx) InsertScheduleException(ctx context.Context, e dataset.ScheduleException) error {
	return t.exec(ctx, "schedule exception", e.ID, insertScheduleExceptionQuery,
		e.ID, e.ScheduleID, e.Date, e.Reason, e.Cancelled, e.StartTime, e.EndTime)
}

func (t *sqlTx) InsertTest(ctx context.Context, x dataset.Test) error {
	return t.exec(ctx, "test", x.ID, insertTestQuery, x.ID, x.ClassID, x.Title, x.Date, x.MaxScore)
}

func (t *sqlTx) InsertTestResult(ctx context.Context, r dataset.TestResult) error {
	return t.exec(ctx, "test result", r.ID, insertTestResultQuery, r.ID, r.TestID, r.StudentID, r.Score)
}

func (t *sqlTx) InsertHomeworkAssignment(ctx context.Context, a dataset.HomeworkAssignment) error {
	return t.exec(ctx, "homework assignment", a.ID, insertHomeworkAssignmentQuery,
		a.ID, a.ClassID, a.Title, a.Description, a.DueDate)
}

func (t *sqlTx) InsertHomeworkSubmission(ctx context.Context, s dataset.HomeworkSubmission) error {
	return t.exec(ctx, "homework submission", s.ID, insertHomeworkSubmissionQuery,
		s.ID, s.AssignmentID, s.StudentID, s.SubmittedAt, s.Content, s.Grade)
}

func (t *sqlTx) InsertAttendanceRecord(ctx context.Context, r dataset.AttendanceRecord) error {
	return t.exec(ctx, "attendance record", r.ID, insertAttendanceRecordQuery, r.ID, r.ClassID, r.Date)
}

func (t *sqlTx) InsertAttendanceEntry(ctx context.Context, recordID string, e dataset.AttendanceEntry) error {
	return t.exec(ctx, "attendance entry", recordID+"/"+e.StudentID, insertAttendanceEntryQuery,
		recordID, e.StudentID, string(e.Status), e.Note)
}

func (t *sqlTx) InsertClassNote(ctx context.Context, n dataset.ClassNote) error {
	return t.exec(ctx, "class note", n.ID, insertClassNoteQuery, n.ID, n.ClassID, n.Content, n.CreatedAt)
}

func (t *sqlTx) InsertMeeting(ctx context.Context, m dataset.Meeting) error {
	return t.exec(ctx, "meeting", m.ID, insertMeetingQuery,
		m.ID, m.ClassID, nullString(m.StudentID), m.Title, m.ScheduledAt, m.Notes)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
