package dataset

import (
	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

// User is the owner principal every class belongs to.
type User struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

type Student struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	GradeLevel string `json:"grade_level,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// Class carries its members in StudentIDs. The store keeps membership as
// enrollment rows, so classes read back from a store have no StudentIDs.
type Class struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Subject    string   `json:"subject" validate:"required"`
	Capacity   int      `json:"capacity" validate:"gt=0"`
	Room       string   `json:"room,omitempty"`
	OwnerID    string   `json:"owner_id,omitempty"`
	StudentIDs []string `json:"student_ids,omitempty" validate:"dive,required"`
}

type Enrollment struct {
	ClassID   string `json:"class_id"`
	StudentID string `json:"student_id"`
}

type Schedule struct {
	ID        string `json:"id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
	Room      string `json:"room,omitempty"`
}

type ScheduleException struct {
	ID         string `json:"id" validate:"required"`
	ScheduleID string `json:"schedule_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason,omitempty"`
	Cancelled  bool   `json:"cancelled"`
	StartTime  string `json:"start_time,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime    string `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
}

type Test struct {
	ID       string          `json:"id" validate:"required"`
	ClassID  string          `json:"class_id" validate:"required"`
	Title    string          `json:"title" validate:"required"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
	MaxScore decimal.Decimal `json:"max_score"`
}

type TestResult struct {
	ID        string          `json:"id" validate:"required"`
	TestID    string          `json:"test_id" validate:"required"`
	StudentID string          `json:"student_id" validate:"required"`
	Score     decimal.Decimal `json:"score"`
}

type HomeworkAssignment struct {
	ID          string `json:"id" validate:"required"`
	ClassID     string `json:"class_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

type HomeworkSubmission struct {
	ID           string              `json:"id" validate:"required"`
	AssignmentID string              `json:"assignment_id" validate:"required"`
	StudentID    string              `json:"student_id" validate:"required"`
	SubmittedAt  string              `json:"submitted_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Content      string              `json:"content,omitempty"`
	Grade        decimal.NullDecimal `json:"grade"`
}

type AttendanceEntry struct {
	StudentID string           `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"oneof=present absent late excused"`
	Note      string           `json:"note,omitempty"`
}

// AttendanceRecord owns its entries; they are stored in attendance_entries
// keyed by (record_id, student_id).
type AttendanceRecord struct {
	ID      string            `json:"id" validate:"required"`
	ClassID string            `json:"class_id" validate:"required"`
	Date    string            `json:"date" validate:"required,datetime=2006-01-02"`
	Entries []AttendanceEntry `json:"entries" validate:"dive"`
}

type ClassNote struct {
	ID        string `json:"id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
	CreatedAt string `json:"created_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

type Meeting struct {
	ID          string `json:"id" validate:"required"`
	ClassID     string `json:"class_id" validate:"required"`
	StudentID   string `json:"student_id,omitempty"`
	Title       string `json:"title" validate:"required"`
	ScheduledAt string `json:"scheduled_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Notes       string `json:"notes,omitempty"`
}
