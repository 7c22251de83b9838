package dataset

import (
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
)

// Dataset is the complete input of one migration attempt.
type Dataset struct {
	Label               string               `json:"label,omitempty"`
	Students            []Student            `json:"students"`
	Classes             []Class              `json:"classes"`
	Schedules           []Schedule           `json:"schedules"`
	ScheduleExceptions  []ScheduleException  `json:"schedule_exceptions"`
	Tests               []Test               `json:"tests"`
	TestResults         []TestResult         `json:"test_results"`
	HomeworkAssignments []HomeworkAssignment `json:"homework_assignments"`
	HomeworkSubmissions []HomeworkSubmission `json:"homework_submissions"`
	AttendanceRecords   []AttendanceRecord   `json:"attendance_records"`
	ClassNotes          []ClassNote          `json:"class_notes"`
	Meetings            []Meeting            `json:"meetings"`
}

// IsEmpty reports whether every collection of the dataset is empty.
func (d *Dataset) IsEmpty() bool {
	for _, n := range d.Snapshot(User{}).Counts() {
		if n > 0 {
			return false
		}
	}
	return true
}

// Enrollments derives one join row per student-in-class pair, in class order.
func (d *Dataset) Enrollments() []Enrollment {
	var out []Enrollment
	for _, c := range d.Classes {
		for _, sid := range c.StudentIDs {
			out = append(out, Enrollment{ClassID: c.ID, StudentID: sid})
		}
	}
	return out
}

// Snapshot turns the dataset into the rows it will persist. The owner is
// attached to every class; an owner with an empty id is left out, which is
// only useful for counting.
func (d *Dataset) Snapshot(owner User) *Snapshot {
	s := &Snapshot{
		Students:            d.Students,
		Schedules:           d.Schedules,
		ScheduleExceptions:  d.ScheduleExceptions,
		Tests:               d.Tests,
		TestResults:         d.TestResults,
		HomeworkAssignments: d.HomeworkAssignments,
		HomeworkSubmissions: d.HomeworkSubmissions,
		AttendanceRecords:   d.AttendanceRecords,
		ClassNotes:          d.ClassNotes,
		Meetings:            d.Meetings,
		Enrollments:         d.Enrollments(),
	}
	if owner.ID != "" {
		s.Users = []User{owner}
	}
	s.Classes = make([]Class, len(d.Classes))
	for i, c := range d.Classes {
		c.OwnerID = owner.ID
		c.StudentIDs = nil
		s.Classes[i] = c
	}
	return s
}

// Snapshot is every persisted row of a store, grouped by table. Attendance
// entries stay nested in their record.
type Snapshot struct {
	Users               []User               `json:"users"`
	Students            []Student            `json:"students"`
	Classes             []Class              `json:"classes"`
	Enrollments         []Enrollment         `json:"enrollments"`
	Schedules           []Schedule           `json:"schedules"`
	ScheduleExceptions  []ScheduleException  `json:"schedule_exceptions"`
	Tests               []Test               `json:"tests"`
	TestResults         []TestResult         `json:"test_results"`
	HomeworkAssignments []HomeworkAssignment `json:"homework_assignments"`
	HomeworkSubmissions []HomeworkSubmission `json:"homework_submissions"`
	AttendanceRecords   []AttendanceRecord   `json:"attendance_records"`
	ClassNotes          []ClassNote          `json:"class_notes"`
	Meetings            []Meeting            `json:"meetings"`
}

func (s *Snapshot) entries() int {
	n := 0
	for _, r := range s.AttendanceRecords {
		n += len(r.Entries)
	}
	return n
}

// Counts returns the number of rows per table.
func (s *Snapshot) Counts() Counts {
	return Counts{
		entitygraph.Users:               len(s.Users),
		entitygraph.Students:            len(s.Students),
		entitygraph.Classes:             len(s.Classes),
		entitygraph.Enrollments:         len(s.Enrollments),
		entitygraph.Schedules:           len(s.Schedules),
		entitygraph.ScheduleExceptions:  len(s.ScheduleExceptions),
		entitygraph.Tests:               len(s.Tests),
		entitygraph.TestResults:         len(s.TestResults),
		entitygraph.HomeworkAssignments: len(s.HomeworkAssignments),
		entitygraph.HomeworkSubmissions: len(s.HomeworkSubmissions),
		entitygraph.AttendanceRecords:   len(s.AttendanceRecords),
		entitygraph.AttendanceEntries:   s.entries(),
		entitygraph.ClassNotes:          len(s.ClassNotes),
		entitygraph.Meetings:            len(s.Meetings),
	}
}

// Counts maps a collection to its number of rows.
type Counts map[entitygraph.Collection]int

// Total sums the counts of every collection.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Equal compares two counts treating missing collections as zero.
func (c Counts) Equal(other Counts) bool {
	for k, v := range c {
		if other[k] != v {
			return false
		}
	}
	for k, v := range other {
		if c[k] != v {
			return false
		}
	}
	return true
}
