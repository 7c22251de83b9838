package itf

import (
	"github.com/shopspring/decimal"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
)

// Owner is the principal seeded by the fixtures.
func Owner() dataset.User {
	return dataset.User{ID: "owner-1", Name: "Test Owner", Email: "owner@example.com"}
}

// SampleDataset returns a small dataset that touches every collection.
func SampleDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Label: "sample",
		Students: []dataset.Student{
			{ID: "s1", Name: "Ada Lovelace", Email: "ada@example.com", GradeLevel: "10"},
			{ID: "s2", Name: "Alan Turing", Email: "alan@example.com", Phone: "+1-555-0100"},
			{ID: "s3", Name: "Grace Hopper", Email: "grace@example.com"},
		},
		Classes: []dataset.Class{
			{ID: "c1", Name: "Algebra", Subject: "math", Capacity: 30, Room: "101", StudentIDs: []string{"s1", "s2"}},
			{ID: "c2", Name: "Physics", Subject: "science", Capacity: 20, StudentIDs: []string{"s3"}},
		},
		Schedules: []dataset.Schedule{
			{ID: "sch1", ClassID: "c1", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:30", Room: "101"},
			{ID: "sch2", ClassID: "c2", DayOfWeek: 3, StartTime: "13:00", EndTime: "14:00"},
		},
		ScheduleExceptions: []dataset.ScheduleException{
			{ID: "ex1", ScheduleID: "sch1", Date: "2024-03-04", Reason: "holiday", Cancelled: true},
		},
		Tests: []dataset.Test{
			{ID: "t1", ClassID: "c1", Title: "Midterm", Date: "2024-03-10", MaxScore: decimal.NewFromInt(100)},
		},
		TestResults: []dataset.TestResult{
			{ID: "tr1", TestID: "t1", StudentID: "s1", Score: decimal.RequireFromString("92.5")},
			{ID: "tr2", TestID: "t1", StudentID: "s2", Score: decimal.NewFromInt(78)},
		},
		HomeworkAssignments: []dataset.HomeworkAssignment{
			{ID: "hw1", ClassID: "c1", Title: "Quadratics", Description: "Exercises 1-10", DueDate: "2024-03-15"},
		},
		HomeworkSubmissions: []dataset.HomeworkSubmission{
			{
				ID: "sub1", AssignmentID: "hw1", StudentID: "s1", SubmittedAt: "2024-03-14T18:30:00Z",
				Content: "done", Grade: decimal.NewNullDecimal(decimal.RequireFromString("9.5")),
			},
			{ID: "sub2", AssignmentID: "hw1", StudentID: "s2", SubmittedAt: "2024-03-15T08:00:00Z"},
		},
		AttendanceRecords: []dataset.AttendanceRecord{
			{
				ID: "ar1", ClassID: "c1", Date: "2024-03-04",
				Entries: []dataset.AttendanceEntry{
					{StudentID: "s1", Status: dataset.AttendancePresent},
					{StudentID: "s2", Status: dataset.AttendanceLate, Note: "bus"},
				},
			},
		},
		ClassNotes: []dataset.ClassNote{
			{ID: "n1", ClassID: "c2", Content: "Lab safety briefing", CreatedAt: "2024-03-01T10:00:00Z"},
		},
		Meetings: []dataset.Meeting{
			{ID: "m1", ClassID: "c1", StudentID: "s2", Title: "Progress review", ScheduledAt: "2024-03-20T16:00:00Z"},
			{ID: "m2", ClassID: "c2", Title: "Parents evening", ScheduledAt: "2024-03-21T18:00:00Z", Notes: "all welcome"},
		},
	}
}
