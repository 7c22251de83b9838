package entitygraph

import "sync"

var seedPriority = []Collection{
	Users,
	Students,
	Classes,
	Enrollments,
	Schedules,
	ScheduleExceptions,
	Tests,
	TestResults,
	HomeworkAssignments,
	HomeworkSubmissions,
	AttendanceRecords,
	AttendanceEntries,
	ClassNotes,
	Meetings,
}

var clearPriority = []Collection{
	HomeworkSubmissions,
	HomeworkAssignments,
	TestResults,
	Tests,
	AttendanceEntries,
	AttendanceRecords,
	ClassNotes,
	Meetings,
	ScheduleExceptions,
	Schedules,
	Enrollments,
	Classes,
	Students,
	Users,
}

var classbookEdges = []Edge{
	{Child: Classes, Column: "owner_id", Parent: Users},
	{Child: Enrollments, Column: "class_id", Parent: Classes},
	{Child: Enrollments, Column: "student_id", Parent: Students},
	{Child: Schedules, Column: "class_id", Parent: Classes},
	{Child: ScheduleExceptions, Column: "schedule_id", Parent: Schedules},
	{Child: Tests, Column: "class_id", Parent: Classes},
	{Child: TestResults, Column: "test_id", Parent: Tests},
	{Child: TestResults, Column: "student_id", Parent: Students},
	{Child: HomeworkAssignments, Column: "class_id", Parent: Classes},
	{Child: HomeworkSubmissions, Column: "assignment_id", Parent: HomeworkAssignments},
	{Child: HomeworkSubmissions, Column: "student_id", Parent: Students},
	{Child: AttendanceRecords, Column: "class_id", Parent: Classes},
	{Child: AttendanceEntries, Column: "record_id", Parent: AttendanceRecords},
	{Child: AttendanceEntries, Column: "student_id", Parent: Students},
	{Child: ClassNotes, Column: "class_id", Parent: Classes},
	{Child: Meetings, Column: "class_id", Parent: Classes},
	{Child: Meetings, Column: "student_id", Parent: Students, Nullable: true},
}

type orders struct {
	seed  []Collection
	clear []Collection
}

var classbook = sync.OnceValue(func() *Graph {
	return New(seedPriority, clearPriority, classbookEdges)
})

var classbookOrders = sync.OnceValue(func() orders {
	g := classbook()
	if err := g.Validate(); err != nil {
		panic(err)
	}
	seed, err := g.SeedOrder()
	if err != nil {
		panic(err)
	}
	clear, err := g.ClearOrder()
	if err != nil {
		panic(err)
	}
	return orders{seed: seed, clear: clear}
})

// Classbook is the dependency graph of the classbook store.
func Classbook() *Graph {
	return classbook()
}

// SeedOrder is the insertion order of the classbook store.
func SeedOrder() []Collection {
	return append([]Collection(nil), classbookOrders().seed...)
}

// ClearOrder is the deletion order of the classbook store.
func ClearOrder() []Collection {
	return append([]Collection(nil), classbookOrders().clear...)
}

// Edges lists every foreign key of the classbook store.
func Edges() []Edge {
	return classbook().Edges()
}
