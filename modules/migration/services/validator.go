package services

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/classbook/modules/migration/domain/aggregates/dataset"
	"github.com/iota-uz/classbook/modules/migration/domain/entitygraph"
)

// ValidationError pins one problem to an entity and one of its fields.
type ValidationError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s %s", e.Entity, e.ID, e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	switch len(es) {
	case 0:
		return "no validation errors"
	case 1:
		return es[0].Error()
	}
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(es), strings.Join(parts, "; "))
}

// Strings renders every error on its own.
func (es ValidationErrors) Strings() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Error()
	}
	return out
}

// Validator checks a dataset before anything touches the store. It never
// modifies its input and reports every problem it finds.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns nil when ds can be migrated.
func (v *Validator) Validate(ds *dataset.Dataset) ValidationErrors {
	if ds == nil {
		return ValidationErrors{{Entity: "dataset", Field: "dataset", Message: "is missing"}}
	}
	c := &collector{v: v.validate}

	students := idSet(ds.Students, func(s dataset.Student) string { return s.ID })
	classes := idSet(ds.Classes, func(c dataset.Class) string { return c.ID })
	schedules := idSet(ds.Schedules, func(s dataset.Schedule) string { return s.ID })
	assignments := idSet(ds.HomeworkAssignments, func(a dataset.HomeworkAssignment) string { return a.ID })
	tests := make(map[string]dataset.Test, len(ds.Tests))
	for _, t := range ds.Tests {
		tests[t.ID] = t
	}

	for _, s := range ds.Students {
		c.fields(entitygraph.Students, s.ID, s)
	}

	for _, cl := range ds.Classes {
		c.fields(entitygraph.Classes, cl.ID, cl)
		seen := make(map[string]bool, len(cl.StudentIDs))
		for _, sid := range cl.StudentIDs {
			if sid == "" {
				continue
			}
			if seen[sid] {
				c.add(entitygraph.Classes, cl.ID, "student_ids", fmt.Sprintf("lists student %q more than once", sid))
				continue
			}
			seen[sid] = true
			c.ref(entitygraph.Classes, cl.ID, "student_ids", entitygraph.Students, sid, students)
		}
		if cl.Capacity > 0 && len(cl.StudentIDs) > cl.Capacity {
			c.add(entitygraph.Classes, cl.ID, "student_ids",
				fmt.Sprintf("has %d members, above capacity %d", len(cl.StudentIDs), cl.Capacity))
		}
	}

	for _, s := range ds.Schedules {
		c.fields(entitygraph.Schedules, s.ID, s)
		c.ref(entitygraph.Schedules, s.ID, "class_id", entitygraph.Classes, s.ClassID, classes)
		c.timeRange(entitygraph.Schedules, s.ID, s.StartTime, s.EndTime)
	}

	for _, e := range ds.ScheduleExceptions {
		c.fields(entitygraph.ScheduleExceptions, e.ID, e)
		c.ref(entitygraph.ScheduleExceptions, e.ID, "schedule_id", entitygraph.Schedules, e.ScheduleID, schedules)
		if e.StartTime != "" && e.EndTime != "" {
			c.timeRange(entitygraph.ScheduleExceptions, e.ID, e.StartTime, e.EndTime)
		}
	}

	for _, t := range ds.Tests {
		c.fields(entitygraph.Tests, t.ID, t)
		c.ref(entitygraph.Tests, t.ID, "class_id", entitygraph.Classes, t.ClassID, classes)
		if !t.MaxScore.IsPositive() {
			c.add(entitygraph.Tests, t.ID, "max_score", "must be greater than 0")
		}
	}

	for _, r := range ds.TestResults {
		c.fields(entitygraph.TestResults, r.ID, r)
		c.ref(entitygraph.TestResults, r.ID, "student_id", entitygraph.Students, r.StudentID, students)
		if r.Score.IsNegative() {
			c.add(entitygraph.TestResults, r.ID, "score", "must not be negative")
		}
		if r.TestID == "" {
			continue
		}
		t, ok := tests[r.TestID]
		if !ok {
			c.missing(entitygraph.TestResults, r.ID, "test_id", entitygraph.Tests, r.TestID)
			continue
		}
		if t.MaxScore.IsPositive() && r.Score.GreaterThan(t.MaxScore) {
			c.add(entitygraph.TestResults, r.ID, "score",
				fmt.Sprintf("%s exceeds max score %s of test %q", r.Score, t.MaxScore, t.ID))
		}
	}

	for _, a := range ds.HomeworkAssignments {
		c.fields(entitygraph.HomeworkAssignments, a.ID, a)
		c.ref(entitygraph.HomeworkAssignments, a.ID, "class_id", entitygraph.Classes, a.ClassID, classes)
	}

	for _, s := range ds.HomeworkSubmissions {
		c.fields(entitygraph.HomeworkSubmissions, s.ID, s)
		c.ref(entitygraph.HomeworkSubmissions, s.ID, "assignment_id", entitygraph.HomeworkAssignments, s.AssignmentID, assignments)
		c.ref(entitygraph.HomeworkSubmissions, s.ID, "student_id", entitygraph.Students, s.StudentID, students)
		if s.Grade.Valid && s.Grade.Decimal.LessThan(decimal.Zero) {
			c.add(entitygraph.HomeworkSubmissions, s.ID, "grade", "must not be negative")
		}
	}

	for _, r := range ds.AttendanceRecords {
		c.fields(entitygraph.AttendanceRecords, r.ID, r)
		c.ref(entitygraph.AttendanceRecords, r.ID, "class_id", entitygraph.Classes, r.ClassID, classes)
		seen := make(map[string]bool, len(r.Entries))
		for i, e := range r.Entries {
			field := fmt.Sprintf("entries[%d].student_id", i)
			if e.StudentID == "" {
				continue
			}
			if seen[e.StudentID] {
				c.add(entitygraph.AttendanceRecords, r.ID, field, fmt.Sprintf("repeats student %q", e.StudentID))
				continue
			}
			seen[e.StudentID] = true
			c.ref(entitygraph.AttendanceRecords, r.ID, field, entitygraph.Students, e.StudentID, students)
		}
	}

	for _, n := range ds.ClassNotes {
		c.fields(entitygraph.ClassNotes, n.ID, n)
		c.ref(entitygraph.ClassNotes, n.ID, "class_id", entitygraph.Classes, n.ClassID, classes)
	}

	for _, m := range ds.Meetings {
		c.fields(entitygraph.Meetings, m.ID, m)
		c.ref(entitygraph.Meetings, m.ID, "class_id", entitygraph.Classes, m.ClassID, classes)
		if m.StudentID != "" {
			c.ref(entitygraph.Meetings, m.ID, "student_id", entitygraph.Students, m.StudentID, students)
		}
	}

	if len(c.errs) == 0 {
		return nil
	}
	return c.errs
}

type collector struct {
	v    *validator.Validate
	errs ValidationErrors
}

func (c *collector) add(entity entitygraph.Collection, id, field, msg string) {
	c.errs = append(c.errs, ValidationError{Entity: string(entity), ID: id, Field: field, Message: msg})
}

// fields runs the struct tag rules of v.
func (c *collector) fields(entity entitygraph.Collection, id string, v any) {
	err := c.v.Struct(v)
	if err == nil {
		return
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		c.add(entity, id, "", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		c.add(entity, id, fieldPath(fe), describe(fe))
	}
}

// ref records a dangling reference when id is set but absent from known.
// Empty ids are reported by the required rules.
func (c *collector) ref(entity entitygraph.Collection, id, field string, target entitygraph.Collection, ref string, known map[string]struct{}) {
	if ref == "" {
		return
	}
	if _, ok := known[ref]; !ok {
		c.missing(entity, id, field, target, ref)
	}
}

func (c *collector) missing(entity entitygraph.Collection, id, field string, target entitygraph.Collection, ref string) {
	c.add(entity, id, field, fmt.Sprintf("references unknown %s %q", target, ref))
}

func (c *collector) timeRange(entity entitygraph.Collection, id, start, end string) {
	from, err1 := time.Parse(dataset.TimeLayout, start)
	to, err2 := time.Parse(dataset.TimeLayout, end)
	if err1 != nil || err2 != nil {
		// format errors come from the field rules
		return
	}
	if !to.After(from) {
		c.add(entity, id, "end_time", fmt.Sprintf("%s is not after start_time %s", end, start))
	}
}

// fieldPath drops the struct name from the namespace, keeping nested paths
// such as entries[0].status.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return fmt.Sprintf("%q is not a valid email", fe.Value())
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fe.Value(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%q does not match layout %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func idSet[T any](rows []T, id func(T) string) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		out[id(r)] = struct{}{}
	}
	return out
}
