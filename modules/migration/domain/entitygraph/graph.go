// Package entitygraph describes the persisted collections of a classbook store
// and the "must exist before" edges between them.
package entitygraph

import (
	"fmt"
	"sort"
	"strings"
)

type Collection string

const (
	Users               Collection = "users"
	Students            Collection = "students"
	Classes             Collection = "classes"
	Enrollments         Collection = "enrollments"
	Schedules           Collection = "schedules"
	ScheduleExceptions  Collection = "schedule_exceptions"
	Tests               Collection = "tests"
	TestResults         Collection = "test_results"
	HomeworkAssignments Collection = "homework_assignments"
	HomeworkSubmissions Collection = "homework_submissions"
	AttendanceRecords   Collection = "attendance_records"
	AttendanceEntries   Collection = "attendance_entries"
	ClassNotes          Collection = "class_notes"
	Meetings            Collection = "meetings"
)

// Edge says that every non-null Column of Child must reference an id in Parent.
type Edge struct {
	Child    Collection `json:"child"`
	Column   string     `json:"column"`
	Parent   Collection `json:"parent"`
	Nullable bool       `json:"nullable,omitempty"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.id", e.Child, e.Column, e.Parent)
}

// Graph is a set of collections plus the dependency edges between them.
// Seed and clear priorities break ties between collections that are ready at
// the same time, so both orders are deterministic.
type Graph struct {
	collections   []Collection
	edges         []Edge
	seedPriority  map[Collection]int
	clearPriority map[Collection]int
}

func New(seedPriority, clearPriority []Collection, edges []Edge) *Graph {
	return &Graph{
		collections:   append([]Collection(nil), seedPriority...),
		edges:         append([]Edge(nil), edges...),
		seedPriority:  rank(seedPriority),
		clearPriority: rank(clearPriority),
	}
}

func rank(cs []Collection) map[Collection]int {
	out := make(map[Collection]int, len(cs))
	for i, c := range cs {
		out[c] = i
	}
	return out
}

func (g *Graph) Collections() []Collection {
	return append([]Collection(nil), g.collections...)
}

func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Parents returns the distinct collections c references.
func (g *Graph) Parents(c Collection) []Collection {
	seen := map[Collection]bool{}
	var out []Collection
	for _, e := range g.edges {
		if e.Child != c || e.Parent == c || seen[e.Parent] {
			continue
		}
		seen[e.Parent] = true
		out = append(out, e.Parent)
	}
	g.sortBy(out, g.seedPriority)
	return out
}

// Validate rejects edges that name unknown collections and dependency cycles.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.seedPriority[e.Child]; !ok {
			return fmt.Errorf("edge %s: unknown child collection", e)
		}
		if _, ok := g.seedPriority[e.Parent]; !ok {
			return fmt.Errorf("edge %s: unknown parent collection", e)
		}
	}
	for _, c := range g.collections {
		if _, ok := g.clearPriority[c]; !ok {
			return fmt.Errorf("collection %s has no clear priority", c)
		}
	}
	_, err := g.SeedOrder()
	return err
}

// SeedOrder returns the collections so that every parent precedes its children.
func (g *Graph) SeedOrder() ([]Collection, error) {
	return g.order(g.Parents, g.seedPriority)
}

// ClearOrder returns the collections so that every child precedes its parents.
func (g *Graph) ClearOrder() ([]Collection, error) {
	return g.order(g.Children, g.clearPriority)
}

// Children returns the distinct collections that reference c.
func (g *Graph) Children(c Collection) []Collection {
	seen := map[Collection]bool{}
	var out []Collection
	for _, e := range g.edges {
		if e.Parent != c || e.Child == c || seen[e.Child] {
			continue
		}
		seen[e.Child] = true
		out = append(out, e.Child)
	}
	g.sortBy(out, g.seedPriority)
	return out
}

// order is Kahn's algorithm: a collection is emitted once everything returned
// by before(c) has been emitted.
func (g *Graph) order(before func(Collection) []Collection, priority map[Collection]int) ([]Collection, error) {
	waiting := make(map[Collection]int, len(g.collections))
	unblocks := make(map[Collection][]Collection, len(g.collections))
	for _, c := range g.collections {
		deps := before(c)
		waiting[c] = len(deps)
		for _, d := range deps {
			unblocks[d] = append(unblocks[d], c)
		}
	}

	var ready []Collection
	for _, c := range g.collections {
		if waiting[c] == 0 {
			ready = append(ready, c)
		}
	}

	out := make([]Collection, 0, len(g.collections))
	for len(ready) > 0 {
		g.sortBy(ready, priority)
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, c := range unblocks[next] {
			waiting[c]--
			if waiting[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(out) != len(g.collections) {
		var stuck []string
		for _, c := range g.collections {
			if waiting[c] > 0 {
				stuck = append(stuck, string(c))
			}
		}
		return nil, fmt.Errorf("dependency cycle among: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}

func (g *Graph) sortBy(cs []Collection, priority map[Collection]int) {
	sort.SliceStable(cs, func(i, j int) bool {
		return priority[cs[i]] < priority[cs[j]]
	})
}
