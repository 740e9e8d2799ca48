package models

import (
	"fmt"
	"strings"
)

// StudentKind distinguishes the tuition category of a student.
type StudentKind string

// Supported student kinds.
const (
	StudentKindDomestic      StudentKind = "Domestic"
	StudentKindInternational StudentKind = "International"
)

// Tuition rates per kind.
const (
	DomesticTuitionRate      = 1000
	InternationalTuitionRate = 1500
)

// ParseStudentKind accepts a kind name in any letter case.
func ParseStudentKind(raw string) (StudentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "domestic":
		return StudentKindDomestic, true
	case "international":
		return StudentKindInternational, true
	}
	return "", false
}

// Valid reports whether k is one of the known kinds.
func (k StudentKind) Valid() bool {
	return k == StudentKindDomestic || k == StudentKindInternational
}

// TuitionRate returns the rate charged for the kind, zero when unknown.
func TuitionRate(kind StudentKind) int {
	switch kind {
	case StudentKindDomestic:
		return DomesticTuitionRate
	case StudentKindInternational:
		return InternationalTuitionRate
	}
	return 0
}

// Student is a learner with the courses they were enrolled in, captured as
// snapshots at enrollment time.
type Student struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Kind            StudentKind `json:"kind"`
	EnrolledCourses []Course    `json:"enrolled_courses"`
}

// NewStudent builds a student, copying the course list.
func NewStudent(id, name string, kind StudentKind, courses []Course) Student {
	enrolled := make([]Course, len(courses))
	copy(enrolled, courses)
	return Student{ID: id, Name: name, Kind: kind, EnrolledCourses: enrolled}
}

// Describe renders the student as "<name> (<kind>)". Enrollments keep this as their label.
func (s Student) Describe() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Kind)
}

// TuitionRate returns the rate for the student's kind.
func (s Student) TuitionRate() int {
	return TuitionRate(s.Kind)
}

// HasCourse reports whether the course is already in the enrolled list.
func (s Student) HasCourse(courseID int) bool {
	for _, c := range s.EnrolledCourses {
		if c.ID == courseID {
			return true
		}
	}
	return false
}

// WithoutCourse returns a copy of the student with the course removed.
func (s Student) WithoutCourse(courseID int) Student {
	kept := make([]Course, 0, len(s.EnrolledCourses))
	for _, c := range s.EnrolledCourses {
		if c.ID != courseID {
			kept = append(kept, c)
		}
	}
	s.EnrolledCourses = kept
	return s
}

// Clone returns a deep copy.
func (s Student) Clone() Student {
	return NewStudent(s.ID, s.Name, s.Kind, s.EnrolledCourses)
}
