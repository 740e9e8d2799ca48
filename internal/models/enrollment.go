package models

import "time"

// Enrollment records a student taking a course. StudentLabel and CourseName are
// denormalized copies kept in sync by the record service.
type Enrollment struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	CourseID     int       `json:"course_id"`
	StudentLabel string    `json:"student_label"`
	CourseName   string    `json:"course_name"`
	Date         time.Time `json:"date"`
}

// Roster is a point-in-time copy of every collection.
type Roster struct {
	Students    []Student    `json:"students"`
	Courses     []Course     `json:"courses"`
	Enrollments []Enrollment `json:"enrollments"`
}
