package dto

import "github.com/noah-isme/student-records/internal/models"

// RosterResponse is the full snapshot of every collection.
type RosterResponse struct {
	Students    []StudentResponse   `json:"students"`
	Courses     []models.Course     `json:"courses"`
	Enrollments []models.Enrollment `json:"enrollments"`
}

// NewRosterResponse maps a roster snapshot.
func NewRosterResponse(r models.Roster) RosterResponse {
	courses := r.Courses
	if courses == nil {
		courses = []models.Course{}
	}
	enrollments := r.Enrollments
	if enrollments == nil {
		enrollments = []models.Enrollment{}
	}
	return RosterResponse{
		Students:    NewStudentResponses(r.Students),
		Courses:     courses,
		Enrollments: enrollments,
	}
}
