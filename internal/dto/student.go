package dto

import "github.com/noah-isme/student-records/internal/models"

// StudentRequest is the body for creating or replacing a student.
type StudentRequest struct {
	Name string `json:"name" binding:"required"`
	Kind string `json:"kind" binding:"required"`
}

// EnrollRequest enrolls a student in a course.
type EnrollRequest struct {
	CourseID int `json:"course_id" binding:"required,gt=0"`
}

// StudentResponse adds the derived fields to a student.
type StudentResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Kind            string          `json:"kind"`
	TuitionRate     int             `json:"tuition_rate"`
	Description     string          `json:"description"`
	EnrolledCourses []models.Course `json:"enrolled_courses"`
}

// NewStudentResponse maps a student into its API representation.
func NewStudentResponse(st models.Student) StudentResponse {
	courses := st.EnrolledCourses
	if courses == nil {
		courses = []models.Course{}
	}
	return StudentResponse{
		ID:              st.ID,
		Name:            st.Name,
		Kind:            string(st.Kind),
		TuitionRate:     st.TuitionRate(),
		Description:     st.Describe(),
		EnrolledCourses: courses,
	}
}

// NewStudentResponses maps a list of students.
func NewStudentResponses(students []models.Student) []StudentResponse {
	out := make([]StudentResponse, len(students))
	for i, st := range students {
		out[i] = NewStudentResponse(st)
	}
	return out
}
