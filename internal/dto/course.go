package dto

// CourseRequest creates a course.
type CourseRequest struct {
	Name string `json:"name" binding:"required"`
}
