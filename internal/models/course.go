package models

// Course is an offering students can enroll in. IDs are positive and never reused
// while a higher id exists.
type Course struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NewCourse builds a course value.
func NewCourse(id int, name string) Course {
	return Course{ID: id, Name: name}
}

// DefaultCourses returns the catalogue seeded into an empty store.
func DefaultCourses() []Course {
	return []Course{
		NewCourse(1, "Mathematics"),
		NewCourse(2, "Computer Science"),
		NewCourse(3, "Physics"),
	}
}
