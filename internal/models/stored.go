package models

// Store keys for the persisted collections.
const (
	KeyStudents    = "students"
	KeyCourses     = "courses"
	KeyEnrollments = "enrollments"
)

// StoredCourse is the plain form of a course, as persisted.
type StoredCourse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StoredStudent is the plain form of a student. Older records carry the kind in Type.
type StoredStudent struct {
	ID              string         `json:"id,omitempty"`
	Name            string         `json:"name"`
	Kind            string         `json:"kind,omitempty"`
	Type            string         `json:"type,omitempty"`
	EnrolledCourses []StoredCourse `json:"enrolled_courses,omitempty"`
}

// StoredEnrollment is the plain form of an enrollment. Legacy records may lack
// the id and foreign keys and carry only the display labels.
type StoredEnrollment struct {
	ID           string `json:"id,omitempty"`
	StudentID    string `json:"student_id,omitempty"`
	CourseID     int    `json:"course_id,omitempty"`
	StudentLabel string `json:"student_label"`
	CourseName   string `json:"course_name"`
	Date         string `json:"date,omitempty"`
}
