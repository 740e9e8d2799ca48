package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/student-records/internal/models"
)

func TestNewStudentResponse(t *testing.T) {
	st := models.NewStudent("s1", "Lin", models.StudentKindInternational, nil)

	resp := NewStudentResponse(st)

	assert.Equal(t, "International", resp.Kind)
	assert.Equal(t, 1500, resp.TuitionRate)
	assert.Equal(t, "Lin (International)", resp.Description)
	assert.NotNil(t, resp.EnrolledCourses)
}

func TestNewRosterResponseNeverNil(t *testing.T) {
	resp := NewRosterResponse(models.Roster{})

	assert.NotNil(t, resp.Students)
	assert.NotNil(t, resp.Courses)
	assert.NotNil(t, resp.Enrollments)
}
