package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-records/internal/models"
	"github.com/noah-isme/student-records/internal/service"
	appErrors "github.com/noah-isme/student-records/pkg/errors"
)

type fakeRecords struct {
	students    []models.Student
	courses     []models.Course
	enrollments []models.Enrollment
	err         error

	lastName     string
	lastKind     models.StudentKind
	lastID       string
	lastCourseID int
	lastRawID    string
	resetCalls   int
}

func (f *fakeRecords) Students() []models.Student { return f.students }

func (f *fakeRecords) Student(id string) (*models.Student, error) {
	for _, st := range f.students {
		if st.ID == id {
			return &st, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
}

func (f *fakeRecords) AddStudent(_ context.Context, name string, kind models.StudentKind) (*models.Student, error) {
	f.lastName, f.lastKind = name, kind
	if f.err != nil {
		return nil, f.err
	}
	st := models.NewStudent("s-new", name, models.StudentKindDomestic, nil)
	return &st, nil
}

func (f *fakeRecords) EditStudentByID(_ context.Context, id, name string, kind models.StudentKind) (*models.Student, error) {
	f.lastID, f.lastName, f.lastKind = id, name, kind
	if f.err != nil {
		return nil, f.err
	}
	st := models.NewStudent(id, name, models.StudentKindInternational, nil)
	return &st, nil
}

func (f *fakeRecords) DeleteStudentByID(_ context.Context, id string) error {
	f.lastID = id
	return f.err
}

func (f *fakeRecords) EnrollStudentByID(_ context.Context, studentID string, courseID int) (*models.Enrollment, error) {
	f.lastID, f.lastCourseID = studentID, courseID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Enrollment{ID: "e-new", StudentID: studentID, CourseID: courseID}, nil
}

func (f *fakeRecords) Courses() []models.Course { return f.courses }

func (f *fakeRecords) AddCourse(_ context.Context, name string) (*models.Course, error) {
	f.lastName = name
	if f.err != nil {
		return nil, f.err
	}
	c := models.NewCourse(4, name)
	return &c, nil
}

func (f *fakeRecords) DeleteCourse(_ context.Context, rawID string) error {
	f.lastRawID = rawID
	return f.err
}

func (f *fakeRecords) Enrollments() []models.Enrollment { return f.enrollments }

func (f *fakeRecords) UnenrollStudent(_ context.Context, enrollmentID string) error {
	f.lastID = enrollmentID
	return f.err
}

func (f *fakeRecords) Roster() models.Roster {
	return models.Roster{Students: f.students, Courses: f.courses, Enrollments: f.enrollments}
}

func (f *fakeRecords) ResetAll(context.Context) error {
	f.resetCalls++
	return f.err
}

func newTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestStudentHandlerCreate(t *testing.T) {
	records := &fakeRecords{}
	handler := NewStudentHandler(records)
	c, rec := newTestContext(http.MethodPost, "/students", map[string]string{"name": "Ada", "kind": "domestic"})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.StudentKind("domestic"), records.lastKind)
	data := decodeData(t, rec)
	assert.Equal(t, "Ada (Domestic)", data["description"])
	assert.EqualValues(t, 1000, data["tuition_rate"])
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	handler := NewStudentHandler(&fakeRecords{})
	c, rec := newTestContext(http.MethodPost, "/students", `{"name":"Ada"}`)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", appErrors.Clone(appErrors.ErrValidation, "unknown student kind"), http.StatusBadRequest},
		{"not found", appErrors.Clone(appErrors.ErrNotFound, "student not found"), http.StatusNotFound},
		{"conflict", appErrors.Clone(appErrors.ErrConflict, "already enrolled"), http.StatusConflict},
		{"storage", appErrors.Storage(errors.New("disk full"), "students"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewStudentHandler(&fakeRecords{err: tc.err})
			c, rec := newTestContext(http.MethodPost, "/students/s1/enrollments", map[string]int{"course_id": 1})
			c.Params = gin.Params{{Key: "id", Value: "s1"}}

			handler.Enroll(c)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestStudentHandlerGet(t *testing.T) {
	records := &fakeRecords{students: []models.Student{models.NewStudent("s1", "Lin", models.StudentKindInternational, nil)}}
	handler := NewStudentHandler(records)

	c, rec := newTestContext(http.MethodGet, "/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lin (International)", decodeData(t, rec)["description"])

	c, rec = newTestContext(http.MethodGet, "/students/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerUpdateAndDelete(t *testing.T) {
	records := &fakeRecords{}
	handler := NewStudentHandler(records)

	c, rec := newTestContext(http.MethodPut, "/students/s1", map[string]string{"name": "Lin", "kind": "International"})
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Update(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", records.lastID)

	c, rec = newTestContext(http.MethodDelete, "/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStudentHandlerEnrollRequiresCourse(t *testing.T) {
	handler := NewStudentHandler(&fakeRecords{})
	c, rec := newTestContext(http.MethodPost, "/students/s1/enrollments", `{}`)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.Enroll(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCourseHandler(t *testing.T) {
	records := &fakeRecords{courses: models.DefaultCourses()}
	handler := NewCourseHandler(records)

	c, rec := newTestContext(http.MethodGet, "/courses", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":3`)

	c, rec = newTestContext(http.MethodPost, "/courses", map[string]string{"name": "Biology"})
	handler.Create(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 4, decodeData(t, rec)["id"])

	c, rec = newTestContext(http.MethodDelete, "/courses/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "abc", records.lastRawID)
}

func TestEnrollmentHandlerDelete(t *testing.T) {
	records := &fakeRecords{err: appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")}
	handler := NewEnrollmentHandler(records)

	c, rec := newTestContext(http.MethodDelete, "/enrollments/e1", nil)
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "e1", records.lastID)
}

func TestSystemHandler(t *testing.T) {
	records := &fakeRecords{courses: models.DefaultCourses()}
	handler := NewSystemHandler(records)

	c, rec := newTestContext(http.MethodGet, "/roster", nil)
	handler.Roster(c)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Len(t, data["courses"], 3)
	assert.NotNil(t, data["students"])

	c, rec = newTestContext(http.MethodPost, "/system/reset", nil)
	handler.Reset(c)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, records.resetCalls)
}

type fakeExporter struct {
	result *service.ExportResult
	err    error
	format string
}

func (f *fakeExporter) Roster(_ context.Context, format string) (*service.ExportResult, error) {
	f.format = format
	return f.result, f.err
}

func TestExportHandlerRoster(t *testing.T) {
	exporter := &fakeExporter{result: &service.ExportResult{Content: []byte("Student\n"), ContentType: "text/csv", Filename: "roster.csv"}}
	handler := NewExportHandler(exporter)

	c, rec := newTestContext(http.MethodGet, "/exports/roster?format=csv", nil)
	handler.Roster(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "roster.csv")
}

func TestExportHandlerUnknownFormat(t *testing.T) {
	handler := NewExportHandler(&fakeExporter{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")})

	c, rec := newTestContext(http.MethodGet, "/exports/roster?format=docx", nil)
	handler.Roster(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, func(context.Context) error { return errors.New("redis down") })
	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	handler = NewMetricsHandler(service.NewMetricsService(), nil)
	c, rec = newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
