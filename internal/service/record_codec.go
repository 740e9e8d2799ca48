package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/student-records/internal/models"
)

// loadResult carries reconstructed collections plus what had to be repaired.
type loadResult struct {
	students    []models.Student
	courses     []models.Course
	enrollments []models.Enrollment
	dirty       map[string]bool
	dropped     int
}

func (r *loadResult) markDirty(key string) {
	if r.dirty == nil {
		r.dirty = make(map[string]bool)
	}
	r.dirty[key] = true
}

func decodeCourses(raw []byte) ([]models.Course, error) {
	var stored []models.StoredCourse
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	seen := make(map[int]struct{}, len(stored))
	courses := make([]models.Course, 0, len(stored))
	for _, c := range stored {
		if c.ID <= 0 {
			return nil, fmt.Errorf("decode courses: invalid course id %d", c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("decode courses: duplicate course id %d", c.ID)
		}
		seen[c.ID] = struct{}{}
		courses = append(courses, models.NewCourse(c.ID, c.Name))
	}
	return courses, nil
}

// decodeStudents rebuilds typed students. Missing or duplicate ids get a fresh
// one and duplicate course snapshots are dropped; both mark the result dirty.
func decodeStudents(raw []byte, newID func() string, res *loadResult) error {
	var stored []models.StoredStudent
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode students: %w", err)
	}
	seen := make(map[string]struct{}, len(stored))
	res.students = make([]models.Student, 0, len(stored))
	for i, st := range stored {
		rawKind := st.Kind
		if rawKind == "" {
			rawKind = st.Type
		}
		kind, ok := models.ParseStudentKind(rawKind)
		if !ok {
			return fmt.Errorf("decode students: record %d has unknown kind %q", i, rawKind)
		}
		if st.Kind == "" || string(kind) != st.Kind {
			res.markDirty(models.KeyStudents)
		}

		id := st.ID
		if _, dup := seen[id]; id == "" || dup {
			id = newID()
			res.markDirty(models.KeyStudents)
		}
		seen[id] = struct{}{}

		courses := make([]models.Course, 0, len(st.EnrolledCourses))
		courseSeen := make(map[int]struct{}, len(st.EnrolledCourses))
		for _, c := range st.EnrolledCourses {
			if _, dup := courseSeen[c.ID]; dup {
				res.markDirty(models.KeyStudents)
				continue
			}
			courseSeen[c.ID] = struct{}{}
			courses = append(courses, models.NewCourse(c.ID, c.Name))
		}
		res.students = append(res.students, models.NewStudent(id, st.Name, kind, courses))
	}
	return nil
}

// decodeEnrollments assigns missing ids, backfills legacy foreign keys from the
// display labels and drops records that still do not resolve, or that repeat a
// live (student, course) pair. Students and courses must already be decoded.
func decodeEnrollments(raw []byte, newID func() string, res *loadResult) error {
	var stored []models.StoredEnrollment
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode enrollments: %w", err)
	}

	studentIDs := make(map[string]struct{}, len(res.students))
	byLabel := make(map[string]string, len(res.students))
	for _, st := range res.students {
		studentIDs[st.ID] = struct{}{}
		if _, taken := byLabel[st.Describe()]; !taken {
			byLabel[st.Describe()] = st.ID
		}
	}
	courseIDs := make(map[int]struct{}, len(res.courses))
	byName := make(map[string]int, len(res.courses))
	for _, c := range res.courses {
		courseIDs[c.ID] = struct{}{}
		if _, taken := byName[c.Name]; !taken {
			byName[c.Name] = c.ID
		}
	}

	pairs := make(map[string]struct{}, len(stored))
	res.enrollments = make([]models.Enrollment, 0, len(stored))
	for i, se := range stored {
		date, err := parseEnrollmentDate(se.Date)
		if err != nil {
			return fmt.Errorf("decode enrollments: record %d: %w", i, err)
		}
		e := models.Enrollment{
			ID:           se.ID,
			StudentID:    se.StudentID,
			CourseID:     se.CourseID,
			StudentLabel: se.StudentLabel,
			CourseName:   se.CourseName,
			Date:         date,
		}
		if e.ID == "" {
			e.ID = newID()
			res.markDirty(models.KeyEnrollments)
		}
		if e.StudentID == "" {
			if id, ok := byLabel[e.StudentLabel]; ok {
				e.StudentID = id
				res.markDirty(models.KeyEnrollments)
			}
		}
		if e.CourseID == 0 {
			if id, ok := byName[e.CourseName]; ok {
				e.CourseID = id
				res.markDirty(models.KeyEnrollments)
			}
		}

		_, studentOK := studentIDs[e.StudentID]
		_, courseOK := courseIDs[e.CourseID]
		pair := fmt.Sprintf("%s|%d", e.StudentID, e.CourseID)
		_, repeated := pairs[pair]
		if !studentOK || !courseOK || repeated {
			res.dropped++
			res.markDirty(models.KeyEnrollments)
			continue
		}
		pairs[pair] = struct{}{}
		res.enrollments = append(res.enrollments, e)
	}
	return nil
}

func parseEnrollmentDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t.UTC(), nil
}

func encodeStudents(students []models.Student) ([]byte, error) {
	stored := make([]models.StoredStudent, len(students))
	for i, st := range students {
		courses := make([]models.StoredCourse, len(st.EnrolledCourses))
		for j, c := range st.EnrolledCourses {
			courses[j] = models.StoredCourse{ID: c.ID, Name: c.Name}
		}
		stored[i] = models.StoredStudent{ID: st.ID, Name: st.Name, Kind: string(st.Kind), EnrolledCourses: courses}
	}
	return json.Marshal(stored)
}

func encodeCourses(courses []models.Course) ([]byte, error) {
	stored := make([]models.StoredCourse, len(courses))
	for i, c := range courses {
		stored[i] = models.StoredCourse{ID: c.ID, Name: c.Name}
	}
	return json.Marshal(stored)
}

func encodeEnrollments(enrollments []models.Enrollment) ([]byte, error) {
	stored := make([]models.StoredEnrollment, len(enrollments))
	for i, e := range enrollments {
		var date string
		if !e.Date.IsZero() {
			date = e.Date.UTC().Format(time.RFC3339Nano)
		}
		stored[i] = models.StoredEnrollment{
			ID:           e.ID,
			StudentID:    e.StudentID,
			CourseID:     e.CourseID,
			StudentLabel: e.StudentLabel,
			CourseName:   e.CourseName,
			Date:         date,
		}
	}
	return json.Marshal(stored)
}
