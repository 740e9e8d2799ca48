package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records/internal/models"
	appErrors "github.com/noah-isme/student-records/pkg/errors"
)

// KeyValueStore persists the serialized collections. Get reports absent keys
// with appErrors.ErrKeyNotFound.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, entries map[string][]byte) error
	Remove(ctx context.Context, keys ...string) error
}

var allKeys = []string{models.KeyStudents, models.KeyCourses, models.KeyEnrollments}

// RecordService owns the students, courses and enrollments collections and is
// the only place they are mutated. Every call is serialized, including the
// store write that follows a mutation.
type RecordService struct {
	mu      sync.Mutex
	store   KeyValueStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	students    []models.Student
	courses     []models.Course
	enrollments []models.Enrollment
}

// NewRecordService constructs the service in its seed state. Call Load before use.
func NewRecordService(store KeyValueStore, metrics *MetricsService, logger *zap.Logger) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RecordService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	s.resetLocked()
	return s
}

// Load replaces the in-memory collections with the stored ones. It never fails:
// unreadable or malformed data is logged and the seed state is used instead.
func (s *RecordService) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.readAll(ctx)
	if err == nil {
		err = s.writeRepairs(ctx, res)
	}
	s.metrics.RecordOperation("load", err)
	if err != nil {
		s.logger.Error("load records failed, using defaults", zap.Error(err))
		s.resetLocked()
		s.observeSizesLocked()
		return
	}

	s.students = res.students
	s.courses = res.courses
	s.enrollments = res.enrollments
	s.observeSizesLocked()
	if res.dropped > 0 {
		s.logger.Warn("dropped unresolvable enrollments", zap.Int("count", res.dropped))
	}
	s.logger.Info("records loaded",
		zap.Int("students", len(s.students)),
		zap.Int("courses", len(s.courses)),
		zap.Int("enrollments", len(s.enrollments)),
	)
}

func (s *RecordService) readAll(ctx context.Context) (*loadResult, error) {
	res := &loadResult{}

	raw, found, err := s.read(ctx, models.KeyCourses)
	if err != nil {
		return nil, err
	}
	if found {
		if res.courses, err = decodeCourses(raw); err != nil {
			return nil, err
		}
	} else {
		res.courses = models.DefaultCourses()
		res.markDirty(models.KeyCourses)
	}

	raw, found, err = s.read(ctx, models.KeyStudents)
	if err != nil {
		return nil, err
	}
	if found {
		if err := decodeStudents(raw, s.newID, res); err != nil {
			return nil, err
		}
	} else {
		res.students = []models.Student{}
	}

	raw, found, err = s.read(ctx, models.KeyEnrollments)
	if err != nil {
		return nil, err
	}
	if found {
		if err := decodeEnrollments(raw, s.newID, res); err != nil {
			return nil, err
		}
	} else {
		res.enrollments = []models.Enrollment{}
	}
	return res, nil
}

func (s *RecordService) read(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, appErrors.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, false, nil
	}
	return raw, true, nil
}

// writeRepairs persists seeded or repaired collections in one write.
func (s *RecordService) writeRepairs(ctx context.Context, res *loadResult) error {
	if len(res.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(res.dirty))
	for key := range res.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries, err := encodeEntries(res.students, res.courses, res.enrollments, keys)
	if err != nil {
		return err
	}
	return s.write(ctx, entries)
}

// Students returns a copy of the students in insertion order.
func (s *RecordService) Students() []models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneStudents(s.students)
}

// Courses returns a copy of the courses.
func (s *RecordService) Courses() []models.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Course{}, s.courses...)
}

// Enrollments returns a copy of the enrollments.
func (s *RecordService) Enrollments() []models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Enrollment{}, s.enrollments...)
}

// Roster returns all three collections from the same moment.
func (s *RecordService) Roster() models.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Roster{
		Students:    cloneStudents(s.students),
		Courses:     append([]models.Course{}, s.courses...),
		Enrollments: append([]models.Enrollment{}, s.enrollments...),
	}
}

// Student returns the student with the given id.
func (s *RecordService) Student(id string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.studentIndexLocked(id)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	st := s.students[idx].Clone()
	return &st, nil
}

// StudentIndex returns the current position of the student, or -1.
func (s *RecordService) StudentIndex(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentIndexLocked(id)
}

// AddStudent appends a new student with a fresh id.
func (s *RecordService) AddStudent(ctx context.Context, name string, kind models.StudentKind) (student *models.Student, err error) {
	defer func() { s.metrics.RecordOperation("add_student", err) }()

	name, kind, err = validateStudentInput(name, kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := models.NewStudent(s.newID(), name, kind, nil)
	s.students = append(s.students, created)
	if err := s.persistLocked(ctx, models.KeyStudents); err != nil {
		return nil, err
	}
	s.logger.Info("student added", zap.String("student_id", created.ID), zap.String("kind", string(kind)))
	result := created.Clone()
	return &result, nil
}

// EditStudent replaces the student at index. See EditStudentByID.
func (s *RecordService) EditStudent(ctx context.Context, index int, name string, kind models.StudentKind) (student *models.Student, err error) {
	defer func() { s.metrics.RecordOperation("edit_student", err) }()

	name, kind, err = validateStudentInput(name, kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.studentIDAtLocked(index)
	if err != nil {
		return nil, err
	}
	return s.editStudentLocked(ctx, id, name, kind)
}

// EditStudentByID replaces the student with a new instance of the given kind,
// keeping its id and enrolled courses, and relabels its enrollments.
func (s *RecordService) EditStudentByID(ctx context.Context, id, name string, kind models.StudentKind) (student *models.Student, err error) {
	defer func() { s.metrics.RecordOperation("edit_student", err) }()

	name, kind, err = validateStudentInput(name, kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editStudentLocked(ctx, id, name, kind)
}

func (s *RecordService) editStudentLocked(ctx context.Context, id, name string, kind models.StudentKind) (*models.Student, error) {
	idx := s.studentIndexLocked(id)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	updated := models.NewStudent(id, name, kind, s.students[idx].EnrolledCourses)
	s.students[idx] = updated
	label := updated.Describe()
	relabeled := 0
	for i := range s.enrollments {
		if s.enrollments[i].StudentID == id {
			s.enrollments[i].StudentLabel = label
			relabeled++
		}
	}

	if err := s.persistLocked(ctx, allKeys...); err != nil {
		return nil, err
	}
	s.logger.Info("student edited", zap.String("student_id", id), zap.Int("enrollments_relabeled", relabeled))
	result := updated.Clone()
	return &result, nil
}

// DeleteStudent removes the student at index. See DeleteStudentByID.
func (s *RecordService) DeleteStudent(ctx context.Context, index int) (err error) {
	defer func() { s.metrics.RecordOperation("delete_student", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.studentIDAtLocked(index)
	if err != nil {
		return err
	}
	return s.deleteStudentLocked(ctx, id)
}

// DeleteStudentByID removes the student and every enrollment referencing it.
func (s *RecordService) DeleteStudentByID(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordOperation("delete_student", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteStudentLocked(ctx, id)
}

func (s *RecordService) deleteStudentLocked(ctx context.Context, id string) error {
	idx := s.studentIndexLocked(id)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	s.students = append(s.students[:idx:idx], s.students[idx+1:]...)
	before := len(s.enrollments)
	s.enrollments = filterEnrollments(s.enrollments, func(e models.Enrollment) bool { return e.StudentID != id })

	if err := s.persistLocked(ctx, allKeys...); err != nil {
		return err
	}
	s.logger.Info("student deleted", zap.String("student_id", id), zap.Int("enrollments_removed", before-len(s.enrollments)))
	return nil
}

// AddCourse appends a course whose id is one past the current maximum.
func (s *RecordService) AddCourse(ctx context.Context, name string) (course *models.Course, err error) {
	defer func() { s.metrics.RecordOperation("add_course", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maxID := 0
	for _, c := range s.courses {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	created := models.NewCourse(maxID+1, name)
	s.courses = append(s.courses, created)
	if err := s.persistLocked(ctx, models.KeyCourses); err != nil {
		return nil, err
	}
	s.logger.Info("course added", zap.Int("course_id", created.ID))
	return &created, nil
}

// DeleteCourse parses rawID as an integer course id. See DeleteCourseByID.
func (s *RecordService) DeleteCourse(ctx context.Context, rawID string) error {
	id, err := strconv.Atoi(strings.TrimSpace(rawID))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course id must be an integer")
		s.metrics.RecordOperation("delete_course", err)
		return err
	}
	return s.DeleteCourseByID(ctx, id)
}

// DeleteCourseByID removes the course, strips it from every student and
// removes every enrollment referencing it.
func (s *RecordService) DeleteCourseByID(ctx context.Context, id int) (err error) {
	defer func() { s.metrics.RecordOperation("delete_course", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.courseIndexLocked(id)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	s.courses = append(s.courses[:idx:idx], s.courses[idx+1:]...)
	for i, st := range s.students {
		if st.HasCourse(id) {
			s.students[i] = st.WithoutCourse(id)
		}
	}
	before := len(s.enrollments)
	s.enrollments = filterEnrollments(s.enrollments, func(e models.Enrollment) bool { return e.CourseID != id })

	if err := s.persistLocked(ctx, allKeys...); err != nil {
		return err
	}
	s.logger.Info("course deleted", zap.Int("course_id", id), zap.Int("enrollments_removed", before-len(s.enrollments)))
	return nil
}

// EnrollStudent enrolls the student at index. See EnrollStudentByID.
func (s *RecordService) EnrollStudent(ctx context.Context, studentIndex, courseID int) (enrollment *models.Enrollment, err error) {
	defer func() { s.metrics.RecordOperation("enroll_student", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.studentIDAtLocked(studentIndex)
	if err != nil {
		return nil, err
	}
	return s.enrollLocked(ctx, id, courseID)
}

// EnrollStudentByID adds the course to the student and records an enrollment
// carrying the current labels and timestamp.
func (s *RecordService) EnrollStudentByID(ctx context.Context, studentID string, courseID int) (enrollment *models.Enrollment, err error) {
	defer func() { s.metrics.RecordOperation("enroll_student", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollLocked(ctx, studentID, courseID)
}

func (s *RecordService) enrollLocked(ctx context.Context, studentID string, courseID int) (*models.Enrollment, error) {
	sIdx := s.studentIndexLocked(studentID)
	if sIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	cIdx := s.courseIndexLocked(courseID)
	if cIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	student := s.students[sIdx]
	if student.HasCourse(courseID) || s.hasEnrollmentLocked(studentID, courseID) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	course := s.courses[cIdx]
	updated := student.Clone()
	updated.EnrolledCourses = append(updated.EnrolledCourses, course)
	s.students[sIdx] = updated

	created := models.Enrollment{
		ID:           s.newID(),
		StudentID:    studentID,
		CourseID:     courseID,
		StudentLabel: updated.Describe(),
		CourseName:   course.Name,
		Date:         s.now(),
	}
	s.enrollments = append(s.enrollments, created)

	if err := s.persistLocked(ctx, allKeys...); err != nil {
		return nil, err
	}
	s.logger.Info("student enrolled", zap.String("student_id", studentID), zap.Int("course_id", courseID), zap.String("enrollment_id", created.ID))
	return &created, nil
}

// UnenrollStudent removes the enrollment and, when the student still exists,
// the course from their enrolled list.
func (s *RecordService) UnenrollStudent(ctx context.Context, enrollmentID string) (err error) {
	defer func() { s.metrics.RecordOperation("unenroll_student", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, e := range s.enrollments {
		if e.ID == enrollmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}

	removed := s.enrollments[idx]
	s.enrollments = append(s.enrollments[:idx:idx], s.enrollments[idx+1:]...)
	if sIdx := s.studentIndexLocked(removed.StudentID); sIdx >= 0 {
		s.students[sIdx] = s.students[sIdx].WithoutCourse(removed.CourseID)
	}

	if err := s.persistLocked(ctx, allKeys...); err != nil {
		return err
	}
	s.logger.Info("student unenrolled", zap.String("enrollment_id", enrollmentID))
	return nil
}

// ResetAll returns to the seed state and removes every stored collection. It is idempotent.
func (s *RecordService) ResetAll(ctx context.Context) (err error) {
	defer func() { s.metrics.RecordOperation("reset_all", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.observeSizesLocked()

	start := time.Now()
	err = s.store.Remove(ctx, allKeys...)
	s.metrics.ObserveStoreWrite(time.Since(start), err)
	if err != nil {
		s.logger.Error("clear store failed", zap.Error(err))
		return appErrors.Storage(err, strings.Join(allKeys, ","))
	}
	s.logger.Info("records reset")
	return nil
}

func (s *RecordService) resetLocked() {
	s.students = []models.Student{}
	s.courses = models.DefaultCourses()
	s.enrollments = []models.Enrollment{}
}

// persistLocked writes the named collections from current memory. On failure
// memory keeps the mutation and the caller sees ErrStorage.
func (s *RecordService) persistLocked(ctx context.Context, keys ...string) error {
	s.observeSizesLocked()
	entries, err := encodeEntries(s.students, s.courses, s.enrollments, keys)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode records")
	}
	if err := s.write(ctx, entries); err != nil {
		s.logger.Error("persist records failed", zap.Strings("keys", keys), zap.Error(err))
		return appErrors.Storage(err, strings.Join(keys, ","))
	}
	return nil
}

func (s *RecordService) write(ctx context.Context, entries map[string][]byte) error {
	start := time.Now()
	var err error
	if len(entries) == 1 {
		for key, value := range entries {
			err = s.store.Set(ctx, key, value)
		}
	} else {
		err = s.store.SetMany(ctx, entries)
	}
	s.metrics.ObserveStoreWrite(time.Since(start), err)
	return err
}

func (s *RecordService) observeSizesLocked() {
	s.metrics.SetCollectionSizes(len(s.students), len(s.courses), len(s.enrollments))
}

func (s *RecordService) studentIDAtLocked(index int) (string, error) {
	if index < 0 || index >= len(s.students) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return s.students[index].ID, nil
}

func (s *RecordService) studentIndexLocked(id string) int {
	for i, st := range s.students {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func (s *RecordService) courseIndexLocked(id int) int {
	for i, c := range s.courses {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *RecordService) hasEnrollmentLocked(studentID string, courseID int) bool {
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true
		}
	}
	return false
}

func validateStudentInput(name string, kind models.StudentKind) (string, models.StudentKind, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "student name is required")
	}
	parsed, ok := models.ParseStudentKind(string(kind))
	if !ok {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown student kind %q", kind))
	}
	return name, parsed, nil
}

func encodeEntries(students []models.Student, courses []models.Course, enrollments []models.Enrollment, keys []string) (map[string][]byte, error) {
	entries := make(map[string][]byte, len(keys))
	for _, key := range keys {
		var (
			raw []byte
			err error
		)
		switch key {
		case models.KeyStudents:
			raw, err = encodeStudents(students)
		case models.KeyCourses:
			raw, err = encodeCourses(courses)
		case models.KeyEnrollments:
			raw, err = encodeEnrollments(enrollments)
		default:
			err = fmt.Errorf("unknown collection %q", key)
		}
		if err != nil {
			return nil, err
		}
		entries[key] = raw
	}
	return entries, nil
}

func cloneStudents(students []models.Student) []models.Student {
	out := make([]models.Student, len(students))
	for i, st := range students {
		out[i] = st.Clone()
	}
	return out
}

func filterEnrollments(enrollments []models.Enrollment, keep func(models.Enrollment) bool) []models.Enrollment {
	out := make([]models.Enrollment, 0, len(enrollments))
	for _, e := range enrollments {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
