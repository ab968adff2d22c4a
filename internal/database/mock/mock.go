// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/database"
)

// MockStore is an in-memory implementation of every relational repository.
// Cascading deletes mirror the PostgreSQL repositories.
type MockStore struct {
	mu          sync.RWMutex
	students    map[string]*database.Student
	images      []database.StudentImage
	faculty     map[string]*database.Faculty
	classes     map[int64]*database.Class
	sessions    map[int64]*database.Session
	attendance  []database.Attendance
	predictions []database.PredictionLog
	models      map[string]int64
	nextID      int64

	// Canonical, when set, is cleared of a student on DeleteStudent
	Canonical *MockCanonicalStore

	// Error injection
	GetError    error
	ListError   error
	WriteError  error
	DeleteError error
	SaveError   error

	// Now is used for created_at timestamps; defaults to time.Now
	Now func() time.Time
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		students: make(map[string]*database.Student),
		faculty:  make(map[string]*database.Faculty),
		classes:  make(map[int64]*database.Class),
		sessions: make(map[int64]*database.Session),
		models:   make(map[string]int64),
		Now:      time.Now,
	}
}

// Backend returns repository constructors backed by this store
func (m *MockStore) Backend() database.Backend {
	return database.Backend{
		Students:   func() database.StudentRepository { return m },
		Faculty:    func() database.FacultyRepository { return m },
		Classes:    func() database.ClassRepository { return m },
		Sessions:   func() database.SessionRepository { return m },
		Attendance: func() database.AttendanceRepository { return m },
		Models:     func() database.ModelRepository { return m },
	}
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- Seeding helpers ---

// AddStudent adds a student directly
func (m *MockStore) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.EnrollmentNo] = &s
}

// AddFaculty adds a faculty member directly
func (m *MockStore) AddFaculty(f database.Faculty) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faculty[f.FacultyID] = &f
}

// AddClass adds a class directly, assigning an id when zero
func (m *MockStore) AddClass(c database.Class) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	} else if c.ID > m.nextID {
		m.nextID = c.ID
	}
	m.classes[c.ID] = &c
	return c.ID
}

// AddSession adds a session directly, assigning an id when zero
func (m *MockStore) AddSession(s database.Session) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	} else if s.ID > m.nextID {
		m.nextID = s.ID
	}
	m.sessions[s.ID] = &s
	return s.ID
}

// AddAttendance adds an attendance row directly
func (m *MockStore) AddAttendance(a database.Attendance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.id()
	}
	m.attendance = append(m.attendance, a)
}

// Predictions returns all logged prediction attempts in insertion order
func (m *MockStore) Predictions() []database.PredictionLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.PredictionLog(nil), m.predictions...)
}

// AttendanceRows returns all attendance rows in insertion order
func (m *MockStore) AttendanceRows() []database.Attendance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.Attendance(nil), m.attendance...)
}

// Images returns all student image rows
func (m *MockStore) Images() []database.StudentImage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.StudentImage(nil), m.images...)
}

// --- StudentRepository ---

func (m *MockStore) GetStudent(ctx context.Context, enrollmentNo string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.students[enrollmentNo]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

func (m *MockStore) ListStudents(ctx context.Context) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Student, 0, len(m.students))
	for _, s := range m.students {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrollmentNo < result[j].EnrollmentNo })
	return result, nil
}

func (m *MockStore) UpsertStudent(ctx context.Context, student database.Student) (*database.Student, bool, error) {
	if m.WriteError != nil {
		return nil, false, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[student.EnrollmentNo]; ok {
		c := *s
		return &c, false, nil
	}
	student.CreatedAt = m.Now()
	m.students[student.EnrollmentNo] = &student
	c := student
	return &c, true, nil
}

func (m *MockStore) UpdateStudent(ctx context.Context, enrollmentNo string, update database.StudentUpdate) (*database.Student, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[enrollmentNo]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Name != nil {
		s.Name = *update.Name
	}
	if update.Semester != nil {
		s.Semester = *update.Semester
	}
	c := *s
	return &c, nil
}

func (m *MockStore) DeleteStudent(ctx context.Context, enrollmentNo string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[enrollmentNo]; !ok {
		return database.ErrNotFound
	}
	kept := m.attendance[:0]
	for _, a := range m.attendance {
		if a.EnrollmentNo != enrollmentNo {
			kept = append(kept, a)
		}
	}
	m.attendance = kept
	images := m.images[:0]
	for _, img := range m.images {
		if img.EnrollmentNo != enrollmentNo {
			images = append(images, img)
		}
	}
	m.images = images
	delete(m.students, enrollmentNo)
	if m.Canonical != nil {
		_ = m.Canonical.Delete(ctx, enrollmentNo)
	}
	return nil
}

func (m *MockStore) CountStudents(ctx context.Context) (int, error) {
	if m.GetError != nil {
		return 0, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students), nil
}

func (m *MockStore) AddImage(ctx context.Context, enrollmentNo, filePath string) (*database.StudentImage, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[enrollmentNo]; !ok {
		return nil, database.ErrInvalidReference
	}
	img := database.StudentImage{ID: m.id(), EnrollmentNo: enrollmentNo, FilePath: filePath, CapturedAt: m.Now()}
	m.images = append(m.images, img)
	return &img, nil
}

func (m *MockStore) ListImages(ctx context.Context, enrollmentNo string) ([]database.StudentImage, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.StudentImage
	for _, img := range m.images {
		if img.EnrollmentNo == enrollmentNo {
			result = append(result, img)
		}
	}
	return result, nil
}

// --- FacultyRepository ---

func (m *MockStore) GetFaculty(ctx context.Context, facultyID string) (*database.Faculty, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if f, ok := m.faculty[facultyID]; ok {
		c := *f
		return &c, nil
	}
	return nil, nil
}

func (m *MockStore) ListFaculty(ctx context.Context) ([]database.Faculty, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Faculty, 0, len(m.faculty))
	for _, f := range m.faculty {
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FacultyID < result[j].FacultyID })
	return result, nil
}

func (m *MockStore) CreateFaculty(ctx context.Context, faculty database.Faculty) (*database.Faculty, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faculty[faculty.FacultyID]; ok {
		return nil, database.ErrAlreadyExists
	}
	faculty.CreatedAt = m.Now()
	m.faculty[faculty.FacultyID] = &faculty
	c := faculty
	return &c, nil
}

func (m *MockStore) UpdateFaculty(ctx context.Context, facultyID string, update database.FacultyUpdate) (*database.Faculty, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.faculty[facultyID]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.Name != nil {
		f.Name = *update.Name
	}
	if update.Email != nil {
		v := *update.Email
		f.Email = &v
	}
	if update.Phone != nil {
		v := *update.Phone
		f.Phone = &v
	}
	c := *f
	return &c, nil
}

func (m *MockStore) DeleteFaculty(ctx context.Context, facultyID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faculty[facultyID]; !ok {
		return database.ErrNotFound
	}
	for id, c := range m.classes {
		if c.FacultyID != nil && *c.FacultyID == facultyID {
			m.deleteClassLocked(id)
		}
	}
	delete(m.faculty, facultyID)
	return nil
}

// --- ClassRepository ---

func (m *MockStore) GetClass(ctx context.Context, id int64) (*database.Class, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.classes[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}

func (m *MockStore) listClasses(filter func(*database.Class) bool) []database.Class {
	result := []database.Class{}
	for _, c := range m.classes {
		if filter(c) {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockStore) ListClasses(ctx context.Context) ([]database.Class, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClasses(func(*database.Class) bool { return true }), nil
}

func (m *MockStore) ListClassesByFaculty(ctx context.Context, facultyID string) ([]database.Class, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listClasses(func(c *database.Class) bool {
		return c.FacultyID != nil && *c.FacultyID == facultyID
	}), nil
}

func (m *MockStore) CreateClass(ctx context.Context, class database.Class) (*database.Class, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if class.FacultyID != nil && *class.FacultyID == "" {
		class.FacultyID = nil
	}
	if class.FacultyID != nil {
		if _, ok := m.faculty[*class.FacultyID]; !ok {
			return nil, database.ErrInvalidReference
		}
	}
	class.ID = m.id()
	class.CreatedAt = m.Now()
	m.classes[class.ID] = &class
	c := class
	return &c, nil
}

func (m *MockStore) UpdateClass(ctx context.Context, id int64, update database.ClassUpdate) (*database.Class, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if update.FacultyID != nil && *update.FacultyID != "" {
		if _, ok := m.faculty[*update.FacultyID]; !ok {
			return nil, database.ErrInvalidReference
		}
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.CourseCode != nil {
		v := *update.CourseCode
		c.CourseCode = &v
	}
	if update.FacultyID != nil {
		if *update.FacultyID == "" {
			c.FacultyID = nil
		} else {
			v := *update.FacultyID
			c.FacultyID = &v
		}
	}
	cc := *c
	return &cc, nil
}

func (m *MockStore) deleteClassLocked(id int64) {
	for sid, s := range m.sessions {
		if s.ClassID == id {
			m.deleteSessionAttendanceLocked(sid)
			delete(m.sessions, sid)
		}
	}
	delete(m.classes, id)
}

func (m *MockStore) deleteSessionAttendanceLocked(sessionID int64) {
	kept := m.attendance[:0]
	for _, a := range m.attendance {
		if a.SessionID != sessionID {
			kept = append(kept, a)
		}
	}
	m.attendance = kept
}

func (m *MockStore) DeleteClass(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[id]; !ok {
		return database.ErrNotFound
	}
	m.deleteClassLocked(id)
	return nil
}

// --- SessionRepository ---

func (m *MockStore) withClassTitle(s database.Session) database.Session {
	if c, ok := m.classes[s.ClassID]; ok {
		s.ClassTitle = c.Title
	}
	return s
}

func (m *MockStore) GetSession(ctx context.Context, id int64) (*database.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		c := m.withClassTitle(*s)
		return &c, nil
	}
	return nil, nil
}

func (m *MockStore) CreateSession(ctx context.Context, session database.Session) (*database.Session, error) {
	if m.WriteError != nil {
		return nil, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[session.ClassID]; !ok {
		return nil, database.ErrInvalidReference
	}
	session.ID = m.id()
	session.CreatedAt = m.Now()
	m.sessions[session.ID] = &session
	c := m.withClassTitle(session)
	return &c, nil
}

func (m *MockStore) listSessions(filter func(*database.Session) bool) []database.Session {
	result := []database.Session{}
	for _, s := range m.sessions {
		if filter(s) {
			result = append(result, m.withClassTitle(*s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *MockStore) ListActiveSessions(ctx context.Context, now time.Time) ([]database.Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSessions(func(s *database.Session) bool {
		return s.EndTime != nil && !s.EndTime.Before(now)
	}), nil
}

func (m *MockStore) ListSessionsByClass(ctx context.Context, classID int64) ([]database.Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSessions(func(s *database.Session) bool { return s.ClassID == classID }), nil
}

func (m *MockStore) GetFacultyForSession(ctx context.Context, sessionID int64) (*database.Faculty, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	c, ok := m.classes[s.ClassID]
	if !ok || c.FacultyID == nil {
		return nil, nil
	}
	f, ok := m.faculty[*c.FacultyID]
	if !ok {
		return nil, nil
	}
	cf := *f
	return &cf, nil
}

// --- AttendanceRepository ---

func (m *MockStore) SaveRecognition(ctx context.Context, log *database.PredictionLog, attendance *database.Attendance) (bool, error) {
	if m.SaveError != nil {
		return false, m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	log.ID = m.id()
	m.predictions = append(m.predictions, *log)

	if attendance == nil {
		return false, nil
	}
	for _, a := range m.attendance {
		if a.EnrollmentNo == attendance.EnrollmentNo && a.SessionID == attendance.SessionID {
			return false, nil
		}
	}
	attendance.ID = m.id()
	m.attendance = append(m.attendance, *attendance)
	return true, nil
}

func (m *MockStore) ListByStudent(ctx context.Context, enrollmentNo string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.AttendanceRecord
	for _, a := range m.attendance {
		if a.EnrollmentNo != enrollmentNo {
			continue
		}
		s, ok := m.sessions[a.SessionID]
		if !ok {
			continue
		}
		c, ok := m.classes[s.ClassID]
		if !ok {
			continue
		}
		result = append(result, database.AttendanceRecord{
			AttendanceID: a.ID,
			ClassID:      c.ID,
			ClassTitle:   c.Title,
			SessionID:    s.ID,
			Date:         a.Date,
			Time:         a.Time,
			Confidence:   a.Confidence,
		})
	}
	return result, nil
}

func (m *MockStore) ListBySession(ctx context.Context, sessionID int64) ([]database.Attendance, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.Attendance
	for _, a := range m.attendance {
		if a.SessionID == sessionID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockStore) CountBySession(ctx context.Context, sessionID int64) (int, error) {
	if m.GetError != nil {
		return 0, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attendance {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) StudentSummary(ctx context.Context, enrollmentNo string) ([]database.ClassAttendanceSummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byClass := make(map[int64]*database.ClassAttendanceSummary)
	for _, s := range m.sessions {
		c, ok := m.classes[s.ClassID]
		if !ok {
			continue
		}
		sum, ok := byClass[c.ID]
		if !ok {
			sum = &database.ClassAttendanceSummary{ClassID: c.ID, ClassTitle: c.Title}
			byClass[c.ID] = sum
		}
		sum.TotalSessions++
		for _, a := range m.attendance {
			if a.SessionID == s.ID && a.EnrollmentNo == enrollmentNo {
				sum.Attended++
			}
		}
	}

	result := make([]database.ClassAttendanceSummary, 0, len(byClass))
	for _, s := range byClass {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClassID < result[j].ClassID })
	return result, nil
}

func (m *MockStore) ListPredictions(ctx context.Context, limit int) ([]database.PredictionLog, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.PredictionLog
	for i := len(m.predictions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.predictions[i])
	}
	return result, nil
}

// --- ModelRepository ---

func (m *MockStore) EnsureModel(ctx context.Context, modelType, filePath string) (int64, error) {
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := modelType + "\x00" + filePath
	if id, ok := m.models[key]; ok {
		return id, nil
	}
	id := m.id()
	m.models[key] = id
	return id, nil
}
