package attendance

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WilliamHails/7th-sem-project/internal/constants"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/database/mock"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
)

// fakeEmbedder returns a fixed vector per image content.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, imageData []byte) (*fingerprint.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	vec, ok := f.vectors[string(imageData)]
	if !ok {
		return nil, fingerprint.ErrNoFace
	}
	return &fingerprint.Embedding{Vector: vec, Model: "buffalo_l"}, nil
}

type testEnv struct {
	svc       *Service
	store     *mock.MockStore
	canonical *mock.MockCanonicalStore
	embedder  *fakeEmbedder
	rawDir    string
	predDir   string
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store := mock.NewMockStore()
	canonical := mock.NewMockCanonicalStore()
	store.Canonical = canonical

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"alice.jpg": {1, 0, 0},
		"bob.jpg":   {0, 1, 0},
		"probe-a":   {0.9, 0.1, 0},
		"probe-far": {0, 0, 1},
	}}
	for k, v := range embedder.vectors {
		n, _ := fingerprint.Normalize(v)
		embedder.vectors[k] = n
	}

	env := &testEnv{
		store:     store,
		canonical: canonical,
		embedder:  embedder,
		rawDir:    filepath.Join(dir, "raw"),
		predDir:   filepath.Join(dir, "predictions"),
		now:       time.Date(2025, 3, 14, 9, 30, 15, 500, time.Local),
	}
	env.svc = NewService(Deps{
		Students:   store,
		Sessions:   store,
		Attendance: store,
		Models:     store,
		Canonical:  canonical,
		Embedder:   embedder,
	}, Options{
		RawDir:         env.rawDir,
		PredictionsDir: env.predDir,
		Threshold:      0.65,
		ModelPath:      "http://localhost:8001",
		Now:            func() time.Time { return env.now },
	})
	return env
}

func (e *testEnv) enroll(t *testing.T, enr, name, image string) *EnrollResult {
	t.Helper()
	res, err := e.svc.Enroll(context.Background(), EnrollRequest{
		EnrollmentNo: enr,
		Name:         name,
		Semester:     "5",
		Filename:     "photo.jpg",
		Image:        []byte(image),
	})
	if err != nil {
		t.Fatalf("Enroll(%s) failed: %v", enr, err)
	}
	return res
}

func TestEnroll_StoresStudentImageAndCanonical(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.enroll(t, "CS001", "Alice", "alice.jpg")

	if !res.Created || !res.FaceRegistered {
		t.Errorf("expected created and face registered, got %+v", res)
	}
	wantPath := filepath.Join(env.rawDir, "CS001_photo.jpg")
	if res.ImagePath != wantPath {
		t.Errorf("expected image path %s, got %s", wantPath, res.ImagePath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil || string(data) != "alice.jpg" {
		t.Errorf("raw image not written: %v", err)
	}
	if imgs := env.store.Images(); len(imgs) != 1 || imgs[0].FilePath != wantPath {
		t.Errorf("expected one image row for %s, got %+v", wantPath, imgs)
	}
	if ok, _ := env.canonical.Has(ctx, "CS001"); !ok {
		t.Error("expected canonical embedding to be saved")
	}
}

func TestEnroll_ExistingStudentIsKept(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")

	res := env.enroll(t, "CS001", "Someone Else", "alice.jpg")
	if res.Created {
		t.Error("expected existing student to be reused")
	}
	if res.Student.Name != "Alice" {
		t.Errorf("expected original name to be kept, got %q", res.Student.Name)
	}
}

func TestEnroll_NoFaceStillEnrolls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.enroll(t, "CS002", "Nobody", "blank.jpg")
	if res.FaceRegistered {
		t.Error("expected face not registered")
	}
	if res.FaceError != fingerprint.ErrNoFace.Error() {
		t.Errorf("expected face error %q, got %q", fingerprint.ErrNoFace, res.FaceError)
	}
	if s, _ := env.store.GetStudent(ctx, "CS002"); s == nil {
		t.Error("expected student row to exist")
	}
	if ok, _ := env.canonical.Has(ctx, "CS002"); ok {
		t.Error("expected no canonical embedding")
	}
}

func TestEnroll_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  EnrollRequest
	}{
		{"missing enrollment", EnrollRequest{Name: "A", Semester: "5", Image: []byte("x")}},
		{"path in enrollment", EnrollRequest{EnrollmentNo: "../x", Name: "A", Semester: "5", Image: []byte("x")}},
		{"missing name", EnrollRequest{EnrollmentNo: "CS1", Semester: "5", Image: []byte("x")}},
		{"missing semester", EnrollRequest{EnrollmentNo: "CS1", Name: "A", Image: []byte("x")}},
		{"blank semester", EnrollRequest{EnrollmentNo: "CS1", Name: "A", Semester: "  ", Image: []byte("x")}},
		{"missing image", EnrollRequest{EnrollmentNo: "CS1", Name: "A", Semester: "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Enroll(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestEnroll_SanitizesFilename(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.svc.Enroll(context.Background(), EnrollRequest{
		EnrollmentNo: "CS001", Name: "Alice", Semester: "5", Filename: "../../etc/passwd", Image: []byte("alice.jpg"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(res.ImagePath) != env.rawDir {
		t.Errorf("expected image inside raw dir, got %s", res.ImagePath)
	}
}

func TestRecognize_NoEnrollments(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"})
	if !errors.Is(err, ErrNoEnrollments) {
		t.Errorf("expected ErrNoEnrollments, got %v", err)
	}
	if len(env.store.Predictions()) != 0 {
		t.Error("expected no prediction log")
	}
}

func TestRecognize_NoCanonical(t *testing.T) {
	env := newTestEnv(t)
	env.canonical.Extra = true

	_, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"})
	if !errors.Is(err, ErrNoCanonical) {
		t.Errorf("expected ErrNoCanonical, got %v", err)
	}
}

func TestRecognize_EmbeddingFailure(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")

	_, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("noise"), Filename: "p.jpg"})
	if !errors.Is(err, fingerprint.ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
	// probe is saved before embedding
	if _, err := os.Stat(filepath.Join(env.predDir, "20250314_093015_p.jpg")); err != nil {
		t.Errorf("expected probe image to be saved: %v", err)
	}
}

func TestRecognize_MatchMarksAttendance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	env.enroll(t, "CS002", "Bob", "bob.jpg")
	classID := env.store.AddClass(database.Class{Title: "Algorithms"})
	sessionID := env.store.AddSession(database.Session{ClassID: classID})

	res, err := env.svc.Recognize(ctx, RecognizeRequest{Image: []byte("probe-a"), Filename: "probe.jpg", SessionID: &sessionID})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	if !res.Match || res.EnrollmentNo != "CS001" || res.Status != constants.StatusMatch {
		t.Errorf("expected match for CS001, got %+v", res)
	}
	if res.Score < 0.9 {
		t.Errorf("expected high score, got %f", res.Score)
	}
	if !res.AttendanceMarked {
		t.Error("expected attendance to be marked")
	}
	wantProbe := filepath.Join(env.predDir, "20250314_093015_probe.jpg")
	if res.ImagePath != wantProbe {
		t.Errorf("expected probe path %s, got %s", wantProbe, res.ImagePath)
	}

	logs := env.store.Predictions()
	if len(logs) != 1 {
		t.Fatalf("expected 1 prediction log, got %d", len(logs))
	}
	if logs[0].PredictedEnrollment == nil || *logs[0].PredictedEnrollment != "CS001" {
		t.Errorf("expected predicted enrollment CS001, got %v", logs[0].PredictedEnrollment)
	}
	if logs[0].PredictedName == nil || *logs[0].PredictedName != "Alice" {
		t.Errorf("expected predicted name Alice, got %v", logs[0].PredictedName)
	}

	rows := env.store.AttendanceRows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 attendance row, got %d", len(rows))
	}
	row := rows[0]
	if row.EnrollmentNo != "CS001" || row.SessionID != sessionID || row.NameAtTime != "Alice" || row.SemesterAtTime != "5" {
		t.Errorf("unexpected attendance row: %+v", row)
	}
	if row.Time != "09:30:15" {
		t.Errorf("expected time truncated to seconds, got %s", row.Time)
	}
	if row.ModelID == nil {
		t.Error("expected model id on attendance row")
	}
}

func TestRecognize_DuplicateAttendanceNotMarked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	classID := env.store.AddClass(database.Class{Title: "Algorithms"})
	sessionID := env.store.AddSession(database.Session{ClassID: classID})

	req := RecognizeRequest{Image: []byte("probe-a"), Filename: "probe.jpg", SessionID: &sessionID}
	if _, err := env.svc.Recognize(ctx, req); err != nil {
		t.Fatalf("first Recognize failed: %v", err)
	}
	res, err := env.svc.Recognize(ctx, req)
	if err != nil {
		t.Fatalf("second Recognize failed: %v", err)
	}

	if !res.Match || res.AttendanceMarked {
		t.Errorf("expected match without new attendance, got %+v", res)
	}
	if n := len(env.store.AttendanceRows()); n != 1 {
		t.Errorf("expected 1 attendance row, got %d", n)
	}
	if n := len(env.store.Predictions()); n != 2 {
		t.Errorf("expected every attempt logged, got %d", n)
	}
}

func TestRecognize_UnknownSessionSkipsAttendance(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	missing := int64(999)

	res, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg", SessionID: &missing})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !res.Match || res.AttendanceMarked {
		t.Errorf("expected match without attendance, got %+v", res)
	}
}

func TestRecognize_BelowThreshold(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	classID := env.store.AddClass(database.Class{Title: "Algorithms"})
	sessionID := env.store.AddSession(database.Session{ClassID: classID})

	res, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-far"), Filename: "p.jpg", SessionID: &sessionID})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Match || res.Status != constants.StatusNoMatch {
		t.Errorf("expected no match, got %+v", res)
	}
	logs := env.store.Predictions()
	if len(logs) != 1 || logs[0].PredictedEnrollment != nil || logs[0].PredictedName != nil {
		t.Errorf("expected log without prediction, got %+v", logs)
	}
	if len(env.store.AttendanceRows()) != 0 {
		t.Error("expected no attendance")
	}
}

func TestRecognize_ThresholdIsInclusive(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	score := fingerprint.CosineSimilarity(env.embedder.vectors["probe-a"], env.embedder.vectors["alice.jpg"])

	tests := []struct {
		name      string
		threshold float64
		wantMatch bool
	}{
		{"equal to score", score, true},
		{"just above score", math.Nextafter(score, 2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(env.svc.deps, Options{
				RawDir:         env.rawDir,
				PredictionsDir: env.predDir,
				Threshold:      tt.threshold,
				Now:            func() time.Time { return env.now },
			})
			res, err := svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"})
			if err != nil {
				t.Fatalf("Recognize failed: %v", err)
			}
			if res.Match != tt.wantMatch {
				t.Errorf("threshold %v, score %v: match = %v, want %v", tt.threshold, score, res.Match, tt.wantMatch)
			}
		})
	}
}

func TestRecognize_AboveThresholdButStudentMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vec, _ := fingerprint.Normalize([]float32{1, 0, 0})
	env.canonical.Save(ctx, "GHOST", vec, "buffalo_l")

	res, err := env.svc.Recognize(ctx, RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Match {
		t.Error("expected no match when student row is missing")
	}
	logs := env.store.Predictions()
	if logs[0].PredictedEnrollment == nil || *logs[0].PredictedEnrollment != "GHOST" {
		t.Errorf("expected predicted enrollment GHOST, got %v", logs[0].PredictedEnrollment)
	}
	if logs[0].PredictedName != nil {
		t.Errorf("expected no predicted name, got %v", *logs[0].PredictedName)
	}
}

func TestRecognize_ProbeNameCollision(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	req := RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"}

	first, err := env.svc.Recognize(context.Background(), req)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	second, err := env.svc.Recognize(context.Background(), req)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if first.ImagePath == second.ImagePath {
		t.Errorf("expected distinct probe paths, both %s", first.ImagePath)
	}
	if !strings.HasPrefix(filepath.Base(second.ImagePath), "20250314_093015_p_") {
		t.Errorf("unexpected probe path %s", second.ImagePath)
	}
}

func TestRecognize_SaveError(t *testing.T) {
	env := newTestEnv(t)
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	env.store.SaveError = errors.New("db down")

	_, err := env.svc.Recognize(context.Background(), RecognizeRequest{Image: []byte("probe-a"), Filename: "p.jpg"})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("expected save error, got %v", err)
	}
}

func TestDeleteStudent_RemovesFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.enroll(t, "CS001", "Alice", "alice.jpg")
	env.enroll(t, "CS0011", "Other", "bob.jpg")

	if err := env.svc.DeleteStudent(ctx, "CS001"); err != nil {
		t.Fatalf("DeleteStudent failed: %v", err)
	}

	if ok, _ := env.canonical.Has(ctx, "CS001"); ok {
		t.Error("expected canonical embedding to be removed")
	}
	if _, err := os.Stat(filepath.Join(env.rawDir, "CS001_photo.jpg")); !os.IsNotExist(err) {
		t.Error("expected raw image to be removed")
	}
	if _, err := os.Stat(filepath.Join(env.rawDir, "CS0011_photo.jpg")); err != nil {
		t.Error("expected other student's raw image to be kept")
	}
}

func TestDeleteStudent_NotFound(t *testing.T) {
	env := newTestEnv(t)
	if err := env.svc.DeleteStudent(context.Background(), "NOPE"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRebuildCanonical(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	os.MkdirAll(env.rawDir, 0o755)
	os.WriteFile(filepath.Join(env.rawDir, "CS001_b.jpg"), []byte("bob.jpg"), 0o644)
	os.WriteFile(filepath.Join(env.rawDir, "CS001_a.jpg"), []byte("alice.jpg"), 0o644)

	used, err := env.svc.RebuildCanonical(ctx, "CS001")
	if err != nil {
		t.Fatalf("RebuildCanonical failed: %v", err)
	}
	if filepath.Base(used) != "CS001_a.jpg" {
		t.Errorf("expected first raw image in name order, got %s", used)
	}
	vec, _ := env.canonical.Load(ctx, "CS001")
	if len(vec) != 3 || vec[0] != 1 {
		t.Errorf("unexpected canonical vector %v", vec)
	}

	if _, err := env.svc.RebuildCanonical(ctx, "CS999"); !errors.Is(err, ErrNoRawImage) {
		t.Errorf("expected ErrNoRawImage, got %v", err)
	}
}

func TestRebuildAll(t *testing.T) {
	env := newTestEnv(t)
	os.MkdirAll(env.rawDir, 0o755)
	os.WriteFile(filepath.Join(env.rawDir, "CS001_a.jpg"), []byte("alice.jpg"), 0o644)
	os.WriteFile(filepath.Join(env.rawDir, "CS001_b.jpg"), []byte("alice.jpg"), 0o644)
	os.WriteFile(filepath.Join(env.rawDir, "CS002_a.jpg"), []byte("bob.jpg"), 0o644)
	os.WriteFile(filepath.Join(env.rawDir, "CS003_a.jpg"), []byte("noise"), 0o644)
	os.WriteFile(filepath.Join(env.rawDir, "README"), []byte("x"), 0o644)

	var mu sync.Mutex
	var progress []RebuildProgress
	res, err := env.svc.RebuildAll(context.Background(), 2, func(p RebuildProgress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	if res.Processed != 3 || res.Rebuilt != 2 {
		t.Errorf("expected 3 processed and 2 rebuilt, got %+v", res)
	}
	if _, ok := res.Failed["CS003"]; !ok {
		t.Errorf("expected CS003 to fail, got %v", res.Failed)
	}
	if len(progress) != 3 || progress[0].Total != 3 {
		t.Errorf("expected 3 progress callbacks with total 3, got %+v", progress)
	}
}

func TestRawEnrollmentNumbers(t *testing.T) {
	env := newTestEnv(t)
	os.MkdirAll(env.rawDir, 0o755)
	for _, name := range []string{"B2_x.jpg", "A1_y.jpg", "A1_z.jpg", "_bad.jpg", "plain.jpg"} {
		os.WriteFile(filepath.Join(env.rawDir, name), []byte("x"), 0o644)
	}

	got, err := env.svc.RawEnrollmentNumbers()
	if err != nil {
		t.Fatalf("RawEnrollmentNumbers failed: %v", err)
	}
	if strings.Join(got, ",") != "A1,B2" {
		t.Errorf("expected [A1 B2], got %v", got)
	}
}

func TestSafeBaseName(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":           "photo.jpg",
		"dir/photo.jpg":       "photo.jpg",
		`C:\Users\me\a.png`:   "a.png",
		"":                    "upload.jpg",
		"../../etc/passwd":    "passwd",
	}
	for in, want := range tests {
		if got := safeBaseName(in); got != want {
			t.Errorf("safeBaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
