// Package attendance implements enrollment, face recognition and attendance marking.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WilliamHails/7th-sem-project/internal/constants"
	"github.com/WilliamHails/7th-sem-project/internal/database"
	"github.com/WilliamHails/7th-sem-project/internal/database/filestore"
	"github.com/WilliamHails/7th-sem-project/internal/fingerprint"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

var (
	// ErrNoEnrollments is returned by Recognize when nothing has been enrolled yet.
	ErrNoEnrollments = errors.New("no enrolled students yet")
	// ErrNoCanonical is returned by Recognize when no canonical embedding could be loaded.
	ErrNoCanonical = errors.New("no canonical embeddings found")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoRawImage is returned when rebuilding a student without raw images.
	ErrNoRawImage = errors.New("no raw images found")
)

// Embedder computes a normalized face embedding from image bytes.
type Embedder interface {
	Embed(ctx context.Context, imageData []byte) (*fingerprint.Embedding, error)
}

// Deps are the collaborators of the service.
type Deps struct {
	Students   database.StudentRepository
	Sessions   database.SessionRepository
	Attendance database.AttendanceRepository
	Models     database.ModelRepository // optional
	Canonical  database.CanonicalStore
	Embedder   Embedder
	Matcher    Matcher // defaults to a linear scan over Canonical
}

// Options configure storage locations and matching.
type Options struct {
	RawDir         string
	PredictionsDir string
	Threshold      float64
	ModelPath      string // recorded in model_info next to the model name
	Now            func() time.Time
}

// Service runs the enrollment and recognition flows.
type Service struct {
	deps Deps
	opts Options

	modelMu  sync.Mutex
	modelIDs map[string]int64
}

// NewService creates a service. Zero options fall back to defaults.
func NewService(deps Deps, opts Options) *Service {
	if deps.Matcher == nil {
		deps.Matcher = NewLinearMatcher(deps.Canonical)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = constants.DefaultMatchThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{deps: deps, opts: opts, modelIDs: make(map[string]int64)}
}

// Threshold returns the minimum similarity for a match.
func (s *Service) Threshold() float64 {
	return s.opts.Threshold
}

// EnrollRequest is a new student with a reference image.
type EnrollRequest struct {
	EnrollmentNo string
	Name         string
	Semester     string
	Filename     string
	Image        []byte
}

// EnrollResult describes what enrollment stored.
type EnrollResult struct {
	Student        *database.Student
	Created        bool
	ImagePath      string
	FaceRegistered bool
	FaceError      string
}

// Enroll stores the student, the raw image and its canonical embedding.
// A failed embedding does not fail the enrollment; FaceRegistered reports it.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	req.EnrollmentNo = strings.TrimSpace(req.EnrollmentNo)
	if err := filestore.ValidateEnrollmentNo(req.EnrollmentNo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Semester) == "" {
		return nil, fmt.Errorf("%w: semester is required", ErrInvalidInput)
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image file is required", ErrInvalidInput)
	}

	student, created, err := s.deps.Students.UpsertStudent(ctx, database.Student{
		EnrollmentNo: req.EnrollmentNo,
		Name:         req.Name,
		Semester:     req.Semester,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save student: %w", err)
	}

	rawPath := filepath.Join(s.opts.RawDir, req.EnrollmentNo+"_"+safeBaseName(req.Filename))
	if err := writeFile(rawPath, req.Image); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	if _, err := s.deps.Students.AddImage(ctx, req.EnrollmentNo, rawPath); err != nil {
		return nil, fmt.Errorf("failed to record image: %w", err)
	}

	result := &EnrollResult{Student: student, Created: created, ImagePath: rawPath}

	if err := s.saveCanonical(ctx, req.EnrollmentNo, req.Image); err != nil {
		logger.Warn().Err(err).Str("enrollment_no", req.EnrollmentNo).Msg("could not compute canonical embedding")
		result.FaceError = err.Error()
		return result, nil
	}
	result.FaceRegistered = true

	logger.Info().
		Str("enrollment_no", req.EnrollmentNo).
		Bool("created", created).
		Msg("student enrolled")
	return result, nil
}

func (s *Service) saveCanonical(ctx context.Context, enrollmentNo string, image []byte) error {
	emb, err := s.deps.Embedder.Embed(ctx, image)
	if err != nil {
		return err
	}
	if err := s.deps.Canonical.Save(ctx, enrollmentNo, emb.Vector, emb.Model); err != nil {
		return fmt.Errorf("failed to save canonical embedding: %w", err)
	}
	s.deps.Matcher.Add(enrollmentNo, emb.Vector)
	return nil
}

// RecognizeRequest is a probe image, optionally tied to a class session.
type RecognizeRequest struct {
	Image     []byte
	Filename  string
	SessionID *int64
}

// RecognizeResult is the outcome of one recognition attempt.
type RecognizeResult struct {
	Match            bool
	EnrollmentNo     string
	Score            float64
	Status           string
	ImagePath        string
	AttendanceMarked bool
}

// Recognize matches the probe against every canonical embedding, logs the attempt
// and marks attendance when the best match clears the threshold.
func (s *Service) Recognize(ctx context.Context, req RecognizeRequest) (*RecognizeResult, error) {
	empty, err := s.deps.Canonical.IsEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollments: %w", err)
	}
	if empty {
		return nil, ErrNoEnrollments
	}

	now := s.opts.Now()
	probePath := uniquePath(filepath.Join(s.opts.PredictionsDir,
		now.Format(constants.ProbeTimeLayout)+"_"+safeBaseName(req.Filename)))
	if err := writeFile(probePath, req.Image); err != nil {
		return nil, fmt.Errorf("failed to save probe image: %w", err)
	}

	probe, err := s.deps.Embedder.Embed(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	best, err := s.deps.Matcher.Best(ctx, probe.Vector)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNoCanonical
	}

	student, err := s.deps.Students.GetStudent(ctx, best.EnrollmentNo)
	if err != nil {
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}

	aboveThreshold := best.Similarity >= s.opts.Threshold
	isMatch := aboveThreshold && student != nil

	result := &RecognizeResult{
		Match:        isMatch,
		EnrollmentNo: best.EnrollmentNo,
		Score:        best.Similarity,
		Status:       constants.StatusNoMatch,
		ImagePath:    probePath,
	}
	if isMatch {
		result.Status = constants.StatusMatch
	}

	entry := &database.PredictionLog{
		AttemptedAt: now,
		ImagePath:   probePath,
		Confidence:  best.Similarity,
		Status:      result.Status,
	}
	if aboveThreshold {
		enr := best.EnrollmentNo
		entry.PredictedEnrollment = &enr
		if student != nil {
			name := student.Name
			entry.PredictedName = &name
		}
	}

	var record *database.Attendance
	if isMatch && req.SessionID != nil {
		session, err := s.deps.Sessions.GetSession(ctx, *req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
		if session != nil {
			record = &database.Attendance{
				EnrollmentNo:   student.EnrollmentNo,
				NameAtTime:     student.Name,
				SemesterAtTime: student.Semester,
				Date:           now,
				Time:           now.Format("15:04:05"),
				Timestamp:      now,
				Confidence:     best.Similarity,
				ImagePath:      probePath,
				ModelID:        s.modelID(ctx, probe.Model),
				SessionID:      session.ID,
			}
		}
	}

	marked, err := s.deps.Attendance.SaveRecognition(ctx, entry, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record recognition: %w", err)
	}
	result.AttendanceMarked = marked

	logger.Info().
		Str("status", result.Status).
		Str("enrollment_no", best.EnrollmentNo).
		Float64("score", best.Similarity).
		Bool("attendance_marked", marked).
		Msg("recognition attempt")
	return result, nil
}

// modelID registers the embedding model once per name. Failures leave the
// attendance row without a model reference.
func (s *Service) modelID(ctx context.Context, model string) *int64 {
	if s.deps.Models == nil || model == "" {
		return nil
	}

	s.modelMu.Lock()
	defer s.modelMu.Unlock()

	if id, ok := s.modelIDs[model]; ok {
		return &id
	}
	id, err := s.deps.Models.EnsureModel(ctx, model, s.opts.ModelPath)
	if err != nil {
		logger.Warn().Err(err).Str("model", model).Msg("could not register embedding model")
		return nil
	}
	s.modelIDs[model] = id
	return &id
}

// DeleteStudent removes the student rows, the canonical embedding and raw images.
// File cleanup errors are logged and ignored.
func (s *Service) DeleteStudent(ctx context.Context, enrollmentNo string) error {
	if err := s.deps.Students.DeleteStudent(ctx, enrollmentNo); err != nil {
		return err
	}

	if err := s.deps.Canonical.Delete(ctx, enrollmentNo); err != nil {
		logger.Warn().Err(err).Str("enrollment_no", enrollmentNo).Msg("could not delete canonical embedding")
	}
	s.deps.Matcher.Remove(enrollmentNo)

	images, err := s.rawImages(enrollmentNo)
	if err != nil {
		logger.Warn().Err(err).Msg("could not list raw images")
		return nil
	}
	for _, path := range images {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("could not delete raw image")
		}
	}

	logger.Info().Str("enrollment_no", enrollmentNo).Msg("student deleted")
	return nil
}

// HasCanonical reports whether a student has a canonical embedding.
func (s *Service) HasCanonical(ctx context.Context, enrollmentNo string) (bool, error) {
	return s.deps.Canonical.Has(ctx, enrollmentNo)
}

// rawImages returns raw image paths for a student in name order.
func (s *Service) rawImages(enrollmentNo string) ([]string, error) {
	entries, err := os.ReadDir(s.opts.RawDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := enrollmentNo + "_"
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		paths = append(paths, filepath.Join(s.opts.RawDir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// RebuildCanonical recomputes a student's canonical embedding from the first raw image.
func (s *Service) RebuildCanonical(ctx context.Context, enrollmentNo string) (string, error) {
	images, err := s.rawImages(enrollmentNo)
	if err != nil {
		return "", fmt.Errorf("failed to list raw images: %w", err)
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w for %s in %s", ErrNoRawImage, enrollmentNo, s.opts.RawDir)
	}

	data, err := os.ReadFile(images[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", images[0], err)
	}
	if err := s.saveCanonical(ctx, enrollmentNo, data); err != nil {
		return "", err
	}
	return images[0], nil
}

// RawEnrollmentNumbers returns the unique enrollment prefixes (text before the
// first underscore) of the files in the raw directory, sorted.
func (s *Service) RawEnrollmentNumbers() ([]string, error) {
	entries, err := os.ReadDir(s.opts.RawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory: %w", err)
	}

	seen := make(map[string]struct{})
	var result []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok || prefix == "" {
			continue
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		result = append(result, prefix)
	}
	sort.Strings(result)
	return result, nil
}

// RebuildProgress is reported after each student in RebuildAll.
type RebuildProgress struct {
	Current      int
	Total        int
	EnrollmentNo string
	Err          error
}

// RebuildResult summarizes RebuildAll.
type RebuildResult struct {
	Processed int
	Rebuilt   int
	Failed    map[string]error
}

// RebuildAll recomputes canonical embeddings for every enrollment prefix found in
// the raw directory with up to concurrency parallel embedding requests.
func (s *Service) RebuildAll(ctx context.Context, concurrency int, onProgress func(RebuildProgress)) (*RebuildResult, error) {
	enrollments, err := s.RawEnrollmentNumbers()
	if err != nil {
		return nil, err
	}
	return s.rebuild(ctx, enrollments, concurrency, onProgress), nil
}

// Rebuild recomputes canonical embeddings for the given students.
func (s *Service) Rebuild(ctx context.Context, enrollments []string, concurrency int, onProgress func(RebuildProgress)) *RebuildResult {
	return s.rebuild(ctx, enrollments, concurrency, onProgress)
}

func (s *Service) rebuild(ctx context.Context, enrollments []string, concurrency int, onProgress func(RebuildProgress)) *RebuildResult {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}

	result := &RebuildResult{Failed: make(map[string]error)}
	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, enr := range enrollments {
		wg.Add(1)
		go func(enrollmentNo string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			var err error
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				_, err = s.RebuildCanonical(ctx, enrollmentNo)
			}

			mu.Lock()
			result.Processed++
			if err != nil {
				result.Failed[enrollmentNo] = err
			} else {
				result.Rebuilt++
			}
			current := result.Processed
			mu.Unlock()

			if onProgress != nil {
				onProgress(RebuildProgress{
					Current:      current,
					Total:        len(enrollments),
					EnrollmentNo: enrollmentNo,
					Err:          err,
				})
			}
		}(enr)
	}
	wg.Wait()
	return result
}

// safeBaseName strips directories from an uploaded file name.
func safeBaseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.jpg"
	}
	return name
}

// uniquePath inserts a short random suffix before the extension when path is taken.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + uuid.NewString()[:8] + ext
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
