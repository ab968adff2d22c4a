package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/WilliamHails/7th-sem-project/internal/web/handlers"
	"github.com/WilliamHails/7th-sem-project/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.embedding)
	authHandler := handlers.NewAuthHandler(s.tokens)
	recognitionHandler := handlers.NewRecognitionHandler(s.service)
	studentsHandler := handlers.NewStudentsHandler(s.service)
	facultyHandler := handlers.NewFacultyHandler()
	classesHandler := handlers.NewClassesHandler()
	sessionsHandler := handlers.NewSessionsHandler()
	predictionsHandler := handlers.NewPredictionsHandler()

	requireAdmin := middleware.RequireAdmin(s.tokens)

	s.router.Get("/health", healthHandler.Get)

	// Auth
	s.router.Post("/auth/login", authHandler.Login)
	s.router.Get("/auth/status", authHandler.Status)

	// Recognition is open to the attendance kiosk
	s.router.Post("/recognize", recognitionHandler.Recognize)

	// Students
	s.router.Get("/students", studentsHandler.List)
	s.router.Get("/students/{enrollment_no}", studentsHandler.Get)
	s.router.Get("/students/{enrollment_no}/attendance", studentsHandler.Attendance)
	s.router.Get("/students/{enrollment_no}/attendance/summary", studentsHandler.Summary)

	// Faculty
	s.router.Get("/faculty", facultyHandler.List)
	s.router.Get("/faculty/{faculty_id}/classes", facultyHandler.Classes)
	s.router.Get("/faculty/{faculty_id}/classes_with_stats", facultyHandler.ClassesWithStats)

	// Classes
	s.router.Get("/classes", classesHandler.List)

	// Sessions
	s.router.Post("/sessions", sessionsHandler.Create)
	s.router.Get("/sessions/active", sessionsHandler.Active)
	s.router.Get("/sessions/{session_id}/faculty_contact", sessionsHandler.FacultyContact)
	s.router.Get("/sessions/{session_id}/attendance", sessionsHandler.Attendance)

	// Admin routes, open when no admin password is configured
	s.router.Group(func(r chi.Router) {
		r.Use(requireAdmin)

		r.Post("/enroll", recognitionHandler.Enroll)

		r.Put("/students/{enrollment_no}", studentsHandler.Update)
		r.Delete("/students/{enrollment_no}", studentsHandler.Delete)

		r.Post("/faculty", facultyHandler.Create)
		r.Put("/faculty/{faculty_id}", facultyHandler.Update)
		r.Delete("/faculty/{faculty_id}", facultyHandler.Delete)

		r.Post("/classes", classesHandler.Create)
		r.Put("/classes/{class_id}", classesHandler.Update)
		r.Delete("/classes/{class_id}", classesHandler.Delete)

		r.Get("/predictions", predictionsHandler.List)
	})
}
