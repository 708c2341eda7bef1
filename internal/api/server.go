// Package api exposes the service over HTTP under /api.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/nhle/todoplus/internal/auth"
	"github.com/nhle/todoplus/internal/logging"
	"github.com/nhle/todoplus/internal/service"
)

// Config holds the HTTP-level settings.
type Config struct {
	// BodyLimit caps request bodies in bytes. Zero means 16 MiB.
	BodyLimit    int64
	CORSOrigins  []string
	ExposeErrors bool
	// Location interprets dates sent without a zone.
	Location *time.Location
}

// Server routes HTTP requests to the service.
type Server struct {
	svc          *service.Service
	verifier     *auth.Verifier
	logger       *slog.Logger
	validate     *validator.Validate
	bodyLimit    int64
	corsOrigins  []string
	exposeErrors bool
	loc          *time.Location
}

// NewServer builds a Server. A nil verifier disables authentication.
func NewServer(svc *service.Service, verifier *auth.Verifier, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 16 << 20
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return &Server{
		svc:          svc,
		verifier:     verifier,
		logger:       logger,
		validate:     newValidator(),
		bodyLimit:    cfg.BodyLimit,
		corsOrigins:  cfg.CORSOrigins,
		exposeErrors: cfg.ExposeErrors,
		loc:          cfg.Location,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.limitBody)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/userData", s.handleUserData)
		r.Post("/addProject", s.handleAddProject)

		r.Route("/project", func(r chi.Router) {
			r.Put("/update", s.handleRenameProject)
			r.Put("/complete", s.handleCompleteProject)
			r.Put("/delete", s.handleDeleteProject)
			r.Post("/addTask", s.handleAddTask)
			r.Get("/{projectId}", s.handleGetProject)

			r.Route("/task", func(r chi.Router) {
				r.Put("/update", s.handleRenameTask)
				r.Put("/delete", s.handleDeleteTask)
				r.Put("/complete", s.handleCompleteTask)
				r.Put("/setDueDate", s.handleSetDueDate)
				r.Put("/setReminderDate", s.handleSetReminderDate)
				r.Post("/addSubtask", s.handleAddSubtask)
				r.Put("/subtask/update", s.handleRenameSubtask)
				r.Put("/subtask/complete", s.handleCompleteSubtask)
				r.Put("/subtask/delete", s.handleDeleteSubtask)
				r.Post("/createTaskNote", s.handleAddNote)
				r.Put("/note/update", s.handleRenameNote)
				r.Put("/note/delete", s.handleDeleteNote)
				r.Post("/saveAttachments", s.handleSaveAttachments)
			})
		})

		r.Post("/productivityRecord/today", s.handleEnsureToday)
		r.Post("/productivityRecord/createProductivityEntry", s.handleCreateEntry)
		r.Post("/profile/updateTodaysProductiveTime", s.handleRecomputeToday)
		r.Put("/user/setProductivityGoal", s.handleSetGoal)
		r.Put("/user/setWeeklyProductivityGoal", s.handleSetWeeklyGoal)
		r.Get("/user/{userId}/stats", s.handleStats)
	})

	return r
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.bodyLimit)
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		begin := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(begin),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authenticate rejects requests without a valid bearer token. It is a
// no-op when the server has no verifier.
func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		raw, err := auth.BearerToken(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		claims, err := s.verifier.Verify(raw)
		if err != nil {
			s.logger.DebugContext(r.Context(), "token rejected", "error", err)
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), claims)))
	})
}
