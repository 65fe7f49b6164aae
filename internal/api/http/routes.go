package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-quizdocs/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quizdocs/internal/ingest"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
	"github.com/mind-engage/mindengage-quizdocs/internal/rbac"
	"github.com/mind-engage/mindengage-quizdocs/internal/storage"
)

type Deps struct {
	Ingest   *ingest.Service
	Store    quiz.Store
	Selector *quiz.Selector
	Files    storage.ArtifactStore
	Log      *logger.Logger

	// With EnableAuth off every instructor route is open and requests are
	// attributed to LocalSubject.
	EnableAuth   bool
	Auth         *auth.AuthService
	Instructor   auth.Instructor
	LocalSubject string
	Checker      *rbac.Checker

	MaxUploadBytes int64
	MaxImageBytes  int64
}

// Mount registers the quiz document API on r. Quiz-taking routes stay
// public; everything that changes uploads or questions needs the instructor
// permissions.
func Mount(r chi.Router, d Deps) {
	log := d.Log
	chk := d.Checker
	if chk == nil {
		chk = rbac.NewChecker(nil)
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	if d.MaxImageBytes <= 0 {
		d.MaxImageBytes = ingest.DefaultMaxImageBytes
	}

	if d.EnableAuth {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Instructor))
	}

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/questions", ListQuestionsHandler(d.Selector, log))
		ar.Post("/questions/{id}/check", CheckAnswerHandler(d.Store, log))
		ar.Get("/images/{courseID}/{level}/{name}", ImageHandler(d.Files, log))

		ar.Group(func(pr chi.Router) {
			if d.EnableAuth {
				pr.Use(auth.JWTMiddleware(d.Auth))
			} else {
				sub := d.LocalSubject
				if sub == "" {
					sub = "local"
				}
				pr.Use(auth.AttachRole(sub, rbac.RoleInstructor))
			}

			pr.With(chk.Require("upload:create")).
				Post("/upload", UploadHandler(d.Ingest, log, d.MaxUploadBytes))
			pr.With(chk.Require("upload:view")).
				Get("/upload", ListUploadsHandler(d.Store, log))
			pr.With(chk.Require("upload:delete")).
				Delete("/upload/{id}", DeleteUploadHandler(d.Ingest, log))
			pr.With(chk.Require("upload:reparse")).
				Post("/upload/{id}/reparse", ReparseHandler(d.Ingest, log))
			pr.With(chk.Require("course:delete_uploads")).
				Delete("/courses/{courseID}/uploads", DeleteCourseUploadsHandler(d.Ingest, log))

			pr.With(chk.Require("question:edit")).
				Put("/questions/{id}", UpdateQuestionHandler(d.Store, log))
			pr.With(chk.Require("question:delete")).
				Delete("/questions/{id}", DeleteQuestionHandler(d.Store, log))
			pr.With(chk.Require("image:upload")).
				Post("/upload-question-image", UploadQuestionImageHandler(d.Ingest, log, d.MaxImageBytes))
		})
	})

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(d.Store))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
}
