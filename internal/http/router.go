package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"admissions/internal/common"
	"admissions/internal/domain/user"
	"admissions/internal/http/handlers"
	"admissions/internal/http/metrics"
	httpmw "admissions/internal/http/middleware"
	"admissions/internal/http/response"
	"admissions/internal/observability"
)

type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	CandidatureHandler  *handlers.CandidatureHandler
	DocumentHandler     *handlers.DocumentHandler
	EntretienHandler    *handlers.EntretienHandler
	PeriodHandler       *handlers.PeriodHandler
	ProgramHandler      *handlers.ProgramHandler
	UserHandler         *handlers.UserHandler
	NotificationHandler *handlers.NotificationHandler
	StatsHandler        *handlers.StatsHandler
	AuthMiddleware      *httpmw.AuthMiddleware
	Metrics             *metrics.Collector
	Limiter             httpmw.Limiter
	Logger              *zap.Logger
	ServiceName         string
	RequestTimeout      time.Duration
	AllowedOrigins      string
	LoginPerMinute      int
}

const maxBodyBytes = 1 << 20

var (
	staff       = []user.Role{user.RoleCoordinator, user.RoleAdmin}
	adminOnly   = []user.Role{user.RoleAdmin}
	candidates  = []user.Role{user.RoleCandidate}
	interviewer = []user.Role{user.RoleExaminer}
)

func NewRouter(deps RouterDependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = httpmw.NewRateLimiter()
	}

	r := chi.NewRouter()
	r.Use(
		httpmw.RequestID,
		httpmw.Logging(logger),
		httpmw.Recover(logger),
		httpmw.Metrics(deps.Metrics),
		httpmw.SecurityHeaders,
		httpmw.CORS(deps.AllowedOrigins),
		httpmw.BodyLimit(maxBodyBytes),
		httpmw.Timeout(deps.RequestTimeout),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, common.NewError(common.CodeNotFound, "route introuvable", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, common.NewError(common.CodeNotFound, "méthode non prise en charge", nil))
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.NewHandler(deps.Metrics))

	authn := deps.AuthMiddleware.Authenticate
	role := httpmw.RequireRole

	r.Route("/auth", func(r chi.Router) {
		a := deps.AuthHandler
		r.Post("/register", a.Register)
		r.With(httpmw.RateLimit(limiter, httpmw.ByIP("login"), deps.LoginPerMinute, time.Minute)).Post("/login", a.Login)
		r.Post("/refresh", a.Refresh)
		r.Post("/logout", a.Logout)
		r.Get("/verify-email/{token}", a.VerifyEmail)
		r.Post("/resend-verification", a.ResendVerification)
		r.Post("/forgot-password", a.ForgotPassword)
		r.Post("/reset-password", a.ResetPassword)
		r.With(authn).Get("/me", a.Me)
	})

	r.Route("/programmes", func(r chi.Router) {
		p := deps.ProgramHandler
		r.Get("/", p.List)
		r.Get("/{code}", p.Get)
		r.Group(func(r chi.Router) {
			r.Use(authn, role(adminOnly...))
			r.Post("/", p.Create)
			r.Put("/{code}", p.Update)
			r.Delete("/{code}", p.Delete)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/candidatures", func(r chi.Router) {
			c := deps.CandidatureHandler
			d := deps.DocumentHandler
			r.Get("/", c.List)
			r.With(role(user.RoleCandidate, user.RoleAdmin)).Post("/", c.Create)
			r.With(role(candidates...)).Get("/verifier-candidature-active", c.ActiveStatus)
			r.Get("/periodes/active", c.ActivePeriods)
			r.With(role(candidates...)).Get("/mes-candidatures", c.ListMine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", c.Get)
				r.Put("/", c.Update)
				r.With(role(staff...)).Put("/decision", c.UpdateDecision)
				r.Put("/application-info", c.UpdateApplicationInfo)
				r.Put("/informations-personnelles", c.UpdatePersonalInfo)
				r.With(role(candidates...)).Get("/mon-candidature", c.GetMine)
				r.With(role(candidates...)).Put("/mon-candidature", c.UpdateMine)
				r.With(role(candidates...)).Post("/soumettre", c.Submit)
				r.Post("/retirer", c.Withdraw)

				r.Get("/dossiers-academiques", c.ListAcademicRecords)
				r.Post("/dossiers-academiques", c.AddAcademicRecord)
				r.Put("/dossiers-academiques/{dossierId}", c.UpdateAcademicRecord)
				r.Delete("/dossiers-academiques/{dossierId}", c.DeleteAcademicRecord)

				r.Get("/documents", d.ListForCandidature)
				r.Post("/documents", d.Upload)

				r.Group(func(r chi.Router) {
					r.Use(role(staff...))
					r.Get("/notes", c.ListNotes)
					r.Post("/notes", c.AddNote)
					r.Delete("/notes/{noteId}", c.DeleteNote)
				})
			})
		})

		r.Route("/documents", func(r chi.Router) {
			d := deps.DocumentHandler
			r.With(role(staff...)).Get("/", d.ListAll)
			r.With(role(staff...)).Post("/{id}/verifier", d.Verify)
			r.Delete("/{id}", d.Delete)
		})

		r.Route("/entretiens", func(r chi.Router) {
			e := deps.EntretienHandler
			r.Get("/", e.List)
			r.With(role(staff...)).Post("/", e.Create)
			r.Get("/{id}", e.Get)
			r.With(role(user.RoleCoordinator, user.RoleAdmin, user.RoleExaminer)).Put("/{id}", e.Update)
			r.Get("/{id}/notes", e.ListNotes)
			r.With(role(interviewer...)).Post("/{id}/notes", e.AddNote)
			r.With(role(staff...)).Post("/{id}/annuler", e.Cancel)
		})

		r.Route("/periodes", func(r chi.Router) {
			p := deps.PeriodHandler
			r.Get("/", p.List)
			r.Get("/{id}", p.Get)
			r.Group(func(r chi.Router) {
				r.Use(role(adminOnly...))
				r.Post("/", p.Create)
				r.Patch("/{id}", p.Update)
				r.Delete("/{id}", p.Delete)
			})
		})

		r.Route("/utilisateurs", func(r chi.Router) {
			u := deps.UserHandler
			r.With(role(staff...)).Get("/", u.List)
			r.With(role(staff...)).Get("/examinateurs", u.ListExaminers)
			r.With(role(staff...)).Get("/candidats", u.ListCandidates)
			r.With(role(adminOnly...)).Get("/{id}", u.Get)
			r.With(role(adminOnly...)).Put("/{id}", u.Update)
			r.With(role(adminOnly...)).Delete("/{id}", u.Delete)
			r.Put("/{id}/profil", u.UpdateProfile)
		})

		r.Route("/notifications", func(r chi.Router) {
			n := deps.NotificationHandler
			r.Get("/", n.ListMine)
			r.Put("/tout-lire", n.MarkAllRead)
			r.Put("/{id}/lire", n.MarkRead)
		})

		r.Route("/admin/notifications", func(r chi.Router) {
			n := deps.NotificationHandler
			r.Use(role(adminOnly...))
			r.Get("/", n.ListAdmin)
			r.Post("/", n.Create)
			r.Delete("/{id}", n.Delete)
		})

		r.Route("/stats", func(r chi.Router) {
			s := deps.StatsHandler
			r.With(role(staff...)).Get("/dashboard", s.Dashboard)
			r.With(role(staff...)).Get("/recent-activities", s.RecentActivities)
			r.With(role(user.RoleCoordinator)).Get("/coordinator", s.Coordinator)
			r.With(role(interviewer...)).Get("/interviewer", s.Interviewer)
		})
	})

	if deps.ServiceName == "" {
		return r
	}
	return observability.HTTPMiddleware(deps.ServiceName)(r)
}
