package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authapp "gitlab.com/insightbox/insightbox-backend/internal/application/auth"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding"
	accounthttp "gitlab.com/insightbox/insightbox-backend/internal/ports/http/account"
	authhttp "gitlab.com/insightbox/insightbox-backend/internal/ports/http/auth"
	"gitlab.com/insightbox/insightbox-backend/internal/ports/http/middlewares"
	"gitlab.com/insightbox/insightbox-backend/pkg/env"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
)

const requestTimeout = 30 * time.Second

// HealthReporter is a dependency whose connection state /healthz reports.
type HealthReporter interface {
	Name() string
	Connected() bool
}

type Port struct {
	account    *accounthttp.HTTP
	auth       *authhttp.HTTP
	health     []HealthReporter
	errhandler *httpx.ErrorHandler
	corsOrigin string
}

type Args struct {
	OnboardingApp      *onboarding.App
	AuthApp            *authapp.App
	Errhandler         *httpx.ErrorHandler
	Mode               env.Mode
	AccessTokenSecret  string
	CookieDomain       string
	CORSOrigin         string
	RateLimitPerMinute int64
	Health             []HealthReporter
}

func NewPort(args Args) *Port {
	mw := middlewares.NewMiddleware(middlewares.Args{
		Secret:     []byte(args.AccessTokenSecret),
		Errhandler: args.Errhandler,
	})
	limiter := middlewares.NewRateLimiter(args.RateLimitPerMinute, args.Errhandler)

	return &Port{
		account: accounthttp.NewHTTP(accounthttp.Args{
			App:        args.OnboardingApp,
			Errhandler: args.Errhandler,
			Mode:       args.Mode,
			Auth:       mw.Auth,
			RateLimit:  limiter.Limit,
		}),
		auth: authhttp.NewHTTP(authhttp.Args{
			App:             args.AuthApp,
			Errhandler:      args.Errhandler,
			CookieDomain:    args.CookieDomain,
			InsecureCookies: args.Mode == env.Local || args.Mode == env.Test,
		}),
		health:     args.Health,
		errhandler: args.Errhandler,
		corsOrigin: args.CORSOrigin,
	}
}

// Route mounts every route on r, or on a new router when r is nil.
func (p *Port) Route(r chi.Router) chi.Router {
	if r == nil {
		r = chi.NewRouter()
	}

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middlewares.OTel,
		middlewares.Logger,
		middleware.Recoverer,
		middlewares.CORS(p.corsOrigin),
		middleware.Timeout(requestTimeout),
	)

	r.Get("/healthz", p.Healthz)
	p.account.Route(r)
	p.auth.Route(r)

	return r
}

// Healthz reports 200 when every dependency holds a live connection and 503 otherwise.
func (p *Port) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(p.health))
	for _, h := range p.health {
		state := "up"
		if !h.Connected() {
			state = "down"
			status = http.StatusServiceUnavailable
		}
		deps[h.Name()] = state
	}

	body := httpx.Envelope{
		"success":      status == http.StatusOK,
		"dependencies": deps,
	}
	if status != http.StatusOK {
		unavailable := errorx.NewServiceUnavailable()
		body["code"] = unavailable.Code
		body["message"] = unavailable.Localize(p.errhandler.Localizer(r.Header.Get("Accept-Language")))
	}

	if err := httpx.WriteJSON(w, status, body, nil); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
