package authhttp

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authapp "gitlab.com/insightbox/insightbox-backend/internal/application/auth"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
)

const (
	AccessJWTCookie   = "insightbox_access"
	RefreshJWTCookie  = "insightbox_refresh"
	RefreshCookiePath = "/v1/auth/refresh"
)

var (
	tracer = otel.Tracer("insightbox/internal/ports/http/auth")
	logger = otelslog.NewLogger("insightbox/internal/ports/http/auth")
)

type HTTP struct {
	tracer       trace.Tracer
	logger       *slog.Logger
	app          *authapp.App
	errhandler   *httpx.ErrorHandler
	cookiedomain string
	secure       bool
}

type Args struct {
	Tracer       trace.Tracer
	Logger       *slog.Logger
	App          *authapp.App
	Errhandler   *httpx.ErrorHandler
	CookieDomain string
	// InsecureCookies drops the Secure flag so cookies work over plain http in local runs.
	InsecureCookies bool
}

func NewHTTP(args Args) *HTTP {
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}

	return &HTTP{
		tracer:       args.Tracer,
		logger:       args.Logger,
		app:          args.App,
		errhandler:   args.Errhandler,
		cookiedomain: args.CookieDomain,
		secure:       !args.InsecureCookies,
	}
}

func (h *HTTP) Route(r chi.Router) {
	r.Post("/v1/auth/login", h.Login)
	r.Post("/v1/auth/refresh", h.Refresh)
	r.Post("/v1/auth/logout", h.Logout)
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *HTTP) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Login")
	defer span.End()

	var req LoginRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to read json")
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		h.errhandler.HandleError(w, r, span, errorx.NewInvalidCredentials(), "empty login credentials")
		return
	}

	res, err := h.app.LoginHandle(ctx, authapp.Login{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to log in")
		return
	}

	h.setTokenCookies(w, res)
	httpx.Success(w, r, http.StatusOK, httpx.Envelope{
		"access_token": res.AccessToken,
		"expires_in":   int(res.AccessTokenExp.Seconds()),
	})
}

func (h *HTTP) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Refresh")
	defer span.End()

	refreshCookie, err := r.Cookie(RefreshJWTCookie)
	if err != nil {
		h.errhandler.HandleError(w, r, span, errorx.NewUnauthorized().WithCause(err), "failed to get refresh cookie")
		return
	}

	res, err := h.app.RefreshHandle(ctx, authapp.Refresh{RefreshToken: refreshCookie.Value})
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to refresh token")
		return
	}

	h.setTokenCookies(w, res)
	httpx.Success(w, r, http.StatusOK, httpx.Envelope{
		"access_token": res.AccessToken,
		"expires_in":   int(res.AccessTokenExp.Seconds()),
	})
}

func (h *HTTP) Logout(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "Logout")
	defer span.End()

	h.expireCookie(w, AccessJWTCookie, "/")
	h.expireCookie(w, RefreshJWTCookie, RefreshCookiePath)
	span.AddEvent("account logged out", trace.WithAttributes(
		attribute.String("cookie_domain", h.cookiedomain),
	))

	httpx.Success(w, r, http.StatusOK, nil)
}

func (h *HTTP) setTokenCookies(w http.ResponseWriter, res authapp.LoginResponse) {
	now := time.Now()
	http.SetCookie(w, &http.Cookie{
		Name:     AccessJWTCookie,
		Value:    res.AccessToken,
		Path:     "/",
		Domain:   h.cookiedomain,
		Expires:  now.Add(res.AccessTokenExp).UTC(),
		MaxAge:   int(res.AccessTokenExp.Seconds()),
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshJWTCookie,
		Value:    res.RefreshToken,
		Path:     RefreshCookiePath,
		Domain:   h.cookiedomain,
		Expires:  now.Add(res.RefreshTokenExp).UTC(),
		MaxAge:   int(res.RefreshTokenExp.Seconds()),
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *HTTP) expireCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.cookiedomain,
		MaxAge:   -1,
		Secure:   h.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
