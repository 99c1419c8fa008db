package accounthttp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding/cmd"
	"gitlab.com/insightbox/insightbox-backend/pkg/ctxs"
	"gitlab.com/insightbox/insightbox-backend/pkg/env"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
)

var (
	tracer = otel.Tracer("insightbox/internal/ports/http/account")
	logger = otelslog.NewLogger("insightbox/internal/ports/http/account")
)

type HTTP struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	cmd        *onboarding.Command
	query      *onboarding.Query
	errhandler *httpx.ErrorHandler
	mode       env.Mode
	auth       func(http.Handler) http.Handler
	limit      func(http.Handler) http.Handler
}

type Args struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	App        *onboarding.App
	Errhandler *httpx.ErrorHandler
	Mode       env.Mode
	// Auth guards the routes of the signed in account.
	Auth func(http.Handler) http.Handler
	// RateLimit guards the routes that issue or redeem codes. Optional.
	RateLimit func(http.Handler) http.Handler
}

// NewHTTP wires the onboarding routes.
//
// WARNING: panics if App, Errhandler or Auth is nil
func NewHTTP(args Args) *HTTP {
	if args.App == nil || args.Errhandler == nil || args.Auth == nil {
		panic("account http: app, error handler and auth middleware are required")
	}
	if args.Tracer == nil {
		args.Tracer = tracer
	}
	if args.Logger == nil {
		args.Logger = logger
	}
	if args.RateLimit == nil {
		args.RateLimit = func(next http.Handler) http.Handler { return next }
	}

	return &HTTP{
		tracer:     args.Tracer,
		logger:     args.Logger,
		cmd:        &args.App.CMD,
		query:      &args.App.Query,
		errhandler: args.Errhandler,
		mode:       args.Mode,
		auth:       args.Auth,
		limit:      args.RateLimit,
	}
}

func (h *HTTP) Route(r chi.Router) {
	r.Route("/v1/accounts", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.limit)
			r.Post("/sign-up", h.SignUp)
			r.Post("/verify", h.Verify)
			r.Post("/resend-code", h.ResendCode)
		})
		r.Get("/username-available", h.UsernameAvailable)
		r.With(h.auth).Get("/me", h.Me)
	})

	if h.mode.ExposesDebugRoutes() {
		r.Get("/dev/accounts/{username}/verification-code", h.GetVerificationCode)
	}
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *SignUpRequest) SetSpanAttrs(span trace.Span) {
	otelx.SetSpanAttrs(span, map[string]any{
		"email":    logging.RedactEmail(r.Email),
		"username": logging.RedactUsername(r.Username),
	})
}

func (h *HTTP) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SignUp")
	defer span.End()

	var req SignUpRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to read json")
		return
	}
	req.SetSpanAttrs(span)

	err := h.cmd.SignUp.Handle(ctx, cmd.SignUp{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to sign up")
		return
	}

	httpx.Success(w, r, http.StatusCreated, httpx.Envelope{"message": mail.MsgVerificationSent})
}

type VerifyRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

func (h *HTTP) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Verify")
	defer span.End()

	var req VerifyRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to read json")
		return
	}
	otelx.SetSpanAttrs(span, map[string]any{"username": logging.RedactUsername(req.Username)})

	err := h.cmd.Verify.Handle(ctx, cmd.Verify{Username: req.Username, Code: req.Code})
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to verify account")
		return
	}
	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"verified": true})
}

type ResendCodeRequest struct {
	Email string `json:"email"`
}

func (h *HTTP) ResendCode(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ResendCode")
	defer span.End()

	var req ResendCodeRequest
	if err := httpx.ReadJSON(w, r, &req); err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to read json")
		return
	}
	otelx.SetSpanAttrs(span, map[string]any{"email": logging.RedactEmail(req.Email)})

	if err := h.cmd.ResendCode.Handle(ctx, cmd.ResendCode{Email: req.Email}); err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to resend verification code")
		return
	}

	httpx.Success(w, r, http.StatusAccepted, httpx.Envelope{"message": mail.MsgVerificationSent})
}

func (h *HTTP) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UsernameAvailable")
	defer span.End()

	username := sanitizex.CleanSingleLine(r.URL.Query().Get("username"))
	available, err := h.query.UsernameAvailable.Handle(ctx, username)
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to check username")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"available": available})
}

func (h *HTTP) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Me")
	defer span.End()

	principal, ok := ctxs.AccountFromCtx(ctx)
	if !ok {
		h.errhandler.HandleError(w, r, span, errorx.NewUnauthorized(), "no account in context")
		return
	}

	acc, err := h.query.GetAccount.Handle(ctx, principal.ID)
	if err != nil {
		if errorx.IsNotFound(err) {
			err = errorx.NewUnauthorized().WithCause(err)
		}
		h.errhandler.HandleError(w, r, span, err, "failed to get current account")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"account": acc})
}

func (h *HTTP) GetVerificationCode(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetVerificationCode")
	defer span.End()

	code, err := h.query.GetVerificationCode.Handle(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.errhandler.HandleError(w, r, span, err, "failed to get verification code")
		return
	}

	httpx.Success(w, r, http.StatusOK, httpx.Envelope{"verification_code": code})
}
