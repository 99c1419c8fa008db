package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ARUMANDESU/validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authapp "gitlab.com/insightbox/insightbox-backend/internal/application/auth"
	authhttp "gitlab.com/insightbox/insightbox-backend/internal/ports/http/auth"
	"gitlab.com/insightbox/insightbox-backend/pkg/ctxs"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
)

var tracer = otel.Tracer("insightbox/internal/ports/http/middlewares")

type Middleware struct {
	tracer     trace.Tracer
	logger     *slog.Logger
	secret     []byte
	errhandler *httpx.ErrorHandler
}

type Args struct {
	Tracer     trace.Tracer
	Logger     *slog.Logger
	Secret     []byte
	Errhandler *httpx.ErrorHandler
}

func NewMiddleware(args Args) *Middleware {
	m := &Middleware{
		tracer:     args.Tracer,
		logger:     args.Logger,
		secret:     args.Secret,
		errhandler: args.Errhandler,
	}

	if m.tracer == nil {
		m.tracer = tracer
	}
	if m.logger == nil {
		m.logger = logger
	}
	if len(m.secret) == 0 {
		panic("secret key is required for auth middleware")
	}
	if m.errhandler == nil {
		panic("error handler is required for auth middleware")
	}
	return m
}

// Auth requires a valid access token cookie and puts the account it names into the context.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := m.tracer.Start(r.Context(), "AuthMiddleware")
		defer span.End()

		accessCookie, err := r.Cookie(authhttp.AccessJWTCookie)
		if err != nil {
			m.errhandler.HandleError(w, r, span, errorx.NewUnauthorized().WithCause(err), "failed to get access token cookie")
			return
		}

		err = validation.Validate(accessCookie.Value, validation.Required, validation.Length(1, 1000))
		if err != nil {
			m.errhandler.HandleError(w, r, span, errorx.NewInvalidCredentials().WithCause(err), "invalid access token cookie")
			return
		}

		accessToken, err := jwt.Parse(accessCookie.Value, func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(authapp.ISS),
			jwt.WithSubject(authapp.UserSubject),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			m.errhandler.HandleError(w, r, span, errorx.NewInvalidCredentials().WithCause(err), "failed to parse access token")
			return
		}

		accessClaims, ok := accessToken.Claims.(jwt.MapClaims)
		if !ok {
			err = errorx.NewInvalidCredentials().WithCause(errors.New("failed to parse access token claims"))
			m.errhandler.HandleError(w, r, span, err, "failed to parse access token claims")
			return
		}
		uid, ok := accessClaims["uid"].(string)
		if !ok {
			err = errorx.NewInvalidCredentials().
				WithCause(fmt.Errorf("account id not found or type assertion failed in access token claims: %T", accessClaims["uid"]))
			m.errhandler.HandleError(w, r, span, err, "account id missing in access token claims")
			return
		}
		accountID, err := uuid.Parse(uid)
		if err != nil {
			m.errhandler.HandleError(w, r, span, errorx.NewInvalidCredentials().WithCause(err), "failed to parse account id in access token claims")
			return
		}
		username, _ := accessClaims["username"].(string)

		span.SetAttributes(attribute.String("account.id", uid))
		ctx = ctxs.WithAccount(ctx, &ctxs.Account{
			ID:       accountID,
			Username: username,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
