package authapp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
	"gitlab.com/insightbox/insightbox-backend/pkg/sanitizex"
)

const (
	AccessTokenExpDuration  = 30 * time.Minute
	RefreshTokenExpDuration = 14 * 24 * time.Hour

	ISS            = "insightbox_auth"
	UserSubject    = "account"
	RefreshSubject = "refresh"
	RefreshScope   = "refresh"
)

var (
	tracer = otel.Tracer("insightbox/internal/application/auth")
	logger = otelslog.NewLogger("insightbox/internal/application/auth")
)

type AccountGetter interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*account.Account, error)
}

type App struct {
	tracer        trace.Tracer
	logger        *slog.Logger
	accountgetter AccountGetter

	accessTokenExpDuration  time.Duration
	refreshTokenExpDuration time.Duration
	accessTokenSecretKey    []byte
	refreshTokenSecretKey   []byte
	signingMethod           *jwt.SigningMethodHMAC
}

type Args struct {
	Tracer        trace.Tracer
	Logger        *slog.Logger
	AccountGetter AccountGetter

	AccessTokenSecretKey    string
	RefreshTokenSecretKey   string
	AccessTokenExpDuration  *time.Duration
	RefreshTokenExpDuration *time.Duration
}

func NewApp(args Args) *App {
	app := &App{
		tracer:        tracer,
		logger:        logger,
		accountgetter: args.AccountGetter,

		accessTokenExpDuration:  AccessTokenExpDuration,
		refreshTokenExpDuration: RefreshTokenExpDuration,
		accessTokenSecretKey:    []byte(args.AccessTokenSecretKey),
		refreshTokenSecretKey:   []byte(args.RefreshTokenSecretKey),
		signingMethod:           jwt.SigningMethodHS256,
	}

	if args.AccessTokenExpDuration != nil {
		app.accessTokenExpDuration = *args.AccessTokenExpDuration
	}
	if args.RefreshTokenExpDuration != nil {
		app.refreshTokenExpDuration = *args.RefreshTokenExpDuration
	}
	if args.Tracer != nil {
		app.tracer = args.Tracer
	}
	if args.Logger != nil {
		app.logger = args.Logger
	}

	return app
}

// Login takes a username or an email as Identifier.
type Login struct {
	Identifier string
	Password   string
}

type LoginResponse struct {
	AccessToken     string
	RefreshToken    string
	AccessTokenExp  time.Duration
	RefreshTokenExp time.Duration
}

// LoginHandle checks the password of a verified account and issues an access and a refresh token.
// Unknown accounts and wrong passwords are indistinguishable to the caller.
func (a *App) LoginHandle(ctx context.Context, cmd Login) (LoginResponse, error) {
	ctx, span := a.tracer.Start(
		ctx,
		"App.LoginHandle",
		trace.WithAttributes(
			attribute.String("signing_method", a.signingMethod.Alg()),
			attribute.String("access_token_exp_duration", a.accessTokenExpDuration.String()),
			attribute.String("refresh_token_exp_duration", a.refreshTokenExpDuration.String()),
		),
	)
	defer span.End()

	var (
		acc *account.Account
		err error
	)
	identifier := sanitizex.CleanToken(cmd.Identifier)
	if strings.Contains(identifier, "@") {
		email := sanitizex.CleanEmail(identifier)
		span.SetAttributes(attribute.String("account.email", logging.RedactEmail(email)))
		acc, err = a.accountgetter.GetAccountByEmail(ctx, email)
	} else {
		span.SetAttributes(attribute.String("account.username", logging.RedactUsername(identifier)))
		acc, err = a.accountgetter.GetAccountByUsername(ctx, identifier)
	}
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to get account")
		if errorx.IsNotFound(err) {
			return LoginResponse{}, account.ErrWrongCredentials.WithCause(err)
		}
		return LoginResponse{}, err
	}

	if err := acc.Authenticate(cmd.Password); err != nil {
		otelx.RecordSpanError(span, err, "failed to authenticate")
		return LoginResponse{}, err
	}

	now := time.Now()
	accessjwt, err := a.signAccessToken(acc, now)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to sign access token")
		return LoginResponse{}, errorx.NewInternalError().WithCause(err)
	}
	refreshToken := jwt.NewWithClaims(a.signingMethod, jwt.MapClaims{
		"iss":   ISS,
		"sub":   RefreshSubject,
		"exp":   now.Add(a.refreshTokenExpDuration).Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.New().String(),
		"uid":   acc.ID().String(),
		"scope": RefreshScope,
	})
	refreshjwt, err := refreshToken.SignedString(a.refreshTokenSecretKey)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to sign refresh token")
		return LoginResponse{}, errorx.NewInternalError().WithCause(err)
	}

	a.logger.InfoContext(ctx, "account logged in", slog.String("account.id", acc.ID().String()))

	return LoginResponse{
		AccessToken:     accessjwt,
		RefreshToken:    refreshjwt,
		AccessTokenExp:  a.accessTokenExpDuration,
		RefreshTokenExp: a.refreshTokenExpDuration,
	}, nil
}

type Refresh struct {
	RefreshToken string
}

func (a *App) RefreshHandle(ctx context.Context, cmd Refresh) (LoginResponse, error) {
	ctx, span := a.tracer.Start(
		ctx,
		"App.RefreshHandle",
		trace.WithAttributes(
			attribute.String("signing_method", a.signingMethod.Alg()),
			attribute.String("access_token_exp_duration", a.accessTokenExpDuration.String()),
		),
	)
	defer span.End()

	refreshToken, err := jwt.Parse(cmd.RefreshToken, func(t *jwt.Token) (any, error) {
		return a.refreshTokenSecretKey, nil
	}, jwt.WithValidMethods([]string{a.signingMethod.Alg()}), jwt.WithIssuer(ISS), jwt.WithSubject(RefreshSubject))
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to parse refresh jwt token")
		return LoginResponse{}, errorx.NewInvalidCredentials().WithCause(err)
	}

	refreshClaims, ok := refreshToken.Claims.(jwt.MapClaims)
	if !ok {
		err := errors.New("unexpected refresh token claims type")
		otelx.RecordSpanError(span, err, "failed to parse refresh token claims")
		return LoginResponse{}, errorx.NewInvalidCredentials().WithCause(err)
	}
	uid, ok := refreshClaims["uid"].(string)
	if !ok {
		err := errors.New("missing or invalid account id in refresh token claims")
		otelx.RecordSpanError(span, err, "invalid refresh token account id")
		return LoginResponse{}, errorx.NewInvalidCredentials().WithCause(err)
	}
	accountID, err := uuid.Parse(uid)
	if err != nil {
		otelx.RecordSpanError(span, err, "invalid refresh token account id")
		return LoginResponse{}, errorx.NewInvalidCredentials().WithCause(err)
	}
	span.SetAttributes(attribute.String("account.id", uid))

	acc, err := a.accountgetter.GetAccountByID(ctx, accountID)
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to get account by id")
		if errorx.IsNotFound(err) {
			return LoginResponse{}, errorx.NewInvalidCredentials().WithCause(err)
		}
		return LoginResponse{}, err
	}

	accessjwt, err := a.signAccessToken(acc, time.Now())
	if err != nil {
		otelx.RecordSpanError(span, err, "failed to sign access token")
		return LoginResponse{}, errorx.NewInternalError().WithCause(err)
	}

	return LoginResponse{
		AccessToken:     accessjwt,
		RefreshToken:    cmd.RefreshToken,
		AccessTokenExp:  a.accessTokenExpDuration,
		RefreshTokenExp: a.refreshTokenExpDuration,
	}, nil
}

func (a *App) signAccessToken(acc *account.Account, now time.Time) (string, error) {
	return jwt.NewWithClaims(a.signingMethod, jwt.MapClaims{
		"iss":      ISS,
		"sub":      UserSubject,
		"exp":      now.Add(a.accessTokenExpDuration).Unix(),
		"iat":      now.Unix(),
		"uid":      acc.ID().String(),
		"username": acc.Username(),
	}).SignedString(a.accessTokenSecretKey)
}
