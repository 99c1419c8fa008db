package authapp_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authapp "gitlab.com/insightbox/insightbox-backend/internal/application/auth"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
	"gitlab.com/insightbox/insightbox-backend/tests/builders"
	"gitlab.com/insightbox/insightbox-backend/tests/mocks"
)

type AppSuite struct {
	App                     *authapp.App
	Repo                    *mocks.AccountRepo
	AccessTokenExpDuration  time.Duration
	RefreshTokenExpDuration time.Duration
}

func NewSuite(t *testing.T) *AppSuite {
	t.Helper()

	repo := mocks.NewAccountRepo()
	accessTokenExp := 15 * time.Minute
	refreshTokenExp := 30 * 24 * time.Hour

	return &AppSuite{
		App: authapp.NewApp(authapp.Args{
			AccountGetter:           repo,
			AccessTokenSecretKey:    builders.AccessTokenSecret,
			RefreshTokenSecretKey:   builders.RefreshTokenSecret,
			AccessTokenExpDuration:  &accessTokenExp,
			RefreshTokenExpDuration: &refreshTokenExp,
		}),
		Repo:                    repo,
		AccessTokenExpDuration:  accessTokenExp,
		RefreshTokenExpDuration: refreshTokenExp,
	}
}

func (s *AppSuite) assertAccessToken(t *testing.T, token string, acc *account.Account) {
	t.Helper()
	authapp.NewJWTTokenAssertion(t, token, []byte(builders.AccessTokenSecret)).
		AssertValid().
		AssertISS(authapp.ISS).
		AssertSub(authapp.UserSubject).
		AssertExp(time.Now().Add(s.AccessTokenExpDuration)).
		AssertIAT(time.Now()).
		AssertUID(acc.ID().String()).
		AssertUsername(acc.Username())
}

func (s *AppSuite) assertRefreshToken(t *testing.T, token string, acc *account.Account) {
	t.Helper()
	authapp.NewJWTTokenAssertion(t, token, []byte(builders.RefreshTokenSecret)).
		AssertValid().
		AssertISS(authapp.ISS).
		AssertSub(authapp.RefreshSubject).
		AssertExp(time.Now().Add(s.RefreshTokenExpDuration)).
		AssertIAT(time.Now()).
		AssertUID(acc.ID().String()).
		AssertJTINotEmpty().
		AssertScope(authapp.RefreshScope)
}

func TestLoginHandle_HappyPath(t *testing.T) {
	t.Parallel()

	s := NewSuite(t)
	acc := builders.NewAccountBuilder().WithUsername("alice").WithEmail("alice@x.io").Verified().Build()
	s.Repo.SeedAccount(t, acc)

	tests := []struct {
		name       string
		identifier string
	}{
		{name: "with username", identifier: "alice"},
		{name: "with email", identifier: "alice@x.io"},
		{name: "with mixed case email", identifier: " Alice@X.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := s.App.LoginHandle(t.Context(), authapp.Login{
				Identifier: tt.identifier,
				Password:   builders.DefaultPassword,
			})
			require.NoError(t, err)

			s.assertAccessToken(t, res.AccessToken, acc)
			s.assertRefreshToken(t, res.RefreshToken, acc)
			assert.Equal(t, s.AccessTokenExpDuration, res.AccessTokenExp)
		})
	}
}

func TestLoginHandle_FailPath(t *testing.T) {
	t.Parallel()

	s := NewSuite(t)
	s.Repo.SeedAccount(t, builders.NewAccountBuilder().WithUsername("alice").WithEmail("alice@x.io").Verified().Build())
	s.Repo.SeedAccount(t, builders.NewAccountBuilder().WithUsername("pending").WithEmail("pending@x.io").Build())

	tests := []struct {
		name    string
		cmd     authapp.Login
		wantErr error
	}{
		{name: "empty identifier", cmd: authapp.Login{Password: builders.DefaultPassword}, wantErr: account.ErrWrongCredentials},
		{name: "unknown username", cmd: authapp.Login{Identifier: "bob", Password: builders.DefaultPassword}, wantErr: account.ErrWrongCredentials},
		{name: "unknown email", cmd: authapp.Login{Identifier: "bob@x.io", Password: builders.DefaultPassword}, wantErr: account.ErrWrongCredentials},
		{name: "wrong password", cmd: authapp.Login{Identifier: "alice", Password: "wrongpass"}, wantErr: account.ErrWrongCredentials},
		{name: "empty password", cmd: authapp.Login{Identifier: "alice@x.io"}, wantErr: account.ErrWrongCredentials},
		{name: "unverified account", cmd: authapp.Login{Identifier: "pending", Password: builders.DefaultPassword}, wantErr: account.ErrNotVerified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := s.App.LoginHandle(t.Context(), tt.cmd)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, res.AccessToken)
		})
	}
}

func TestRefreshHandle_HappyPath(t *testing.T) {
	t.Parallel()

	s := NewSuite(t)
	acc := builders.NewAccountBuilder().Verified().Build()
	s.Repo.SeedAccount(t, acc)

	loginRes, err := s.App.LoginHandle(t.Context(), authapp.Login{Identifier: acc.Username(), Password: builders.DefaultPassword})
	require.NoError(t, err)

	res, err := s.App.RefreshHandle(t.Context(), authapp.Refresh{RefreshToken: loginRes.RefreshToken})
	require.NoError(t, err)

	assert.Equal(t, loginRes.RefreshToken, res.RefreshToken)
	s.assertAccessToken(t, res.AccessToken, acc)
}

func TestRefreshHandle_FailPath(t *testing.T) {
	t.Parallel()

	s := NewSuite(t)
	acc := builders.NewAccountBuilder().Verified().Build()
	s.Repo.SeedAccount(t, acc)
	uid := acc.ID().String()

	tests := []struct {
		name         string
		refreshToken string
	}{
		{
			name:         "invalid signature",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithSecret([]byte("wrong-secret")).BuildSignedStringT(t),
		},
		{
			name:         "expired token",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithExpiration(time.Now().Add(-time.Hour)).BuildSignedStringT(t),
		},
		{
			name:         "empty claims",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithEmptyClaims().BuildSignedStringT(t),
		},
		{
			name:         "unknown account",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder("0b6f4c5e-8f8a-4f59-9d55-2c1f0c2d6a11").BuildSignedStringT(t),
		},
		{
			name:         "invalid iss claim",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithClaim("iss", "invalid_issuer").BuildSignedStringT(t),
		},
		{
			name:         "access token used as refresh token",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithClaim("sub", "account").BuildSignedStringT(t),
		},
		{
			name:         "missing uid claim",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder(uid).WithoutClaim("uid").BuildSignedStringT(t),
		},
		{
			name:         "malformed uid claim",
			refreshToken: builders.JWTFactory{}.RefreshTokenBuilder("not-a-uuid").BuildSignedStringT(t),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := s.App.RefreshHandle(t.Context(), authapp.Refresh{RefreshToken: tt.refreshToken})

			require.Error(t, err)
			assert.True(t, errorx.IsCode(err, errorx.CodeInvalidCredentials), "expected invalid credentials error, got: %v", err)
			assert.Empty(t, res)
		})
	}
}
