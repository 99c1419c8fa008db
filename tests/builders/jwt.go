package builders

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	AccessTokenSecret  = "access-secret"
	RefreshTokenSecret = "refresh-secret"
)

type JWTFactory struct{}

func (f JWTFactory) AccessTokenBuilder(accountID, username string) *JWTBuilder {
	return NewJWTBuilder().
		WithClaim("iss", "insightbox_auth").
		WithClaim("sub", "account").
		WithIssuedAt(time.Now()).
		WithExpiration(time.Now().Add(30*time.Minute)).
		WithClaim("uid", accountID).
		WithClaim("username", username).
		WithSecret([]byte(AccessTokenSecret))
}

func (f JWTFactory) RefreshTokenBuilder(accountID string) *JWTBuilder {
	return NewJWTBuilder().
		WithClaim("iss", "insightbox_auth").
		WithClaim("sub", "refresh").
		WithIssuedAt(time.Now()).
		WithExpiration(time.Now().Add(14*24*time.Hour)).
		WithClaim("uid", accountID).
		WithClaim("jti", uuid.New().String()).
		WithClaim("scope", "refresh").
		WithSecret([]byte(RefreshTokenSecret))
}

type JWTBuilder struct {
	secretKey     []byte
	signingMethod jwt.SigningMethod
	mapClaims     jwt.MapClaims
}

func NewJWTBuilder() *JWTBuilder {
	return &JWTBuilder{
		secretKey:     []byte(AccessTokenSecret),
		signingMethod: jwt.SigningMethodHS256,
		mapClaims:     jwt.MapClaims{},
	}
}

func (j *JWTBuilder) WithIssuedAt(issuedAt time.Time) *JWTBuilder {
	j.mapClaims["iat"] = jwt.NewNumericDate(issuedAt)
	return j
}

func (j *JWTBuilder) WithExpiration(expiration time.Time) *JWTBuilder {
	j.mapClaims["exp"] = jwt.NewNumericDate(expiration)
	return j
}

func (j *JWTBuilder) WithSecret(key []byte) *JWTBuilder {
	j.secretKey = key
	return j
}

func (j *JWTBuilder) WithSigningMethod(method jwt.SigningMethod) *JWTBuilder {
	j.signingMethod = method
	return j
}

func (j *JWTBuilder) WithClaim(key string, value any) *JWTBuilder {
	j.mapClaims[key] = value
	return j
}

func (j *JWTBuilder) WithoutClaim(key string) *JWTBuilder {
	delete(j.mapClaims, key)
	return j
}

func (j *JWTBuilder) WithEmptyClaims() *JWTBuilder {
	j.mapClaims = jwt.MapClaims{}
	return j
}

func (j *JWTBuilder) BuildSignedStringT(t *testing.T) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(j.signingMethod, j.mapClaims).SignedString(j.secretKey)
	require.NoError(t, err, "failed to build signed JWT string")
	return signed
}
