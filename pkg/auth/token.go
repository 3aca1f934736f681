package auth

import (
	"errors"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/apperr"
	"github.com/arnavshah/shiftflow-api/pkg/models"
	"github.com/golang-jwt/jwt/v4"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	AccountID string      `json:"account_id"`
	Name      string      `json:"name"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Session rebuilds the session carried by the token.
func (c *Claims) Session() models.Session {
	return models.Session{
		Profile: models.Profile{ID: c.AccountID, Name: c.Name},
		Role:    c.Role,
	}
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A zero ttl defaults to 24 hours.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// CreateToken creates a new JWT token for a session
func (t *TokenIssuer) CreateToken(s models.Session) (string, time.Time, error) {
	expirationTime := t.now().Add(t.ttl)
	claims := &Claims{
		AccountID: s.Profile.ID,
		Name:      s.Profile.Name,
		Role:      s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Profile.ID,
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, apperr.ErrInternal.Wrap(err)
	}
	return signed, expirationTime, nil
}

// VerifyToken verifies a JWT token
func (t *TokenIssuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, apperr.ErrUnauthorized.Wrap(err)
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, apperr.ErrUnauthorized.WithMessage("invalid token")
	}
	return claims, nil
}
