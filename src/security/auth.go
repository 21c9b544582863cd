package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService issues and checks HS256 API tokens.
type AuthService struct {
	JWTSecret   string
	TokenExpiry time.Duration
	now         func() time.Time
}

func NewAuthService(secret string, expiry time.Duration) *AuthService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &AuthService{JWTSecret: secret, TokenExpiry: expiry, now: time.Now}
}

// Enabled reports whether a secret is configured.
func (a *AuthService) Enabled() bool {
	return a != nil && a.JWTSecret != ""
}

func (a *AuthService) GenerateToken(subject string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("JWT secret not configured")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": now.Add(a.TokenExpiry).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// ValidateToken returns the subject of a valid token.
func (a *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", errors.New("invalid token: 'sub' claim missing or not a string")
		}
		return sub, nil
	}
	return "", ErrInvalidToken
}
