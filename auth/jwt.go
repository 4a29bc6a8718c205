package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"nocap-editor/core"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// TokenLifetime is how long an issued token stays valid.
const TokenLifetime = 7 * 24 * time.Hour

var (
	ErrNoSecret     = errors.New("jwt secret is not configured")
	ErrInvalidToken = errors.New("invalid token")
)

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// User returns the identity carried by the claims.
func (c *AppClaims) User() *core.User {
	return &core.User{
		Subject:   c.Subject,
		Login:     c.Login,
		Email:     c.Email,
		AvatarURL: c.AvatarURL,
		Name:      c.Name,
	}
}

// Init sets the HMAC secret tokens are signed and verified with.
func Init(secret string) {
	secretMu.Lock()
	jwtSecret = []byte(secret)
	secretMu.Unlock()

	if secret == "" {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
}

func secret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}

// CreateJWT issues a signed token for user.
func CreateJWT(user *core.User) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", ErrNoSecret
	}
	if user == nil || user.Subject == "" {
		return "", fmt.Errorf("user subject cannot be empty")
	}

	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseJWT verifies tokenString and returns its claims.
func ParseJWT(tokenString string) (*AppClaims, error) {
	key := secret()
	if len(key) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
