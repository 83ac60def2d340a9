// internal/core/auth/service.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin grants access to listing and editing stored records.
const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("usuário ou senha inválidos")
	ErrInvalidToken       = errors.New("token de acesso inválido ou expirado")
)

// Claims is what a verified token says about its holder.
type Claims struct {
	Username  string
	Roles     []string
	ExpiresAt time.Time
}

// HasRole reports whether the holder has the role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Service issues and verifies admin access tokens.
type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
	Verify(token string) (*Claims, error)
}

type service struct {
	users     UserStore
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new auth service.
func NewService(users UserStore, jwtSecret []byte, ttl time.Duration, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{users: users, jwtSecret: jwtSecret, ttl: ttl, now: time.Now, logger: logger}
}

func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.FindUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("erro ao consultar usuário", zap.String("username", username), zap.Error(err))
		return "", errors.New("erro ao consultar o banco de dados")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"roles":    user.Roles,
		"exp":      s.now().Add(s.ttl).Unix(),
	})
	tokenString, err := claims.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("erro ao gerar token de acesso: %w", err)
	}
	return tokenString, nil
}

func (s *service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	username, _ := mc["username"].(string)
	if username == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{Username: username}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if roles, ok := mc["roles"].([]interface{}); ok {
		for _, r := range roles {
			if role, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}
	return claims, nil
}
