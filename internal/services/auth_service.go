package services

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pgrepo "github.com/oselyuk/boardmate/internal/repositories/postgres"
	"github.com/oselyuk/boardmate/internal/utils"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (token string, err error)
}

type authService struct {
	users    pgrepo.UserRepository
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(users pgrepo.UserRepository, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{users: users, secret: []byte(secret), tokenTTL: tokenTTL}
}

type authClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "AuthService.Login"

	if email == "" || password == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// same response for unknown user and bad password
		return "", utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	if err := utils.CheckPassword(user.PasswordHash, password); err != nil {
		return "", utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}

	now := time.Now().UTC()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Role: user.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return token, nil
}
