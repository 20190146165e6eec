// Package auth manages user accounts and session tokens. Passwords are
// stored as bcrypt hashes; sessions are HS256 JWTs carrying the user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmarkov/finsight/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 24 * time.Hour

// Store is the slice of the persistent store the auth service needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

// Service registers, authenticates and identifies users.
type Service struct {
	store  Store
	secret []byte
	log    zerolog.Logger
}

// New creates an auth service signing tokens with secret.
func New(store Store, secret []byte, log zerolog.Logger) *Service {
	return &Service{store: store, secret: secret, log: log}
}

// Register creates a new account. The username must be unique; a duplicate
// surfaces as a ValidationError from the store.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if username == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if len(password) < 8 {
		return nil, &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("username", username).Int64("id", user.ID).Msg("user registered")
	return user, nil
}

// Login verifies credentials and returns a session token with the user.
// Wrong username and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return "", nil, &domain.PermissionError{Reason: "invalid credentials"}
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, &domain.PermissionError{Reason: "invalid credentials"}
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// ChangePassword swaps the stored hash after verifying the current password.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, updated string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return &domain.PermissionError{Reason: "current password is wrong"}
	}
	if len(updated) < 8 {
		return &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(updated), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("ChangePassword: hash password: %w", err)
	}
	return s.store.UpdatePasswordHash(ctx, userID, string(hash))
}

// IssueToken signs a session token for the user.
func (s *Service) IssueToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(TokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("IssueToken: %w", err)
	}
	return token, nil
}

// VerifyToken validates a session token and returns the user id it carries.
func (s *Service) VerifyToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, &domain.PermissionError{Reason: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, &domain.PermissionError{Reason: "invalid token claims"}
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, &domain.PermissionError{Reason: "token carries no user id"}
	}
	return int64(userID), nil
}

// CurrentUser resolves a token to its account.
func (s *Service) CurrentUser(ctx context.Context, tokenString string) (*domain.User, error) {
	userID, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	return s.store.GetUserByID(ctx, userID)
}
